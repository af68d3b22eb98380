// Package labels - Class and keypoint name tables.
package labels

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nvr-ai/go-tensordecode/models/model"
)

// Table is an ordered list of names where the line index is the class or keypoint index.
type Table struct {
	names   []string
	mapping map[string]int
}

// New builds a table from names. Names are trimmed of surrounding whitespace.
func New(names ...string) *Table {
	t := &Table{
		names:   make([]string, len(names)),
		mapping: make(map[string]int, len(names)),
	}
	for i, n := range names {
		n = strings.TrimSpace(n)
		t.names[i] = n
		if _, ok := t.mapping[n]; !ok {
			t.mapping[n] = i
		}
	}
	return t
}

// Load reads one name per line from a file.
//
// Arguments:
//   - path: The label text file.
//
// Returns:
//   - *Table: The label table.
//   - error: A *model.ConfigError if the file is missing, unreadable or empty.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.NewConfigError(path, "cannot open labels: %v", err)
	}
	defer f.Close()

	return parse(f, path)
}

// Parse reads one name per line from r.
func Parse(r io.Reader) (*Table, error) {
	return parse(r, "labels")
}

func parse(r io.Reader, source string) (*Table, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		names = append(names, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, model.NewConfigError(source, "read failed: %v", err)
	}
	// A trailing empty line is the file's final newline, not a label.
	for len(names) > 0 && strings.TrimSpace(names[len(names)-1]) == "" {
		names = names[:len(names)-1]
	}
	if len(names) == 0 {
		return nil, model.NewConfigError(source, "no labels")
	}
	return New(names...), nil
}

// Len returns the number of names.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.names)
}

// Name returns the name at index i.
func (t *Table) Name(i int) (string, bool) {
	if t == nil || i < 0 || i >= len(t.names) {
		return "", false
	}
	return t.names[i], true
}

// NameOr returns the name at index i, or "unknown_<i>" when there is none.
func (t *Table) NameOr(i int) string {
	if n, ok := t.Name(i); ok {
		return n
	}
	return fmt.Sprintf("unknown_%d", i)
}

// Index returns the first index carrying name.
func (t *Table) Index(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.mapping[strings.TrimSpace(name)]
	return i, ok
}

// Names returns a copy of all names.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.names...)
}
