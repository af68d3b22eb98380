// Package anchors - Prior box table for SSD-style detectors.
package anchors

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/pkg/errors"
)

// Rows is the number of parameter lines in a prior source, in order
// yCenter, xCenter, height, width.
const Rows = 4

// Prior is the reference box of a single anchor in normalized coordinates.
type Prior struct {
	YCenter float32
	XCenter float32
	Height  float32
	Width   float32
}

// Table holds the prior box parameters of every anchor. It is immutable after loading.
type Table struct {
	yCenter []float32
	xCenter []float32
	height  []float32
	width   []float32
}

// Load reads a prior table from a text file.
//
// Arguments:
//   - path: The path to the box-prior text file.
//   - detectionMax: The number of anchors the model produces.
//
// Returns:
//   - *Table: The loaded table.
//   - error: A *model.ConfigError if the file is missing or malformed.
func Load(path string, detectionMax int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, model.NewConfigError(path, "cannot open box priors: %v", err)
	}
	defer f.Close()

	t, err := parse(f, path, detectionMax)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Parse reads a prior table from r. See Load.
func Parse(r io.Reader, detectionMax int) (*Table, error) {
	return parse(r, "box priors", detectionMax)
}

func parse(r io.Reader, source string, detectionMax int) (*Table, error) {
	if detectionMax <= 0 {
		return nil, model.NewConfigError(source, "detection max must be positive, got %d", detectionMax)
	}

	rows := make([][]float32, 0, Rows)
	scanner := bufio.NewScanner(r)
	// A 1917-anchor line is ~20KB; leave plenty of room.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() && len(rows) < Rows {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < detectionMax {
			return nil, model.NewConfigError(source, "line %d has %d values, want at least %d", len(rows)+1, len(fields), detectionMax)
		}

		row := make([]float32, detectionMax)
		for i := 0; i < detectionMax; i++ {
			v, err := strconv.ParseFloat(fields[i], 32)
			if err != nil {
				return nil, model.NewConfigError(source, "line %d value %d: %v", len(rows)+1, i, err)
			}
			row[i] = float32(v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(model.NewConfigError(source, "read failed: %v", err), "parse box priors")
	}
	if len(rows) < Rows {
		return nil, model.NewConfigError(source, "expected %d lines, got %d", Rows, len(rows))
	}

	return &Table{
		yCenter: rows[0],
		xCenter: rows[1],
		height:  rows[2],
		width:   rows[3],
	}, nil
}

// New builds a table directly from parallel parameter slices. All slices must have
// the same non-zero length.
func New(yCenter, xCenter, height, width []float32) (*Table, error) {
	n := len(yCenter)
	if n == 0 || len(xCenter) != n || len(height) != n || len(width) != n {
		return nil, model.NewConfigError("", "prior rows must share a non-zero length, got %d/%d/%d/%d",
			len(yCenter), len(xCenter), len(height), len(width))
	}
	return &Table{
		yCenter: append([]float32(nil), yCenter...),
		xCenter: append([]float32(nil), xCenter...),
		height:  append([]float32(nil), height...),
		width:   append([]float32(nil), width...),
	}, nil
}

// Len returns the number of anchors.
func (t *Table) Len() int {
	return len(t.yCenter)
}

// At returns the prior of anchor i. It panics if i is out of range.
func (t *Table) At(i int) Prior {
	return Prior{
		YCenter: t.yCenter[i],
		XCenter: t.xCenter[i],
		Height:  t.height[i],
		Width:   t.width[i],
	}
}
