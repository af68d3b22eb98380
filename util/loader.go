package util

import (
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// TensorFrame is one recorded frame of model outputs.
type TensorFrame struct {
	// Frame is the frame number.
	Frame int
	// Tensors maps a head name to its raw buffers, ordered by tensor index.
	Tensors map[string][][]byte
	// ImagePath is the recorded video frame, empty when none was captured.
	ImagePath string
}

// LoadDirectoryTensorFrames reads recorded tensor dumps from a directory. Tensor files
// are named frame-<N>.<head>.<index>.bin; an optional frame-<N>.jpg, .jpeg or .png holds
// the video frame. Other files are ignored.
//
// Arguments:
//   - dir: Directory path containing the dumps.
//
// Returns:
//   - []TensorFrame: Frames sorted by frame number.
//   - error: Error if reading fails or a tensor file name is malformed.
func LoadDirectoryTensorFrames(dir string) ([]TensorFrame, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, "read dump directory")
	}

	type indexed struct {
		index int
		data  []byte
	}
	frames := make(map[int]*TensorFrame)
	pending := make(map[int]map[string][]indexed)

	get := func(n int) *TensorFrame {
		f, ok := frames[n]
		if !ok {
			f = &TensorFrame{Frame: n, Tensors: make(map[string][][]byte)}
			frames[n] = f
			pending[n] = make(map[string][]indexed)
		}
		return f
	}

	for _, file := range files {
		name := file.Name()
		if file.IsDir() || !strings.HasPrefix(name, "frame-") {
			continue
		}

		ext := filepath.Ext(name)
		switch ext {
		case ".jpg", ".jpeg", ".png":
			n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "frame-"), ext))
			if err != nil {
				continue
			}
			get(n).ImagePath = filepath.Join(dir, name)
		case ".bin":
			parts := strings.Split(strings.TrimSuffix(strings.TrimPrefix(name, "frame-"), ext), ".")
			if len(parts) != 3 {
				return nil, errors.Errorf("tensor dump %q: want frame-<N>.<head>.<index>.bin", name)
			}
			n, err := strconv.Atoi(parts[0])
			if err != nil {
				return nil, errors.Wrapf(err, "tensor dump %q: frame number", name)
			}
			idx, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, errors.Wrapf(err, "tensor dump %q: tensor index", name)
			}
			data, err := os.ReadFile(filepath.Join(dir, name))
			if err != nil {
				return nil, errors.Wrapf(err, "read tensor dump %q", name)
			}
			get(n)
			pending[n][parts[1]] = append(pending[n][parts[1]], indexed{index: idx, data: data})
		}
	}

	out := make([]TensorFrame, 0, len(frames))
	for n, f := range frames {
		for head, tensors := range pending[n] {
			sort.Slice(tensors, func(i, j int) bool { return tensors[i].index < tensors[j].index })
			bufs := make([][]byte, len(tensors))
			for i, t := range tensors {
				bufs[i] = t.data
			}
			f.Tensors[head] = bufs
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Frame < out[j].Frame
	})
	return out, nil
}

// WriteTensorFrame writes the tensors of one frame in the layout read by
// LoadDirectoryTensorFrames.
func WriteTensorFrame(dir string, frame int, tensors map[string][][]byte) error {
	for head, bufs := range tensors {
		if strings.Contains(head, ".") {
			return errors.Errorf("head name %q must not contain '.'", head)
		}
		for i, b := range bufs {
			name := "frame-" + strconv.Itoa(frame) + "." + head + "." + strconv.Itoa(i) + ".bin"
			if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
				return errors.Wrapf(err, "write tensor dump %q", name)
			}
		}
	}
	return nil
}
