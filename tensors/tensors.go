// Package tensors - Byte-level tensor contract between the inference stage and the decoder.
package tensors

import (
	"encoding/binary"
	"math"

	"github.com/nvr-ai/go-tensordecode/models/model"
	"gorgonia.org/tensor"
)

// Float32Size is the byte width of one tensor element.
const Float32Size = 4

// Float32s decodes a little-endian float32 buffer holding exactly count elements.
//
// Arguments:
//   - b: The raw tensor buffer.
//   - count: The expected element count.
//   - name: The tensor name, used in errors.
//
// Returns:
//   - []float32: A newly allocated slice of count elements.
//   - error: A *model.FrameFormatError if len(b) != count*4.
func Float32s(b []byte, count int, name string) ([]float32, error) {
	if len(b) != count*Float32Size {
		return nil, model.NewFrameFormatError(name, count, len(b)/Float32Size)
	}
	out := make([]float32, count)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*Float32Size:]))
	}
	return out, nil
}

// Bytes encodes floats as a little-endian buffer. It is the inverse of Float32s.
func Bytes(f []float32) []byte {
	out := make([]byte, len(f)*Float32Size)
	for i, v := range f {
		binary.LittleEndian.PutUint32(out[i*Float32Size:], math.Float32bits(v))
	}
	return out
}

// Dense wraps data in a float32 tensor of the given shape without copying.
//
// Returns:
//   - *tensor.Dense: The shaped tensor backed by data.
//   - error: A *model.FrameFormatError if the shape volume differs from len(data).
func Dense(data []float32, name string, shape ...int) (*tensor.Dense, error) {
	want := Volume(shape...)
	if want != len(data) || want == 0 {
		return nil, model.NewFrameFormatError(name, want, len(data))
	}
	return tensor.New(
		tensor.Of(tensor.Float32),
		tensor.WithShape(shape...),
		tensor.WithBacking(data),
	), nil
}

// Volume returns the element count of a shape.
func Volume(shape ...int) int {
	if len(shape) == 0 {
		return 0
	}
	v := 1
	for _, d := range shape {
		v *= d
	}
	return v
}
