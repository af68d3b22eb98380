// Package ssd - decodes SSD-style box regressions and class logits.
package ssd

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/anchors"
	"github.com/nvr-ai/go-tensordecode/models/model"
)

// BoxSize is the number of regression values per anchor: dy, dx, dh, dw.
const BoxSize = 4

// Scale holds the variance divisors the box regressions were trained with.
type Scale struct {
	Y float32 `json:"y" yaml:"y"`
	X float32 `json:"x" yaml:"x"`
	H float32 `json:"h" yaml:"h"`
	W float32 `json:"w" yaml:"w"`
}

// DefaultScale is the scale used by TensorFlow SSD MobileNet exports.
var DefaultScale = Scale{Y: 10.0, X: 10.0, H: 5.0, W: 5.0}

// BoxDecoder converts per-anchor regression offsets into pixel boxes.
type BoxDecoder struct {
	anchors     *anchors.Table
	scale       Scale
	modelWidth  float32
	modelHeight float32
}

// NewBoxDecoder creates a decoder for a model producing detectionMax anchors.
//
// Arguments:
//   - table: The prior box table. Its length must equal detectionMax.
//   - detectionMax: The number of anchors the model produces.
//   - scale: Regression variance divisors. All must be non-zero.
//   - modelWidth, modelHeight: The model input resolution in pixels.
//
// Returns:
//   - *BoxDecoder: The decoder.
//   - error: A *model.ConfigError on any mismatch.
func NewBoxDecoder(table *anchors.Table, detectionMax int, scale Scale, modelWidth, modelHeight int) (*BoxDecoder, error) {
	if table == nil {
		return nil, model.NewConfigError("", "box decoder requires an anchor table")
	}
	if table.Len() != detectionMax {
		return nil, model.NewConfigError("", "anchor table has %d priors, detection max is %d", table.Len(), detectionMax)
	}
	if scale.Y == 0 || scale.X == 0 || scale.H == 0 || scale.W == 0 {
		return nil, model.NewConfigError("", "box scale must be non-zero, got %+v", scale)
	}
	if modelWidth <= 0 || modelHeight <= 0 {
		return nil, model.NewConfigError("", "model size must be positive, got %dx%d", modelWidth, modelHeight)
	}
	return &BoxDecoder{
		anchors:     table,
		scale:       scale,
		modelWidth:  float32(modelWidth),
		modelHeight: float32(modelHeight),
	}, nil
}

// DetectionMax returns the number of anchors.
func (d *BoxDecoder) DetectionMax() int {
	return d.anchors.Len()
}

// Decode converts raw regressions into boxes, one per anchor, in anchor order. No
// filtering is done.
//
// Arguments:
//   - raw: DetectionMax*4 floats, (dy, dx, dh, dw) per anchor.
//
// Returns:
//   - []images.Box: DetectionMax boxes in model input pixels.
//   - error: A *model.FrameFormatError on a size mismatch.
func (d *BoxDecoder) Decode(raw []float32) ([]images.Box, error) {
	n := d.anchors.Len()
	if len(raw) != n*BoxSize {
		return nil, model.NewFrameFormatError("boxes", n*BoxSize, len(raw))
	}

	boxes := make([]images.Box, n)
	for i := 0; i < n; i++ {
		p := d.anchors.At(i)
		o := i * BoxSize

		yCenter := raw[o]/d.scale.Y*p.Height + p.YCenter
		xCenter := raw[o+1]/d.scale.X*p.Width + p.XCenter
		h := math32.Exp(raw[o+2]/d.scale.H) * p.Height
		w := math32.Exp(raw[o+3]/d.scale.W) * p.Width

		yMin := yCenter - h/2
		xMin := xCenter - w/2
		yMax := yCenter + h/2
		xMax := xCenter + w/2

		boxes[i] = images.Box{
			X:      xMin * d.modelWidth,
			Y:      yMin * d.modelHeight,
			Width:  (xMax - xMin) * d.modelWidth,
			Height: (yMax - yMin) * d.modelHeight,
		}
	}
	return boxes, nil
}
