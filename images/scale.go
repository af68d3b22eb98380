package images

import "image"

// Scaler maps model-input pixel coordinates onto a video frame.
type Scaler struct {
	Model Resolution
	Video Resolution
}

// NewScaler creates a scaler from a model input resolution to a video resolution.
func NewScaler(model, video Resolution) Scaler {
	return Scaler{Model: model, Video: video}
}

// Box converts a model-space box into an integer video-space rectangle. Each value is
// multiplied by the video size and floor-divided by the model size, matching how the
// capture pipeline crops and draws.
//
// Arguments:
//   - b: A box in model input pixels.
//
// Returns:
//   - image.Rectangle: The same region in video pixels. Zero when either resolution is invalid.
func (s Scaler) Box(b Box) image.Rectangle {
	if !s.Model.Valid() || !s.Video.Valid() {
		return image.Rectangle{}
	}
	x := s.scaleX(b.X)
	y := s.scaleY(b.Y)
	w := s.scaleX(b.Width)
	h := s.scaleY(b.Height)
	return image.Rect(x, y, x+w, y+h)
}

// Point converts a model-space point into video pixels.
func (s Scaler) Point(x, y float32) image.Point {
	if !s.Model.Valid() || !s.Video.Valid() {
		return image.Point{}
	}
	return image.Pt(s.scaleX(x), s.scaleY(y))
}

// Margins returns the left, top, right and bottom margins that crop the video frame
// down to the given box. A negative margin means the box runs past that edge.
func (s Scaler) Margins(b Box) (left, top, right, bottom int) {
	r := s.Box(b)
	return r.Min.X, r.Min.Y, s.Video.Width - r.Max.X, s.Video.Height - r.Max.Y
}

func (s Scaler) scaleX(v float32) int {
	return floorDiv(v*float32(s.Video.Width), float32(s.Model.Width))
}

func (s Scaler) scaleY(v float32) int {
	return floorDiv(v*float32(s.Video.Height), float32(s.Model.Height))
}

func floorDiv(num, den float32) int {
	q := num / den
	i := int(q)
	if q < 0 && float32(i) != q {
		i--
	}
	return i
}
