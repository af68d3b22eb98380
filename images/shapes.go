// Package images - Pixel-space geometry for decoded detections.
package images

// Box is an axis-aligned box in pixel space, anchored at its top-left corner.
type Box struct {
	X      float32 `json:"x" yaml:"x"`
	Y      float32 `json:"y" yaml:"y"`
	Width  float32 `json:"width" yaml:"width"`
	Height float32 `json:"height" yaml:"height"`
}

// Area returns Width*Height. Degenerate boxes may report zero or negative area.
func (b Box) Area() float32 {
	return b.Width * b.Height
}

// Center returns the box center.
func (b Box) Center() (float32, float32) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// Max returns the bottom-right corner.
func (b Box) Max() (float32, float32) {
	return b.X + b.Width, b.Y + b.Height
}

// CalculateIoU computes the Intersection over Union of two boxes using inclusive
// pixel overlap: a shared edge counts as one pixel of overlap.
//
// The intersection extent along each axis is max(0, x2-x1+1). The union is
// Area(a) + Area(b) - intersection.
//
// Degenerate inputs do not error:
//   - a non-positive union (zero-area boxes) yields 0.
//   - a negative ratio yields 0.
//
// Inclusive overlap means two identical boxes can report a value above 1.
//
// Arguments:
//   - a: The first box.
//   - b: The second box.
//
// Returns:
//   - float32: The IoU score, never negative.
//
// Example Usage:
// ```go
//
//	a := Box{X: 0, Y: 0, Width: 100, Height: 100}
//	b := Box{X: 50, Y: 50, Width: 100, Height: 100}
//	iou := CalculateIoU(a, b) // 51*51 / (10000+10000-2601) ≈ 0.1495
//
// ```
func CalculateIoU(a, b Box) float32 {
	x1 := max(a.X, b.X)
	y1 := max(a.Y, b.Y)
	ax2, ay2 := a.Max()
	bx2, by2 := b.Max()
	x2 := min(ax2, bx2)
	y2 := min(ay2, by2)

	w := max(0, x2-x1+1)
	h := max(0, y2-y1+1)
	inter := w * h

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}

	iou := inter / union
	if iou < 0 {
		return 0
	}
	return iou
}
