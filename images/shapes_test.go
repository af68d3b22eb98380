package images

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIoU_Correctness validates the inclusive-overlap IoU against hand-computed values.
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		a        Box
		b        Box
		expected float32
	}{
		{
			name:     "Identical boxes",
			a:        Box{X: 0, Y: 0, Width: 100, Height: 100},
			b:        Box{X: 0, Y: 0, Width: 100, Height: 100},
			expected: 10201.0 / 9799.0, // 101*101 / (20000-10201)
		},
		{
			name:     "No overlap",
			a:        Box{X: 0, Y: 0, Width: 100, Height: 100},
			b:        Box{X: 200, Y: 200, Width: 100, Height: 100},
			expected: 0,
		},
		{
			name:     "Touching edges count one pixel",
			a:        Box{X: 0, Y: 0, Width: 100, Height: 100},
			b:        Box{X: 100, Y: 0, Width: 100, Height: 100},
			expected: 101.0 / 19899.0,
		},
		{
			name:     "Partial overlap",
			a:        Box{X: 0, Y: 0, Width: 100, Height: 100},
			b:        Box{X: 50, Y: 50, Width: 100, Height: 100},
			expected: 2601.0 / 17399.0,
		},
		{
			name:     "One inside other",
			a:        Box{X: 0, Y: 0, Width: 100, Height: 100},
			b:        Box{X: 25, Y: 25, Width: 50, Height: 50},
			expected: 2601.0 / 9899.0,
		},
		{
			name:     "Zero area boxes",
			a:        Box{X: 10, Y: 10},
			b:        Box{X: 10, Y: 10},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.a, tt.b)
			assert.InDelta(t, tt.expected, result, 1e-4)

			reverse := CalculateIoU(tt.b, tt.a)
			assert.InDelta(t, result, reverse, 1e-6, "IoU must be symmetric")
			assert.GreaterOrEqual(t, result, float32(0))
		})
	}
}

func TestIoU_NeverNaN(t *testing.T) {
	degenerate := []Box{
		{},
		{X: 5, Y: 5, Width: -3, Height: 2},
		{X: 0, Y: 0, Width: 0, Height: 50},
	}
	for _, a := range degenerate {
		for _, b := range degenerate {
			iou := CalculateIoU(a, b)
			assert.False(t, math.IsNaN(float64(iou)), "IoU(%v, %v) is NaN", a, b)
			assert.GreaterOrEqual(t, iou, float32(0))
		}
	}
}

func TestBox_Geometry(t *testing.T) {
	b := Box{X: 10, Y: 20, Width: 30, Height: 40}

	assert.Equal(t, float32(1200), b.Area())

	cx, cy := b.Center()
	assert.Equal(t, float32(25), cx)
	assert.Equal(t, float32(40), cy)

	mx, my := b.Max()
	assert.Equal(t, float32(40), mx)
	assert.Equal(t, float32(60), my)
}

func BenchmarkIoU_PartialOverlap(b *testing.B) {
	a := Box{X: 0, Y: 0, Width: 100, Height: 100}
	o := Box{X: 50, Y: 50, Width: 100, Height: 100}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(a, o)
	}
}
