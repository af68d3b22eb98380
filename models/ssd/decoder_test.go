package ssd

import (
	"math"
	"testing"

	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/anchors"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// uniformAnchors returns n anchors centered at (0.5, 0.5) with h=w=0.2.
func uniformAnchors(t *testing.T, n int) *anchors.Table {
	t.Helper()
	y, x, h, w := make([]float32, n), make([]float32, n), make([]float32, n), make([]float32, n)
	for i := 0; i < n; i++ {
		y[i], x[i], h[i], w[i] = 0.5, 0.5, 0.2, 0.2
	}
	table, err := anchors.New(y, x, h, w)
	require.NoError(t, err)
	return table
}

func TestBoxDecoder_ZeroOffsetsKeepAnchor(t *testing.T) {
	dec, err := NewBoxDecoder(uniformAnchors(t, 4), 4, DefaultScale, 300, 300)
	require.NoError(t, err)

	boxes, err := dec.Decode(make([]float32, 4*BoxSize))
	require.NoError(t, err)
	require.Len(t, boxes, 4)

	for _, b := range boxes {
		cx, cy := b.Center()
		assert.InDelta(t, 150, cx, 1e-4)
		assert.InDelta(t, 150, cy, 1e-4)
		assert.InDelta(t, 60, b.Width, 1e-4)
		assert.InDelta(t, 60, b.Height, 1e-4)
		assert.InDelta(t, 120, b.X, 1e-4)
		assert.InDelta(t, 120, b.Y, 1e-4)
	}
}

func TestBoxDecoder_RoundTrip(t *testing.T) {
	const modelW, modelH = 300.0, 200.0
	prior := anchors.Prior{YCenter: 0.45, XCenter: 0.55, Height: 0.3, Width: 0.25}
	table, err := anchors.New(
		[]float32{prior.YCenter}, []float32{prior.XCenter},
		[]float32{prior.Height}, []float32{prior.Width},
	)
	require.NoError(t, err)

	target := images.Box{X: 100, Y: 50, Width: 90, Height: 70}

	// Invert the decode formula in float64.
	wn := float64(target.Width) / modelW
	hn := float64(target.Height) / modelH
	xc := float64(target.X)/modelW + wn/2
	yc := float64(target.Y)/modelH + hn/2
	raw := []float32{
		float32((yc - float64(prior.YCenter)) / float64(prior.Height) * float64(DefaultScale.Y)),
		float32((xc - float64(prior.XCenter)) / float64(prior.Width) * float64(DefaultScale.X)),
		float32(math.Log(hn/float64(prior.Height)) * float64(DefaultScale.H)),
		float32(math.Log(wn/float64(prior.Width)) * float64(DefaultScale.W)),
	}

	dec, err := NewBoxDecoder(table, 1, DefaultScale, modelW, modelH)
	require.NoError(t, err)
	boxes, err := dec.Decode(raw)
	require.NoError(t, err)

	assert.InEpsilon(t, target.X, boxes[0].X, 1e-4)
	assert.InEpsilon(t, target.Y, boxes[0].Y, 1e-4)
	assert.InEpsilon(t, target.Width, boxes[0].Width, 1e-4)
	assert.InEpsilon(t, target.Height, boxes[0].Height, 1e-4)
}

func TestBoxDecoder_ScaleInvariance(t *testing.T) {
	table := uniformAnchors(t, 2)
	raw := []float32{0.3, -0.2, 0.5, -0.4, -1, 1, 0.1, 0.2}

	small, err := NewBoxDecoder(table, 2, DefaultScale, 300, 200)
	require.NoError(t, err)
	large, err := NewBoxDecoder(table, 2, DefaultScale, 600, 400)
	require.NoError(t, err)

	a, err := small.Decode(raw)
	require.NoError(t, err)
	b, err := large.Decode(raw)
	require.NoError(t, err)

	for i := range a {
		assert.InEpsilon(t, 2*a[i].Width, b[i].Width, 1e-6)
		assert.InEpsilon(t, 2*a[i].Height, b[i].Height, 1e-6)
		assert.InEpsilon(t, 2*a[i].X, b[i].X, 1e-6)
	}

	again, err := small.Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, a, again, "decode must be deterministic")
}

func TestBoxDecoder_SizeMismatch(t *testing.T) {
	dec, err := NewBoxDecoder(uniformAnchors(t, 4), 4, DefaultScale, 300, 300)
	require.NoError(t, err)

	_, err = dec.Decode(make([]float32, 15))
	require.Error(t, err)
	assert.True(t, model.IsFrameFormatError(err))
}

func TestNewBoxDecoder_ConfigErrors(t *testing.T) {
	table := uniformAnchors(t, 4)

	tests := []struct {
		name  string
		table *anchors.Table
		max   int
		scale Scale
		w, h  int
	}{
		{name: "nil table", table: nil, max: 4, scale: DefaultScale, w: 300, h: 300},
		{name: "anchor count mismatch", table: table, max: 1917, scale: DefaultScale, w: 300, h: 300},
		{name: "zero scale", table: table, max: 4, scale: Scale{Y: 10, X: 10, H: 0, W: 5}, w: 300, h: 300},
		{name: "zero model size", table: table, max: 4, scale: DefaultScale, w: 0, h: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBoxDecoder(tt.table, tt.max, tt.scale, tt.w, tt.h)
			require.Error(t, err)
			assert.True(t, model.IsConfigError(err))
		})
	}
}
