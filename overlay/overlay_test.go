package overlay

import (
	"path/filepath"
	"testing"

	"github.com/nvr-ai/go-tensordecode/aggregator"
	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

var square = images.Resolution{Width: 300, Height: 300}

func white() gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 0), square.Height, square.Width, gocv.MatTypeCV8UC3)
}

// bgr returns the pixel at (x, y).
func bgr(img gocv.Mat, x, y int) [3]uint8 {
	return [3]uint8{img.GetUCharAt(y, x*3), img.GetUCharAt(y, x*3+1), img.GetUCharAt(y, x*3+2)}
}

func TestDraw_DetectionsAndKeypoints(t *testing.T) {
	img := Blank(square)
	defer img.Close()

	r := &Renderer{Scalers: map[string]images.Scaler{
		"face": images.NewScaler(square, square),
		"pose": images.NewScaler(square, square),
	}}
	snap := &pipeline.Snapshot{
		Detections: aggregator.Result{"face": {
			{ClassID: 1, Label: "face", Prob: 0.9, Box: images.Box{X: 30, Y: 30, Width: 60, Height: 60}},
		}},
		Poses: map[string][]model.Keypoint{"pose": {{Label: 0, X: 150, Y: 200, Score: 0.8}}},
	}

	require.NoError(t, r.Draw(&img, snap))

	assert.Equal(t, [3]uint8{0, 0, 255}, bgr(img, 60, 30), "box edge is red")
	assert.Equal(t, [3]uint8{0, 255, 0}, bgr(img, 150, 200), "keypoint is green")
	assert.Equal(t, [3]uint8{0, 0, 0}, bgr(img, 250, 250))
}

func TestDraw_Highlight(t *testing.T) {
	img := Blank(square)
	defer img.Close()

	r := &Renderer{
		Scalers:   map[string]images.Scaler{"face": images.NewScaler(square, square)},
		Highlight: map[string]int{"face": 0},
	}
	snap := &pipeline.Snapshot{Detections: aggregator.Result{"face": {
		{Box: images.Box{X: 30, Y: 30, Width: 60, Height: 60}},
	}}}

	require.NoError(t, r.Draw(&img, snap))
	assert.Equal(t, [3]uint8{255, 0, 0}, bgr(img, 60, 30), "target edge is blue")
}

func TestDraw_EyeMask(t *testing.T) {
	img := white()
	defer img.Close()

	pose := images.Resolution{Width: 100, Height: 100}
	r := &Renderer{
		Scalers: map[string]images.Scaler{
			"face":   images.NewScaler(square, square),
			"pose-0": images.NewScaler(pose, square),
		},
		Mask: &EyeMask{FaceHead: "face", PoseHeads: []string{"pose-0"}, LeftEye: 1, RightEye: 2, Thickness: 6},
	}
	snap := &pipeline.Snapshot{
		Detections: aggregator.Result{"face": {{Box: images.Box{X: 100, Y: 100, Width: 100, Height: 100}}}},
		Poses: map[string][]model.Keypoint{"pose-0": {
			{Label: 0, X: 50, Y: 60},
			{Label: 1, X: 30, Y: 40},
			{Label: 2, X: 70, Y: 40},
		}},
	}

	require.NoError(t, r.Draw(&img, snap))
	assert.Equal(t, [3]uint8{0, 0, 0}, bgr(img, 150, 140), "bar between the eyes")
	assert.Equal(t, [3]uint8{255, 255, 255}, bgr(img, 150, 170))
}

func TestDraw_Errors(t *testing.T) {
	r := &Renderer{}
	empty := gocv.NewMat()
	defer empty.Close()
	assert.Error(t, r.Draw(&empty, &pipeline.Snapshot{}))

	img := Blank(square)
	defer img.Close()
	assert.NoError(t, r.Draw(&img, nil))
	assert.Error(t, r.Draw(&img, &pipeline.Snapshot{Detections: aggregator.Result{"face": nil}}))
}

func TestWriteAndReadImage(t *testing.T) {
	img := white()
	defer img.Close()

	path := filepath.Join(t.TempDir(), "frame.png")
	require.NoError(t, WriteImage(path, img))

	read, err := ReadImage(path, images.Resolution{Width: 150, Height: 100})
	require.NoError(t, err)
	defer read.Close()
	assert.Equal(t, 150, read.Cols())
	assert.Equal(t, 100, read.Rows())

	_, err = ReadImage(filepath.Join(t.TempDir(), "missing.png"), square)
	assert.Error(t, err)
}
