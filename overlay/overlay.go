// Package overlay - draws decoded snapshots onto video frames with gocv.
package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/pipeline"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Colors used for drawing.
var (
	BoxColor      = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	TargetColor   = color.RGBA{R: 0, G: 0, B: 255, A: 0}
	TextColor     = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	KeypointColor = color.RGBA{R: 0, G: 255, B: 0, A: 0}
	MaskColor     = color.RGBA{R: 0, G: 0, B: 0, A: 0}
)

// EyeMask covers the eyes of each face with a black bar. Pose head i holds the
// keypoints of the crop of face detection i.
type EyeMask struct {
	FaceHead  string
	PoseHeads []string
	// Keypoint channels of the left and right eye.
	LeftEye, RightEye int
	Thickness         int
}

// Renderer draws snapshots. Scalers map each head's model resolution to the video.
type Renderer struct {
	Scalers map[string]images.Scaler
	// Detections drawn per head. Zero draws all.
	MaxDetections int
	// Index of the highlighted detection per head, e.g. the servo target.
	Highlight map[string]int
	// Optional eye masking.
	Mask *EyeMask
	// Minimum keypoint score drawn.
	MinKeypointScore float32
}

// Draw renders snap onto img, which must be a BGR frame in video resolution.
//
// Arguments:
//   - img: The video frame.
//   - snap: The snapshot to draw. Nil draws nothing.
//
// Returns:
//   - error: An error if img is empty or a head has no scaler.
func (r *Renderer) Draw(img *gocv.Mat, snap *pipeline.Snapshot) error {
	if img == nil || img.Empty() {
		return errors.New("overlay: empty frame")
	}
	if snap == nil {
		return nil
	}

	for head, dets := range snap.Detections {
		s, ok := r.Scalers[head]
		if !ok {
			return errors.Errorf("overlay: no scaler for head %q", head)
		}
		r.drawDetections(img, head, dets, s)
	}

	if r.Mask != nil {
		if err := r.drawMask(img, snap); err != nil {
			return err
		}
		return nil
	}

	for head, kps := range snap.Poses {
		s, ok := r.Scalers[head]
		if !ok {
			return errors.Errorf("overlay: no scaler for head %q", head)
		}
		for _, kp := range kps {
			if kp.Score < r.MinKeypointScore {
				continue
			}
			gocv.Circle(img, s.Point(kp.X, kp.Y), 4, KeypointColor, -1)
		}
	}
	return nil
}

func (r *Renderer) drawDetections(img *gocv.Mat, head string, dets []model.Detection, s images.Scaler) {
	highlight, hasHighlight := r.Highlight[head]
	for i, d := range dets {
		if r.MaxDetections > 0 && i >= r.MaxDetections {
			break
		}
		rect := s.Box(d.Box)
		c := BoxColor
		if hasHighlight && i == highlight {
			c = TargetColor
		}
		gocv.Rectangle(img, rect, c, 2)
		gocv.PutText(img, fmt.Sprintf("%s %.2f", d.Label, d.Prob), image.Pt(rect.Min.X+4, rect.Min.Y+16),
			gocv.FontHersheyPlain, 1.2, TextColor, 1)
	}
}

// drawMask maps each pose head's eye keypoints from pose model space into its face box.
func (r *Renderer) drawMask(img *gocv.Mat, snap *pipeline.Snapshot) error {
	m := r.Mask
	s, ok := r.Scalers[m.FaceHead]
	if !ok {
		return errors.Errorf("overlay: no scaler for head %q", m.FaceHead)
	}
	faces := snap.Detections[m.FaceHead]
	thickness := m.Thickness
	if thickness <= 0 {
		thickness = 20
	}

	for i, poseHead := range m.PoseHeads {
		if i >= len(faces) {
			break
		}
		ps, ok := r.Scalers[poseHead]
		if !ok {
			return errors.Errorf("overlay: no scaler for head %q", poseHead)
		}
		le, lok := keypoint(snap.Poses[poseHead], m.LeftEye)
		re, rok := keypoint(snap.Poses[poseHead], m.RightEye)
		if !lok || !rok {
			continue
		}

		face := s.Box(faces[i].Box)
		crop := images.NewScaler(ps.Model, images.Resolution{Width: face.Dx(), Height: face.Dy()})
		left := crop.Point(le.X, le.Y).Add(face.Min)
		right := crop.Point(re.X, re.Y).Add(face.Min)
		gocv.Line(img, left, right, MaskColor, thickness)
	}
	return nil
}

func keypoint(kps []model.Keypoint, label int) (model.Keypoint, bool) {
	for _, kp := range kps {
		if kp.Label == label {
			return kp, true
		}
	}
	return model.Keypoint{}, false
}

// WriteImage encodes img to path. The format follows the file extension.
func WriteImage(path string, img gocv.Mat) error {
	if ok := gocv.IMWrite(path, img); !ok {
		return errors.Errorf("overlay: cannot write %s", path)
	}
	return nil
}

// ReadImage decodes an image file into a BGR frame of the given resolution, resizing
// when it differs.
func ReadImage(path string, video images.Resolution) (gocv.Mat, error) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), errors.Errorf("overlay: cannot read %s", path)
	}
	if img.Cols() == video.Width && img.Rows() == video.Height {
		return img, nil
	}
	resized := gocv.NewMat()
	gocv.Resize(img, &resized, image.Pt(video.Width, video.Height), 0, 0, gocv.InterpolationLinear)
	img.Close()
	return resized, nil
}

// Blank returns a black BGR frame of the given resolution.
func Blank(video images.Resolution) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), video.Height, video.Width, gocv.MatTypeCV8UC3)
}
