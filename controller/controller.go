// Package controller - turns published snapshots into pan/tilt servo commands that keep
// the largest detected target centered in the video frame.
package controller

import (
	"context"
	"image"
	"math"

	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/logger"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/pipeline"
	"github.com/nvr-ai/go-tensordecode/snapshot"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Defaults of the pan/tilt kit the tracker was built for.
const (
	DefaultMaxTargets = 10
	DefaultDeadband   = 5
	DefaultGain       = 1.0 / 180
	DefaultPanMax     = 180
	DefaultTiltMax    = 135
	DefaultCenter     = 90
)

// Actuator moves the servos.
type Actuator interface {
	SetAngles(pan, tilt float64) error
}

// ServoConfig holds the servo control law parameters.
type ServoConfig struct {
	// Errors at or below this many pixels are ignored.
	Deadband int `json:"deadband" yaml:"deadband"`
	// Degrees moved per pixel of error.
	Gain    float64 `json:"gain" yaml:"gain"`
	PanMax  float64 `json:"pan_max" yaml:"pan_max"`
	TiltMax float64 `json:"tilt_max" yaml:"tilt_max"`
}

// DefaultServoConfig returns the reference control law.
func DefaultServoConfig() ServoConfig {
	return ServoConfig{
		Deadband: DefaultDeadband,
		Gain:     DefaultGain,
		PanMax:   DefaultPanMax,
		TiltMax:  DefaultTiltMax,
	}
}

// Servo is the pan/tilt state. It starts centered.
type Servo struct {
	Config ServoConfig
	Pan    float64
	Tilt   float64
}

// NewServo creates a centered servo.
func NewServo(cfg ServoConfig) *Servo {
	return &Servo{Config: cfg, Pan: DefaultCenter, Tilt: DefaultCenter}
}

// Aim moves toward the target so its center approaches the video center. Each axis
// moves by -error*Gain when its pixel error exceeds the deadband, then is clamped to
// [0, max].
//
// Arguments:
//   - target: The target in video pixels.
//   - video: The video resolution.
//
// Returns:
//   - pan, tilt: The new angles.
func (s *Servo) Aim(target image.Rectangle, video images.Resolution) (pan, tilt float64) {
	objX := target.Min.X + target.Dx()/2
	objY := target.Min.Y + target.Dy()/2
	errPan := objX - video.Width/2
	errTilt := objY - video.Height/2

	if abs(errPan) > s.Config.Deadband {
		s.Pan -= float64(errPan) * s.Config.Gain
	}
	if abs(errTilt) > s.Config.Deadband {
		s.Tilt -= float64(errTilt) * s.Config.Gain
	}
	s.Pan = clamp(s.Pan, 0, s.Config.PanMax)
	s.Tilt = clamp(s.Tilt, 0, s.Config.TiltMax)
	return s.Pan, s.Tilt
}

// SelectTarget returns the index of the detection with the largest video-space area
// among the first limit detections. Ties keep the earlier detection.
//
// Arguments:
//   - dets: Detections in model pixels.
//   - scaler: Maps model pixels to video pixels.
//   - limit: How many leading detections are considered. Zero or less considers all.
//
// Returns:
//   - int: The index of the target.
//   - bool: False when there are no detections.
func SelectTarget(dets []model.Detection, scaler images.Scaler, limit int) (int, bool) {
	if limit <= 0 || limit > len(dets) {
		limit = len(dets)
	}
	best, bestArea := -1, -1
	for i := 0; i < limit; i++ {
		r := scaler.Box(dets[i].Box)
		area := r.Dx() * r.Dy()
		if area > bestArea {
			best, bestArea = i, area
		}
	}
	return best, best >= 0
}

// Controller tracks the largest detection of one head.
type Controller struct {
	// The detection head whose results are tracked.
	Head       string
	Scaler     images.Scaler
	MaxTargets int
	Servo      *Servo
	Actuator   Actuator
	Log        logrus.FieldLogger
}

// Command is one servo update.
type Command struct {
	// Index of the target within the head's detections.
	Index  int
	Target model.Detection
	Box    image.Rectangle
	Pan    float64
	Tilt   float64
}

// Update computes the servo command for a snapshot.
//
// Returns:
//   - Command: The command.
//   - bool: False when the snapshot has no target for the head.
func (c *Controller) Update(snap *pipeline.Snapshot) (Command, bool) {
	if snap == nil {
		return Command{}, false
	}
	dets := snap.Detections[c.Head]
	idx, ok := SelectTarget(dets, c.Scaler, c.MaxTargets)
	if !ok {
		return Command{}, false
	}

	box := c.Scaler.Box(dets[idx].Box)
	pan, tilt := c.Servo.Aim(box, c.Scaler.Video)
	return Command{Index: idx, Target: dets[idx], Box: box, Pan: pan, Tilt: tilt}, true
}

// Run applies a command for every new snapshot until ctx is done.
func (c *Controller) Run(ctx context.Context, mailbox *snapshot.Mailbox[pipeline.Snapshot]) error {
	var seen uint64
	for {
		snap, seq, err := mailbox.Wait(ctx, seen)
		if err != nil {
			return err
		}
		seen = seq

		cmd, ok := c.Update(snap)
		if !ok {
			continue
		}
		if err := c.Actuator.SetAngles(cmd.Pan, cmd.Tilt); err != nil {
			return errors.Wrap(err, "set servo angles")
		}
		if c.Log != nil {
			c.Log.WithFields(logrus.Fields{
				logger.FieldHead:  c.Head,
				logger.FieldFrame: snap.Frame,
				"pan":             cmd.Pan,
				"tilt":            cmd.Tilt,
			}).Debug("servo updated")
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
