package ssd

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-tensordecode/models/anchors"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/models/postprocess"
	"github.com/nvr-ai/go-tensordecode/tensors"
	"github.com/pkg/errors"
)

// Config describes one SSD detector head.
type Config struct {
	DetectionMax   int                   `json:"detection_max" yaml:"detection_max"`
	LabelSize      int                   `json:"label_size" yaml:"label_size"`
	Scale          Scale                 `json:"scale" yaml:"scale"`
	ModelWidth     int                   `json:"model_width" yaml:"model_width"`
	ModelHeight    int                   `json:"model_height" yaml:"model_height"`
	ScoreThreshold float32               `json:"score_threshold" yaml:"score_threshold"`
	NMS            postprocess.NMSConfig `json:"nms" yaml:"nms"`
}

// Head runs box decoding, score activation and NMS for one detector.
type Head struct {
	boxes  *BoxDecoder
	scores *ScoreActivator
	nms    postprocess.NMSConfig
}

// NewHead wires the decoding stages of one detector head.
//
// Arguments:
//   - table: The prior box table.
//   - cfg: Head configuration.
//
// Returns:
//   - *Head: The head.
//   - error: A *model.ConfigError if any stage rejects the configuration.
func NewHead(table *anchors.Table, cfg Config) (*Head, error) {
	boxes, err := NewBoxDecoder(table, cfg.DetectionMax, cfg.Scale, cfg.ModelWidth, cfg.ModelHeight)
	if err != nil {
		return nil, errors.Wrap(err, "box decoder")
	}
	scores, err := NewScoreActivator(cfg.LabelSize, cfg.ScoreThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "score activator")
	}
	if cfg.NMS.IoUThreshold < 0 || math32.IsNaN(cfg.NMS.IoUThreshold) {
		return nil, model.NewConfigError("", "iou threshold must be a non-negative number, got %v", cfg.NMS.IoUThreshold)
	}
	return &Head{boxes: boxes, scores: scores, nms: cfg.NMS}, nil
}

// BoxCount returns the element count of the box tensor.
func (h *Head) BoxCount() int {
	return h.boxes.DetectionMax() * BoxSize
}

// ScoreCount returns the element count of the score tensor.
func (h *Head) ScoreCount() int {
	return h.boxes.DetectionMax() * h.scores.LabelSize()
}

// Decode turns one frame's raw tensors into the final detection set.
//
// Arguments:
//   - boxes: The raw box tensor.
//   - scores: The raw score tensor.
//
// Returns:
//   - []model.Detection: Survivors of NMS, at most NMS.MaxDetections when set.
//   - error: A *model.FrameFormatError when either tensor has the wrong size.
func (h *Head) Decode(boxes, scores []float32) ([]model.Detection, error) {
	// Check both sizes before any work so a bad score tensor costs nothing.
	if len(scores) != h.ScoreCount() {
		return nil, model.NewFrameFormatError("scores", h.ScoreCount(), len(scores))
	}
	decoded, err := h.boxes.Decode(boxes)
	if err != nil {
		return nil, err
	}
	candidates, err := h.scores.Activate(scores, decoded)
	if err != nil {
		return nil, err
	}
	return postprocess.ApplyNMS(candidates, &h.nms), nil
}

// DecodeBytes decodes little-endian float32 buffers. See Decode.
func (h *Head) DecodeBytes(boxes, scores []byte) ([]model.Detection, error) {
	b, err := tensors.Float32s(boxes, h.BoxCount(), "boxes")
	if err != nil {
		return nil, err
	}
	s, err := tensors.Float32s(scores, h.ScoreCount(), "scores")
	if err != nil {
		return nil, err
	}
	return h.Decode(b, s)
}
