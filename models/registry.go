// Package models - registry for decoder heads.
package models

import (
	"github.com/nvr-ai/go-tensordecode/config"
	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/anchors"
	"github.com/nvr-ai/go-tensordecode/models/labels"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/models/pose"
	"github.com/nvr-ai/go-tensordecode/models/ssd"
	"github.com/pkg/errors"
)

// Output is the decoded result of one head for one frame.
type Output struct {
	Head       string
	Kind       model.Kind
	Detections []model.Detection
	Keypoints  []model.Keypoint
	Labels     *labels.Table
}

// Head decodes the raw output tensors of one model.
type Head interface {
	// Name returns the configured head name.
	Name() string
	// Kind returns the decoding strategy.
	Kind() model.Kind
	// Labels returns the class or keypoint name table.
	Labels() *labels.Table
	// Resolution returns the model input resolution decoded coordinates are in.
	Resolution() images.Resolution
	// Decode decodes the head's tensors, in model output order, for one frame.
	Decode(tensors [][]byte) (Output, error)
}

// NewHead creates a decoder head from its configuration, loading the prior and label
// sources it references.
//
// Arguments:
//   - cfg: The head configuration.
//
// Returns:
//   - Head: The decoder head.
//   - error: A *model.ConfigError if a source cannot be loaded or a parameter is invalid.
func NewHead(cfg config.Head) (Head, error) {
	names, err := loadLabels(cfg)
	if err != nil {
		return nil, err
	}
	base := head{name: cfg.Name, labels: names, resolution: cfg.ModelResolution()}

	switch cfg.Kind {
	case model.KindSSD:
		table, err := anchors.Load(cfg.PriorsPath, cfg.DetectionMax)
		if err != nil {
			return nil, errors.Wrapf(err, "head %q", cfg.Name)
		}
		h, err := ssd.NewHead(table, cfg.SSD())
		if err != nil {
			return nil, errors.Wrapf(err, "head %q", cfg.Name)
		}
		return &ssdHead{head: base, ssd: h}, nil
	case model.KindPose:
		ex, err := pose.NewExtractor(cfg.Pose(), names)
		if err != nil {
			return nil, errors.Wrapf(err, "head %q", cfg.Name)
		}
		return &poseHead{head: base, extractor: ex}, nil
	default:
		return nil, model.NewConfigError(cfg.Name, "unsupported head kind %q", cfg.Kind)
	}
}

// NewHeads creates every configured head, in order.
func NewHeads(cfgs []config.Head) ([]Head, error) {
	heads := make([]Head, 0, len(cfgs))
	for _, c := range cfgs {
		h, err := NewHead(c)
		if err != nil {
			return nil, err
		}
		heads = append(heads, h)
	}
	return heads, nil
}

func loadLabels(cfg config.Head) (*labels.Table, error) {
	if cfg.LabelsPath != "" {
		t, err := labels.Load(cfg.LabelsPath)
		if err != nil {
			return nil, errors.Wrapf(err, "head %q", cfg.Name)
		}
		return t, nil
	}
	switch {
	case cfg.Kind == model.KindPose:
		return labels.New(labels.PoseKeypoints...), nil
	case cfg.LabelSize == len(labels.FaceClasses):
		return labels.New(labels.FaceClasses...), nil
	default:
		return labels.COCO(), nil
	}
}

type head struct {
	name       string
	labels     *labels.Table
	resolution images.Resolution
}

func (h *head) Name() string                  { return h.name }
func (h *head) Labels() *labels.Table         { return h.labels }
func (h *head) Resolution() images.Resolution { return h.resolution }

type ssdHead struct {
	head
	ssd *ssd.Head
}

func (h *ssdHead) Kind() model.Kind { return model.KindSSD }

// Decode expects the box tensor followed by the score tensor.
func (h *ssdHead) Decode(tensors [][]byte) (Output, error) {
	if len(tensors) < 2 {
		return Output{}, model.NewFrameFormatError(h.name+" tensors", 2, len(tensors))
	}
	dets, err := h.ssd.DecodeBytes(tensors[0], tensors[1])
	if err != nil {
		return Output{}, err
	}
	return Output{Head: h.name, Kind: model.KindSSD, Detections: dets, Labels: h.labels}, nil
}

type poseHead struct {
	head
	extractor *pose.Extractor
}

func (h *poseHead) Kind() model.Kind { return model.KindPose }

// Decode expects the heatmap followed by the offsets. Displacement maps some exports
// append are ignored.
func (h *poseHead) Decode(tensors [][]byte) (Output, error) {
	if len(tensors) < 2 {
		return Output{}, model.NewFrameFormatError(h.name+" tensors", 2, len(tensors))
	}
	kps, err := h.extractor.ExtractBytes(tensors[0], tensors[1])
	if err != nil {
		return Output{}, err
	}
	return Output{Head: h.name, Kind: model.KindPose, Keypoints: kps, Labels: h.labels}, nil
}
