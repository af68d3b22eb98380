// Package model - Definitions shared by every decoder head.
package model

import "github.com/nvr-ai/go-tensordecode/images"

// Kind is the decoding strategy of a head.
type Kind string

const (
	// KindSSD decodes anchor box regressions and class logits.
	KindSSD Kind = "ssd"
	// KindPose decodes keypoint heatmaps and offset fields.
	KindPose Kind = "pose"
)

// Detection is a single decoded box. Values are produced once per frame and never
// mutated afterwards.
type Detection struct {
	// The predicted class index. Class 0 is background and never produced.
	ClassID int `json:"class_id" yaml:"class_id"`
	// The box in model input pixels.
	Box images.Box `json:"box" yaml:"box"`
	// The sigmoid-activated class score in [0, 1].
	Prob float32 `json:"prob" yaml:"prob"`
	// The resolved class name, empty until aggregated.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Keypoint is a single decoded pose keypoint.
type Keypoint struct {
	// The keypoint channel index.
	Label int `json:"label" yaml:"label"`
	// The keypoint name, empty when no label table is configured.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`
	// Position in model input pixels.
	X float32 `json:"x" yaml:"x"`
	Y float32 `json:"y" yaml:"y"`
	// The sigmoid-activated heatmap score in [0, 1].
	Score float32 `json:"score" yaml:"score"`
}
