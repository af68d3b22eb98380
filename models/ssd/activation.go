package ssd

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/model"
)

// DefaultScoreThreshold is the minimum activated score a candidate must reach.
const DefaultScoreThreshold float32 = 0.5

// BackgroundClass is never emitted.
const BackgroundClass = 0

// Sigmoid is the logistic function 1/(1+e^-x).
func Sigmoid(x float32) float32 {
	return 1 / (1 + math32.Exp(-x))
}

// ScoreActivator turns per-anchor class logits into candidate detections.
type ScoreActivator struct {
	labelSize int
	threshold float32
}

// NewScoreActivator creates an activator for labelSize classes, background included.
func NewScoreActivator(labelSize int, threshold float32) (*ScoreActivator, error) {
	if labelSize < 2 {
		return nil, model.NewConfigError("", "label size must include background and at least one class, got %d", labelSize)
	}
	if threshold < 0 || threshold > 1 || math32.IsNaN(threshold) {
		return nil, model.NewConfigError("", "score threshold must be in [0, 1], got %v", threshold)
	}
	return &ScoreActivator{labelSize: labelSize, threshold: threshold}, nil
}

// LabelSize returns the number of classes per anchor, background included.
func (a *ScoreActivator) LabelSize() int {
	return a.labelSize
}

// Activate emits one candidate per anchor and non-background class whose sigmoid
// score is at least the threshold.
//
// Arguments:
//   - scores: len(boxes)*LabelSize logits, row-major per anchor.
//   - boxes: The decoded boxes, index-aligned with anchors.
//
// Returns:
//   - []model.Detection: Unordered, unbounded candidates.
//   - error: A *model.FrameFormatError on a size mismatch.
func (a *ScoreActivator) Activate(scores []float32, boxes []images.Box) ([]model.Detection, error) {
	if len(scores) != len(boxes)*a.labelSize {
		return nil, model.NewFrameFormatError("scores", len(boxes)*a.labelSize, len(scores))
	}

	var candidates []model.Detection
	for d, box := range boxes {
		row := scores[d*a.labelSize : (d+1)*a.labelSize]
		for c := BackgroundClass + 1; c < a.labelSize; c++ {
			score := Sigmoid(row[c])
			// NaN logits fail this comparison and are dropped.
			if !(score >= a.threshold) {
				continue
			}
			candidates = append(candidates, model.Detection{
				ClassID: c,
				Box:     box,
				Prob:    score,
			})
		}
	}
	return candidates, nil
}
