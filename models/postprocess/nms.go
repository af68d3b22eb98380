// Package postprocess - provides Non-Maximum Suppression for decoded detections.
package postprocess

import (
	"sort"
	"strings"

	"github.com/nvr-ai/go-tensordecode/images"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/pkg/errors"
)

// Order is the order candidates are visited in during suppression.
type Order int

const (
	// OrderAscending visits candidates from lowest to highest probability. A visited
	// box suppresses every later overlapping box, so the lowest-scoring box of a
	// cluster survives. This is the behavior deployed detectors were tuned against.
	OrderAscending Order = iota
	// OrderDescending is standard NMS: the highest-scoring box of a cluster survives.
	OrderDescending
)

func (o Order) String() string {
	if o == OrderDescending {
		return "descending"
	}
	return "ascending"
}

// MarshalText implements encoding.TextMarshaler.
func (o Order) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Order) UnmarshalText(text []byte) error {
	parsed, err := ParseOrder(string(text))
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseOrder parses "ascending" or "descending". An empty string is ascending.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "ascending", "asc":
		return OrderAscending, nil
	case "descending", "desc":
		return OrderDescending, nil
	default:
		return OrderAscending, errors.Errorf("unknown nms order %q", s)
	}
}

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// Overlap threshold for suppression. A pair is suppressed when IoU > IoUThreshold.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// Visiting order.
	Order Order `json:"order" yaml:"order"`
	// If true, suppress only within the same class.
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
	// Keep at most this many survivors. Zero keeps all.
	MaxDetections int `json:"max_detections" yaml:"max_detections"`
}

// DefaultNMSConfig returns the reference configuration: IoU 0.5, ascending order,
// class-agnostic, unbounded.
func DefaultNMSConfig() *NMSConfig {
	return &NMSConfig{IoUThreshold: 0.5}
}

// ApplyNMS filters overlapping detections using greedy forward suppression.
//
// Candidates are stably sorted by probability in config.Order. Walking that order, each
// candidate not yet suppressed survives and suppresses every later candidate whose IoU
// with it exceeds config.IoUThreshold.
//
// Arguments:
//   - candidates: Unordered detections. The slice is not modified.
//   - config: NMS configuration. Nil uses DefaultNMSConfig.
//
// Returns:
//   - Survivors in processing order, truncated to config.MaxDetections when positive.
//     Returns nil when there are no candidates.
func ApplyNMS(candidates []model.Detection, config *NMSConfig) []model.Detection {
	n := len(candidates)
	if n == 0 {
		return nil
	}
	if config == nil {
		config = DefaultNMSConfig()
	}

	sorted := make([]model.Detection, n)
	copy(sorted, candidates)
	if config.Order == OrderDescending {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Prob > sorted[j].Prob })
	} else {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Prob < sorted[j].Prob })
	}

	used := make([]bool, n)
	filtered := make([]model.Detection, 0, n)

	for i := 0; i < n; i++ {
		if used[i] {
			continue
		}
		anchor := sorted[i]
		filtered = append(filtered, anchor)
		if config.MaxDetections > 0 && len(filtered) == config.MaxDetections {
			break
		}

		for j := i + 1; j < n; j++ {
			if used[j] {
				continue
			}
			if config.ClassAware && anchor.ClassID != sorted[j].ClassID {
				continue
			}
			if images.CalculateIoU(anchor.Box, sorted[j].Box) > config.IoUThreshold {
				used[j] = true
			}
		}
	}

	return filtered
}

// ApplyGreedyNMS performs standard keep-the-best NMS regardless of config.Order.
//
// Arguments:
//   - candidates: Unordered detections.
//   - config: NMS configuration. Nil uses DefaultNMSConfig.
//
// Returns:
//   - Survivors from highest to lowest probability.
func ApplyGreedyNMS(candidates []model.Detection, config *NMSConfig) []model.Detection {
	cfg := DefaultNMSConfig()
	if config != nil {
		*cfg = *config
	}
	cfg.Order = OrderDescending
	return ApplyNMS(candidates, cfg)
}
