// Package aggregator - merges per-head detections into one keyed result with label
// resolution and exclusion.
package aggregator

import (
	"strings"

	"github.com/nvr-ai/go-tensordecode/models/labels"
	"github.com/nvr-ai/go-tensordecode/models/model"
)

// HeadOutput is the decoded detection set of one head.
type HeadOutput struct {
	Head       string
	Detections []model.Detection
	Labels     *labels.Table
}

// Result maps a head name to its labeled, filtered detections.
type Result map[string][]model.Detection

// Count returns the total number of detections across heads.
func (r Result) Count() int {
	n := 0
	for _, dets := range r {
		n += len(dets)
	}
	return n
}

// Aggregator resolves labels and drops excluded classes. It holds no per-frame state.
type Aggregator struct {
	exclude map[string]struct{}
	perHead map[string]map[string]struct{}
}

// New creates an aggregator that drops detections whose label is one of exclude, from
// every head.
func New(exclude ...string) *Aggregator {
	return &Aggregator{
		exclude: labelSet(exclude),
		perHead: make(map[string]map[string]struct{}),
	}
}

// ExcludeFor drops detections labeled one of names from head only. It returns a for
// chaining and must be called before the aggregator is shared.
func (a *Aggregator) ExcludeFor(head string, names ...string) *Aggregator {
	if len(names) == 0 {
		return a
	}
	set, ok := a.perHead[head]
	if !ok {
		set = make(map[string]struct{}, len(names))
		a.perHead[head] = set
	}
	for n := range labelSet(names) {
		set[n] = struct{}{}
	}
	return a
}

// Excluded reports whether detections labeled name are dropped from every head.
func (a *Aggregator) Excluded(name string) bool {
	_, ok := a.exclude[strings.TrimSpace(name)]
	return ok
}

// ExcludedFrom reports whether detections of head labeled name are dropped.
func (a *Aggregator) ExcludedFrom(head, name string) bool {
	if a.Excluded(name) {
		return true
	}
	_, ok := a.perHead[head][strings.TrimSpace(name)]
	return ok
}

func labelSet(names []string) map[string]struct{} {
	set := make(map[string]struct{}, len(names))
	for _, n := range names {
		set[strings.TrimSpace(n)] = struct{}{}
	}
	return set
}

// Aggregate labels every detection and keeps those not excluded. Every head appears in
// the result, with an empty slice when nothing survives. Input detections are copied,
// never modified.
//
// Arguments:
//   - outputs: The per-head NMS survivors of one frame.
//
// Returns:
//   - Result: Detections keyed by head name, in input order.
func (a *Aggregator) Aggregate(outputs ...HeadOutput) Result {
	result := make(Result, len(outputs))
	for _, out := range outputs {
		kept := make([]model.Detection, 0, len(out.Detections))
		for _, d := range out.Detections {
			d.Label = strings.TrimSpace(out.Labels.NameOr(d.ClassID))
			if a.ExcludedFrom(out.Head, d.Label) {
				continue
			}
			kept = append(kept, d)
		}
		if prev, ok := result[out.Head]; ok {
			kept = append(prev, kept...)
		}
		result[out.Head] = kept
	}
	return result
}
