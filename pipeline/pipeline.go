// Package pipeline - the single-producer decode loop. Each frame's tensors are decoded
// by every head, aggregated and published as one immutable snapshot.
package pipeline

import (
	"context"
	"time"

	"github.com/nvr-ai/go-tensordecode/aggregator"
	"github.com/nvr-ai/go-tensordecode/logger"
	"github.com/nvr-ai/go-tensordecode/models"
	"github.com/nvr-ai/go-tensordecode/models/model"
	"github.com/nvr-ai/go-tensordecode/profiler"
	"github.com/nvr-ai/go-tensordecode/snapshot"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Counter and operation names recorded in the profiler.
const (
	CounterPublished = "frames_published"
	CounterSkipped   = "frames_skipped"
	OperationFrame   = "frame"
)

// Frame is one set of model outputs. Tensors maps a head name to its raw little-endian
// float32 buffers in model output order.
type Frame struct {
	Index     uint64
	Timestamp time.Time
	Tensors   map[string][][]byte
}

// Snapshot is the complete decode result of one frame. It is never modified after
// publication.
type Snapshot struct {
	Frame      uint64                      `json:"frame"`
	Timestamp  time.Time                   `json:"timestamp"`
	Detections aggregator.Result           `json:"detections"`
	Poses      map[string][]model.Keypoint `json:"poses,omitempty"`
}

// Options are the optional collaborators of a pipeline.
type Options struct {
	Logger   logrus.FieldLogger
	Profiler *profiler.Profiler
}

// Pipeline decodes frames and publishes snapshots. Process and Run must be called from
// a single goroutine; consumers read through Mailbox.
type Pipeline struct {
	heads      []models.Head
	aggregator *aggregator.Aggregator
	mailbox    *snapshot.Mailbox[Snapshot]
	log        logrus.FieldLogger
	profiler   *profiler.Profiler
}

// New creates a pipeline over heads.
//
// Arguments:
//   - heads: The decoder heads, each fed the frame tensors under its name.
//   - agg: Labels and filters detection heads. Nil excludes nothing.
//   - opts: Logger and profiler. Nil fields get a discarding logger and a fresh profiler.
//
// Returns:
//   - *Pipeline: The pipeline.
func New(heads []models.Head, agg *aggregator.Aggregator, opts Options) *Pipeline {
	if agg == nil {
		agg = aggregator.New()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Profiler == nil {
		opts.Profiler = profiler.New(0)
	}
	return &Pipeline{
		heads:      heads,
		aggregator: agg,
		mailbox:    snapshot.NewMailbox[Snapshot](),
		log:        opts.Logger,
		profiler:   opts.Profiler,
	}
}

// Mailbox returns the mailbox snapshots are published to.
func (p *Pipeline) Mailbox() *snapshot.Mailbox[Snapshot] {
	return p.mailbox
}

// Profiler returns the pipeline's profiler.
func (p *Pipeline) Profiler() *profiler.Profiler {
	return p.profiler
}

// Process decodes one frame and publishes its snapshot.
//
// Arguments:
//   - ctx: Cancelling it discards the frame. Nothing is published once ctx is done.
//   - frame: The frame tensors.
//
// Returns:
//   - *Snapshot: The published snapshot.
//   - error: A *model.FrameFormatError when any head's tensors are malformed, in which
//     case the frame is skipped, or ctx.Err().
func (p *Pipeline) Process(ctx context.Context, frame Frame) (*Snapshot, error) {
	stop := p.profiler.StartOperation(OperationFrame)
	log := p.log.WithField(logger.FieldFrame, frame.Index)

	outputs := make([]aggregator.HeadOutput, 0, len(p.heads))
	poses := make(map[string][]model.Keypoint)

	for _, h := range p.heads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tensors, ok := frame.Tensors[h.Name()]
		if !ok {
			return nil, p.skip(log, h.Name(), model.NewFrameFormatError(h.Name(), 2, 0))
		}

		start := time.Now()
		out, err := h.Decode(tensors)
		if err != nil {
			return nil, p.skip(log, h.Name(), err)
		}
		p.profiler.RecordDuration(h.Name(), time.Since(start))

		switch h.Kind() {
		case model.KindPose:
			poses[h.Name()] = out.Keypoints
		default:
			outputs = append(outputs, aggregator.HeadOutput{
				Head:       out.Head,
				Detections: out.Detections,
				Labels:     out.Labels,
			})
		}
	}

	snap := &Snapshot{
		Frame:      frame.Index,
		Timestamp:  frame.Timestamp,
		Detections: p.aggregator.Aggregate(outputs...),
		Poses:      poses,
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mailbox.Publish(snap)
	p.profiler.Inc(CounterPublished)
	p.profiler.RecordMetric("detections", float64(snap.Detections.Count()))

	log.WithFields(logrus.Fields{
		logger.FieldDuration: stop(),
		"detections":         snap.Detections.Count(),
		"poses":              len(snap.Poses),
	}).Debug("frame decoded")
	return snap, nil
}

func (p *Pipeline) skip(log logrus.FieldLogger, head string, err error) error {
	p.profiler.Inc(CounterSkipped)
	fields := logrus.Fields{logger.FieldHead: head}
	var ffe *model.FrameFormatError
	if errors.As(err, &ffe) {
		fields[logger.FieldTensor] = ffe.Tensor
	}
	log.WithFields(fields).WithError(err).Warn("skipping frame")
	return errors.Wrapf(err, "head %q", head)
}

// Run processes frames until the channel closes or ctx is done. Frames that fail to
// decode are skipped.
//
// Returns:
//   - error: ctx.Err() on cancellation, nil when frames is closed.
func (p *Pipeline) Run(ctx context.Context, frames <-chan Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if _, err := p.Process(ctx, frame); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
			}
		}
	}
}
