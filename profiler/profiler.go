// Package profiler - rolling timing and counter statistics for the decode loop.
package profiler

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultMaxSamples bounds the rolling window of each tracker.
const DefaultMaxSamples = 600

// OperationStats summarizes the recorded durations of one operation.
type OperationStats struct {
	Name  string        `json:"name"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Count int64         `json:"count"`
}

// MetricStats summarizes the recorded values of one metric.
type MetricStats struct {
	Name    string  `json:"name"`
	Avg     float64 `json:"avg"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Samples int     `json:"samples"`
}

type timeTracker struct {
	durations []time.Duration
	totalTime time.Duration
	minTime   time.Duration
	maxTime   time.Duration
	count     int64
}

type metricTracker struct {
	values []float64
	sum    float64
	min    float64
	max    float64
}

// Profiler tracks per-operation durations and custom metrics. It is safe for
// concurrent use.
type Profiler struct {
	mu         sync.RWMutex
	maxSamples int
	startTime  time.Time
	operations map[string]*timeTracker
	metrics    map[string]*metricTracker
	counters   map[string]int64
}

// New creates a profiler keeping at most maxSamples values per tracker. Zero uses
// DefaultMaxSamples.
func New(maxSamples int) *Profiler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &Profiler{
		maxSamples: maxSamples,
		startTime:  time.Now(),
		operations: make(map[string]*timeTracker),
		metrics:    make(map[string]*metricTracker),
		counters:   make(map[string]int64),
	}
}

// StartOperation begins timing an operation.
//
// Arguments:
//   - name: The name of the operation to track.
//
// Returns:
//   - func() time.Duration: Call when the operation completes. It records and returns the duration.
func (p *Profiler) StartOperation(name string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		p.RecordDuration(name, d)
		return d
	}
}

// RecordDuration records one completed operation.
func (p *Profiler) RecordDuration(name string, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.operations[name]
	if !ok {
		t = &timeTracker{minTime: d, maxTime: d}
		p.operations[name] = t
	}

	t.durations = append(t.durations, d)
	if len(t.durations) > p.maxSamples {
		t.totalTime -= t.durations[0]
		t.durations = t.durations[1:]
	}
	t.totalTime += d
	t.count++
	if d < t.minTime {
		t.minTime = d
	}
	if d > t.maxTime {
		t.maxTime = d
	}
}

// RecordMetric records a custom metric value.
func (p *Profiler) RecordMetric(name string, value float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.metrics[name]
	if !ok {
		m = &metricTracker{min: value, max: value}
		p.metrics[name] = m
	}

	m.values = append(m.values, value)
	if len(m.values) > p.maxSamples {
		m.sum -= m.values[0]
		m.values = m.values[1:]
	}
	m.sum += value
	if value < m.min {
		m.min = value
	}
	if value > m.max {
		m.max = value
	}
}

// Inc adds one to a named counter.
func (p *Profiler) Inc(name string) {
	p.mu.Lock()
	p.counters[name]++
	p.mu.Unlock()
}

// Counter returns the value of a named counter.
func (p *Profiler) Counter(name string) int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.counters[name]
}

// Operation returns the statistics of one operation.
func (p *Profiler) Operation(name string) (OperationStats, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	t, ok := p.operations[name]
	if !ok || len(t.durations) == 0 {
		return OperationStats{}, false
	}
	return OperationStats{
		Name:  name,
		Avg:   t.totalTime / time.Duration(len(t.durations)),
		Min:   t.minTime,
		Max:   t.maxTime,
		Count: t.count,
	}, true
}

// Operations returns the statistics of every operation, sorted by name.
func (p *Profiler) Operations() []OperationStats {
	p.mu.RLock()
	names := make([]string, 0, len(p.operations))
	for name := range p.operations {
		names = append(names, name)
	}
	p.mu.RUnlock()
	sort.Strings(names)

	stats := make([]OperationStats, 0, len(names))
	for _, name := range names {
		if s, ok := p.Operation(name); ok {
			stats = append(stats, s)
		}
	}
	return stats
}

// Metrics returns the statistics of every metric, sorted by name.
func (p *Profiler) Metrics() []MetricStats {
	p.mu.RLock()
	defer p.mu.RUnlock()

	stats := make([]MetricStats, 0, len(p.metrics))
	for name, m := range p.metrics {
		if len(m.values) == 0 {
			continue
		}
		stats = append(stats, MetricStats{
			Name:    name,
			Avg:     m.sum / float64(len(m.values)),
			Min:     m.min,
			Max:     m.max,
			Samples: len(m.values),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Report logs every tracker at info level.
func (p *Profiler) Report(log logrus.FieldLogger) {
	log.WithField("uptime", time.Since(p.startTime).Truncate(time.Millisecond)).Info("profiler report")

	for _, s := range p.Operations() {
		log.WithFields(logrus.Fields{
			"operation": s.Name,
			"avg":       s.Avg.Truncate(time.Microsecond),
			"min":       s.Min.Truncate(time.Microsecond),
			"max":       s.Max.Truncate(time.Microsecond),
			"count":     s.Count,
		}).Info("operation timing")
	}
	for _, s := range p.Metrics() {
		log.WithFields(logrus.Fields{
			"metric":  s.Name,
			"avg":     s.Avg,
			"min":     s.Min,
			"max":     s.Max,
			"samples": s.Samples,
		}).Info("metric")
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for name, v := range p.counters {
		log.WithFields(logrus.Fields{"counter": name, "value": v}).Info("counter")
	}
}

// Run calls Report every interval until ctx is done.
func (p *Profiler) Run(ctx context.Context, interval time.Duration, log logrus.FieldLogger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Report(log)
		}
	}
}
