// Package snapshot - single-slot mailbox handing immutable per-frame results from the
// decoder to its consumers.
package snapshot

import (
	"context"
	"sync"
	"sync/atomic"
)

type entry[T any] struct {
	seq   uint64
	value *T
}

// Mailbox holds the latest published value. Publishing replaces the slot atomically;
// readers never block the producer and never observe a partially written value.
// Published values must not be modified afterwards.
type Mailbox[T any] struct {
	slot atomic.Pointer[entry[T]]

	mu      sync.Mutex
	seq     uint64
	changed chan struct{}
}

// NewMailbox creates an empty mailbox.
func NewMailbox[T any]() *Mailbox[T] {
	return &Mailbox[T]{changed: make(chan struct{})}
}

// Publish replaces the current value and wakes every waiter.
//
// Returns:
//   - uint64: The sequence number assigned to v, starting at 1.
func (m *Mailbox[T]) Publish(v *T) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.slot.Store(&entry[T]{seq: m.seq, value: v})
	close(m.changed)
	m.changed = make(chan struct{})
	return m.seq
}

// Latest returns the current value and its sequence number. Both are zero before the
// first publish.
func (m *Mailbox[T]) Latest() (*T, uint64) {
	e := m.slot.Load()
	if e == nil {
		return nil, 0
	}
	return e.value, e.seq
}

// Wait blocks until a value newer than after is published or ctx is done.
//
// Arguments:
//   - ctx: Cancels the wait.
//   - after: The last sequence number the caller has seen. Zero waits for any value.
//
// Returns:
//   - *T: The latest value.
//   - uint64: Its sequence number.
//   - error: ctx.Err() when the context ends first.
func (m *Mailbox[T]) Wait(ctx context.Context, after uint64) (*T, uint64, error) {
	for {
		if v, seq := m.Latest(); seq > after {
			return v, seq, nil
		}

		m.mu.Lock()
		changed := m.changed
		m.mu.Unlock()

		// A publish may have landed before the channel was read.
		if v, seq := m.Latest(); seq > after {
			return v, seq, nil
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		}
	}
}
