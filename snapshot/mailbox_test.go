package snapshot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	id    int
	items []int
}

func TestMailbox_Empty(t *testing.T) {
	m := NewMailbox[frame]()
	v, seq := m.Latest()
	assert.Nil(t, v)
	assert.Zero(t, seq)
}

func TestMailbox_PublishReplaces(t *testing.T) {
	m := NewMailbox[frame]()

	first := &frame{id: 1}
	second := &frame{id: 2}
	assert.Equal(t, uint64(1), m.Publish(first))
	assert.Equal(t, uint64(2), m.Publish(second))

	v, seq := m.Latest()
	assert.Same(t, second, v)
	assert.Equal(t, uint64(2), seq)
}

func TestMailbox_WaitReturnsExisting(t *testing.T) {
	m := NewMailbox[frame]()
	m.Publish(&frame{id: 7})

	v, seq, err := m.Wait(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 7, v.id)
	assert.Equal(t, uint64(1), seq)
}

func TestMailbox_WaitBlocksUntilPublish(t *testing.T) {
	m := NewMailbox[frame]()
	m.Publish(&frame{id: 1})

	done := make(chan *frame)
	go func() {
		v, _, err := m.Wait(context.Background(), 1)
		assert.NoError(t, err)
		done <- v
	}()

	select {
	case <-done:
		t.Fatal("wait returned before a newer value was published")
	case <-time.After(20 * time.Millisecond):
	}

	m.Publish(&frame{id: 2})

	select {
	case v := <-done:
		assert.Equal(t, 2, v.id)
	case <-time.After(time.Second):
		t.Fatal("wait did not return after publish")
	}
}

func TestMailbox_WaitCancelled(t *testing.T) {
	m := NewMailbox[frame]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	v, seq, err := m.Wait(ctx, 0)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, v)
	assert.Zero(t, seq)
}

func TestMailbox_ConcurrentReadersSeeWholeFrames(t *testing.T) {
	m := NewMailbox[frame]()
	const frames = 500

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last uint64
			for {
				v, seq, err := m.Wait(ctx, last)
				if err != nil {
					return
				}
				assert.Greater(t, seq, last)
				// Every item of a frame carries the frame id.
				for _, it := range v.items {
					if it != v.id {
						t.Errorf("frame %d holds item %d", v.id, it)
						return
					}
				}
				last = seq
				if v.id == frames {
					return
				}
			}
		}()
	}

	for i := 1; i <= frames; i++ {
		items := make([]int, 32)
		for j := range items {
			items[j] = i
		}
		m.Publish(&frame{id: i, items: items})
	}

	wg.Wait()
	v, seq := m.Latest()
	assert.Equal(t, frames, v.id)
	assert.Equal(t, uint64(frames), seq)
}
