package client

import (
	"sort"
	"sync"

	"sketchboard/internal/model"
	"sketchboard/internal/protocol"
)

// Batcher coalesces locally drawn points into periodic pointsAppended
// messages so a fast pointer doesn't translate into one network send per
// sample. Purely local: it knows nothing about other participants.
type Batcher struct {
	mu          sync.Mutex
	buffers     map[string][]model.Point
	maxPerBatch int
}

// NewBatcher creates a batcher emitting at most maxPerBatch points per
// message. Zero or below disables the cap.
func NewBatcher(maxPerBatch int) *Batcher {
	return &Batcher{
		buffers:     make(map[string][]model.Point),
		maxPerBatch: maxPerBatch,
	}
}

// Add queues points for a stroke id
func (b *Batcher) Add(id string, points ...model.Point) {
	if len(points) == 0 {
		return
	}
	b.mu.Lock()
	b.buffers[id] = append(b.buffers[id], points...)
	b.mu.Unlock()
}

// Flush emits one message per stroke with pending points, oldest points
// first, capped at maxPerBatch. Only the sent points leave the buffer, so
// production outrunning the cap never drops data; the remainder goes out on
// the next tick. Drained buffers are pruned.
//
// Called on the sender's timer; also usable directly to force a flush.
func (b *Batcher) Flush() []*protocol.Message {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.buffers) == 0 {
		return nil
	}

	ids := make([]string, 0, len(b.buffers))
	for id := range b.buffers {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var msgs []*protocol.Message
	for _, id := range ids {
		buf := b.buffers[id]
		n := len(buf)
		if b.maxPerBatch > 0 && n > b.maxPerBatch {
			n = b.maxPerBatch
		}

		batch := make([]model.Point, n)
		copy(batch, buf[:n])
		msgs = append(msgs, protocol.NewPointsAppended(id, batch))

		if n == len(buf) {
			delete(b.buffers, id)
		} else {
			b.buffers[id] = buf[n:]
		}
	}
	return msgs
}

// Pending returns the number of queued points for a stroke id
func (b *Batcher) Pending(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.buffers[id])
}
