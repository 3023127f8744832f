// Package buffer provides the bounded ingest queue that sits between the MQTT
// callback goroutine and the session loop. Producers never block: when the
// queue overflows, the oldest buffered messages are discarded so memory stays
// bounded under sustained overload.
package buffer

import (
	"sync"
	"sync/atomic"

	"mqttwatch/message"
)

const (
	// DefaultHighWater is the length that triggers a trim.
	DefaultHighWater = 1000
	// DefaultLowWater is how many of the most recent messages survive a trim.
	DefaultLowWater = 100
)

// Queue is a FIFO with a drop-oldest overflow policy. Delivery is at most
// once: trimmed messages never reach the state store.
type Queue struct {
	mu        sync.Mutex
	items     []message.Message
	highWater int
	lowWater  int
	dropped   atomic.Uint64
	trims     atomic.Uint64
}

// NewQueue allocates a queue. Non-positive marks fall back to the defaults,
// and a low-water mark above the high-water mark is clamped to it.
func NewQueue(highWater, lowWater int) *Queue {
	if highWater <= 0 {
		highWater = DefaultHighWater
	}
	if lowWater <= 0 {
		lowWater = DefaultLowWater
	}
	if lowWater > highWater {
		lowWater = highWater
	}
	return &Queue{
		items:     make([]message.Message, 0, highWater+1),
		highWater: highWater,
		lowWater:  lowWater,
	}
}

// Push appends msg and trims to the low-water mark once the high-water mark
// is exceeded. It returns how many messages were discarded by this push.
func (q *Queue) Push(msg message.Message) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, msg)
	if len(q.items) <= q.highWater {
		return 0
	}
	drop := len(q.items) - q.lowWater
	// Copy survivors to the front so the backing array does not keep growing.
	n := copy(q.items, q.items[drop:])
	for i := n; i < len(q.items); i++ {
		q.items[i] = message.Message{}
	}
	q.items = q.items[:n]
	q.dropped.Add(uint64(drop))
	q.trims.Add(1)
	return drop
}

// DrainBatch removes and returns up to max messages in arrival order.
func (q *Queue) DrainBatch(max int) []message.Message {
	if max <= 0 {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	if max > len(q.items) {
		max = len(q.items)
	}
	batch := make([]message.Message, max)
	copy(batch, q.items[:max])
	n := copy(q.items, q.items[max:])
	for i := n; i < len(q.items); i++ {
		q.items[i] = message.Message{}
	}
	q.items = q.items[:n]
	return batch
}

// Len returns the number of buffered messages.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the total number of messages discarded by trims.
func (q *Queue) Dropped() uint64 { return q.dropped.Load() }

// Trims returns how many times the queue has been trimmed.
func (q *Queue) Trims() uint64 { return q.trims.Load() }
