package notification

import (
	"sync"
	"time"
)

// DefaultMaxBatch caps how many alerts a batch collects before it is sent
// without waiting for the window to close.
const DefaultMaxBatch = 20

// Batcher groups notifications within a time window
type Batcher struct {
	window   time.Duration
	maxSize  int
	callback func([]Notification)

	mu      sync.Mutex
	pending []Notification
	timer   *time.Timer
}

// NewBatcher creates a batcher that calls callback once per window with every
// notification added during it.
func NewBatcher(window time.Duration, callback func([]Notification)) *Batcher {
	return &Batcher{
		window:   window,
		maxSize:  DefaultMaxBatch,
		callback: callback,
	}
}

// Add adds a notification to the batch. A full batch is sent immediately.
func (b *Batcher) Add(n Notification) {
	b.mu.Lock()
	b.pending = append(b.pending, n)

	if len(b.pending) >= b.maxSize {
		toSend := b.takeLocked()
		b.mu.Unlock()
		b.callback(toSend)
		return
	}

	if b.timer == nil {
		b.timer = time.AfterFunc(b.window, b.flush)
	}
	b.mu.Unlock()
}

// Pending reports how many notifications are waiting for the window to close.
func (b *Batcher) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (b *Batcher) flush() {
	b.mu.Lock()
	toSend := b.takeLocked()
	b.mu.Unlock()

	if len(toSend) > 0 {
		b.callback(toSend)
	}
}

// takeLocked empties the batch and stops its timer.
func (b *Batcher) takeLocked() []Notification {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	toSend := b.pending
	b.pending = nil
	return toSend
}

// Flush immediately sends any pending notifications
func (b *Batcher) Flush() {
	b.flush()
}
