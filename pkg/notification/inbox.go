package notification

import (
	"sync"
	"time"

	"github.com/Veraticus/member-portal/pkg/interfaces"
)

// DefaultInboxSize is the number of undelivered toasts kept per recipient.
const DefaultInboxSize = 16

// DefaultInboxMaxAge is how long an undelivered toast is kept.
const DefaultInboxMaxAge = 30 * time.Minute

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// WithMaxAge sets how long a toast waits for its recipient before it is
// discarded. Non-positive values are ignored.
func WithMaxAge(d time.Duration) InboxOption {
	return func(i *Inbox) {
		if d > 0 {
			i.maxAge = d
		}
	}
}

// WithInboxClock replaces the wall clock used to age toasts.
func WithInboxClock(c interfaces.Clock) InboxOption {
	return func(i *Inbox) {
		if c != nil {
			i.now = c.Now
		}
	}
}

type queuedToast struct {
	notification Notification
	queuedAt     time.Time
}

// Inbox holds toasts addressed to a recipient, such as a session token, until
// the client polls for them. Older toasts are dropped once a recipient's
// queue is full, and toasts nobody collects within the max age are dropped
// along with their recipient's queue.
type Inbox struct {
	size   int
	maxAge time.Duration
	now    func() time.Time

	mu     sync.Mutex
	queues map[string][]queuedToast
}

// NewInbox creates an inbox keeping up to size toasts per recipient. A
// non-positive size uses DefaultInboxSize.
func NewInbox(size int, opts ...InboxOption) *Inbox {
	if size <= 0 {
		size = DefaultInboxSize
	}
	i := &Inbox{
		size:   size,
		maxAge: DefaultInboxMaxAge,
		now:    time.Now,
		queues: make(map[string][]queuedToast),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Send queues the notification for its recipient. Notifications without a
// recipient are ignored.
func (i *Inbox) Send(notification Notification) error {
	if notification.Recipient == "" {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	now := i.now()
	i.sweepLocked(now)

	q := append(i.queues[notification.Recipient], queuedToast{notification: notification, queuedAt: now})
	if len(q) > i.size {
		q = q[len(q)-i.size:]
	}
	i.queues[notification.Recipient] = q
	return nil
}

// Drain returns and removes every toast queued for recipient, oldest first.
func (i *Inbox) Drain(recipient string) []Notification {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.sweepLocked(i.now())
	q := i.queues[recipient]
	delete(i.queues, recipient)
	if len(q) == 0 {
		return nil
	}

	result := make([]Notification, len(q))
	for n, t := range q {
		result[n] = t.notification
	}
	return result
}

// Len reports how many toasts are queued for recipient.
func (i *Inbox) Len(recipient string) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.sweepLocked(i.now())
	return len(i.queues[recipient])
}

// Recipients reports how many recipients have toasts waiting.
func (i *Inbox) Recipients() int {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.sweepLocked(i.now())
	return len(i.queues)
}

// sweepLocked drops toasts older than maxAge and forgets recipients left
// with nothing queued. Queues are ordered oldest first.
func (i *Inbox) sweepLocked(now time.Time) {
	for recipient, q := range i.queues {
		keep := 0
		for keep < len(q) && now.Sub(q[keep].queuedAt) > i.maxAge {
			keep++
		}
		switch {
		case keep == len(q):
			delete(i.queues, recipient)
		case keep > 0:
			i.queues[recipient] = q[keep:]
		}
	}
}
