package notification

import (
	"strings"
	"sync"
	"time"

	"github.com/Veraticus/member-portal/pkg/config"
	"github.com/Veraticus/member-portal/pkg/interfaces"
	"github.com/Veraticus/member-portal/pkg/log"
)

// BatchTitle is the title of a notification that combines several alerts.
const BatchTitle = "Member Portal: Multiple Alerts"

// Manager routes admin alerts through rate limiting and batching before
// handing them to a notifier.
type Manager struct {
	notifier    Notifier
	rateLimiter interfaces.RateLimiter
	batcher     *Batcher

	mu     sync.Mutex
	closed bool
}

// NewManager creates a new notification manager
func NewManager(cfg *config.Config, notifier Notifier, rateLimiter interfaces.RateLimiter) *Manager {
	m := &Manager{
		notifier:    notifier,
		rateLimiter: rateLimiter,
	}

	if cfg.BatchWindow > 0 {
		m.batcher = NewBatcher(cfg.BatchWindow, m.sendBatch)
	}

	return m
}

// Send sends or batches a notification. Alerts over the rate limit or sent
// after Close are dropped.
func (m *Manager) Send(notification Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}

	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		log.Debug("notification rate limited", "kind", notification.Kind, "title", notification.Title)
		return nil
	}

	if m.batcher != nil {
		m.batcher.Add(notification)
		return nil
	}

	return m.notifier.Send(notification)
}

func (m *Manager) sendBatch(notifications []Notification) {
	if len(notifications) == 0 {
		return
	}

	combined := notifications[0]
	if len(notifications) > 1 {
		combined = Notification{
			Title:   BatchTitle,
			Message: formatBatchMessage(notifications),
			Time:    time.Now(),
			Kind:    KindBatch,
		}
	}

	// Batches are best effort; there is no caller left to return to.
	if err := m.notifier.Send(combined); err != nil {
		log.Warn("failed to send batched notification", "count", len(notifications), "error", err)
	}
}

// Close flushes pending batches. Later sends are dropped.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	if m.batcher != nil {
		m.batcher.Flush()
	}

	return nil
}

func formatBatchMessage(notifications []Notification) string {
	var b strings.Builder
	for i, n := range notifications {
		if i > 0 {
			b.WriteString("\n---\n")
		}
		b.WriteString(n.Kind)
		b.WriteString(": ")
		b.WriteString(n.Message)
	}
	return b.String()
}
