package notification

import (
	"log/slog"
)

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a notifier logging through logger, or through the
// default logger when nil.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Send logs the notification at info level
func (n *LogNotifier) Send(notification Notification) error {
	n.logger.Info("notification",
		"title", notification.Title,
		"message", notification.Message,
		"kind", notification.Kind,
		"recipient", notification.Recipient,
	)
	return nil
}
