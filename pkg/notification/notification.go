// Package notification delivers user-facing toasts and administrator alerts.
package notification

import "time"

// Notification kinds.
const (
	KindSessionExpired    = "session_expired"
	KindMembershipApplied = "membership_applied"
	KindContactSubmitted  = "contact_submitted"
	KindBatch             = "batch"
)

// Notification represents a notification to be sent.
type Notification struct {
	Title   string
	Message string
	Time    time.Time
	Kind    string
	// Recipient is the session or user the notification is addressed to.
	// Empty for administrator alerts.
	Recipient string
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}
