// Package interfaces defines the core interfaces used throughout the application.
package interfaces

import (
	"context"
	"time"
)

// Timer is a cancellable delayed callback.
type Timer interface {
	// Stop prevents the callback from running. It returns false if the
	// callback has already been started or the timer was already stopped.
	Stop() bool
}

// Clock is the time source used by timing-sensitive components.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// RateLimiter limits event frequency.
type RateLimiter interface {
	Allow() bool
	Reset()
}

// SessionExpirer ends a session early, e.g. after inactivity.
type SessionExpirer interface {
	ExpireSession(ctx context.Context, sessionID string) error
}
