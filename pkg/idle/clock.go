package idle

import (
	"time"

	"github.com/Veraticus/member-portal/pkg/interfaces"
)

// WallClock is the real time source.
type WallClock struct{}

// Now returns the current time.
func (WallClock) Now() time.Time {
	return time.Now()
}

// AfterFunc runs f in its own goroutine after d.
func (WallClock) AfterFunc(d time.Duration, f func()) interfaces.Timer {
	return time.AfterFunc(d, f)
}
