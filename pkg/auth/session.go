package auth

import (
	"time"

	"github.com/Veraticus/member-portal/pkg/types"
)

// Session is a signed-in user's view of their authentication state.
type Session struct {
	Token     string     `json:"-"`
	UserID    string     `json:"user_id"`
	Email     string     `json:"email"`
	FullName  string     `json:"full_name"`
	Role      types.Role `json:"role,omitempty"`
	Loading   bool       `json:"loading"`
	CreatedAt time.Time  `json:"created_at"`
}

// IsAdmin reports whether the session holds the admin role. It is false
// while the role is still loading.
func (s Session) IsAdmin() bool {
	return s.Role == types.RoleAdmin
}

// EventType identifies an authentication state change.
type EventType int

const (
	EventSignedIn EventType = iota + 1
	EventSignedOut
	EventExpired
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventSignedIn:
		return "signed_in"
	case EventSignedOut:
		return "signed_out"
	case EventExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Event describes a change to a session. Session is a snapshot taken when
// the change happened.
type Event struct {
	Type    EventType
	Session Session
}
