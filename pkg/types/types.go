// Package types contains shared data structures used across the application.
package types

import (
	"fmt"
	"time"
)

// Role is the access level granted to an account.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleUser:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

// Profile is a registered member account.
type Profile struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ApplicationStatus is the review state of a membership application.
type ApplicationStatus string

const (
	StatusPending  ApplicationStatus = "pending"
	StatusApproved ApplicationStatus = "approved"
	StatusRejected ApplicationStatus = "rejected"
)

// ParseApplicationStatus validates a status name.
func ParseApplicationStatus(s string) (ApplicationStatus, error) {
	switch ApplicationStatus(s) {
	case StatusPending, StatusApproved, StatusRejected:
		return ApplicationStatus(s), nil
	}
	return "", fmt.Errorf("unknown application status %q", s)
}

// MembershipApplication is a request to join at a given tier.
type MembershipApplication struct {
	ID              string            `json:"id"`
	UserID          string            `json:"user_id,omitempty"`
	Tier            string            `json:"membership_type"`
	FullName        string            `json:"full_name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone,omitempty"`
	Profession      string            `json:"profession"`
	Organization    string            `json:"organization,omitempty"`
	ExperienceYears *int              `json:"experience_years,omitempty"`
	Motivation      string            `json:"motivation"`
	Status          ApplicationStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
}

// Advertisement is an announcement shown on the public site while active.
type Advertisement struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	ImageURL  string    `json:"image_url,omitempty"`
	Active    bool      `json:"is_active"`
	Priority  int       `json:"priority"`
	CreatedBy string    `json:"created_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity actions recorded in the activity log.
const (
	ActionUserRegistered    = "user_registered"
	ActionProfileUpdate     = "profile_update"
	ActionLogin             = "login"
	ActionLogout            = "logout"
	ActionSessionExpired    = "session_expired"
	ActionMembershipApplied = "membership_applied"
	ActionContactSubmitted  = "contact_submitted"
	ActionRoleChanged       = "role_changed"
	ActionApplicationReview = "application_reviewed"
)

// ActivityLog is one audit entry. UserID is empty for anonymous actions.
type ActivityLog struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id,omitempty"`
	Action      string            `json:"action"`
	Description string            `json:"description,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ContactMessage is a message sent through the public contact form.
type ContactMessage struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
