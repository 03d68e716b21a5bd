// Package membership validates and records membership applications and
// contact messages.
package membership

import (
	"context"
	"fmt"
	"time"

	"github.com/Veraticus/member-portal/pkg/content"
	"github.com/Veraticus/member-portal/pkg/log"
	"github.com/Veraticus/member-portal/pkg/notification"
	"github.com/Veraticus/member-portal/pkg/types"
)

// Store is the persistence the membership service needs.
type Store interface {
	CreateApplication(ctx context.Context, a *types.MembershipApplication) error
	SetApplicationStatus(ctx context.Context, id string, status types.ApplicationStatus) error
	CreateContactMessage(ctx context.Context, m *types.ContactMessage) error
	LogActivity(ctx context.Context, entry *types.ActivityLog) error
}

// Service handles membership workflows. Admins are alerted about new
// applications and messages through alerts.
type Service struct {
	store   Store
	catalog *content.Content
	alerts  notification.Notifier
}

// NewService creates a membership service. A nil alerts notifier disables
// admin alerts.
func NewService(st Store, catalog *content.Content, alerts notification.Notifier) *Service {
	return &Service{store: st, catalog: catalog, alerts: alerts}
}

// Tiers returns the membership tiers on offer.
func (s *Service) Tiers() []content.Tier {
	return s.catalog.Tiers
}

// Apply records an application for tier. userID is empty for applicants
// who are not signed in.
func (s *Service) Apply(ctx context.Context, userID, tier string, form ApplicationForm) (*types.MembershipApplication, error) {
	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.catalog.Tier(tier); err != nil {
		return nil, types.ValidationErrors{"membership_type": "Please choose a membership type"}
	}

	app := &types.MembershipApplication{
		UserID:          userID,
		Tier:            tier,
		FullName:        form.FullName,
		Email:           form.Email,
		Phone:           form.Phone,
		Profession:      form.Profession,
		Organization:    form.Organization,
		ExperienceYears: form.ExperienceYears,
		Motivation:      form.Motivation,
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("saving application: %w", err)
	}

	s.logActivity(ctx, &types.ActivityLog{
		UserID:      userID,
		Action:      types.ActionMembershipApplied,
		Description: fmt.Sprintf("Applied for %s", tier),
		Metadata:    map[string]string{"application_id": app.ID, "membership_type": tier},
	})
	s.alert(notification.Notification{
		Title:   "New membership application",
		Message: fmt.Sprintf("%s applied for %s", app.FullName, tier),
		Time:    app.CreatedAt,
		Kind:    notification.KindMembershipApplied,
	})

	return app, nil
}

// Contact records a contact form message.
func (s *Service) Contact(ctx context.Context, form ContactForm) (*types.ContactMessage, error) {
	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, err
	}

	msg := &types.ContactMessage{
		Name:    form.Name,
		Email:   form.Email,
		Phone:   form.Phone,
		Message: form.Message,
	}
	if err := s.store.CreateContactMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("saving contact message: %w", err)
	}

	s.logActivity(ctx, &types.ActivityLog{
		Action:      types.ActionContactSubmitted,
		Description: fmt.Sprintf("Message from %s", msg.Name),
		Metadata:    map[string]string{"message_id": msg.ID},
	})
	s.alert(notification.Notification{
		Title:   "New contact message",
		Message: fmt.Sprintf("%s <%s>: %s", msg.Name, msg.Email, truncate(msg.Message, 140)),
		Time:    msg.CreatedAt,
		Kind:    notification.KindContactSubmitted,
	})

	return msg, nil
}

// Review records an admin's decision on an application.
func (s *Service) Review(ctx context.Context, actorID, id string, status types.ApplicationStatus) error {
	if err := s.store.SetApplicationStatus(ctx, id, status); err != nil {
		return fmt.Errorf("reviewing application: %w", err)
	}

	s.logActivity(ctx, &types.ActivityLog{
		UserID:      actorID,
		Action:      types.ActionApplicationReview,
		Description: fmt.Sprintf("Marked application %s", status),
		Metadata:    map[string]string{"application_id": id, "status": string(status)},
	})
	return nil
}

func (s *Service) logActivity(ctx context.Context, entry *types.ActivityLog) {
	if err := s.store.LogActivity(ctx, entry); err != nil {
		log.Error("logging activity", "action", entry.Action, "error", err)
	}
}

func (s *Service) alert(n notification.Notification) {
	if s.alerts == nil {
		return
	}
	if n.Time.IsZero() {
		n.Time = time.Now()
	}
	if err := s.alerts.Send(n); err != nil {
		log.Warn("sending admin alert", "kind", n.Kind, "error", err)
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
