// Package auth holds the portal's authentication state: accounts, signed-in
// sessions and the events other components observe as sessions come and go.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/member-portal/pkg/interfaces"
	"github.com/Veraticus/member-portal/pkg/log"
	"github.com/Veraticus/member-portal/pkg/notification"
	"github.com/Veraticus/member-portal/pkg/ratelimit"
	"github.com/Veraticus/member-portal/pkg/store"
	"github.com/Veraticus/member-portal/pkg/types"
)

var (
	// ErrInvalidCredentials is returned when the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNoSession is returned for an unknown, signed-out or expired token.
	ErrNoSession = errors.New("no such session")
	// ErrTooManyAttempts is returned when sign-in attempts for an email
	// exceed the configured rate.
	ErrTooManyAttempts = errors.New("too many sign-in attempts")
	// ErrClosed is returned once the service has been closed.
	ErrClosed = errors.New("auth service closed")
)

// ExpiredMessage is the toast shown after an inactivity sign-out.
const ExpiredMessage = "Session expired due to inactivity. Please log in again."

const (
	minPasswordLen = 6
	// bcrypt ignores input beyond 72 bytes.
	maxPasswordLen = 72
)

// Store is the persistence the auth service needs.
type Store interface {
	CreateProfile(ctx context.Context, p *types.Profile) error
	ProfileByEmail(ctx context.Context, email string) (*types.Profile, error)
	SetRole(ctx context.Context, userID string, role types.Role) error
	RoleFor(ctx context.Context, userID string) (types.Role, error)
	LogActivity(ctx context.Context, entry *types.ActivityLog) error
}

// Option configures a Service.
type Option func(*Service)

// WithBcryptCost sets the password hashing cost.
func WithBcryptCost(cost int) Option {
	return func(s *Service) { s.cost = cost }
}

// WithSignInLimit allows burst sign-in attempts per email, regaining one
// every refill. A zero burst disables limiting.
func WithSignInLimit(burst int, refill time.Duration) Option {
	return func(s *Service) {
		if burst <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = ratelimit.NewKeyed(burst, refill, 0)
	}
}

// WithToasts sets where user-facing messages such as the expiry notice are
// delivered. Each toast is addressed to the session token.
func WithToasts(n notification.Notifier) Option {
	return func(s *Service) { s.toasts = n }
}

// Service is the explicit authentication state holder.
type Service struct {
	store   Store
	toasts  notification.Notifier
	limiter *ratelimit.Keyed
	cost    int
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	subs     map[int]func(Event)
	nextSub  int

	tasks     chan func()
	done      chan struct{}
	closeOnce sync.Once
}

var _ interfaces.SessionExpirer = (*Service)(nil)

// NewService creates an auth service. Call Start to run deferred work.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{
		store:    st,
		cost:     bcrypt.DefaultCost,
		limiter:  ratelimit.NewKeyed(5, time.Minute, 0),
		now:      time.Now,
		sessions: make(map[string]*Session),
		subs:     make(map[int]func(Event)),
		tasks:    make(chan func(), taskQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp registers an account with the default user role.
func (s *Service) SignUp(ctx context.Context, email, password, fullName string) (*types.Profile, error) {
	email = normalizeEmail(email)
	fullName = strings.TrimSpace(fullName)

	verrs := types.ValidationErrors{}
	if !types.ValidEmail(email) {
		verrs.Add("email", "Please enter a valid email address")
	}
	if len(password) < minPasswordLen {
		verrs.Add("password", "Password must be at least 6 characters")
	} else if len(password) > maxPasswordLen {
		verrs.Add("password", "Password is too long")
	}
	verrs.Length("full_name", fullName, 2, 0, "Name must be at least 2 characters")
	verrs.Length("full_name", fullName, 0, 100, "Name is too long")
	if err := verrs.Err(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	p := &types.Profile{Email: email, FullName: fullName, PasswordHash: hash}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	if err := s.store.SetRole(ctx, p.ID, types.RoleUser); err != nil {
		return nil, fmt.Errorf("assigning role: %w", err)
	}

	s.logActivity(ctx, p.ID, types.ActionUserRegistered, "Registered "+email)
	log.Info("user registered", "user", p.ID)
	return p, nil
}

// SignIn verifies credentials and opens a session. The session's role is
// looked up on the dispatch loop; until then Loading is true.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if s.limiter != nil && !s.limiter.Allow(email) {
		log.Warn("sign-in rate limited", "email", email)
		return nil, ErrTooManyAttempts
	}

	p, err := s.store.ProfileByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("looking up profile: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword(p.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.limiter != nil {
		s.limiter.Reset(email)
	}

	sess := &Session{
		Token:     uuid.New().String(),
		UserID:    p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		Loading:   true,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.sessions[sess.Token] = sess
	snapshot := *sess
	s.mu.Unlock()

	s.logActivity(ctx, p.ID, types.ActionLogin, "Signed in")
	log.Info("user signed in", "user", p.ID)

	token := sess.Token
	s.post(func() { s.loadRole(token) })
	s.publish(Event{Type: EventSignedIn, Session: snapshot})

	return &snapshot, nil
}

// loadRole fills in the session's role. A missing role leaves it empty.
func (s *Service) loadRole(token string) {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	var userID string
	if ok {
		userID = sess.UserID
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	role, err := s.store.RoleFor(context.Background(), userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Error("fetching user role", "user", userID, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[token]; ok {
		sess.Role = role
		sess.Loading = false
	}
}

// Session returns a snapshot of the session for token.
func (s *Service) Session(token string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrNoSession
	}
	snapshot := *sess
	return &snapshot, nil
}

// SignOut ends a session at the user's request.
func (s *Service) SignOut(ctx context.Context, token string) error {
	sess, err := s.end(token)
	if err != nil {
		return err
	}

	s.logActivity(ctx, sess.UserID, types.ActionLogout, "Signed out")
	log.Info("user signed out", "user", sess.UserID)
	s.publish(Event{Type: EventSignedOut, Session: sess})
	return nil
}

// ExpireSession ends a session after inactivity and leaves the expiry toast
// for the client's next request.
func (s *Service) ExpireSession(ctx context.Context, token string) error {
	sess, err := s.end(token)
	if err != nil {
		return err
	}

	if s.toasts != nil {
		if err := s.toasts.Send(notification.Notification{
			Title:     "Session expired",
			Message:   ExpiredMessage,
			Time:      s.now(),
			Kind:      notification.KindSessionExpired,
			Recipient: token,
		}); err != nil {
			log.Warn("delivering expiry toast", "user", sess.UserID, "error", err)
		}
	}

	s.logActivity(ctx, sess.UserID, types.ActionSessionExpired, "Signed out after inactivity")
	log.Info("session expired", "user", sess.UserID)
	s.publish(Event{Type: EventExpired, Session: sess})
	return nil
}

// end removes the session from local state and returns its final snapshot.
func (s *Service) end(token string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return Session{}, ErrNoSession
	}
	delete(s.sessions, token)
	return *sess, nil
}

// SetRole changes a user's role and applies it to their open sessions.
func (s *Service) SetRole(ctx context.Context, actorID, userID string, role types.Role) error {
	if err := s.store.SetRole(ctx, userID, role); err != nil {
		return fmt.Errorf("setting role: %w", err)
	}

	s.mu.Lock()
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			sess.Role = role
			sess.Loading = false
		}
	}
	s.mu.Unlock()

	s.logActivityMeta(ctx, actorID, types.ActionRoleChanged, "Changed user role",
		map[string]string{"user_id": userID, "role": string(role)})
	return nil
}

// ActiveSessions returns snapshots of every open session.
func (s *Service) ActiveSessions() []Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, *sess)
	}
	return out
}

// logActivity records an audit entry. Failures are logged; they never fail
// the operation being audited.
func (s *Service) logActivity(ctx context.Context, userID, action, description string) {
	s.logActivityMeta(ctx, userID, action, description, nil)
}

func (s *Service) logActivityMeta(ctx context.Context, userID, action, description string, meta map[string]string) {
	err := s.store.LogActivity(ctx, &types.ActivityLog{
		UserID:      userID,
		Action:      action,
		Description: description,
		Metadata:    meta,
	})
	if err != nil {
		log.Error("logging activity", "action", action, "user", userID, "error", err)
	}
}
