// Package monitor ties inactivity monitors to signed-in sessions.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Veraticus/member-portal/pkg/auth"
	"github.com/Veraticus/member-portal/pkg/config"
	"github.com/Veraticus/member-portal/pkg/idle"
	"github.com/Veraticus/member-portal/pkg/interfaces"
	"github.com/Veraticus/member-portal/pkg/log"
)

// expireTimeout bounds how long an idle expiry may spend ending the session,
// so Close never waits on a stuck store write.
const expireTimeout = 10 * time.Second

// ErrUnknownSession is returned for a session without a live monitor.
var ErrUnknownSession = errors.New("no monitor for session")

// Status is a snapshot of one session's inactivity monitor.
type Status struct {
	State        string        `json:"state"`
	LastActivity time.Time     `json:"last_activity"`
	Timeout      time.Duration `json:"timeout"`
	// Remaining is the time left before the session expires; zero when no
	// countdown is armed.
	Remaining time.Duration `json:"remaining"`
}

// Registry keeps one idle.Monitor per signed-in session. A monitor exists
// exactly while its session is signed in, and its timeout expires the
// session through the SessionExpirer.
type Registry struct {
	clock          interfaces.Clock
	expirer        interfaces.SessionExpirer
	timeout        time.Duration
	throttleWindow time.Duration

	mu       sync.Mutex
	monitors map[string]*idle.Monitor
	closed   bool
	wg       sync.WaitGroup
}

// NewRegistry creates a registry using the session timeout and throttle
// window from cfg. A nil clock uses the wall clock.
func NewRegistry(cfg *config.Config, clock interfaces.Clock, expirer interfaces.SessionExpirer) *Registry {
	if clock == nil {
		clock = idle.WallClock{}
	}
	return &Registry{
		clock:          clock,
		expirer:        expirer,
		timeout:        cfg.SessionTimeout,
		throttleWindow: cfg.ThrottleWindow,
		monitors:       make(map[string]*idle.Monitor),
	}
}

// HandleAuthEvent starts monitoring on sign-in and stops it on sign-out or
// expiry. It is meant to be registered with auth.Service.Subscribe.
func (r *Registry) HandleAuthEvent(evt auth.Event) {
	switch evt.Type {
	case auth.EventSignedIn:
		r.add(evt.Session.Token, evt.Session.UserID)
	case auth.EventSignedOut, auth.EventExpired:
		r.remove(evt.Session.Token)
	}
}

func (r *Registry) add(token, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if old, ok := r.monitors[token]; ok {
		old.Close()
	}

	r.monitors[token] = idle.New(
		func() { r.timedOut(token, userID) },
		idle.WithClock(r.clock),
		idle.WithTimeout(r.timeout),
		idle.WithThrottleWindow(r.throttleWindow),
	)
	log.Debug("session monitor started", "user", userID, "timeout", r.timeout)
}

// timedOut runs on the monitor's firing path, so the expiry is handed to
// its own goroutine.
func (r *Registry) timedOut(token, userID string) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()

		log.Info("session idle timeout", "user", userID)
		ctx, cancel := context.WithTimeout(context.Background(), expireTimeout)
		defer cancel()
		if err := r.expirer.ExpireSession(ctx, token); err != nil && !errors.Is(err, auth.ErrNoSession) {
			log.Error("expiring idle session", "user", userID, "error", err)
		}
		r.remove(token)
	}()
}

func (r *Registry) remove(token string) {
	r.mu.Lock()
	m, ok := r.monitors[token]
	delete(r.monitors, token)
	r.mu.Unlock()

	if ok {
		m.Close()
	}
}

func (r *Registry) get(token string) (*idle.Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.monitors[token]
	if !ok {
		return nil, ErrUnknownSession
	}
	return m, nil
}

// Deliver feeds activity signals from the session's client to its monitor.
func (r *Registry) Deliver(token string, signals []idle.Signal) error {
	m, err := r.get(token)
	if err != nil {
		return err
	}
	for _, s := range signals {
		m.Signal(s)
	}
	return nil
}

// SetVisibility reports that the session's page became visible or hidden.
func (r *Registry) SetVisibility(token string, v idle.Visibility) error {
	m, err := r.get(token)
	if err != nil {
		return err
	}
	m.VisibilityChanged(v)
	return nil
}

// Touch restarts the session's countdown immediately.
func (r *Registry) Touch(token string) error {
	m, err := r.get(token)
	if err != nil {
		return err
	}
	m.Reset()
	return nil
}

// Status returns a snapshot of the session's monitor.
func (r *Registry) Status(token string) (Status, error) {
	m, err := r.get(token)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		State:        m.State().String(),
		LastActivity: m.LastActivity(),
		Timeout:      m.Timeout(),
	}
	if deadline, ok := m.Deadline(); ok {
		if remaining := deadline.Sub(r.clock.Now()); remaining > 0 {
			st.Remaining = remaining
		}
	}
	return st, nil
}

// Len returns the number of monitored sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.monitors)
}

// Close stops every monitor and waits for expiries already in flight.
// Sessions signed in afterwards are not monitored.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	monitors := r.monitors
	r.monitors = make(map[string]*idle.Monitor)
	r.mu.Unlock()

	for _, m := range monitors {
		m.Close()
	}
	r.wg.Wait()
}
