// Package idle provides inactivity detection for authenticated sessions.
package idle

import (
	"sync"
	"time"

	"github.com/Veraticus/member-portal/pkg/interfaces"
)

const (
	// DefaultTimeout is the inactivity duration after which a session ends.
	DefaultTimeout = 30 * time.Minute

	// DefaultThrottleWindow coalesces bursts of activity into one reset.
	DefaultThrottleWindow = time.Second
)

// State is the externally observable state of a Monitor.
type State int

const (
	// StateDisabled means no countdown is running and activity is ignored.
	StateDisabled State = iota
	// StateArmed means the countdown is running and the next signal resets it.
	StateArmed
	// StateThrottleSuppressed means a reset is scheduled and further signals
	// are absorbed until the throttle window closes.
	StateThrottleSuppressed
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateArmed:
		return "armed"
	case StateThrottleSuppressed:
		return "throttle_suppressed"
	default:
		return "unknown"
	}
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithTimeout sets the inactivity duration. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithTimeoutMinutes sets the inactivity duration in whole minutes.
func WithTimeoutMinutes(n int) Option {
	return WithTimeout(time.Duration(n) * time.Minute)
}

// WithThrottleWindow sets the activity coalescing window.
func WithThrottleWindow(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.throttleWindow = d
		}
	}
}

// WithEnabled sets whether the monitor starts armed. Defaults to true.
func WithEnabled(enabled bool) Option {
	return func(m *Monitor) {
		m.startEnabled = enabled
	}
}

// WithClock replaces the wall clock.
func WithClock(c interfaces.Clock) Option {
	return func(m *Monitor) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithResetHook registers f to be called after every reset caused by
// activity, an explicit Reset or a visibility change. f runs without the
// monitor lock held.
func WithResetHook(f func()) Option {
	return func(m *Monitor) {
		m.onReset = f
	}
}

// Monitor fires a callback once per uninterrupted inactivity period.
//
// Activity signals do not rearm the countdown directly: the first signal
// closes a throttle gate and schedules a reset one throttle window later,
// and every signal arriving while the gate is closed is absorbed. When the
// countdown elapses the callback runs and the monitor disables itself until
// SetEnabled(true) is called again.
type Monitor struct {
	clock          interfaces.Clock
	timeout        time.Duration
	throttleWindow time.Duration
	onTimeout      func()
	onReset        func()
	startEnabled   bool

	mu           sync.Mutex
	enabled      bool
	closed       bool
	lastActivity time.Time
	deadline     time.Time

	// Timers that fired but lost the race for mu are discarded by
	// comparing their generation with the current one.
	timer       interfaces.Timer
	timerGen    uint64
	throttle    interfaces.Timer
	throttleGen uint64
}

// New creates a monitor that calls onTimeout after the configured period of
// inactivity. Unless WithEnabled(false) is given the countdown starts now.
func New(onTimeout func(), opts ...Option) *Monitor {
	m := &Monitor{
		clock:          WallClock{},
		timeout:        DefaultTimeout,
		throttleWindow: DefaultThrottleWindow,
		onTimeout:      onTimeout,
		startEnabled:   true,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.lastActivity = m.clock.Now()
	if m.startEnabled {
		m.SetEnabled(true)
	}
	return m
}

// Signal records a user-interaction event.
func (m *Monitor) Signal(s Signal) {
	if !s.Valid() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || m.throttle != nil {
		return
	}

	m.throttleGen++
	gen := m.throttleGen
	m.throttle = m.clock.AfterFunc(m.throttleWindow, func() {
		m.throttleElapsed(gen)
	})
}

// Reset records activity now and restarts the countdown if enabled.
func (m *Monitor) Reset() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.mu.Unlock()

	m.notifyReset()
}

// VisibilityChanged handles the document becoming visible or hidden. When
// it becomes visible and the timeout already elapsed while hidden, the
// callback fires immediately instead of waiting for a delayed timer.
func (m *Monitor) VisibilityChanged(v Visibility) {
	if v != VisibilityVisible {
		return
	}

	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}

	if m.clock.Now().Sub(m.lastActivity) >= m.timeout {
		m.disableLocked()
		cb := m.onTimeout
		m.mu.Unlock()

		if cb != nil {
			cb()
		}
		return
	}

	m.resetLocked()
	m.mu.Unlock()

	m.notifyReset()
}

// SetEnabled arms or disarms the monitor. Disabling cancels the countdown
// and any pending throttled reset. Enabling a disabled monitor starts a
// fresh countdown from now.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed || m.enabled == enabled {
		return
	}

	if !enabled {
		m.disableLocked()
		return
	}

	m.enabled = true
	m.resetLocked()
}

// Close tears the monitor down. No callback runs after Close returns, and
// the monitor cannot be enabled again.
func (m *Monitor) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.disableLocked()
}

// Enabled reports whether the countdown is armed.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case !m.enabled:
		return StateDisabled
	case m.throttle != nil:
		return StateThrottleSuppressed
	default:
		return StateArmed
	}
}

// Timeout returns the configured inactivity duration.
func (m *Monitor) Timeout() time.Duration {
	return m.timeout
}

// LastActivity returns the time of the last recorded activity.
func (m *Monitor) LastActivity() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastActivity
}

// Deadline returns when the pending countdown fires. ok is false when no
// countdown is armed.
func (m *Monitor) Deadline() (deadline time.Time, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.enabled || m.timer == nil {
		return time.Time{}, false
	}
	return m.deadline, true
}

func (m *Monitor) throttleElapsed(gen uint64) {
	m.mu.Lock()
	if gen != m.throttleGen || m.throttle == nil {
		m.mu.Unlock()
		return
	}
	m.throttle = nil
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	m.resetLocked()
	m.mu.Unlock()

	m.notifyReset()
}

func (m *Monitor) expire(gen uint64) {
	m.mu.Lock()
	if gen != m.timerGen || !m.enabled {
		m.mu.Unlock()
		return
	}
	m.timer = nil
	m.disableLocked()
	cb := m.onTimeout
	m.mu.Unlock()

	if cb != nil {
		cb()
	}
}

// resetLocked must be called with mu held.
func (m *Monitor) resetLocked() {
	now := m.clock.Now()
	if now.After(m.lastActivity) {
		m.lastActivity = now
	}

	m.stopTimerLocked()
	if !m.enabled {
		return
	}

	gen := m.timerGen
	m.deadline = now.Add(m.timeout)
	m.timer = m.clock.AfterFunc(m.timeout, func() {
		m.expire(gen)
	})
}

// disableLocked must be called with mu held.
func (m *Monitor) disableLocked() {
	m.enabled = false
	m.stopTimerLocked()

	if m.throttle != nil {
		m.throttle.Stop()
		m.throttle = nil
	}
	m.throttleGen++
}

func (m *Monitor) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.timerGen++
	m.deadline = time.Time{}
}

func (m *Monitor) notifyReset() {
	if m.onReset != nil {
		m.onReset()
	}
}
