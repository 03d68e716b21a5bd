package idle

import (
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/member-portal/pkg/testutil"
)

// callCounter records onTimeout and reset invocations.
type callCounter struct {
	mu       sync.Mutex
	timeouts int
	resets   int
	firedAt  []time.Time
	clock    *testutil.FakeClock
}

func (c *callCounter) onTimeout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeouts++
	if c.clock != nil {
		c.firedAt = append(c.firedAt, c.clock.Now())
	}
}

func (c *callCounter) onReset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resets++
}

func (c *callCounter) counts() (timeouts, resets int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeouts, c.resets
}

func newTestMonitor(t *testing.T, opts ...Option) (*Monitor, *testutil.FakeClock, *callCounter) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Time{})
	counter := &callCounter{clock: clock}
	all := append([]Option{WithClock(clock), WithResetHook(counter.onReset)}, opts...)
	m := New(counter.onTimeout, all...)
	t.Cleanup(m.Close)
	return m, clock, counter
}

func TestMonitor_FiresAfterTimeoutWithoutActivity(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))
	start := clock.Now()

	clock.Advance(59 * time.Second)
	if got, _ := counter.counts(); got != 0 {
		t.Fatalf("onTimeout called %d times before timeout", got)
	}

	clock.Advance(time.Second)
	if got, _ := counter.counts(); got != 1 {
		t.Fatalf("onTimeout called %d times, want 1", got)
	}
	if fired := counter.firedAt[0].Sub(start); fired != time.Minute {
		t.Errorf("fired at %v, want 1m", fired)
	}

	// No self re-arm.
	clock.Advance(10 * time.Minute)
	if got, _ := counter.counts(); got != 1 {
		t.Errorf("onTimeout called %d times after waiting, want 1", got)
	}
	if m.State() != StateDisabled {
		t.Errorf("State() = %v, want disabled", m.State())
	}
}

func TestMonitor_ActivityPostponesTimeout(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))
	start := clock.Now()

	clock.Advance(50 * time.Second)
	m.Signal(SignalClick)

	clock.Advance(10 * time.Second) // t=60s
	if got, _ := counter.counts(); got != 0 {
		t.Fatalf("onTimeout called at t=60s after activity at t=50s")
	}

	clock.Advance(50 * time.Second) // t=110s
	if got, _ := counter.counts(); got != 0 {
		t.Fatalf("onTimeout called before throttled reset deadline")
	}

	clock.Advance(time.Second) // t=111s: reset happened at 51s
	if got, _ := counter.counts(); got != 1 {
		t.Fatalf("onTimeout called %d times, want 1", got)
	}
	if fired := counter.firedAt[0].Sub(start); fired != 111*time.Second {
		t.Errorf("fired at %v, want 111s", fired)
	}
}

func TestMonitor_ThrottleCoalescesBursts(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(5))
	start := clock.Now()

	for i := 0; i < 50; i++ {
		m.Signal(SignalPointerMove)
		clock.Advance(10 * time.Millisecond)
	}
	if m.State() != StateThrottleSuppressed {
		t.Errorf("State() = %v during burst, want throttle_suppressed", m.State())
	}

	clock.Advance(time.Second)
	if _, resets := counter.counts(); resets != 1 {
		t.Fatalf("reset ran %d times for one burst, want 1", resets)
	}
	if m.State() != StateArmed {
		t.Errorf("State() = %v after window, want armed", m.State())
	}

	resetAt := start.Add(time.Second)
	if got := m.LastActivity(); !got.Equal(resetAt) {
		t.Errorf("LastActivity() = %v, want %v", got, resetAt)
	}

	clock.Advance(5*time.Minute - 1500*time.Millisecond)
	if got, _ := counter.counts(); got != 0 {
		t.Fatalf("onTimeout fired before 5m from the coalesced reset")
	}
	clock.Advance(time.Second)
	if got, _ := counter.counts(); got != 1 {
		t.Fatalf("onTimeout called %d times, want 1", got)
	}
	if fired := counter.firedAt[0]; !fired.Equal(resetAt.Add(5 * time.Minute)) {
		t.Errorf("fired at %v, want %v", fired, resetAt.Add(5*time.Minute))
	}
}

func TestMonitor_ThrottleResetsAgainAfterWindow(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))

	for i := 0; i < 5; i++ {
		m.Signal(SignalKeyDown)
		clock.Advance(1500 * time.Millisecond)
	}

	if _, resets := counter.counts(); resets != 5 {
		t.Errorf("reset ran %d times, want one per window (5)", resets)
	}
}

func TestMonitor_DisableSilences(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))

	clock.Advance(10 * time.Second)
	m.Signal(SignalScroll)
	m.SetEnabled(false)

	clock.Advance(time.Hour)
	if got, resets := counter.counts(); got != 0 || resets != 0 {
		t.Fatalf("after disable: timeouts=%d resets=%d, want 0/0", got, resets)
	}
	if clock.PendingTimers() != 0 {
		t.Errorf("PendingTimers() = %d after disable, want 0", clock.PendingTimers())
	}

	// Signals while disabled are inert.
	m.Signal(SignalClick)
	if clock.PendingTimers() != 0 {
		t.Errorf("signal armed a timer while disabled")
	}
}

func TestMonitor_ReenableStartsFresh(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))

	clock.Advance(40 * time.Second)
	m.SetEnabled(false)
	clock.Advance(time.Minute)

	m.SetEnabled(true)
	if !m.LastActivity().Equal(clock.Now()) {
		t.Errorf("re-enable did not record activity")
	}
	clock.Advance(59 * time.Second)
	if got, _ := counter.counts(); got != 0 {
		t.Fatalf("fired early after re-enable")
	}
	clock.Advance(time.Second)
	if got, _ := counter.counts(); got != 1 {
		t.Fatalf("onTimeout called %d times, want 1", got)
	}

	// After firing the monitor can be armed again for a new session.
	m.SetEnabled(true)
	clock.Advance(time.Minute)
	if got, _ := counter.counts(); got != 2 {
		t.Errorf("onTimeout called %d times, want 2", got)
	}
}

func TestMonitor_StartsDisabled(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithEnabled(false), WithTimeoutMinutes(1))

	if m.State() != StateDisabled {
		t.Fatalf("State() = %v, want disabled", m.State())
	}
	clock.Advance(time.Hour)
	if got, _ := counter.counts(); got != 0 {
		t.Errorf("disabled monitor fired")
	}
}

func TestMonitor_CloseIsTerminal(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))

	m.Signal(SignalClick)
	m.Close()
	m.SetEnabled(true)
	m.Reset()
	m.VisibilityChanged(VisibilityVisible)

	clock.Advance(time.Hour)
	if got, _ := counter.counts(); got != 0 {
		t.Errorf("closed monitor fired %d times", got)
	}
	if clock.PendingTimers() != 0 {
		t.Errorf("PendingTimers() = %d after close, want 0", clock.PendingTimers())
	}
}

func TestMonitor_VisibilityCatchUp(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))

	m.VisibilityChanged(VisibilityHidden)

	// Simulate a throttled background tab: the wall clock moves on but the
	// countdown has not been delivered yet.
	m.mu.Lock()
	m.lastActivity = clock.Now().Add(-2 * time.Minute)
	m.mu.Unlock()

	m.VisibilityChanged(VisibilityVisible)
	if got, _ := counter.counts(); got != 1 {
		t.Fatalf("onTimeout called %d times on visibility restore, want 1", got)
	}

	clock.Advance(time.Hour)
	if got, _ := counter.counts(); got != 1 {
		t.Errorf("pending countdown fired after catch-up (%d calls)", got)
	}
}

func TestMonitor_VisibilityWithinTimeoutResets(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))

	clock.Advance(30 * time.Second)
	m.VisibilityChanged(VisibilityVisible)
	if _, resets := counter.counts(); resets != 1 {
		t.Fatalf("visibility restore reset %d times, want 1", resets)
	}

	deadline, ok := m.Deadline()
	if !ok {
		t.Fatal("no countdown armed after visibility reset")
	}
	if want := clock.Now().Add(time.Minute); !deadline.Equal(want) {
		t.Errorf("Deadline() = %v, want full duration from now %v", deadline, want)
	}

	clock.Advance(59 * time.Second)
	if got, _ := counter.counts(); got != 0 {
		t.Errorf("fired before the refreshed deadline")
	}
}

func TestMonitor_DisableDuringThrottleWindow(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(1))

	m.Signal(SignalTouchStart)
	m.SetEnabled(false)
	clock.Advance(2 * time.Second)

	if _, resets := counter.counts(); resets != 0 {
		t.Errorf("throttled reset ran after disable")
	}
}

func TestMonitor_CallbackMayDisable(t *testing.T) {
	clock := testutil.NewFakeClock(time.Time{})
	var m *Monitor
	calls := 0
	m = New(func() {
		calls++
		m.SetEnabled(false)
		m.Close()
	}, WithClock(clock), WithTimeout(time.Minute))

	clock.Advance(time.Minute)
	if calls != 1 {
		t.Errorf("callback ran %d times, want 1", calls)
	}
}

func TestMonitor_Defaults(t *testing.T) {
	m := New(nil, WithEnabled(false))
	defer m.Close()

	if m.Timeout() != DefaultTimeout {
		t.Errorf("Timeout() = %v, want %v", m.Timeout(), DefaultTimeout)
	}
	if m.throttleWindow != DefaultThrottleWindow {
		t.Errorf("throttleWindow = %v, want %v", m.throttleWindow, DefaultThrottleWindow)
	}
}

func TestMonitor_WallClockFires(t *testing.T) {
	done := make(chan struct{})
	m := New(func() { close(done) }, WithTimeout(30*time.Millisecond))
	defer m.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("onTimeout not called with the wall clock")
	}
}

func TestMonitor_VisibleWhileThrottleSuppressed(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(5), WithThrottleWindow(time.Second))
	start := clock.Now()

	m.Signal(SignalPointerMove)
	clock.Advance(500 * time.Millisecond)
	if m.State() != StateThrottleSuppressed {
		t.Fatalf("State() = %v, want throttle_suppressed", m.State())
	}

	m.VisibilityChanged(VisibilityVisible)
	if m.State() != StateThrottleSuppressed {
		t.Errorf("State() after visible = %v, want throttle_suppressed", m.State())
	}
	if got := clock.PendingTimers(); got != 2 {
		t.Errorf("PendingTimers() = %d, want countdown and throttle", got)
	}
	if d, _ := m.Deadline(); d.Sub(start) != 5*time.Minute+500*time.Millisecond {
		t.Errorf("deadline after visible = %v, want 5m0.5s", d.Sub(start))
	}

	// The throttled reset still lands and replaces the countdown.
	clock.Advance(500 * time.Millisecond)
	if m.State() != StateArmed {
		t.Errorf("State() after throttle = %v, want armed", m.State())
	}
	if got := clock.PendingTimers(); got != 1 {
		t.Errorf("PendingTimers() = %d, want one live countdown", got)
	}
	if d, _ := m.Deadline(); d.Sub(start) != 5*time.Minute+time.Second {
		t.Errorf("deadline after throttle = %v, want 5m1s", d.Sub(start))
	}
	if _, resets := counter.counts(); resets != 2 {
		t.Errorf("reset hook called %d times, want 2", resets)
	}

	clock.Advance(5*time.Minute - time.Millisecond)
	if got, _ := counter.counts(); got != 0 {
		t.Fatalf("onTimeout called %d times before the deadline", got)
	}
	clock.Advance(time.Millisecond)
	if got, _ := counter.counts(); got != 1 {
		t.Fatalf("onTimeout called %d times at the deadline, want 1", got)
	}

	clock.Advance(time.Hour)
	if got, _ := counter.counts(); got != 1 {
		t.Errorf("onTimeout called %d times after waiting, want 1", got)
	}
	if got := clock.PendingTimers(); got != 0 {
		t.Errorf("PendingTimers() after firing = %d, want 0", got)
	}
}

func TestMonitor_TimeoutCancelsPendingThrottle(t *testing.T) {
	m, clock, counter := newTestMonitor(t, WithTimeoutMinutes(5), WithThrottleWindow(10*time.Minute))
	start := clock.Now()

	clock.Advance(4 * time.Minute)
	m.Signal(SignalKeyDown)
	clock.Advance(30 * time.Second)
	m.VisibilityChanged(VisibilityVisible)

	// The countdown from the visibility reset ends before the throttle window.
	clock.Advance(5 * time.Minute)
	if got, _ := counter.counts(); got != 1 {
		t.Fatalf("onTimeout called %d times, want 1", got)
	}
	if fired := counter.firedAt[0].Sub(start); fired != 9*time.Minute+30*time.Second {
		t.Errorf("fired at %v, want 9m30s", fired)
	}
	if got := clock.PendingTimers(); got != 0 {
		t.Errorf("PendingTimers() = %d, want the throttle cancelled", got)
	}

	clock.Advance(time.Hour)
	m.VisibilityChanged(VisibilityVisible)
	timeouts, resets := counter.counts()
	if timeouts != 1 {
		t.Errorf("onTimeout called %d times, want 1", timeouts)
	}
	if resets != 1 {
		t.Errorf("reset hook called %d times, want only the visibility reset", resets)
	}
	if m.State() != StateDisabled {
		t.Errorf("State() = %v, want disabled", m.State())
	}
}
