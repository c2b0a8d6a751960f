package delay

import (
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeClock drives timers manually so debounce behavior can be asserted
// without sleeping.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	c       *fakeClock
	at      time.Duration
	seq     int
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	t := &fakeTimer{c: c, at: c.now + d, seq: c.seq, f: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves the clock forward, firing due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now + d
	c.mu.Unlock()
	for {
		c.mu.Lock()
		var due []*fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && t.at <= target {
				due = append(due, t)
			}
		}
		if len(due) == 0 {
			c.now = target
			c.mu.Unlock()
			return
		}
		sort.Slice(due, func(i, j int) bool {
			if due[i].at != due[j].at {
				return due[i].at < due[j].at
			}
			return due[i].seq < due[j].seq
		})
		next := due[0]
		next.fired = true
		c.now = next.at
		c.mu.Unlock()
		next.f()
	}
}

func (c *fakeClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Live() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

func newFake() (*Scheduler, *fakeClock) {
	c := &fakeClock{}
	return New(withAfterFunc(c.AfterFunc), WithName("test")), c
}

func TestScheduleFiresOnceAfterDelay(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	var calls int
	if err := s.Schedule(func() bool { calls++; return false }, 100*time.Millisecond, true); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	if !s.Pending() {
		t.Fatal("expected pending invocation")
	}
	c.Advance(99 * time.Millisecond)
	if calls != 0 {
		t.Fatalf("fired early: calls=%d", calls)
	}
	c.Advance(time.Millisecond)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if s.Pending() {
		t.Fatal("expected idle after firing")
	}
}

func TestSchedulePostponeResetsCountdown(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	var firedAt []time.Duration
	cb := func() bool { firedAt = append(firedAt, c.Now()); return false }

	_ = s.Schedule(cb, 100*time.Millisecond, true)
	c.Advance(60 * time.Millisecond)
	_ = s.Schedule(cb, 100*time.Millisecond, true)
	if got := c.Live(); got != 1 {
		t.Fatalf("live timers = %d, want 1", got)
	}
	c.Advance(300 * time.Millisecond)

	if len(firedAt) != 1 {
		t.Fatalf("fired %d times, want 1", len(firedAt))
	}
	if firedAt[0] != 160*time.Millisecond {
		t.Fatalf("fired at %v, want 160ms (100ms after second call)", firedAt[0])
	}
}

func TestScheduleWithoutPostponeKeepsFirstDeadline(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	var firedAt []time.Duration
	first := func() bool { firedAt = append(firedAt, c.Now()); return false }
	second := func() bool { t.Error("second callback must not run"); return false }

	_ = s.Schedule(first, 100*time.Millisecond, false)
	c.Advance(60 * time.Millisecond)
	_ = s.Schedule(second, 100*time.Millisecond, false)
	c.Advance(300 * time.Millisecond)

	if len(firedAt) != 1 {
		t.Fatalf("fired %d times, want 1", len(firedAt))
	}
	if firedAt[0] != 100*time.Millisecond {
		t.Fatalf("fired at %v, want 100ms (after first call)", firedAt[0])
	}
}

func TestCallbackReturningTrueReschedules(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	var firedAt []time.Duration
	cb := func() bool {
		firedAt = append(firedAt, c.Now())
		return len(firedAt) < 3
	}

	_ = s.Schedule(cb, 50*time.Millisecond, true)
	c.Advance(time.Second)

	want := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 150 * time.Millisecond}
	if len(firedAt) != len(want) {
		t.Fatalf("fired %d times, want %d", len(firedAt), len(want))
	}
	for i := range want {
		if firedAt[i] != want[i] {
			t.Fatalf("fire %d at %v, want %v", i, firedAt[i], want[i])
		}
	}
	if s.Pending() {
		t.Fatal("expected idle once callback returned false")
	}
}

func TestScheduleDuringCallbackKeepsSingleTimer(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	var n int
	var cb Callback
	cb = func() bool {
		n++
		if n == 1 {
			_ = s.Schedule(cb, 10*time.Millisecond, true)
			return true
		}
		return false
	}
	_ = s.Schedule(cb, 10*time.Millisecond, true)
	c.Advance(10 * time.Millisecond)
	if got := c.Live(); got != 1 {
		t.Fatalf("live timers = %d, want 1", got)
	}
	c.Advance(time.Second)
	if n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	_ = s.Schedule(func() bool { t.Error("canceled callback ran"); return false }, 10*time.Millisecond, true)
	if !s.Cancel() {
		t.Fatal("Cancel reported nothing pending")
	}
	if s.Cancel() {
		t.Fatal("second Cancel reported a pending invocation")
	}
	c.Advance(time.Second)
}

func TestCancelDuringCallbackStopsRescheduling(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	started := make(chan struct{})
	release := make(chan struct{})
	var runs atomic.Int32
	cb := func() bool {
		if runs.Add(1) == 1 {
			close(started)
			<-release
		}
		return true
	}
	_ = s.Schedule(cb, 10*time.Millisecond, true)

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Advance(10 * time.Millisecond)
	}()
	<-started
	if s.Cancel() {
		t.Fatal("Cancel reported a pending invocation while the callback was running")
	}
	close(release)
	<-done

	if s.Pending() {
		t.Fatal("callback re-armed after Cancel")
	}
	c.Advance(time.Second)
	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}

	// The scheduler stays usable after the canceled loop.
	_ = s.Schedule(func() bool { runs.Add(1); return false }, 10*time.Millisecond, true)
	c.Advance(10 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Fatalf("runs after reschedule = %d, want 2", got)
	}
}

func TestStaleTimerCallbackIsIgnored(t *testing.T) {
	t.Parallel()
	// Simulate a timer whose goroutine started right before Stop took effect.
	var captured func()
	s := New(withAfterFunc(func(d time.Duration, f func()) timer {
		captured = f
		return stubTimer{}
	}))
	_ = s.Schedule(func() bool { t.Error("stale callback ran"); return false }, time.Millisecond, true)
	s.Cancel()
	captured()
}

type stubTimer struct{}

func (stubTimer) Stop() bool { return false }

func TestStopRejectsScheduling(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	_ = s.Schedule(func() bool { t.Error("callback ran after Stop"); return false }, 10*time.Millisecond, true)
	s.Stop()
	if err := s.Schedule(func() bool { return false }, 0, true); err != ErrStopped {
		t.Fatalf("Schedule after Stop err = %v, want ErrStopped", err)
	}
	c.Advance(time.Second)
}

func TestNegativeDelayIsClampedAndNilRejected(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	var calls int
	if err := s.Schedule(func() bool { calls++; return false }, -time.Second, true); err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	c.Advance(0)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
	if err := s.Schedule(nil, time.Millisecond, true); err == nil {
		t.Fatal("expected error for nil callback")
	}
}

func TestPanickingCallbackReturnsToIdle(t *testing.T) {
	t.Parallel()
	s, c := newFake()
	_ = s.Schedule(func() bool { panic("boom") }, time.Millisecond, true)
	c.Advance(time.Second)
	if s.Pending() {
		t.Fatal("expected idle after panic")
	}
	if s.Fired() != 1 {
		t.Fatalf("Fired = %d, want 1", s.Fired())
	}
}

func TestRealTimerDebounce(t *testing.T) {
	t.Parallel()
	s := New()
	var calls atomic.Int32
	done := make(chan struct{}, 4)
	cb := func() bool {
		calls.Add(1)
		done <- struct{}{}
		return false
	}
	for i := 0; i < 5; i++ {
		_ = s.Debounce(cb, 30*time.Millisecond)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("callback never fired")
	}
	time.Sleep(60 * time.Millisecond)
	if got := calls.Load(); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}
