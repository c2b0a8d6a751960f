package delay

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	logx "elesrank/pkg/logx"
)

// ErrStopped is returned by Schedule after Stop.
var ErrStopped = errors.New("delay: scheduler stopped")

// Callback is the deferred work. Returning true asks the scheduler to run it
// again after the same delay.
type Callback func() bool

type timer interface {
	Stop() bool
}

type afterFunc func(d time.Duration, f func()) timer

func realAfter(d time.Duration, f func()) timer { return time.AfterFunc(d, f) }

// Scheduler coalesces repeated Schedule calls into a single deferred callback.
// The zero value is not usable; use New.
type Scheduler struct {
	name string
	log  logx.Logger

	after afterFunc

	// runMu serializes callback execution for this instance.
	runMu sync.Mutex

	mu      sync.Mutex
	pending timer
	gen     uint64 // bumped on every arm/cancel; stale timer callbacks compare against it
	cancels uint64 // bumped by Cancel/Stop; a running callback does not re-arm across it
	stopped bool
	fired   uint64
}

type Option func(*Scheduler)

func WithLogger(log logx.Logger) Option {
	return func(s *Scheduler) { s.log = log }
}

// WithName labels log lines produced by this scheduler.
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

func withAfterFunc(fn afterFunc) Option {
	return func(s *Scheduler) { s.after = fn }
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{after: realAfter}
	for _, o := range opts {
		o(s)
	}
	if s.after == nil {
		s.after = realAfter
	}
	if s.log.IsZero() {
		s.log = logx.Nop()
	}
	return s
}

// Debounce is Schedule with postpone=true.
func (s *Scheduler) Debounce(cb Callback, d time.Duration) error {
	return s.Schedule(cb, d, true)
}

// Schedule arms cb to run after d.
//
// If an invocation is already pending and postpone is true, the pending one is
// canceled and a fresh one is armed for d from now. If postpone is false the
// pending invocation wins and this call is a no-op.
//
// Negative delays are clamped to zero.
func (s *Scheduler) Schedule(cb Callback, d time.Duration, postpone bool) error {
	if cb == nil {
		return fmt.Errorf("delay: nil callback")
	}
	if d < 0 {
		d = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return ErrStopped
	}

	if s.pending == nil {
		s.armLocked(cb, d)
		return nil
	}
	if !postpone {
		s.log.Trace("delay already pending; keeping", logx.String("name", s.name))
		return nil
	}
	s.pending.Stop()
	s.pending = nil
	s.armLocked(cb, d)
	s.log.Trace("delay postponed", logx.String("name", s.name), logx.Duration("delay", d))
	return nil
}

// Pending reports whether an invocation is armed and has not fired yet.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

// Fired reports how many times a callback has been invoked.
func (s *Scheduler) Fired() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fired
}

// Cancel drops the pending invocation, if any. It reports whether one was pending.
// A callback that is executing at the time finishes but does not re-arm.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelLocked()
}

// Stop cancels any pending invocation and rejects further scheduling.
// A callback that is already executing is allowed to finish but will not re-arm.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.cancelLocked()
	s.mu.Unlock()
}

func (s *Scheduler) cancelLocked() bool {
	s.gen++
	s.cancels++
	if s.pending == nil {
		return false
	}
	s.pending.Stop()
	s.pending = nil
	return true
}

func (s *Scheduler) armLocked(cb Callback, d time.Duration) {
	s.gen++
	gen := s.gen
	s.pending = s.after(d, func() { s.fire(gen, cb, d) })
}

func (s *Scheduler) fire(gen uint64, cb Callback, d time.Duration) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	// Clear the pending handle before running the callback. A timer that was
	// stopped too late to prevent its goroutine from starting is detected here.
	s.mu.Lock()
	if s.gen != gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.pending = nil
	s.fired++
	epoch := s.cancels
	s.mu.Unlock()

	if !s.run(cb) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.cancels != epoch {
		return
	}
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.armLocked(cb, d)
	s.log.Trace("delay rescheduled by callback", logx.String("name", s.name), logx.Duration("delay", d))
}

func (s *Scheduler) run(cb Callback) (again bool) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("delayed callback panicked",
				logx.String("name", s.name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			again = false
		}
	}()
	return cb()
}
