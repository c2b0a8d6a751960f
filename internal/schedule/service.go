package schedule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	logx "elesrank/pkg/logx"
)

// Job runs on every tick. The context is cancelled when the service stops.
type Job func(ctx context.Context)

type entry struct {
	name string
	spec Spec
	job  Job
	id   cron.EntryID
}

// Service owns a cron instance. Jobs added before Start are registered on
// Start; SetTimezone rebuilds the cron with every registered job.
type Service struct {
	log    logx.Logger
	parser cron.Parser

	mu      sync.Mutex
	c       *cron.Cron
	loc     *time.Location
	entries []*entry
	ctx     context.Context
	cancel  context.CancelFunc
}

func New(log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		log: log,
		// SecondOptional accepts 5- and 6-field expressions.
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		loc:    time.Local,
	}
}

// SetTimezone switches the location used for cron expressions. An empty name
// means local time.
func (s *Service) SetTimezone(tz string) error {
	loc := time.Local
	if tz = strings.TrimSpace(tz); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("schedule timezone %q: %w", tz, err)
		}
		loc = l
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc.String() == loc.String() {
		return nil
	}
	s.loc = loc
	if s.c != nil {
		s.restartLocked()
	}
	return nil
}

// Add registers job under name, replacing an existing job with that name.
func (s *Service) Add(name, raw string, job Job) error {
	if job == nil {
		return fmt.Errorf("schedule %s: nil job", name)
	}
	spec, err := Parse(raw)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	if spec.Kind == KindCron {
		if _, err := s.parser.Parse(spec.Cron); err != nil {
			return fmt.Errorf("schedule %s: %w", name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(name)
	e := &entry{name: name, spec: spec, job: job}
	s.entries = append(s.entries, e)
	if s.c != nil {
		s.registerLocked(e)
	}
	s.log.Debug("schedule added", logx.String("name", name), logx.String("kind", spec.Kind.String()), logx.String("spec", strings.TrimSpace(raw)))
	return nil
}

// Remove drops the named job and reports whether it existed.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(name)
}

func (s *Service) removeLocked(name string) bool {
	for i, e := range s.entries {
		if e.name != name {
			continue
		}
		if s.c != nil && e.id != 0 {
			s.c.Remove(e.id)
		}
		s.entries = append(s.entries[:i], s.entries[i+1:]...)
		return true
	}
	return false
}

// Names lists registered jobs in insertion order.
func (s *Service) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.name
	}
	return out
}

// Next reports the next activation of the named job; zero when unknown or not started.
func (s *Service) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil {
		return time.Time{}
	}
	for _, e := range s.entries {
		if e.name == name {
			return s.c.Entry(e.id).Next
		}
	}
	return time.Time{}
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = s.newCronLocked()
	for _, e := range s.entries {
		s.registerLocked(e)
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.entries)))
}

// Stop halts triggering and waits for running jobs, or until ctx is done.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.cancel = nil
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Service) newCronLocked() *cron.Cron {
	return cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
}

func (s *Service) registerLocked(e *entry) {
	ctx := s.ctx
	name := e.name
	job := e.job
	fn := cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		s.log.Debug("schedule fired", logx.String("name", name))
		job(ctx)
	})
	if e.spec.Kind == KindInterval {
		e.id = s.c.Schedule(cron.Every(e.spec.Every), fn)
		return
	}
	id, err := s.c.AddJob(e.spec.Cron, fn)
	if err != nil {
		s.log.Warn("schedule rejected", logx.String("name", name), logx.Err(err))
		return
	}
	e.id = id
}

func (s *Service) restartLocked() {
	<-s.c.Stop().Done()
	s.c = s.newCronLocked()
	for _, e := range s.entries {
		s.registerLocked(e)
	}
	s.c.Start()
	s.log.Info("scheduler restarted", logx.String("tz", s.loc.String()), logx.Int("jobs", len(s.entries)))
}

// cronLogger adapts logx to cron.Logger for the Recover and SkipIfStillRunning wrappers.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, kv ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(kv)...)
}

func (l cronLogger) Error(err error, msg string, kv ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(kv), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, logx.Any(fmt.Sprint(kv[i]), kv[i+1]))
	}
	return out
}
