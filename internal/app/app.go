package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"elesrank/internal/config"
	"elesrank/internal/directory"
	"elesrank/internal/eventbus"
	"elesrank/internal/observability/debugsrv"
	"elesrank/internal/query"
	"elesrank/internal/runtime/supervisor"
	"elesrank/internal/schedule"
	"elesrank/internal/view"
	logx "elesrank/pkg/logx"
)

const reloadJob = "directory.reload"

type App struct {
	cfgPath string

	root logx.Logger
	cfgm *ConfigManager
	sup  *Supervisor

	log  logx.Logger
	logs *logx.Service
	bus  eventbus.Bus

	src   *directory.Source
	sched *schedule.Service
	ctrl  *view.Controller
	debug *debugsrv.Server

	outMu sync.Mutex
	out   io.Writer
}

// NewApp loads the config and wires every component. Nothing runs until Start
// or RunOnce.
func NewApp(cfgPath string, out io.Writer) (*App, error) {
	cfgm := NewConfigManager(cfgPath)
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logSvc, root := logx.New(mapLogConfig(cfg))
	log := root.With(logx.String("comp", "app"))

	delays, err := mapDelays(cfg)
	if err != nil {
		return nil, err
	}
	st, err := mapInitialState(cfg)
	if err != nil {
		return nil, err
	}

	bus := eventbus.New()
	src := directory.NewSource(dataPath(cfgPath, cfg.Data.Path), root.With(logx.String("comp", "directory")))
	sched := schedule.New(root.With(logx.String("comp", "schedule")))
	ctrl := view.NewController(src, query.New(),
		view.WithBus(bus),
		view.WithLogger(root),
		view.WithDelays(delays),
		view.WithPageSize(cfg.View.PageSize),
		view.WithState(st),
	)

	if out == nil {
		out = io.Discard
	}
	a := &App{
		cfgPath: cfgPath,
		root:    root,
		cfgm:    cfgm,
		log:     log,
		logs:    logSvc,
		bus:     bus,
		src:     src,
		sched:   sched,
		ctrl:    ctrl,
		out:     out,
	}
	a.debug = debugsrv.New(root.With(logx.String("comp", "debug")), a.debugView)
	return a, nil
}

// dataPath resolves a relative data path against the config file directory.
func dataPath(cfgPath, p string) string {
	p = strings.TrimSpace(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(cfgPath), p)
}

func validateConfig(cfg *Config) error {
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if r := strings.TrimSpace(cfg.Data.Reload); r != "" {
		if _, err := schedule.Parse(r); err != nil {
			return fmt.Errorf("data.reload: %w", err)
		}
	}
	return nil
}

func (a *App) Controller() *view.Controller { return a.ctrl }

func (a *App) Bus() eventbus.Bus { return a.bus }

// Done is closed when the supervisor context is canceled (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

// Start runs the loaders, watchers and the page printer in the background.
func (a *App) Start(ctx context.Context) error {
	a.sup = NewSupervisor(ctx, supervisor.WithLogger(a.root.With(logx.String("comp", "supervisor"))), supervisor.WithCancelOnError(true))
	cfg := a.cfgm.Get()

	a.cfgm.SetLogger(a.root.With(logx.String("comp", "config")))
	a.cfgm.SetValidator(func(_ context.Context, c *Config) error { return validateConfig(c) })

	a.startPrinter()
	a.startDirectory(cfg)
	if err := a.applySchedule(cfg); err != nil {
		return err
	}
	a.sched.Start(a.sup.Context())

	a.applyDebug(cfg)

	a.sup.GoRestart("config.watch", a.cfgm.Watch, time.Second, 30*time.Second)
	a.startConfigReload()

	a.ctrl.Start()
	a.log.Info("started", logx.String("config", a.cfgPath), logx.String("data", a.src.Path()), logx.String("session", a.ctrl.Session()))
	return nil
}

// Stop cancels every goroutine and waits for them, bounded by ctx.
func (a *App) Stop(ctx context.Context) error {
	a.ctrl.Close()
	a.debug.Stop(ctx)
	if err := a.sched.Stop(ctx); err != nil {
		a.log.Warn("scheduler stop", logx.Err(err))
	}
	var err error
	if a.sup != nil {
		err = a.sup.Stop(ctx)
	}
	_ = a.logs.Close()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// RunOnce loads the directory, computes the configured view and prints page n.
func (a *App) RunOnce(ctx context.Context, page int) error {
	if _, err := a.src.Load(ctx); err != nil {
		return err
	}
	pages, unsub := a.bus.Subscribe(4, eventbus.TypeRefreshed)
	defer unsub()
	defer a.ctrl.Close()

	a.ctrl.Start()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-pages:
			if p, ok := ev.Data.(view.Page); !ok || p.ComputedAt.IsZero() {
				continue
			}
			p := a.ctrl.SetPage(page)
			return a.render(p)
		}
	}
}

func (a *App) render(p view.Page) error {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	return view.Render(a.out, p)
}

func (a *App) printf(format string, args ...any) {
	a.outMu.Lock()
	defer a.outMu.Unlock()
	fmt.Fprintf(a.out, format, args...)
}

// startPrinter renders every refreshed page to the output.
func (a *App) startPrinter() {
	events, unsub := a.bus.Subscribe(32, eventbus.TypeRefreshed, eventbus.TypeState, eventbus.TypeDirectoryLoad)
	a.sup.Go0("view.print", func(ctx context.Context) {
		defer unsub()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch ev.Type {
				case eventbus.TypeRefreshed:
					p, _ := ev.Data.(view.Page)
					if p.ComputedAt.IsZero() {
						continue
					}
					if err := a.render(p); err != nil {
						a.log.Warn("render failed", logx.Err(err))
					}
				default:
					a.log.Debug("event", logx.String("type", ev.Type), logx.Time("time", ev.Time))
				}
			}
		}
	})
}

// startDirectory loads the file (retrying until it succeeds), optionally
// watches it, and refreshes the view on every new snapshot.
func (a *App) startDirectory(cfg *Config) {
	a.sup.GoRestart("directory.load", func(ctx context.Context) error {
		_, err := a.src.Load(ctx)
		return err
	}, 500*time.Millisecond, 30*time.Second)

	if cfg.Data.Watch {
		debounce, err := mapWatchDebounce(cfg)
		if err != nil {
			debounce = defaultWatchDebounce
		}
		a.sup.GoRestart("directory.watch", func(ctx context.Context) error {
			return a.src.Watch(ctx, debounce)
		}, time.Second, 30*time.Second)
	}

	snapshots := a.src.Subscribe(1)
	a.sup.Go0("directory.refresh", func(ctx context.Context) {
		defer a.src.Unsubscribe(snapshots)
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-snapshots:
				if !ok {
					return
				}
				a.bus.Publish(eventbus.Event{Type: eventbus.TypeDirectoryLoad, Data: len(d.Units)})
				a.ctrl.Refresh()
			}
		}
	})
}

func (a *App) applySchedule(cfg *Config) error {
	if err := a.sched.SetTimezone(cfg.Data.Timezone); err != nil {
		return err
	}
	raw := strings.TrimSpace(cfg.Data.Reload)
	if raw == "" {
		a.sched.Remove(reloadJob)
		return nil
	}
	return a.sched.Add(reloadJob, raw, func(ctx context.Context) {
		if _, err := a.src.Load(ctx); err != nil && ctx.Err() == nil {
			a.log.Warn("scheduled reload failed", logx.Err(err))
		}
	})
}

// startConfigReload applies hot-reloaded config. Data path changes need a restart.
func (a *App) startConfigReload() {
	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(ctx context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		last := a.cfgm.Get()
		for {
			select {
			case <-ctx.Done():
				return
			case next, ok := <-sub:
				if !ok {
					return
				}
				// Keep only the newest queued config.
			drain:
				for {
					select {
					case newer := <-sub:
						if newer != nil {
							next = newer
						}
					default:
						break drain
					}
				}
				a.applyConfig(last, next)
				last = next
			}
		}
	})
}

func (a *App) applyConfig(prev, next *Config) {
	sections, attrs := SummarizeConfigChange(prev, next)
	if len(sections) == 0 {
		a.log.Debug("config reload received, but no effective changes detected")
		return
	}
	a.log.Info("config changed", append([]logx.Field{logx.String("changed", strings.Join(sections, ","))}, attrs...)...)

	for _, s := range sections {
		switch s {
		case "logging":
			a.logs.Apply(mapLogConfig(next))
		case "delays":
			if d, err := mapDelays(next); err != nil {
				a.log.Warn("invalid delays; keeping previous", logx.Err(err))
			} else {
				a.ctrl.SetDelays(d)
			}
		case "view":
			a.ctrl.SetPageSize(next.View.PageSize)
		case "debug":
			a.applyDebug(next)
		case "data":
			if dataPath(a.cfgPath, prev.Data.Path) != dataPath(a.cfgPath, next.Data.Path) || prev.Data.Watch != next.Data.Watch {
				a.log.Warn("data path or watch changed; restart required for changes to take effect")
			}
			if err := a.applySchedule(next); err != nil {
				a.log.Warn("invalid reload schedule; keeping previous", logx.Err(err))
			}
		}
	}
}

// applyDebug (re)configures the debug listener. Failures are logged only.
func (a *App) applyDebug(cfg *Config) {
	if err := a.debug.Apply(a.sup.Context(), mapDebugConfig(cfg)); err != nil {
		a.log.Warn("debug server not started", logx.Err(err))
	}
}

// debugView is served as JSON on /debug/view.
func (a *App) debugView() any {
	p := a.ctrl.Current()
	st := a.ctrl.State()
	return struct {
		Session     string    `json:"session"`
		State       string    `json:"state"`
		Describe    string    `json:"describe"`
		Pristine    bool      `json:"pristine"`
		Label       string    `json:"label"`
		Total       int       `json:"total"`
		Ranked      int       `json:"ranked"`
		SearchError bool      `json:"search_error"`
		ComputedAt  time.Time `json:"computed_at"`
		Refreshes   uint64    `json:"refreshes"`
		Ready       bool      `json:"directory_ready"`
		Dropped     uint64    `json:"bus_dropped"`
	}{
		Session:     a.ctrl.Session(),
		State:       st.Encode(),
		Describe:    st.Describe(),
		Pristine:    st.Pristine(),
		Label:       p.Label(),
		Total:       p.Table.Total,
		Ranked:      p.Ranked,
		SearchError: p.SearchError,
		ComputedAt:  p.ComputedAt,
		Refreshes:   a.ctrl.Refreshes(),
		Ready:       a.src.IsReady(),
		Dropped:     a.bus.Dropped(),
	}
}
