package view

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"elesrank/internal/delay"
	"elesrank/internal/eventbus"
	"elesrank/internal/ranking"
	logx "elesrank/pkg/logx"
)

// RecordSource supplies the ranking input for a period.
type RecordSource interface {
	IsReady() bool
	Records(p ranking.Period) ([]ranking.Record, error)
}

// Delays tunes the debounce behaviour of the controller.
type Delays struct {
	// Refresh applies to period changes (postponed by further changes).
	Refresh time.Duration
	// SearchRefresh applies to search edits and is not postponed while typing.
	SearchRefresh time.Duration
	// StateSync delays publishing the search string, postponed while typing.
	StateSync time.Duration
	// ReadyPoll is the minimum retry interval while the source is not ready.
	ReadyPoll time.Duration
}

func DefaultDelays() Delays {
	return Delays{
		Refresh:       0,
		SearchRefresh: 400 * time.Millisecond,
		StateSync:     500 * time.Millisecond,
		ReadyPoll:     100 * time.Millisecond,
	}
}

// Page is one rendered slice of the computed view.
type Page struct {
	Session string
	State   State
	Table   Table
	Records []ranking.Record
	// Ranked is how many records ranks were assigned over (before filtering).
	Ranked      int
	SearchError bool
	Syntax      *ranking.SyntaxError
	ComputedAt  time.Time
}

func (p Page) Label() string { return p.Table.Label() }

// StateSync is the payload of eventbus.TypeState events.
type StateSync struct {
	Session  string
	State    State
	Encoded  string
	Pristine bool
}

// Controller owns the table state and recomputes the view when it changes.
type Controller struct {
	src    RecordSource
	parser ranking.SearchParser
	bus    eventbus.Bus
	log    logx.Logger
	id     string

	refresh   *delay.Scheduler
	stateSync *delay.Scheduler

	mu        sync.Mutex
	delays    Delays
	state     State
	table     Table
	view      ranking.View
	computed  time.Time
	refreshes uint64
	stopped   bool
}

type Option func(*Controller)

func WithLogger(log logx.Logger) Option { return func(c *Controller) { c.log = log } }
func WithBus(bus eventbus.Bus) Option   { return func(c *Controller) { c.bus = bus } }
func WithDelays(d Delays) Option        { return func(c *Controller) { c.delays = d } }

// WithPageSize sets the rows per page; values <= 0 use DefaultPageSize.
func WithPageSize(n int) Option { return func(c *Controller) { c.table.Count = n } }

// WithState sets the initial state (e.g. decoded from a previous session).
func WithState(st State) Option { return func(c *Controller) { c.state = st } }

func NewController(src RecordSource, parser ranking.SearchParser, opts ...Option) *Controller {
	c := &Controller{
		src:    src,
		parser: parser,
		id:     uuid.NewString(),
		delays: DefaultDelays(),
		state:  DefaultState(),
		table:  Table{Page: 1, Count: DefaultPageSize},
	}
	for _, o := range opts {
		o(c)
	}
	if c.log.IsZero() {
		c.log = logx.Nop()
	}
	c.log = c.log.With(logx.String("comp", "view"), logx.String("session", c.id))
	if c.bus == nil {
		c.bus = eventbus.New()
	}
	c.refresh = delay.New(delay.WithName("view.refresh"), delay.WithLogger(c.log))
	c.stateSync = delay.New(delay.WithName("view.state_sync"), delay.WithLogger(c.log))
	if c.table.Count <= 0 {
		c.table.Count = DefaultPageSize
	}
	return c
}

// Session identifies this controller on published events.
func (c *Controller) Session() string { return c.id }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Refreshes reports how many times the view has been recomputed.
func (c *Controller) Refreshes() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshes
}

// SetDelays swaps the debounce delays; pending invocations keep their delay.
func (c *Controller) SetDelays(d Delays) {
	c.mu.Lock()
	c.delays = d
	c.mu.Unlock()
}

// SetPageSize changes the rows per page and republishes the current page.
func (c *Controller) SetPageSize(n int) {
	if n <= 0 {
		n = DefaultPageSize
	}
	c.mu.Lock()
	changed := c.table.Count != n
	c.table.Count = n
	c.table = c.table.Clamp()
	c.mu.Unlock()
	if changed {
		c.publishPage()
	}
}

// Start computes the initial view once the source is ready.
func (c *Controller) Start() {
	c.syncState()
	c.scheduleRefresh(0, true)
}

// Refresh forces a recompute, e.g. after the directory reloads.
func (c *Controller) Refresh() {
	c.scheduleRefresh(0, true)
}

func (c *Controller) SetPeriod(raw string) error {
	p, err := ranking.ParsePeriod(raw)
	if err != nil {
		return err
	}
	if !c.update(func(st *State) { st.Period = p }) {
		return nil
	}
	c.scheduleRefresh(c.currentDelays().Refresh, true)
	c.syncState()
	return nil
}

func (c *Controller) SetUnitTypes(raw string) error {
	f, err := ranking.ParseUnitTypeFilter(raw)
	if err != nil {
		return err
	}
	if !c.update(func(st *State) { st.UnitTypes = f }) {
		return nil
	}
	c.scheduleRefresh(0, true)
	c.syncState()
	return nil
}

// SetSearch refreshes after SearchRefresh without postponing, so results keep
// up with typing, and publishes the new state only once typing settles.
func (c *Controller) SetSearch(q string) {
	if !c.update(func(st *State) { st.Search = q }) {
		return
	}
	d := c.currentDelays()
	c.scheduleRefresh(d.SearchRefresh, false)
	if err := c.stateSync.Debounce(func() bool {
		c.syncState()
		return false
	}, d.StateSync); err != nil {
		c.log.Debug("state sync not scheduled", logx.Err(err))
	}
}

// SetSort changes the order; "" disables sorting and keeps input order.
func (c *Controller) SetSort(raw string) {
	spec := ranking.ParseSort(raw)
	if !c.update(func(st *State) { st.OrderBy = spec }) {
		return
	}
	c.syncState()
	c.scheduleRefresh(0, true)
}

// ResetFilters restores period, unit type and search to their defaults.
func (c *Controller) ResetFilters() {
	var searchChanged bool
	changed := c.update(func(st *State) {
		searchChanged = st.Search != ""
		*st = st.Reset()
	})
	if !changed {
		return
	}
	c.scheduleRefresh(0, true)
	if searchChanged {
		c.stateSync.Cancel()
	}
	c.syncState()
}

// SetPage moves to page n (1-based, clamped) and publishes it without
// recomputing.
func (c *Controller) SetPage(n int) Page {
	c.mu.Lock()
	c.table.Page = n
	c.table = c.table.Clamp()
	c.mu.Unlock()
	return c.publishPage()
}

// Current returns the current page without publishing.
func (c *Controller) Current() Page {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pageLocked()
}

// Close stops both schedulers. Pending refreshes are dropped.
func (c *Controller) Close() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.refresh.Stop()
	c.stateSync.Stop()
}

func (c *Controller) currentDelays() Delays {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delays
}

// update applies fn to the state and reports whether it changed.
func (c *Controller) update(fn func(st *State)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false
	}
	before := c.state
	fn(&c.state)
	return c.state != before
}

func (c *Controller) scheduleRefresh(d time.Duration, postpone bool) {
	if !c.src.IsReady() {
		d = max(d, c.currentDelays().ReadyPoll)
	}
	if err := c.refresh.Schedule(c.runRefresh, d, postpone); err != nil {
		c.log.Debug("refresh not scheduled", logx.Err(err))
	}
}

// runRefresh returns true while the source is not ready so the scheduler
// polls again after the same delay.
func (c *Controller) runRefresh() bool {
	if !c.src.IsReady() {
		c.log.Trace("source not ready; polling")
		return true
	}

	c.mu.Lock()
	st := c.state
	c.mu.Unlock()

	records, err := c.src.Records(st.Period)
	if err != nil {
		c.log.Warn("refresh failed", logx.String("period", string(st.Period)), logx.Err(err))
		return false
	}
	v, err := ranking.ComputeView(records, st.viewState(), c.parser)
	if err != nil {
		c.log.Error("compute view failed", logx.String("search", st.Search), logx.Err(err))
		return false
	}

	c.mu.Lock()
	if c.state != st {
		// State moved on while computing; the newer change has its own refresh.
		c.mu.Unlock()
		return false
	}
	c.view = v
	c.computed = time.Now()
	c.refreshes++
	c.table.Page = 1
	c.table.Total = v.Total()
	c.mu.Unlock()

	if v.SearchError {
		c.log.Warn("search query rejected", logx.String("query", st.Search), logx.Err(v.Syntax))
		c.bus.Publish(eventbus.Event{Type: eventbus.TypeSearchError, Session: c.id, Data: v.Syntax})
	}
	c.log.Debug("view refreshed",
		logx.String("period", string(st.Period)),
		logx.String("unit_types", string(st.UnitTypes)),
		logx.String("order_by", st.OrderBy.String()),
		logx.Int("ranked", v.Ranked),
		logx.Int("visible", v.Total()),
	)
	c.publishPage()
	return false
}

func (c *Controller) pageLocked() Page {
	t := c.table.Clamp()
	return Page{
		Session:     c.id,
		State:       c.state,
		Table:       t,
		Records:     Slice(c.view.Records, t),
		Ranked:      c.view.Ranked,
		SearchError: c.view.SearchError,
		Syntax:      c.view.Syntax,
		ComputedAt:  c.computed,
	}
}

func (c *Controller) publishPage() Page {
	c.mu.Lock()
	p := c.pageLocked()
	c.mu.Unlock()
	c.bus.Publish(eventbus.Event{Type: eventbus.TypeRefreshed, Session: c.id, Data: p})
	return p
}

func (c *Controller) syncState() {
	st := c.State()
	c.bus.Publish(eventbus.Event{Type: eventbus.TypeState, Session: c.id, Data: StateSync{
		Session:  c.id,
		State:    st,
		Encoded:  st.Encode(),
		Pristine: st.Pristine(),
	}})
	c.log.Trace("state synced", logx.String("state", st.Encode()))
}
