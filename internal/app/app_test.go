package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"elesrank/internal/eventbus"
	"elesrank/internal/ranking"
	"elesrank/internal/view"
)

const testDirectory = `{
  "stations": [
    {"code": "A01", "long_name": "Metro Center", "all_lines": ["RD", "OR"]},
    {"code": "C05", "long_name": "Rosslyn", "all_lines": ["OR", "BL"]}
  ],
  "units": [
    {"unit_id": "A01E01", "unit_type": "ESCALATOR", "station_code": "A01",
     "performance_summary": {"all_time": {"broken_time_percentage": 0.10, "num_breaks": 3}}},
    {"unit_id": "A01N02", "unit_type": "ELEVATOR", "station_code": "A01",
     "performance_summary": {"all_time": {"broken_time_percentage": 0.30, "num_breaks": 9}}},
    {"unit_id": "C05E03", "unit_type": "ESCALATOR", "station_code": "C05",
     "performance_summary": {"all_time": {"broken_time_percentage": 0.20, "num_breaks": 5}}}
  ]
}`

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

func writeFixture(t *testing.T, cfg string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "directory.json"), []byte(testDirectory), 0o644); err != nil {
		t.Fatal(err)
	}
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

const baseConfig = `{"logging":{"level":"error"},"data":{"path":"directory.json"},"view":{"page_size":2},
"delays":{"search_refresh":"10ms","state_sync":"20ms","ready_poll":"5ms"}}`

func TestRunOnceRendersPage(t *testing.T) {
	t.Parallel()
	var out syncBuffer
	a, err := NewApp(writeFixture(t, baseConfig), &out)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := a.RunOnce(ctx, 2); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	_ = a.Stop(ctx)

	got := out.String()
	if !strings.Contains(got, "A01E01") || strings.Contains(got, "A01N02") {
		t.Fatalf("page 2 should hold only the lowest ranked unit:\n%s", got)
	}
	if !strings.Contains(got, "Page 2/2 · 3-3 of 3") {
		t.Fatalf("missing label:\n%s", got)
	}
}

func TestNewAppRejectsInvalidConfig(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"period":   `{"data":{"path":"d.json"},"view":{"period":"forever"}}`,
		"reload":   `{"data":{"path":"d.json","reload":"whenever"}}`,
		"no path":  `{"data":{}}`,
		"unknown":  `{"data":{"path":"d.json"},"telegram":{}}`,
		"duration": `{"data":{"path":"d.json"},"delays":{"refresh":"soon"}}`,
	}
	for name, cfg := range tests {
		cfg := cfg
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := NewApp(writeFixture(t, cfg), nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func startApp(t *testing.T) (*App, *syncBuffer, <-chan eventbus.Event) {
	t.Helper()
	out := &syncBuffer{}
	a, err := NewApp(writeFixture(t, baseConfig), out)
	if err != nil {
		t.Fatalf("NewApp: %v", err)
	}
	events, unsub := a.Bus().Subscribe(256, eventbus.TypeRefreshed)
	ctx, cancel := context.WithCancel(context.Background())
	if err := a.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		unsub()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer stopCancel()
		_ = a.Stop(stopCtx)
		cancel()
	})
	return a, out, events
}

func waitPage(t *testing.T, events <-chan eventbus.Event, ok func(view.Page) bool) view.Page {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			if p, _ := ev.Data.(view.Page); !p.ComputedAt.IsZero() && ok(p) {
				return p
			}
		case <-deadline:
			t.Fatal("timed out waiting for page")
		}
	}
}

func TestExecCommands(t *testing.T) {
	t.Parallel()
	a, out, events := startApp(t)
	waitPage(t, events, func(view.Page) bool { return true })

	if err := a.Exec("type elevators_only"); err != nil {
		t.Fatalf("type: %v", err)
	}
	p := waitPage(t, events, func(p view.Page) bool { return p.State.UnitTypes == ranking.ElevatorsOnly })
	if p.Table.Total != 1 || p.Records[0].UnitID != "A01N02" || p.Records[0].Rank != 1 {
		t.Fatalf("elevators page = %+v", p.Records)
	}

	for _, line := range []string{"bogus", "type trains", "period forever", "sort +nope", "sort -rank", "sort", "page x"} {
		if err := a.Exec(line); err == nil || errors.Is(err, ErrQuit) {
			t.Fatalf("Exec(%q) err = %v, want failure", line, err)
		}
	}
	if err := a.Exec("  "); err != nil {
		t.Fatalf("blank line: %v", err)
	}
	if err := a.Exec("EXIT"); !errors.Is(err, ErrQuit) {
		t.Fatalf("exit err = %v", err)
	}
	if err := a.Exec("state"); err != nil {
		t.Fatal(err)
	}
	if err := a.Exec("help"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for !strings.Contains(out.String(), "unit_type=elevators_only") || !strings.Contains(out.String(), "search [query]") {
		if time.Now().After(deadline) {
			t.Fatalf("state/help output missing:\n%s", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunCommandsStopsAtQuit(t *testing.T) {
	t.Parallel()
	a, _, events := startApp(t)
	waitPage(t, events, func(view.Page) bool { return true })

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	in := strings.NewReader("search rosslyn\nsort +num_breaks\nquit\nsearch never\n")
	if err := a.RunCommands(ctx, in); err != nil {
		t.Fatalf("RunCommands: %v", err)
	}
	st := a.Controller().State()
	if st.Search != "rosslyn" || st.OrderBy.String() != "+num_breaks" {
		t.Fatalf("state after commands = %+v", st)
	}
	p := waitPage(t, events, func(p view.Page) bool { return p.State.Search == "rosslyn" && p.State.OrderBy.Dir == ranking.Asc })
	if p.Table.Total != 1 || p.Records[0].UnitID != "C05E03" {
		t.Fatalf("search page = %+v", p.Records)
	}
}

func TestMapping(t *testing.T) {
	t.Parallel()
	cfg := &Config{}
	d, err := mapDelays(cfg)
	if err != nil || d != view.DefaultDelays() {
		t.Fatalf("default delays = %+v, %v", d, err)
	}
	cfg.Delays.SearchRefresh = "0s"
	cfg.Delays.ReadyPoll = "0s"
	d, err = mapDelays(cfg)
	if err != nil || d.SearchRefresh != 0 || d.ReadyPoll != view.DefaultDelays().ReadyPoll {
		t.Fatalf("explicit zero delays = %+v, %v", d, err)
	}

	cfg.View.OrderBy = "none"
	cfg.View.UnitType = "escalators_only"
	st, err := mapInitialState(cfg)
	if err != nil || !st.OrderBy.IsZero() || st.UnitTypes != ranking.EscalatorsOnly || st.Period != ranking.AllTime {
		t.Fatalf("state = %+v, %v", st, err)
	}

	if got := dataPath("/etc/elesrank/config.yaml", "data/directory.json"); got != filepath.Join("/etc/elesrank", "data", "directory.json") {
		t.Fatalf("dataPath = %s", got)
	}
	if got := dataPath("config.yaml", "/srv/directory.json"); got != "/srv/directory.json" {
		t.Fatalf("dataPath abs = %s", got)
	}
}

func TestDebugViewReportsController(t *testing.T) {
	t.Parallel()
	a, _, events := startApp(t)
	waitPage(t, events, func(view.Page) bool { return true })

	b, err := json.Marshal(a.debugView())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	got := string(b)
	for _, want := range []string{`"directory_ready":true`, `"total":3`, `"session":"` + a.Controller().Session() + `"`, `order_by=-broken_time_percentage`} {
		if !strings.Contains(got, want) {
			t.Fatalf("debug view missing %s:\n%s", want, got)
		}
	}
}
