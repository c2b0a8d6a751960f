package directory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"elesrank/internal/ranking"
	logx "elesrank/pkg/logx"
)

func copyFixture(t *testing.T) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join("testdata", "directory.json"))
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	path := filepath.Join(t.TempDir(), "directory.json")
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestDecodeBuildsRecordsPerPeriod(t *testing.T) {
	t.Parallel()
	f, err := os.Open(filepath.Join("testdata", "directory.json"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	d, err := Decode(f)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(d.Units) != 4 || len(d.Stations) != 3 {
		t.Fatalf("units=%d stations=%d", len(d.Units), len(d.Stations))
	}

	all := d.Rankings(ranking.AllTime)
	if len(all) != 4 {
		t.Fatalf("all_time records = %d, want 4", len(all))
	}
	if all[0].UnitID != "A01E01" || all[0].Station != "Metro Center" || all[0].EscDesc != "Escalator 1" {
		t.Fatalf("unexpected first record: %+v", all[0])
	}
	if all[2].UnitType != ranking.Escalator {
		t.Fatalf("unit type not normalized: %q", all[2].UnitType)
	}
	if v, _ := all[0].Field("num_breaks"); v.Num != 12 {
		t.Fatalf("num_breaks = %+v, want 12", v)
	}

	week := d.Rankings(ranking.SevenDay)
	if v, _ := week[1].Field("availability"); !v.IsMissing() {
		t.Fatalf("A01N02 seven_day availability = %+v, want missing", v)
	}
	if v, _ := week[0].Field("availability"); v.Num != 0.5 {
		t.Fatalf("A01E01 seven_day availability = %+v, want 0.5", v)
	}
	for _, p := range ranking.Periods() {
		if len(d.Rankings(p)) != 4 {
			t.Fatalf("period %s has %d records", p, len(d.Rankings(p)))
		}
	}
}

func TestDecodeRejectsBadDocuments(t *testing.T) {
	t.Parallel()
	tests := map[string]string{
		"syntax":    `{"units": [`,
		"no id":     `{"units": [{"unit_type": "ELEVATOR"}]}`,
		"duplicate": `{"units": [{"unit_id": "X"}, {"unit_id": "X"}]}`,
		"station":   `{"stations": [{"long_name": "Nowhere"}]}`,
	}
	for name, doc := range tests {
		doc := doc
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			if _, err := Decode(strings.NewReader(doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestDecodeCountsOrphans(t *testing.T) {
	t.Parallel()
	d, err := Decode(strings.NewReader(`{"units": [{"unit_id": "X1", "unit_type": "ELEVATOR", "station_code": "Z99"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if d.Orphans != 1 {
		t.Fatalf("Orphans = %d, want 1", d.Orphans)
	}
	if r := d.Rankings(ranking.OneDay); len(r) != 1 || r[0].Station != "" {
		t.Fatalf("unexpected records: %+v", r)
	}
}

func TestSourceResolvesOnce(t *testing.T) {
	t.Parallel()
	path := copyFixture(t)
	src := NewSource(path, logx.Nop())

	if _, err := src.Current(); err != ErrNotReady {
		t.Fatalf("Current before load err = %v, want ErrNotReady", err)
	}
	if src.IsReady() {
		t.Fatal("ready before load")
	}

	sub := src.Subscribe(1)
	defer src.Unsubscribe(sub)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	changed, err := src.Load(ctx)
	if err != nil || !changed {
		t.Fatalf("Load = %v, %v", changed, err)
	}
	d, err := src.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if len(d.Units) != 4 {
		t.Fatalf("units = %d", len(d.Units))
	}
	select {
	case got := <-sub:
		if got != d {
			t.Fatal("subscriber received a different snapshot")
		}
	default:
		t.Fatal("subscriber not notified")
	}

	changed, err = src.Load(ctx)
	if err != nil || changed {
		t.Fatalf("second Load = %v, %v; want unchanged", changed, err)
	}
}

func TestSourceLoadFailureKeepsSnapshot(t *testing.T) {
	t.Parallel()
	path := copyFixture(t)
	src := NewSource(path, logx.Nop())
	ctx := context.Background()
	if _, err := src.Load(ctx); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := src.Load(ctx); err == nil {
		t.Fatal("expected decode error")
	}
	d, err := src.Current()
	if err != nil || len(d.Units) != 4 {
		t.Fatalf("snapshot lost after failed reload: %v", err)
	}
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()
	src := NewSource(filepath.Join(t.TempDir(), "missing.json"), logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Wait(ctx); err != context.Canceled {
		t.Fatalf("Wait err = %v, want context.Canceled", err)
	}
	if _, err := src.Load(context.Background()); err == nil {
		t.Fatal("expected read error for missing file")
	}
}
