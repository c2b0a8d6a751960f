package logx

import (
	"bytes"
	"strings"
	"testing"
)

func TestFormatAlertJSON(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "sorted keys", in: `{"level":"warn","message":"bad query","pos":3,"query":"(x","time":"t"}`, want: "[WARN] bad query pos=3 query=(x"},
		{name: "no level", in: `{"message":"hi"}`, want: "hi"},
		{name: "not json", in: "  plain text\n", want: "plain text"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := formatAlertJSON([]byte(tt.in)); got != tt.want {
				t.Fatalf("formatAlertJSON = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAlertSinkRateLimitsAndFilters(t *testing.T) {
	svc, log := New(Config{Level: "debug", Alert: AlertConfig{Enabled: true, MinLevel: "warn", RatePerSec: 1}})
	defer svc.Close()
	var buf bytes.Buffer
	svc.SetAlertOutput(&buf)

	log.Info("below threshold")
	log.Warn("first", String("k", "v"))
	log.Warn("second")
	log.Error("third")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("alert lines = %q, want exactly one", buf.String())
	}
	if !strings.HasPrefix(lines[0], "[WARN] first") || !strings.Contains(lines[0], "k=v") {
		t.Fatalf("alert line = %q", lines[0])
	}
	if got := svc.AlertsDropped(); got != 2 {
		t.Fatalf("AlertsDropped = %d, want 2", got)
	}
}

func TestWriterLoggerLevels(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	log := NewWriter(&buf, "warn").With(String("component", "test"))
	log.Info("hidden")
	log.Warn("shown", Int("n", 2))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line written at warn level: %s", out)
	}
	if !strings.Contains(out, `"component":"test"`) || !strings.Contains(out, `"n":2`) {
		t.Fatalf("missing fields: %s", out)
	}
}

func TestZeroLoggerIsSafe(t *testing.T) {
	t.Parallel()
	var l Logger
	if !l.IsZero() {
		t.Fatal("zero Logger should report IsZero")
	}
	l.Warn("nothing happens")
	Nop().Error("nothing happens either")
}
