package debugsrv

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"runtime"
	"testing"
	"time"

	logx "elesrank/pkg/logx"
)

func get(t *testing.T, url, bearer string) (int, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		t.Fatal(err)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestApplyEnableDisable(t *testing.T) {
	prevMutex := runtime.SetMutexProfileFraction(-1)
	t.Cleanup(func() {
		_ = runtime.SetMutexProfileFraction(prevMutex)
		runtime.SetBlockProfileRate(0)
	})

	s := New(logx.Nop(), func() any { return map[string]string{"state": "order_by=-num_breaks"} })
	t.Cleanup(func() { s.Stop(context.Background()) })

	ctx := context.Background()
	if err := s.Apply(ctx, Config{Enabled: true, Addr: "127.0.0.1:0", MutexProfileFraction: 3}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	addr := s.Addr()
	if addr == "" {
		t.Fatal("expected listen address")
	}
	if got := runtime.SetMutexProfileFraction(-1); got != 3 {
		t.Fatalf("mutex profile fraction = %d, want 3", got)
	}

	if code, body := get(t, "http://"+addr+"/healthz", ""); code != http.StatusOK || body != "ok" {
		t.Fatalf("healthz = %d %q", code, body)
	}
	code, body := get(t, "http://"+addr+"/debug/view", "")
	if code != http.StatusOK {
		t.Fatalf("view status = %d", code)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(body), &v); err != nil || v["state"] != "order_by=-num_breaks" {
		t.Fatalf("view body = %q, %v", body, err)
	}
	if code, _ := get(t, "http://"+addr+"/debug/pprof/", ""); code != http.StatusOK {
		t.Fatalf("pprof index status = %d", code)
	}

	if err := s.Apply(ctx, Config{Enabled: false}); err != nil {
		t.Fatalf("Apply disable: %v", err)
	}
	if got := s.Addr(); got != "" {
		t.Fatalf("expected stopped server, still at %s", got)
	}
}

func TestTokenRequired(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop(), nil)
	t.Cleanup(func() { s.Stop(context.Background()) })
	if err := s.Apply(context.Background(), Config{Enabled: true, Addr: "127.0.0.1:0", Token: "s3cret"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	base := "http://" + s.Addr()
	if code, _ := get(t, base+"/healthz", ""); code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d", code)
	}
	if code, _ := get(t, base+"/healthz", "wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token status = %d", code)
	}
	if code, _ := get(t, base+"/healthz", "s3cret"); code != http.StatusOK {
		t.Fatalf("bearer status = %d", code)
	}
	if code, _ := get(t, base+"/healthz?token=s3cret", ""); code != http.StatusOK {
		t.Fatalf("query token status = %d", code)
	}
	if code, body := get(t, base+"/debug/view?token=s3cret", ""); code != http.StatusOK || body != "{}\n" {
		t.Fatalf("nil view = %d %q", code, body)
	}
}

func TestRefusesInsecureBind(t *testing.T) {
	t.Parallel()
	s := New(logx.Nop(), nil)
	err := s.Apply(context.Background(), Config{Enabled: true, Addr: "0.0.0.0:0"})
	if !errors.Is(err, ErrInsecureBind) {
		t.Fatalf("err = %v, want ErrInsecureBind", err)
	}
	if s.Addr() != "" {
		t.Fatal("server started on insecure bind")
	}
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()
	tests := map[string]bool{
		"127.0.0.1:6060": true,
		"localhost:1":    true,
		"[::1]:6060":     true,
		":6060":          false,
		"10.0.0.1:6060":  false,
		"garbage":        false,
	}
	for addr, want := range tests {
		if got := isLoopbackAddr(addr); got != want {
			t.Fatalf("isLoopbackAddr(%q) = %v, want %v", addr, got, want)
		}
	}
}
