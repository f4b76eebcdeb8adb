package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"quizlive/cmd/internal/cache"
	"quizlive/cmd/internal/live"

	"github.com/prometheus/client_golang/prometheus"
)

type memRecords struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemRecords() *memRecords {
	return &memRecords{data: map[string][]byte{}}
}

func (r *memRecords) Get(_ context.Context, name string) ([]byte, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.data[name]
	return b, ok, nil
}

func (r *memRecords) Put(_ context.Context, name string, body []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = append([]byte(nil), body...)
	return nil
}

func (r *memRecords) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, name)
	return nil
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg := LoadConfig()

	if cfg.StorePath != "quizlive.db" {
		t.Fatalf("StorePath=%q want=quizlive.db", cfg.StorePath)
	}
	if cfg.LogLevel != "info" {
		t.Fatalf("LogLevel=%q want=info", cfg.LogLevel)
	}
	if cfg.HTTPTimeout != 10*time.Second {
		t.Fatalf("HTTPTimeout=%v want=10s", cfg.HTTPTimeout)
	}
	if cfg.StreamMaxRedials != 6 {
		t.Fatalf("StreamMaxRedials=%d want=6", cfg.StreamMaxRedials)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("QUIZLIVE_LIVE_URL", "https://live.example.com")
	t.Setenv("QUIZLIVE_STREAM_MAX_REDIALS", "0")
	t.Setenv("QUIZLIVE_STREAM_REDIAL_BASE", "250ms")
	t.Setenv("QUIZLIVE_LOG_PRETTY", "true")

	cfg := LoadConfig()

	if cfg.LiveBaseURL != "https://live.example.com" {
		t.Fatalf("LiveBaseURL=%q", cfg.LiveBaseURL)
	}
	if cfg.StreamMaxRedials != 0 {
		t.Fatalf("StreamMaxRedials=%d want=0", cfg.StreamMaxRedials)
	}
	if cfg.StreamRedialBase != 250*time.Millisecond {
		t.Fatalf("StreamRedialBase=%v want=250ms", cfg.StreamRedialBase)
	}
	if !cfg.LogPretty {
		t.Fatalf("LogPretty=false want=true")
	}
}

func TestRegisterOps_Endpoints(t *testing.T) {
	t.Parallel()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions := cache.New(log, newMemRecords())

	mux := http.NewServeMux()
	registerOps(mux, log, prometheus.NewRegistry(), sessions)

	srv := httptest.NewServer(mux)
	defer srv.Close()

	get := func(path string) *http.Response {
		t.Helper()
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		return resp
	}

	resp := get("/healthz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/healthz status=%d want=200", resp.StatusCode)
	}

	resp = get("/metrics")
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/metrics status=%d want=200", resp.StatusCode)
	}

	resp = get("/sessionz")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("/sessionz without session status=%d want=404", resp.StatusCode)
	}

	if err := sessions.Set(context.Background(), live.Live{
		Key:    "live-1",
		Status: live.StatusRunning,
		Lobby:  []string{"pupil-1"},
	}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	resp = get("/sessionz")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/sessionz status=%d want=200", resp.StatusCode)
	}

	var got live.Live
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Key != "live-1" || got.Status != live.StatusRunning {
		t.Fatalf("session key=%q status=%q", got.Key, got.Status)
	}
}
