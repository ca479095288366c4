package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/friendsincode/playgate/internal/arbiter"
	"github.com/friendsincode/playgate/internal/jellyfin"
	"github.com/friendsincode/playgate/internal/sabnzbd"
)

type stubSource struct{ active bool }

func (s stubSource) ActivePlayback(ctx context.Context, includePaused bool) (bool, []jellyfin.SessionSummary, error) {
	return s.active, nil, nil
}

type stubQueue struct{ state sabnzbd.QueueState }

func (s stubQueue) QueueStatus(ctx context.Context) (sabnzbd.QueueState, error) {
	return s.state, nil
}

func (s stubQueue) SetPaused(ctx context.Context, pause bool) error { return nil }

func newTestServer(t *testing.T, ticked bool) *Server {
	t.Helper()
	engine := arbiter.NewEngine(30*time.Second, 60*time.Second)
	runner := arbiter.NewRunner(
		stubSource{active: true},
		stubQueue{state: sabnzbd.QueueState{SpeedLimitPct: 100}},
		engine, 30*time.Second, false, "test-instance", zerolog.Nop(),
	)
	if ticked {
		runner.Tick(context.Background())
	}
	return New("127.0.0.1", 0, runner, zerolog.Nop())
}

func TestHealthzAlwaysOK(t *testing.T) {
	srv := newTestServer(t, false)

	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("healthz status=%d, want 200", rr.Code)
	}
}

func TestReadyzWaitsForFirstTick(t *testing.T) {
	srv := newTestServer(t, false)

	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before first tick status=%d, want 503", rr.Code)
	}

	srv = newTestServer(t, true)
	rr = httptest.NewRecorder()
	srv.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz after first tick status=%d, want 200", rr.Code)
	}
}

func TestStatusEndpointReportsEngineState(t *testing.T) {
	srv := newTestServer(t, true)

	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d, want 200", rr.Code)
	}

	var payload struct {
		Version        string `json:"version"`
		InstanceID     string `json:"instance_id"`
		PlaybackActive bool   `json:"playback_active"`
		LastCommanded  string `json:"last_commanded"`
		TickCount      uint64 `json:"tick_count"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode status payload: %v", err)
	}
	if payload.Version == "" {
		t.Fatal("expected version in status payload")
	}
	if payload.InstanceID != "test-instance" {
		t.Fatalf("instance_id=%q", payload.InstanceID)
	}
	if !payload.PlaybackActive || payload.TickCount != 1 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.LastCommanded != "paused" {
		t.Fatalf("last_commanded=%q, want paused", payload.LastCommanded)
	}
}

func TestStatusEndpointRejectsBadRecentParam(t *testing.T) {
	srv := newTestServer(t, true)

	rr := httptest.NewRecorder()
	srv.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/status?recent=bogus", nil))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestSecurityHeadersMiddleware_BaselineHeaders(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Fatalf("X-Content-Type-Options=%q, want nosniff", got)
	}
	if got := rr.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Fatalf("X-Frame-Options=%q, want DENY", got)
	}
	if got := rr.Header().Get("Strict-Transport-Security"); got != "" {
		t.Fatalf("expected no HSTS on non-HTTPS request, got %q", got)
	}
}

func TestSecurityHeadersMiddleware_SetsHSTSOnHTTPS(t *testing.T) {
	h := securityHeadersMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get("Strict-Transport-Security"); got != "max-age=31536000; includeSubDomains" {
		t.Fatalf("Strict-Transport-Security=%q", got)
	}
}
