package main

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"binrush.ai/internal/protocol"
	"binrush.ai/internal/sim/clock"
	"binrush.ai/internal/sim/tuning"
)

func newTestRuntime(t *testing.T, disableDB bool) (*serverRuntime, *clock.Fake) {
	t.Helper()
	dir := t.TempDir()
	fc := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	rt, err := newRuntime(runtimeConfig{
		Tuning:      tuning.Defaults(),
		Secret:      []byte("0123456789abcdef0123456789abcdef"),
		SessionTTL:  2 * time.Hour,
		DBPath:      filepath.Join(dir, "leaderboard.db"),
		DisableDB:   disableDB,
		DataDir:     dir,
		RateLimit:   100,
		EnableAdmin: true,
		Clock:       fc,
	}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	t.Cleanup(rt.Close)
	return rt, fc
}

func TestRuntime_SubmitRoundTrip(t *testing.T) {
	for _, disableDB := range []bool{false, true} {
		rt, fc := newTestRuntime(t, disableDB)
		h := rt.Handler()

		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/session/start", nil))
		var start protocol.SessionStartResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &start); err != nil || start.SessionID == "" {
			t.Fatalf("session start: %v %s", err, rr.Body.String())
		}
		fc.Advance(20 * time.Second)

		body, _ := json.Marshal(map[string]any{"sessionId": start.SessionID, "name": "Grace", "score": 60})
		for i, want := range []string{"", protocol.ReasonAlreadySubmitted} {
			rr = httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/leaderboard", strings.NewReader(string(body))))
			var resp protocol.SubmitResponse
			_ = json.Unmarshal(rr.Body.Bytes(), &resp)
			if resp.Reason != want || resp.OK != (i == 0) {
				t.Fatalf("disableDB=%v attempt %d: %s", disableDB, i, rr.Body.String())
			}
		}
	}
}

func TestRuntime_MetricsIncludeLiveGames(t *testing.T) {
	rt, _ := newTestRuntime(t, true)
	rr := httptest.NewRecorder()
	rt.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rr.Body.String()
	if !strings.Contains(body, "binrush_sessions_started_total 0") || !strings.Contains(body, "binrush_ws_active_games 0") {
		t.Fatalf("metrics:\n%s", body)
	}

	rr = httptest.NewRecorder()
	rt.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != 200 || rr.Body.String() != "ok" {
		t.Fatalf("healthz: %d %q", rr.Code, rr.Body.String())
	}
}
