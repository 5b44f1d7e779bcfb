// Package httpapi serves the browser-facing JSON API: session start, the
// leaderboard, game config, health and counters.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"binrush.ai/internal/leaderboard"
	"binrush.ai/internal/protocol"
	"binrush.ai/internal/sim/clock"
	"binrush.ai/internal/sim/tuning"
	"binrush.ai/internal/submission"
)

const MaxBodyBytes = 32 << 10

type Config struct {
	Coordinator *submission.Coordinator
	Tuning      tuning.Tuning
	Clock       clock.Clock
	Logger      *log.Logger

	// Requests per minute per client on /api/ routes. Zero means 60.
	RateLimit   int
	EnableAdmin bool

	// ExtraMetrics appends Prometheus lines to /metrics.
	ExtraMetrics func(io.Writer)
}

type Server struct {
	coord   *submission.Coordinator
	tune    tuning.Tuning
	clock   clock.Clock
	logger  *log.Logger
	limiter *clientLimiter
	admin   bool
	extra   func(io.Writer)
	started time.Time
}

func NewServer(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 60
	}
	return &Server{
		coord:   cfg.Coordinator,
		tune:    cfg.Tuning,
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		limiter: newClientLimiter(cfg.RateLimit, cfg.Clock),
		admin:   cfg.EnableAdmin,
		extra:   cfg.ExtraMetrics,
		started: cfg.Clock.Now(),
	}
}

// Mount registers every route on mux.
func (s *Server) Mount(mux *http.ServeMux) {
	mux.Handle("/api/health", s.api(s.handleHealth))
	mux.Handle("/api/config", s.api(s.handleConfig))
	mux.Handle("/api/metrics", s.api(s.handleMetricsJSON))
	mux.Handle("/api/session/start", s.api(s.handleSessionStart))
	mux.Handle("/api/leaderboard", s.api(s.handleLeaderboard))
	mux.Handle("/metrics", secureHeaders(http.HandlerFunc(s.handlePrometheus)))
	if s.admin {
		mux.Handle("/admin/v1/leaderboard", secureHeaders(http.HandlerFunc(s.handleAdminLeaderboard)))
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.Mount(mux)
	return mux
}

func (s *Server) api(h http.HandlerFunc) http.Handler {
	return secureHeaders(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(r.RemoteAddr) {
			rw.Header().Set("Retry-After", "60")
			writeJSON(rw, http.StatusTooManyRequests, map[string]any{"ok": false, "error": "rate_limited"})
			return
		}
		h(rw, r)
	}))
}

func secureHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		h := rw.Header()
		h.Set("Content-Security-Policy", "default-src 'self'; script-src 'self'; object-src 'none'; base-uri 'self'; frame-ancestors 'self'")
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		next.ServeHTTP(rw, r)
	})
}

func (s *Server) handleHealth(rw http.ResponseWriter, r *http.Request) {
	if !allowMethod(rw, r, http.MethodGet) {
		return
	}
	writeJSON(rw, http.StatusOK, protocol.HealthResponse{
		OK:     true,
		Uptime: s.clock.Now().Sub(s.started).Seconds(),
	})
}

func (s *Server) handleConfig(rw http.ResponseWriter, r *http.Request) {
	if !allowMethod(rw, r, http.MethodGet) {
		return
	}
	writeJSON(rw, http.StatusOK, protocol.ConfigResponse(s.tune))
}

func (s *Server) handleMetricsJSON(rw http.ResponseWriter, r *http.Request) {
	if !allowMethod(rw, r, http.MethodGet) {
		return
	}
	m := s.coord.Metrics()
	writeJSON(rw, http.StatusOK, protocol.MetricsResponse{
		SessionsStarted: m.SessionsStarted,
		ScoresAccepted:  m.ScoresAccepted,
		ScoresRejected:  m.ScoresRejected,
	})
}

func (s *Server) handleSessionStart(rw http.ResponseWriter, r *http.Request) {
	if !allowMethod(rw, r, http.MethodPost) {
		return
	}
	tok, err := s.coord.StartSession(r.Context())
	if err != nil {
		s.logf("session start: %v", err)
		writeJSON(rw, http.StatusInternalServerError, protocol.FailureResponse{})
		return
	}
	writeJSON(rw, http.StatusOK, protocol.SessionStartResponse{
		SessionID: tok.Value,
		StartedAt: tok.StartedAt.UnixMilli(),
	})
}

func (s *Server) handleLeaderboard(rw http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.getLeaderboard(rw, r)
	case http.MethodPost:
		s.postLeaderboard(rw, r)
	default:
		rw.Header().Set("Allow", "GET, POST")
		rw.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) getLeaderboard(rw http.ResponseWriter, r *http.Request) {
	board := s.coord.Board()
	top, err := board.Top(r.Context())
	if err != nil {
		s.logf("leaderboard top: %v", err)
		writeJSON(rw, http.StatusInternalServerError, protocol.FailureResponse{})
		return
	}
	meta, err := board.Meta(r.Context())
	if err != nil {
		s.logf("leaderboard meta: %v", err)
		writeJSON(rw, http.StatusInternalServerError, protocol.FailureResponse{})
		return
	}
	resp := protocol.LeaderboardResponse{
		Scores: make([]protocol.LeaderboardEntry, 0, len(top)),
		Meta:   toMeta(meta),
	}
	for _, e := range top {
		resp.Scores = append(resp.Scores, protocol.LeaderboardEntry{
			ID:        e.ID,
			Name:      e.Name,
			Score:     e.Score,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) postLeaderboard(rw http.ResponseWriter, r *http.Request) {
	var body protocol.SubmitRequest
	dec := json.NewDecoder(http.MaxBytesReader(rw, r.Body, MaxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.coord.NoteMalformed()
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeJSON(rw, http.StatusRequestEntityTooLarge, protocol.FailureResponse{})
			return
		}
		writeJSON(rw, http.StatusBadRequest, protocol.FailureResponse{})
		return
	}

	out, err := s.coord.Submit(r.Context(), submission.Request{
		SessionID: strings.TrimSpace(body.SessionID),
		Name:      body.Name,
		Score:     body.ScoreValue(),
		Remote:    clientKey(r.RemoteAddr),
	})
	if err != nil {
		s.logf("submit: %v", err)
		writeJSON(rw, http.StatusInternalServerError, protocol.FailureResponse{})
		return
	}
	resp := protocol.SubmitResponse{
		OK:     out.OK,
		ID:     out.ID,
		Reason: out.Reason,
		Meta:   toMeta(out.Meta),
	}
	if out.MinimumToBeat > 0 {
		v := out.MinimumToBeat
		resp.MinimumToBeat = &v
	}
	if out.Reason == protocol.ReasonImplausibleScore {
		v := out.MaxPossibleScore
		resp.MaxPossibleScore = &v
	}
	writeJSON(rw, http.StatusOK, resp)
}

func (s *Server) handlePrometheus(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
	m := s.coord.Metrics()

	fmt.Fprintf(rw, "# HELP binrush_sessions_started_total Sessions issued.\n")
	fmt.Fprintf(rw, "# TYPE binrush_sessions_started_total counter\n")
	fmt.Fprintf(rw, "binrush_sessions_started_total %d\n", m.SessionsStarted)

	fmt.Fprintf(rw, "# HELP binrush_scores_total Score submissions by outcome.\n")
	fmt.Fprintf(rw, "# TYPE binrush_scores_total counter\n")
	fmt.Fprintf(rw, "binrush_scores_total{outcome=%q} %d\n", "accepted", m.ScoresAccepted)
	fmt.Fprintf(rw, "binrush_scores_total{outcome=%q} %d\n", "rejected", m.ScoresRejected)

	fmt.Fprintf(rw, "# HELP binrush_uptime_seconds Seconds since the server started.\n")
	fmt.Fprintf(rw, "# TYPE binrush_uptime_seconds gauge\n")
	fmt.Fprintf(rw, "binrush_uptime_seconds %.3f\n", s.clock.Now().Sub(s.started).Seconds())

	if meta, err := s.coord.Board().Meta(r.Context()); err == nil && meta.Tenth != nil {
		fmt.Fprintf(rw, "# HELP binrush_leaderboard_threshold Lowest ranked score on a full board.\n")
		fmt.Fprintf(rw, "# TYPE binrush_leaderboard_threshold gauge\n")
		fmt.Fprintf(rw, "binrush_leaderboard_threshold %d\n", *meta.Tenth)
	}
	if s.extra != nil {
		s.extra(rw)
	}
}

// Local-only.
func (s *Server) handleAdminLeaderboard(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	if err := s.coord.Board().Clear(r.Context()); err != nil {
		s.logf("admin clear: %v", err)
		writeJSON(rw, http.StatusInternalServerError, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	s.logf("leaderboard cleared by %s", r.RemoteAddr)
	writeJSON(rw, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

func allowMethod(rw http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	rw.Header().Set("Allow", method)
	rw.WriteHeader(http.StatusMethodNotAllowed)
	return false
}

func writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(v)
}

func toMeta(m leaderboard.Meta) protocol.LeaderboardMeta {
	return protocol.LeaderboardMeta{Limit: m.Limit, Tenth: m.Tenth}
}
