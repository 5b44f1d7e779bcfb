package main

import (
	"context"
	"flag"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"binrush.ai/internal/config"
	persistlog "binrush.ai/internal/persistence/log"
	"binrush.ai/internal/plausibility"
	"binrush.ai/internal/session"
	"binrush.ai/internal/sim/clock"
	"binrush.ai/internal/sim/engine"
	"binrush.ai/internal/sim/tuning"
	"binrush.ai/internal/submission"
	"binrush.ai/internal/transport/httpapi"
	"binrush.ai/internal/transport/ws"
)

func main() {
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	var (
		addr       = flag.String("addr", cfg.Addr(), "http listen address (default from PORT)")
		dataDir    = flag.String("data", cfg.DataDir, "runtime data directory (audit and event logs)")
		dbPath     = flag.String("db", cfg.DBFile, "sqlite leaderboard path")
		tuningPath = flag.String("tuning", cfg.TuningFile, "path to tuning.yaml")
		disableDB  = flag.Bool("disable_db", false, "keep the leaderboard in memory")
		noEvents   = flag.Bool("disable_event_log", false, "do not record hosted-game events")
	)
	flag.Parse()

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load tuning: %v", err)
		}
		logger.Printf("tuning not found (%s); using defaults", *tuningPath)
		tune = tuning.Defaults()
	}

	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret, err = session.GenerateSecret(nil, 32)
		if err != nil {
			logger.Fatalf("session secret: %v", err)
		}
		logger.Printf("SESSION_SECRET not set; sessions will not survive a restart")
	}

	rt, err := newRuntime(runtimeConfig{
		Tuning:      tune,
		Secret:      secret,
		SessionTTL:  cfg.SessionTTL,
		DBPath:      *dbPath,
		DisableDB:   *disableDB,
		DataDir:     *dataDir,
		EventLog:    !*noEvents,
		RateLimit:   cfg.RateLimit,
		EnableAdmin: cfg.AdminEnabled(),
		Clock:       clock.Real{},
	}, logger)
	if err != nil {
		logger.Fatalf("init: %v", err)
	}
	defer rt.Close()

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              *addr,
		Handler:           rt.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s (spawn=%v truck=%v inspection=%v)", *addr, tune.SpawnIntervalMs, tune.TruckIntervalMs, tune.InspectionIntervalMs)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

type runtimeConfig struct {
	Tuning      tuning.Tuning
	Secret      []byte
	SessionTTL  time.Duration
	DBPath      string
	DisableDB   bool
	DataDir     string
	EventLog    bool
	RateLimit   int
	EnableAdmin bool
	Clock       clock.Clock
}

type serverRuntime struct {
	api     *httpapi.Server
	live    *ws.Server
	closers []io.Closer
}

func newRuntime(cfg runtimeConfig, logger *log.Logger) (*serverRuntime, error) {
	rt := &serverRuntime{}
	auth, err := session.NewAuthority(cfg.Secret, session.WithClock(cfg.Clock), session.WithTTL(cfg.SessionTTL))
	if err != nil {
		return nil, err
	}
	store, err := openScoreStore(cfg.DBPath, cfg.DisableDB, cfg.Tuning.LeaderboardLimit, cfg.Clock, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, store)

	audit := persistlog.NewSubmissionLogger(cfg.DataDir)
	rt.closers = append(rt.closers, audit)

	coord, err := submission.New(submission.Config{
		Authority: auth,
		Ledger:    store,
		Validator: plausibility.FromTuning(cfg.Tuning),
		Board:     store,
		Clock:     cfg.Clock,
		Audit:     audit,
		Logger:    logger,
	})
	if err != nil {
		rt.Close()
		return nil, err
	}

	var events engine.EventLogger
	if cfg.EventLog {
		el := persistlog.NewEventLogger(cfg.DataDir)
		rt.closers = append(rt.closers, el)
		events = el
	}
	rt.live = ws.NewServer(ws.Config{
		Sessions: coord,
		Tuning:   cfg.Tuning,
		Clock:    cfg.Clock,
		Events:   events,
		Logger:   logger,
	})
	rt.api = httpapi.NewServer(httpapi.Config{
		Coordinator:  coord,
		Tuning:       cfg.Tuning,
		Clock:        cfg.Clock,
		Logger:       logger,
		RateLimit:    cfg.RateLimit,
		EnableAdmin:  cfg.EnableAdmin,
		ExtraMetrics: rt.live.WriteMetrics,
	})
	if !cfg.EnableAdmin {
		logger.Printf("admin endpoints disabled (DEPLOY_ENV=staging/production)")
	}
	return rt, nil
}

func (rt *serverRuntime) Handler() http.Handler {
	mux := http.NewServeMux()
	rt.api.Mount(mux)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", rt.live.Handler())
	return mux
}

func (rt *serverRuntime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		_ = rt.closers[i].Close()
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
