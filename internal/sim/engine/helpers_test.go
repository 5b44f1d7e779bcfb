package engine

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"binrush.ai/internal/sim/clock"
	"binrush.ai/internal/sim/tuning"
)

var t0 = time.UnixMilli(1700000000000)

// scriptRand returns queued draws first and 0 once the queue is empty.
type scriptRand struct {
	mu sync.Mutex
	q  []float64
}

func (r *scriptRand) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.q) == 0 {
		return 0
	}
	v := r.q[0]
	r.q = r.q[1:]
	return v
}

func (r *scriptRand) push(v ...float64) {
	r.mu.Lock()
	r.q = append(r.q, v...)
	r.mu.Unlock()
}

type recordingLogger struct {
	mu     sync.Mutex
	events []Event
}

func (l *recordingLogger) WriteEvent(ev Event) error {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
	return nil
}

func (l *recordingLogger) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

type harness struct {
	t     *testing.T
	clock *clock.Fake
	rng   *scriptRand
	e     *Engine
	log   *recordingLogger
}

// newHarness builds an engine whose reset draws come from resetDraws (missing draws are 0).
func newHarness(t *testing.T, cfg tuning.Tuning, resetDraws ...float64) *harness {
	t.Helper()
	h := &harness{
		t:     t,
		clock: clock.NewFake(t0),
		rng:   &scriptRand{},
		log:   &recordingLogger{},
	}
	h.rng.push(resetDraws...)
	n := 0
	e, err := New(cfg,
		WithClock(h.clock),
		WithRand(h.rng),
		WithIDSource(func() string { n++; return fmt.Sprintf("I%d", n) }),
		WithEventLogger(h.log),
		WithGameID("G1"),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.e = e
	return h
}

// tickAt moves the clock to t0+ms and ticks, consuming draws first.
func (h *harness) tickAt(ms int, draws ...float64) Snapshot {
	h.t.Helper()
	h.rng.push(draws...)
	h.clock.Set(t0.Add(time.Duration(ms) * time.Millisecond))
	h.e.Tick(h.clock.Now())
	return h.e.Snapshot()
}

func fixedConfig(spawn, truck, inspection int) tuning.Tuning {
	cfg := tuning.Defaults()
	cfg.SpawnIntervalMs = [2]int{spawn, spawn}
	cfg.TruckIntervalMs = [2]int{truck, truck}
	cfg.InspectionIntervalMs = [2]int{inspection, inspection}
	return cfg
}
