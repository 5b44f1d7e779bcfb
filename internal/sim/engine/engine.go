// Package engine implements the sorting-game simulation: a spawn queue feeding
// categorized bins, periodic trucks that empty one bin, and periodic inspections
// that end the game when a recently added item is in the wrong bin.
//
// All mutating calls (Reset, Tick, MoveFromSpawnToBin) are serialized by a
// single mutex; Snapshot returns detached copies and never exposes internal
// slices.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"binrush.ai/internal/sim/clock"
	"binrush.ai/internal/sim/tuning"
)

const (
	reasonQueueOverflow = "Too much unsorted trash waiting"
	reasonBinOverflow   = "A bin overflowed"
)

type Option func(*Engine)

func WithClock(c clock.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithRand(r clock.Rand) Option { return func(e *Engine) { e.rng = r } }

// WithIDSource replaces the uuid item id generator.
func WithIDSource(f func() string) Option { return func(e *Engine) { e.newID = f } }

func WithEventLogger(l EventLogger) Option { return func(e *Engine) { e.events = l } }

// WithGameID tags emitted events so several games can share one event log.
func WithGameID(id string) Option { return func(e *Engine) { e.gameID = id } }

type Engine struct {
	mu sync.Mutex

	cfg    tuning.Tuning
	clock  clock.Clock
	rng    clock.Rand
	newID  func() string
	events EventLogger
	gameID string

	bins       []Bin
	queue      []Item
	score      int
	placements int

	lost   bool
	reason string
	cause  LossCause

	nextSpawn      time.Time
	nextTruck      time.Time
	truckTarget    Category
	truckInterval  time.Duration
	nextInspection time.Time
	lastInspection *InspectionResult
}

// New builds an engine and performs the initial Reset at the clock's current time.
func New(cfg tuning.Tuning, opts ...Option) (*Engine, error) {
	e := &Engine{
		clock: clock.Real{},
		rng:   clock.Default{},
		newID: uuid.NewString,
	}
	for _, o := range opts {
		o(e)
	}
	if err := e.Reset(cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// Reset empties every bin and the queue, zeroes the score, draws fresh
// spawn/truck/inspection deadlines and returns the engine to Running.
func (e *Engine) Reset(cfg tuning.Tuning) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cfg = cfg
	e.bins = make([]Bin, len(Categories))
	for i, c := range Categories {
		e.bins[i] = Bin{Category: c, Capacity: cfg.BinCapacity}
	}
	e.queue = nil
	e.score = 0
	e.placements = 0
	e.lost = false
	e.reason = ""
	e.cause = CauseNone
	e.lastInspection = nil

	now := e.clock.Now()
	e.nextSpawn = now.Add(e.drawInterval(cfg.SpawnIntervalMs))
	e.scheduleTruck(now)
	e.nextInspection = now.Add(e.drawInterval(cfg.InspectionIntervalMs))
	e.emit(Event{Kind: EventReset, At: now})
	return nil
}

// Tick advances the schedule to now. Spawn, truck, inspection and the overflow
// scan run in that order; when several terminal conditions align on the same
// tick the first one recorded is the reported cause.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lost {
		return
	}

	if !now.Before(e.nextSpawn) {
		e.spawn(now)
		e.nextSpawn = now.Add(e.drawInterval(e.cfg.SpawnIntervalMs))
	}
	if !now.Before(e.nextTruck) {
		e.truckArrives(now)
	}
	if !now.Before(e.nextInspection) {
		e.inspect(now)
		e.nextInspection = now.Add(e.drawInterval(e.cfg.InspectionIntervalMs))
	}
	for i := range e.bins {
		if len(e.bins[i].Items) > e.bins[i].Capacity {
			e.lose(now, CauseBinOverflow, reasonBinOverflow)
			break
		}
	}
}

// MoveFromSpawnToBin routes a queued item into the bin for category. Unknown
// categories, ids no longer in the queue and calls after the game is lost are
// no-ops and report false. Only a correctly routed item scores.
func (e *Engine) MoveFromSpawnToBin(category Category, itemID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lost {
		return false
	}
	bin := e.binLocked(category)
	if bin == nil {
		return false
	}
	idx := -1
	for i := range e.queue {
		if e.queue[i].ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	item := e.queue[idx]
	e.queue = append(e.queue[:idx], e.queue[idx+1:]...)

	if item.Category != bin.Category {
		item.Misrouted = true
	} else {
		e.score += e.cfg.ScorePerItem
		e.placements++
	}
	bin.Items = append(bin.Items, item)
	e.emit(Event{Kind: EventPlace, At: e.clock.Now(), Category: bin.Category, ItemID: item.ID, Misrouted: item.Misrouted})
	return true
}

func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	bins := make([]Bin, len(e.bins))
	for i, b := range e.bins {
		bins[i] = Bin{Category: b.Category, Capacity: b.Capacity, Items: append([]Item(nil), b.Items...)}
	}
	s := Snapshot{
		Bins:                 bins,
		SpawnQueue:           append([]Item(nil), e.queue...),
		Score:                e.score,
		Placements:           e.placements,
		Lost:                 e.lost,
		Reason:               e.reason,
		NextSpawnETAMs:       etaMs(e.nextSpawn, now),
		NextTruckETAMs:       etaMs(e.nextTruck, now),
		NextTruckTarget:      e.truckTarget,
		TruckIntervalTotalMs: e.truckInterval.Milliseconds(),
		NextInspectionETAMs:  etaMs(e.nextInspection, now),
		Time:                 now,
	}
	if e.cause != CauseNone {
		s.Cause = e.cause.String()
	}
	if e.lastInspection != nil {
		r := *e.lastInspection
		s.LastInspection = &r
	}
	return s
}

func (e *Engine) Config() tuning.Tuning {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

func (e *Engine) Lost() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lost
}

func (e *Engine) spawn(now time.Time) {
	item := Item{
		ID:        e.newID(),
		Category:  Categories[e.pick(len(Categories))],
		CreatedAt: now,
	}
	e.queue = append(e.queue, item)
	e.emit(Event{Kind: EventSpawn, At: now, Category: item.Category, ItemID: item.ID})
	if len(e.queue) > e.cfg.MaxSpawnQueue {
		e.lose(now, CauseQueueOverflow, reasonQueueOverflow)
	}
}

func (e *Engine) scheduleTruck(from time.Time) {
	e.truckTarget = Categories[e.pick(len(Categories))]
	e.truckInterval = e.drawInterval(e.cfg.TruckIntervalMs)
	e.nextTruck = from.Add(e.truckInterval)
}

func (e *Engine) truckArrives(now time.Time) {
	target := e.truckTarget
	cleared := 0
	if bin := e.binLocked(target); bin != nil {
		cleared = len(bin.Items)
		bin.Items = nil
	}
	e.emit(Event{Kind: EventTruck, At: now, Category: target, Cleared: cleared})
	e.scheduleTruck(now)
}

func (e *Engine) lose(now time.Time, cause LossCause, reason string) {
	if e.lost {
		return
	}
	e.lost = true
	e.cause = cause
	e.reason = reason
	e.emit(Event{Kind: EventLoss, At: now, Detail: reason})
}

func (e *Engine) binLocked(c Category) *Bin {
	for i := range e.bins {
		if e.bins[i].Category == c {
			return &e.bins[i]
		}
	}
	return nil
}

// drawInterval returns low + u*(high-low) milliseconds for a uniform draw u.
func (e *Engine) drawInterval(r [2]int) time.Duration {
	lo, hi := float64(r[0]), float64(r[1])
	ms := lo + e.rng.Float64()*(hi-lo)
	return time.Duration(ms * float64(time.Millisecond))
}

// pick maps a uniform draw onto [0,n).
func (e *Engine) pick(n int) int {
	i := int(e.rng.Float64() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}

func (e *Engine) emit(ev Event) {
	if e.events == nil {
		return
	}
	ev.GameID = e.gameID
	ev.Score = e.score
	_ = e.events.WriteEvent(ev)
}

func etaMs(deadline, now time.Time) int64 {
	d := deadline.Sub(now)
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}
