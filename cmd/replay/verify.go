package main

import (
	"fmt"
	"time"

	"binrush.ai/internal/sim/engine"
	"binrush.ai/internal/sim/tuning"
)

// gameSummary is what one recorded game adds up to, plus every rule the
// recording broke.
type gameSummary struct {
	ID         string
	Started    time.Time
	Spawns     int
	Placed     int
	Misrouted  int
	Score      int
	LossReason string
	Problems   []string

	lastSpawn time.Time
	spawned   map[string]bool
	placed    map[string]bool
	lost      bool
	lostAt    time.Time
}

type verifier struct {
	perItem  int
	minSpawn time.Duration
	games    map[string]*gameSummary
	order    []string
}

func newVerifier(t tuning.Tuning) *verifier {
	return &verifier{
		perItem:  t.ScorePerItem,
		minSpawn: t.MinSpawnInterval(),
		games:    map[string]*gameSummary{},
	}
}

func (v *verifier) game(id string) *gameSummary {
	g := v.games[id]
	if g == nil {
		g = &gameSummary{ID: id, spawned: map[string]bool{}, placed: map[string]bool{}}
		v.games[id] = g
		v.order = append(v.order, id)
	}
	return g
}

func (v *verifier) Apply(ev engine.Event) {
	g := v.game(ev.GameID)
	if ev.Kind == engine.EventReset {
		*g = gameSummary{ID: g.ID, Started: ev.At, spawned: map[string]bool{}, placed: map[string]bool{}}
		return
	}
	if g.Started.IsZero() {
		g.Started = ev.At
	}
	// Truck and inspection still run in the tick that lost the game.
	if g.lost && ev.At.After(g.lostAt) {
		g.problem("%s event after loss at %s", ev.Kind, ev.At.Format(time.RFC3339Nano))
		return
	}

	switch ev.Kind {
	case engine.EventSpawn:
		if !g.lastSpawn.IsZero() && ev.At.Sub(g.lastSpawn) < v.minSpawn {
			g.problem("spawn gap %s below minimum %s", ev.At.Sub(g.lastSpawn), v.minSpawn)
		}
		g.lastSpawn = ev.At
		g.spawned[ev.ItemID] = true
		g.Spawns++
	case engine.EventPlace:
		switch {
		case !g.spawned[ev.ItemID]:
			g.problem("item %s placed without a spawn", ev.ItemID)
		case g.placed[ev.ItemID]:
			g.problem("item %s placed twice", ev.ItemID)
		}
		g.placed[ev.ItemID] = true
		if ev.Misrouted {
			g.Misrouted++
		} else {
			g.Placed++
		}
	case engine.EventLoss:
		g.lost = true
		g.lostAt = ev.At
		g.LossReason = ev.Detail
	}

	want := g.Placed * v.perItem
	if ev.Score != want {
		g.problem("%s at %s reports score %d, placements add up to %d", ev.Kind, ev.At.Format(time.RFC3339Nano), ev.Score, want)
	}
	g.Score = ev.Score
}

func (v *verifier) Games() []*gameSummary {
	out := make([]*gameSummary, 0, len(v.order))
	for _, id := range v.order {
		out = append(out, v.games[id])
	}
	return out
}

func (g *gameSummary) problem(format string, args ...any) {
	g.Problems = append(g.Problems, fmt.Sprintf(format, args...))
}
