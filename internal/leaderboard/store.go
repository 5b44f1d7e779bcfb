// Package leaderboard keeps the bounded top-K score table.
package leaderboard

import (
	"context"
	"time"

	"binrush.ai/internal/sanitize"
	"binrush.ai/internal/sim/clock"
)

const DefaultLimit = 10

type Entry struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Meta describes the current threshold. Tenth is the K-th score and is only
// set while the board is full.
type Meta struct {
	Limit int  `json:"limit"`
	Tenth *int `json:"tenth,omitempty"`
}

// Result of a Submit. MinimumToBeat is zero when there is no threshold to
// report (accepted into a board that still has room).
type Result struct {
	Accepted      bool
	ID            int64
	MinimumToBeat int
	Meta          Meta
}

// Store ranks entries by score descending, ties by insertion order, and never
// holds more than Limit entries. Submit is atomic with respect to every other
// call on the same store.
type Store interface {
	Submit(ctx context.Context, name string, score int) (Result, error)
	Top(ctx context.Context) ([]Entry, error)
	Meta(ctx context.Context) (Meta, error)
	Clear(ctx context.Context) error
	Close() error
}

type Options struct {
	Limit int
	Clock clock.Clock
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	return o
}

func cleanName(name string) string {
	return sanitize.Truncate(name, sanitize.MaxNameRunes)
}

// decide applies the admission rule given the current row count and the K-th
// score (valid only when count >= limit).
func decide(limit, count, tenth, score int) (accept bool, minimum int) {
	full := count >= limit
	if score <= 0 {
		if full {
			return false, tenth + 1
		}
		return false, 1
	}
	if full && score <= tenth {
		return false, tenth + 1
	}
	return true, 0
}

func metaFor(limit int, scores []int) Meta {
	m := Meta{Limit: limit}
	if len(scores) >= limit {
		t := scores[limit-1]
		m.Tenth = &t
	}
	return m
}

func minimumAfterAccept(m Meta) int {
	if m.Tenth == nil {
		return 0
	}
	return *m.Tenth + 1
}
