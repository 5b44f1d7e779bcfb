// Package plausibility bounds the score a player could have earned in a given
// amount of session time. Items cannot be scored faster than they spawn, so the
// fastest spawn interval caps the item count. The check errs toward accepting:
// spawn timing is random and the server does not replay it.
package plausibility

import (
	"math"
	"time"

	"binrush.ai/internal/protocol"
	"binrush.ai/internal/sim/tuning"
)

type Validator struct {
	MinSpawnInterval time.Duration
	ScorePerItem     int
	Leniency         float64
}

func FromTuning(t tuning.Tuning) Validator {
	return Validator{
		MinSpawnInterval: t.MinSpawnInterval(),
		ScorePerItem:     t.ScorePerItem,
		Leniency:         t.PlausibilityLeniency,
	}
}

type Verdict struct {
	OK     bool
	Reason string

	// Set whenever the time check passed.
	MaxPossibleItems int
	MaxPossibleScore int
}

// MaxItems is floor(elapsed/minSpawn)+1: one item may already be waiting when
// the clock starts.
func (v Validator) MaxItems(elapsed time.Duration) int {
	if elapsed < 0 || v.MinSpawnInterval <= 0 {
		return 0
	}
	return int(elapsed/v.MinSpawnInterval) + 1
}

// Check rejects, in order: negative elapsed time, a score that is not a
// non-negative whole multiple of ScorePerItem, and an item count above
// MaxItems scaled by 1+Leniency.
func (v Validator) Check(elapsed time.Duration, score float64) Verdict {
	if elapsed < 0 {
		return Verdict{Reason: protocol.ReasonTimeAnomaly}
	}
	maxItems := v.MaxItems(elapsed)
	verdict := Verdict{
		MaxPossibleItems: maxItems,
		MaxPossibleScore: maxItems * v.ScorePerItem,
	}
	if v.ScorePerItem <= 0 || score < 0 || math.IsNaN(score) || math.IsInf(score, 0) ||
		score != math.Trunc(score) || math.Mod(score, float64(v.ScorePerItem)) != 0 {
		verdict.Reason = protocol.ReasonInvalidIncrement
		return verdict
	}
	claimed := score / float64(v.ScorePerItem)
	if claimed > float64(maxItems)*(1+v.Leniency) {
		verdict.Reason = protocol.ReasonImplausibleScore
		return verdict
	}
	verdict.OK = true
	return verdict
}
