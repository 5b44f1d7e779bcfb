package tuning

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning is the immutable game configuration shared by the simulation and the
// server-side plausibility bounds. Both sides must agree on SpawnIntervalMs[0]
// and ScorePerItem.
type Tuning struct {
	BinCapacity          int    `yaml:"bin_capacity" json:"bins"`
	SpawnIntervalMs      [2]int `yaml:"spawn_interval_ms" json:"spawnInterval"`
	TruckIntervalMs      [2]int `yaml:"truck_interval_ms" json:"truckInterval"`
	InspectionIntervalMs [2]int `yaml:"inspection_interval_ms" json:"inspectionInterval"`
	MaxSpawnQueue        int    `yaml:"max_spawn_queue" json:"maxSpawnQueue"`
	LeaderboardLimit     int    `yaml:"leaderboard_limit" json:"leaderboardLimit"`
	ScorePerItem         int    `yaml:"score_per_item" json:"scorePerItem"`

	// Fractional allowance over the spawn-rate bound (0.10 = 10%).
	PlausibilityLeniency float64 `yaml:"plausibility_leniency" json:"-"`

	// Server-hosted play loop.
	TickIntervalMs int `yaml:"tick_interval_ms" json:"-"`
	BroadcastEvery int `yaml:"broadcast_every_ticks" json:"-"`
}

func Defaults() Tuning {
	return Tuning{
		BinCapacity:          10,
		SpawnIntervalMs:      [2]int{1200, 2500},
		TruckIntervalMs:      [2]int{10000, 15000},
		InspectionIntervalMs: [2]int{6000, 14000},
		MaxSpawnQueue:        8,
		LeaderboardLimit:     10,
		ScorePerItem:         10,
		PlausibilityLeniency: 0.10,
		TickIntervalMs:       50,
		BroadcastEvery:       4,
	}
}

// Load reads a tuning.yaml on top of Defaults. A missing file is reported as
// an error satisfying os.IsNotExist so callers can fall back to Defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.BinCapacity <= 0 {
		errs = append(errs, fmt.Errorf("bin_capacity must be > 0"))
	}
	errs = append(errs,
		checkRange("spawn_interval_ms", t.SpawnIntervalMs),
		checkRange("truck_interval_ms", t.TruckIntervalMs),
		checkRange("inspection_interval_ms", t.InspectionIntervalMs),
	)
	if t.MaxSpawnQueue <= 0 {
		errs = append(errs, fmt.Errorf("max_spawn_queue must be > 0"))
	}
	if t.LeaderboardLimit <= 0 {
		errs = append(errs, fmt.Errorf("leaderboard_limit must be > 0"))
	}
	if t.ScorePerItem <= 0 {
		errs = append(errs, fmt.Errorf("score_per_item must be > 0"))
	}
	if t.PlausibilityLeniency < 0 {
		errs = append(errs, fmt.Errorf("plausibility_leniency must be >= 0"))
	}
	if t.TickIntervalMs <= 0 {
		errs = append(errs, fmt.Errorf("tick_interval_ms must be > 0"))
	}
	if t.BroadcastEvery <= 0 {
		errs = append(errs, fmt.Errorf("broadcast_every_ticks must be > 0"))
	}
	return errors.Join(errs...)
}

func checkRange(name string, r [2]int) error {
	if r[0] <= 0 || r[1] < r[0] {
		return fmt.Errorf("%s must satisfy 0 < min <= max, got %v", name, r)
	}
	return nil
}

func (t Tuning) MinSpawnInterval() time.Duration {
	return time.Duration(t.SpawnIntervalMs[0]) * time.Millisecond
}

func (t Tuning) TickInterval() time.Duration {
	return time.Duration(t.TickIntervalMs) * time.Millisecond
}
