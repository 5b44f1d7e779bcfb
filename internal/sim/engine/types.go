package engine

import "time"

type Category string

const (
	Yellow Category = "yellow"
	Blue   Category = "blue"
	Brown  Category = "brown"
	Black  Category = "black"
)

// Categories is the fixed bin order. Bins are laid out and sampled in this order.
var Categories = []Category{Yellow, Blue, Brown, Black}

func ParseCategory(s string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == s {
			return c, true
		}
	}
	return "", false
}

type Item struct {
	ID        string    `json:"id"`
	Category  Category  `json:"type"`
	CreatedAt time.Time `json:"placed_at"`
	Misrouted bool      `json:"mis_sorted,omitempty"`
}

type Bin struct {
	Category Category `json:"color"`
	Capacity int      `json:"capacity"`
	Items    []Item   `json:"items"`
}

type LossCause int

const (
	CauseNone LossCause = iota
	CauseQueueOverflow
	CauseBinOverflow
	CauseInspection
)

func (c LossCause) String() string {
	switch c {
	case CauseQueueOverflow:
		return "queue_overflow"
	case CauseBinOverflow:
		return "bin_overflow"
	case CauseInspection:
		return "inspection"
	default:
		return "none"
	}
}

type InspectionResult struct {
	Bin            Category `json:"inspected_bin"`
	Depth          int      `json:"depth"`
	FoundMisrouted bool     `json:"found_mis_sort"`
}

// Snapshot is a detached copy of engine state for rendering and transport.
type Snapshot struct {
	Bins       []Bin  `json:"bins"`
	SpawnQueue []Item `json:"spawn_queue"`
	Score      int    `json:"score"`
	Placements int    `json:"placements"`

	Lost   bool   `json:"lost"`
	Reason string `json:"reason,omitempty"`
	Cause  string `json:"cause,omitempty"`

	NextSpawnETAMs       int64    `json:"next_spawn_eta_ms"`
	NextTruckETAMs       int64    `json:"next_truck_eta_ms"`
	NextTruckTarget      Category `json:"next_truck_target,omitempty"`
	TruckIntervalTotalMs int64    `json:"truck_interval_total_ms"`
	NextInspectionETAMs  int64    `json:"next_inspection_eta_ms"`

	LastInspection *InspectionResult `json:"last_inspection,omitempty"`

	Time time.Time `json:"time"`
}

// Bin returns the bin view for category c.
func (s Snapshot) Bin(c Category) (Bin, bool) {
	for _, b := range s.Bins {
		if b.Category == c {
			return b, true
		}
	}
	return Bin{}, false
}
