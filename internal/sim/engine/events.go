package engine

import "time"

type EventKind string

const (
	EventSpawn      EventKind = "SPAWN"
	EventPlace      EventKind = "PLACE"
	EventTruck      EventKind = "TRUCK"
	EventInspection EventKind = "INSPECTION"
	EventLoss       EventKind = "LOSS"
	EventReset      EventKind = "RESET"
)

// Event is one state change worth recording. Fields not relevant to Kind are zero.
type Event struct {
	Kind      EventKind `json:"kind"`
	At        time.Time `json:"at"`
	GameID    string    `json:"game_id,omitempty"`
	Category  Category  `json:"category,omitempty"`
	ItemID    string    `json:"item_id,omitempty"`
	Misrouted bool      `json:"misrouted,omitempty"`
	Depth     int       `json:"depth,omitempty"`
	Cleared   int       `json:"cleared,omitempty"`
	Score     int       `json:"score"`
	Detail    string    `json:"detail,omitempty"`
}

type EventLogger interface {
	WriteEvent(Event) error
}
