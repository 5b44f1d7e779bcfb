package protocol

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"binrush.ai/internal/sim/engine"
	"binrush.ai/internal/sim/tuning"
)

// HTTP API bodies. Field names follow the browser client (camelCase).

type SessionStartResponse struct {
	SessionID string `json:"sessionId"`
	StartedAt int64  `json:"startedAt"`
}

type LeaderboardEntry struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	CreatedAt string `json:"created_at"`
}

type LeaderboardMeta struct {
	Limit int  `json:"limit"`
	Tenth *int `json:"tenth,omitempty"`
}

type LeaderboardResponse struct {
	Scores []LeaderboardEntry `json:"scores"`
	Meta   LeaderboardMeta    `json:"meta"`
}

// SubmitRequest accepts the score as a JSON number or numeric string.
type SubmitRequest struct {
	SessionID string `json:"sessionId"`
	Name      string `json:"name"`
	Score     any    `json:"score"`
}

type SubmitResponse struct {
	OK               bool            `json:"ok"`
	ID               int64           `json:"id,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	Meta             LeaderboardMeta `json:"meta"`
	MinimumToBeat    *int            `json:"minimumToBeat,omitempty"`
	MaxPossibleScore *int            `json:"maxPossibleScore,omitempty"`
}

// FailureResponse is the generic body for malformed requests and internal errors.
type FailureResponse struct {
	OK bool `json:"ok"`
}

type ConfigResponse = tuning.Tuning

type HealthResponse struct {
	OK     bool    `json:"ok"`
	Uptime float64 `json:"uptime"`
}

type MetricsResponse struct {
	SessionsStarted uint64 `json:"sessionsStarted"`
	ScoresAccepted  uint64 `json:"scoresAccepted"`
	ScoresRejected  uint64 `json:"scoresRejected"`
}

// Live-play messages.

type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Name            string `json:"name,omitempty"`
}

type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	StartedAt       int64          `json:"started_at"`
	Config          ConfigResponse `json:"config"`
}

type SnapshotMsg struct {
	Type            string          `json:"type"`
	ProtocolVersion string          `json:"protocol_version"`
	Tick            uint64          `json:"tick"`
	State           engine.Snapshot `json:"state"`
}

type MoveMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Category        string `json:"category"`
	ItemID          string `json:"item_id"`
}

type ResetMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
}

type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

// ScoreValue coerces the submitted score: JSON numbers and numeric strings are
// taken as-is, anything else (missing, bool, garbage) counts as 0.
func (r SubmitRequest) ScoreValue() float64 {
	switch v := r.Score.(type) {
	case float64:
		return v
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}
