// Package submission is the anti-cheat path for scores: it verifies the
// session credential, burns it, bounds the score against elapsed time, and
// only then touches the leaderboard.
package submission

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"binrush.ai/internal/leaderboard"
	"binrush.ai/internal/plausibility"
	"binrush.ai/internal/protocol"
	"binrush.ai/internal/sanitize"
	"binrush.ai/internal/session"
	"binrush.ai/internal/sim/clock"
)

// Record is one audited submission decision.
type Record struct {
	At               int64   `json:"at_ms"`
	SessionID        string  `json:"session_id,omitempty"`
	Remote           string  `json:"remote,omitempty"`
	Name             string  `json:"name"`
	Score            float64 `json:"score"`
	ElapsedMs        int64   `json:"elapsed_ms"`
	OK               bool    `json:"ok"`
	Reason           string  `json:"reason,omitempty"`
	EntryID          int64   `json:"entry_id,omitempty"`
	MaxPossibleScore int     `json:"max_possible_score,omitempty"`
}

type AuditLogger interface {
	WriteSubmission(Record) error
}

type Request struct {
	SessionID string
	Name      string
	Score     float64
	Remote    string
}

// Outcome mirrors the public response. MinimumToBeat and MaxPossibleScore are
// zero when absent.
type Outcome struct {
	OK               bool
	ID               int64
	Reason           string
	Meta             leaderboard.Meta
	MinimumToBeat    int
	MaxPossibleScore int
}

type Metrics struct {
	SessionsStarted uint64
	ScoresAccepted  uint64
	ScoresRejected  uint64
}

type Config struct {
	Authority *session.Authority
	Ledger    session.Ledger
	Validator plausibility.Validator
	Board     leaderboard.Store
	Clock     clock.Clock
	Audit     AuditLogger
	Logger    *log.Logger
}

type Coordinator struct {
	auth      *session.Authority
	ledger    session.Ledger
	validator plausibility.Validator
	board     leaderboard.Store
	clock     clock.Clock
	audit     AuditLogger
	logger    *log.Logger

	sessionsStarted atomic.Uint64
	scoresAccepted  atomic.Uint64
	scoresRejected  atomic.Uint64
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.Authority == nil {
		return nil, errors.New("submission: nil session authority")
	}
	if cfg.Ledger == nil {
		return nil, errors.New("submission: nil session ledger")
	}
	if cfg.Board == nil {
		return nil, errors.New("submission: nil leaderboard")
	}
	if cfg.Validator.MinSpawnInterval <= 0 || cfg.Validator.ScorePerItem <= 0 {
		return nil, fmt.Errorf("submission: invalid validator %+v", cfg.Validator)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real{}
	}
	return &Coordinator{
		auth:      cfg.Authority,
		ledger:    cfg.Ledger,
		validator: cfg.Validator,
		board:     cfg.Board,
		clock:     cfg.Clock,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
	}, nil
}

func (c *Coordinator) StartSession(context.Context) (session.Token, error) {
	tok, err := c.auth.Issue()
	if err != nil {
		return session.Token{}, err
	}
	c.sessionsStarted.Add(1)
	return tok, nil
}

// Submit returns an error only for storage failures. Every rejection is an
// Outcome with a reason from protocol.
func (c *Coordinator) Submit(ctx context.Context, req Request) (Outcome, error) {
	now := c.clock.Now()
	rec := Record{
		At:     now.UnixMilli(),
		Remote: req.Remote,
		Name:   req.Name,
		Score:  req.Score,
	}

	sess, err := c.auth.Verify(req.SessionID)
	if err != nil {
		return c.reject(ctx, rec, Outcome{Reason: protocol.ReasonInvalidSession})
	}
	rec.SessionID = sess.ID

	// The token is burnt on the first attempt whatever the verdict, so a
	// rejected score cannot be retried with adjusted values.
	first, err := c.ledger.Consume(ctx, sess.ID, sess.ExpiresAt)
	if err != nil {
		return Outcome{}, fmt.Errorf("consume session: %w", err)
	}
	if !first {
		return c.reject(ctx, rec, Outcome{Reason: protocol.ReasonAlreadySubmitted})
	}

	elapsed := now.Sub(sess.StartedAt)
	rec.ElapsedMs = elapsed.Milliseconds()
	v := c.validator.Check(elapsed, req.Score)
	if !v.OK {
		out := Outcome{Reason: v.Reason}
		if v.Reason == protocol.ReasonImplausibleScore {
			out.MaxPossibleScore = v.MaxPossibleScore
			rec.MaxPossibleScore = v.MaxPossibleScore
		}
		return c.reject(ctx, rec, out)
	}

	name := sanitize.Name(req.Name)
	rec.Name = name
	res, err := c.board.Submit(ctx, name, int(req.Score))
	if err != nil {
		return Outcome{}, fmt.Errorf("leaderboard submit: %w", err)
	}
	out := Outcome{
		OK:            res.Accepted,
		ID:            res.ID,
		Meta:          res.Meta,
		MinimumToBeat: res.MinimumToBeat,
	}
	rec.OK = res.Accepted
	rec.EntryID = res.ID
	if res.Accepted {
		c.scoresAccepted.Add(1)
		c.logf("accepted score=%d name=%q session=%s elapsed=%s", int(req.Score), name, sess.ID, elapsed.Round(time.Millisecond))
	} else {
		c.scoresRejected.Add(1)
	}
	c.writeAudit(rec)
	return out, nil
}

func (c *Coordinator) reject(ctx context.Context, rec Record, out Outcome) (Outcome, error) {
	meta, err := c.board.Meta(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("leaderboard meta: %w", err)
	}
	out.Meta = meta
	c.scoresRejected.Add(1)
	rec.Reason = out.Reason
	c.logf("rejected reason=%s session=%s remote=%s score=%v", out.Reason, rec.SessionID, rec.Remote, rec.Score)
	c.writeAudit(rec)
	return out, nil
}

func (c *Coordinator) writeAudit(rec Record) {
	if c.audit == nil {
		return
	}
	if err := c.audit.WriteSubmission(rec); err != nil {
		c.logf("audit write failed: %v", err)
	}
}

func (c *Coordinator) logf(format string, args ...any) {
	if c.logger != nil {
		c.logger.Printf(format, args...)
	}
}

// NoteMalformed counts a submission whose body could not be decoded.
func (c *Coordinator) NoteMalformed() { c.scoresRejected.Add(1) }

func (c *Coordinator) Metrics() Metrics {
	return Metrics{
		SessionsStarted: c.sessionsStarted.Load(),
		ScoresAccepted:  c.scoresAccepted.Load(),
		ScoresRejected:  c.scoresRejected.Load(),
	}
}

func (c *Coordinator) Board() leaderboard.Store { return c.board }
