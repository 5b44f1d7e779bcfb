package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// SQLite persists the board and the consumed-session ledger in one file.
type SQLite struct {
	db   *sql.DB
	opts Options

	// Serializes Submit and Consume so the threshold read, insert and prune
	// happen against one consistent view.
	mu sync.Mutex

	once      sync.Once
	lastPrune time.Time
}

func OpenSQLite(path string, opts Options) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLite{db: db, opts: opts.withDefaults()}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS leaderboard (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			score INTEGER NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_leaderboard_score ON leaderboard(score DESC, id ASC);`,
		`CREATE TABLE IF NOT EXISTS consumed_sessions (
			id TEXT PRIMARY KEY,
			expires_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_consumed_sessions_expires ON consumed_sessions(expires_at);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	var err error
	s.once.Do(func() {
		err = s.db.Close()
	})
	return err
}

func (s *SQLite) Submit(ctx context.Context, name string, score int) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback() }()

	limit := s.opts.Limit
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM leaderboard`).Scan(&count); err != nil {
		return Result{}, fmt.Errorf("count leaderboard: %w", err)
	}
	tenth := 0
	if count >= limit {
		if tenth, err = kthScore(ctx, tx, limit); err != nil {
			return Result{}, err
		}
	}

	accept, minimum := decide(limit, count, tenth, score)
	if !accept {
		meta, err := metaTx(ctx, tx, limit)
		if err != nil {
			return Result{}, err
		}
		return Result{MinimumToBeat: minimum, Meta: meta}, nil
	}

	createdAt := s.opts.Clock.Now().UTC().Format(time.RFC3339Nano)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO leaderboard(name,score,created_at) VALUES(?,?,?)`,
		cleanName(name), score, createdAt)
	if err != nil {
		return Result{}, fmt.Errorf("insert score: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Result{}, err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM leaderboard WHERE id NOT IN (
			SELECT id FROM leaderboard ORDER BY score DESC, id ASC LIMIT ?
		)`, limit); err != nil {
		return Result{}, fmt.Errorf("prune leaderboard: %w", err)
	}
	meta, err := metaTx(ctx, tx, limit)
	if err != nil {
		return Result{}, err
	}
	if err := tx.Commit(); err != nil {
		return Result{}, err
	}
	return Result{Accepted: true, ID: id, MinimumToBeat: minimumAfterAccept(meta), Meta: meta}, nil
}

func (s *SQLite) Top(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id,name,score,created_at FROM leaderboard ORDER BY score DESC, id ASC LIMIT ?`,
		s.opts.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e       Entry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Name, &e.Score, &created); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLite) Meta(ctx context.Context) (Meta, error) {
	return metaTx(ctx, s.db, s.opts.Limit)
}

func (s *SQLite) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM leaderboard`)
	return err
}

// Consume marks a session id as used. INSERT OR IGNORE makes the check and
// the write one statement, so exactly one caller sees firstUse for an id.
func (s *SQLite) Consume(ctx context.Context, sessionID string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.opts.Clock.Now()
	if now.Sub(s.lastPrune) > time.Minute {
		if _, err := s.db.ExecContext(ctx,
			`DELETE FROM consumed_sessions WHERE expires_at <= ?`, now.UnixMilli()); err != nil {
			return false, fmt.Errorf("prune consumed sessions: %w", err)
		}
		s.lastPrune = now
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO consumed_sessions(id,expires_at) VALUES(?,?)`,
		sessionID, expiresAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("consume session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func kthScore(ctx context.Context, q querier, k int) (int, error) {
	var score int
	err := q.QueryRowContext(ctx,
		`SELECT score FROM leaderboard ORDER BY score DESC, id ASC LIMIT 1 OFFSET ?`, k-1).Scan(&score)
	if err != nil {
		return 0, fmt.Errorf("read k-th score: %w", err)
	}
	return score, nil
}

func metaTx(ctx context.Context, q querier, limit int) (Meta, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT score FROM leaderboard ORDER BY score DESC, id ASC LIMIT ?`, limit)
	if err != nil {
		return Meta{}, err
	}
	defer rows.Close()
	scores := make([]int, 0, limit)
	for rows.Next() {
		var sc int
		if err := rows.Scan(&sc); err != nil {
			return Meta{}, err
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return Meta{}, err
	}
	return metaFor(limit, scores), nil
}
