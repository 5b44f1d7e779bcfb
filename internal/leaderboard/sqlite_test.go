package leaderboard

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"binrush.ai/internal/sim/clock"
)

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.db")
	s, err := OpenSQLite(path, Options{Limit: 10})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	mustSubmit(t, s, "keeper", 40)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	var (
		name  string
		score int
	)
	if err := db.QueryRow(`SELECT name,score FROM leaderboard`).Scan(&name, &score); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	_ = db.Close()
	if name != "keeper" || score != 40 {
		t.Fatalf("row mismatch: %q %d", name, score)
	}

	s2, err := OpenSQLite(path, Options{Limit: 10})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	if top := mustTop(t, s2); len(top) != 1 || top[0].Name != "keeper" {
		t.Fatalf("top after reopen: %+v", top)
	}
}

func TestSQLite_ConsumeSession(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "scores.db"), Options{Clock: fc})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	exp := fc.Now().Add(time.Hour)

	if first, err := s.Consume(ctx, "s1", exp); err != nil || !first {
		t.Fatalf("first consume: %v %v", first, err)
	}
	if first, err := s.Consume(ctx, "s1", exp); err != nil || first {
		t.Fatalf("replay consume: %v %v", first, err)
	}

	// Clearing the board does not reopen consumed sessions.
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if first, _ := s.Consume(ctx, "s1", exp); first {
		t.Fatalf("consumed session reopened by Clear")
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := s.Consume(ctx, "race", exp); ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	if wins.Load() != 1 {
		t.Fatalf("wins=%d", wins.Load())
	}
}

func TestSQLite_ConsumePrunesExpired(t *testing.T) {
	fc := clock.NewFake(time.UnixMilli(1_700_000_000_000))
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "scores.db"), Options{Clock: fc})
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	_, _ = s.Consume(ctx, "old", fc.Now().Add(time.Second))
	fc.Advance(2 * time.Hour)
	_, _ = s.Consume(ctx, "new", fc.Now().Add(time.Hour))

	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM consumed_sessions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("consumed rows=%d want 1", n)
	}
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	if _, err := OpenSQLite("", Options{}); err == nil {
		t.Fatalf("expected error")
	}
}
