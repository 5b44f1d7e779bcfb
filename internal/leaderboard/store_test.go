package leaderboard

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"binrush.ai/internal/sim/clock"
)

func forEachStore(t *testing.T, limit int, fn func(t *testing.T, s Store)) {
	t.Helper()
	t.Run("memory", func(t *testing.T) {
		s := NewMemory(Options{Limit: limit, Clock: clock.NewFake(time.UnixMilli(1_700_000_000_000))})
		defer s.Close()
		fn(t, s)
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "scores.db"),
			Options{Limit: limit, Clock: clock.NewFake(time.UnixMilli(1_700_000_000_000))})
		if err != nil {
			t.Fatalf("OpenSQLite: %v", err)
		}
		defer s.Close()
		fn(t, s)
	})
}

func mustSubmit(t *testing.T, s Store, name string, score int) Result {
	t.Helper()
	res, err := s.Submit(context.Background(), name, score)
	if err != nil {
		t.Fatalf("Submit(%q,%d): %v", name, score, err)
	}
	return res
}

func mustTop(t *testing.T, s Store) []Entry {
	t.Helper()
	top, err := s.Top(context.Background())
	if err != nil {
		t.Fatalf("Top: %v", err)
	}
	return top
}

func TestSubmit_RanksByScoreThenInsertion(t *testing.T) {
	forEachStore(t, 10, func(t *testing.T, s Store) {
		mustSubmit(t, s, "a", 30)
		mustSubmit(t, s, "b", 50)
		mustSubmit(t, s, "c", 30)
		mustSubmit(t, s, "d", 10)

		top := mustTop(t, s)
		var got []string
		for _, e := range top {
			got = append(got, e.Name)
		}
		if strings.Join(got, ",") != "b,a,c,d" {
			t.Fatalf("order=%v", got)
		}
		m, _ := s.Meta(context.Background())
		if m.Limit != 10 || m.Tenth != nil {
			t.Fatalf("meta=%+v", m)
		}
	})
}

func TestSubmit_FullBoardThreshold(t *testing.T) {
	forEachStore(t, 3, func(t *testing.T, s Store) {
		mustSubmit(t, s, "a", 100)
		mustSubmit(t, s, "b", 80)
		res := mustSubmit(t, s, "c", 60)
		if !res.Accepted || res.Meta.Tenth == nil || *res.Meta.Tenth != 60 || res.MinimumToBeat != 61 {
			t.Fatalf("filling accept: %+v", res)
		}

		// Equal to the K-th score is not enough.
		res = mustSubmit(t, s, "tie", 60)
		if res.Accepted || res.MinimumToBeat != 61 {
			t.Fatalf("tie should be rejected with minimum 61: %+v", res)
		}
		if top := mustTop(t, s); len(top) != 3 || top[2].Name != "c" {
			t.Fatalf("rejected submit mutated the board: %+v", top)
		}

		res = mustSubmit(t, s, "d", 90)
		if !res.Accepted || res.ID == 0 {
			t.Fatalf("expected accept: %+v", res)
		}
		if *res.Meta.Tenth != 80 || res.MinimumToBeat != 81 {
			t.Fatalf("meta after accept: %+v", res)
		}
		top := mustTop(t, s)
		if len(top) != 3 || top[0].Score != 100 || top[1].Name != "d" || top[2].Name != "b" {
			t.Fatalf("top after prune: %+v", top)
		}
	})
}

func TestSubmit_NonPositiveNeverRanked(t *testing.T) {
	forEachStore(t, 10, func(t *testing.T, s Store) {
		for _, sc := range []int{0, -5} {
			res := mustSubmit(t, s, "zero", sc)
			if res.Accepted || res.MinimumToBeat != 1 {
				t.Fatalf("score %d: %+v", sc, res)
			}
		}
		if top := mustTop(t, s); len(top) != 0 {
			t.Fatalf("top=%+v", top)
		}
	})
}

func TestSubmit_TruncatesName(t *testing.T) {
	forEachStore(t, 10, func(t *testing.T, s Store) {
		long := strings.Repeat("é", 40)
		mustSubmit(t, s, long, 10)
		top := mustTop(t, s)
		if n := len([]rune(top[0].Name)); n != 24 {
			t.Fatalf("name runes=%d", n)
		}
		if top[0].CreatedAt.UnixMilli() != 1_700_000_000_000 {
			t.Fatalf("created_at=%v", top[0].CreatedAt)
		}
	})
}

func TestClear(t *testing.T) {
	forEachStore(t, 10, func(t *testing.T, s Store) {
		mustSubmit(t, s, "a", 10)
		if err := s.Clear(context.Background()); err != nil {
			t.Fatalf("Clear: %v", err)
		}
		if top := mustTop(t, s); len(top) != 0 {
			t.Fatalf("top after clear: %+v", top)
		}
		if res := mustSubmit(t, s, "b", 5); !res.Accepted {
			t.Fatalf("submit after clear: %+v", res)
		}
	})
}

func TestSubmit_ConcurrentKeepsInvariant(t *testing.T) {
	forEachStore(t, 10, func(t *testing.T, s Store) {
		var wg sync.WaitGroup
		for i := 1; i <= 60; i++ {
			wg.Add(1)
			go func(score int) {
				defer wg.Done()
				if _, err := s.Submit(context.Background(), "p", score); err != nil {
					t.Errorf("Submit: %v", err)
				}
			}(i * 10)
		}
		wg.Wait()

		top := mustTop(t, s)
		if len(top) != 10 {
			t.Fatalf("len=%d", len(top))
		}
		if !sort.SliceIsSorted(top, func(i, j int) bool { return top[i].Score > top[j].Score }) {
			t.Fatalf("not sorted: %+v", top)
		}
		// Whatever the interleaving, the ten highest scores survive.
		for i, e := range top {
			if want := (60 - i) * 10; e.Score != want {
				t.Fatalf("rank %d score=%d want %d", i, e.Score, want)
			}
		}
	})
}
