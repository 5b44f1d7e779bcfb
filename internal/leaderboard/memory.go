package leaderboard

import (
	"context"
	"sort"
	"sync"
)

// Memory is a process-local Store used by tests and by servers started
// without a database.
type Memory struct {
	mu      sync.Mutex
	opts    Options
	entries []Entry
	nextID  int64
}

func NewMemory(opts Options) *Memory {
	return &Memory{opts: opts.withDefaults(), nextID: 1}
}

func (m *Memory) Submit(_ context.Context, name string, score int) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	limit := m.opts.Limit
	tenth := 0
	if len(m.entries) >= limit {
		tenth = m.entries[limit-1].Score
	}
	accept, minimum := decide(limit, len(m.entries), tenth, score)
	if !accept {
		return Result{MinimumToBeat: minimum, Meta: m.metaLocked()}, nil
	}

	e := Entry{
		ID:        m.nextID,
		Name:      cleanName(name),
		Score:     score,
		CreatedAt: m.opts.Clock.Now().UTC(),
	}
	m.nextID++
	m.entries = append(m.entries, e)
	sort.SliceStable(m.entries, func(i, j int) bool {
		if m.entries[i].Score != m.entries[j].Score {
			return m.entries[i].Score > m.entries[j].Score
		}
		return m.entries[i].ID < m.entries[j].ID
	})
	if len(m.entries) > limit {
		m.entries = m.entries[:limit]
	}
	meta := m.metaLocked()
	return Result{Accepted: true, ID: e.ID, MinimumToBeat: minimumAfterAccept(meta), Meta: meta}, nil
}

func (m *Memory) Top(context.Context) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...), nil
}

func (m *Memory) Meta(context.Context) (Meta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metaLocked(), nil
}

func (m *Memory) Clear(context.Context) error {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }

func (m *Memory) metaLocked() Meta {
	scores := make([]int, len(m.entries))
	for i, e := range m.entries {
		scores[i] = e.Score
	}
	return metaFor(m.opts.Limit, scores)
}
