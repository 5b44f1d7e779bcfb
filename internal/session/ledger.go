package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"binrush.ai/internal/sim/clock"
)

// Ledger records consumed session ids. Consume is atomic: of several
// concurrent calls for the same id exactly one reports firstUse=true.
type Ledger interface {
	Consume(ctx context.Context, sessionID string, expiresAt time.Time) (firstUse bool, err error)
}

const memoryLedgerHardCap = 1 << 16

var errLedgerFull = errors.New("session ledger is full")

// MemoryLedger keeps consumed ids until their session would have expired
// anyway. An expired token cannot verify, so forgetting it is safe.
type MemoryLedger struct {
	mu        sync.Mutex
	seen      map[string]int64
	clock     clock.Clock
	lastPrune int64
	pruneGap  time.Duration
}

func NewMemoryLedger(c clock.Clock, pruneGap time.Duration) *MemoryLedger {
	if c == nil {
		c = clock.Real{}
	}
	if pruneGap <= 0 {
		pruneGap = time.Minute
	}
	return &MemoryLedger{
		seen:     map[string]int64{},
		clock:    c,
		pruneGap: pruneGap,
	}
}

func (l *MemoryLedger) Consume(_ context.Context, sessionID string, expiresAt time.Time) (bool, error) {
	nowMS := l.clock.Now().UnixMilli()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.shouldPruneLocked(nowMS) {
		l.pruneLocked(nowMS)
	}
	if _, ok := l.seen[sessionID]; ok {
		return false, nil
	}
	if len(l.seen) >= memoryLedgerHardCap {
		// Dropping live ids would reopen them for replay; refuse instead.
		l.pruneLocked(nowMS)
		if len(l.seen) >= memoryLedgerHardCap {
			return false, errLedgerFull
		}
	}
	l.seen[sessionID] = expiresAt.UnixMilli()
	return true, nil
}

func (l *MemoryLedger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}

func (l *MemoryLedger) shouldPruneLocked(nowMS int64) bool {
	if len(l.seen) == 0 {
		return false
	}
	if len(l.seen) > 4096 {
		return true
	}
	return nowMS-l.lastPrune > l.pruneGap.Milliseconds()
}

func (l *MemoryLedger) pruneLocked(nowMS int64) {
	for k, exp := range l.seen {
		if exp <= nowMS {
			delete(l.seen, k)
		}
	}
	l.lastPrune = nowMS
}
