package main

import (
	"log"
	"time"

	"binrush.ai/internal/leaderboard"
	"binrush.ai/internal/session"
	"binrush.ai/internal/sim/clock"
)

// scoreStore is the board plus the ledger that burns session ids. The SQLite
// backend keeps both in one file so a restart cannot reopen a spent session.
type scoreStore interface {
	leaderboard.Store
	session.Ledger
}

type memoryStore struct {
	*leaderboard.Memory
	*session.MemoryLedger
}

func openScoreStore(dbPath string, disableDB bool, limit int, c clock.Clock, logger *log.Logger) (scoreStore, error) {
	opts := leaderboard.Options{Limit: limit, Clock: c}
	if disableDB {
		logger.Printf("database disabled; leaderboard is in-memory")
		return memoryStore{
			Memory:       leaderboard.NewMemory(opts),
			MemoryLedger: session.NewMemoryLedger(c, time.Minute),
		}, nil
	}
	st, err := leaderboard.OpenSQLite(dbPath, opts)
	if err != nil {
		return nil, err
	}
	logger.Printf("leaderboard db=%s limit=%d", dbPath, limit)
	return st, nil
}
