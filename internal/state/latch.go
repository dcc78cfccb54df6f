package state

import (
	"context"
	"sync"
	"time"

	"marketmaker/internal/risk"
)

// LatchStore persists the stop-profit latch of one symbol.
type LatchStore interface {
	Load(ctx context.Context) (risk.Latch, error)
	Save(ctx context.Context, latch risk.Latch) error
	Close() error
}

// LatchRecord is the persisted form of the latch.
type LatchRecord struct {
	Symbol    string    `json:"symbol"`
	Set       bool      `json:"set"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newRecord(symbol string, latch risk.Latch) LatchRecord {
	return LatchRecord{Symbol: symbol, Set: latch.Set, UpdatedAt: time.Now().UTC()}
}

// MemoryLatchStore keeps the latch in process memory. It survives supervisor
// restarts but not process restarts.
type MemoryLatchStore struct {
	mu    sync.Mutex
	latch risk.Latch
}

func NewMemoryLatchStore() *MemoryLatchStore {
	return &MemoryLatchStore{}
}

func (s *MemoryLatchStore) Load(context.Context) (risk.Latch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latch, nil
}

func (s *MemoryLatchStore) Save(_ context.Context, latch risk.Latch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latch = latch
	return nil
}

func (s *MemoryLatchStore) Close() error {
	return nil
}
