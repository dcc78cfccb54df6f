package state

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/pebble"

	"marketmaker/internal/risk"
)

const pebbleLatchPrefix = "latch/stop_profit/"

// PebbleLatchStore keeps the latch record in an embedded pebble database.
type PebbleLatchStore struct {
	db     *pebble.DB
	symbol string
}

// NewPebbleLatchStore opens (or creates) the database at dir.
func NewPebbleLatchStore(dir, symbol string, opts *pebble.Options) (*PebbleLatchStore, error) {
	if opts == nil {
		opts = &pebble.Options{}
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, wrapStore(err, "open pebble")
	}
	return &PebbleLatchStore{db: db, symbol: symbol}, nil
}

func (s *PebbleLatchStore) key() []byte {
	return []byte(pebbleLatchPrefix + s.symbol)
}

func (s *PebbleLatchStore) Load(context.Context) (risk.Latch, error) {
	val, closer, err := s.db.Get(s.key())
	if errors.Is(err, pebble.ErrNotFound) {
		return risk.Latch{}, nil
	}
	if err != nil {
		return risk.Latch{}, wrapStore(err, "get latch")
	}
	defer closer.Close()

	var rec LatchRecord
	if err := sonic.Unmarshal(val, &rec); err != nil {
		return risk.Latch{}, wrapStore(err, "decode latch")
	}
	return risk.Latch{Set: rec.Set}, nil
}

func (s *PebbleLatchStore) Save(_ context.Context, latch risk.Latch) error {
	if !latch.Set {
		return wrapStore(s.db.Delete(s.key(), pebble.Sync), "delete latch")
	}
	data, err := sonic.Marshal(newRecord(s.symbol, latch))
	if err != nil {
		return wrapStore(err, "encode latch")
	}
	return wrapStore(s.db.Set(s.key(), data, pebble.Sync), "set latch")
}

func (s *PebbleLatchStore) Close() error {
	return s.db.Close()
}
