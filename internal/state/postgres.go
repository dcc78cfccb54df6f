package state

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"marketmaker/internal/risk"
	"marketmaker/pkg/conn"
	"marketmaker/pkg/exception"
)

// StopProfitLatch is the gorm model of the latch table.
type StopProfitLatch struct {
	Symbol    string `gorm:"primaryKey;size:32"`
	Set       bool   `gorm:"not null"`
	UpdatedAt time.Time
}

func (StopProfitLatch) TableName() string {
	return "stop_profit_latches"
}

// PostgresLatchStore keeps one latch row per symbol.
type PostgresLatchStore struct {
	client *conn.Client
	symbol string
}

// NewPostgresLatchStore migrates the latch table on the given client.
func NewPostgresLatchStore(ctx context.Context, client *conn.Client, symbol string) (*PostgresLatchStore, error) {
	if client == nil || client.DB() == nil {
		return nil, exception.ErrNilInstance
	}
	if err := client.DB().WithContext(ctx).AutoMigrate(&StopProfitLatch{}); err != nil {
		return nil, wrapStore(err, "migrate latch table")
	}
	return &PostgresLatchStore{client: client, symbol: symbol}, nil
}

func (s *PostgresLatchStore) Load(ctx context.Context) (risk.Latch, error) {
	var row StopProfitLatch
	err := s.client.DB().WithContext(ctx).Where("symbol = ?", s.symbol).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return risk.Latch{}, nil
	}
	if err != nil {
		return risk.Latch{}, wrapStore(err, "select latch")
	}
	return risk.Latch{Set: row.Set}, nil
}

func (s *PostgresLatchStore) Save(ctx context.Context, latch risk.Latch) error {
	row := toRow(newRecord(s.symbol, latch))
	err := s.client.DB().WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&row).Error
	return wrapStore(err, "upsert latch")
}

func (s *PostgresLatchStore) Close() error {
	return s.client.Close()
}

func toRow(rec LatchRecord) StopProfitLatch {
	return StopProfitLatch{Symbol: rec.Symbol, Set: rec.Set, UpdatedAt: rec.UpdatedAt}
}
