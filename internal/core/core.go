/*
Core implements the quote convergence loop.

# Module
  - engine: one tick snapshots the market, builds the ladder, runs the gates and
    the risk overlay, reconciles against live orders and submits the plan
  - report: per tick status (margin, position, delta, plan counts) shared with the admin surface
  - supervisor: restarts a fresh session when the market stream drops

# Source
 1. market snapshots from a MarketSnapshotProvider (paper venue fed by the public stream)
 2. trend averages from a TrendSignalSource
 3. the durable stop-profit latch from a LatchStore

# Produce
  - create / amend / cancel batches through the order gateway
  - tick reports to observers (plan journal)

# Sharded
  - symbol
*/
package core

import (
	"context"

	"marketmaker/internal/model"
	"marketmaker/internal/risk"
)

// MarketSnapshotProvider supplies the per tick market view.
type MarketSnapshotProvider interface {
	Instrument(ctx context.Context, symbol string) (model.Instrument, error)
	Ticker(ctx context.Context, symbol string) (model.Ticker, error)
	OrderBook(ctx context.Context, symbol string) ([]model.OrderBookLevel, error)
	Position(ctx context.Context, symbol string) (model.Position, error)
	Margin(ctx context.Context) (model.Margin, error)
	OpenOrders(ctx context.Context, symbol string) ([]model.LiveOrder, error)
	LastTrade(ctx context.Context, symbol string) (model.Trade, error)
	StreamConnected() bool
}

// TrendSignalSource turns trades into the short and long moving averages.
type TrendSignalSource interface {
	Observe(tr model.Trade)
	Averages(latest float64) (short, long float64, ok bool)
}

// LatchStore reads and writes the durable stop-profit latch.
type LatchStore interface {
	Load(ctx context.Context) (risk.Latch, error)
	Save(ctx context.Context, latch risk.Latch) error
}

// Observer receives every tick report. It must not block.
type Observer interface {
	OnTick(r Report)
}
