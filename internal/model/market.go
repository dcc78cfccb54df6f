package model

import (
	"time"

	"marketmaker/internal/model/enum"
)

// XBtPerXBT converts margin balances reported in satoshis.
const XBtPerXBT = 100_000_000

// Instrument is immutable for the duration of a snapshot.
type Instrument struct {
	Symbol      string
	TickSize    float64
	TickLog     int32
	Multiplier  float64
	State       enum.InstrumentState
	Kind        enum.InstrumentKind
	MarkPrice   float64
	SettlePrice float64
}

func (i Instrument) IsOpen() bool {
	return i.State == enum.InstrumentStateOpen
}

// Ticker is refreshed every tick. A zero Mid means the book is empty.
type Ticker struct {
	BestBuy  float64
	BestSell float64
	Mid      float64
}

func (t Ticker) HasMid() bool {
	return t.Mid > 0
}

// BookQuote is one side of an order book level.
type BookQuote struct {
	Price float64
	Size  int64
}

// OrderBookLevel holds the bid and ask at the same depth index. Either side may be nil.
type OrderBookLevel struct {
	Level int
	Bid   *BookQuote
	Ask   *BookQuote
}

// Position mirrors the exchange position. CurrentQty is signed.
type Position struct {
	CurrentQty    int64
	AvgCostPrice  float64
	AvgEntryPrice float64
}

// Margin balances are in XBt.
type Margin struct {
	MarginBalance  int64
	AvailableFunds int64
}

func (m Margin) MarginBalanceXBT() float64 {
	return float64(m.MarginBalance) / XBtPerXBT
}

// Trade is a public print.
type Trade struct {
	Price float64
	Size  int64
	Side  enum.OrderSide
	Time  time.Time
}
