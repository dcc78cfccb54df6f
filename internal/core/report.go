package core

import (
	"sync/atomic"
	"time"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/internal/risk"
)

// Tick outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeIdle    = "idle"
	OutcomeHalted  = "halted"
	OutcomeBlocked = "blocked"
	OutcomeStopped = "stopped"
	OutcomeRaced   = "raced"
	OutcomeFailed  = "failed"
)

// Report describes one tick.
type Report struct {
	TraceID uint64    `json:"traceId"`
	Time    time.Time `json:"time"`
	Symbol  string    `json:"symbol"`
	Outcome string    `json:"outcome"`
	Error   string    `json:"error,omitempty"`

	BestBuy    float64 `json:"bestBuy"`
	BestSell   float64 `json:"bestSell"`
	Mid        float64 `json:"mid"`
	AnchorBuy  float64 `json:"anchorBuy"`
	AnchorSell float64 `json:"anchorSell"`

	Liquidity      string  `json:"liquidity"`
	PositionLimit  string  `json:"positionLimit"`
	Overlay        string  `json:"overlay"`
	Trend          string  `json:"trend"`
	MAShort        float64 `json:"maShort,omitempty"`
	MALong         float64 `json:"maLong,omitempty"`
	Latched        bool    `json:"latched"`
	Replans        int     `json:"replans"`
	Creates        int     `json:"creates"`
	Amends         int     `json:"amends"`
	Cancels        int     `json:"cancels"`
	DesiredBuys    int     `json:"desiredBuys"`
	DesiredSells   int     `json:"desiredSells"`
	LiveOrderCount int     `json:"liveOrders"`

	Status StatusReport `json:"status"`

	Plan model.Plan `json:"-"`
}

// StatusReport is the account view logged every tick.
type StatusReport struct {
	MarginBalanceXBt int64                `json:"marginBalanceXBt"`
	MarginBalanceXBT float64              `json:"marginBalanceXBT"`
	AvailableFunds   int64                `json:"availableFunds"`
	Position         int64                `json:"position"`
	Limits           *risk.PositionLimits `json:"limits,omitempty"`
	AvgCostPrice     float64              `json:"avgCostPrice,omitempty"`
	AvgEntryPrice    float64              `json:"avgEntryPrice,omitempty"`
	ContractsTraded  int64                `json:"contractsTraded"`
	Delta            Delta                `json:"delta"`
}

// Delta is the currency delta of the position at spot and mark prices.
type Delta struct {
	Spot  float64 `json:"spot"`
	Mark  float64 `json:"mark"`
	Basis float64 `json:"basis"`
}

// CalcDelta follows the contract kind: quanto scales by price, inverse divides by
// price and linear is price independent.
func CalcDelta(inst model.Instrument, position int64) Delta {
	qty := float64(position)
	var d Delta
	switch inst.Kind {
	case enum.InstrumentKindQuanto:
		d.Spot = qty * inst.Multiplier * inst.SettlePrice
		d.Mark = qty * inst.Multiplier * inst.MarkPrice
	case enum.InstrumentKindInverse:
		if inst.SettlePrice != 0 {
			d.Spot = inst.Multiplier / inst.SettlePrice * qty
		}
		if inst.MarkPrice != 0 {
			d.Mark = inst.Multiplier / inst.MarkPrice * qty
		}
	default:
		d.Spot = inst.Multiplier * qty
		d.Mark = inst.Multiplier * qty
	}
	d.Basis = d.Mark - d.Spot
	return d
}

// BuildStatus assembles the account view of a tick.
func BuildStatus(inst model.Instrument, margin model.Margin, pos model.Position, startQty int64, limits risk.PositionLimits) StatusReport {
	s := StatusReport{
		MarginBalanceXBt: margin.MarginBalance,
		MarginBalanceXBT: margin.MarginBalanceXBT(),
		AvailableFunds:   margin.AvailableFunds,
		Position:         pos.CurrentQty,
		ContractsTraded:  pos.CurrentQty - startQty,
		Delta:            CalcDelta(inst, pos.CurrentQty),
	}
	if limits.Enabled {
		l := limits
		s.Limits = &l
	}
	if pos.CurrentQty != 0 {
		s.AvgCostPrice = pos.AvgCostPrice
		s.AvgEntryPrice = pos.AvgEntryPrice
	}
	return s
}

// ReportBoard holds the latest report across supervisor sessions.
type ReportBoard struct {
	last atomic.Pointer[Report]
}

func NewReportBoard() *ReportBoard {
	return &ReportBoard{}
}

// Store publishes r as the latest report.
func (b *ReportBoard) Store(r Report) {
	if b == nil {
		return
	}
	b.last.Store(&r)
}

// Load returns the latest report, if any.
func (b *ReportBoard) Load() (Report, bool) {
	if b == nil {
		return Report{}, false
	}
	r := b.last.Load()
	if r == nil {
		return Report{}, false
	}
	return *r, true
}

// OnTick lets the board be registered as an observer.
func (b *ReportBoard) OnTick(r Report) {
	b.Store(r)
}
