package risk

import (
	"github.com/yanun0323/logs"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/internal/quote"
)

// Trend is the moving average classification of the latest price.
type Trend uint8

const (
	TrendNeutral Trend = iota
	TrendBullish
	TrendBearish
)

func (t Trend) String() string {
	switch t {
	case TrendBullish:
		return "bullish"
	case TrendBearish:
		return "bearish"
	default:
		return "neutral"
	}
}

// ClassifyTrend is bearish when price < short < long and bullish when price > short > long.
func ClassifyTrend(price, maShort, maLong float64) Trend {
	switch {
	case price < maShort && maShort < maLong:
		return TrendBearish
	case price > maShort && maShort > maLong:
		return TrendBullish
	default:
		return TrendNeutral
	}
}

// Status is the overlay outcome reported for a tick.
type Status uint8

const (
	StatusNormal Status = iota
	StatusTrend
	StatusStopping
	StatusStopped
)

func (s Status) String() string {
	switch s {
	case StatusTrend:
		return "trend"
	case StatusStopping:
		return "stopping"
	case StatusStopped:
		return "stopped"
	default:
		return "normal"
	}
}

// Latch is the durable stop-profit marker. It is passed into and returned from
// every evaluation and only cleared out of band.
type Latch struct {
	Set bool
}

// OverlayConfig enables the trend override and the stop-profit latch.
type OverlayConfig struct {
	Trend      bool
	StopProfit bool
	// StopTarget is the relative profit against the average cost that trips the latch.
	StopTarget float64
	Limits     PositionLimits
}

// OverlayInput is the per-tick state the overlay decides on.
type OverlayInput struct {
	Position     int64
	AvgCostPrice float64
	LastPrice    float64

	MAShort     float64
	MALong      float64
	HasAverages bool

	Grid quote.Grid
}

// Decision is the overlay verdict. When Active, Ladder replaces the gated ladder.
type Decision struct {
	Status Status
	Trend  Trend
	Active bool
	Ladder model.Ladder
	// Hold keeps the resting orders of that side untouched while the ladder is overridden.
	Hold     enum.OrderSide
	NoAction bool
}

// Overlay applies the directional override and the stop-profit latch.
type Overlay struct {
	cfg OverlayConfig
}

func NewOverlay(cfg OverlayConfig) *Overlay {
	return &Overlay{cfg: cfg}
}

// Evaluate is pure: the returned latch is the only state that must be persisted.
func (o *Overlay) Evaluate(in OverlayInput, latch Latch) (Decision, Latch) {
	if latch.Set {
		if in.Position == 0 {
			return Decision{Status: StatusStopped, Active: true, NoAction: true}, latch
		}
		return o.closing(in), latch
	}

	if o.cfg.StopProfit && o.profitReached(in) {
		logs.Infof("stop profit reached, position %d, cost %.8g, last %.8g", in.Position, in.AvgCostPrice, in.LastPrice)
		return o.closing(in), Latch{Set: true}
	}

	if !o.cfg.Trend || !in.HasAverages {
		return Decision{Status: StatusNormal}, latch
	}

	trend := ClassifyTrend(in.LastPrice, in.MAShort, in.MALong)
	if trend == TrendNeutral {
		return Decision{Status: StatusNormal, Trend: trend}, latch
	}

	side, amount := o.directional(trend, in.Position)
	d := Decision{Status: StatusTrend, Trend: trend, Active: true}
	if amount <= 0 {
		d.Hold = side
		return d, latch
	}
	d.Ladder = single(side, in.Grid.Snap(in.LastPrice), amount)
	return d, latch
}

func (o *Overlay) profitReached(in OverlayInput) bool {
	if in.Position == 0 || in.AvgCostPrice <= 0 || in.LastPrice <= 0 {
		return false
	}
	profit := (in.LastPrice - in.AvgCostPrice) / in.AvgCostPrice
	if in.Position < 0 {
		profit = -profit
	}
	return profit >= o.cfg.StopTarget
}

// directional sizes the order that converges the position to the bound in the trend direction.
func (o *Overlay) directional(trend Trend, position int64) (enum.OrderSide, int64) {
	if trend == TrendBearish {
		return enum.OrderSideSell, position - o.cfg.Limits.Min
	}
	return enum.OrderSideBuy, o.cfg.Limits.Max - position
}

func (o *Overlay) closing(in OverlayInput) Decision {
	side := enum.OrderSideSell
	if in.Position < 0 {
		side = enum.OrderSideBuy
	}
	qty := in.Position
	if qty < 0 {
		qty = -qty
	}
	return Decision{
		Status: StatusStopping,
		Active: true,
		Ladder: single(side, in.Grid.Snap(in.LastPrice), qty),
	}
}

func single(side enum.OrderSide, price float64, qty int64) model.Ladder {
	o := model.DesiredOrder{Side: side, Price: price, Quantity: qty}
	if side == enum.OrderSideBuy {
		return model.Ladder{Buys: []model.DesiredOrder{o}}
	}
	return model.Ladder{Sells: []model.DesiredOrder{o}}
}
