package quote

import (
	"github.com/shopspring/decimal"

	"marketmaker/pkg/exception"
)

// Grid snaps prices onto an instrument's tick grid.
type Grid struct {
	tick decimal.Decimal
	log  int32
}

// NewGrid builds a grid from the instrument tick size and its decimal precision.
func NewGrid(tickSize float64, tickLog int32) (Grid, error) {
	if tickSize <= 0 {
		return Grid{}, exception.ErrInvalidTick
	}
	if tickLog < 0 {
		tickLog = 0
	}
	return Grid{tick: decimal.NewFromFloat(tickSize), log: tickLog}, nil
}

// Tick returns the tick size.
func (g Grid) Tick() float64 {
	f, _ := g.tick.Float64()
	return f
}

// Log returns the decimal precision of the grid.
func (g Grid) Log() int32 {
	return g.log
}

// Snap rounds price to tickLog decimals and then to the nearest tick.
func (g Grid) Snap(price float64) float64 {
	f, _ := g.snap(decimal.NewFromFloat(price)).Float64()
	return f
}

// OnGrid reports whether price is an exact multiple of the tick.
func (g Grid) OnGrid(price float64) bool {
	if g.tick.IsZero() {
		return false
	}
	return decimal.NewFromFloat(price).Mod(g.tick).IsZero()
}

func (g Grid) snap(price decimal.Decimal) decimal.Decimal {
	rounded := price.Round(g.log)
	return rounded.Div(g.tick).Round(0).Mul(g.tick).Round(g.log)
}

func (g Grid) stepDown(price decimal.Decimal) decimal.Decimal {
	return price.Sub(g.tick).Round(g.log)
}

func (g Grid) stepUp(price decimal.Decimal) decimal.Decimal {
	return price.Add(g.tick).Round(g.log)
}
