package quote

import (
	"math"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/pkg/exception"
)

// Mode selects how the ladder anchors are derived.
type Mode uint8

const (
	// ModeOffset anchors one tick inside the best bid and ask.
	ModeOffset Mode = iota
	// ModeMaintainSpread anchors at the first level whose cumulative depth,
	// excluding our own best order, exceeds MinContracts.
	ModeMaintainSpread
)

func (m Mode) String() string {
	if m == ModeMaintainSpread {
		return "maintain-spread"
	}
	return "offset"
}

// Params configures the ladder shape.
type Params struct {
	Depth        int
	BaseSize     int64
	SizeStep     int64
	Interval     float64
	MinSpread    float64
	Mode         Mode
	MinContracts int64

	RandomSize   bool
	MinOrderSize int64
	MaxOrderSize int64
	// Rand is used for randomized sizing. The package source is used when nil.
	Rand *rand.Rand
}

// Market is the per-tick input of the builder.
type Market struct {
	Ticker         model.Ticker
	Levels         []model.OrderBookLevel
	TickSize       float64
	TickLog        int32
	OwnBestBuyQty  int64
	OwnBestSellQty int64
}

// Anchors are the innermost prices the ladder grows from.
type Anchors struct {
	Buy  float64
	Sell float64
	Mid  float64
}

// ComputeAnchors derives the buy and sell anchors and applies the minimum spread.
func ComputeAnchors(p Params, m Market) (Anchors, error) {
	if m.TickSize <= 0 {
		return Anchors{}, exception.ErrInvalidTick
	}

	var a Anchors
	switch p.Mode {
	case ModeMaintainSpread:
		buy, ok := walkDepth(m.Levels, enum.OrderSideBuy, m.OwnBestBuyQty, p.MinContracts)
		if !ok {
			return Anchors{}, exception.ErrNoAnchor
		}
		sell, ok := walkDepth(m.Levels, enum.OrderSideSell, m.OwnBestSellQty, p.MinContracts)
		if !ok {
			return Anchors{}, exception.ErrNoAnchor
		}
		a.Buy, a.Sell = buy, sell
	default:
		a.Buy = m.Ticker.BestBuy + m.TickSize
		a.Sell = m.Ticker.BestSell - m.TickSize
	}

	if a.Buy*(1+p.MinSpread) > a.Sell {
		a.Buy *= 1 - p.MinSpread/2
		a.Sell *= 1 + p.MinSpread/2
	}
	a.Mid = m.Ticker.Mid
	return a, nil
}

// Build returns the desired ladder, innermost level first on both sides.
func Build(p Params, m Market) (model.Ladder, Anchors, error) {
	grid, err := NewGrid(m.TickSize, m.TickLog)
	if err != nil {
		return model.Ladder{}, Anchors{}, err
	}
	anchors, err := ComputeAnchors(p, m)
	if err != nil {
		return model.Ladder{}, Anchors{}, err
	}
	if p.Depth <= 0 {
		return model.Ladder{}, anchors, nil
	}

	ladder := model.Ladder{
		Buys:  make([]model.DesiredOrder, 0, p.Depth),
		Sells: make([]model.DesiredOrder, 0, p.Depth),
	}

	var prevBuy, prevSell decimal.Decimal
	for i := 1; i <= p.Depth; i++ {
		buy := grid.snap(decimal.NewFromFloat(levelPrice(p, anchors, enum.OrderSideBuy, i)))
		if i > 1 && buy.GreaterThanOrEqual(prevBuy) {
			buy = grid.stepDown(prevBuy)
		}
		qty := p.quantity(i)
		if !buy.IsPositive() || qty <= 0 {
			break
		}
		prevBuy = buy
		ladder.Buys = append(ladder.Buys, desired(enum.OrderSideBuy, buy, qty))
	}

	for i := 1; i <= p.Depth; i++ {
		sell := grid.snap(decimal.NewFromFloat(levelPrice(p, anchors, enum.OrderSideSell, i)))
		if i > 1 && sell.LessThanOrEqual(prevSell) {
			sell = grid.stepUp(prevSell)
		}
		qty := p.quantity(i)
		if qty <= 0 {
			break
		}
		prevSell = sell
		ladder.Sells = append(ladder.Sells, desired(enum.OrderSideSell, sell, qty))
	}

	return ladder, anchors, nil
}

// levelPrice is the unsnapped price of level i (1-based) on one side.
func levelPrice(p Params, a Anchors, side enum.OrderSide, i int) float64 {
	exp := float64(i)
	if p.Mode == ModeMaintainSpread {
		// first level sits on the anchor itself
		exp = float64(i - 1)
	}
	if side == enum.OrderSideBuy {
		return a.Buy * math.Pow(1+p.Interval, -exp)
	}
	price := a.Sell * math.Pow(1+p.Interval, exp)
	if p.Mode == ModeOffset && price < a.Buy {
		price = a.Buy
	}
	return price
}

func (p Params) quantity(i int) int64 {
	if p.RandomSize {
		span := p.MaxOrderSize - p.MinOrderSize + 1
		if span <= 1 {
			return p.MinOrderSize
		}
		if p.Rand != nil {
			return p.MinOrderSize + p.Rand.Int64N(span)
		}
		return p.MinOrderSize + rand.Int64N(span)
	}
	return p.BaseSize + p.SizeStep*int64(i-1)
}

func desired(side enum.OrderSide, price decimal.Decimal, qty int64) model.DesiredOrder {
	f, _ := price.Float64()
	return model.DesiredOrder{Side: side, Price: f, Quantity: qty}
}

// walkDepth returns the price of the first level whose cumulative size, minus
// our own resting best quantity, exceeds minContracts.
func walkDepth(levels []model.OrderBookLevel, side enum.OrderSide, own, minContracts int64) (float64, bool) {
	var cum int64
	for _, lv := range SortLevels(levels) {
		q := lv.Bid
		if side == enum.OrderSideSell {
			q = lv.Ask
		}
		if q == nil {
			continue
		}
		cum += q.Size
		if cum-own > minContracts {
			return q.Price, true
		}
	}
	return 0, false
}
