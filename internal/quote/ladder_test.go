package quote

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/pkg/exception"
)

func offsetParams() Params {
	return Params{
		Depth:     3,
		BaseSize:  100,
		SizeStep:  50,
		Interval:  0.01,
		MinSpread: 0.001,
		Mode:      ModeOffset,
	}
}

func TestBuildOffset(t *testing.T) {
	m := Market{
		Ticker:   model.Ticker{BestBuy: 100, BestSell: 110, Mid: 105},
		TickSize: 0.5,
		TickLog:  1,
	}

	ladder, anchors, err := Build(offsetParams(), m)
	require.NoError(t, err)
	assert.Equal(t, 100.5, anchors.Buy)
	assert.Equal(t, 109.5, anchors.Sell)

	require.Len(t, ladder.Buys, 3)
	require.Len(t, ladder.Sells, 3)

	wantBuys := []float64{99.5, 98.5, 97.5}
	wantSells := []float64{110.5, 111.5, 113}
	wantQty := []int64{100, 150, 200}
	for i := range 3 {
		assert.Equal(t, wantBuys[i], ladder.Buys[i].Price, "buy %d", i)
		assert.Equal(t, wantSells[i], ladder.Sells[i].Price, "sell %d", i)
		assert.Equal(t, wantQty[i], ladder.Buys[i].Quantity)
		assert.Equal(t, wantQty[i], ladder.Sells[i].Quantity)
		assert.Equal(t, enum.OrderSideBuy, ladder.Buys[i].Side)
		assert.Equal(t, enum.OrderSideSell, ladder.Sells[i].Side)
	}
}

func TestBuildPushesCollidingLevelsOutward(t *testing.T) {
	p := offsetParams()
	p.Interval = 0.0001
	m := Market{
		Ticker:   model.Ticker{BestBuy: 100, BestSell: 200, Mid: 150},
		TickSize: 1,
	}

	ladder, _, err := Build(p, m)
	require.NoError(t, err)

	assert.Equal(t, []float64{101, 100, 99}, prices(ladder.Buys))
	assert.Equal(t, []float64{199, 200, 201}, prices(ladder.Sells))
}

func TestBuildTruncatesNonPositiveBuys(t *testing.T) {
	p := offsetParams()
	p.Interval = 1
	m := Market{
		Ticker:   model.Ticker{BestBuy: 1, BestSell: 100, Mid: 50.5},
		TickSize: 1,
	}

	ladder, _, err := Build(p, m)
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, prices(ladder.Buys))
	assert.Equal(t, []float64{198, 396, 792}, prices(ladder.Sells))
}

func TestBuildMaintainSpread(t *testing.T) {
	p := Params{
		Depth:        2,
		BaseSize:     10,
		Interval:     0.01,
		MinSpread:    0.001,
		Mode:         ModeMaintainSpread,
		MinContracts: 120,
	}
	m := Market{
		Ticker: model.Ticker{BestBuy: 100, BestSell: 101, Mid: 100.5},
		Levels: []model.OrderBookLevel{
			{Level: 2, Bid: &model.BookQuote{Price: 99, Size: 500}, Ask: &model.BookQuote{Price: 102, Size: 500}},
			{Level: 0, Bid: &model.BookQuote{Price: 100, Size: 50}, Ask: &model.BookQuote{Price: 101, Size: 50}},
			{Level: 1, Bid: &model.BookQuote{Price: 99.5, Size: 100}, Ask: &model.BookQuote{Price: 101.5, Size: 100}},
		},
		TickSize:      0.5,
		TickLog:       1,
		OwnBestBuyQty: 20,
	}

	ladder, anchors, err := Build(p, m)
	require.NoError(t, err)
	assert.Equal(t, 99.5, anchors.Buy)
	assert.Equal(t, 101.5, anchors.Sell)
	assert.Equal(t, []float64{99.5, 98.5}, prices(ladder.Buys))
	assert.Equal(t, []float64{101.5, 102.5}, prices(ladder.Sells))
}

func TestBuildMaintainSpreadNoAnchor(t *testing.T) {
	p := Params{Depth: 2, Mode: ModeMaintainSpread, MinContracts: 10_000}
	m := Market{
		Ticker: model.Ticker{BestBuy: 100, BestSell: 101, Mid: 100.5},
		Levels: []model.OrderBookLevel{
			{Level: 0, Bid: &model.BookQuote{Price: 100, Size: 50}, Ask: &model.BookQuote{Price: 101, Size: 50}},
		},
		TickSize: 0.5,
		TickLog:  1,
	}

	_, _, err := Build(p, m)
	assert.ErrorIs(t, err, exception.ErrNoAnchor)
}

func TestBuildInvalidTick(t *testing.T) {
	_, _, err := Build(offsetParams(), Market{Ticker: model.Ticker{BestBuy: 1, BestSell: 2}})
	assert.ErrorIs(t, err, exception.ErrInvalidTick)
}

func TestBuildTruncatesNonPositiveQuantities(t *testing.T) {
	p := offsetParams()
	p.BaseSize, p.SizeStep = 10, -10
	m := Market{
		Ticker:   model.Ticker{BestBuy: 100, BestSell: 110, Mid: 105},
		TickSize: 0.5,
		TickLog:  1,
	}

	ladder, _, err := Build(p, m)
	require.NoError(t, err)
	require.Len(t, ladder.Buys, 1)
	require.Len(t, ladder.Sells, 1)
	assert.Equal(t, int64(10), ladder.Buys[0].Quantity)
	assert.Equal(t, int64(10), ladder.Sells[0].Quantity)
}

func TestBuildNonPositiveDepth(t *testing.T) {
	m := Market{
		Ticker:   model.Ticker{BestBuy: 100, BestSell: 110, Mid: 105},
		TickSize: 0.5,
		TickLog:  1,
	}
	testCases := []struct {
		desc  string
		depth int
	}{
		{desc: "zero", depth: 0},
		{desc: "negative", depth: -1},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			p := offsetParams()
			p.Depth = tc.depth

			var (
				ladder model.Ladder
				err    error
			)
			require.NotPanics(t, func() { ladder, _, err = Build(p, m) })
			require.NoError(t, err)
			assert.True(t, ladder.IsEmpty())
		})
	}
}

func TestComputeAnchorsWidensNarrowSpread(t *testing.T) {
	p := offsetParams()
	p.MinSpread = 0.01
	m := Market{
		Ticker:   model.Ticker{BestBuy: 100, BestSell: 100.5, Mid: 100.25},
		TickSize: 0.5,
		TickLog:  1,
	}

	a, err := ComputeAnchors(p, m)
	require.NoError(t, err)
	assert.InDelta(t, 99.9975, a.Buy, 1e-9)
	assert.InDelta(t, 100.5, a.Sell, 1e-9)
	assert.Equal(t, 100.25, a.Mid)
}

func TestBuildRandomSize(t *testing.T) {
	p := offsetParams()
	p.Depth = 20
	p.RandomSize = true
	p.MinOrderSize = 10
	p.MaxOrderSize = 30
	p.Rand = rand.New(rand.NewPCG(1, 2))
	m := Market{
		Ticker:   model.Ticker{BestBuy: 1000, BestSell: 1100, Mid: 1050},
		TickSize: 0.5,
		TickLog:  1,
	}

	ladder, _, err := Build(p, m)
	require.NoError(t, err)
	for _, o := range append(ladder.Buys, ladder.Sells...) {
		assert.GreaterOrEqual(t, o.Quantity, int64(10))
		assert.LessOrEqual(t, o.Quantity, int64(30))
	}
}

func TestBuildLaddersAreMonotonicAndOnGrid(t *testing.T) {
	testCases := []struct {
		desc     string
		tick     float64
		tickLog  int32
		interval float64
		bestBuy  float64
		bestSell float64
	}{
		{desc: "xbt half dollar", tick: 0.5, tickLog: 1, interval: 0.005, bestBuy: 6500, bestSell: 6500.5},
		{desc: "alt small tick", tick: 0.00000001, tickLog: 8, interval: 0.002, bestBuy: 0.0000312, bestSell: 0.0000318},
		{desc: "eth nickel", tick: 0.05, tickLog: 2, interval: 0.001, bestBuy: 200.05, bestSell: 200.5},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			p := offsetParams()
			p.Depth = 10
			p.Interval = tc.interval
			m := Market{
				Ticker:   model.Ticker{BestBuy: tc.bestBuy, BestSell: tc.bestSell, Mid: (tc.bestBuy + tc.bestSell) / 2},
				TickSize: tc.tick,
				TickLog:  tc.tickLog,
			}
			grid, err := NewGrid(tc.tick, tc.tickLog)
			require.NoError(t, err)

			ladder, _, err := Build(p, m)
			require.NoError(t, err)
			require.NotEmpty(t, ladder.Buys)
			require.NotEmpty(t, ladder.Sells)

			for i, o := range ladder.Buys {
				assert.True(t, grid.OnGrid(o.Price), "buy %d off grid: %v", i, o.Price)
				if i > 0 {
					assert.Less(t, o.Price, ladder.Buys[i-1].Price)
				}
			}
			for i, o := range ladder.Sells {
				assert.True(t, grid.OnGrid(o.Price), "sell %d off grid: %v", i, o.Price)
				if i > 0 {
					assert.Greater(t, o.Price, ladder.Sells[i-1].Price)
				}
			}
		})
	}
}

func TestCheckSanity(t *testing.T) {
	ticker := model.Ticker{BestBuy: 100, BestSell: 101}

	ok := model.Ladder{
		Buys:  []model.DesiredOrder{{Side: enum.OrderSideBuy, Price: 100.5}},
		Sells: []model.DesiredOrder{{Side: enum.OrderSideSell, Price: 100.5}},
	}
	assert.NoError(t, CheckSanity(ok, ticker))

	crossedBuy := model.Ladder{Buys: []model.DesiredOrder{{Side: enum.OrderSideBuy, Price: 101}}}
	assert.ErrorIs(t, CheckSanity(crossedBuy, ticker), exception.ErrSanityCheck)

	crossedSell := model.Ladder{Sells: []model.DesiredOrder{{Side: enum.OrderSideSell, Price: 100}}}
	assert.ErrorIs(t, CheckSanity(crossedSell, ticker), exception.ErrSanityCheck)

	assert.NoError(t, CheckSanity(model.Ladder{}, ticker))
}

func TestGridSnap(t *testing.T) {
	g, err := NewGrid(0.5, 1)
	require.NoError(t, err)
	assert.Equal(t, 100.5, g.Snap(100.74))
	assert.Equal(t, 101.0, g.Snap(100.76))
	assert.True(t, g.OnGrid(100.5))
	assert.False(t, g.OnGrid(100.3))

	_, err = NewGrid(0, 1)
	assert.ErrorIs(t, err, exception.ErrInvalidTick)
}

func prices(orders []model.DesiredOrder) []float64 {
	out := make([]float64, 0, len(orders))
	for _, o := range orders {
		out = append(out, o.Price)
	}
	return out
}
