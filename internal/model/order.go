package model

import "marketmaker/internal/model/enum"

// DesiredOrder is rebuilt every tick.
type DesiredOrder struct {
	Side     enum.OrderSide
	Price    float64
	Quantity int64
}

// LiveOrder is a resting order owned by the exchange.
type LiveOrder struct {
	OrderID   string
	Side      enum.OrderSide
	Price     float64
	LeavesQty int64
}

// Amend moves a resting order to a new price and quantity. PrevPrice and PrevQty
// describe the order being replaced.
type Amend struct {
	OrderID   string
	Side      enum.OrderSide
	Price     float64
	Quantity  int64
	PrevPrice float64
	PrevQty   int64
}

// Ladder is the desired two-sided quote, innermost level first on each side.
type Ladder struct {
	Buys  []DesiredOrder
	Sells []DesiredOrder
}

func (l Ladder) IsEmpty() bool {
	return len(l.Buys) == 0 && len(l.Sells) == 0
}

// Side returns the desired orders of one side.
func (l Ladder) Side(side enum.OrderSide) []DesiredOrder {
	if side == enum.OrderSideBuy {
		return l.Buys
	}
	return l.Sells
}

// Plan is the outcome of one reconciliation. It is never persisted.
type Plan struct {
	ToCreate []DesiredOrder
	ToAmend  []Amend
	ToCancel []LiveOrder
}

func (p Plan) IsEmpty() bool {
	return len(p.ToCreate) == 0 && len(p.ToAmend) == 0 && len(p.ToCancel) == 0
}

// CancelIDs returns the order ids scheduled for cancellation.
func (p Plan) CancelIDs() []string {
	ids := make([]string, 0, len(p.ToCancel))
	for _, o := range p.ToCancel {
		ids = append(ids, o.OrderID)
	}
	return ids
}

// SplitBySide partitions live orders, preserving their relative order.
func SplitBySide(orders []LiveOrder) (buys, sells []LiveOrder) {
	for _, o := range orders {
		switch o.Side {
		case enum.OrderSideBuy:
			buys = append(buys, o)
		case enum.OrderSideSell:
			sells = append(sells, o)
		}
	}
	return buys, sells
}

// BestOwnQuantities returns the resting quantity of the highest own buy and the
// lowest own sell. Missing sides report zero.
func BestOwnQuantities(orders []LiveOrder) (bestBuyQty, bestSellQty int64) {
	var (
		bestBuy, bestSell float64
		haveBuy, haveSell bool
	)
	for _, o := range orders {
		switch o.Side {
		case enum.OrderSideBuy:
			if !haveBuy || o.Price > bestBuy {
				bestBuy, bestBuyQty, haveBuy = o.Price, o.LeavesQty, true
			}
		case enum.OrderSideSell:
			if !haveSell || o.Price < bestSell {
				bestSell, bestSellQty, haveSell = o.Price, o.LeavesQty, true
			}
		}
	}
	return bestBuyQty, bestSellQty
}
