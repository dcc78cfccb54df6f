package enum

import "strings"

// OrderSide buy, sell
type OrderSide uint8

const (
	_order_side_beg OrderSide = iota
	OrderSideBuy
	OrderSideSell
	_order_side_end
)

func (s OrderSide) IsAvailable() bool {
	return s > _order_side_beg && s < _order_side_end
}

func (s OrderSide) String() string {
	switch s {
	case OrderSideBuy:
		return "Buy"
	case OrderSideSell:
		return "Sell"
	default:
		return "Unknown"
	}
}

// Opposite returns the other side. Unknown sides stay unknown.
func (s OrderSide) Opposite() OrderSide {
	switch s {
	case OrderSideBuy:
		return OrderSideSell
	case OrderSideSell:
		return OrderSideBuy
	default:
		return s
	}
}

// ParseOrderSide accepts the exchange spelling ("Buy", "Sell") in any case.
func ParseOrderSide(s string) OrderSide {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "bid":
		return OrderSideBuy
	case "sell", "ask":
		return OrderSideSell
	default:
		return _order_side_beg
	}
}
