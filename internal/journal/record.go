package journal

import (
	"time"

	"marketmaker/internal/core"
	"marketmaker/internal/model"
)

// Record is the journaled form of one tick.
type Record struct {
	TraceID       uint64    `json:"traceId"`
	Time          time.Time `json:"time"`
	Symbol        string    `json:"symbol"`
	Outcome       string    `json:"outcome"`
	Error         string    `json:"error,omitempty"`
	Mid           float64   `json:"mid"`
	Liquidity     string    `json:"liquidity"`
	PositionLimit string    `json:"positionLimit"`
	Overlay       string    `json:"overlay"`
	Trend         string    `json:"trend"`
	Latched       bool      `json:"latched"`
	Replans       int       `json:"replans"`
	Position      int64     `json:"position"`
	Creates       []Order   `json:"creates,omitempty"`
	Amends        []Amend   `json:"amends,omitempty"`
	Cancels       []Order   `json:"cancels,omitempty"`
}

type Order struct {
	OrderID string  `json:"orderId,omitempty"`
	Side    string  `json:"side"`
	Price   float64 `json:"price"`
	Qty     int64   `json:"qty"`
}

type Amend struct {
	OrderID   string  `json:"orderId"`
	Side      string  `json:"side"`
	Price     float64 `json:"price"`
	Qty       int64   `json:"qty"`
	PrevPrice float64 `json:"prevPrice"`
	PrevQty   int64   `json:"prevQty"`
}

// NewRecord copies the plan out of the report so the record owns its slices.
func NewRecord(r core.Report) Record {
	rec := Record{
		TraceID:       r.TraceID,
		Time:          r.Time,
		Symbol:        r.Symbol,
		Outcome:       r.Outcome,
		Error:         r.Error,
		Mid:           r.Mid,
		Liquidity:     r.Liquidity,
		PositionLimit: r.PositionLimit,
		Overlay:       r.Overlay,
		Trend:         r.Trend,
		Latched:       r.Latched,
		Replans:       r.Replans,
		Position:      r.Status.Position,
	}
	for _, o := range r.Plan.ToCreate {
		rec.Creates = append(rec.Creates, Order{Side: o.Side.String(), Price: o.Price, Qty: o.Quantity})
	}
	for _, a := range r.Plan.ToAmend {
		rec.Amends = append(rec.Amends, Amend{
			OrderID:   a.OrderID,
			Side:      a.Side.String(),
			Price:     a.Price,
			Qty:       a.Quantity,
			PrevPrice: a.PrevPrice,
			PrevQty:   a.PrevQty,
		})
	}
	for _, o := range r.Plan.ToCancel {
		rec.Cancels = append(rec.Cancels, liveOrder(o))
	}
	return rec
}

func liveOrder(o model.LiveOrder) Order {
	return Order{OrderID: o.OrderID, Side: o.Side.String(), Price: o.Price, Qty: o.LeavesQty}
}
