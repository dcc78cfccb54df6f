/*
Paper implements an in-process venue for dry runs.

It serves market snapshots fed by the public stream (or set directly in tests),
accepts order batches through the execution client contract, and fills resting
orders that the ticker crosses. Faults can be injected through a chaos engine.
*/
package paper

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/yanun0323/logs"

	"marketmaker/internal/chaos"
	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/internal/og"
	"marketmaker/internal/state"
)

const (
	msgInvalidOrdStatus = "Invalid ordStatus"
	msgLiquidationPrice = "Order price would be past your liquidation price"
	msgOverloaded       = "The system is currently overloaded. Please try again later."
	msgInvalidQty       = "Invalid orderQty"
)

// Config seeds the venue.
type Config struct {
	Instrument model.Instrument
	Position   model.Position
	Margin     model.Margin
	Chaos      *chaos.Engine
}

// Venue is safe for concurrent use by the stream and the control loop.
type Venue struct {
	mu        sync.Mutex
	inst      model.Instrument
	ticker    model.Ticker
	book      []model.OrderBookLevel
	lastTrade model.Trade
	margin    model.Margin
	orders    *og.StateMachine

	positions *state.PositionBook
	chaos     *chaos.Engine
	connected atomic.Bool
	fills     atomic.Int64
}

// NewVenue creates a connected venue with no market data.
func NewVenue(cfg Config) *Venue {
	v := &Venue{
		inst:      cfg.Instrument,
		margin:    cfg.Margin,
		orders:    og.NewStateMachine(),
		positions: state.NewPositionBook(cfg.Position),
		chaos:     cfg.Chaos,
	}
	v.connected.Store(true)
	return v
}

/*
	Market data
*/

func (v *Venue) Instrument(_ context.Context, _ string) (model.Instrument, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.inst, nil
}

func (v *Venue) Ticker(_ context.Context, _ string) (model.Ticker, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.ticker, nil
}

func (v *Venue) OrderBook(_ context.Context, _ string) ([]model.OrderBookLevel, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.book), nil
}

func (v *Venue) Position(_ context.Context, _ string) (model.Position, error) {
	return v.positions.Position(), nil
}

func (v *Venue) Margin(_ context.Context) (model.Margin, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.margin, nil
}

func (v *Venue) OpenOrders(_ context.Context, _ string) ([]model.LiveOrder, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	open := v.orders.Open()
	out := make([]model.LiveOrder, 0, len(open))
	for _, o := range open {
		out = append(out, o.Live())
	}
	return out, nil
}

func (v *Venue) LastTrade(_ context.Context, _ string) (model.Trade, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.lastTrade, nil
}

func (v *Venue) StreamConnected() bool {
	return v.connected.Load()
}

// Fills returns the number of fills executed so far.
func (v *Venue) Fills() int64 {
	return v.fills.Load()
}

/*
	Stream sink
*/

// OnQuote updates the top of book and fills crossed resting orders.
func (v *Venue) OnQuote(bestBuy, bestSell float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ticker = model.Ticker{BestBuy: bestBuy, BestSell: bestSell}
	if bestBuy > 0 && bestSell > 0 {
		v.ticker.Mid = (bestBuy + bestSell) / 2
	}
	v.matchLocked()
}

// OnBook replaces the depth snapshot.
func (v *Venue) OnBook(levels []model.OrderBookLevel) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.book = slices.Clone(levels)
}

// OnTrade records the latest public print.
func (v *Venue) OnTrade(tr model.Trade) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lastTrade = tr
}

// OnInstrument replaces instrument metadata such as state or mark price.
func (v *Venue) OnInstrument(inst model.Instrument) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.inst = inst
}

func (v *Venue) SetConnected(connected bool) {
	v.connected.Store(connected)
}

/*
	Execution
*/

func (v *Venue) CreateOrders(_ context.Context, orders []model.DesiredOrder) ([]model.LiveOrder, error) {
	if err := v.fault(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, o := range orders {
		if o.Quantity <= 0 || !o.Side.IsAvailable() {
			return nil, &og.RejectError{Message: msgInvalidQty}
		}
	}

	out := make([]model.LiveOrder, 0, len(orders))
	for _, o := range orders {
		created, err := v.orders.Create(uuid.NewString(), o.Side, o.Price, o.Quantity)
		if err != nil {
			return out, err
		}
		out = append(out, created.Live())
	}
	v.matchLocked()
	return out, nil
}

func (v *Venue) AmendOrders(_ context.Context, amends []model.Amend) error {
	if err := v.fault(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, a := range amends {
		if err := v.checkRestingLocked(a.OrderID); err != nil {
			return err
		}
		if a.Quantity <= 0 {
			return &og.RejectError{Message: msgInvalidQty}
		}
	}
	for _, a := range amends {
		if _, err := v.orders.Amend(a.OrderID, a.Price, a.Quantity); err != nil {
			return err
		}
	}
	v.matchLocked()
	return nil
}

func (v *Venue) CancelOrders(_ context.Context, orderIDs []string) error {
	if err := v.fault(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	for _, id := range orderIDs {
		if err := v.checkRestingLocked(id); err != nil {
			return err
		}
	}
	for _, id := range orderIDs {
		if _, err := v.orders.Cancel(id); err != nil {
			return err
		}
	}
	v.orders.Prune()
	return nil
}

// Fill executes qty of a resting order at its own price, as a counterparty would.
func (v *Venue) Fill(orderID string, qty int64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.fillLocked(orderID, qty)
}

func (v *Venue) checkRestingLocked(id string) error {
	o, ok := v.orders.Order(id)
	if !ok || o.State == og.OrderStateFilled || o.State == og.OrderStateCanceled {
		return &og.RejectError{Kind: og.RejectInvalidOrdStatus, Message: msgInvalidOrdStatus}
	}
	return nil
}

func (v *Venue) fillLocked(id string, qty int64) error {
	o, err := v.orders.Fill(id, qty)
	if err != nil {
		if errors.Is(err, og.ErrInvalidTransition) || errors.Is(err, og.ErrUnknownOrder) {
			return &og.RejectError{Kind: og.RejectInvalidOrdStatus, Message: msgInvalidOrdStatus}
		}
		return err
	}
	pos := v.positions.ApplyFill(o.Side, qty, o.Price)
	v.fills.Add(1)
	v.lastTrade = model.Trade{Price: o.Price, Size: qty, Side: o.Side, Time: time.Now().UTC()}
	logs.Infof("paper fill %s %d @ %.*f, position %d", o.Side, qty, v.inst.TickLog, o.Price, pos.CurrentQty)
	return nil
}

// matchLocked fills resting orders the top of book has crossed.
func (v *Venue) matchLocked() {
	if !v.ticker.HasMid() {
		return
	}
	for _, o := range v.orders.Open() {
		crossed := (o.Side == enum.OrderSideBuy && o.Price >= v.ticker.BestSell) ||
			(o.Side == enum.OrderSideSell && o.Price <= v.ticker.BestBuy)
		if !crossed {
			continue
		}
		if err := v.fillLocked(o.ID, o.LeavesQty); err != nil {
			logs.Errorf("paper fill %s, err: %+v", o.ID, err)
		}
	}
	v.orders.Prune()
}

func (v *Venue) fault() error {
	switch v.chaos.Next() {
	case chaos.FaultRace:
		return &og.RejectError{Kind: og.RejectInvalidOrdStatus, Message: msgInvalidOrdStatus}
	case chaos.FaultBenign:
		return &og.RejectError{Kind: og.RejectLiquidationPrice, Message: msgLiquidationPrice}
	case chaos.FaultTransient:
		return &og.RejectError{Kind: og.RejectOverloaded, Message: msgOverloaded}
	default:
		return nil
	}
}
