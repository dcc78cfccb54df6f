package og

import (
	"errors"
	"slices"
	"strings"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
)

var (
	ErrDuplicateOrder    = errors.New("order already exists")
	ErrUnknownOrder      = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid order state transition")
	ErrInvalidFill       = errors.New("invalid fill quantity")
	ErrInvalidQty        = errors.New("invalid order quantity")
)

// OrderState tracks the lifecycle of an order.
type OrderState uint8

const (
	OrderStateUnknown OrderState = iota
	OrderStateNew
	OrderStatePartFilled
	OrderStateFilled
	OrderStateCanceled
)

func (s OrderState) String() string {
	switch s {
	case OrderStateNew:
		return "New"
	case OrderStatePartFilled:
		return "PartiallyFilled"
	case OrderStateFilled:
		return "Filled"
	case OrderStateCanceled:
		return "Canceled"
	default:
		return "Unknown"
	}
}

// Order holds the venue's view of an order.
type Order struct {
	ID        string
	Side      enum.OrderSide
	Price     float64
	Qty       int64
	LeavesQty int64
	CumQty    int64
	State     OrderState
}

// Live converts a resting order to its exchange mirror.
func (o *Order) Live() model.LiveOrder {
	return model.LiveOrder{OrderID: o.ID, Side: o.Side, Price: o.Price, LeavesQty: o.LeavesQty}
}

// StateMachine applies create, amend, cancel and fill events to orders.
type StateMachine struct {
	orders map[string]*Order
}

// NewStateMachine creates an empty state machine.
func NewStateMachine() *StateMachine {
	return &StateMachine{orders: make(map[string]*Order)}
}

// Order returns the current order state.
func (m *StateMachine) Order(id string) (*Order, bool) {
	o, ok := m.orders[id]
	return o, ok
}

// Create registers a new resting order.
func (m *StateMachine) Create(id string, side enum.OrderSide, price float64, qty int64) (*Order, error) {
	if id == "" {
		return nil, ErrUnknownOrder
	}
	if qty <= 0 {
		return nil, ErrInvalidQty
	}
	if _, ok := m.orders[id]; ok {
		return nil, ErrDuplicateOrder
	}
	o := &Order{
		ID:        id,
		Side:      side,
		Price:     price,
		Qty:       qty,
		LeavesQty: qty,
		State:     OrderStateNew,
	}
	m.orders[id] = o
	return o, nil
}

// Amend moves a resting order. leavesQty replaces the remaining quantity.
func (m *StateMachine) Amend(id string, price float64, leavesQty int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	if leavesQty <= 0 {
		return o, ErrInvalidQty
	}
	o.Price = price
	o.LeavesQty = leavesQty
	o.Qty = o.CumQty + leavesQty
	return o, nil
}

// Cancel moves a resting order to Canceled.
func (m *StateMachine) Cancel(id string) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	o.State = OrderStateCanceled
	o.LeavesQty = 0
	return o, nil
}

// Fill executes qty against a resting order.
func (m *StateMachine) Fill(id string, qty int64) (*Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrUnknownOrder
	}
	if isTerminal(o.State) {
		return o, ErrInvalidTransition
	}
	if qty <= 0 || qty > o.LeavesQty {
		return o, ErrInvalidFill
	}
	o.LeavesQty -= qty
	o.CumQty += qty
	if o.LeavesQty == 0 {
		o.State = OrderStateFilled
	} else {
		o.State = OrderStatePartFilled
	}
	return o, nil
}

// Open returns resting orders ordered by id.
func (m *StateMachine) Open() []*Order {
	out := make([]*Order, 0, len(m.orders))
	for _, o := range m.orders {
		if !isTerminal(o.State) {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b *Order) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// Prune forgets terminal orders.
func (m *StateMachine) Prune() {
	for id, o := range m.orders {
		if isTerminal(o.State) {
			delete(m.orders, id)
		}
	}
}

func isTerminal(state OrderState) bool {
	switch state {
	case OrderStateFilled, OrderStateCanceled:
		return true
	default:
		return false
	}
}
