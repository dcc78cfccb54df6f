package state

import (
	"sync"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
)

// PositionBook folds fills into a signed position with average cost.
type PositionBook struct {
	mu  sync.RWMutex
	pos model.Position
}

// NewPositionBook starts from an existing position.
func NewPositionBook(start model.Position) *PositionBook {
	return &PositionBook{pos: start}
}

// ApplyFill updates the position and returns the new snapshot. Fills that grow
// the position move the average cost; fills that reduce it keep the cost and a
// fill that flips the side restarts the cost at the fill price.
func (b *PositionBook) ApplyFill(side enum.OrderSide, qty int64, price float64) model.Position {
	b.mu.Lock()
	defer b.mu.Unlock()

	delta := qty
	if side == enum.OrderSideSell {
		delta = -qty
	}
	current := b.pos.CurrentQty
	next := current + delta

	switch {
	case next == 0:
		b.pos.AvgCostPrice = 0
		b.pos.AvgEntryPrice = 0
	case current == 0 || (current > 0) != (next > 0):
		b.pos.AvgCostPrice = price
		b.pos.AvgEntryPrice = price
	case abs(next) > abs(current):
		cost := (b.pos.AvgCostPrice*float64(abs(current)) + price*float64(qty)) / float64(abs(next))
		b.pos.AvgCostPrice = cost
		b.pos.AvgEntryPrice = cost
	}
	b.pos.CurrentQty = next
	return b.pos
}

// Position returns the current snapshot.
func (b *PositionBook) Position() model.Position {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pos
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
