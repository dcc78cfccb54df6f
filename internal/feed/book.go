package feed

import (
	"cmp"
	"slices"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
)

// DefaultDepth is the number of levels of the orderBookL2_25 table.
const DefaultDepth = 25

type bookEntry struct {
	side  enum.OrderSide
	price float64
	size  int64
}

// Book is an L2 book keyed by the exchange level id. It is owned by the stream
// goroutine and is not safe for concurrent use.
type Book struct {
	entries map[int64]bookEntry
	depth   int
}

func NewBook(depth int) *Book {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Book{entries: make(map[int64]bookEntry, 2*depth), depth: depth}
}

// Reset drops every level, as a partial snapshot replaces the book.
func (b *Book) Reset() {
	clear(b.entries)
}

// Upsert inserts a level or updates it. Updates may omit the price.
func (b *Book) Upsert(id int64, side enum.OrderSide, price float64, size int64) {
	e, ok := b.entries[id]
	if !ok {
		e = bookEntry{side: side, price: price}
	}
	if side.IsAvailable() {
		e.side = side
	}
	if price > 0 {
		e.price = price
	}
	e.size = size
	b.entries[id] = e
}

// Update changes the size of a known level and ignores unknown ids.
func (b *Book) Update(id int64, size int64, price float64) {
	e, ok := b.entries[id]
	if !ok {
		return
	}
	e.size = size
	if price > 0 {
		e.price = price
	}
	b.entries[id] = e
}

func (b *Book) Delete(id int64) {
	delete(b.entries, id)
}

func (b *Book) Len() int {
	return len(b.entries)
}

// Levels pairs the i-th best bid with the i-th best ask, best first.
func (b *Book) Levels() []model.OrderBookLevel {
	var bids, asks []bookEntry
	for _, e := range b.entries {
		if e.size <= 0 || e.price <= 0 {
			continue
		}
		switch e.side {
		case enum.OrderSideBuy:
			bids = append(bids, e)
		case enum.OrderSideSell:
			asks = append(asks, e)
		}
	}
	slices.SortFunc(bids, func(x, y bookEntry) int { return cmp.Compare(y.price, x.price) })
	slices.SortFunc(asks, func(x, y bookEntry) int { return cmp.Compare(x.price, y.price) })

	n := min(max(len(bids), len(asks)), b.depth)
	levels := make([]model.OrderBookLevel, 0, n)
	for i := range n {
		lv := model.OrderBookLevel{Level: i}
		if i < len(bids) {
			lv.Bid = &model.BookQuote{Price: bids[i].price, Size: bids[i].size}
		}
		if i < len(asks) {
			lv.Ask = &model.BookQuote{Price: asks[i].price, Size: asks[i].size}
		}
		levels = append(levels, lv)
	}
	return levels
}
