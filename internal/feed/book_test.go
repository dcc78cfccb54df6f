package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmaker/internal/model/enum"
)

func TestBookLevels(t *testing.T) {
	b := NewBook(2)
	b.Upsert(1, enum.OrderSideBuy, 100, 10)
	b.Upsert(2, enum.OrderSideBuy, 99.5, 20)
	b.Upsert(3, enum.OrderSideBuy, 99, 30)
	b.Upsert(4, enum.OrderSideSell, 101, 5)

	levels := b.Levels()
	require.Len(t, levels, 2)
	assert.Equal(t, 0, levels[0].Level)
	assert.Equal(t, 100.0, levels[0].Bid.Price)
	assert.Equal(t, 101.0, levels[0].Ask.Price)
	assert.Equal(t, 99.5, levels[1].Bid.Price)
	assert.Nil(t, levels[1].Ask)
}

func TestBookUpdates(t *testing.T) {
	testCases := []struct {
		desc    string
		apply   func(b *Book)
		wantBid []float64
		wantQty []int64
	}{
		{
			desc:    "update keeps price when omitted",
			apply:   func(b *Book) { b.Update(1, 15, 0) },
			wantBid: []float64{100, 99},
			wantQty: []int64{15, 20},
		},
		{
			desc:    "update of unknown id is ignored",
			apply:   func(b *Book) { b.Update(9, 15, 0) },
			wantBid: []float64{100, 99},
			wantQty: []int64{10, 20},
		},
		{
			desc:    "delete",
			apply:   func(b *Book) { b.Delete(1) },
			wantBid: []float64{99},
			wantQty: []int64{20},
		},
		{
			desc:    "zero size hides the level",
			apply:   func(b *Book) { b.Update(2, 0, 0) },
			wantBid: []float64{100},
			wantQty: []int64{10},
		},
		{
			desc: "reset",
			apply: func(b *Book) {
				b.Reset()
				b.Upsert(7, enum.OrderSideBuy, 98, 1)
			},
			wantBid: []float64{98},
			wantQty: []int64{1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			b := NewBook(0)
			b.Upsert(1, enum.OrderSideBuy, 100, 10)
			b.Upsert(2, enum.OrderSideBuy, 99, 20)
			tc.apply(b)

			var prices []float64
			var sizes []int64
			for _, lv := range b.Levels() {
				prices = append(prices, lv.Bid.Price)
				sizes = append(sizes, lv.Bid.Size)
			}
			assert.Equal(t, tc.wantBid, prices)
			assert.Equal(t, tc.wantQty, sizes)
		})
	}
}
