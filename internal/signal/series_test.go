package signal

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmaker/internal/model"
)

func TestSeriesBucketsTradesByMinute(t *testing.T) {
	base := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	s := NewSeries(10)

	s.Observe(model.Trade{Price: 100, Time: base.Add(5 * time.Second)})
	s.Observe(model.Trade{Price: 101, Time: base.Add(50 * time.Second)})
	assert.Equal(t, 0, s.Len(), "open bucket is not a close yet")

	s.Observe(model.Trade{Price: 102, Time: base.Add(61 * time.Second)})
	s.Observe(model.Trade{Price: 99, Time: base.Add(10 * time.Second)})
	s.Observe(model.Trade{Price: 103, Time: base.Add(3 * time.Minute)})

	assert.Equal(t, []float64{101, 102}, s.Closes())
}

func TestSeriesCapacity(t *testing.T) {
	s := NewSeries(3)
	s.Seed([]float64{1, 2, 3, 4, 5})
	assert.Equal(t, []float64{3, 4, 5}, s.Closes())

	assert.Equal(t, DefaultHistory, cap(NewSeries(0).closes))
}

func TestMovingAverages(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}

	short, long, ok := MovingAverages(closes, 10, 5, 2)
	require.True(t, ok)
	assert.Equal(t, 9.5, short)
	assert.Equal(t, 8.0, long)

	_, _, ok = MovingAverages(closes, 10, 2, 11)
	assert.False(t, ok)
}

func TestSMA(t *testing.T) {
	v, ok := SMA([]float64{2, 4, 6}, 3)
	require.True(t, ok)
	assert.Equal(t, 4.0, v)

	_, ok = SMA([]float64{2}, 0)
	assert.False(t, ok)
}

func TestSource(t *testing.T) {
	series := NewSeries(10)
	series.Seed([]float64{10, 10, 10})
	src := NewSource(series, 2, 3)

	short, long, ok := src.Averages(13)
	require.True(t, ok)
	assert.Equal(t, 11.5, short)
	assert.Equal(t, 11.0, long)

	var empty *Source
	_, _, ok = empty.Averages(1)
	assert.False(t, ok)
}
