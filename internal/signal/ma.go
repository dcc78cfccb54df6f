package signal

import "marketmaker/internal/model"

// SMA is the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, bool) {
	if period <= 0 || len(values) < period {
		return 0, false
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), true
}

// MovingAverages returns the short and long averages over closes followed by the
// latest price. The smaller period is always treated as the short one.
func MovingAverages(closes []float64, latest float64, p1, p2 int) (short, long float64, ok bool) {
	if p1 > p2 {
		p1, p2 = p2, p1
	}
	values := make([]float64, 0, len(closes)+1)
	values = append(values, closes...)
	values = append(values, latest)

	short, ok = SMA(values, p1)
	if !ok {
		return 0, 0, false
	}
	long, ok = SMA(values, p2)
	if !ok {
		return 0, 0, false
	}
	return short, long, true
}

// Source computes the trend averages from a Series.
type Source struct {
	series *Series
	short  int
	long   int
}

// NewSource builds a trend signal source over series with the two periods.
func NewSource(series *Series, p1, p2 int) *Source {
	return &Source{series: series, short: p1, long: p2}
}

// Observe forwards a trade into the series.
func (s *Source) Observe(tr model.Trade) {
	if s == nil || s.series == nil {
		return
	}
	s.series.Observe(tr)
}

// Averages returns (short, long) over the series closes and the latest price.
func (s *Source) Averages(latest float64) (float64, float64, bool) {
	if s == nil || s.series == nil || s.short <= 0 || s.long <= 0 {
		return 0, 0, false
	}
	return MovingAverages(s.series.Closes(), latest, s.short, s.long)
}

// Series exposes the underlying close series.
func (s *Source) Series() *Series {
	return s.series
}
