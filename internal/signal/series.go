package signal

import (
	"time"

	"marketmaker/internal/model"
)

// DefaultHistory is the number of one minute closes kept.
const DefaultHistory = 500

// Series keeps the trailing one minute close prices built from trades.
// It is owned by the control loop and is not safe for concurrent use.
type Series struct {
	capacity int
	closes   []float64

	bucket     time.Time
	bucketLast float64
	open       bool
}

// NewSeries creates a series holding at most capacity closes.
func NewSeries(capacity int) *Series {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	return &Series{capacity: capacity, closes: make([]float64, 0, capacity)}
}

// Seed preloads historical closes, oldest first.
func (s *Series) Seed(closes []float64) {
	for _, c := range closes {
		s.push(c)
	}
}

// Observe folds a trade into the current minute. Crossing into a new minute
// closes the previous bucket.
func (s *Series) Observe(tr model.Trade) {
	if tr.Price <= 0 {
		return
	}
	minute := tr.Time.Truncate(time.Minute)
	switch {
	case !s.open:
		s.bucket, s.bucketLast, s.open = minute, tr.Price, true
	case minute.After(s.bucket):
		s.push(s.bucketLast)
		s.bucket, s.bucketLast = minute, tr.Price
	case minute.Equal(s.bucket):
		s.bucketLast = tr.Price
	}
	// trades older than the open bucket are ignored
}

// Closes returns a copy of the completed closes, oldest first.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.closes))
	copy(out, s.closes)
	return out
}

func (s *Series) Len() int {
	return len(s.closes)
}

func (s *Series) push(c float64) {
	if len(s.closes) == s.capacity {
		copy(s.closes, s.closes[1:])
		s.closes = s.closes[:len(s.closes)-1]
	}
	s.closes = append(s.closes, c)
}
