package obs

import (
	"strconv"
	"sync/atomic"
	"time"
)

// TraceGenerator numbers control loop ticks. One ID tags a tick's log lines,
// its journal record and its status report, replans included.
type TraceGenerator struct {
	last atomic.Uint64
}

// NewTraceGenerator issues IDs after seed. A zero seed starts from the wall
// clock so IDs do not repeat across process restarts.
func NewTraceGenerator(seed uint64) *TraceGenerator {
	if seed == 0 {
		seed = uint64(time.Now().UnixMilli()) << 16
	}
	g := &TraceGenerator{}
	g.last.Store(seed)
	return g
}

// Next returns the ID of the next tick. A nil generator returns 0.
func (g *TraceGenerator) Next() uint64 {
	if g == nil {
		return 0
	}
	return g.last.Add(1)
}

// Last returns the most recently issued ID, or the seed before the first tick.
func (g *TraceGenerator) Last() uint64 {
	if g == nil {
		return 0
	}
	return g.last.Load()
}

// TraceLabel formats a tick ID for log lines.
func TraceLabel(id uint64) string {
	return "tick-" + strconv.FormatUint(id, 16)
}
