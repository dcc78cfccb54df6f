/*
Journal records the plan of every tick without ever blocking the control loop.

Source: core.Report through the Observer hook.

Produce: Record into a Sink (log lines or a Kafka topic). When the queue is full
the record is dropped and counted.
*/
package journal

import (
	"context"
	"sync/atomic"

	"github.com/yanun0323/logs"

	"marketmaker/internal/bus"
	"marketmaker/internal/core"
	"marketmaker/internal/obs"
)

// DefaultCapacity bounds the records waiting for the sink.
const DefaultCapacity = 1024

// Sink persists journal records.
type Sink interface {
	Write(ctx context.Context, rec Record) error
	Close() error
}

type Journal struct {
	queue   *bus.Queue[Record]
	sink    Sink
	metrics *obs.Metrics
	dropped atomic.Int64
}

var _ core.Observer = (*Journal)(nil)

func New(sink Sink, capacity int, metrics *obs.Metrics) *Journal {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Journal{
		queue:   bus.NewQueue[Record](capacity),
		sink:    sink,
		metrics: metrics,
	}
}

// OnTick enqueues the report of a tick.
func (j *Journal) OnTick(r core.Report) {
	if err := j.queue.TryPublish(NewRecord(r)); err != nil {
		if j.dropped.Add(1) == 1 {
			logs.Warnf("journal dropping records, err: %+v", err)
		}
		j.metrics.IncJournalDrop()
	}
}

// Dropped returns the number of records lost to a full or closed queue.
func (j *Journal) Dropped() int64 {
	return j.dropped.Load()
}

// Run writes records to the sink until ctx is done or the journal is closed,
// then closes the sink.
func (j *Journal) Run(ctx context.Context) {
	defer func() {
		if err := j.sink.Close(); err != nil {
			logs.Errorf("close journal sink, err: %+v", err)
		}
	}()
	j.queue.Run(ctx, func(rec Record) {
		if err := j.sink.Write(ctx, rec); err != nil {
			logs.Errorf("journal write trace %d, err: %+v", rec.TraceID, err)
		}
	})
}

// Close stops accepting records. Run drains what is queued and returns.
func (j *Journal) Close() {
	j.queue.Close()
}
