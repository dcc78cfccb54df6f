package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmaker/internal/core"
	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/internal/obs"
	"marketmaker/pkg/exception"
)

type memorySink struct {
	mu      sync.Mutex
	records []Record
	closed  bool
}

func (s *memorySink) Write(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *memorySink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func testReport(trace uint64) core.Report {
	return core.Report{
		TraceID: trace,
		Time:    time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Symbol:  "XBTUSD",
		Outcome: core.OutcomeOK,
		Overlay: "normal",
		Status:  core.StatusReport{Position: 7},
		Plan: model.Plan{
			ToCreate: []model.DesiredOrder{{Side: enum.OrderSideBuy, Price: 99.5, Quantity: 10}},
			ToAmend:  []model.Amend{{OrderID: "a", Side: enum.OrderSideSell, Price: 101, Quantity: 20, PrevPrice: 101.5, PrevQty: 10}},
			ToCancel: []model.LiveOrder{{OrderID: "c", Side: enum.OrderSideSell, Price: 103, LeavesQty: 5}},
		},
	}
}

func TestNewRecord(t *testing.T) {
	rec := NewRecord(testReport(9))
	assert.Equal(t, uint64(9), rec.TraceID)
	assert.Equal(t, int64(7), rec.Position)
	assert.Equal(t, []Order{{Side: "Buy", Price: 99.5, Qty: 10}}, rec.Creates)
	assert.Equal(t, []Amend{{OrderID: "a", Side: "Sell", Price: 101, Qty: 20, PrevPrice: 101.5, PrevQty: 10}}, rec.Amends)
	assert.Equal(t, []Order{{OrderID: "c", Side: "Sell", Price: 103, Qty: 5}}, rec.Cancels)

	empty := NewRecord(core.Report{Outcome: core.OutcomeIdle})
	assert.Nil(t, empty.Creates)
}

func TestJournalDeliversAndDrops(t *testing.T) {
	sink := &memorySink{}
	j := New(sink, 2, obs.NewMetrics(prometheus.NewRegistry()))

	j.OnTick(testReport(1))
	j.OnTick(testReport(2))
	j.OnTick(testReport(3))
	assert.Equal(t, int64(1), j.Dropped())

	j.Close()
	j.OnTick(testReport(4))
	assert.Equal(t, int64(2), j.Dropped())

	j.Run(t.Context())
	require.Len(t, sink.records, 2)
	assert.Equal(t, uint64(1), sink.records[0].TraceID)
	assert.Equal(t, uint64(2), sink.records[1].TraceID)
	assert.True(t, sink.closed)
}

func TestJournalRunStopsOnCancel(t *testing.T) {
	sink := &memorySink{}
	j := New(sink, 0, nil)
	ctx, cancel := context.WithCancel(t.Context())

	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
		assert.True(t, sink.closed)
	case <-time.After(time.Second):
		t.Fatal("journal did not stop")
	}
}

func TestKafkaSink(t *testing.T) {
	_, err := NewKafkaSink(nil, "ticks")
	assert.ErrorIs(t, err, exception.ErrInvalidConfig)

	s, err := NewKafkaSink([]string{"localhost:9092"}, "ticks")
	require.NoError(t, err)
	w := &fakeWriter{}
	s.writer = w

	require.NoError(t, s.Write(t.Context(), NewRecord(testReport(5))))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("XBTUSD"), w.msgs[0].Key)

	var got Record
	require.NoError(t, sonic.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, uint64(5), got.TraceID)
	assert.Len(t, got.Cancels, 1)

	w.err = errors.New("broker down")
	assert.Error(t, s.Write(t.Context(), NewRecord(testReport(6))))

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestLogSink(t *testing.T) {
	var s LogSink
	assert.NoError(t, s.Write(t.Context(), NewRecord(testReport(1))))
	assert.NoError(t, s.Close())
}
