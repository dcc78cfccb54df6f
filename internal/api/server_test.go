package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketmaker/internal/core"
	"marketmaker/internal/obs"
	"marketmaker/internal/risk"
	"marketmaker/internal/state"
	"marketmaker/pkg/exception"
)

type fakeCanceler struct {
	calls int
	err   error
}

func (c *fakeCanceler) CancelAll(context.Context) error {
	c.calls++
	return c.err
}

type brokenLatch struct{}

func (brokenLatch) Load(context.Context) (risk.Latch, error) {
	return risk.Latch{}, errors.New("disk gone")
}

func (brokenLatch) Save(context.Context, risk.Latch) error { return errors.New("disk gone") }

type fixture struct {
	handler  http.Handler
	board    *core.ReportBoard
	latch    *state.MemoryLatchStore
	canceler *fakeCanceler
	healthy  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	f := &fixture{
		board:    core.NewReportBoard(),
		latch:    state.NewMemoryLatchStore(),
		canceler: &fakeCanceler{},
		healthy:  true,
	}
	metrics := obs.NewMetrics(reg)
	metrics.ObserveTick(core.OutcomeOK, 0)
	f.handler = NewServer(Deps{
		Board:    f.board,
		Latch:    f.latch,
		Canceler: f.canceler,
		Gatherer: reg,
		Metrics:  metrics,
		Healthy:  func() bool { return f.healthy },
	}).Handler()
	return f
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestRoutes(t *testing.T) {
	testCases := []struct {
		desc     string
		method   string
		path     string
		setup    func(f *fixture)
		wantCode int
		wantBody string
	}{
		{
			desc:     "healthy",
			method:   http.MethodGet,
			path:     "/healthz",
			wantCode: http.StatusOK,
			wantBody: `{"status":"ok"}`,
		},
		{
			desc:     "stream down",
			method:   http.MethodGet,
			path:     "/healthz",
			setup:    func(f *fixture) { f.healthy = false },
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"status":"stream disconnected"}`,
		},
		{
			desc:     "latch unset",
			method:   http.MethodGet,
			path:     "/api/v1/latch",
			wantCode: http.StatusOK,
			wantBody: `{"set":false}`,
		},
		{
			desc:   "latch set",
			method: http.MethodGet,
			path:   "/api/v1/latch",
			setup: func(f *fixture) {
				_ = f.latch.Save(context.Background(), risk.Latch{Set: true})
			},
			wantCode: http.StatusOK,
			wantBody: `{"set":true}`,
		},
		{
			desc:     "clear requires post",
			method:   http.MethodGet,
			path:     "/api/v1/latch/clear",
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			desc:     "cancel all",
			method:   http.MethodPost,
			path:     "/api/v1/orders/cancel-all",
			wantCode: http.StatusOK,
			wantBody: `{"status":"canceled"}`,
		},
		{
			desc:     "cancel all failure",
			method:   http.MethodPost,
			path:     "/api/v1/orders/cancel-all",
			setup:    func(f *fixture) { f.canceler.err = errors.New("rejected") },
			wantCode: http.StatusInternalServerError,
			wantBody: `{"error":"cancel_all","message":"rejected"}`,
		},
		{
			desc:     "cancel all between sessions",
			method:   http.MethodPost,
			path:     "/api/v1/orders/cancel-all",
			setup:    func(f *fixture) { f.canceler.err = exception.ErrEngineNotRunning },
			wantCode: http.StatusServiceUnavailable,
			wantBody: `{"error":"cancel_all","message":"engine: control loop is not running"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			f := newFixture(t)
			if tc.setup != nil {
				tc.setup(f)
			}
			rec := f.do(t, tc.method, tc.path)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantBody != "" {
				assert.JSONEq(t, tc.wantBody, rec.Body.String())
			}
		})
	}
}

func TestClearLatch(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.latch.Save(t.Context(), risk.Latch{Set: true}))

	rec := f.do(t, http.MethodPost, "/api/v1/latch/clear")
	assert.Equal(t, http.StatusOK, rec.Code)

	latch, err := f.latch.Load(t.Context())
	require.NoError(t, err)
	assert.False(t, latch.Set)
}

func TestStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty struct {
		Report  *core.Report `json:"report"`
		Latency obs.Latency  `json:"latency"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Nil(t, empty.Report)
	assert.Equal(t, uint64(1), empty.Latency.Tick.Count)

	f.board.Store(core.Report{TraceID: 42, Outcome: core.OutcomeIdle, Symbol: "XBTUSD"})
	rec = f.do(t, http.MethodGet, "/api/v1/status")
	var got struct {
		Report *core.Report `json:"report"`
	}
	require.NoError(t, sonic.Unmarshal(rec.Body.Bytes(), &got))
	require.NotNil(t, got.Report)
	assert.Equal(t, uint64(42), got.Report.TraceID)
	assert.Equal(t, core.OutcomeIdle, got.Report.Outcome)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `mm_ticks_total{outcome="ok"} 1`))
}

func TestLatchStoreFailure(t *testing.T) {
	h := NewServer(Deps{Latch: brokenLatch{}, Gatherer: prometheus.NewRegistry()}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/latch/clear", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders/cancel-all", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRunStopsOnCancel(t *testing.T) {
	s := NewServer(Deps{Gatherer: prometheus.NewRegistry()})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.NoError(t, s.Run(ctx, "127.0.0.1:0"))
}
