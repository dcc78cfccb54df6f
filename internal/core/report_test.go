package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/internal/risk"
)

func TestCalcDelta(t *testing.T) {
	testCases := []struct {
		desc string
		inst model.Instrument
		pos  int64
		want Delta
	}{
		{
			desc: "quanto",
			inst: model.Instrument{Kind: enum.InstrumentKindQuanto, Multiplier: 0.000001, SettlePrice: 2000, MarkPrice: 2100},
			pos:  100,
			want: Delta{Spot: 0.2, Mark: 0.21, Basis: 0.01},
		},
		{
			desc: "inverse",
			inst: model.Instrument{Kind: enum.InstrumentKindInverse, Multiplier: 1, SettlePrice: 50000, MarkPrice: 40000},
			pos:  -100,
			want: Delta{Spot: -0.002, Mark: -0.0025, Basis: -0.0005},
		},
		{
			desc: "inverse without prices",
			inst: model.Instrument{Kind: enum.InstrumentKindInverse, Multiplier: 1},
			pos:  100,
			want: Delta{},
		},
		{
			desc: "linear",
			inst: model.Instrument{Kind: enum.InstrumentKindLinear, Multiplier: 0.01, SettlePrice: 100, MarkPrice: 200},
			pos:  10,
			want: Delta{Spot: 0.1, Mark: 0.1},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			got := CalcDelta(tc.inst, tc.pos)
			assert.InDelta(t, tc.want.Spot, got.Spot, 1e-12)
			assert.InDelta(t, tc.want.Mark, got.Mark, 1e-12)
			assert.InDelta(t, tc.want.Basis, got.Basis, 1e-12)
		})
	}
}

func TestBuildStatus(t *testing.T) {
	inst := model.Instrument{Kind: enum.InstrumentKindLinear, Multiplier: 1}
	margin := model.Margin{MarginBalance: 150_000_000, AvailableFunds: 90_000_000}

	flat := BuildStatus(inst, margin, model.Position{}, 5, risk.PositionLimits{Min: -10, Max: 10})
	assert.Equal(t, 1.5, flat.MarginBalanceXBT)
	assert.Equal(t, int64(-5), flat.ContractsTraded)
	assert.Nil(t, flat.Limits)
	assert.Zero(t, flat.AvgCostPrice)

	long := BuildStatus(inst, margin, model.Position{CurrentQty: 8, AvgCostPrice: 99, AvgEntryPrice: 98}, 5,
		risk.PositionLimits{Enabled: true, Min: -10, Max: 10})
	assert.Equal(t, int64(3), long.ContractsTraded)
	if assert.NotNil(t, long.Limits) {
		assert.Equal(t, int64(10), long.Limits.Max)
	}
	assert.Equal(t, 99.0, long.AvgCostPrice)
	assert.Equal(t, 98.0, long.AvgEntryPrice)
	assert.Equal(t, 8.0, long.Delta.Spot)
}

func TestReportBoard(t *testing.T) {
	var nilBoard *ReportBoard
	nilBoard.Store(Report{Outcome: OutcomeOK})
	_, ok := nilBoard.Load()
	assert.False(t, ok)

	b := NewReportBoard()
	_, ok = b.Load()
	assert.False(t, ok)

	b.OnTick(Report{TraceID: 1, Outcome: OutcomeOK})
	b.OnTick(Report{TraceID: 2, Outcome: OutcomeIdle})
	r, ok := b.Load()
	assert.True(t, ok)
	assert.Equal(t, uint64(2), r.TraceID)
	assert.Equal(t, OutcomeIdle, r.Outcome)
}
