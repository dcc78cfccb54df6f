package chaos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineScriptThenRates(t *testing.T) {
	e, err := NewEngine(Config{Seed: 7, Script: []string{"race", "none", "transient"}})
	require.NoError(t, err)

	assert.Equal(t, FaultRace, e.Next())
	assert.Equal(t, FaultNone, e.Next())
	assert.Equal(t, FaultTransient, e.Next())
	for range 100 {
		assert.Equal(t, FaultNone, e.Next(), "zero rates never fault")
	}
}

func TestEngineRatesAreDeterministic(t *testing.T) {
	cfg := Config{Seed: 42, RaceRate: 0.2, BenignRate: 0.2, TransientRate: 0.2}
	a, err := NewEngine(cfg)
	require.NoError(t, err)
	b, err := NewEngine(cfg)
	require.NoError(t, err)

	seen := map[Fault]int{}
	for range 1000 {
		fa, fb := a.Next(), b.Next()
		assert.Equal(t, fa, fb)
		seen[fa]++
	}
	assert.Len(t, seen, 4)
}

func TestConfigValidate(t *testing.T) {
	testCases := []struct {
		desc string
		cfg  Config
		ok   bool
	}{
		{desc: "zero", cfg: Config{}, ok: true},
		{desc: "negative", cfg: Config{RaceRate: -0.1}},
		{desc: "above one", cfg: Config{BenignRate: 1.1}},
		{desc: "sum above one", cfg: Config{RaceRate: 0.6, TransientRate: 0.6}},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}

	_, err := NewEngine(Config{Script: []string{"meteor"}})
	assert.Error(t, err)
}

func TestNilEngine(t *testing.T) {
	var e *Engine
	assert.Equal(t, FaultNone, e.Next())
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Script: []string{"race"}}.Enabled())
}
