package chaos

import (
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// Fault is an injected venue failure.
type Fault uint8

const (
	FaultNone Fault = iota
	// FaultRace rejects as if a referenced order already reached a terminal state.
	FaultRace
	// FaultBenign rejects as if the price crossed the liquidation boundary.
	FaultBenign
	// FaultTransient rejects as if the exchange were overloaded.
	FaultTransient
)

func (f Fault) String() string {
	switch f {
	case FaultRace:
		return "race"
	case FaultBenign:
		return "benign"
	case FaultTransient:
		return "transient"
	default:
		return "none"
	}
}

// ParseFault is the inverse of String.
func ParseFault(s string) (Fault, error) {
	switch s {
	case "", "none":
		return FaultNone, nil
	case "race":
		return FaultRace, nil
	case "benign":
		return FaultBenign, nil
	case "transient":
		return FaultTransient, nil
	default:
		return FaultNone, fmt.Errorf("unknown fault %q", s)
	}
}

// Config controls chaos injection behavior.
type Config struct {
	Seed          int64   `json:"seed"`
	RaceRate      float64 `json:"raceRate"`
	BenignRate    float64 `json:"benignRate"`
	TransientRate float64 `json:"transientRate"`
	// Script replays faults in order before the random rates apply.
	Script []string `json:"script"`
}

// Engine draws faults for venue calls.
type Engine struct {
	mu     sync.Mutex
	cfg    Config
	rng    *rand.Rand
	script []Fault
}

// NewEngine creates a chaos engine with validation.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	script := make([]Fault, 0, len(cfg.Script))
	for _, s := range cfg.Script {
		f, err := ParseFault(s)
		if err != nil {
			return nil, err
		}
		script = append(script, f)
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UTC().UnixNano()
	}
	return &Engine{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		script: script,
	}, nil
}

// Validate ensures the config is within supported ranges.
func (c Config) Validate() error {
	for name, rate := range map[string]float64{
		"raceRate":      c.RaceRate,
		"benignRate":    c.BenignRate,
		"transientRate": c.TransientRate,
	} {
		if rate < 0 || rate > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if c.RaceRate+c.BenignRate+c.TransientRate > 1 {
		return fmt.Errorf("sum of rates must be <= 1")
	}
	return nil
}

// Enabled reports whether any fault can be produced.
func (c Config) Enabled() bool {
	return len(c.Script) != 0 || c.RaceRate > 0 || c.BenignRate > 0 || c.TransientRate > 0
}

// Next draws the fault for the next venue call. A nil engine never faults.
func (e *Engine) Next() Fault {
	if e == nil {
		return FaultNone
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.script) != 0 {
		f := e.script[0]
		e.script = e.script[1:]
		return f
	}

	r := e.rng.Float64()
	switch {
	case r < e.cfg.RaceRate:
		return FaultRace
	case r < e.cfg.RaceRate+e.cfg.BenignRate:
		return FaultBenign
	case r < e.cfg.RaceRate+e.cfg.BenignRate+e.cfg.TransientRate:
		return FaultTransient
	default:
		return FaultNone
	}
}
