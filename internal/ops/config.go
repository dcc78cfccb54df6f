package ops

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/joho/godotenv"

	"marketmaker/internal/chaos"
	"marketmaker/internal/core"
	"marketmaker/internal/errors"
	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/internal/og"
	"marketmaker/internal/quote"
	"marketmaker/internal/risk"
	"marketmaker/internal/signal"
	"marketmaker/internal/state"
	"marketmaker/pkg/exception"
)

// FileConfig mirrors the JSON config layout. Durations are in milliseconds.
type FileConfig struct {
	Symbol         string              `json:"symbol"`
	DryRun         *bool               `json:"dryRun"`
	LoopIntervalMs int64               `json:"loopIntervalMs"`
	Quote          QuoteConfig         `json:"quote"`
	RelistInterval *float64            `json:"relistInterval"`
	PositionLimits risk.PositionLimits `json:"positionLimits"`
	Overlay        OverlayConfig       `json:"overlay"`
	RaceDelayMs    *int64              `json:"raceDelayMs"`
	MaxRaceReplans *int                `json:"maxRaceReplans"`
	Retry          RetryConfig         `json:"retry"`
	Restart        RestartConfig       `json:"restart"`
	HistorySize    int                 `json:"historySize"`
	Latch          state.Config        `json:"latch"`
	Journal        JournalConfig       `json:"journal"`
	Feed           FeedConfig          `json:"feed"`
	Admin          AdminConfig         `json:"admin"`
	Paper          PaperConfig         `json:"paper"`
	Chaos          chaos.Config        `json:"chaos"`
	Profiling      ProfilingConfig     `json:"profiling"`
}

// QuoteConfig shapes the ladder.
type QuoteConfig struct {
	OrderPairs      int     `json:"orderPairs"`
	OrderStartSize  int64   `json:"orderStartSize"`
	OrderStepSize   int64   `json:"orderStepSize"`
	RandomOrderSize bool    `json:"randomOrderSize"`
	MinOrderSize    int64   `json:"minOrderSize"`
	MaxOrderSize    int64   `json:"maxOrderSize"`
	Interval        float64 `json:"interval"`
	MinSpread       float64 `json:"minSpread"`
	MaintainSpreads bool    `json:"maintainSpreads"`
	MinContracts    int64   `json:"minContracts"`
}

type OverlayConfig struct {
	Trend      bool    `json:"trend"`
	StopProfit bool    `json:"stopProfit"`
	StopTarget float64 `json:"stopTarget"`
	MA1        int     `json:"ma1"`
	MA2        int     `json:"ma2"`
}

type RetryConfig struct {
	Attempts  *int   `json:"attempts"`
	BackoffMs *int64 `json:"backoffMs"`
}

type RestartConfig struct {
	DelayMs     *int64 `json:"delayMs"`
	MaxRestarts int    `json:"maxRestarts"`
}

type JournalConfig struct {
	Capacity     int      `json:"capacity"`
	KafkaBrokers []string `json:"kafkaBrokers"`
	KafkaTopic   string   `json:"kafkaTopic"`
}

type FeedConfig struct {
	URL            string `json:"url"`
	PingIntervalMs int64  `json:"pingIntervalMs"`
	Depth          int    `json:"depth"`
}

type AdminConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowedOrigins"`
}

// PaperConfig seeds the dry-run venue.
type PaperConfig struct {
	TickSize       float64 `json:"tickSize"`
	TickLog        int32   `json:"tickLog"`
	Multiplier     float64 `json:"multiplier"`
	Kind           string  `json:"kind"`
	Position       int64   `json:"position"`
	AvgCostPrice   float64 `json:"avgCostPrice"`
	MarginBalance  int64   `json:"marginBalance"`
	AvailableFunds int64   `json:"availableFunds"`
}

type ProfilingConfig struct {
	Enabled       bool   `json:"enabled"`
	AppName       string `json:"appName"`
	ServerAddress string `json:"serverAddress"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Symbol      string
	DryRun      bool
	Engine      core.Config
	Restart     core.RestartPolicy
	MA1, MA2    int
	HistorySize int
	Latch       state.Config
	Journal     JournalConfig
	Feed        FeedConfig
	Admin       AdminConfig
	Instrument  model.Instrument
	Position    model.Position
	Margin      model.Margin
	Chaos       chaos.Config
	Profiling   ProfilingConfig
}

// Environment overrides, read after the optional .env file.
const (
	EnvSymbol         = "MM_SYMBOL"
	EnvDryRun         = "MM_DRY_RUN"
	EnvLoopIntervalMs = "MM_LOOP_INTERVAL_MS"
	EnvLatchBackend   = "MM_LATCH_BACKEND"
	EnvLatchPath      = "MM_LATCH_PATH"
	EnvPostgresDSN    = "MM_POSTGRES_DSN"
	EnvKafkaBrokers   = "MM_KAFKA_BROKERS"
	EnvFeedURL        = "MM_FEED_URL"
	EnvAdminAddr      = "MM_ADMIN_ADDR"
)

// Load reads a JSON config file, applies the environment and resolves defaults.
// envPath may be empty to read .env from the working directory when present.
func Load(path, envPath string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, errors.Wrap(exception.ErrInvalidConfig, fmt.Sprintf("decode %s: %v", path, err))
	}
	if err := LoadEnv(&cfg, envPath); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// LoadEnv overrides cfg from the environment. Priority: env > .env file > config file.
func LoadEnv(cfg *FileConfig, envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			return errors.Wrap(exception.ErrInvalidConfig, fmt.Sprintf("load %s: %v", envPath, err))
		}
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv(EnvSymbol); v != "" {
		cfg.Symbol = v
	}
	if v := os.Getenv(EnvDryRun); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return invalid("%s: %v", EnvDryRun, err)
		}
		cfg.DryRun = &b
	}
	if v := os.Getenv(EnvLoopIntervalMs); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return invalid("%s: %v", EnvLoopIntervalMs, err)
		}
		cfg.LoopIntervalMs = ms
	}
	if v := os.Getenv(EnvLatchBackend); v != "" {
		cfg.Latch.Backend = v
	}
	if v := os.Getenv(EnvLatchPath); v != "" {
		cfg.Latch.Path = v
	}
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Latch.DSN = v
	}
	if v := os.Getenv(EnvKafkaBrokers); v != "" {
		cfg.Journal.KafkaBrokers = splitList(v)
	}
	if v := os.Getenv(EnvFeedURL); v != "" {
		cfg.Feed.URL = v
	}
	if v := os.Getenv(EnvAdminAddr); v != "" {
		cfg.Admin.Addr = v
	}
	return nil
}

// Resolve validates cfg and fills the defaults.
func Resolve(cfg FileConfig) (Loaded, error) {
	if err := validate(cfg); err != nil {
		return Loaded{}, err
	}

	mode := quote.ModeOffset
	if cfg.Quote.MaintainSpreads {
		mode = quote.ModeMaintainSpread
	}
	limits := cfg.PositionLimits

	engine := core.Config{
		Symbol:       cfg.Symbol,
		LoopInterval: millis(cfg.LoopIntervalMs, 5000),
		Quote: quote.Params{
			Depth:        cfg.Quote.OrderPairs,
			BaseSize:     cfg.Quote.OrderStartSize,
			SizeStep:     cfg.Quote.OrderStepSize,
			Interval:     cfg.Quote.Interval,
			MinSpread:    cfg.Quote.MinSpread,
			Mode:         mode,
			MinContracts: cfg.Quote.MinContracts,
			RandomSize:   cfg.Quote.RandomOrderSize,
			MinOrderSize: cfg.Quote.MinOrderSize,
			MaxOrderSize: cfg.Quote.MaxOrderSize,
		},
		RelistTolerance: floatOr(cfg.RelistInterval, 0.01),
		MinContracts:    cfg.Quote.MinContracts,
		Limits:          limits,
		Overlay: risk.OverlayConfig{
			Trend:      cfg.Overlay.Trend,
			StopProfit: cfg.Overlay.StopProfit,
			StopTarget: cfg.Overlay.StopTarget,
		},
		RaceDelay:      millis(intOr(cfg.RaceDelayMs, 500), 0),
		MaxRaceReplans: valueOr(cfg.MaxRaceReplans, 3),
		Gateway: og.GatewayConfig{
			RetryAttempts: valueOr(cfg.Retry.Attempts, 3),
			RetryBackoff:  millis(intOr(cfg.Retry.BackoffMs, 3000), 0),
		},
	}

	ma1, ma2 := cfg.Overlay.MA1, cfg.Overlay.MA2
	if ma1 == 0 {
		ma1 = 5
	}
	if ma2 == 0 {
		ma2 = 20
	}
	history := cfg.HistorySize
	if history <= 0 {
		history = signal.DefaultHistory
	}

	journal := cfg.Journal
	if journal.KafkaTopic == "" {
		journal.KafkaTopic = "marketmaker.ticks"
	}
	feed := cfg.Feed
	if feed.URL == "" {
		feed.URL = "wss://ws.testnet.bitmex.com/realtime"
	}
	admin := cfg.Admin
	if admin.Addr == "" {
		admin.Addr = ":8080"
	}
	multiplier := cfg.Paper.Multiplier
	if multiplier == 0 {
		multiplier = 1
	}
	profiling := cfg.Profiling
	if profiling.AppName == "" {
		profiling.AppName = "marketmaker"
	}

	return Loaded{
		Symbol:      cfg.Symbol,
		DryRun:      valueOr(cfg.DryRun, true),
		Engine:      engine,
		Restart:     core.RestartPolicy{Delay: millis(intOr(cfg.Restart.DelayMs, 1000), 0), MaxRestarts: cfg.Restart.MaxRestarts},
		MA1:         ma1,
		MA2:         ma2,
		HistorySize: history,
		Latch:       cfg.Latch,
		Journal:     journal,
		Feed:        feed,
		Admin:       admin,
		Instrument: model.Instrument{
			Symbol:     cfg.Symbol,
			TickSize:   cfg.Paper.TickSize,
			TickLog:    cfg.Paper.TickLog,
			Multiplier: multiplier,
			State:      enum.InstrumentStateOpen,
			Kind:       enum.ParseInstrumentKind(cfg.Paper.Kind),
		},
		Position:  model.Position{CurrentQty: cfg.Paper.Position, AvgCostPrice: cfg.Paper.AvgCostPrice, AvgEntryPrice: cfg.Paper.AvgCostPrice},
		Margin:    model.Margin{MarginBalance: cfg.Paper.MarginBalance, AvailableFunds: cfg.Paper.AvailableFunds},
		Chaos:     cfg.Chaos,
		Profiling: profiling,
	}, nil
}

func validate(cfg FileConfig) error {
	switch {
	case cfg.Symbol == "":
		return invalid("symbol is empty")
	case cfg.DryRun != nil && !*cfg.DryRun:
		return invalid("only dry run is supported, orders are routed to the paper venue")
	case cfg.LoopIntervalMs < 0:
		return invalid("loopIntervalMs must be > 0")
	case cfg.Quote.OrderPairs < 1:
		return invalid("quote.orderPairs must be >= 1")
	case cfg.Quote.Interval < 0 || cfg.Quote.MinSpread < 0:
		return invalid("quote.interval and quote.minSpread must be >= 0")
	case !cfg.Quote.RandomOrderSize && cfg.Quote.OrderStartSize <= 0:
		return invalid("quote.orderStartSize must be > 0")
	case !cfg.Quote.RandomOrderSize && cfg.Quote.OrderStartSize+cfg.Quote.OrderStepSize*int64(cfg.Quote.OrderPairs-1) <= 0:
		return invalid("quote.orderStepSize leaves the outermost level without quantity")
	case cfg.Quote.RandomOrderSize && (cfg.Quote.MinOrderSize <= 0 || cfg.Quote.MinOrderSize > cfg.Quote.MaxOrderSize):
		return invalid("quote.minOrderSize must be > 0 and <= quote.maxOrderSize")
	case cfg.Quote.MinContracts < 0:
		return invalid("quote.minContracts must be >= 0")
	case cfg.RelistInterval != nil && *cfg.RelistInterval < 0:
		return invalid("relistInterval must be >= 0")
	case cfg.PositionLimits.Min > cfg.PositionLimits.Max:
		return invalid("positionLimits.min must be <= positionLimits.max")
	case cfg.Overlay.StopProfit && cfg.Overlay.StopTarget <= 0:
		return invalid("overlay.stopTarget must be > 0")
	case cfg.Overlay.MA1 < 0 || cfg.Overlay.MA2 < 0:
		return invalid("overlay.ma1 and overlay.ma2 must be >= 0")
	case cfg.MaxRaceReplans != nil && *cfg.MaxRaceReplans < 0:
		return invalid("maxRaceReplans must be >= 0")
	case cfg.Retry.Attempts != nil && *cfg.Retry.Attempts < 0:
		return invalid("retry.attempts must be >= 0")
	case cfg.Restart.MaxRestarts < 0:
		return invalid("restart.maxRestarts must be >= 0")
	case cfg.Paper.TickSize <= 0:
		return invalid("paper.tickSize must be > 0")
	case cfg.Paper.TickLog < 0:
		return invalid("paper.tickLog must be >= 0")
	}
	if err := cfg.Chaos.Validate(); err != nil {
		return invalid("chaos: %v", err)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errors.Wrap(exception.ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func millis(ms int64, def int64) time.Duration {
	if ms <= 0 {
		ms = def
	}
	return time.Duration(ms) * time.Millisecond
}

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func intOr(p *int64, def int64) int64 {
	return valueOr(p, def)
}

func floatOr(p *float64, def float64) float64 {
	return valueOr(p, def)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
