package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"marketmaker/internal/model"
	"marketmaker/internal/model/enum"
	"marketmaker/internal/obs"
	"marketmaker/internal/og"
	"marketmaker/internal/quote"
	"marketmaker/internal/reconcile"
	"marketmaker/internal/risk"
	"marketmaker/pkg/exception"
)

// Config is loaded once and never changes while the engine runs.
type Config struct {
	Symbol          string
	LoopInterval    time.Duration
	Quote           quote.Params
	RelistTolerance float64
	MinContracts    int64
	Limits          risk.PositionLimits
	Overlay         risk.OverlayConfig
	RaceDelay       time.Duration
	MaxRaceReplans  int
	Gateway         og.GatewayConfig
}

// Deps are the collaborators of one engine.
type Deps struct {
	Market    MarketSnapshotProvider
	Client    og.ExecutionClient
	Trend     TrendSignalSource
	Latch     LatchStore
	Metrics   *obs.Metrics
	Traces    *obs.TraceGenerator
	Observers []Observer
}

// Engine runs the quote convergence loop for one symbol.
type Engine struct {
	cfg     Config
	deps    Deps
	overlay *risk.Overlay
	gateway *og.Gateway

	inst     model.Instrument
	grid     quote.Grid
	startQty int64
	ready    bool

	// operator requests served between ticks by Run
	cancels  chan chan error
	running  atomic.Bool
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewEngine validates collaborators. Init must be called before Tick.
func NewEngine(cfg Config, deps Deps) (*Engine, error) {
	if deps.Market == nil || deps.Client == nil || deps.Latch == nil {
		return nil, exception.ErrNilInstance
	}
	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = 5 * time.Second
	}
	if cfg.MaxRaceReplans < 0 {
		cfg.MaxRaceReplans = 0
	}
	if deps.Trend == nil {
		deps.Trend = noTrend{}
	}
	ov := cfg.Overlay
	ov.Limits = cfg.Limits
	return &Engine{
		cfg:     cfg,
		deps:    deps,
		overlay: risk.NewOverlay(ov),
		cancels: make(chan chan error),
		stopped: make(chan struct{}),
	}, nil
}

// Init loads the instrument and the starting position.
func (e *Engine) Init(ctx context.Context) error {
	inst, err := e.deps.Market.Instrument(ctx, e.cfg.Symbol)
	if err != nil {
		return err
	}
	grid, err := quote.NewGrid(inst.TickSize, inst.TickLog)
	if err != nil {
		return err
	}
	pos, err := e.deps.Market.Position(ctx, e.cfg.Symbol)
	if err != nil {
		return err
	}

	gwCfg := e.cfg.Gateway
	gwCfg.PriceDecimals = inst.TickLog
	gwCfg.Metrics = e.deps.Metrics
	gw, err := og.NewGateway(e.deps.Client, gwCfg)
	if err != nil {
		return err
	}

	e.inst, e.grid, e.startQty, e.gateway = inst, grid, pos.CurrentQty, gw
	e.ready = true
	logs.Infof("engine ready, symbol %s, tick %v, starting position %d", inst.Symbol, inst.TickSize, pos.CurrentQty)
	return nil
}

// Run ticks every LoopInterval until ctx is done, a shutdown signal arrives or
// a non halting error occurs. Operator requests are served between ticks.
func (e *Engine) Run(ctx context.Context) error {
	if !e.ready {
		if err := e.Init(ctx); err != nil {
			return err
		}
	}

	e.running.Store(true)
	defer func() {
		e.running.Store(false)
		e.stopOnce.Do(func() { close(e.stopped) })
	}()

	t := time.NewTicker(e.cfg.LoopInterval)
	defer t.Stop()

	for {
		if _, err := e.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if !IsHalt(err) {
				return err
			}
			logs.Warnf("quoting halted for this tick, err: %+v", err)
		}

		if e.idle(ctx, t.C) {
			return nil
		}
	}
}

// idle waits for the next tick and reports whether the loop must stop.
func (e *Engine) idle(ctx context.Context, tick <-chan time.Time) bool {
	for {
		select {
		case <-sys.Shutdown():
			return true
		case <-ctx.Done():
			return true
		case done := <-e.cancels:
			done <- e.cancelAll(ctx)
		case <-tick:
			return false
		}
	}
}

// IsHalt reports whether err only skips the current tick.
func IsHalt(err error) bool {
	return errors.Is(err, exception.ErrMarketClosed) || errors.Is(err, exception.ErrMarketEmpty)
}

// Tick runs one iteration. A race during submission discards the plan and
// replans from a fresh snapshot after RaceDelay, at most MaxRaceReplans times.
func (e *Engine) Tick(ctx context.Context) (Report, error) {
	if !e.ready {
		return Report{}, exception.ErrNilInstance
	}
	start := time.Now()
	traceID := e.deps.Traces.Next()
	logs.Infof("%s begin, symbol %s", obs.TraceLabel(traceID), e.cfg.Symbol)

	var (
		report Report
		err    error
	)
	for attempt := 0; ; attempt++ {
		var plan model.Plan
		report, plan, err = e.plan(ctx)
		report.TraceID, report.Replans = traceID, attempt
		if err != nil || plan.IsEmpty() {
			break
		}

		err = e.gateway.Submit(ctx, plan)
		if err == nil {
			break
		}
		if !errors.Is(err, exception.ErrRaceCondition) {
			break
		}
		if attempt >= e.cfg.MaxRaceReplans {
			logs.Warnf("order state raced %d times, leaving the plan to the next tick", attempt+1)
			report.Outcome = OutcomeRaced
			err = nil
			break
		}
		logs.Warnf("order state raced, replanning in %s", e.cfg.RaceDelay)
		if werr := wait(ctx, e.cfg.RaceDelay); werr != nil {
			err = werr
			break
		}
	}

	switch {
	case err == nil && report.Outcome == "":
		report.Outcome = OutcomeOK
	case err != nil && IsHalt(err):
		report.Outcome = OutcomeHalted
		report.Error = err.Error()
	case err != nil:
		report.Outcome = OutcomeFailed
		report.Error = err.Error()
	}

	e.deps.Metrics.ObserveTick(report.Outcome, time.Since(start))
	logs.Infof("%s %s, creates %d, amends %d, cancels %d", obs.TraceLabel(traceID), report.Outcome, report.Creates, report.Amends, report.Cancels)
	for _, o := range e.deps.Observers {
		o.OnTick(report)
	}
	return report, err
}

// plan snapshots the market and returns the plan for this tick.
func (e *Engine) plan(ctx context.Context) (Report, model.Plan, error) {
	report := Report{Time: time.Now().UTC(), Symbol: e.cfg.Symbol}

	if !e.deps.Market.StreamConnected() {
		return report, model.Plan{}, exception.ErrStreamDisconnected
	}

	snap, err := e.snapshot(ctx)
	if err != nil {
		return report, model.Plan{}, err
	}
	report.BestBuy, report.BestSell, report.Mid = snap.ticker.BestBuy, snap.ticker.BestSell, snap.ticker.Mid
	report.LiveOrderCount = len(snap.live)
	report.Status = BuildStatus(snap.inst, snap.margin, snap.position, e.startQty, e.cfg.Limits)
	e.deps.Metrics.SetPosition(snap.position.CurrentQty)
	e.logStatus(report.Status)

	if !snap.ticker.HasMid() {
		return report, model.Plan{}, exception.ErrMarketEmpty
	}
	if !snap.inst.IsOpen() {
		return report, model.Plan{}, exception.ErrMarketClosed
	}

	ownBuy, ownSell := model.BestOwnQuantities(snap.live)

	ladder, anchors, err := quote.Build(e.cfg.Quote, quote.Market{
		Ticker:         snap.ticker,
		Levels:         snap.levels,
		TickSize:       e.grid.Tick(),
		TickLog:        e.grid.Log(),
		OwnBestBuyQty:  ownBuy,
		OwnBestSellQty: ownSell,
	})
	anchored := true
	switch {
	case errors.Is(err, exception.ErrNoAnchor):
		logs.Warnf("no ladder this tick, resting orders are kept, err: %+v", err)
		ladder, anchored = model.Ladder{}, false
		report.Error = err.Error()
	case err != nil:
		return report, model.Plan{}, err
	default:
		report.AnchorBuy, report.AnchorSell = anchors.Buy, anchors.Sell
		logs.Infof("anchors buy %.*f, sell %.*f, mid %.*f", e.grid.Log(), anchors.Buy, e.grid.Log(), anchors.Sell, e.grid.Log(), snap.ticker.Mid)
	}

	if err := quote.CheckSanity(ladder, snap.ticker); err != nil {
		logs.Errorf("sanity check failed, ticker %+v, err: %+v", snap.ticker, err)
		return report, model.Plan{}, err
	}

	liquidity := risk.CheckLiquidity(snap.levels, ownBuy, ownSell, e.cfg.MinContracts)
	report.Liquidity = liquidity.Reason.String()
	if !liquidity.Pass {
		logs.Warnf("liquidity gate blocked (%s), bid depth %d, ask depth %d", liquidity.Reason, liquidity.BidDepth, liquidity.AskDepth)
		e.deps.Metrics.IncGateBlock(liquidity.Reason.String())
		ladder = model.Ladder{}
	}

	ladder, posReason := risk.ApplyPositionLimits(e.cfg.Limits, snap.position.CurrentQty, ladder)
	report.PositionLimit = posReason.String()
	if posReason != risk.ReasonNone {
		logs.Infof("position %d at limit (%s)", snap.position.CurrentQty, posReason)
		e.deps.Metrics.IncGateBlock(posReason.String())
	}

	decision, err := e.evaluateOverlay(ctx, snap, &report)
	if err != nil {
		return report, model.Plan{}, err
	}

	switch {
	case decision.NoAction:
		report.Outcome = OutcomeStopped
		logs.Infof("stop profit latched and position flat, no action")
		return report, model.Plan{}, nil
	case decision.Active:
		ladder = decision.Ladder
		if decision.Hold.IsAvailable() {
			ladder = holdSide(ladder, decision.Hold, snap.live, snap.ticker.Mid)
		}
	case !liquidity.Pass || !anchored:
		report.Outcome = OutcomeBlocked
		return report, model.Plan{}, nil
	}

	report.DesiredBuys, report.DesiredSells = len(ladder.Buys), len(ladder.Sells)
	plan := reconcile.Reconcile(snap.live, ladder.Buys, ladder.Sells, snap.ticker.Mid, e.cfg.RelistTolerance)
	report.Plan = plan
	report.Creates, report.Amends, report.Cancels = len(plan.ToCreate), len(plan.ToAmend), len(plan.ToCancel)
	if plan.IsEmpty() {
		report.Outcome = OutcomeIdle
	}
	return report, plan, nil
}

func (e *Engine) evaluateOverlay(ctx context.Context, snap snapshot, report *Report) (risk.Decision, error) {
	latch, err := e.deps.Latch.Load(ctx)
	if err != nil {
		return risk.Decision{}, err
	}

	e.deps.Trend.Observe(snap.lastTrade)
	in := risk.OverlayInput{
		Position:     snap.position.CurrentQty,
		AvgCostPrice: snap.position.AvgCostPrice,
		LastPrice:    snap.lastTrade.Price,
		Grid:         e.grid,
	}
	if in.LastPrice <= 0 {
		in.LastPrice = snap.ticker.Mid
	}
	in.MAShort, in.MALong, in.HasAverages = e.deps.Trend.Averages(in.LastPrice)
	if in.HasAverages {
		report.MAShort, report.MALong = in.MAShort, in.MALong
		logs.Infof("MA short %.8g, MA long %.8g, last trade %.8g", in.MAShort, in.MALong, in.LastPrice)
	}

	decision, next := e.overlay.Evaluate(in, latch)
	if next != latch {
		if err := e.deps.Latch.Save(ctx, next); err != nil {
			return risk.Decision{}, err
		}
		logs.Infof("stop profit latch set to %v", next.Set)
	}
	report.Latched = next.Set
	report.Overlay = decision.Status.String()
	report.Trend = decision.Trend.String()
	e.deps.Metrics.IncOverlay(decision.Status.String())
	return decision, nil
}

func (e *Engine) logStatus(s StatusReport) {
	logs.Infof("current XBT balance: %.6f", s.MarginBalanceXBT)
	logs.Infof("current contract position: %d", s.Position)
	if s.Limits != nil {
		logs.Infof("position limits: %d/%d", s.Limits.Min, s.Limits.Max)
	}
	if s.Position != 0 {
		logs.Infof("avg cost price: %.*f", e.grid.Log(), s.AvgCostPrice)
		logs.Infof("avg entry price: %.*f", e.grid.Log(), s.AvgEntryPrice)
	}
	logs.Infof("contracts traded this run: %d", s.ContractsTraded)
	logs.Infof("total contract delta: %.4f XBT", s.Delta.Spot)
}

type snapshot struct {
	inst      model.Instrument
	ticker    model.Ticker
	levels    []model.OrderBookLevel
	position  model.Position
	margin    model.Margin
	live      []model.LiveOrder
	lastTrade model.Trade
}

func (e *Engine) snapshot(ctx context.Context) (snapshot, error) {
	var (
		s   snapshot
		err error
		sym = e.cfg.Symbol
	)
	if s.inst, err = e.deps.Market.Instrument(ctx, sym); err != nil {
		return s, err
	}
	if s.ticker, err = e.deps.Market.Ticker(ctx, sym); err != nil {
		return s, err
	}
	if s.levels, err = e.deps.Market.OrderBook(ctx, sym); err != nil {
		return s, err
	}
	if s.position, err = e.deps.Market.Position(ctx, sym); err != nil {
		return s, err
	}
	if s.margin, err = e.deps.Market.Margin(ctx); err != nil {
		return s, err
	}
	if s.live, err = e.deps.Market.OpenOrders(ctx, sym); err != nil {
		return s, err
	}
	if s.lastTrade, err = e.deps.Market.LastTrade(ctx, sym); err != nil {
		return s, err
	}
	return s, nil
}

// CancelAll asks the running loop to cancel every resting order of the symbol
// and waits for the result.
func (e *Engine) CancelAll(ctx context.Context) error {
	if !e.running.Load() {
		return exception.ErrEngineNotRunning
	}
	done := make(chan error, 1)
	select {
	case e.cancels <- done:
	case <-e.stopped:
		return exception.ErrEngineNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) cancelAll(ctx context.Context) error {
	if !e.ready {
		return exception.ErrNilInstance
	}
	live, err := e.deps.Market.OpenOrders(ctx, e.cfg.Symbol)
	if err != nil {
		return err
	}
	return e.gateway.CancelAll(ctx, live)
}

// holdSide mirrors the live orders of side as desired so reconciliation leaves
// them standing.
func holdSide(ladder model.Ladder, side enum.OrderSide, live []model.LiveOrder, mid float64) model.Ladder {
	buys, sells := model.SplitBySide(live)
	resting := buys
	if side == enum.OrderSideSell {
		resting = sells
	}
	resting = reconcile.SortInnermostFirst(resting, mid)

	held := make([]model.DesiredOrder, 0, len(resting))
	for _, o := range resting {
		held = append(held, model.DesiredOrder{Side: o.Side, Price: o.Price, Quantity: o.LeavesQty})
	}
	if side == enum.OrderSideBuy {
		ladder.Buys = held
	} else {
		ladder.Sells = held
	}
	return ladder
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type noTrend struct{}

func (noTrend) Observe(model.Trade) {}

func (noTrend) Averages(float64) (float64, float64, bool) { return 0, 0, false }
