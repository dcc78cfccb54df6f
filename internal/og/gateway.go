package og

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/yanun0323/logs"

	"marketmaker/internal/model"
	"marketmaker/internal/obs"
	"marketmaker/pkg/exception"
)

// ExecutionClient submits order batches to the exchange.
type ExecutionClient interface {
	CreateOrders(ctx context.Context, orders []model.DesiredOrder) ([]model.LiveOrder, error)
	AmendOrders(ctx context.Context, amends []model.Amend) error
	CancelOrders(ctx context.Context, orderIDs []string) error
}

// GatewayConfig controls retry behavior and log formatting.
type GatewayConfig struct {
	RetryAttempts int
	RetryBackoff  time.Duration
	// PriceDecimals is the instrument tickLog used when logging prices.
	PriceDecimals int32
	Metrics       *obs.Metrics
}

// Gateway submits reconciliation plans and applies the rejection policy.
type Gateway struct {
	cfg    GatewayConfig
	client ExecutionClient
}

// NewGateway wraps client with the submission policy.
func NewGateway(client ExecutionClient, cfg GatewayConfig) (*Gateway, error) {
	if client == nil {
		return nil, exception.ErrOrderNilClient
	}
	if cfg.RetryAttempts < 0 {
		cfg.RetryAttempts = 0
	}
	return &Gateway{cfg: cfg, client: client}, nil
}

// Submit sends amends, then creates, then cancels. A race on amend or create is
// returned so the caller can replan; benign rejections are dropped; a race on
// cancel means the order is already gone and is dropped too. Anything else is
// fatal.
func (g *Gateway) Submit(ctx context.Context, plan model.Plan) error {
	start := time.Now()
	defer func() { g.cfg.Metrics.ObserveSubmit(time.Since(start)) }()

	if len(plan.ToAmend) != 0 {
		for _, a := range plan.ToAmend {
			logs.Infof("Amending %4s: %d @ %.*f to %d @ %.*f (%+.*f)",
				a.Side, a.PrevQty, g.cfg.PriceDecimals, a.PrevPrice,
				a.Quantity, g.cfg.PriceDecimals, a.Price,
				g.cfg.PriceDecimals, a.Price-a.PrevPrice)
		}
		err := g.retry(ctx, "amend", func() error {
			return g.client.AmendOrders(ctx, plan.ToAmend)
		})
		if err := g.settle("amend", err, false); err != nil {
			return err
		}
		for _, a := range plan.ToAmend {
			g.cfg.Metrics.AddOrders("amend", a.Side.String(), 1)
		}
	}

	if len(plan.ToCreate) != 0 {
		for _, o := range plan.ToCreate {
			logs.Infof("Creating %4s: %d @ %.*f", o.Side, o.Quantity, g.cfg.PriceDecimals, o.Price)
		}
		err := g.retry(ctx, "create", func() error {
			_, err := g.client.CreateOrders(ctx, plan.ToCreate)
			return err
		})
		if err := g.settle("create", err, false); err != nil {
			return err
		}
		for _, o := range plan.ToCreate {
			g.cfg.Metrics.AddOrders("create", o.Side.String(), 1)
		}
	}

	if len(plan.ToCancel) != 0 {
		for _, o := range plan.ToCancel {
			logs.Infof("Canceling %4s: %d @ %.*f", o.Side, o.LeavesQty, g.cfg.PriceDecimals, o.Price)
		}
		err := g.retry(ctx, "cancel", func() error {
			return g.client.CancelOrders(ctx, plan.CancelIDs())
		})
		if err := g.settle("cancel", err, true); err != nil {
			return err
		}
		for _, o := range plan.ToCancel {
			g.cfg.Metrics.AddOrders("cancel", o.Side.String(), 1)
		}
	}

	return nil
}

// CancelAll cancels every given live order. It is an operator action, not a
// shutdown guarantee.
func (g *Gateway) CancelAll(ctx context.Context, live []model.LiveOrder) error {
	if len(live) == 0 {
		return nil
	}
	logs.Warnf("canceling all %d resting orders", len(live))
	return g.Submit(ctx, model.Plan{ToCancel: live})
}

func (g *Gateway) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := Classify(fn())
		if err == nil {
			return nil
		}
		if !stderrors.Is(err, exception.ErrTransientExchange) || attempt >= g.cfg.RetryAttempts {
			return err
		}
		g.cfg.Metrics.IncRejection(ClassName(err))
		logs.Warnf("%s failed (attempt %d/%d), retrying in %s, err: %+v", op, attempt+1, g.cfg.RetryAttempts+1, g.cfg.RetryBackoff, err)

		timer := time.NewTimer(g.cfg.RetryBackoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (g *Gateway) settle(op string, err error, raceIsBenign bool) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}

	g.cfg.Metrics.IncRejection(ClassName(err))
	switch {
	case stderrors.Is(err, exception.ErrBenignRejection):
		logs.Warnf("%s rejected, dropping batch, err: %+v", op, err)
		return nil
	case stderrors.Is(err, exception.ErrRaceCondition) && raceIsBenign:
		logs.Warnf("%s raced with a terminal order, ignored, err: %+v", op, err)
		return nil
	case stderrors.Is(err, exception.ErrRaceCondition):
		logs.Warnf("%s raced with a terminal order, err: %+v", op, err)
		return err
	default:
		logs.Errorf("%s failed, err: %+v", op, err)
		return err
	}
}
