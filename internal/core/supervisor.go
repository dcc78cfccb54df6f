package core

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	ierrors "marketmaker/internal/errors"
	"marketmaker/internal/obs"
	"marketmaker/pkg/exception"
)

// RestartPolicy bounds supervisor restarts. MaxRestarts 0 means unlimited.
type RestartPolicy struct {
	Delay       time.Duration
	MaxRestarts int
}

// Session is one lifetime of the market stream and engine. It returns when
// the stream drops, a fatal error occurs or ctx ends.
type Session func(ctx context.Context) error

// Supervisor restarts a fresh session when the market stream disconnects. The
// engine never resubscribes in place since the missed span cannot be reconciled.
type Supervisor struct {
	policy  RestartPolicy
	session Session
	metrics *obs.Metrics
}

func NewSupervisor(policy RestartPolicy, session Session, metrics *obs.Metrics) *Supervisor {
	return &Supervisor{policy: policy, session: session, metrics: metrics}
}

// Run returns nil on cancellation or shutdown and the error of the session otherwise.
func (s *Supervisor) Run(ctx context.Context) error {
	if s.session == nil {
		return exception.ErrNilInstance
	}
	for restarts := 0; ; {
		err := s.session(ctx)
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			return nil
		}
		if err == nil {
			return nil
		}
		if !errors.Is(err, exception.ErrStreamDisconnected) {
			return err
		}

		restarts++
		if s.policy.MaxRestarts > 0 && restarts > s.policy.MaxRestarts {
			return ierrors.Wrap(exception.ErrRestartsExceed, fmt.Sprintf("restarts: %d, last: %v", restarts-1, err))
		}
		s.metrics.IncRestart()
		logs.Warnf("market stream lost, restarting session %d in %s, err: %+v", restarts, s.policy.Delay, err)

		select {
		case <-sys.Shutdown():
			return nil
		case <-ctx.Done():
			return nil
		case <-time.After(s.policy.Delay):
		}
	}
}

// EngineRef points at the engine of the current session so operator actions
// reach it across restarts.
type EngineRef struct {
	p atomic.Pointer[Engine]
}

func (r *EngineRef) Set(e *Engine) {
	r.p.Store(e)
}

// CancelAll cancels the resting orders through the current engine.
func (r *EngineRef) CancelAll(ctx context.Context) error {
	e := r.p.Load()
	if e == nil {
		return exception.ErrNilInstance
	}
	return e.CancelAll(ctx)
}
