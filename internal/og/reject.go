package og

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"marketmaker/internal/errors"
	"marketmaker/pkg/exception"
)

// RejectKind is the structured rejection class reported by the exchange.
type RejectKind uint8

const (
	RejectUnknown RejectKind = iota
	RejectInvalidOrdStatus
	RejectLiquidationPrice
	RejectOverloaded
	RejectTimeout
)

func (k RejectKind) String() string {
	switch k {
	case RejectInvalidOrdStatus:
		return "invalid-ord-status"
	case RejectLiquidationPrice:
		return "liquidation-price"
	case RejectOverloaded:
		return "overloaded"
	case RejectTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// RejectError is a structured exchange rejection.
type RejectError struct {
	Kind    RejectKind
	Message string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("rejected (%s): %s", e.Kind, e.Message)
}

const (
	msgInvalidOrdStatus = "invalid ordstatus"
	msgLiquidationPrice = "would be past your liquidation price"
	msgAboveLiquidation = "above the liquidation price"
	msgOverloaded       = "system is currently overloaded"
)

// Classify maps a submission error onto the exception taxonomy. Already
// classified errors and context errors pass through untouched.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		exception.ErrRaceCondition,
		exception.ErrBenignRejection,
		exception.ErrTransientExchange,
		exception.ErrFatalProtocol,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if stderrors.Is(err, known) {
			return err
		}
	}

	var rej *RejectError
	if !stderrors.As(err, &rej) {
		return errors.Wrap(exception.ErrFatalProtocol, err.Error())
	}

	kind := rej.Kind
	if kind == RejectUnknown {
		kind = kindFromMessage(rej.Message)
	}
	switch kind {
	case RejectInvalidOrdStatus:
		return errors.Wrap(exception.ErrRaceCondition, rej.Error())
	case RejectLiquidationPrice:
		return errors.Wrap(exception.ErrBenignRejection, rej.Error())
	case RejectOverloaded, RejectTimeout:
		return errors.Wrap(exception.ErrTransientExchange, rej.Error())
	default:
		return errors.Wrap(exception.ErrFatalProtocol, rej.Error())
	}
}

func kindFromMessage(msg string) RejectKind {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, msgInvalidOrdStatus):
		return RejectInvalidOrdStatus
	case strings.Contains(m, msgLiquidationPrice), strings.Contains(m, msgAboveLiquidation):
		return RejectLiquidationPrice
	case strings.Contains(m, msgOverloaded):
		return RejectOverloaded
	default:
		return RejectUnknown
	}
}

// ClassName is the metrics label of a classified error.
func ClassName(err error) string {
	switch {
	case err == nil:
		return "none"
	case stderrors.Is(err, exception.ErrRaceCondition):
		return "race"
	case stderrors.Is(err, exception.ErrBenignRejection):
		return "benign"
	case stderrors.Is(err, exception.ErrTransientExchange):
		return "transient"
	default:
		return "fatal"
	}
}
