package exception

import "errors"

// Submission outcomes. Policy is chosen with errors.Is against these.
var (
	ErrRaceCondition   = errors.New("order: referenced order reached a terminal state concurrently")
	ErrBenignRejection = errors.New("order: benign rejection")
	ErrFatalProtocol   = errors.New("order: unrecoverable rejection")
	ErrOrderNilClient  = errors.New("order: nil execution client")
	ErrOrderUnknown    = errors.New("order: unknown order id")
	ErrOrderInvalidQty = errors.New("order: quantity must be > 0")
)
