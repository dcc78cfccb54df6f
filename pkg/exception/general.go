package exception

import "errors"

// General errors
var (
	ErrNilInstance      = errors.New("nil instance")
	ErrInternal         = errors.New("internal error")
	ErrLatchStore       = errors.New("latch: store failure")
	ErrLatchBackend     = errors.New("latch: unsupported backend")
	ErrInvalidConfig    = errors.New("config: invalid value")
	ErrRestartsExceed   = errors.New("supervisor: restart limit exceeded")
	ErrEngineNotRunning = errors.New("engine: control loop is not running")
)
