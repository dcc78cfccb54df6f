package exception

import "github.com/yanun0323/errors"

var (
	ErrTransientExchange  = errors.New("exchange: transient error")
	ErrStreamDisconnected = errors.New("exchange: realtime stream disconnected")
	ErrStreamRejected     = errors.New("exchange: realtime stream rejected the request")
	ErrConnectionClose    = errors.New("connection closed")
	ErrInvalidArgument    = errors.New("invalid argument")
)
