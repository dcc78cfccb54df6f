package exception

import "errors"

var (
	ErrMarketClosed = errors.New("market data: instrument is not open")
	ErrMarketEmpty  = errors.New("market data: order book is empty, cannot quote")
	ErrSanityCheck  = errors.New("market data: sanity check failed, exchange data is inconsistent")
	ErrNoAnchor     = errors.New("market data: not enough depth to anchor the ladder")
	ErrInvalidTick  = errors.New("market data: tick size must be > 0")
)
