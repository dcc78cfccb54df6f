package risk

// Reason explains why a gate suppressed some or all of the ladder.
type Reason uint8

const (
	ReasonNone Reason = iota
	ReasonBidStarved
	ReasonAskStarved
	ReasonBothStarved
	ReasonLongLimit
	ReasonShortLimit
	_reason_end
)

func (r Reason) IsAvailable() bool {
	return r < _reason_end
}

func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonBidStarved:
		return "bid-starved"
	case ReasonAskStarved:
		return "ask-starved"
	case ReasonBothStarved:
		return "both-starved"
	case ReasonLongLimit:
		return "long-limit"
	case ReasonShortLimit:
		return "short-limit"
	default:
		return "unknown"
	}
}
