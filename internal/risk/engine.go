package risk

import (
	"marketmaker/internal/model"
)

// LiquidityResult is the outcome of the liquidity gate.
type LiquidityResult struct {
	BidDepth int64
	AskDepth int64
	Pass     bool
	Reason   Reason
}

// CheckLiquidity sums the visible depth on each side, excluding our own resting
// best quantity, and passes only when both sides reach minContracts.
func CheckLiquidity(levels []model.OrderBookLevel, ownBestBuyQty, ownBestSellQty, minContracts int64) LiquidityResult {
	var res LiquidityResult
	for _, lv := range levels {
		if lv.Bid != nil {
			res.BidDepth += lv.Bid.Size
		}
		if lv.Ask != nil {
			res.AskDepth += lv.Ask.Size
		}
	}
	res.BidDepth -= ownBestBuyQty
	res.AskDepth -= ownBestSellQty

	bidOK := res.BidDepth >= minContracts
	askOK := res.AskDepth >= minContracts
	switch {
	case bidOK && askOK:
		res.Pass = true
		res.Reason = ReasonNone
	case !bidOK && !askOK:
		res.Reason = ReasonBothStarved
	case !bidOK:
		res.Reason = ReasonBidStarved
	default:
		res.Reason = ReasonAskStarved
	}
	return res
}

// PositionLimits bounds the signed position. Disabled limits never suppress.
type PositionLimits struct {
	Enabled bool  `json:"enabled"`
	Min     int64 `json:"min"`
	Max     int64 `json:"max"`
}

// LongBreached reports whether no more buys are allowed.
func (l PositionLimits) LongBreached(position int64) bool {
	return l.Enabled && position >= l.Max
}

// ShortBreached reports whether no more sells are allowed.
func (l PositionLimits) ShortBreached(position int64) bool {
	return l.Enabled && position <= l.Min
}

// ApplyPositionLimits empties the side of the ladder that would grow a breached position.
func ApplyPositionLimits(limits PositionLimits, position int64, ladder model.Ladder) (model.Ladder, Reason) {
	reason := ReasonNone
	if limits.LongBreached(position) {
		ladder.Buys = nil
		reason = ReasonLongLimit
	}
	if limits.ShortBreached(position) {
		ladder.Sells = nil
		reason = ReasonShortLimit
	}
	return ladder, reason
}
