package quote

import (
	"slices"

	"marketmaker/internal/model"
)

// SortLevels returns a copy of levels ordered by level index, innermost first.
func SortLevels(levels []model.OrderBookLevel) []model.OrderBookLevel {
	out := slices.Clone(levels)
	slices.SortStableFunc(out, func(a, b model.OrderBookLevel) int {
		return a.Level - b.Level
	})
	return out
}
