/*
Reconcile diffs the desired ladder against the live order set.

Live orders of each side are sorted innermost first (closest to mid, ties by
order id) and paired by index with the desired orders. A pair is amended only
when the quantity differs or the price drifted beyond the relist tolerance.
Surplus live orders are canceled and surplus desired orders are created, so a
filled inner order costs one create instead of a cascade of amends.
*/
package reconcile

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"marketmaker/internal/model"
)

// SortInnermostFirst returns a copy of orders sorted by distance to mid.
func SortInnermostFirst(orders []model.LiveOrder, mid float64) []model.LiveOrder {
	out := slices.Clone(orders)
	slices.SortFunc(out, func(a, b model.LiveOrder) int {
		if c := cmp.Compare(math.Abs(a.Price-mid), math.Abs(b.Price-mid)); c != 0 {
			return c
		}
		return cmp.Compare(a.OrderID, b.OrderID)
	})
	return out
}

// NeedsAmend reports whether a resting order must be moved to match desired.
func NeedsAmend(live model.LiveOrder, desired model.DesiredOrder, tolerance float64) bool {
	if desired.Quantity != live.LeavesQty {
		return true
	}
	if desired.Price == live.Price {
		return false
	}
	if live.Price == 0 {
		return true
	}
	return math.Abs(desired.Price/live.Price-1) > tolerance
}

// Reconcile builds the plan that converges live orders onto the desired ladder.
func Reconcile(live []model.LiveOrder, buys, sells []model.DesiredOrder, mid, tolerance float64) model.Plan {
	liveBuys, liveSells := model.SplitBySide(live)

	var plan model.Plan
	reconcileSide(&plan, SortInnermostFirst(liveBuys, mid), buys, tolerance)
	reconcileSide(&plan, SortInnermostFirst(liveSells, mid), sells, tolerance)
	mustBeDisjoint(plan)
	return plan
}

func reconcileSide(plan *model.Plan, live []model.LiveOrder, desired []model.DesiredOrder, tolerance float64) {
	paired := min(len(live), len(desired))
	for i := range paired {
		if !NeedsAmend(live[i], desired[i], tolerance) {
			continue
		}
		plan.ToAmend = append(plan.ToAmend, model.Amend{
			OrderID:   live[i].OrderID,
			Side:      live[i].Side,
			Price:     desired[i].Price,
			Quantity:  desired[i].Quantity,
			PrevPrice: live[i].Price,
			PrevQty:   live[i].LeavesQty,
		})
	}
	plan.ToCancel = append(plan.ToCancel, live[paired:]...)
	plan.ToCreate = append(plan.ToCreate, desired[paired:]...)
}

// mustBeDisjoint panics when an order id is referenced twice.
func mustBeDisjoint(plan model.Plan) {
	seen := make(map[string]struct{}, len(plan.ToAmend)+len(plan.ToCancel))
	check := func(id string) {
		if _, ok := seen[id]; ok {
			panic(fmt.Sprintf("reconcile: order %s referenced twice", id))
		}
		seen[id] = struct{}{}
	}
	for _, a := range plan.ToAmend {
		check(a.OrderID)
	}
	for _, c := range plan.ToCancel {
		check(c.OrderID)
	}
}
