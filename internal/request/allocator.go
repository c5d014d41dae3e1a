package request

import (
	"sort"

	"github.com/medtrack/medtrack/internal/stock"
)

// Allocate plans how to source quantity from the given batches, consuming
// soonest-expiring lots first. Batches without an expiration date sort last;
// ties break on ascending batch id. Only available batches with positive
// quantity participate.
//
// The returned shortfall is zero when the plan covers the full quantity.
// Callers must treat a nonzero shortfall as a failed allocation and apply
// nothing from the plan.
func Allocate(batches []stock.Batch, quantity int) (plan []StockUsed, shortfall int) {
	candidates := make([]stock.Batch, 0, len(batches))
	for _, b := range batches {
		if b.Status == stock.BatchStatusAvailable && b.Quantity > 0 {
			candidates = append(candidates, b)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		switch {
		case a.ExpirationDate == nil && b.ExpirationDate == nil:
			return a.ID < b.ID
		case a.ExpirationDate == nil:
			return false
		case b.ExpirationDate == nil:
			return true
		case a.ExpirationDate.Equal(*b.ExpirationDate):
			return a.ID < b.ID
		default:
			return a.ExpirationDate.Before(*b.ExpirationDate)
		}
	})

	remaining := quantity
	for _, b := range candidates {
		if remaining == 0 {
			break
		}
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, StockUsed{StockBatchID: b.ID, Quantity: take})
		remaining -= take
	}
	return plan, remaining
}
