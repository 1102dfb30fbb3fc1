package auction

import "github.com/Martin-Hayot/car-auction/pkg/types"

// Resolve picks the winning bid: the highest amount, and among equal amounts
// the earliest placement. Identical timestamps fall back to the bid ID so the
// result never depends on slice order.
func Resolve(bids []types.Bid) (types.Bid, bool) {
	if len(bids) == 0 {
		return types.Bid{}, false
	}
	best := bids[0]
	for _, b := range bids[1:] {
		if beats(b, best) {
			best = b
		}
	}
	return best, true
}

func beats(a, b types.Bid) bool {
	if c := a.Amount.Cmp(b.Amount); c != 0 {
		return c > 0
	}
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.ID < b.ID
}
