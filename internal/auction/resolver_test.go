package auction

import (
	"testing"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func bid(id, bidder, amount string, at time.Time) types.Bid {
	return types.Bid{ID: id, AuctionID: "a1", BidderID: bidder, Amount: decimal.RequireFromString(amount), PlacedAt: at}
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		bids       []types.Bid
		wantBidder string
		wantOK     bool
	}{
		{name: "no bids", wantOK: false},
		{
			name:       "highest amount wins",
			bids:       []types.Bid{bid("1", "A", "1200", t0), bid("2", "B", "1500", t0.Add(time.Second))},
			wantBidder: "B",
			wantOK:     true,
		},
		{
			name:       "earlier placement wins a tie",
			bids:       []types.Bid{bid("1", "A", "500", t0.Add(10*time.Second)), bid("2", "B", "500", t0.Add(5*time.Second))},
			wantBidder: "B",
			wantOK:     true,
		},
		{
			name:       "decimal scale does not matter",
			bids:       []types.Bid{bid("1", "A", "500.0", t0), bid("2", "B", "500.00", t0.Add(time.Second))},
			wantBidder: "A",
			wantOK:     true,
		},
		{
			name:       "identical timestamps fall back to bid id",
			bids:       []types.Bid{bid("z", "A", "700", t0), bid("m", "B", "700", t0)},
			wantBidder: "B",
			wantOK:     true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := Resolve(tt.bids)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.wantBidder, got.BidderID)
		})
	}
}

func TestResolve_OrderIndependent(t *testing.T) {
	t.Parallel()

	bids := []types.Bid{
		bid("1", "A", "900", t0),
		bid("2", "B", "1100", t0.Add(2*time.Second)),
		bid("3", "C", "1100", t0.Add(time.Second)),
		bid("4", "D", "1000", t0.Add(3*time.Second)),
	}
	first, _ := Resolve(bids)
	again, _ := Resolve(bids)
	require.Equal(t, first, again)

	reversed := make([]types.Bid, len(bids))
	for i, b := range bids {
		reversed[len(bids)-1-i] = b
	}
	flipped, _ := Resolve(reversed)
	require.Equal(t, first, flipped)
	require.Equal(t, "C", first.BidderID)
}
