package auction

import (
	"testing"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/stretchr/testify/require"
)

func statuses(ev Evaluation) []types.Status {
	var out []types.Status
	for _, e := range ev.Events {
		if e.Type == types.EventStatusChanged {
			out = append(out, e.NewStatus)
		}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	t.Run("upcoming starts once start time is reached", func(t *testing.T) {
		a := ongoing()
		a.Status = types.StatusUpcomingAuction
		a.StartTime = t0

		require.False(t, Evaluate(a, t0.Add(-time.Nanosecond)).Changed())

		ev := Evaluate(a, t0)
		require.Equal(t, types.StatusOngoingAuction, ev.Auction.Status)
		require.Equal(t, []Transition{{types.StatusUpcomingAuction, types.StatusOngoingAuction}}, ev.Transitions)
		require.Equal(t, []types.Status{types.StatusOngoingAuction}, statuses(ev))
	})

	t.Run("ended with bids is sold to the resolved winner", func(t *testing.T) {
		a := ongoing()
		a.EndTime = t0.Add(-time.Second)
		a.Bids = []types.Bid{bid("1", "A", "1200", t0.Add(-time.Hour)), bid("2", "B", "1500", t0.Add(-time.Minute))}

		ev := Evaluate(a, t0)
		require.Equal(t, types.StatusSold, ev.Auction.Status)
		require.NotNil(t, ev.Auction.WinnerID)
		require.Equal(t, "B", *ev.Auction.WinnerID)
		require.Len(t, ev.Events, 2)
		require.Equal(t, types.EventAuctionWon, ev.Events[1].Type)
		require.Equal(t, "B", ev.Events[1].BidderID)
		require.Equal(t, "1500", ev.Events[1].Amount.String())
	})

	t.Run("ended without bids is not sold", func(t *testing.T) {
		a := ongoing()
		a.EndTime = t0.Add(-time.Second)

		ev := Evaluate(a, t0)
		require.Equal(t, types.StatusNotSold, ev.Auction.Status)
		require.Nil(t, ev.Auction.WinnerID)
		require.Equal(t, []types.Status{types.StatusNotSold}, statuses(ev))
	})

	t.Run("end time itself closes the auction", func(t *testing.T) {
		a := ongoing()
		a.EndTime = t0
		require.Equal(t, types.StatusNotSold, Evaluate(a, t0).Auction.Status)
	})

	t.Run("elapsed upcoming auction chains to terminal", func(t *testing.T) {
		a := ongoing()
		a.Status = types.StatusUpcomingAuction
		a.StartTime = t0.Add(-2 * time.Hour)
		a.EndTime = t0.Add(-time.Hour)

		ev := Evaluate(a, t0)
		require.Equal(t, types.StatusNotSold, ev.Auction.Status)
		require.Equal(t, []types.Status{types.StatusOngoingAuction, types.StatusNotSold}, statuses(ev))
	})

	t.Run("states outside the timed lifecycle are untouched", func(t *testing.T) {
		for _, s := range []types.Status{types.StatusPendingApproval, types.StatusSold, types.StatusNotSold, types.StatusAvailableForSale} {
			a := ongoing()
			a.Status = s
			a.EndTime = t0.Add(-time.Hour)
			require.False(t, Evaluate(a, t0).Changed(), s)
		}

		direct := ongoing()
		direct.SaleType = types.SaleTypeDirectSale
		direct.EndTime = t0.Add(-time.Hour)
		require.False(t, Evaluate(direct, t0).Changed())
	})

	t.Run("input is not mutated", func(t *testing.T) {
		a := ongoing()
		a.EndTime = t0.Add(-time.Second)
		a.Bids = []types.Bid{bid("1", "A", "1200", t0.Add(-time.Hour))}

		_ = Evaluate(a, t0)
		require.Equal(t, types.StatusOngoingAuction, a.Status)
		require.Nil(t, a.WinnerID)
	})

	t.Run("evaluating a result again is a no-op", func(t *testing.T) {
		a := ongoing()
		a.EndTime = t0.Add(-time.Second)
		first := Evaluate(a, t0)
		require.False(t, Evaluate(first.Auction, t0).Changed())
	})
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	require.True(t, CanTransition(types.StatusPendingApproval, types.StatusUpcomingAuction))
	require.True(t, CanTransition(types.StatusPendingApproval, types.StatusAvailableForSale))
	require.True(t, CanTransition(types.StatusAvailableForSale, types.StatusSold))
	require.True(t, CanTransition(types.StatusSold, types.StatusNotSold))

	require.False(t, CanTransition(types.StatusOngoingAuction, types.StatusUpcomingAuction))
	require.False(t, CanTransition(types.StatusNotSold, types.StatusSold))
	require.False(t, CanTransition(types.StatusUpcomingAuction, types.StatusSold))
	require.False(t, CanTransition(types.StatusAvailableForSale, types.StatusOngoingAuction))
}

func TestPolicy_Extend(t *testing.T) {
	t.Parallel()

	p := DefaultPolicy()
	end := t0

	a := types.Auction{EndTime: end}
	require.True(t, p.Extend(&a, end.Add(-30*time.Second)))
	require.Equal(t, end.Add(15*time.Second), a.EndTime)

	// A later bid inside the new last minute extends again.
	require.True(t, p.Extend(&a, end.Add(10*time.Second)))
	require.Equal(t, end.Add(30*time.Second), a.EndTime)

	b := types.Auction{EndTime: end}
	require.False(t, p.Extend(&b, end.Add(-61*time.Second)))
	require.True(t, p.Extend(&b, end.Add(-60*time.Second)))

	c := types.Auction{EndTime: end}
	require.False(t, p.Extend(&c, end), "no extension once the end is reached")
	require.Equal(t, end, c.EndTime)
}
