package auction_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Martin-Hayot/car-auction/internal/auction"
	"github.com/Martin-Hayot/car-auction/internal/lock"
	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestPlaceBid_AcceptsAndPublishes(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.Seed(ongoingAuction("a1"))
	ctx := context.Background()

	res, err := f.engine.PlaceBid(ctx, "a1", "A", money("1200"))
	require.NoError(t, err)
	require.True(t, res.Accepted())
	require.False(t, res.Extended)

	stored := f.load(t, "a1")
	require.Len(t, stored.Bids, 1)
	require.Equal(t, "A", stored.Bids[0].BidderID)
	require.Equal(t, epoch, stored.Bids[0].PlacedAt)

	placed := f.events.ofType(types.EventBidPlaced)
	require.Len(t, placed, 1)
	require.Equal(t, "1200", placed[0].Amount.String())
	require.Empty(t, f.events.ofType(types.EventAuctionExtended))
}

func TestPlaceBid_Rejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.Seed(ongoingAuction("a1"))
	ctx := context.Background()

	res, err := f.engine.PlaceBid(ctx, "a1", "A", money("900"))
	require.NoError(t, err)
	require.Equal(t, auction.Rejected, res.Outcome)
	require.Equal(t, auction.BelowStartPrice, res.Reason)

	_, err = f.engine.PlaceBid(ctx, "a1", "A", money("1500"))
	require.NoError(t, err)

	res, err = f.engine.PlaceBid(ctx, "a1", "B", money("1500"))
	require.NoError(t, err)
	require.Equal(t, auction.NotHighEnough, res.Reason)

	res, err = f.engine.PlaceBid(ctx, "a1", "ghost", money("5000"))
	require.NoError(t, err)
	require.Equal(t, auction.UnknownBidder, res.Reason)

	require.Len(t, f.load(t, "a1").Bids, 1)
	require.Len(t, f.events.ofType(types.EventBidPlaced), 1)
}

func TestPlaceBid_FractionsOfACent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.Seed(ongoingAuction("a1"))
	ctx := context.Background()

	res, err := f.engine.PlaceBid(ctx, "a1", "A", money("1000.00"))
	require.NoError(t, err)
	require.True(t, res.Accepted())

	// 1000.004 would be stored as 1000.00 and tie the current highest.
	_, err = f.engine.PlaceBid(ctx, "a1", "B", money("1000.004"))
	require.ErrorIs(t, err, errors.InvalidAmount)

	res, err = f.engine.PlaceBid(ctx, "a1", "B", money("1000.010"))
	require.NoError(t, err)
	require.True(t, res.Accepted())

	bids := f.load(t, "a1").Bids
	require.Len(t, bids, 2)
	require.Equal(t, "B", bids[1].BidderID)
	require.Len(t, f.events.ofType(types.EventBidPlaced), 2)
}

func TestPlaceBid_UnknownAuction(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.engine.PlaceBid(context.Background(), "missing", "A", money("1200"))
	require.ErrorIs(t, err, errors.AuctionNotFound)
}

func TestPlaceBid_StaleStatusPastEnd(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := ongoingAuction("a1")
	a.EndTime = epoch.Add(-time.Second)
	a.Bids = []types.Bid{{ID: "b1", AuctionID: "a1", BidderID: "A", Amount: money("1200"), PlacedAt: epoch.Add(-time.Minute)}}
	f.store.Seed(a)

	res, err := f.engine.PlaceBid(context.Background(), "a1", "B", money("5000"))
	require.NoError(t, err)
	require.Equal(t, auction.Rejected, res.Outcome)
	require.Equal(t, auction.NotOngoing, res.Reason)

	// The overdue close was applied on the way.
	stored := f.load(t, "a1")
	require.Equal(t, types.StatusSold, stored.Status)
	require.Equal(t, "A", *stored.WinnerID)
	require.Len(t, stored.Bids, 1)
	require.Len(t, f.events.ofType(types.EventAuctionWon), 1)
}

func TestPlaceBid_AntiSniping(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	end := epoch.Add(30 * time.Second)
	a := ongoingAuction("a1")
	a.EndTime = end
	f.store.Seed(a)
	ctx := context.Background()

	res, err := f.engine.PlaceBid(ctx, "a1", "A", money("1100"))
	require.NoError(t, err)
	require.True(t, res.Extended)
	require.Equal(t, end.Add(15*time.Second), res.EndTime)

	f.clock.Set(end.Add(10 * time.Second))
	res, err = f.engine.PlaceBid(ctx, "a1", "B", money("1200"))
	require.NoError(t, err)
	require.True(t, res.Accepted())
	require.True(t, res.Extended)
	require.Equal(t, end.Add(30*time.Second), res.EndTime)

	require.Equal(t, end.Add(30*time.Second), f.load(t, "a1").EndTime)
	extended := f.events.ofType(types.EventAuctionExtended)
	require.Len(t, extended, 2)
	require.Equal(t, end.Add(30*time.Second), *extended[1].NewEndTime)
}

func TestPlaceBid_ConcurrentBidsStayIncreasing(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := ongoingAuction("a1")
	a.Bids = []types.Bid{{ID: "b0", AuctionID: "a1", BidderID: "C", Amount: money("900"), PlacedAt: epoch.Add(-time.Minute)}}
	a.StartPrice = money("500")
	f.store.Seed(a)

	var wg sync.WaitGroup
	results := make([]auction.BidResult, 2)
	for i, amount := range []string{"1000", "1100"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.PlaceBid(context.Background(), "a1", "A", money(amount))
			if err != nil {
				t.Error(err)
			}
			results[i] = res
		}()
	}
	wg.Wait()

	stored := f.load(t, "a1")
	highest, ok := stored.HighestBid()
	require.True(t, ok)
	require.Equal(t, "1100", highest.Amount.String())
	require.True(t, results[1].Accepted())
	for i := 1; i < len(stored.Bids); i++ {
		require.True(t, stored.Bids[i].Amount.GreaterThan(stored.Bids[i-1].Amount))
	}
	if !results[0].Accepted() {
		require.Equal(t, auction.NotHighEnough, results[0].Reason)
	}
}

func TestPlaceBid_ManyConcurrentBidders(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.Seed(ongoingAuction("a1"))

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			amount := money("1000").Add(decimal.NewFromInt(int64(10 * i)))
			if _, err := f.engine.PlaceBid(context.Background(), "a1", "B", amount); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	bids := f.load(t, "a1").Bids
	require.NotEmpty(t, bids)
	for i := 1; i < len(bids); i++ {
		require.True(t, bids[i].Amount.GreaterThan(bids[i-1].Amount), "bid %d not above previous", i)
	}
	require.Len(t, f.events.ofType(types.EventBidPlaced), len(bids))
}

// conflictingStore reports a conflict on every AppendBid.
type conflictingStore struct {
	auction.Store
	appends int
	mu      sync.Mutex
}

func (s *conflictingStore) AppendBid(context.Context, types.Auction, types.Bid) (types.Auction, error) {
	s.mu.Lock()
	s.appends++
	s.mu.Unlock()
	return types.Auction{}, errors.Conflict
}

func TestPlaceBid_RetryExhausted(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.Seed(ongoingAuction("a1"))
	store := &conflictingStore{Store: f.store}
	engine := auction.NewEngine(store, f.store, lock.NewKeyed(), f.events, f.clock, testConfig())

	_, err := engine.PlaceBid(context.Background(), "a1", "A", money("1200"))
	require.ErrorIs(t, err, errors.RetryExhausted)
	require.Equal(t, 3, store.appends)
	require.Empty(t, f.load(t, "a1").Bids)
	require.Empty(t, f.events.ofType(types.EventBidPlaced))
}

// lockedLocker never grants the lock.
type lockedLocker struct{}

func (lockedLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	<-ctx.Done()
	return nil, errors.WrapCode(errors.ErrLockTimeout, ctx.Err(), "lock "+key)
}

func TestPlaceBid_LockTimeout(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.store.Seed(ongoingAuction("a1"))
	cfg := testConfig()
	cfg.LockTimeout = 20 * time.Millisecond
	engine := auction.NewEngine(f.store, f.store, lockedLocker{}, f.events, f.clock, cfg)

	_, err := engine.PlaceBid(context.Background(), "a1", "A", money("1200"))
	require.ErrorIs(t, err, errors.LockTimeout)
}

func TestEvaluateAuction(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := ongoingAuction("a1")
	a.EndTime = epoch.Add(-time.Second)
	a.Bids = []types.Bid{
		{ID: "b1", AuctionID: "a1", BidderID: "A", Amount: money("1200"), PlacedAt: epoch.Add(-2 * time.Minute)},
		{ID: "b2", AuctionID: "a1", BidderID: "B", Amount: money("1500"), PlacedAt: epoch.Add(-time.Minute)},
	}
	f.store.Seed(a)
	ctx := context.Background()

	changed, err := f.engine.EvaluateAuction(ctx, "a1")
	require.NoError(t, err)
	require.True(t, changed)

	stored := f.load(t, "a1")
	require.Equal(t, types.StatusSold, stored.Status)
	require.Equal(t, "B", *stored.WinnerID)

	won := f.events.ofType(types.EventAuctionWon)
	require.Len(t, won, 1)
	require.Equal(t, "B", won[0].BidderID)
	require.Equal(t, "1500", won[0].Amount.String())

	changed, err = f.engine.EvaluateAuction(ctx, "a1")
	require.NoError(t, err)
	require.False(t, changed)

	_, err = f.engine.EvaluateAuction(ctx, "missing")
	require.ErrorIs(t, err, errors.AuctionNotFound)
}

func TestEvaluateAuction_NoBidsNotSold(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := ongoingAuction("a1")
	a.EndTime = epoch.Add(-time.Second)
	f.store.Seed(a)

	changed, err := f.engine.EvaluateAuction(context.Background(), "a1")
	require.NoError(t, err)
	require.True(t, changed)

	stored := f.load(t, "a1")
	require.Equal(t, types.StatusNotSold, stored.Status)
	require.Nil(t, stored.WinnerID)
	require.Empty(t, f.events.ofType(types.EventAuctionWon))
}

func TestEvaluateAllAuctions_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	starting := ongoingAuction("starting")
	starting.Status = types.StatusUpcomingAuction
	starting.StartTime = epoch.Add(-time.Minute)

	ending := ongoingAuction("ending")
	ending.EndTime = epoch.Add(-time.Minute)

	future := ongoingAuction("future")
	future.Status = types.StatusUpcomingAuction
	future.StartTime = epoch.Add(time.Hour)
	future.EndTime = epoch.Add(2 * time.Hour)

	pending := ongoingAuction("pending")
	pending.Status = types.StatusPendingApproval

	f.store.Seed(starting, ending, future, pending, ongoingAuction("running"))
	ctx := context.Background()

	n, err := f.engine.EvaluateAllAuctions(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = f.engine.EvaluateAllAuctions(ctx)
	require.NoError(t, err)
	require.Zero(t, n)

	require.Equal(t, types.StatusOngoingAuction, f.load(t, "starting").Status)
	require.Equal(t, types.StatusNotSold, f.load(t, "ending").Status)
	require.Equal(t, types.StatusUpcomingAuction, f.load(t, "future").Status)
	require.Equal(t, types.StatusPendingApproval, f.load(t, "pending").Status)
}

func TestResolveWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	a := ongoingAuction("a1")
	a.Bids = []types.Bid{
		{ID: "b1", AuctionID: "a1", BidderID: "A", Amount: money("500"), PlacedAt: epoch.Add(10 * time.Second)},
		{ID: "b2", AuctionID: "a1", BidderID: "B", Amount: money("500"), PlacedAt: epoch.Add(5 * time.Second)},
	}
	f.store.Seed(a, ongoingAuction("empty"))
	ctx := context.Background()

	winner, ok, err := f.engine.ResolveWinner(ctx, "a1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "B", winner)

	_, ok, err = f.engine.ResolveWinner(ctx, "empty")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestReconcileWinners(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	wrong := ongoingAuction("wrong")
	wrong.Status = types.StatusSold
	wrongWinner := "A"
	wrong.WinnerID = &wrongWinner
	wrong.Bids = []types.Bid{
		{ID: "b1", AuctionID: "wrong", BidderID: "A", Amount: money("1200"), PlacedAt: epoch.Add(-2 * time.Minute)},
		{ID: "b2", AuctionID: "wrong", BidderID: "B", Amount: money("1500"), PlacedAt: epoch.Add(-time.Minute)},
	}

	empty := ongoingAuction("empty")
	empty.Status = types.StatusSold
	someone := "C"
	empty.WinnerID = &someone

	right := ongoingAuction("right")
	right.Status = types.StatusSold
	rightWinner := "A"
	right.WinnerID = &rightWinner
	right.Bids = []types.Bid{{ID: "b3", AuctionID: "right", BidderID: "A", Amount: money("1100"), PlacedAt: epoch}}

	direct := ongoingAuction("direct")
	direct.SaleType = types.SaleTypeDirectSale
	direct.Status = types.StatusSold

	f.store.Seed(wrong, empty, right, direct)
	ctx := context.Background()

	fixed, err := f.engine.ReconcileWinners(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, fixed)

	require.Equal(t, "B", *f.load(t, "wrong").WinnerID)
	demoted := f.load(t, "empty")
	require.Equal(t, types.StatusNotSold, demoted.Status)
	require.Nil(t, demoted.WinnerID)
	require.Equal(t, "A", *f.load(t, "right").WinnerID)
	require.Equal(t, types.StatusSold, f.load(t, "direct").Status)

	fixed, err = f.engine.ReconcileWinners(ctx)
	require.NoError(t, err)
	require.Zero(t, fixed)
}

func TestStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	pending := ongoingAuction("p")
	pending.Status = types.StatusPendingApproval
	f.store.Seed(ongoingAuction("o1"), ongoingAuction("o2"), pending)

	stats, err := f.engine.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats[types.StatusOngoingAuction])
	require.Equal(t, 1, stats[types.StatusPendingApproval])
	require.Equal(t, 0, stats[types.StatusSold])
	require.Len(t, stats, len(types.Statuses))
}

