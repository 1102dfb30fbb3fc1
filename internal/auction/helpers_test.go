package auction_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Martin-Hayot/car-auction/internal/auction"
	"github.com/Martin-Hayot/car-auction/internal/database"
	"github.com/Martin-Hayot/car-auction/internal/lock"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type recorder struct {
	mu     sync.Mutex
	events []types.Event
}

func (r *recorder) Publish(_ context.Context, e types.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) ofType(t types.EventType) []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Event
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store  *database.Memory
	clock  *fakeClock
	events *recorder
	engine *auction.Engine
}

func testConfig() auction.Config {
	cfg := auction.DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.LockTimeout = time.Second
	return cfg
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  database.NewMemory(),
		clock:  &fakeClock{now: epoch},
		events: &recorder{},
	}
	f.engine = auction.NewEngine(f.store, f.store, lock.NewKeyed(), f.events, f.clock, testConfig())
	for _, id := range []string{"A", "B", "C"} {
		_, err := f.store.CreateUser(context.Background(), types.User{ID: id, Email: id + "@example.com", Role: "user"})
		require.NoError(t, err)
	}
	return f
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ongoingAuction(id string) types.Auction {
	return types.Auction{
		ID:         id,
		SellerID:   "seller",
		Title:      "2019 Volvo V60",
		StartPrice: money("1000"),
		StartTime:  epoch.Add(-time.Hour),
		EndTime:    epoch.Add(time.Hour),
		Status:     types.StatusOngoingAuction,
		SaleType:   types.SaleTypeAuction,
	}
}

func (f *fixture) load(t *testing.T, id string) types.Auction {
	t.Helper()
	a, err := f.store.LoadAuction(context.Background(), id)
	require.NoError(t, err)
	return a
}
