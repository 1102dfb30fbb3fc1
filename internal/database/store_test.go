package database

import (
	"context"
	"testing"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newAuction() types.Auction {
	return types.Auction{
		ID:          uuid.NewString(),
		SellerID:    "seller",
		Title:       "2017 BMW 320d Touring",
		Description: "one owner",
		StartPrice:  decimal.RequireFromString("9500.00"),
		StartTime:   start,
		EndTime:     start.Add(24 * time.Hour),
		Status:      types.StatusOngoingAuction,
		SaleType:    types.SaleTypeAuction,
		CreatedAt:   start,
		UpdatedAt:   start,
	}
}

// runStoreContract checks the behaviour every Service implementation shares.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Service) {
	ctx := context.Background()

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		u, err := s.CreateUser(ctx, types.User{ID: uuid.NewString(), Name: "Ada", Email: uuid.NewString() + "@example.com", Role: "user"})
		require.NoError(t, err)

		got, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		require.Equal(t, u.Email, got.Email)

		got, err = s.GetUserByEmail(ctx, u.Email)
		require.NoError(t, err)
		require.Equal(t, u.ID, got.ID)

		_, err = s.GetUserByID(ctx, "nobody")
		require.ErrorIs(t, err, errors.UserNotFound)
	})

	t.Run("auction round trip", func(t *testing.T) {
		s := newStore(t)
		a := newAuction()
		created, err := s.CreateAuction(ctx, a)
		require.NoError(t, err)
		require.Equal(t, int64(1), created.Version)

		got, err := s.LoadAuction(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, a.Title, got.Title)
		require.True(t, a.StartPrice.Equal(got.StartPrice))
		require.True(t, a.EndTime.Equal(got.EndTime))
		require.Equal(t, time.UTC, got.EndTime.Location())
		require.Empty(t, got.Bids)

		_, err = s.LoadAuction(ctx, "missing")
		require.ErrorIs(t, err, errors.AuctionNotFound)
	})

	t.Run("save is version checked", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateAuction(ctx, newAuction())
		require.NoError(t, err)

		first := a
		first.Status = types.StatusNotSold
		saved, err := s.SaveAuction(ctx, first)
		require.NoError(t, err)
		require.Equal(t, int64(2), saved.Version)

		stale := a
		stale.Status = types.StatusSold
		_, err = s.SaveAuction(ctx, stale)
		require.ErrorIs(t, err, errors.Conflict)

		got, err := s.LoadAuction(ctx, a.ID)
		require.NoError(t, err)
		require.Equal(t, types.StatusNotSold, got.Status)

		ghost := newAuction()
		_, err = s.SaveAuction(ctx, ghost)
		require.ErrorIs(t, err, errors.AuctionNotFound)
	})

	t.Run("append bid persists end time and bid together", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateAuction(ctx, newAuction())
		require.NoError(t, err)

		bid := types.Bid{ID: uuid.NewString(), AuctionID: a.ID, BidderID: "u1", Amount: decimal.RequireFromString("10000.50"), PlacedAt: start.Add(time.Minute)}
		a.EndTime = a.EndTime.Add(15 * time.Second)
		stored, err := s.AppendBid(ctx, a, bid)
		require.NoError(t, err)
		require.Len(t, stored.Bids, 1)

		got, err := s.LoadAuction(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, got.Bids, 1)
		require.True(t, bid.Amount.Equal(got.Bids[0].Amount))
		require.True(t, a.EndTime.Equal(got.EndTime))

		// The same stale version cannot append twice.
		_, err = s.AppendBid(ctx, a, types.Bid{ID: uuid.NewString(), AuctionID: a.ID, BidderID: "u2", Amount: decimal.NewFromInt(11000), PlacedAt: start})
		require.ErrorIs(t, err, errors.Conflict)

		got, err = s.LoadAuction(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, got.Bids, 1)
	})

	t.Run("list by status", func(t *testing.T) {
		s := newStore(t)
		ongoing, err := s.CreateAuction(ctx, newAuction())
		require.NoError(t, err)
		upcoming := newAuction()
		upcoming.Status = types.StatusUpcomingAuction
		_, err = s.CreateAuction(ctx, upcoming)
		require.NoError(t, err)

		list, err := s.ListAuctionsByStatus(ctx, types.StatusOngoingAuction)
		require.NoError(t, err)
		var ids []string
		for _, a := range list {
			ids = append(ids, a.ID)
		}
		require.Contains(t, ids, ongoing.ID)
		require.NotContains(t, ids, upcoming.ID)
	})

	t.Run("direct sale and orders", func(t *testing.T) {
		s := newStore(t)
		fp := decimal.NewFromInt(15000)
		a := newAuction()
		a.SaleType = types.SaleTypeDirectSale
		a.Status = types.StatusAvailableForSale
		a.FixedPrice = &fp
		a.StartPrice = fp
		a, err := s.CreateAuction(ctx, a)
		require.NoError(t, err)

		buyer := "buyer-1"
		a.Status = types.StatusSold
		a.BuyerID = &buyer
		order := types.Order{
			ID: uuid.NewString(), AuctionID: a.ID, BuyerID: buyer, PurchasePrice: fp,
			Status: types.OrderPending, FullName: "B. Uyer", CreatedAt: start, UpdatedAt: start,
		}
		stored, created, err := s.CompleteDirectSale(ctx, a, order)
		require.NoError(t, err)
		require.Equal(t, types.StatusSold, stored.Status)
		require.Equal(t, order.ID, created.ID)

		got, err := s.GetOrder(ctx, order.ID)
		require.NoError(t, err)
		require.True(t, fp.Equal(got.PurchasePrice))

		updated, err := s.UpdateOrderStatus(ctx, order.ID, types.OrderPending, types.OrderConfirmed)
		require.NoError(t, err)
		require.Equal(t, types.OrderConfirmed, updated.Status)

		_, err = s.UpdateOrderStatus(ctx, order.ID, types.OrderPending, types.OrderCancelled)
		require.ErrorIs(t, err, errors.Conflict)

		_, err = s.GetOrder(ctx, "missing")
		require.ErrorIs(t, err, errors.OrderNotFound)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		a, err := s.CreateAuction(ctx, newAuction())
		require.NoError(t, err)
		require.NoError(t, s.DeleteAuction(ctx, a.ID))
		require.ErrorIs(t, s.DeleteAuction(ctx, a.ID), errors.AuctionNotFound)
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) Service { return NewMemory() })
}

func TestMemory_DuplicateActiveOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	a, err := m.CreateAuction(ctx, newAuction())
	require.NoError(t, err)

	order := types.Order{ID: "o1", AuctionID: a.ID, BuyerID: "b", Status: types.OrderPending}
	a, _, err = m.CompleteDirectSale(ctx, a, order)
	require.NoError(t, err)

	order.ID = "o2"
	_, _, err = m.CompleteDirectSale(ctx, a, order)
	require.ErrorIs(t, err, errors.NotAvailable)
}
