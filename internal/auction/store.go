package auction

import (
	"context"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/types"
)

// Store is the persistence the engine depends on. Writes that carry an
// auction are checked against its Version and fail with errors.Conflict when
// the stored row moved on; successful writes return the stored auction with
// its new Version.
type Store interface {
	LoadAuction(ctx context.Context, id string) (types.Auction, error)
	SaveAuction(ctx context.Context, a types.Auction) (types.Auction, error)
	ListAuctionsByStatus(ctx context.Context, status types.Status) ([]types.Auction, error)
	ListAuctions(ctx context.Context) ([]types.Auction, error)
	// AppendBid persists bid and a.EndTime in one write.
	AppendBid(ctx context.Context, a types.Auction, bid types.Bid) (types.Auction, error)
	CreateAuction(ctx context.Context, a types.Auction) (types.Auction, error)
	DeleteAuction(ctx context.Context, id string) error
	// CompleteDirectSale saves a and inserts order atomically. A second
	// active order for the same auction and buyer fails with errors.NotAvailable.
	CompleteDirectSale(ctx context.Context, a types.Auction, order types.Order) (types.Auction, types.Order, error)
	GetOrder(ctx context.Context, id string) (types.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to types.OrderStatus) (types.Order, error)
}

type Accounts interface {
	GetUserByID(ctx context.Context, id string) (types.User, error)
}

// Locker serializes writers of the same auction. The returned unlock func is
// safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Publisher delivers domain events. Delivery is best effort; a failed publish
// never rolls back the state change that produced it.
type Publisher interface {
	Publish(ctx context.Context, event types.Event) error
}

type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, types.Event) error { return nil }

