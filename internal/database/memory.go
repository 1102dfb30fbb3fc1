package database

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
)

// Memory is an in-process Service with the same version semantics as the
// postgres store. Values are copied in and out so callers never share state.
type Memory struct {
	mu       sync.RWMutex
	users    map[string]types.User
	auctions map[string]types.Auction
	orders   map[string]types.Order
}

func NewMemory() *Memory {
	return &Memory{
		users:    make(map[string]types.User),
		auctions: make(map[string]types.Auction),
		orders:   make(map[string]types.Order),
	}
}

func (m *Memory) Health(context.Context) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]string{
		"status":   "up",
		"message":  "It's healthy",
		"driver":   "memory",
		"auctions": strconv.Itoa(len(m.auctions)),
	}
}

func (m *Memory) Close() error { return nil }

func (m *Memory) GetUserByID(_ context.Context, id string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return types.User{}, errors.UserNotFound
	}
	return u, nil
}

func (m *Memory) GetUserByEmail(_ context.Context, email string) (types.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return types.User{}, errors.UserNotFound
}

func (m *Memory) CreateUser(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return user, nil
}

func (m *Memory) LoadAuction(_ context.Context, id string) (types.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.auctions[id]
	if !ok {
		return types.Auction{}, errors.AuctionNotFound
	}
	return a.Clone(), nil
}

func (m *Memory) ListAuctionsByStatus(_ context.Context, status types.Status) ([]types.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.Auction
	for _, a := range m.auctions {
		if a.Status == status {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.Before(out[j].EndTime) })
	return out, nil
}

func (m *Memory) ListAuctions(_ context.Context) ([]types.Auction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Auction, 0, len(m.auctions))
	for _, a := range m.auctions {
		out = append(out, a.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *Memory) CreateAuction(_ context.Context, a types.Auction) (types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.auctions[a.ID]; exists {
		return types.Auction{}, errors.Conflict
	}
	a.Version = 1
	m.auctions[a.ID] = a.Clone()
	return a, nil
}

func (m *Memory) DeleteAuction(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.auctions[id]; !ok {
		return errors.AuctionNotFound
	}
	delete(m.auctions, id)
	return nil
}

// update must be called with mu held. Bids are never taken from a; they only
// change through AppendBid.
func (m *Memory) update(a types.Auction) (types.Auction, error) {
	cur, ok := m.auctions[a.ID]
	if !ok {
		return types.Auction{}, errors.AuctionNotFound
	}
	if cur.Version != a.Version {
		return types.Auction{}, errors.Conflict
	}
	next := a.Clone()
	next.Bids = cur.Bids
	next.Version = cur.Version + 1
	m.auctions[a.ID] = next
	return next.Clone(), nil
}

func (m *Memory) SaveAuction(_ context.Context, a types.Auction) (types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update(a)
}

func (m *Memory) AppendBid(_ context.Context, a types.Auction, bid types.Bid) (types.Auction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, err := m.update(a)
	if err != nil {
		return types.Auction{}, err
	}
	stored.Bids = append(stored.Bids, bid)
	cur := m.auctions[a.ID]
	cur.Bids = append(append([]types.Bid(nil), cur.Bids...), bid)
	m.auctions[a.ID] = cur
	return stored, nil
}

func (m *Memory) CompleteDirectSale(_ context.Context, a types.Auction, order types.Order) (types.Auction, types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.AuctionID == order.AuctionID && o.BuyerID == order.BuyerID && o.Status != types.OrderCancelled {
			return types.Auction{}, types.Order{}, errors.WrapCode(errors.ErrNotAvailable, errors.NotAvailable, "buyer already has an active order for this car")
		}
	}
	stored, err := m.update(a)
	if err != nil {
		return types.Auction{}, types.Order{}, err
	}
	m.orders[order.ID] = order
	return stored, order, nil
}

func (m *Memory) GetOrder(_ context.Context, id string) (types.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return types.Order{}, errors.OrderNotFound
	}
	return o, nil
}

func (m *Memory) UpdateOrderStatus(_ context.Context, id string, from, to types.OrderStatus) (types.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return types.Order{}, errors.OrderNotFound
	}
	if o.Status != from {
		return types.Order{}, errors.Conflict
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	m.orders[id] = o
	return o, nil
}

// Seed stores auctions as-is, keeping their status, bids and winner. It is
// meant for fixtures and demo data, not for the engine.
func (m *Memory) Seed(auctions ...types.Auction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range auctions {
		if a.Version == 0 {
			a.Version = 1
		}
		m.auctions[a.ID] = a.Clone()
	}
}
