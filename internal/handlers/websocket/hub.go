package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
)

// ListingsGroup receives every status change, for pages listing many cars.
const ListingsGroup = "listings"

func auctionGroup(auctionID string) string {
	return "auction:" + auctionID
}

// Hub tracks connected clients and the groups they joined, and fans events
// out to them. It satisfies auction.Publisher.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	groups  map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		groups:  make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// unregister removes c from every group and closes its send queue.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	for name, members := range h.groups {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, name)
		}
	}
	h.mu.Unlock()
	c.close()
}

func (h *Hub) join(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.groups[group]
	if !ok {
		members = make(map[*Client]struct{})
		h.groups[group] = members
	}
	members[c] = struct{}{}
}

func (h *Hub) leave(c *Client, group string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if members, ok := h.groups[group]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.groups, group)
		}
	}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// recipients returns the clients an event is routed to, without duplicates.
func (h *Hub) recipients(event types.Event) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	seen := make(map[*Client]struct{})
	var out []*Client
	add := func(c *Client) {
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}

	for c := range h.groups[auctionGroup(event.AuctionID)] {
		add(c)
	}
	switch event.Type {
	case types.EventStatusChanged:
		for c := range h.groups[ListingsGroup] {
			add(c)
		}
	case types.EventAuctionWon:
		for c := range h.clients {
			if c.UserID == event.BidderID {
				add(c)
			}
		}
	}
	return out
}

// Publish delivers event to the clients routed to it. A client whose queue
// is full is disconnected rather than allowed to hold up the others.
func (h *Hub) Publish(_ context.Context, event types.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "error encoding event")
	}
	frame, err := json.Marshal(Message{Type: MessageEvent, Data: payload})
	if err != nil {
		return errors.Wrap(err, "error encoding event frame")
	}

	for _, c := range h.recipients(event) {
		if !c.trySend(frame) {
			log.Warn("Dropping slow client", "user", c.UserID)
			h.unregister(c)
		}
	}
	return nil
}

// Consume fans out events from another instance's bus until ctx ends or the
// channel closes.
func (h *Hub) Consume(ctx context.Context, events <-chan types.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.Publish(ctx, event); err != nil {
				log.Warn("Failed to fan out event", "type", event.Type, "auction", event.AuctionID, "err", err)
			}
		}
	}
}
