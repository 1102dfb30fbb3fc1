package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type EventType string

const (
	EventStatusChanged   EventType = "StatusChanged"
	EventAuctionExtended EventType = "AuctionExtended"
	EventBidPlaced       EventType = "BidPlaced"
	EventAuctionWon      EventType = "AuctionWon"
)

// Event is the envelope published to subscribers of an auction. Only the
// fields relevant to Type are set.
type Event struct {
	Type       EventType        `json:"type"`
	AuctionID  string           `json:"auctionId"`
	NewStatus  Status           `json:"newStatus,omitempty"`
	BidderID   string           `json:"bidderId,omitempty"`
	Amount     *decimal.Decimal `json:"amount,omitempty"`
	Extended   bool             `json:"extended,omitempty"`
	EndTime    *time.Time       `json:"endTime,omitempty"`
	NewEndTime *time.Time       `json:"newEndTime,omitempty"`
	OccurredAt time.Time        `json:"occurredAt"`
}

func StatusChanged(auctionID string, status Status, at time.Time) Event {
	return Event{Type: EventStatusChanged, AuctionID: auctionID, NewStatus: status, OccurredAt: at}
}

func AuctionExtended(auctionID string, newEnd time.Time, at time.Time) Event {
	return Event{Type: EventAuctionExtended, AuctionID: auctionID, NewEndTime: &newEnd, OccurredAt: at}
}

func BidPlaced(bid Bid, extended bool, endTime time.Time) Event {
	amount := bid.Amount
	return Event{
		Type:       EventBidPlaced,
		AuctionID:  bid.AuctionID,
		BidderID:   bid.BidderID,
		Amount:     &amount,
		Extended:   extended,
		EndTime:    &endTime,
		OccurredAt: bid.PlacedAt,
	}
}

func AuctionWon(bid Bid, at time.Time) Event {
	amount := bid.Amount
	return Event{
		Type:       EventAuctionWon,
		AuctionID:  bid.AuctionID,
		BidderID:   bid.BidderID,
		Amount:     &amount,
		OccurredAt: at,
	}
}
