package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPendingApproval  Status = "PendingApproval"
	StatusUpcomingAuction  Status = "UpcomingAuction"
	StatusOngoingAuction   Status = "OngoingAuction"
	StatusSold             Status = "Sold"
	StatusNotSold          Status = "NotSold"
	StatusAvailableForSale Status = "AvailableForSale"
)

// Statuses lists every auction status in lifecycle order.
var Statuses = []Status{
	StatusPendingApproval,
	StatusUpcomingAuction,
	StatusOngoingAuction,
	StatusAvailableForSale,
	StatusSold,
	StatusNotSold,
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusSold || s == StatusNotSold
}

func (s Status) Valid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

type SaleType string

const (
	SaleTypeAuction    SaleType = "Auction"
	SaleTypeDirectSale SaleType = "DirectSale"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderConfirmed OrderStatus = "Confirmed"
	OrderCompleted OrderStatus = "Completed"
	OrderCancelled OrderStatus = "Cancelled"
)

type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"-"`
	Role     string `json:"role"`
}

// Auction is a vehicle listed either for timed auction or direct sale.
// Version is the optimistic-concurrency token checked on every save.
type Auction struct {
	ID          string           `json:"id"`
	SellerID    string           `json:"sellerId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	StartPrice  decimal.Decimal  `json:"startPrice"`
	FixedPrice  *decimal.Decimal `json:"fixedPrice,omitempty"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
	Status      Status           `json:"status"`
	SaleType    SaleType         `json:"saleType"`
	WinnerID    *string          `json:"winnerId,omitempty"`
	BuyerID     *string          `json:"buyerId,omitempty"`
	Bids        []Bid            `json:"bids"`
	Version     int64            `json:"version"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
}

// HighestBid returns the bid with the greatest amount. Accepted amounts are
// strictly increasing, so the first maximum found is the only one.
func (a Auction) HighestBid() (Bid, bool) {
	if len(a.Bids) == 0 {
		return Bid{}, false
	}
	highest := a.Bids[0]
	for _, b := range a.Bids[1:] {
		if b.Amount.GreaterThan(highest.Amount) {
			highest = b
		}
	}
	return highest, true
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (a Auction) Clone() Auction {
	c := a
	if a.FixedPrice != nil {
		fp := *a.FixedPrice
		c.FixedPrice = &fp
	}
	if a.WinnerID != nil {
		w := *a.WinnerID
		c.WinnerID = &w
	}
	if a.BuyerID != nil {
		b := *a.BuyerID
		c.BuyerID = &b
	}
	if a.Bids != nil {
		c.Bids = append([]Bid(nil), a.Bids...)
	}
	return c
}

// Bid is immutable once persisted.
type Bid struct {
	ID        string          `json:"id"`
	AuctionID string          `json:"auctionId"`
	BidderID  string          `json:"bidderId"`
	Amount    decimal.Decimal `json:"amount"`
	PlacedAt  time.Time       `json:"placedAt"`
}

// Order records a direct-sale purchase.
type Order struct {
	ID             string          `json:"id"`
	AuctionID      string          `json:"auctionId"`
	BuyerID        string          `json:"buyerId"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice"`
	Status         OrderStatus     `json:"status"`
	FullName       string          `json:"fullName"`
	Email          string          `json:"email"`
	MobilePhone    string          `json:"mobilePhone"`
	PersonalNumber string          `json:"personalNumber"`
	Address        string          `json:"address,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// BuyerDetails is the contact information captured with a direct purchase.
type BuyerDetails struct {
	FullName       string `json:"fullName"`
	Email          string `json:"email"`
	MobilePhone    string `json:"mobilePhone"`
	PersonalNumber string `json:"personalNumber"`
	Address        string `json:"address,omitempty"`
}
