package rest

import (
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/shopspring/decimal"
)

// Request/Response DTOs
type CreateListingRequest struct {
	Title       string           `json:"title" binding:"required"`
	Description string           `json:"description"`
	SaleType    types.SaleType   `json:"saleType" binding:"required,oneof=Auction DirectSale"`
	StartPrice  decimal.Decimal  `json:"startPrice"`
	FixedPrice  *decimal.Decimal `json:"fixedPrice"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
}

type PlaceBidRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type PurchaseRequest struct {
	FullName       string `json:"fullName" binding:"required"`
	Email          string `json:"email" binding:"required,email"`
	MobilePhone    string `json:"mobilePhone" binding:"required"`
	PersonalNumber string `json:"personalNumber" binding:"required"`
	Address        string `json:"address"`
}

type WinnerResponse struct {
	AuctionID string `json:"auctionId"`
	WinnerID  string `json:"winnerId"`
}

type EvaluateResponse struct {
	AuctionID string `json:"auctionId"`
	Changed   bool   `json:"changed"`
}

type CountResponse struct {
	Count int `json:"count"`
}
