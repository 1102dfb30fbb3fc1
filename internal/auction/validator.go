package auction

import (
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/types"
)

// RejectReason explains why a bid was refused. Rejections are ordinary
// outcomes reported to the bidder, never errors.
type RejectReason string

const (
	NotOngoing      RejectReason = "NotOngoing"
	OutsideWindow   RejectReason = "OutsideWindow"
	BelowStartPrice RejectReason = "BelowStartPrice"
	NotHighEnough   RejectReason = "NotHighEnough"
	UnknownBidder   RejectReason = "UnknownBidder"
)

var reasonMessages = map[RejectReason]string{
	NotOngoing:      "auction is not currently accepting bids",
	OutsideWindow:   "bid placed outside the auction window",
	BelowStartPrice: "bid is below the starting price",
	NotHighEnough:   "bid must be higher than the current highest bid",
	UnknownBidder:   "bidder account not found",
}

func (r RejectReason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

type Decision struct {
	Accepted bool
	Reason   RejectReason
}

func accept() Decision                   { return Decision{Accepted: true} }
func reject(reason RejectReason) Decision { return Decision{Reason: reason} }

// Validate decides whether candidate may be placed on a. Rules are checked in
// order and the first failure wins. The window check uses now rather than the
// stored status, which may lag behind the clock between sweeps.
func Validate(a types.Auction, candidate types.Bid, highest *types.Bid, now time.Time, bidderKnown bool) Decision {
	if a.SaleType != types.SaleTypeAuction || a.Status != types.StatusOngoingAuction {
		return reject(NotOngoing)
	}
	if now.Before(a.StartTime) || now.After(a.EndTime) {
		return reject(OutsideWindow)
	}
	if candidate.Amount.LessThan(a.StartPrice) {
		return reject(BelowStartPrice)
	}
	if highest != nil && !candidate.Amount.GreaterThan(highest.Amount) {
		return reject(NotHighEnough)
	}
	if !bidderKnown {
		return reject(UnknownBidder)
	}
	return accept()
}
