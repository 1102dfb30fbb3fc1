package auction

import (
	"context"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

type Outcome string

const (
	Accepted Outcome = "accepted"
	Rejected Outcome = "rejected"
)

// BidResult is what a bidder is told. Only Reason is set on rejection.
type BidResult struct {
	Outcome  Outcome      `json:"outcome"`
	Reason   RejectReason `json:"reason,omitempty"`
	Bid      *types.Bid   `json:"bid,omitempty"`
	Extended bool         `json:"extended"`
	EndTime  time.Time    `json:"endTime"`
}

func (r BidResult) Accepted() bool { return r.Outcome == Accepted }

// wholeCents reports whether d survives storage at two decimal places.
func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Truncate(2))
}

// PlaceBid validates and stores a bid. A refused bid comes back as a
// Rejected result with a nil error. Errors are reserved for a missing
// auction, an amount with fractions of a cent (errors.InvalidAmount),
// exhausted conflict retries (errors.RetryExhausted), lock
// timeouts and infrastructure failures.
//
// Each attempt starts over from a fresh load: due transitions are applied
// first so a stale OngoingAuction past its end cannot take the bid, then the
// bid is validated, the anti-sniping extension computed and both written in
// one version-checked AppendBid.
func (e *Engine) PlaceBid(ctx context.Context, auctionID, bidderID string, amount decimal.Decimal) (BidResult, error) {
	if !wholeCents(amount) {
		return BidResult{}, errors.New(errors.ErrInvalidAmount, "bid amount "+amount.String()+" has fractions of a cent")
	}
	known, err := e.bidderKnown(ctx, bidderID)
	if err != nil {
		return BidResult{}, err
	}

	var (
		result     BidResult
		transition []types.Event
		placed     []types.Event
	)
	err = e.withLock(ctx, auctionID, func() error {
		return e.retry(ctx, func() error {
			placed = nil

			a, err := e.store.LoadAuction(ctx, auctionID)
			if err != nil {
				return err
			}
			now := e.clock.Now()

			if ev := Evaluate(a, now); ev.Changed() {
				if a, err = e.store.SaveAuction(ctx, ev.Auction); err != nil {
					return err
				}
				transition = append(transition, ev.Events...)
			}

			bid := types.Bid{
				ID:        e.newID(),
				AuctionID: auctionID,
				BidderID:  bidderID,
				Amount:    amount,
				PlacedAt:  now,
			}
			var highest *types.Bid
			if h, ok := a.HighestBid(); ok {
				highest = &h
			}
			if d := Validate(a, bid, highest, now, known); !d.Accepted {
				result = BidResult{Outcome: Rejected, Reason: d.Reason, EndTime: a.EndTime}
				return nil
			}

			extended := e.cfg.Policy.Extend(&a, now)
			a.UpdatedAt = now
			stored, err := e.store.AppendBid(ctx, a, bid)
			if err != nil {
				return err
			}

			result = BidResult{Outcome: Accepted, Bid: &bid, Extended: extended, EndTime: stored.EndTime}
			placed = append(placed, types.BidPlaced(bid, extended, stored.EndTime))
			if extended {
				placed = append(placed, types.AuctionExtended(auctionID, stored.EndTime, now))
			}
			return nil
		})
	})
	// Transitions committed by an earlier attempt stay committed even when a
	// later attempt fails, so their events still go out.
	e.publish(ctx, transition...)
	if err != nil {
		return BidResult{}, err
	}
	e.publish(ctx, placed...)

	if result.Accepted() {
		log.Info("Bid accepted", "auction", auctionID, "bidder", bidderID, "amount", amount, "extended", result.Extended)
	} else {
		log.Debug("Bid rejected", "auction", auctionID, "bidder", bidderID, "amount", amount, "reason", result.Reason)
	}
	return result, nil
}

func (e *Engine) bidderKnown(ctx context.Context, bidderID string) (bool, error) {
	if bidderID == "" {
		return false, nil
	}
	_, err := e.accounts.GetUserByID(ctx, bidderID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, errors.UserNotFound):
		return false, nil
	default:
		return false, errors.Wrap(err, "failed to resolve bidder")
	}
}
