package auction

import (
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/types"
)

var transitions = map[types.Status][]types.Status{
	types.StatusPendingApproval:  {types.StatusUpcomingAuction, types.StatusAvailableForSale},
	types.StatusUpcomingAuction:  {types.StatusOngoingAuction},
	types.StatusOngoingAuction:   {types.StatusSold, types.StatusNotSold},
	types.StatusAvailableForSale: {types.StatusSold},
	// Only the repair pass moves between terminal states.
	types.StatusSold: {types.StatusNotSold},
}

// CanTransition reports whether from -> to is a forward edge of the lifecycle.
func CanTransition(from, to types.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Transition struct {
	From types.Status
	To   types.Status
}

// Evaluation is the outcome of evaluating one auction against the clock.
// Auction is a copy; the input is never mutated.
type Evaluation struct {
	Auction     types.Auction
	Transitions []Transition
	Events      []types.Event
}

func (e Evaluation) Changed() bool {
	return len(e.Transitions) > 0
}

// Evaluate applies every time-driven transition that is due at now. An
// upcoming auction whose whole window already elapsed moves through
// OngoingAuction to its terminal state in one call.
func Evaluate(a types.Auction, now time.Time) Evaluation {
	ev := Evaluation{Auction: a.Clone()}
	if a.SaleType != types.SaleTypeAuction {
		return ev
	}

	cur := &ev.Auction
	if cur.Status == types.StatusUpcomingAuction && !now.Before(cur.StartTime) {
		ev.move(types.StatusOngoingAuction, now)
	}
	if cur.Status == types.StatusOngoingAuction && !now.Before(cur.EndTime) {
		if winner, ok := Resolve(cur.Bids); ok {
			bidder := winner.BidderID
			cur.WinnerID = &bidder
			ev.move(types.StatusSold, now)
			ev.Events = append(ev.Events, types.AuctionWon(winner, now))
		} else {
			cur.WinnerID = nil
			ev.move(types.StatusNotSold, now)
		}
	}
	return ev
}

func (e *Evaluation) move(to types.Status, now time.Time) {
	e.Transitions = append(e.Transitions, Transition{From: e.Auction.Status, To: to})
	e.Auction.Status = to
	e.Auction.UpdatedAt = now
	e.Events = append(e.Events, types.StatusChanged(e.Auction.ID, to, now))
}

// Policy is the anti-sniping rule: a bid landing within Window of the end
// pushes the end back by Step.
type Policy struct {
	Window time.Duration
	Step   time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Window: 60 * time.Second, Step: 15 * time.Second}
}

// Extend moves a.EndTime when 0 < end-now <= Window and reports whether it did.
func (p Policy) Extend(a *types.Auction, now time.Time) bool {
	remaining := a.EndTime.Sub(now)
	if remaining <= 0 || remaining > p.Window {
		return false
	}
	a.EndTime = a.EndTime.Add(p.Step)
	return true
}
