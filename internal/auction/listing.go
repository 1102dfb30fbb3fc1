package auction

import (
	"context"
	"strings"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/shopspring/decimal"
)

type ListingInput struct {
	SellerID    string           `json:"sellerId"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	SaleType    types.SaleType   `json:"saleType"`
	StartPrice  decimal.Decimal  `json:"startPrice"`
	FixedPrice  *decimal.Decimal `json:"fixedPrice,omitempty"`
	StartTime   time.Time        `json:"startTime"`
	EndTime     time.Time        `json:"endTime"`
}

func (in ListingInput) validate() error {
	var problems []string
	if in.SellerID == "" {
		problems = append(problems, "seller is required")
	}
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, "title is required")
	}
	switch in.SaleType {
	case types.SaleTypeAuction:
		if !in.StartPrice.IsPositive() {
			problems = append(problems, "start price must be positive")
		} else if !wholeCents(in.StartPrice) {
			problems = append(problems, "start price must be in whole cents")
		}
		if in.StartTime.IsZero() || in.EndTime.IsZero() {
			problems = append(problems, "start and end time are required")
		} else if !in.EndTime.After(in.StartTime) {
			problems = append(problems, "end time must be after start time")
		}
	case types.SaleTypeDirectSale:
		if in.FixedPrice == nil || !in.FixedPrice.IsPositive() {
			problems = append(problems, "direct sale requires a positive fixed price")
		} else if !wholeCents(*in.FixedPrice) {
			problems = append(problems, "fixed price must be in whole cents")
		}
	default:
		problems = append(problems, "unknown sale type "+string(in.SaleType))
	}
	if len(problems) > 0 {
		return errors.WrapCode(errors.ErrInvalidListing, errors.New(errors.ErrInvalidListing, strings.Join(problems, "; ")), "invalid listing")
	}
	return nil
}

// CreateListing stores a new listing awaiting approval. A direct sale's
// start price mirrors its fixed price.
func (e *Engine) CreateListing(ctx context.Context, in ListingInput) (types.Auction, error) {
	if err := in.validate(); err != nil {
		return types.Auction{}, err
	}
	now := e.clock.Now()
	a := types.Auction{
		ID:          e.newID(),
		SellerID:    in.SellerID,
		Title:       in.Title,
		Description: in.Description,
		SaleType:    in.SaleType,
		StartPrice:  in.StartPrice,
		StartTime:   in.StartTime.UTC(),
		EndTime:     in.EndTime.UTC(),
		Status:      types.StatusPendingApproval,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if in.SaleType == types.SaleTypeDirectSale {
		fp := *in.FixedPrice
		a.FixedPrice = &fp
		a.StartPrice = fp
		if a.StartTime.IsZero() {
			a.StartTime = now
		}
		if !a.EndTime.After(a.StartTime) {
			// Direct sales are not timed; the window only has to be well formed.
			a.EndTime = a.StartTime.AddDate(1, 0, 0)
		}
	}
	created, err := e.store.CreateAuction(ctx, a)
	if err != nil {
		return types.Auction{}, err
	}
	log.Info("Listing created", "auction", created.ID, "seller", created.SellerID, "saleType", created.SaleType)
	return created, nil
}

// Approve moves a pending listing to UpcomingAuction or AvailableForSale
// depending on its sale type.
func (e *Engine) Approve(ctx context.Context, id string) (types.Auction, error) {
	var approved types.Auction
	err := e.withLock(ctx, id, func() error {
		return e.retry(ctx, func() error {
			a, err := e.store.LoadAuction(ctx, id)
			if err != nil {
				return err
			}
			to := types.StatusUpcomingAuction
			if a.SaleType == types.SaleTypeDirectSale {
				to = types.StatusAvailableForSale
			}
			if err := transition(&a, to, e.clock.Now()); err != nil {
				return err
			}
			approved, err = e.store.SaveAuction(ctx, a)
			return err
		})
	})
	if err != nil {
		return types.Auction{}, err
	}
	e.publish(ctx, types.StatusChanged(id, approved.Status, approved.UpdatedAt))
	return approved, nil
}

// Reject deletes a listing that is still pending approval.
func (e *Engine) Reject(ctx context.Context, id string) error {
	return e.withLock(ctx, id, func() error {
		a, err := e.store.LoadAuction(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != types.StatusPendingApproval {
			return errors.WrapCode(errors.ErrInvalidTransition, errors.InvalidTransition, "only pending listings can be rejected")
		}
		if err := e.store.DeleteAuction(ctx, id); err != nil {
			return err
		}
		log.Info("Listing rejected", "auction", id)
		return nil
	})
}

// Purchase buys a direct-sale car at its fixed price. The car turns Sold and
// a Pending order is created in the same write.
func (e *Engine) Purchase(ctx context.Context, id, buyerID string, details types.BuyerDetails) (types.Order, error) {
	known, err := e.bidderKnown(ctx, buyerID)
	if err != nil {
		return types.Order{}, err
	}
	if !known {
		return types.Order{}, errors.UserNotFound
	}

	var order types.Order
	err = e.withLock(ctx, id, func() error {
		return e.retry(ctx, func() error {
			a, err := e.store.LoadAuction(ctx, id)
			if err != nil {
				return err
			}
			if a.SaleType != types.SaleTypeDirectSale || a.Status != types.StatusAvailableForSale {
				return errors.NotAvailable
			}
			now := e.clock.Now()
			if err := transition(&a, types.StatusSold, now); err != nil {
				return err
			}
			buyer := buyerID
			a.BuyerID = &buyer

			price := a.StartPrice
			if a.FixedPrice != nil {
				price = *a.FixedPrice
			}
			_, order, err = e.store.CompleteDirectSale(ctx, a, types.Order{
				ID:             e.newID(),
				AuctionID:      id,
				BuyerID:        buyerID,
				PurchasePrice:  price,
				Status:         types.OrderPending,
				FullName:       details.FullName,
				Email:          details.Email,
				MobilePhone:    details.MobilePhone,
				PersonalNumber: details.PersonalNumber,
				Address:        details.Address,
				CreatedAt:      now,
				UpdatedAt:      now,
			})
			return err
		})
	})
	if err != nil {
		return types.Order{}, err
	}
	log.Info("Direct sale completed", "auction", id, "buyer", buyerID, "order", order.ID)
	e.publish(ctx, types.StatusChanged(id, types.StatusSold, order.CreatedAt))
	return order, nil
}

var orderTransitions = map[types.OrderStatus][]types.OrderStatus{
	types.OrderPending:   {types.OrderConfirmed, types.OrderCancelled},
	types.OrderConfirmed: {types.OrderCompleted, types.OrderCancelled},
}

// AdvanceOrder moves an order forward. The store re-checks the current
// status so two admins racing on one order cannot both succeed.
func (e *Engine) AdvanceOrder(ctx context.Context, id string, to types.OrderStatus) (types.Order, error) {
	o, err := e.store.GetOrder(ctx, id)
	if err != nil {
		return types.Order{}, err
	}
	allowed := false
	for _, s := range orderTransitions[o.Status] {
		if s == to {
			allowed = true
		}
	}
	if !allowed {
		return types.Order{}, errors.WrapCode(errors.ErrInvalidTransition, errors.InvalidTransition,
			"cannot move order from "+string(o.Status)+" to "+string(to))
	}
	updated, err := e.store.UpdateOrderStatus(ctx, id, o.Status, to)
	if err != nil {
		return types.Order{}, err
	}
	log.Info("Order updated", "order", id, "from", o.Status, "to", to)
	return updated, nil
}

func transition(a *types.Auction, to types.Status, now time.Time) error {
	if !CanTransition(a.Status, to) {
		return errors.WrapCode(errors.ErrInvalidTransition, errors.InvalidTransition,
			"cannot move auction from "+string(a.Status)+" to "+string(to))
	}
	a.Status = to
	a.UpdatedAt = now
	return nil
}
