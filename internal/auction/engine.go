package auction

import (
	"context"
	"fmt"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

type Config struct {
	Policy         Policy
	MaxBidAttempts int
	RetryBackoff   time.Duration
	LockTimeout    time.Duration
	LockTTL        time.Duration
}

func DefaultConfig() Config {
	return Config{
		Policy:         DefaultPolicy(),
		MaxBidAttempts: 3,
		RetryBackoff:   50 * time.Millisecond,
		LockTimeout:    5 * time.Second,
		LockTTL:        10 * time.Second,
	}
}

// Engine owns every mutation of an auction. Writers of one auction are
// serialized by the Locker and every save is version-checked, so a writer
// that bypasses the lock still cannot clobber a newer state.
type Engine struct {
	store     Store
	accounts  Accounts
	locker    Locker
	publisher Publisher
	clock     Clock
	cfg       Config
	newID     func() string
}

func NewEngine(store Store, accounts Accounts, locker Locker, publisher Publisher, clock Clock, cfg Config) *Engine {
	if publisher == nil {
		publisher = nopPublisher{}
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if cfg.MaxBidAttempts < 1 {
		cfg.MaxBidAttempts = 1
	}
	return &Engine{
		store:     store,
		accounts:  accounts,
		locker:    locker,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		newID:     uuid.NewString,
	}
}

func lockKey(auctionID string) string {
	return "auction:" + auctionID
}

// withLock runs fn while holding the auction's lock. Waiting is bounded by
// LockTimeout on top of whatever deadline ctx already carries.
func (e *Engine) withLock(ctx context.Context, auctionID string, fn func() error) error {
	lockCtx := ctx
	if e.cfg.LockTimeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, e.cfg.LockTimeout)
		defer cancel()
	}
	unlock, err := e.locker.Acquire(lockCtx, lockKey(auctionID), e.cfg.LockTTL)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// retry runs op up to MaxBidAttempts times while it fails with a conflict.
// Any other error stops immediately.
func (e *Engine) retry(ctx context.Context, op func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = e.cfg.RetryBackoff
	b.MaxElapsedTime = 0

	attempts := 0
	err := backoff.Retry(func() error {
		attempts++
		err := op()
		if err == nil || errors.Is(err, errors.Conflict) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(e.cfg.MaxBidAttempts-1)), ctx))

	if errors.Is(err, errors.Conflict) {
		return errors.WrapCode(errors.ErrRetryExhausted, err, fmt.Sprintf("gave up after %d conflicting attempts", attempts))
	}
	return err
}

func (e *Engine) publish(ctx context.Context, events ...types.Event) {
	for _, ev := range events {
		if err := e.publisher.Publish(ctx, ev); err != nil {
			log.Warn("Failed to publish event", "type", ev.Type, "auction", ev.AuctionID, "err", err)
		}
	}
}

// GetAuction returns the stored auction with its bids. Reads are not locked.
func (e *Engine) GetAuction(ctx context.Context, id string) (types.Auction, error) {
	return e.store.LoadAuction(ctx, id)
}

// ListByStatus returns the stored auctions in status, without bids.
func (e *Engine) ListByStatus(ctx context.Context, status types.Status) ([]types.Auction, error) {
	return e.store.ListAuctionsByStatus(ctx, status)
}

// EvaluateAuction applies any due transition to one auction and reports
// whether its status changed.
func (e *Engine) EvaluateAuction(ctx context.Context, id string) (bool, error) {
	var events []types.Event
	err := e.withLock(ctx, id, func() error {
		return e.retry(ctx, func() error {
			a, err := e.store.LoadAuction(ctx, id)
			if err != nil {
				return err
			}
			ev := Evaluate(a, e.clock.Now())
			if !ev.Changed() {
				return nil
			}
			if _, err := e.store.SaveAuction(ctx, ev.Auction); err != nil {
				return err
			}
			events = ev.Events
			for _, t := range ev.Transitions {
				log.Info("Auction transitioned", "auction", id, "from", t.From, "to", t.To)
			}
			return nil
		})
	})
	if err != nil {
		return false, err
	}
	e.publish(ctx, events...)
	return len(events) > 0, nil
}

// EvaluateAllAuctions evaluates every stored auction. Failures on one
// auction are logged and do not stop the rest; the count covers successes.
func (e *Engine) EvaluateAllAuctions(ctx context.Context) (int, error) {
	all, err := e.store.ListAuctions(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list auctions")
	}
	now := e.clock.Now()
	count := 0
	for _, a := range all {
		if !Evaluate(a, now).Changed() {
			continue
		}
		changed, err := e.EvaluateAuction(ctx, a.ID)
		if err != nil {
			log.Error("Failed to evaluate auction", "auction", a.ID, "err", err)
			continue
		}
		if changed {
			count++
		}
	}
	return count, nil
}

// ResolveWinner returns the bidder the resolver picks from the stored bids.
func (e *Engine) ResolveWinner(ctx context.Context, id string) (string, bool, error) {
	a, err := e.store.LoadAuction(ctx, id)
	if err != nil {
		return "", false, err
	}
	winner, ok := Resolve(a.Bids)
	if !ok {
		return "", false, nil
	}
	return winner.BidderID, true, nil
}

// ReconcileWinners re-resolves the winner of every sold auction and fixes
// any that disagree with the stored bids. It returns how many it corrected.
func (e *Engine) ReconcileWinners(ctx context.Context) (int, error) {
	sold, err := e.store.ListAuctionsByStatus(ctx, types.StatusSold)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list sold auctions")
	}
	fixed := 0
	for _, a := range sold {
		if a.SaleType != types.SaleTypeAuction {
			continue
		}
		ok, err := e.reconcileOne(ctx, a.ID)
		if err != nil {
			log.Error("Failed to reconcile winner", "auction", a.ID, "err", err)
			continue
		}
		if ok {
			fixed++
		}
	}
	return fixed, nil
}

func (e *Engine) reconcileOne(ctx context.Context, id string) (bool, error) {
	var events []types.Event
	err := e.withLock(ctx, id, func() error {
		return e.retry(ctx, func() error {
			events = nil
			a, err := e.store.LoadAuction(ctx, id)
			if err != nil {
				return err
			}
			if a.Status != types.StatusSold || a.SaleType != types.SaleTypeAuction {
				return nil
			}
			now := e.clock.Now()
			winner, ok := Resolve(a.Bids)
			switch {
			case !ok:
				log.Warn("Sold auction has no bids, demoting", "auction", id)
				a.Status = types.StatusNotSold
				a.WinnerID = nil
				events = append(events, types.StatusChanged(id, types.StatusNotSold, now))
			case a.WinnerID == nil || *a.WinnerID != winner.BidderID:
				log.Warn("Correcting auction winner", "auction", id, "stored", derefOr(a.WinnerID, "<none>"), "resolved", winner.BidderID)
				bidder := winner.BidderID
				a.WinnerID = &bidder
				events = append(events, types.AuctionWon(winner, now))
			default:
				return nil
			}
			a.UpdatedAt = now
			_, err = e.store.SaveAuction(ctx, a)
			return err
		})
	})
	if err != nil {
		return false, err
	}
	e.publish(ctx, events...)
	return len(events) > 0, nil
}

// Stats counts stored auctions per status.
func (e *Engine) Stats(ctx context.Context) (map[types.Status]int, error) {
	all, err := e.store.ListAuctions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list auctions")
	}
	stats := make(map[types.Status]int, len(types.Statuses))
	for _, s := range types.Statuses {
		stats[s] = 0
	}
	for _, a := range all {
		stats[a.Status]++
	}
	return stats, nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
