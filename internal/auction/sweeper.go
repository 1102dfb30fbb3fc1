package auction

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

// Schedule controls how often the sweeper wakes and how often a tick widens
// into a sweep over every auction.
type Schedule struct {
	Interval       time.Duration
	FullSweepEvery int
}

func DefaultSchedule() Schedule {
	return Schedule{Interval: 5 * time.Second, FullSweepEvery: 6}
}

type TickReport struct {
	Tick      uint64
	Started   int
	Ended     int
	FullSweep bool
	Swept     int
	Failed    int
	Duration  time.Duration
}

func (r TickReport) Transitioned() int {
	return r.Started + r.Ended + r.Swept
}

// Sweeper drives auctions through their time-based transitions independent
// of any bid. The tick counter decides when a full sweep is due.
type Sweeper struct {
	engine   *Engine
	store    Store
	clock    Clock
	schedule Schedule
	workers  int
	ticks    atomic.Uint64
}

func NewSweeper(engine *Engine, schedule Schedule, workers int) *Sweeper {
	if schedule.Interval <= 0 {
		schedule.Interval = DefaultSchedule().Interval
	}
	if workers < 1 {
		workers = 1
	}
	return &Sweeper{
		engine:   engine,
		store:    engine.store,
		clock:    engine.clock,
		schedule: schedule,
		workers:  workers,
	}
}

// Ticks returns how many ticks have started.
func (s *Sweeper) Ticks() uint64 {
	return s.ticks.Load()
}

// Run ticks once immediately and then on every Interval until ctx is done.
// A tick already running when ctx is cancelled is allowed to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Info("Starting auction sweeper", "interval", s.schedule.Interval, "fullSweepEvery", s.schedule.FullSweepEvery)

	ticker := time.NewTicker(s.schedule.Interval)
	defer ticker.Stop()

	for {
		s.runTick(ctx)
		select {
		case <-ctx.Done():
			log.Info("Auction sweeper stopped", "ticks", s.Ticks())
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) runTick(ctx context.Context) {
	report := s.Tick(context.WithoutCancel(ctx))
	if report.Transitioned() > 0 || report.Failed > 0 {
		log.Info("Sweep finished",
			"tick", report.Tick,
			"started", report.Started,
			"ended", report.Ended,
			"swept", report.Swept,
			"failed", report.Failed,
			"took", report.Duration)
	} else {
		log.Debug("Sweep finished", "tick", report.Tick, "fullSweep", report.FullSweep)
	}
}

// Tick performs one sweep: start due upcoming auctions, close due ongoing
// ones and, every FullSweepEvery ticks, evaluate everything as a backstop.
// A failure on one auction is logged and counted; the rest still run.
func (s *Sweeper) Tick(ctx context.Context) TickReport {
	began := time.Now()
	n := s.ticks.Add(1)
	report := TickReport{Tick: n}
	now := s.clock.Now()

	var failed atomic.Int64
	report.Started = s.sweepStatus(ctx, types.StatusUpcomingAuction, now, &failed, func(a types.Auction) bool {
		return !now.Before(a.StartTime)
	})
	report.Ended = s.sweepStatus(ctx, types.StatusOngoingAuction, now, &failed, func(a types.Auction) bool {
		return !now.Before(a.EndTime)
	})

	if s.schedule.FullSweepEvery > 0 && n%uint64(s.schedule.FullSweepEvery) == 0 {
		report.FullSweep = true
		swept, err := s.engine.EvaluateAllAuctions(ctx)
		if err != nil {
			log.Error("Full sweep failed", "err", err)
			failed.Add(1)
		}
		report.Swept = swept
	}

	report.Failed = int(failed.Load())
	report.Duration = time.Since(began)
	return report
}

func (s *Sweeper) sweepStatus(ctx context.Context, status types.Status, now time.Time, failed *atomic.Int64, due func(types.Auction) bool) int {
	auctions, err := s.store.ListAuctionsByStatus(ctx, status)
	if err != nil {
		log.Error("Failed to list auctions", "status", status, "err", err)
		failed.Add(1)
		return 0
	}

	var changed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for _, a := range auctions {
		if !due(a) {
			continue
		}
		id := a.ID
		g.Go(func() error {
			ok, err := s.engine.EvaluateAuction(gctx, id)
			if err != nil {
				log.Error("Failed to evaluate auction", "auction", id, "err", err)
				failed.Add(1)
				return nil
			}
			if ok {
				changed.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	return int(changed.Load())
}
