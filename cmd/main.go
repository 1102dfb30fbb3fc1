package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Martin-Hayot/car-auction/configs"
	"github.com/Martin-Hayot/car-auction/internal/auction"
	"github.com/Martin-Hayot/car-auction/internal/auth"
	"github.com/Martin-Hayot/car-auction/internal/dashboard"
	"github.com/Martin-Hayot/car-auction/internal/database"
	"github.com/Martin-Hayot/car-auction/internal/handlers/rest"
	"github.com/Martin-Hayot/car-auction/internal/handlers/websocket"
	"github.com/Martin-Hayot/car-auction/internal/lock"
	"github.com/Martin-Hayot/car-auction/internal/redis"
	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

func engineConfig(c configs.EngineConfig) auction.Config {
	return auction.Config{
		Policy:         auction.Policy{Window: c.ExtensionWindow, Step: c.ExtensionStep},
		MaxBidAttempts: c.MaxBidAttempts,
		RetryBackoff:   c.RetryBackoff,
		LockTimeout:    c.LockTimeout,
		LockTTL:        c.LockTTL,
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal("Server stopped", "err", err)
	}
}

func run() error {
	// Load configurations
	cfg, err := configs.LoadConfig()
	if err != nil {
		return errors.Wrap(err, "error loading config")
	}

	// Setup logger
	logLevel, err := log.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		return errors.Wrap(err, "invalid log level")
	}
	log.SetLevel(logLevel)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Redirect logs to buffer while the dashboard owns the terminal
	var logBuffer *dashboard.LogBuffer
	if cfg.Features.EnableDashboard {
		logBuffer = dashboard.NewLogBuffer(1000)
		log.SetOutput(logBuffer)
		gin.DefaultWriter = logBuffer
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database service
	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	hub := websocket.NewHub()
	var (
		locker    auction.Locker    = lock.NewKeyed()
		publisher auction.Publisher = hub
		bus       *redis.EventBus
	)
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rc.Close()
		locker = redis.NewLockManager(rc)
		bus = redis.NewEventBus(rc, cfg.Redis.Channel)
		publisher = bus
	}

	engine := auction.NewEngine(db, db, locker, publisher, auction.SystemClock{}, engineConfig(cfg.Engine))
	sweeper := auction.NewSweeper(engine, auction.Schedule{
		Interval:       cfg.Engine.SweepInterval,
		FullSweepEvery: cfg.Engine.FullSweepEvery,
	}, cfg.Engine.Workers)

	// Setup routes
	authenticator := auth.New(cfg.Auth, db)
	router := rest.SetupRouter(engine, authenticator, db)
	router.GET("/ws/auction", gin.WrapH(websocket.NewAuctionWebSocketHandler(
		hub, engine, authenticator, cfg.WebSocket, cfg.Features.AllowCrossOrigin)))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	if bus != nil {
		// Every instance, this one included, delivers events from the bus.
		events, err := bus.Subscribe(gctx)
		if err != nil {
			return err
		}
		g.Go(func() error {
			hub.Consume(gctx, events)
			return nil
		})
	}
	g.Go(func() error { return sweeper.Run(gctx) })

	g.Go(func() error {
		log.Info("Server started", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "failed to start server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("Shutting down server")
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Features.EnableDashboard {
		g.Go(func() error {
			m := dashboard.New(db, logBuffer, func() time.Time { return time.Now().UTC() })
			err := dashboard.Run(gctx, m)
			// Quitting the dashboard stops the server.
			stop()
			return err
		})
	}

	return g.Wait()
}
