package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/Martin-Hayot/car-auction/configs"
	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Service represents a service that interacts with a database.
type Service interface {
	// Health returns a map of health status information.
	// The keys and values in the map are service-specific.
	Health(ctx context.Context) map[string]string

	// Close terminates the database connection.
	// It returns an error if the connection cannot be closed.
	Close() error

	// USER METHODS
	GetUserByID(ctx context.Context, id string) (types.User, error)
	GetUserByEmail(ctx context.Context, email string) (types.User, error)
	CreateUser(ctx context.Context, user types.User) (types.User, error)

	// AUCTION METHODS
	LoadAuction(ctx context.Context, id string) (types.Auction, error)
	SaveAuction(ctx context.Context, a types.Auction) (types.Auction, error)
	ListAuctionsByStatus(ctx context.Context, status types.Status) ([]types.Auction, error)
	ListAuctions(ctx context.Context) ([]types.Auction, error)
	CreateAuction(ctx context.Context, a types.Auction) (types.Auction, error)
	DeleteAuction(ctx context.Context, id string) error

	// TRANSACTION METHODS
	AppendBid(ctx context.Context, a types.Auction, bid types.Bid) (types.Auction, error)
	CompleteDirectSale(ctx context.Context, a types.Auction, order types.Order) (types.Auction, types.Order, error)

	// ORDER METHODS
	GetOrder(ctx context.Context, id string) (types.Order, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to types.OrderStatus) (types.Order, error)
}

type service struct {
	db *sql.DB
}

// New opens the store selected by cfg.Driver. For postgres the connection is
// verified and, when AutoMigrate is set, pending migrations are applied.
func New(ctx context.Context, cfg configs.DatabaseConfig) (Service, error) {
	switch cfg.Driver {
	case "memory":
		log.Info("Using in-memory store")
		return NewMemory(), nil
	case "postgres", "":
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}

	s, err := Open(ctx, cfg.DSN(), cfg.MaxOpenConns, cfg.AutoMigrate)
	if err != nil {
		return nil, err
	}
	log.Info("Connected to database", "host", cfg.Host, "name", cfg.Name)
	return s, nil
}

// Open connects to postgres at dsn and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int, migrate bool) (Service, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "error opening database")
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns / 2)
	}
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "error connecting to database")
	}

	s := &service{db: db}
	if migrate {
		if err := s.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return s, nil
}

// Health checks the health of the database connection by pinging the database.
// It returns a map with keys indicating various health statistics.
func (s *service) Health(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		log.Error("Database health check failed", "err", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "It's healthy"

	dbStats := s.db.Stats()
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)
	stats["wait_duration"] = dbStats.WaitDuration.String()
	stats["max_idle_closed"] = strconv.FormatInt(dbStats.MaxIdleClosed, 10)
	stats["max_lifetime_closed"] = strconv.FormatInt(dbStats.MaxLifetimeClosed, 10)

	if dbStats.OpenConnections > 40 {
		stats["message"] = "The database is experiencing heavy load."
	}

	if dbStats.WaitCount > 1000 {
		stats["message"] = "The database has a high number of wait events, indicating potential bottlenecks."
	}

	return stats
}

// Close closes the database connection.
func (s *service) Close() error {
	log.Info("Disconnected from database")
	return s.db.Close()
}
