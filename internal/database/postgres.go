package database

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/Martin-Hayot/car-auction/pkg/errors"
	"github.com/Martin-Hayot/car-auction/pkg/types"
	"github.com/charmbracelet/log"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

const auctionColumns = `
    "id",
    "sellerId",
    "title",
    "description",
    "startPrice",
    "fixedPrice",
    "startDate",
    "endDate",
    "status",
    "saleType",
    "winnerId",
    "buyerId",
    "version",
    "createdAt",
    "updatedAt"`

const orderColumns = `"id", "auctionId", "buyerId", "purchasePrice", "status", "fullName", "email", "mobilePhone", "personalNumber", "address", "createdAt", "updatedAt"`

const (
	uniqueViolation      = "23505"
	serializationFailure = "40001"
)

type scanner interface {
	Scan(dest ...any) error
}

func scanAuction(row scanner) (types.Auction, error) {
	var (
		a        types.Auction
		fixed    decimal.NullDecimal
		winnerID sql.NullString
		buyerID  sql.NullString
	)
	err := row.Scan(
		&a.ID,
		&a.SellerID,
		&a.Title,
		&a.Description,
		&a.StartPrice,
		&fixed,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.SaleType,
		&winnerID,
		&buyerID,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return types.Auction{}, err
	}
	if fixed.Valid {
		fp := fixed.Decimal
		a.FixedPrice = &fp
	}
	if winnerID.Valid {
		a.WinnerID = &winnerID.String
	}
	if buyerID.Valid {
		a.BuyerID = &buyerID.String
	}
	a.StartTime = a.StartTime.UTC()
	a.EndTime = a.EndTime.UTC()
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func scanOrder(row scanner) (types.Order, error) {
	var o types.Order
	err := row.Scan(
		&o.ID,
		&o.AuctionID,
		&o.BuyerID,
		&o.PurchasePrice,
		&o.Status,
		&o.FullName,
		&o.Email,
		&o.MobilePhone,
		&o.PersonalNumber,
		&o.Address,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	o.CreatedAt = o.CreatedAt.UTC()
	o.UpdatedAt = o.UpdatedAt.UTC()
	return o, err
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *service) GetUserByID(ctx context.Context, id string) (types.User, error) {
	var user types.User
	err := s.db.QueryRowContext(ctx, `SELECT "id", "name", "email", "role" FROM public."User" WHERE "id" = $1`, id).
		Scan(&user.ID, &user.Name, &user.Email, &user.Role)
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.User{}, errors.UserNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("error getting user by id: %w", err)
	}
	return user, nil
}

func (s *service) GetUserByEmail(ctx context.Context, email string) (types.User, error) {
	var user types.User
	err := s.db.QueryRowContext(ctx, `SELECT "id", "name", "email", "role" FROM public."User" WHERE "email" = $1`, email).
		Scan(&user.ID, &user.Name, &user.Email, &user.Role)
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.User{}, errors.UserNotFound
	}
	if err != nil {
		return types.User{}, fmt.Errorf("error getting user by email: %w", err)
	}
	return user, nil
}

func (s *service) CreateUser(ctx context.Context, user types.User) (types.User, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO public."User" ("id", "name", "email", "role") VALUES ($1, $2, $3, $4)`,
		user.ID, user.Name, user.Email, user.Role)
	if err != nil {
		return types.User{}, errors.Wrap(err, "error creating user")
	}
	return user, nil
}

// LoadAuction returns the auction with its bids in placement order.
func (s *service) LoadAuction(ctx context.Context, id string) (types.Auction, error) {
	a, err := scanAuction(s.db.QueryRowContext(ctx,
		`SELECT `+auctionColumns+` FROM public."Auctions" WHERE "id" = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.Auction{}, errors.AuctionNotFound
	}
	if err != nil {
		return types.Auction{}, fmt.Errorf("error getting auction by id: %w", err)
	}
	bids, err := loadBids(ctx, s.db, []string{id})
	if err != nil {
		return types.Auction{}, err
	}
	a.Bids = bids[id]
	return a, nil
}

func (s *service) ListAuctionsByStatus(ctx context.Context, status types.Status) ([]types.Auction, error) {
	return s.listAuctions(ctx,
		`SELECT `+auctionColumns+` FROM public."Auctions" WHERE "status" = $1 ORDER BY "endDate" ASC`, string(status))
}

func (s *service) ListAuctions(ctx context.Context) ([]types.Auction, error) {
	return s.listAuctions(ctx, `SELECT `+auctionColumns+` FROM public."Auctions" ORDER BY "startDate" ASC`)
}

func (s *service) listAuctions(ctx context.Context, query string, args ...any) ([]types.Auction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing auctions: %w", err)
	}
	defer rows.Close()

	var auctions []types.Auction
	var ids []string
	for rows.Next() {
		a, err := scanAuction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning auction: %w", err)
		}
		auctions = append(auctions, a)
		ids = append(ids, a.ID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over auctions: %w", err)
	}
	if len(ids) == 0 {
		return auctions, nil
	}

	bids, err := loadBids(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range auctions {
		auctions[i].Bids = bids[auctions[i].ID]
	}
	return auctions, nil
}

func loadBids(ctx context.Context, q queryer, auctionIDs []string) (map[string][]types.Bid, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT "id", "auctionId", "userId", "price", "createdAt" FROM public."Bid"
         WHERE "auctionId" = ANY($1) ORDER BY "createdAt" ASC, "id" ASC`, auctionIDs)
	if err != nil {
		return nil, fmt.Errorf("error loading bids: %w", err)
	}
	defer rows.Close()

	bids := make(map[string][]types.Bid, len(auctionIDs))
	for rows.Next() {
		var b types.Bid
		if err := rows.Scan(&b.ID, &b.AuctionID, &b.BidderID, &b.Amount, &b.PlacedAt); err != nil {
			return nil, fmt.Errorf("error scanning bid: %w", err)
		}
		b.PlacedAt = b.PlacedAt.UTC()
		bids[b.AuctionID] = append(bids[b.AuctionID], b)
	}
	return bids, rows.Err()
}

func (s *service) CreateAuction(ctx context.Context, a types.Auction) (types.Auction, error) {
	a.Version = 1
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO public."Auctions" (`+auctionColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		a.ID, a.SellerID, a.Title, a.Description, a.StartPrice, nullDecimal(a.FixedPrice),
		a.StartTime.UTC(), a.EndTime.UTC(), string(a.Status), string(a.SaleType),
		nullString(a.WinnerID), nullString(a.BuyerID), a.Version, a.CreatedAt.UTC(), a.UpdatedAt.UTC())
	if err != nil {
		return types.Auction{}, errors.Wrap(err, "error creating auction")
	}
	return a, nil
}

func (s *service) DeleteAuction(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM public."Auctions" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "error deleting auction")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.AuctionNotFound
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// updateAuction writes the mutable fields of a when the stored version still
// equals a.Version. A zero row count means either the row is gone or another
// writer got there first.
func updateAuction(ctx context.Context, db execer, q queryer, a types.Auction) (types.Auction, error) {
	res, err := db.ExecContext(ctx, `
        UPDATE public."Auctions"
        SET "status" = $1, "winnerId" = $2, "buyerId" = $3, "endDate" = $4, "updatedAt" = $5, "version" = "version" + 1
        WHERE "id" = $6 AND "version" = $7`,
		string(a.Status), nullString(a.WinnerID), nullString(a.BuyerID), a.EndTime.UTC(), a.UpdatedAt.UTC(), a.ID, a.Version)
	if err != nil {
		return types.Auction{}, errors.Wrap(err, "error updating auction")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Auction{}, errors.Wrap(err, "error updating auction")
	}
	if n == 0 {
		return types.Auction{}, conflictOrMissing(ctx, q, a.ID)
	}
	a.Version++
	return a, nil
}

func conflictOrMissing(ctx context.Context, q queryer, id string) error {
	rows, err := q.QueryContext(ctx, `SELECT 1 FROM public."Auctions" WHERE "id" = $1`, id)
	if err != nil {
		return errors.Wrap(err, "error checking auction")
	}
	defer rows.Close()
	if !rows.Next() {
		return errors.AuctionNotFound
	}
	return errors.Conflict
}

func (s *service) SaveAuction(ctx context.Context, a types.Auction) (types.Auction, error) {
	return updateAuction(ctx, s.db, s.db, a)
}

// AppendBid inserts bid and persists a's end time in one serializable
// transaction guarded by the version check.
func (s *service) AppendBid(ctx context.Context, a types.Auction, bid types.Bid) (types.Auction, error) {
	var stored types.Auction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = updateAuction(ctx, tx, tx, a)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO public."Bid" ("id", "auctionId", "userId", "price", "createdAt") VALUES ($1, $2, $3, $4, $5)`,
			bid.ID, bid.AuctionID, bid.BidderID, bid.Amount, bid.PlacedAt.UTC())
		if err != nil {
			return fmt.Errorf("error creating bid in tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Auction{}, err
	}
	stored.Bids = append(stored.Bids, bid)
	log.Debug("Bid stored", "auction", a.ID, "bid", bid.ID, "amount", bid.Amount)
	return stored, nil
}

func (s *service) CompleteDirectSale(ctx context.Context, a types.Auction, order types.Order) (types.Auction, types.Order, error) {
	var stored types.Auction
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		stored, err = updateAuction(ctx, tx, tx, a)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
            INSERT INTO public."Orders" (`+orderColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			order.ID, order.AuctionID, order.BuyerID, order.PurchasePrice, string(order.Status),
			order.FullName, order.Email, order.MobilePhone, order.PersonalNumber, order.Address,
			order.CreatedAt.UTC(), order.UpdatedAt.UTC())
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.WrapCode(errors.ErrNotAvailable, err, "buyer already has an active order for this car")
		}
		if err != nil {
			return fmt.Errorf("error creating order in tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return types.Auction{}, types.Order{}, err
	}
	return stored, order, nil
}

func (s *service) GetOrder(ctx context.Context, id string) (types.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM public."Orders" WHERE "id" = $1`, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return types.Order{}, errors.OrderNotFound
	}
	if err != nil {
		return types.Order{}, fmt.Errorf("error getting order: %w", err)
	}
	return o, nil
}

// UpdateOrderStatus moves the order only if it is still in from.
func (s *service) UpdateOrderStatus(ctx context.Context, id string, from, to types.OrderStatus) (types.Order, error) {
	o, err := scanOrder(s.db.QueryRowContext(ctx, `
        UPDATE public."Orders" SET "status" = $1, "updatedAt" = $2
        WHERE "id" = $3 AND "status" = $4
        RETURNING `+orderColumns,
		string(to), time.Now().UTC(), id, string(from)))
	if stderrors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetOrder(ctx, id); getErr != nil {
			return types.Order{}, getErr
		}
		return types.Order{}, errors.Conflict
	}
	if err != nil {
		return types.Order{}, fmt.Errorf("error updating order: %w", err)
	}
	return o, nil
}

// inTx runs fn in a serializable transaction. A serialization failure is
// reported as a conflict so the caller's retry loop handles it.
func (s *service) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return asConflict(err)
	}
	if err := tx.Commit(); err != nil {
		return asConflict(fmt.Errorf("error committing transaction: %w", err))
	}
	return nil
}

func asConflict(err error) error {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) && pgErr.Code == serializationFailure {
		return errors.WrapCode(errors.ErrConflict, err, "serialization failure")
	}
	return err
}
