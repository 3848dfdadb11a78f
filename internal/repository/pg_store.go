package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres.sql
var postgresSchema string

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// PGStore is the PostgreSQL ledger. The seat guard relies on row-level
// locking of single guarded UPDATE statements; no table locks are taken.
type PGStore struct {
	pool     *pgxpool.Pool
	flights  FlightRepository
	bookings BookingRepository
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{
		pool:     pool,
		flights:  NewFlightRepository(pool),
		bookings: NewBookingRepository(pool),
	}
}

// Migrate creates the schema if it does not exist.
func (s *PGStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

func (s *PGStore) Flights() FlightRepository   { return s.flights }
func (s *PGStore) Bookings() BookingRepository { return s.bookings }

func (s *PGStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PGStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PGStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return mapPGError(err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, &pgTx{tx: tx}); err != nil {
		return mapPGError(err)
	}
	return mapPGError(tx.Commit(ctx))
}

type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) GetFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanPGFlight(t.tx.QueryRow(ctx, `SELECT `+pgFlightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFlightNotFound
	}
	return f, err
}

func (t *pgTx) ReserveSeat(ctx context.Context, flightID int64) (*domain.Flight, error) {
	row := t.tx.QueryRow(ctx, `
		UPDATE flights
		SET seats_remaining = seats_remaining - 1, updated_at = now()
		WHERE id = $1 AND seats_remaining > 0
		RETURNING id, flight_number, airline, origin, destination, base_price::text, total_seats,
			seats_remaining + 1, demand_factor, departure_time, created_at, updated_at`, flightID)

	f, err := scanPGFlight(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

func (t *pgTx) ReleaseSeat(ctx context.Context, flightID int64) (bool, error) {
	res, err := t.tx.Exec(ctx, `
		UPDATE flights
		SET seats_remaining = seats_remaining + 1, updated_at = now()
		WHERE id = $1 AND seats_remaining < total_seats`, flightID)
	if err != nil {
		return false, mapPGError(err)
	}
	return res.RowsAffected() == 1, nil
}

func (t *pgTx) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE pnr = $1)
		OR EXISTS (SELECT 1 FROM cancelled_bookings WHERE pnr = $1)`, pnr).Scan(&exists)
	return exists, mapPGError(err)
}

// InsertBooking runs under a savepoint so a PNR collision does not abort the
// surrounding transaction.
func (t *pgTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	price, err := pgNumeric(b.PricePaid)
	if err != nil {
		return err
	}

	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.UpdatedAt = b.CreatedAt

	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return mapPGError(err)
	}
	defer sp.Rollback(ctx)

	err = sp.QueryRow(ctx, `INSERT INTO bookings
		(user_id, flight_id, pnr, price_paid, status, passenger_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		b.UserID, b.FlightID, b.PNR, price, string(b.Status), b.PassengerName, b.CreatedAt, b.UpdatedAt).
		Scan(&b.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicatePNR
		}
		return mapPGError(err)
	}
	return mapPGError(sp.Commit(ctx))
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, pnr string) (*domain.Booking, error) {
	b, err := scanPGBooking(t.tx.QueryRow(ctx, `SELECT `+pgBookingColumns+` FROM bookings WHERE pnr=$1 FOR UPDATE`, pnr))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, id int64, from, to domain.BookingStatus) (bool, error) {
	res, err := t.tx.Exec(ctx, `UPDATE bookings SET status=$3, updated_at=now() WHERE id=$1 AND status=$2`, id, string(from), string(to))
	if err != nil {
		return false, mapPGError(err)
	}
	return res.RowsAffected() == 1, nil
}

func (t *pgTx) InsertCancellation(ctx context.Context, c *domain.CancelledBooking) error {
	paid, err := pgNumeric(c.PricePaid)
	if err != nil {
		return err
	}
	refund, err := pgNumeric(c.RefundAmount)
	if err != nil {
		return err
	}

	err = t.tx.QueryRow(ctx, `INSERT INTO cancelled_bookings
		(booking_id, pnr, user_id, flight_id, passenger_name, price_paid, refund_amount, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		c.BookingID, c.PNR, c.UserID, c.FlightID, c.PassengerName, paid, refund, c.CancelledAt).Scan(&c.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicatePNR
		}
		return mapPGError(err)
	}
	return nil
}

// mapPGError turns retryable PostgreSQL failures into ErrConflict.
func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgSerializationFailure, pgDeadlockDetected:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.Message)
		}
	}
	return err
}

var (
	_ Store = (*PGStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
