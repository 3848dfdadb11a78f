package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

//go:embed migrations/sqlite.sql
var sqliteSchema string

const sqliteFlightColumns = `id, flight_number, airline, origin, destination, base_price, total_seats, seats_remaining, demand_factor, departure_time, created_at, updated_at`

const (
	sqliteBookingColumns      = `id, user_id, flight_id, pnr, price_paid, status, passenger_name, created_at, updated_at`
	sqliteCancellationColumns = `id, booking_id, pnr, user_id, flight_id, passenger_name, price_paid, refund_amount, cancelled_at`
)

// SQLiteStore is the single-file ledger used for local runs and tests. SQLite
// allows one writer at a time, so the pool is capped at one connection and
// every transaction takes the write lock up front.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLiteStore{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *SQLiteStore) Flights() FlightRepository   { return sqliteFlights{s} }
func (s *SQLiteStore) Bookings() BookingRepository { return sqliteBookings{s} }

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }
func (s *SQLiteStore) Close() error                   { return s.db.Close() }

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapSQLiteError(err)
	}
	defer sqlTx.Rollback()

	if err := fn(ctx, &sqliteTx{tx: sqlTx, now: s.now}); err != nil {
		return mapSQLiteError(err)
	}
	return mapSQLiteError(sqlTx.Commit())
}

type sqliteTx struct {
	tx  *sql.Tx
	now func() time.Time
}

func (t *sqliteTx) GetFlight(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanSQLiteFlight(t.tx.QueryRowContext(ctx, `SELECT `+sqliteFlightColumns+` FROM flights WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFlightNotFound
	}
	return f, err
}

func (t *sqliteTx) ReserveSeat(ctx context.Context, flightID int64) (*domain.Flight, error) {
	row := t.tx.QueryRowContext(ctx, `
		UPDATE flights
		SET seats_remaining = seats_remaining - 1, updated_at = ?
		WHERE id = ? AND seats_remaining > 0
		RETURNING id, flight_number, airline, origin, destination, base_price, total_seats,
			seats_remaining + 1, demand_factor, departure_time, created_at, updated_at`,
		formatTime(t.now()), flightID)

	f, err := scanSQLiteFlight(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return f, err
}

func (t *sqliteTx) ReleaseSeat(ctx context.Context, flightID int64) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE flights
		SET seats_remaining = seats_remaining + 1, updated_at = ?
		WHERE id = ? AND seats_remaining < total_seats`,
		formatTime(t.now()), flightID)
	return affectedOne(res, err)
}

func (t *sqliteTx) PNRExists(ctx context.Context, pnr string) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE pnr = ?)
		OR EXISTS (SELECT 1 FROM cancelled_bookings WHERE pnr = ?)`, pnr, pnr).Scan(&exists)
	return exists, mapSQLiteError(err)
}

func (t *sqliteTx) InsertBooking(ctx context.Context, b *domain.Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = t.now()
	}
	b.UpdatedAt = b.CreatedAt

	res, err := t.tx.ExecContext(ctx, `INSERT INTO bookings
		(user_id, flight_id, pnr, price_paid, status, passenger_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UserID, b.FlightID, b.PNR, b.PricePaid.StringFixed(2), string(b.Status), b.PassengerName,
		formatTime(b.CreatedAt), formatTime(b.UpdatedAt))
	if err != nil {
		if isSQLiteUnique(err) {
			return ErrDuplicatePNR
		}
		return mapSQLiteError(err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

// GetBookingForUpdate needs no row lock here: _txlock=immediate already holds
// the database write lock for the whole transaction.
func (t *sqliteTx) GetBookingForUpdate(ctx context.Context, pnr string) (*domain.Booking, error) {
	b, err := scanSQLiteBooking(t.tx.QueryRowContext(ctx, `SELECT `+sqliteBookingColumns+` FROM bookings WHERE pnr = ?`, pnr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (t *sqliteTx) UpdateBookingStatus(ctx context.Context, id int64, from, to domain.BookingStatus) (bool, error) {
	res, err := t.tx.ExecContext(ctx, `UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(to), formatTime(t.now()), id, string(from))
	return affectedOne(res, err)
}

func (t *sqliteTx) InsertCancellation(ctx context.Context, c *domain.CancelledBooking) error {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO cancelled_bookings
		(booking_id, pnr, user_id, flight_id, passenger_name, price_paid, refund_amount, cancelled_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.BookingID, c.PNR, c.UserID, c.FlightID, c.PassengerName,
		c.PricePaid.StringFixed(2), c.RefundAmount.StringFixed(2), formatTime(c.CancelledAt))
	if err != nil {
		if isSQLiteUnique(err) {
			return ErrDuplicatePNR
		}
		return mapSQLiteError(err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

// =============================================================================
// Repositories
// =============================================================================

type sqliteFlights struct{ s *SQLiteStore }

func (r sqliteFlights) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+sqliteFlightColumns+` FROM flights
		ORDER BY departure_time IS NULL, departure_time, id`)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanSQLiteFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, mapSQLiteError(rows.Err())
}

func (r sqliteFlights) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanSQLiteFlight(r.s.db.QueryRowContext(ctx, `SELECT `+sqliteFlightColumns+` FROM flights WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFlightNotFound
	}
	return f, err
}

func (r sqliteFlights) CompareAndSetDemandFactor(ctx context.Context, id int64, prev, next float64) (bool, error) {
	res, err := r.s.db.ExecContext(ctx, `UPDATE flights SET demand_factor = ?, updated_at = ? WHERE id = ? AND demand_factor = ?`,
		next, formatTime(r.s.now()), id, prev)
	return affectedOne(res, err)
}

func (r sqliteFlights) Upsert(ctx context.Context, f *domain.Flight) error {
	if err := validateCatalogFlight(f); err != nil {
		return err
	}
	demand := f.DemandFactor
	if demand == 0 {
		demand = domain.DefaultDemandFactor
	}
	now := formatTime(r.s.now())

	row := r.s.db.QueryRowContext(ctx, `
		INSERT INTO flights (flight_number, airline, origin, destination, base_price, total_seats, seats_remaining,
			demand_factor, departure_time, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (flight_number) DO UPDATE SET
			airline = excluded.airline,
			origin = excluded.origin,
			destination = excluded.destination,
			base_price = excluded.base_price,
			departure_time = excluded.departure_time,
			updated_at = excluded.updated_at
		RETURNING `+sqliteFlightColumns,
		f.FlightNumber, f.Airline, f.Origin, f.Destination, f.BasePrice.StringFixed(2), f.TotalSeats, f.SeatsRemaining,
		demand, nullableTimeString(f.DepartureTime), now, now)

	saved, err := scanSQLiteFlight(row)
	if err != nil {
		return err
	}
	*f = *saved
	return nil
}

type sqliteBookings struct{ s *SQLiteStore }

func (r sqliteBookings) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	b, err := scanSQLiteBooking(r.s.db.QueryRowContext(ctx, `SELECT `+sqliteBookingColumns+` FROM bookings WHERE pnr = ?`, pnr))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (r sqliteBookings) ListByUser(ctx context.Context, userID int64, status domain.BookingStatus) ([]domain.Booking, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+sqliteBookingColumns+` FROM bookings
		WHERE user_id = ? AND (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC`, userID, string(status), string(status))
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	out := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanSQLiteBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, mapSQLiteError(rows.Err())
}

func (r sqliteBookings) ListCancellationsByUser(ctx context.Context, userID int64) ([]domain.CancelledBooking, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+sqliteCancellationColumns+` FROM cancelled_bookings
		WHERE user_id = ? ORDER BY cancelled_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapSQLiteError(err)
	}
	defer rows.Close()

	out := make([]domain.CancelledBooking, 0)
	for rows.Next() {
		var (
			c                       domain.CancelledBooking
			paid, refund, cancelled string
		)
		if err := rows.Scan(&c.ID, &c.BookingID, &c.PNR, &c.UserID, &c.FlightID, &c.PassengerName, &paid, &refund, &cancelled); err != nil {
			return nil, mapSQLiteError(err)
		}
		if c.PricePaid, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("cancellation %s: parse price: %w", c.PNR, err)
		}
		if c.RefundAmount, err = decimal.NewFromString(refund); err != nil {
			return nil, fmt.Errorf("cancellation %s: parse refund: %w", c.PNR, err)
		}
		if c.CancelledAt, err = parseTime(cancelled); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, mapSQLiteError(rows.Err())
}

func (r sqliteBookings) CountByFlight(ctx context.Context, flightID int64, status domain.BookingStatus) (int, error) {
	var n int
	err := r.s.db.QueryRowContext(ctx, `SELECT count(*) FROM bookings WHERE flight_id = ? AND status = ?`, flightID, string(status)).Scan(&n)
	return n, mapSQLiteError(err)
}

// =============================================================================
// Scanning
// =============================================================================

type sqlRow interface {
	Scan(dest ...any) error
}

func scanSQLiteFlight(row sqlRow) (*domain.Flight, error) {
	var (
		f                domain.Flight
		price            string
		departure        sql.NullString
		created, updated string
	)
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.Origin, &f.Destination, &price, &f.TotalSeats,
		&f.SeatsRemaining, &f.DemandFactor, &departure, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, mapSQLiteError(err)
	}

	var err error
	if f.BasePrice, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("flight %d: parse base price %q: %w", f.ID, price, err)
	}
	if departure.Valid {
		if f.DepartureTime, err = parseTime(departure.String); err != nil {
			return nil, err
		}
	}
	if f.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &f, nil
}

func scanSQLiteBooking(row sqlRow) (*domain.Booking, error) {
	var (
		b                       domain.Booking
		price, created, updated string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.FlightID, &b.PNR, &price, &b.Status, &b.PassengerName, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, mapSQLiteError(err)
	}

	var err error
	if b.PricePaid, err = decimal.NewFromString(price); err != nil {
		return nil, fmt.Errorf("booking %s: parse price: %w", b.PNR, err)
	}
	if b.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &b, nil
}

// sqliteTimeLayout is fixed width so that TEXT ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullableTimeString(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func affectedOne(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, mapSQLiteError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func isSQLiteUnique(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// mapSQLiteError turns lock contention into ErrConflict.
func mapSQLiteError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
		return fmt.Errorf("%w: %s", ErrConflict, sqliteErr.Error())
	}
	return err
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Tx    = (*sqliteTx)(nil)
)
