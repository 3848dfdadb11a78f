package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const (
	pgBookingColumns      = `id, user_id, flight_id, pnr, price_paid::text, status, passenger_name, created_at, updated_at`
	pgCancellationColumns = `id, booking_id, pnr, user_id, flight_id, passenger_name, price_paid::text, refund_amount::text, cancelled_at`
)

type PGBookingRepository struct {
	db pgQuerier
}

func NewBookingRepository(db pgQuerier) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	b, err := scanPGBooking(r.db.QueryRow(ctx, `SELECT `+pgBookingColumns+` FROM bookings WHERE pnr=$1`, pnr))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64, status domain.BookingStatus) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+pgBookingColumns+` FROM bookings
		WHERE user_id=$1 AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC, id DESC`, userID, string(status))
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanPGBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, mapPGError(rows.Err())
}

func (r *PGBookingRepository) ListCancellationsByUser(ctx context.Context, userID int64) ([]domain.CancelledBooking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+pgCancellationColumns+` FROM cancelled_bookings
		WHERE user_id=$1 ORDER BY cancelled_at DESC, id DESC`, userID)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	out := make([]domain.CancelledBooking, 0)
	for rows.Next() {
		var (
			c            domain.CancelledBooking
			paid, refund string
		)
		if err := rows.Scan(&c.ID, &c.BookingID, &c.PNR, &c.UserID, &c.FlightID, &c.PassengerName, &paid, &refund, &c.CancelledAt); err != nil {
			return nil, mapPGError(err)
		}
		if c.PricePaid, err = decimal.NewFromString(paid); err != nil {
			return nil, fmt.Errorf("cancellation %s: parse price: %w", c.PNR, err)
		}
		if c.RefundAmount, err = decimal.NewFromString(refund); err != nil {
			return nil, fmt.Errorf("cancellation %s: parse refund: %w", c.PNR, err)
		}
		out = append(out, c)
	}
	return out, mapPGError(rows.Err())
}

func (r *PGBookingRepository) CountByFlight(ctx context.Context, flightID int64, status domain.BookingStatus) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM bookings WHERE flight_id=$1 AND status=$2`, flightID, string(status)).Scan(&n); err != nil {
		return 0, mapPGError(err)
	}
	return n, nil
}

func scanPGBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b     domain.Booking
		price string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.FlightID, &b.PNR, &price, &b.Status, &b.PassengerName, &b.CreatedAt, &b.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, mapPGError(err)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("booking %s: parse price: %w", b.PNR, err)
	}
	b.PricePaid = p
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
