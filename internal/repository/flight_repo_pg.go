package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

const pgFlightColumns = `id, flight_number, airline, origin, destination, base_price::text, total_seats, seats_remaining, demand_factor, departure_time, created_at, updated_at`

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGFlightRepository struct {
	db pgQuerier
}

func NewFlightRepository(db pgQuerier) FlightRepository {
	return &PGFlightRepository{db: db}
}

func (r *PGFlightRepository) List(ctx context.Context) ([]domain.Flight, error) {
	rows, err := r.db.Query(ctx, `SELECT `+pgFlightColumns+` FROM flights ORDER BY departure_time NULLS LAST, id`)
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanPGFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, mapPGError(rows.Err())
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	f, err := scanPGFlight(r.db.QueryRow(ctx, `SELECT `+pgFlightColumns+` FROM flights WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFlightNotFound
	}
	return f, err
}

func (r *PGFlightRepository) CompareAndSetDemandFactor(ctx context.Context, id int64, prev, next float64) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE flights SET demand_factor = $3, updated_at = now() WHERE id = $1 AND demand_factor = $2`, id, prev, next)
	if err != nil {
		return false, mapPGError(err)
	}
	return res.RowsAffected() == 1, nil
}

func (r *PGFlightRepository) Upsert(ctx context.Context, f *domain.Flight) error {
	if err := validateCatalogFlight(f); err != nil {
		return err
	}
	price, err := pgNumeric(f.BasePrice)
	if err != nil {
		return err
	}
	demand := f.DemandFactor
	if demand == 0 {
		demand = domain.DefaultDemandFactor
	}

	row := r.db.QueryRow(ctx, `
		INSERT INTO flights (flight_number, airline, origin, destination, base_price, total_seats, seats_remaining, demand_factor, departure_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (flight_number) DO UPDATE SET
			airline = EXCLUDED.airline,
			origin = EXCLUDED.origin,
			destination = EXCLUDED.destination,
			base_price = EXCLUDED.base_price,
			departure_time = EXCLUDED.departure_time,
			updated_at = now()
		RETURNING `+pgFlightColumns,
		f.FlightNumber, f.Airline, f.Origin, f.Destination, price, f.TotalSeats, f.SeatsRemaining, demand, nullableTime(f.DepartureTime))

	saved, err := scanPGFlight(row)
	if err != nil {
		return err
	}
	*f = *saved
	return nil
}

func scanPGFlight(row pgx.Row) (*domain.Flight, error) {
	var (
		f         domain.Flight
		price     string
		departure *time.Time
	)
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.Origin, &f.Destination, &price, &f.TotalSeats, &f.SeatsRemaining, &f.DemandFactor, &departure, &f.CreatedAt, &f.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, mapPGError(err)
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("flight %d: parse base price %q: %w", f.ID, price, err)
	}
	f.BasePrice = p
	if departure != nil {
		f.DepartureTime = *departure
	}
	return &f, nil
}

func pgNumeric(d decimal.Decimal) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	if err := n.Scan(d.StringFixed(2)); err != nil {
		return n, fmt.Errorf("encode amount %s: %w", d, err)
	}
	return n, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ FlightRepository = (*PGFlightRepository)(nil)
