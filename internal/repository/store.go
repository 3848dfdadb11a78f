package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/skyline/internal/domain"
)

var (
	// ErrConflict is a transient write conflict (serialization failure,
	// deadlock, busy database). The whole unit of work may be retried.
	ErrConflict = errors.New("transient write conflict")

	// ErrDuplicatePNR is returned by InsertBooking when the PNR is taken.
	ErrDuplicatePNR = errors.New("duplicate pnr")

	ErrFlightNotFound  = errors.New("flight not found")
	ErrBookingNotFound = errors.New("booking not found")
)

// FlightRepository is the read side of the flight ledger plus the row-scoped
// demand factor update.
type FlightRepository interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	// CompareAndSetDemandFactor writes next only if the stored factor still
	// equals prev. It returns false when another writer got there first.
	CompareAndSetDemandFactor(ctx context.Context, id int64, prev, next float64) (bool, error)
	// Upsert inserts or updates catalog data by flight number. Seats remaining
	// are only set on insert.
	Upsert(ctx context.Context, f *domain.Flight) error
}

// BookingRepository answers history queries outside of a transaction.
type BookingRepository interface {
	GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64, status domain.BookingStatus) ([]domain.Booking, error)
	ListCancellationsByUser(ctx context.Context, userID int64) ([]domain.CancelledBooking, error)
	CountByFlight(ctx context.Context, flightID int64, status domain.BookingStatus) (int, error)
}

// Tx is the set of ledger operations available inside one unit of work.
type Tx interface {
	GetFlight(ctx context.Context, id int64) (*domain.Flight, error)
	// ReserveSeat decrements seats_remaining by one only if it is positive and
	// returns the row as it was before the decrement. It returns nil, nil when
	// the flight is sold out or unknown.
	ReserveSeat(ctx context.Context, flightID int64) (*domain.Flight, error)
	// ReleaseSeat increments seats_remaining by one unless it already equals
	// total_seats. It reports whether a seat was returned.
	ReleaseSeat(ctx context.Context, flightID int64) (bool, error)

	PNRExists(ctx context.Context, pnr string) (bool, error)
	InsertBooking(ctx context.Context, b *domain.Booking) error
	// GetBookingForUpdate loads a booking and locks it until the end of the tx.
	GetBookingForUpdate(ctx context.Context, pnr string) (*domain.Booking, error)
	// UpdateBookingStatus moves a booking from one status to another and
	// reports false if the booking was not in the expected status.
	UpdateBookingStatus(ctx context.Context, id int64, from, to domain.BookingStatus) (bool, error)
	InsertCancellation(ctx context.Context, c *domain.CancelledBooking) error
}

// Store is the durable ledger. WithTx runs fn in one transaction and commits
// only if fn returns nil.
type Store interface {
	Flights() FlightRepository
	Bookings() BookingRepository
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Ping(ctx context.Context) error
	Close() error
}
