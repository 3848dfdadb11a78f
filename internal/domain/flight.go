package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DefaultDemandFactor = 1.0

type Flight struct {
	ID             int64
	FlightNumber   string
	Airline        string
	Origin         string
	Destination    string
	BasePrice      decimal.Decimal
	TotalSeats     int
	SeatsRemaining int
	DemandFactor   float64
	// DepartureTime is zero when the schedule is not known.
	DepartureTime time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SoldOut reports whether no seat is left.
func (f Flight) SoldOut() bool {
	return f.SeatsRemaining <= 0
}

// SeatsSold is the number of seats currently held by live bookings.
func (f Flight) SeatsSold() int {
	return f.TotalSeats - f.SeatsRemaining
}
