package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingStatusPendingPayment BookingStatus = "PENDING_PAYMENT"
	BookingStatusConfirmed      BookingStatus = "CONFIRMED"
	BookingStatusCancelled      BookingStatus = "CANCELLED"
)

type Booking struct {
	ID            int64
	UserID        int64
	FlightID      int64
	PNR           string
	PricePaid     decimal.Decimal
	Status        BookingStatus
	PassengerName string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Cancellable reports whether the booking still holds a seat.
func (b Booking) Cancellable() bool {
	return b.Status == BookingStatusConfirmed
}

// CancelledBooking is the write-once archive row produced by a cancellation.
type CancelledBooking struct {
	ID            int64
	BookingID     int64
	PNR           string
	UserID        int64
	FlightID      int64
	PassengerName string
	PricePaid     decimal.Decimal
	RefundAmount  decimal.Decimal
	CancelledAt   time.Time
}
