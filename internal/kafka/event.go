package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventBookingConfirmed = "booking_confirmed"
	EventBookingCancelled = "booking_cancelled"
)

type BookingEvent struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	PNR           string          `json:"pnr"`
	FlightID      int64           `json:"flight_id"`
	UserID        int64           `json:"user_id"`
	PassengerName string          `json:"passenger_name"`
	PricePaid     decimal.Decimal `json:"price_paid"`
	RefundAmount  decimal.Decimal `json:"refund_amount"`
	Status        string          `json:"status"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

func NewBookingEvent(eventType string, b domain.Booking, refund decimal.Decimal, at time.Time) BookingEvent {
	return BookingEvent{
		ID:            uuid.NewString(),
		Type:          eventType,
		PNR:           b.PNR,
		FlightID:      b.FlightID,
		UserID:        b.UserID,
		PassengerName: b.PassengerName,
		PricePaid:     b.PricePaid,
		RefundAmount:  refund,
		Status:        string(b.Status),
		OccurredAt:    at,
	}
}

func DecodeBookingEvent(data []byte) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	if event.Type == "" || event.PNR == "" {
		return BookingEvent{}, fmt.Errorf("decode booking event: missing type or pnr")
	}
	return event, nil
}
