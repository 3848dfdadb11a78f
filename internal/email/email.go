// Package email turns booking events into passenger notifications. Delivery
// is a structured log line; a real mail transport can replace Sender later.
package email

import (
	"context"
	"fmt"

	"github.com/Domenick1991/skyline/internal/kafka"
	"github.com/sirupsen/logrus"
)

type Message struct {
	PNR     string
	To      string
	Subject string
	Body    string
}

type Sender struct {
	logger *logrus.Logger
}

func NewSender(logger *logrus.Logger) *Sender {
	return &Sender{logger: logger}
}

// Compose renders the notification for event. Unknown event types are an error.
func Compose(event kafka.BookingEvent) (Message, error) {
	msg := Message{PNR: event.PNR, To: event.PassengerName}

	switch event.Type {
	case kafka.EventBookingConfirmed:
		msg.Subject = fmt.Sprintf("Booking %s confirmed", event.PNR)
		msg.Body = fmt.Sprintf("Dear %s, your seat on flight %d is confirmed. Amount paid: %s.",
			event.PassengerName, event.FlightID, event.PricePaid.StringFixed(2))
	case kafka.EventBookingCancelled:
		msg.Subject = fmt.Sprintf("Booking %s cancelled", event.PNR)
		msg.Body = fmt.Sprintf("Dear %s, your booking on flight %d was cancelled. Refund: %s.",
			event.PassengerName, event.FlightID, event.RefundAmount.StringFixed(2))
	default:
		return Message{}, fmt.Errorf("email: unsupported event type %q", event.Type)
	}
	return msg, nil
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := Compose(event)
	if err != nil {
		return err
	}

	s.logger.WithFields(logrus.Fields{
		"pnr":     msg.PNR,
		"to":      msg.To,
		"subject": msg.Subject,
	}).Info(msg.Body)
	return nil
}
