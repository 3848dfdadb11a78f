package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/skyline/internal/clock"
	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/inventory"
	"github.com/Domenick1991/skyline/internal/kafka"
	"github.com/Domenick1991/skyline/internal/metrics"
	"github.com/Domenick1991/skyline/internal/pricing"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type BookingUseCase interface {
	Book(ctx context.Context, input BookInput) (*domain.Booking, error)
	// Hold records a PENDING_PAYMENT booking without taking a seat.
	Hold(ctx context.Context, input BookInput) (*domain.Booking, error)
	// Confirm takes the seat for a held booking and marks it CONFIRMED.
	Confirm(ctx context.Context, pnr string) (*domain.Booking, error)
	Cancel(ctx context.Context, pnr string) (*domain.CancelledBooking, error)
	GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	// History returns the user's confirmed bookings, newest first.
	History(ctx context.Context, userID int64) ([]domain.Booking, error)
	// Cancellations returns the user's archived cancellations, newest first.
	Cancellations(ctx context.Context, userID int64) ([]domain.CancelledBooking, error)
}

// Cache is the part of the flight cache that a seat change makes stale.
type Cache interface {
	InvalidateFlights(ctx context.Context) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookInput struct {
	UserID        int64  `json:"user_id"`
	FlightID      int64  `json:"flight_id"`
	PassengerName string `json:"passenger_name"`
}

func (in BookInput) validate() error {
	switch {
	case in.UserID <= 0:
		return fmt.Errorf("user id must be positive: %w", domain.ErrInvalidInput)
	case in.FlightID <= 0:
		return fmt.Errorf("flight id must be positive: %w", domain.ErrInvalidInput)
	case strings.TrimSpace(in.PassengerName) == "":
		return fmt.Errorf("passenger name is required: %w", domain.ErrInvalidInput)
	}
	return nil
}

type BookingService struct {
	store              repository.Store
	guard              *inventory.Guard
	pricer             *pricing.Pricer
	pnrs               PNRGenerator
	clock              clock.Clock
	cache              Cache
	producer           Producer
	logger             *logrus.Logger
	bookingTopic       string
	notificationsTopic string
	pnrAttempts        int
	conflictRetries    int
	refundRate         decimal.Decimal
}

type BookingServiceOption func(*BookingService)

func WithCache(cache Cache) BookingServiceOption {
	return func(s *BookingService) {
		s.cache = cache
	}
}

func WithProducer(producer Producer, bookingTopic string) BookingServiceOption {
	return func(s *BookingService) {
		s.producer = producer
		s.bookingTopic = bookingTopic
	}
}

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func WithClock(c clock.Clock) BookingServiceOption {
	return func(s *BookingService) {
		s.clock = c
	}
}

func WithPNRGenerator(g PNRGenerator) BookingServiceOption {
	return func(s *BookingService) {
		s.pnrs = g
	}
}

func WithPNRAttempts(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.pnrAttempts = n
		}
	}
}

func WithConflictRetries(n int) BookingServiceOption {
	return func(s *BookingService) {
		if n > 0 {
			s.conflictRetries = n
		}
	}
}

// WithRefundRate sets the share of price_paid returned on cancellation.
func WithRefundRate(rate float64) BookingServiceOption {
	return func(s *BookingService) {
		if rate >= 0 && rate <= 1 {
			s.refundRate = decimal.NewFromFloat(rate)
		}
	}
}

func NewBookingService(
	store repository.Store,
	guard *inventory.Guard,
	pricer *pricing.Pricer,
	logger *logrus.Logger,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		store:           store,
		guard:           guard,
		pricer:          pricer,
		pnrs:            NewRandomPNR(DefaultPNRLength),
		clock:           clock.System{},
		logger:          logger,
		pnrAttempts:     5,
		conflictRetries: 3,
		refundRate:      decimal.NewFromInt(1),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Book reserves one seat, prices it from the exact row state the seat was
// taken from and records a CONFIRMED booking. Either all of it commits or the
// ledger is left as it was.
func (s *BookingService) Book(ctx context.Context, input BookInput) (*domain.Booking, error) {
	started := time.Now()
	if err := input.validate(); err != nil {
		metrics.TrackBooking(metrics.OutcomeInvalid, time.Since(started))
		return nil, err
	}
	passenger := strings.TrimSpace(input.PassengerName)

	var booked domain.Booking
	err := repository.RunInTx(ctx, s.store, s.conflictRetries, func(ctx context.Context, tx repository.Tx) error {
		flight, err := tx.GetFlight(ctx, input.FlightID)
		if errors.Is(err, repository.ErrFlightNotFound) {
			return domain.FlightNotFound(input.FlightID)
		}
		if err != nil {
			return err
		}

		before, err := s.guard.ReserveIn(ctx, tx, flight.ID)
		if err != nil {
			return err
		}
		if before == nil {
			return &domain.SoldOutError{FlightID: flight.ID}
		}

		now := s.clock.Now()
		b := domain.Booking{
			UserID:        input.UserID,
			FlightID:      flight.ID,
			PricePaid:     s.pricer.Price(*before, now),
			Status:        domain.BookingStatusConfirmed,
			PassengerName: passenger,
			CreatedAt:     now,
		}
		if err := s.insertWithFreshPNR(ctx, tx, &b); err != nil {
			return err
		}
		booked = b
		return nil
	})
	if err != nil {
		err = domain.Persistence("book", err)
		metrics.TrackBooking(outcome(err), time.Since(started))
		s.logFailure("booking failed", err, logrus.Fields{
			"user_id":   input.UserID,
			"flight_id": input.FlightID,
		})
		return nil, err
	}

	metrics.TrackBooking(metrics.OutcomeConfirmed, time.Since(started))
	s.logger.WithFields(logrus.Fields{
		"pnr":        booked.PNR,
		"user_id":    booked.UserID,
		"flight_id":  booked.FlightID,
		"price_paid": booked.PricePaid.StringFixed(2),
	}).Info("booking confirmed")

	s.afterCommit(ctx, kafka.EventBookingConfirmed, booked, decimal.Zero)
	return &booked, nil
}

// Hold quotes the flight at its current state and records the booking as
// PENDING_PAYMENT. The seat is only taken by Confirm, so a held booking can
// still lose its flight to a sell-out.
func (s *BookingService) Hold(ctx context.Context, input BookInput) (*domain.Booking, error) {
	started := time.Now()
	if err := input.validate(); err != nil {
		metrics.TrackBooking(metrics.OutcomeInvalid, time.Since(started))
		return nil, err
	}
	passenger := strings.TrimSpace(input.PassengerName)

	var held domain.Booking
	err := repository.RunInTx(ctx, s.store, s.conflictRetries, func(ctx context.Context, tx repository.Tx) error {
		flight, err := tx.GetFlight(ctx, input.FlightID)
		if errors.Is(err, repository.ErrFlightNotFound) {
			return domain.FlightNotFound(input.FlightID)
		}
		if err != nil {
			return err
		}
		if flight.SoldOut() {
			return &domain.SoldOutError{FlightID: flight.ID}
		}

		now := s.clock.Now()
		b := domain.Booking{
			UserID:        input.UserID,
			FlightID:      flight.ID,
			PricePaid:     s.pricer.Price(*flight, now),
			Status:        domain.BookingStatusPendingPayment,
			PassengerName: passenger,
			CreatedAt:     now,
		}
		if err := s.insertWithFreshPNR(ctx, tx, &b); err != nil {
			return err
		}
		held = b
		return nil
	})
	if err != nil {
		err = domain.Persistence("hold", err)
		metrics.TrackBooking(outcome(err), time.Since(started))
		s.logFailure("hold failed", err, logrus.Fields{
			"user_id":   input.UserID,
			"flight_id": input.FlightID,
		})
		return nil, err
	}

	metrics.TrackBooking(metrics.OutcomeHeld, time.Since(started))
	s.logger.WithFields(logrus.Fields{
		"pnr":        held.PNR,
		"user_id":    held.UserID,
		"flight_id":  held.FlightID,
		"price_paid": held.PricePaid.StringFixed(2),
	}).Info("booking held for payment")
	return &held, nil
}

// Confirm takes a seat for a PENDING_PAYMENT booking at the price quoted by
// Hold. Confirming a CONFIRMED booking returns it unchanged. If the flight
// sold out meanwhile the booking stays pending.
func (s *BookingService) Confirm(ctx context.Context, pnr string) (*domain.Booking, error) {
	started := time.Now()
	pnr = NormalizePNR(pnr)
	if pnr == "" {
		metrics.TrackBooking(metrics.OutcomeInvalid, time.Since(started))
		return nil, fmt.Errorf("pnr is required: %w", domain.ErrInvalidInput)
	}

	var (
		confirmed domain.Booking
		changed   bool
	)
	err := repository.RunInTx(ctx, s.store, s.conflictRetries, func(ctx context.Context, tx repository.Tx) error {
		changed = false
		b, err := tx.GetBookingForUpdate(ctx, pnr)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return domain.BookingNotFound(pnr)
		}
		if err != nil {
			return err
		}

		switch b.Status {
		case domain.BookingStatusConfirmed:
			confirmed = *b
			return nil
		case domain.BookingStatusPendingPayment:
		default:
			return &domain.AlreadyCancelledError{PNR: b.PNR, Status: b.Status}
		}

		before, err := s.guard.ReserveIn(ctx, tx, b.FlightID)
		if err != nil {
			return err
		}
		if before == nil {
			return &domain.SoldOutError{FlightID: b.FlightID}
		}

		ok, err := tx.UpdateBookingStatus(ctx, b.ID, domain.BookingStatusPendingPayment, domain.BookingStatusConfirmed)
		if err != nil {
			return err
		}
		if !ok {
			return repository.ErrConflict
		}

		b.Status = domain.BookingStatusConfirmed
		b.UpdatedAt = s.clock.Now()
		confirmed, changed = *b, true
		return nil
	})
	if err != nil {
		err = domain.Persistence("confirm", err)
		metrics.TrackBooking(outcome(err), time.Since(started))
		s.logFailure("confirmation failed", err, logrus.Fields{"pnr": pnr})
		return nil, err
	}
	if !changed {
		return &confirmed, nil
	}

	metrics.TrackBooking(metrics.OutcomeConfirmed, time.Since(started))
	s.logger.WithFields(logrus.Fields{
		"pnr":        confirmed.PNR,
		"flight_id":  confirmed.FlightID,
		"price_paid": confirmed.PricePaid.StringFixed(2),
	}).Info("held booking confirmed")

	s.afterCommit(ctx, kafka.EventBookingConfirmed, confirmed, decimal.Zero)
	return &confirmed, nil
}

// insertWithFreshPNR draws PNRs until one is free in both the bookings and the
// archive. A unique violation on insert counts as a collision as well.
func (s *BookingService) insertWithFreshPNR(ctx context.Context, tx repository.Tx, b *domain.Booking) error {
	for attempt := 0; attempt < s.pnrAttempts; attempt++ {
		pnr, err := s.pnrs.Next()
		if err != nil {
			return fmt.Errorf("generate pnr: %w", err)
		}

		taken, err := tx.PNRExists(ctx, pnr)
		if err != nil {
			return err
		}
		if taken {
			metrics.TrackPNRCollision()
			continue
		}

		b.PNR = pnr
		err = tx.InsertBooking(ctx, b)
		if errors.Is(err, repository.ErrDuplicatePNR) {
			metrics.TrackPNRCollision()
			continue
		}
		return err
	}
	b.PNR = ""
	return &domain.PNRExhaustedError{Attempts: s.pnrAttempts}
}

// Cancel returns the seat, archives the booking with its refund and marks it
// CANCELLED in one transaction. A second cancel of the same PNR fails with
// AlreadyCancelledError and changes nothing.
func (s *BookingService) Cancel(ctx context.Context, pnr string) (*domain.CancelledBooking, error) {
	started := time.Now()
	pnr = NormalizePNR(pnr)
	if pnr == "" {
		metrics.TrackCancellation(metrics.OutcomeInvalid, time.Since(started))
		return nil, fmt.Errorf("pnr is required: %w", domain.ErrInvalidInput)
	}

	var (
		cancelled domain.Booking
		archived  domain.CancelledBooking
	)
	err := repository.RunInTx(ctx, s.store, s.conflictRetries, func(ctx context.Context, tx repository.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, pnr)
		if errors.Is(err, repository.ErrBookingNotFound) {
			return domain.BookingNotFound(pnr)
		}
		if err != nil {
			return err
		}
		if !b.Cancellable() {
			return &domain.AlreadyCancelledError{PNR: b.PNR, Status: b.Status}
		}

		if err := s.guard.ReleaseIn(ctx, tx, b.FlightID); err != nil {
			return err
		}

		now := s.clock.Now()
		c := domain.CancelledBooking{
			BookingID:     b.ID,
			PNR:           b.PNR,
			UserID:        b.UserID,
			FlightID:      b.FlightID,
			PassengerName: b.PassengerName,
			PricePaid:     b.PricePaid,
			RefundAmount:  s.refundFor(b.PricePaid),
			CancelledAt:   now,
		}
		if err := tx.InsertCancellation(ctx, &c); err != nil {
			if errors.Is(err, repository.ErrDuplicatePNR) {
				return &domain.AlreadyCancelledError{PNR: b.PNR, Status: domain.BookingStatusCancelled}
			}
			return err
		}

		ok, err := tx.UpdateBookingStatus(ctx, b.ID, domain.BookingStatusConfirmed, domain.BookingStatusCancelled)
		if err != nil {
			return err
		}
		if !ok {
			return &domain.AlreadyCancelledError{PNR: b.PNR, Status: domain.BookingStatusCancelled}
		}

		b.Status = domain.BookingStatusCancelled
		b.UpdatedAt = now
		cancelled, archived = *b, c
		return nil
	})
	if err != nil {
		err = domain.Persistence("cancel", err)
		metrics.TrackCancellation(outcome(err), time.Since(started))
		s.logFailure("cancellation failed", err, logrus.Fields{"pnr": pnr})
		return nil, err
	}

	metrics.TrackCancellation(metrics.OutcomeCancelled, time.Since(started))
	s.logger.WithFields(logrus.Fields{
		"pnr":           archived.PNR,
		"flight_id":     archived.FlightID,
		"refund_amount": archived.RefundAmount.StringFixed(2),
	}).Info("booking cancelled")

	s.afterCommit(ctx, kafka.EventBookingCancelled, cancelled, archived.RefundAmount)
	return &archived, nil
}

func (s *BookingService) refundFor(paid decimal.Decimal) decimal.Decimal {
	return paid.Mul(s.refundRate).Round(2)
}

func (s *BookingService) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	pnr = NormalizePNR(pnr)
	if pnr == "" {
		return nil, fmt.Errorf("pnr is required: %w", domain.ErrInvalidInput)
	}
	b, err := s.store.Bookings().GetByPNR(ctx, pnr)
	if errors.Is(err, repository.ErrBookingNotFound) {
		return nil, domain.BookingNotFound(pnr)
	}
	if err != nil {
		return nil, domain.Persistence("get booking", err)
	}
	return b, nil
}

func (s *BookingService) History(ctx context.Context, userID int64) ([]domain.Booking, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user id must be positive: %w", domain.ErrInvalidInput)
	}
	bookings, err := s.store.Bookings().ListByUser(ctx, userID, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, domain.Persistence("list bookings", err)
	}
	return bookings, nil
}

func (s *BookingService) Cancellations(ctx context.Context, userID int64) ([]domain.CancelledBooking, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("user id must be positive: %w", domain.ErrInvalidInput)
	}
	cancellations, err := s.store.Bookings().ListCancellationsByUser(ctx, userID)
	if err != nil {
		return nil, domain.Persistence("list cancellations", err)
	}
	return cancellations, nil
}

// afterCommit runs the side effects of a committed booking change. None of
// them can undo the commit, so failures are only logged.
func (s *BookingService) afterCommit(ctx context.Context, eventType string, b domain.Booking, refund decimal.Decimal) {
	if s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{
				"pnr":   b.PNR,
				"error": err.Error(),
			}).Warn("failed to invalidate flights cache")
		}
	}

	if err := s.publish(ctx, eventType, b, refund); err != nil {
		s.logger.WithFields(logrus.Fields{
			"pnr":   b.PNR,
			"event": eventType,
			"error": err.Error(),
		}).Warn("failed to publish booking event")
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, b domain.Booking, refund decimal.Decimal) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.NewBookingEvent(eventType, b, refund, s.clock.Now())
	if err := s.producer.Publish(ctx, s.bookingTopic, b.PNR, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, b.PNR, event)
	}
	return nil
}

func (s *BookingService) logFailure(msg string, err error, fields logrus.Fields) {
	fields["error"] = err.Error()
	entry := s.logger.WithFields(fields)
	if domain.IsBusinessError(err) {
		entry.Info(msg)
		return
	}
	entry.Error(msg)
}

func outcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrSoldOut):
		return metrics.OutcomeSoldOut
	case errors.Is(err, domain.ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, domain.ErrAlreadyCancelled):
		return metrics.OutcomeAlreadyCancelled
	case errors.Is(err, domain.ErrInvalidInput):
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

var _ BookingUseCase = (*BookingService)(nil)
