// Package inventory guards the seat counter of each flight. A seat is taken
// with one conditional decrement and returned with one clamped increment, so
// seats_remaining never leaves [0, total_seats] whatever the interleaving.
package inventory

import (
	"context"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/metrics"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/sirupsen/logrus"
)

type Guard struct {
	store    repository.Store
	attempts int
	logger   *logrus.Logger
}

func NewGuard(store repository.Store, conflictRetries int, logger *logrus.Logger) *Guard {
	return &Guard{store: store, attempts: conflictRetries, logger: logger}
}

// Reserve takes one seat in its own transaction. It returns false without
// touching the ledger when the flight is sold out or unknown.
func (g *Guard) Reserve(ctx context.Context, flightID int64) (bool, error) {
	var reserved bool
	err := repository.RunInTx(ctx, g.store, g.attempts, func(ctx context.Context, tx repository.Tx) error {
		f, err := g.ReserveIn(ctx, tx, flightID)
		reserved = f != nil
		return err
	})
	if err != nil {
		return false, domain.Persistence("reserve seat", err)
	}
	return reserved, nil
}

// Release returns one seat in its own transaction.
func (g *Guard) Release(ctx context.Context, flightID int64) error {
	err := repository.RunInTx(ctx, g.store, g.attempts, func(ctx context.Context, tx repository.Tx) error {
		return g.ReleaseIn(ctx, tx, flightID)
	})
	return domain.Persistence("release seat", err)
}

// ReserveIn takes one seat inside tx and returns the flight as it was right
// before the decrement, or nil when no seat was available.
func (g *Guard) ReserveIn(ctx context.Context, tx repository.Tx, flightID int64) (*domain.Flight, error) {
	return tx.ReserveSeat(ctx, flightID)
}

// ReleaseIn returns one seat inside tx. A release on a full flight is a no-op
// and is reported as an invariant warning, not an error.
func (g *Guard) ReleaseIn(ctx context.Context, tx repository.Tx, flightID int64) error {
	released, err := tx.ReleaseSeat(ctx, flightID)
	if err != nil {
		return err
	}
	if !released {
		metrics.TrackClampedRelease()
		g.logger.WithFields(logrus.Fields{
			"flight_id": flightID,
		}).Warn("seat release clamped: flight already at total seats")
	}
	return nil
}
