package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Booking and cancellation outcomes.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeHeld             = "held"
	OutcomeCancelled        = "cancelled"
	OutcomeSoldOut          = "sold_out"
	OutcomeNotFound         = "not_found"
	OutcomeAlreadyCancelled = "already_cancelled"
	OutcomeInvalid          = "invalid"
	OutcomeError            = "error"
)

var (
	bookings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyline_bookings_total",
			Help: "Booking attempts by outcome",
		},
		[]string{"outcome"},
	)

	cancellations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyline_cancellations_total",
			Help: "Cancellation attempts by outcome",
		},
		[]string{"outcome"},
	)

	bookingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "skyline_booking_duration_seconds",
			Help:    "Duration of the booking and cancellation units of work",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"operation"},
	)

	demandUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "skyline_demand_updates_total",
			Help: "Per-flight demand factor updates by result",
		},
		[]string{"result"},
	)

	pnrCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skyline_pnr_collisions_total",
			Help: "Generated PNRs that were already taken",
		},
	)

	clampedReleases = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "skyline_clamped_releases_total",
			Help: "Seat releases that were no-ops because the flight was already full",
		},
	)
)

func TrackBooking(outcome string, took time.Duration) {
	bookings.WithLabelValues(outcome).Inc()
	bookingDuration.WithLabelValues("book").Observe(took.Seconds())
}

func TrackCancellation(outcome string, took time.Duration) {
	cancellations.WithLabelValues(outcome).Inc()
	bookingDuration.WithLabelValues("cancel").Observe(took.Seconds())
}

// TrackDemandUpdate counts one flight visited by a demand tick. result is
// "updated", "conflict" or "error".
func TrackDemandUpdate(result string) {
	demandUpdates.WithLabelValues(result).Inc()
}

func TrackPNRCollision() {
	pnrCollisions.Inc()
}

func TrackClampedRelease() {
	clampedReleases.Inc()
}
