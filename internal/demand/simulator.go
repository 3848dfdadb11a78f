// Package demand periodically perturbs each flight's demand factor to stand in
// for market signals. It never touches seat counts.
package demand

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Domenick1991/skyline/config"
	"github.com/Domenick1991/skyline/internal/metrics"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/sirupsen/logrus"
)

const tickLockKey = "demand:tick"

var ErrAlreadyRunning = errors.New("demand simulator already running")

// Locker coordinates ticks across engine instances.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// Cache is the flight list cache made stale by a factor change.
type Cache interface {
	InvalidateFlights(ctx context.Context) error
}

type Config struct {
	Interval  time.Duration
	StepMin   float64
	StepMax   float64
	FactorMin float64
	FactorMax float64
	LockTTL   time.Duration
}

func ConfigFrom(cfg config.DemandConfig) Config {
	return Config{
		Interval:  cfg.Interval(),
		StepMin:   cfg.StepMin,
		StepMax:   cfg.StepMax,
		FactorMin: cfg.FactorMin,
		FactorMax: cfg.FactorMax,
		LockTTL:   cfg.LockTTL(),
	}
}

// TickResult counts what one pass over the flights did.
type TickResult struct {
	Visited   int
	Updated   int
	Conflicts int
	Failed    int
	// Skipped is set when another instance held the tick lock.
	Skipped bool
}

type Simulator struct {
	flights repository.FlightRepository
	cfg     Config
	locker  Locker
	cache   Cache
	logger  *logrus.Logger

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

type Option func(*Simulator)

func WithLocker(l Locker) Option {
	return func(s *Simulator) {
		s.locker = l
	}
}

func WithCache(c Cache) Option {
	return func(s *Simulator) {
		s.cache = c
	}
}

// WithRand fixes the random source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Simulator) {
		s.rng = r
	}
}

func NewSimulator(flights repository.FlightRepository, cfg Config, logger *logrus.Logger, opts ...Option) (*Simulator, error) {
	switch {
	case cfg.StepMin <= 0 || cfg.StepMax < cfg.StepMin:
		return nil, fmt.Errorf("demand: invalid step range [%v, %v]", cfg.StepMin, cfg.StepMax)
	case cfg.FactorMin <= 0 || cfg.FactorMax < cfg.FactorMin:
		return nil, fmt.Errorf("demand: invalid factor range [%v, %v]", cfg.FactorMin, cfg.FactorMax)
	case cfg.Interval <= 0:
		return nil, fmt.Errorf("demand: interval must be positive")
	}

	s := &Simulator{
		flights: flights,
		cfg:     cfg,
		logger:  logger,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NextFactor applies one random step to old: round to two decimals, then clamp.
func (s *Simulator) NextFactor(old, step float64) float64 {
	next := math.Round(old*step*100) / 100
	return math.Min(math.Max(next, s.cfg.FactorMin), s.cfg.FactorMax)
}

func (s *Simulator) step() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.cfg.StepMin + s.rng.Float64()*(s.cfg.StepMax-s.cfg.StepMin)
}

// Tick visits every flight once. A flight whose factor changed underneath it
// or whose update failed is skipped; the pass goes on with the next one.
func (s *Simulator) Tick(ctx context.Context) (TickResult, error) {
	var res TickResult

	if s.locker != nil {
		token, ok, err := s.locker.AcquireLock(ctx, tickLockKey, s.cfg.LockTTL)
		switch {
		case err != nil:
			// Without the lock another instance may tick too; the CAS keeps
			// each write consistent.
			s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("demand tick lock unavailable, ticking unlocked")
		case !ok:
			res.Skipped = true
			return res, nil
		default:
			defer func() {
				if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), tickLockKey, token); err != nil {
					s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("failed to release demand tick lock")
				}
			}()
		}
	}

	flights, err := s.flights.List(ctx)
	if err != nil {
		return res, fmt.Errorf("list flights: %w", err)
	}

	for _, f := range flights {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		res.Visited++

		next := s.NextFactor(f.DemandFactor, s.step())
		ok, err := s.flights.CompareAndSetDemandFactor(ctx, f.ID, f.DemandFactor, next)
		switch {
		case err != nil:
			res.Failed++
			metrics.TrackDemandUpdate("error")
			s.logger.WithFields(logrus.Fields{
				"flight_id": f.ID,
				"error":     err.Error(),
			}).Warn("demand update failed")
		case !ok:
			res.Conflicts++
			metrics.TrackDemandUpdate("conflict")
			s.logger.WithFields(logrus.Fields{
				"flight_id": f.ID,
			}).Debug("demand factor changed concurrently, skipped")
		default:
			res.Updated++
			metrics.TrackDemandUpdate("updated")
		}
	}

	if res.Updated > 0 && s.cache != nil {
		if err := s.cache.InvalidateFlights(ctx); err != nil {
			s.logger.WithFields(logrus.Fields{"error": err.Error()}).Warn("failed to invalidate flights cache")
		}
	}

	s.logger.WithFields(logrus.Fields{
		"visited":   res.Visited,
		"updated":   res.Updated,
		"conflicts": res.Conflicts,
		"failed":    res.Failed,
	}).Info("demand tick finished")
	return res, nil
}

// Start runs Tick every interval until Stop is called or ctx ends.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel, s.done, s.running = cancel, done, true

	go func() {
		defer close(done)
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.Tick(ctx); err != nil && ctx.Err() == nil {
					s.logger.WithFields(logrus.Fields{"error": err.Error()}).Error("demand tick failed")
				}
			}
		}
	}()
	return nil
}

// Stop cancels the loop and waits for a tick in progress to return.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}
