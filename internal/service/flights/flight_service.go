package flights

import (
	"context"
	"errors"
	"time"

	"github.com/Domenick1991/skyline/internal/clock"
	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/pricing"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/shopspring/decimal"
)

type FlightUseCase interface {
	List(ctx context.Context) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	// Price quotes the current price of one seat without reserving it.
	Price(ctx context.Context, id int64) (*Quote, error)
}

type FlightCache interface {
	GetFlights(ctx context.Context) ([]domain.Flight, error)
	SetFlights(ctx context.Context, flights []domain.Flight) error
}

// Quote is a price computed from the flight row as read at QuotedAt. A later
// booking may pay a different price if the row changes in between.
type Quote struct {
	FlightID            int64           `json:"flight_id"`
	Price               decimal.Decimal `json:"price"`
	BasePrice           decimal.Decimal `json:"base_price"`
	DemandFactor        float64         `json:"demand_factor"`
	OccupancyMultiplier decimal.Decimal `json:"occupancy_multiplier"`
	TimeMultiplier      decimal.Decimal `json:"time_multiplier"`
	SeatsRemaining      int             `json:"seats_remaining"`
	TotalSeats          int             `json:"total_seats"`
	QuotedAt            time.Time       `json:"quoted_at"`
}

type FlightService struct {
	repo   repository.FlightRepository
	cache  FlightCache
	pricer *pricing.Pricer
	clock  clock.Clock
}

func NewFlightService(repo repository.FlightRepository, cache FlightCache, pricer *pricing.Pricer, c clock.Clock) *FlightService {
	if c == nil {
		c = clock.System{}
	}
	return &FlightService{repo: repo, cache: cache, pricer: pricer, clock: c}
}

func (s *FlightService) List(ctx context.Context) ([]domain.Flight, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetFlights(ctx); err == nil && cached != nil {
			return cached, nil
		}
	}

	flights, err := s.repo.List(ctx)
	if err != nil {
		return nil, domain.Persistence("list flights", err)
	}
	if s.cache != nil {
		_ = s.cache.SetFlights(ctx, flights)
	}
	return flights, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	flight, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrFlightNotFound) {
		return nil, domain.FlightNotFound(id)
	}
	if err != nil {
		return nil, domain.Persistence("get flight", err)
	}
	return flight, nil
}

// Price always reads the ledger, never the cache, so the quote reflects the
// latest seats and demand factor.
func (s *FlightService) Price(ctx context.Context, id int64) (*Quote, error) {
	flight, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	at := s.clock.Now()
	b := s.pricer.Quote(*flight, at)
	return &Quote{
		FlightID:            flight.ID,
		Price:               b.Price,
		BasePrice:           b.BasePrice,
		DemandFactor:        b.DemandFactor,
		OccupancyMultiplier: b.OccupancyMultiplier,
		TimeMultiplier:      b.TimeMultiplier,
		SeatsRemaining:      flight.SeatsRemaining,
		TotalSeats:          flight.TotalSeats,
		QuotedAt:            at,
	}, nil
}

var _ FlightUseCase = (*FlightService)(nil)
