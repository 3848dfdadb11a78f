// Package catalog loads the flight catalog from YAML and seeds the ledger.
package catalog

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type file struct {
	Flights []entry `yaml:"flights"`
}

type entry struct {
	FlightNumber  string   `yaml:"flight_number"`
	Airline       string   `yaml:"airline"`
	Origin        string   `yaml:"origin"`
	Destination   string   `yaml:"destination"`
	BasePrice     string   `yaml:"base_price"`
	TotalSeats    int      `yaml:"total_seats"`
	SeatsRemain   *int     `yaml:"seats_remaining"`
	DemandFactor  *float64 `yaml:"demand_factor"`
	DepartureTime string   `yaml:"departure_time"`
}

func Load(path string) ([]domain.Flight, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse decodes a catalog document. seats_remaining defaults to total_seats
// and demand_factor to 1.0.
func Parse(data []byte) ([]domain.Flight, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Flights))
	flights := make([]domain.Flight, 0, len(f.Flights))
	for i, e := range f.Flights {
		flight, err := e.toFlight()
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		if _, dup := seen[flight.FlightNumber]; dup {
			return nil, fmt.Errorf("catalog entry %d: duplicate flight number %s: %w", i, flight.FlightNumber, domain.ErrInvalidInput)
		}
		seen[flight.FlightNumber] = struct{}{}
		flights = append(flights, flight)
	}
	return flights, nil
}

func (e entry) toFlight() (domain.Flight, error) {
	number := strings.TrimSpace(e.FlightNumber)
	if number == "" {
		return domain.Flight{}, fmt.Errorf("flight_number is required: %w", domain.ErrInvalidInput)
	}

	price, err := decimal.NewFromString(strings.TrimSpace(e.BasePrice))
	if err != nil {
		return domain.Flight{}, fmt.Errorf("flight %s: base_price %q: %w", number, e.BasePrice, domain.ErrInvalidInput)
	}
	if !price.IsPositive() {
		return domain.Flight{}, fmt.Errorf("flight %s: base_price must be positive: %w", number, domain.ErrInvalidInput)
	}

	f := domain.Flight{
		FlightNumber:   number,
		Airline:        e.Airline,
		Origin:         e.Origin,
		Destination:    e.Destination,
		BasePrice:      price.Round(2),
		TotalSeats:     e.TotalSeats,
		SeatsRemaining: e.TotalSeats,
		DemandFactor:   domain.DefaultDemandFactor,
	}
	if e.SeatsRemain != nil {
		f.SeatsRemaining = *e.SeatsRemain
	}
	if e.DemandFactor != nil {
		if *e.DemandFactor <= 0 {
			return domain.Flight{}, fmt.Errorf("flight %s: demand_factor must be positive: %w", number, domain.ErrInvalidInput)
		}
		f.DemandFactor = *e.DemandFactor
	}
	if e.DepartureTime != "" {
		at, err := time.Parse(time.RFC3339, e.DepartureTime)
		if err != nil {
			return domain.Flight{}, fmt.Errorf("flight %s: departure_time: %w", number, domain.ErrInvalidInput)
		}
		f.DepartureTime = at.UTC()
	}

	switch {
	case f.TotalSeats <= 0:
		return domain.Flight{}, fmt.Errorf("flight %s: total_seats must be positive: %w", number, domain.ErrInvalidInput)
	case f.SeatsRemaining < 0 || f.SeatsRemaining > f.TotalSeats:
		return domain.Flight{}, fmt.Errorf("flight %s: seats_remaining outside [0,%d]: %w", number, f.TotalSeats, domain.ErrInvalidInput)
	}
	return f, nil
}

// Seed upserts every flight. Existing rows keep their seats and demand factor.
func Seed(ctx context.Context, repo repository.FlightRepository, flights []domain.Flight, logger *logrus.Logger) error {
	for i := range flights {
		f := flights[i]
		if err := repo.Upsert(ctx, &f); err != nil {
			return fmt.Errorf("seed flight %s: %w", f.FlightNumber, err)
		}
		logger.WithFields(logrus.Fields{
			"flight_id":     f.ID,
			"flight_number": f.FlightNumber,
			"seats":         f.SeatsRemaining,
		}).Debug("flight seeded")
	}
	logger.WithField("count", len(flights)).Info("catalog seeded")
	return nil
}
