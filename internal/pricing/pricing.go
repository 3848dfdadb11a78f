// Package pricing computes ticket prices from a flight's ledger state.
//
// price = base_price × demand_factor × occupancy_multiplier × time_multiplier,
// rounded to cents. Everything here is pure: no I/O, no locks, no clock reads.
package pricing

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/Domenick1991/skyline/config"
	"github.com/Domenick1991/skyline/internal/domain"
	"github.com/shopspring/decimal"
)

// Tier applies Multiplier when the measured value is above (occupancy) or at
// least (days to departure) Above.
type Tier struct {
	Above      float64
	Multiplier decimal.Decimal
}

type Policy struct {
	// OccupancyTiers are matched against seats_remaining / total_seats.
	OccupancyTiers []Tier
	OccupancyFloor decimal.Decimal
	OccupancyMin   decimal.Decimal
	OccupancyMax   decimal.Decimal
	// DepartureTiers are matched against days until departure.
	DepartureTiers []Tier
	DepartureFloor decimal.Decimal
	// Undated applies to flights without a departure time.
	Undated decimal.Decimal
}

// Breakdown is a price together with the factors that produced it.
type Breakdown struct {
	Price               decimal.Decimal
	BasePrice           decimal.Decimal
	DemandFactor        float64
	OccupancyMultiplier decimal.Decimal
	TimeMultiplier      decimal.Decimal
}

type Pricer struct {
	policy Policy
}

func DefaultPolicy() Policy {
	var cfg config.Config
	cfg.ApplyDefaults()
	return PolicyFromConfig(cfg.Pricing)
}

func PolicyFromConfig(cfg config.PricingConfig) Policy {
	return Policy{
		OccupancyTiers: tiersFromConfig(cfg.OccupancyTiers),
		OccupancyFloor: decimal.NewFromFloat(cfg.OccupancyFloor),
		OccupancyMin:   decimal.NewFromFloat(cfg.OccupancyMin),
		OccupancyMax:   decimal.NewFromFloat(cfg.OccupancyMax),
		DepartureTiers: tiersFromConfig(cfg.DepartureTiers),
		DepartureFloor: decimal.NewFromFloat(cfg.DepartureFloor),
		Undated:        decimal.NewFromFloat(cfg.UndatedMultiplier),
	}
}

func tiersFromConfig(in []config.PricingTier) []Tier {
	out := make([]Tier, 0, len(in))
	for _, t := range in {
		out = append(out, Tier{Above: t.Above, Multiplier: decimal.NewFromFloat(t.Multiplier)})
	}
	return out
}

// New validates the policy. Occupancy tiers must not raise the multiplier as
// more seats remain, otherwise price would stop being monotonic.
func New(policy Policy) (*Pricer, error) {
	policy.OccupancyTiers = sortedDesc(policy.OccupancyTiers)
	policy.DepartureTiers = sortedDesc(policy.DepartureTiers)

	if policy.OccupancyMin.IsNegative() || policy.OccupancyMax.LessThan(policy.OccupancyMin) {
		return nil, errors.New("pricing: occupancy bounds are inconsistent")
	}
	prev := decimal.Zero
	for i, t := range policy.OccupancyTiers {
		if !t.Multiplier.IsPositive() {
			return nil, fmt.Errorf("pricing: occupancy tier %v has non-positive multiplier", t.Above)
		}
		if i > 0 && t.Multiplier.LessThan(prev) {
			return nil, fmt.Errorf("pricing: occupancy tier %v is cheaper than a tier with more seats left", t.Above)
		}
		prev = t.Multiplier
	}
	if len(policy.OccupancyTiers) > 0 && policy.OccupancyFloor.LessThan(prev) {
		return nil, errors.New("pricing: occupancy floor is cheaper than the last tier")
	}
	if !policy.Undated.IsPositive() || !policy.DepartureFloor.IsPositive() {
		return nil, errors.New("pricing: time multipliers must be positive")
	}
	return &Pricer{policy: policy}, nil
}

// Default returns a pricer with the built-in policy.
func Default() *Pricer {
	p, err := New(DefaultPolicy())
	if err != nil {
		panic(err)
	}
	return p
}

func sortedDesc(in []Tier) []Tier {
	out := append([]Tier(nil), in...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Above > out[j].Above })
	return out
}

// Price returns the price of one seat on f at now.
func (p *Pricer) Price(f domain.Flight, now time.Time) decimal.Decimal {
	return p.Quote(f, now).Price
}

// Quote panics on a flight that violates the ledger invariants; such a value
// can only come from a programming error.
func (p *Pricer) Quote(f domain.Flight, now time.Time) Breakdown {
	mustBeValid(f)

	occupancy := p.OccupancyMultiplier(f.SeatsRemaining, f.TotalSeats)
	timeFactor := p.TimeMultiplier(f.DepartureTime, now)
	price := f.BasePrice.
		Mul(decimal.NewFromFloat(f.DemandFactor)).
		Mul(occupancy).
		Mul(timeFactor).
		Round(2)

	return Breakdown{
		Price:               price,
		BasePrice:           f.BasePrice,
		DemandFactor:        f.DemandFactor,
		OccupancyMultiplier: occupancy,
		TimeMultiplier:      timeFactor,
	}
}

func (p *Pricer) OccupancyMultiplier(seatsRemaining, totalSeats int) decimal.Decimal {
	ratio := float64(seatsRemaining) / float64(totalSeats)
	m := p.policy.OccupancyFloor
	for _, t := range p.policy.OccupancyTiers {
		if ratio > t.Above {
			m = t.Multiplier
			break
		}
	}
	return clamp(m, p.policy.OccupancyMin, p.policy.OccupancyMax)
}

func (p *Pricer) TimeMultiplier(departure, now time.Time) decimal.Decimal {
	if departure.IsZero() {
		return p.policy.Undated
	}
	days := departure.Sub(now).Hours() / 24
	for _, t := range p.policy.DepartureTiers {
		if days >= t.Above {
			return t.Multiplier
		}
	}
	return p.policy.DepartureFloor
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}

func mustBeValid(f domain.Flight) {
	switch {
	case f.TotalSeats <= 0:
		panic(fmt.Sprintf("pricing: flight %d has total_seats %d", f.ID, f.TotalSeats))
	case f.SeatsRemaining < 0 || f.SeatsRemaining > f.TotalSeats:
		panic(fmt.Sprintf("pricing: flight %d has seats_remaining %d outside [0,%d]", f.ID, f.SeatsRemaining, f.TotalSeats))
	case f.DemandFactor <= 0:
		panic(fmt.Sprintf("pricing: flight %d has demand_factor %v", f.ID, f.DemandFactor))
	case f.BasePrice.IsNegative():
		panic(fmt.Sprintf("pricing: flight %d has negative base price", f.ID))
	}
}
