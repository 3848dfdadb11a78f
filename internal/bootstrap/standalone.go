package bootstrap

import (
	"context"
	"fmt"

	"github.com/Domenick1991/skyline/config"
	"github.com/Domenick1991/skyline/internal/catalog"
	"github.com/Domenick1991/skyline/internal/demand"
	"github.com/Domenick1991/skyline/internal/repository"
	"github.com/sirupsen/logrus"
)

// StartStandalone seeds flights from the catalog file and starts the demand
// simulator against them. The memory driver needs this in the API process
// because seed and worker cannot reach its store. The caller stops the
// returned simulator.
func StartStandalone(ctx context.Context, cfg *config.Config, flights repository.FlightRepository, logger *logrus.Logger, opts ...demand.Option) (*demand.Simulator, error) {
	list, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	if err := catalog.Seed(ctx, flights, list, logger); err != nil {
		return nil, err
	}

	sim, err := demand.NewSimulator(flights, demand.ConfigFrom(cfg.Demand), logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("demand simulator: %w", err)
	}
	if err := sim.Start(ctx); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"catalog":  cfg.Catalog.Path,
		"flights":  len(list),
		"interval": cfg.Demand.Interval().String(),
	}).Info("standalone mode: catalog seeded, demand simulator running in-process")
	return sim, nil
}
