package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/Domenick1991/skyline/config"
	"github.com/Domenick1991/skyline/internal/bootstrap"
	"github.com/Domenick1991/skyline/internal/catalog"
	"github.com/Domenick1991/skyline/internal/logger"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logr := logger.New(cfg.Log)

	catalogPath := flag.String("catalog", cfg.Catalog.Path, "path to the flight catalog YAML")
	flag.Parse()
	if *catalogPath == "" {
		logr.Fatal("catalog path is not set")
	}

	if cfg.Database.Driver == "memory" {
		logr.Fatal("the memory driver is private to the app process, which seeds and simulates it itself")
	}

	ctx := context.Background()
	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		logr.WithError(err).Fatal("open store")
	}
	defer store.Close()

	flights, err := catalog.Load(*catalogPath)
	if err != nil {
		logr.WithError(err).Fatal("load catalog")
	}
	if err := catalog.Seed(ctx, store.Flights(), flights, logr); err != nil {
		logr.WithError(err).Fatal("seed catalog")
	}
}
