package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Domenick1991/skyline/config"
	"github.com/Domenick1991/skyline/internal/bootstrap"
	"github.com/Domenick1991/skyline/internal/cache"
	"github.com/Domenick1991/skyline/internal/clock"
	"github.com/Domenick1991/skyline/internal/demand"
	"github.com/Domenick1991/skyline/internal/inventory"
	"github.com/Domenick1991/skyline/internal/kafka"
	"github.com/Domenick1991/skyline/internal/logger"
	"github.com/Domenick1991/skyline/internal/pricing"
	"github.com/Domenick1991/skyline/internal/service/booking"
	"github.com/Domenick1991/skyline/internal/service/flights"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		logr.WithError(err).Fatal("open store")
	}
	defer store.Close()

	pricer, err := pricing.New(pricing.PolicyFromConfig(cfg.Pricing))
	if err != nil {
		logr.WithError(err).Fatal("pricing policy")
	}

	bookingOpts := []booking.BookingServiceOption{
		booking.WithPNRGenerator(booking.NewRandomPNR(cfg.Booking.PNRLength)),
		booking.WithPNRAttempts(cfg.Booking.PNRMaxAttempts),
		booking.WithConflictRetries(cfg.Booking.MaxConflictRetries),
		booking.WithRefundRate(cfg.Booking.RefundRate),
	}

	var (
		flightCache flights.FlightCache
		simOpts     []demand.Option
	)
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
		defer redisCache.Close()
		flightCache = redisCache
		bookingOpts = append(bookingOpts, booking.WithCache(redisCache))
		simOpts = append(simOpts, demand.WithLocker(redisCache), demand.WithCache(redisCache))
	}

	// Nothing outside this process can reach a memory store.
	if cfg.Database.Driver == "memory" {
		simulator, err := bootstrap.StartStandalone(ctx, cfg, store.Flights(), logr, simOpts...)
		if err != nil {
			logr.WithError(err).Fatal("standalone mode")
		}
		defer simulator.Stop()
	}

	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logr)
		defer producer.Close()
		if err := producer.CheckConnection(ctx); err != nil {
			logr.WithError(err).Warn("kafka is not reachable, booking events may be dropped")
		}
		bookingOpts = append(bookingOpts,
			booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic),
			booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		)
	}

	guard := inventory.NewGuard(store, cfg.Booking.MaxConflictRetries, logr)
	flightService := flights.NewFlightService(store.Flights(), flightCache, pricer, clock.System{})
	bookingService := booking.NewBookingService(store, guard, pricer, logr, bookingOpts...)

	if err := bootstrap.Run(ctx, cfg, flightService, bookingService, store, logr); err != nil {
		logr.WithFields(logrus.Fields{"error": err.Error()}).Fatal("server error")
	}
}
