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
	"github.com/Domenick1991/skyline/internal/demand"
	"github.com/Domenick1991/skyline/internal/email"
	"github.com/Domenick1991/skyline/internal/kafka"
	"github.com/Domenick1991/skyline/internal/logger"
	"github.com/joho/godotenv"
	kafkaGo "github.com/segmentio/kafka-go"
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

	if cfg.Database.Driver == "memory" {
		logr.Fatal("the memory driver is private to the app process, which seeds and simulates it itself")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := bootstrap.OpenStore(ctx, cfg.Database)
	if err != nil {
		logr.WithError(err).Fatal("open store")
	}
	defer store.Close()

	var simOpts []demand.Option
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.FlightsCacheTTL)*time.Second)
		defer redisCache.Close()
		simOpts = append(simOpts, demand.WithLocker(redisCache), demand.WithCache(redisCache))
	}

	simulator, err := demand.NewSimulator(store.Flights(), demand.ConfigFrom(cfg.Demand), logr, simOpts...)
	if err != nil {
		logr.WithError(err).Fatal("demand simulator")
	}
	if err := simulator.Start(ctx); err != nil {
		logr.WithError(err).Fatal("start demand simulator")
	}
	defer simulator.Stop()

	if len(cfg.Kafka.Brokers) > 0 && cfg.Kafka.NotificationsTopic != "" {
		consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic, logr)
		defer consumer.Close()

		sender := email.NewSender(logr)
		go func() {
			err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				event, err := kafka.DecodeBookingEvent(msg.Value)
				if err != nil {
					logr.WithFields(logrus.Fields{
						"offset": msg.Offset,
						"error":  err.Error(),
					}).Warn("skipping malformed event")
					return nil
				}
				return sender.Send(ctx, event)
			})
			if err != nil {
				logr.WithError(err).Error("consumer stopped")
			}
		}()
	}

	logr.WithField("interval", cfg.Demand.Interval().String()).Info("worker started")
	<-ctx.Done()
	logr.Info("worker shutting down")
}
