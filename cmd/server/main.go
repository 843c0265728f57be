package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"go.uber.org/zap"

	"github.com/erain9/limitbook/config"
	"github.com/erain9/limitbook/pkg/backend/memory"
	redisbackend "github.com/erain9/limitbook/pkg/backend/redis"
	"github.com/erain9/limitbook/pkg/core"
	"github.com/erain9/limitbook/pkg/db/queue"
	"github.com/erain9/limitbook/pkg/logging"
	"github.com/erain9/limitbook/pkg/messaging"
	messagingkafka "github.com/erain9/limitbook/pkg/messaging/kafka"
	"github.com/erain9/limitbook/pkg/server"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logging.Setup(logging.Config{
		Level:  cfg.Server.LogLevel,
		Pretty: cfg.Server.LogFormat == "pretty",
	})

	backend, err := buildBackend(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build backend")
	}

	book := core.NewBook(backend, core.WithLogger(log.Logger))

	sender, err := buildSender(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build trade sender")
	}
	if sender != nil {
		defer sender.Close()
	}

	srv := server.NewServer(book, sender, log.Logger)

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: srv.Router(),
	}

	go func() {
		log.Info().
			Str("addr", cfg.Server.HTTPAddr).
			Str("backend", cfg.Backend.Type).
			Msg("Starting limitbook server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown failed")
	}
}

func buildBackend(cfg *config.Config) (core.BookBackend, error) {
	switch cfg.Backend.Type {
	case "", "memory":
		return memory.NewMemoryBackend(), nil
	case "redis":
		redisbackend.SetDefaultRedisOptions(&redisbackend.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		zapLogger, err := zap.NewProduction()
		if err != nil {
			return nil, err
		}
		client := redisbackend.GetRedisClient()
		return redisbackend.NewRedisBackend(client, "limitbook", zapLogger), nil
	default:
		return nil, errors.New("unknown backend type: " + cfg.Backend.Type)
	}
}

func buildSender(cfg *config.Config) (messaging.TradeSender, error) {
	switch cfg.Kafka.Driver {
	case "":
		return nil, nil
	case "sarama":
		return queue.PooledSender{}, nil
	case "segmentio":
		return messagingkafka.NewKafkaTradeSender(cfg.Kafka.BrokerAddr, cfg.Kafka.Topic)
	default:
		return nil, errors.New("unknown kafka driver: " + cfg.Kafka.Driver)
	}
}
