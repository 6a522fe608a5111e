package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/layer-3/keeper"
	"github.com/layer-3/keeper/adapters/events"
	"github.com/layer-3/keeper/adapters/hasher"
	"github.com/layer-3/keeper/adapters/tokenizer"
	"github.com/layer-3/keeper/internal/bootstrap"
	"github.com/layer-3/keeper/internal/config"
	"github.com/layer-3/keeper/internal/logging"
	"github.com/layer-3/keeper/internal/metrics"
	"github.com/layer-3/keeper/ports"
	"github.com/layer-3/keeper/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(os.Stderr, cfg.LogLevel, cfg.LogPretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error().Err(err).Msg("keeper stopped with error")
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	gin.SetMode(cfg.GinMode)

	tok, err := tokenizer.NewJWTTokenizer(tokenizer.Config{
		Secret:     []byte(cfg.JWTSecret),
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	})
	if err != nil {
		return fmt.Errorf("create tokenizer: %w", err)
	}

	stores, err := bootstrap.Open(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close storage")
		}
	}()

	var eventPub ports.EventPublisher = events.NopPublisher{}
	if cfg.EventsEnabled {
		publisher, err := redisstream.NewPublisher(
			redisstream.PublisherConfig{
				Client: stores.Redis,
			},
			logging.NewWatermillAdapter(log),
		)
		if err != nil {
			return fmt.Errorf("create redis stream publisher: %w", err)
		}
		defer publisher.Close()
		eventPub = events.NewWatermillPublisher(publisher, cfg.EventsTopicPrefix)
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	authService := service.NewAuthService(service.Dependencies{
		Tokenizer:      tok,
		Registry:       stores.Registry,
		Directory:      stores.Directory,
		Hasher:         hasher.NewBcrypt(cfg.BcryptCost),
		Events:         eventPub,
		Metrics:        metrics.New(promRegistry),
		Logger:         log.With().Str("component", "auth").Logger(),
		StorageTimeout: cfg.StorageTimeoutDuration(),
	})

	srv := keeper.NewServer(cfg.HTTPAddr, authService, log.With().Str("component", "http").Logger(), promRegistry)
	return srv.Run(ctx)
}
