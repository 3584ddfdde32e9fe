// Package main wires together the channel scout service binary.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcppubsub "cloud.google.com/go/pubsub"
	gcpstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/channelscout/channelscout/internal/api"
	"github.com/channelscout/channelscout/internal/archive/gcs"
	cacheredis "github.com/channelscout/channelscout/internal/cache/redis"
	"github.com/channelscout/channelscout/internal/clock/system"
	"github.com/channelscout/channelscout/internal/config"
	"github.com/channelscout/channelscout/internal/hash/sha256"
	"github.com/channelscout/channelscout/internal/id/uuid"
	"github.com/channelscout/channelscout/internal/logging"
	pubsubpublisher "github.com/channelscout/channelscout/internal/publisher/pubsub"
	"github.com/channelscout/channelscout/internal/scrape"
	"github.com/channelscout/channelscout/internal/storage/postgres"
	"github.com/channelscout/channelscout/internal/youtube"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	keyword := flag.String("keyword", "", "Run one scrape for this keyword and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewChannelStore(ctx, postgres.ChannelStoreConfig{
		DSN:      cfg.DB.DSN,
		Table:    cfg.DB.Table,
		MaxConns: cfg.DB.MaxConns,
		MinConns: cfg.DB.MinConns,
	})
	if err != nil {
		logger.Fatal("channel store init failed", zap.Error(err))
	}
	defer store.Close()

	clock := system.New()
	hasher := sha256.New()
	idGen := uuid.New()

	var archiveStore scrape.BlobStore
	if cfg.Archive.GCSBucket != "" {
		gcsClient, err := gcpstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		archiveStore, err = gcs.New(gcsClient, gcs.Config{Bucket: cfg.Archive.GCSBucket})
		if err != nil {
			logger.Fatal("archive init failed", zap.Error(err))
		}
	}

	client := youtube.New(youtube.Config{
		APIKey:        cfg.YouTube.APIKey,
		BaseURL:       cfg.YouTube.BaseURL,
		Timeout:       cfg.ClientTimeout(),
		MaxRetries:    cfg.YouTube.MaxRetries,
		BackoffBase:   cfg.BackoffBase(),
		BackoffMax:    cfg.BackoffMax(),
		ArchivePrefix: cfg.Archive.Prefix,
	}, clock, archiveStore, hasher, logger.Named("youtube"))

	var enricher scrape.Enricher = client
	if cfg.Redis.URL != "" {
		rdb, err := cacheredis.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			logger.Fatal("redis init failed", zap.Error(err))
		}
		enricher = cacheredis.NewEnricher(client, rdb, cfg.CacheTTL(), clock, logger.Named("cache"))
	}

	var publisher scrape.Publisher
	if cfg.PubSub.ProjectID != "" && cfg.PubSub.TopicName != "" {
		psClient, err := gcppubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		publisher = pubsubpublisher.New(psClient)
	}

	pipeline := scrape.NewPipeline(
		client,
		enricher,
		scrape.MinSubscribersPolicy{Min: cfg.Pipeline.MinSubscribers},
		store,
		publisher,
		clock,
		idGen,
		scrape.PipelineConfig{
			Limit:       cfg.Pipeline.Limit,
			Concurrency: cfg.Pipeline.Concurrency,
			Topic:       cfg.PubSub.TopicName,
		},
		logger.Named("pipeline"),
	)

	if *keyword != "" {
		runOnce(ctx, pipeline, *keyword, logger)
		return
	}

	apiServer := api.NewServer(pipeline, logger.Named("api"))
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// runOnce performs a single pipeline run and prints the result as JSON.
func runOnce(ctx context.Context, pipeline *scrape.Pipeline, keyword string, logger *zap.Logger) {
	res, err := pipeline.Run(ctx, keyword)
	if err != nil {
		logger.Error("scrape run failed", zap.String("keyword", keyword), zap.Error(err))
		os.Exit(1)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		logger.Error("encode result failed", zap.Error(err))
		os.Exit(1)
	}
}
