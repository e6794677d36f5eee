// Package main is the entry point for the LabelDrop HTTP server. It wires the
// record store, the blob store, the live list and the HTTP routes together.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/dharsanguruparan/LabelDrop/internal/api"
	"github.com/dharsanguruparan/LabelDrop/internal/blobstore"
	"github.com/dharsanguruparan/LabelDrop/internal/config"
	"github.com/dharsanguruparan/LabelDrop/internal/database"
	"github.com/dharsanguruparan/LabelDrop/internal/listview"
	"github.com/dharsanguruparan/LabelDrop/internal/live"
	"github.com/dharsanguruparan/LabelDrop/internal/logging"
	"github.com/dharsanguruparan/LabelDrop/internal/memstore"
	"github.com/dharsanguruparan/LabelDrop/internal/model"
	"github.com/dharsanguruparan/LabelDrop/internal/queue"
	"github.com/dharsanguruparan/LabelDrop/internal/repository"
	"github.com/dharsanguruparan/LabelDrop/internal/status"
	"github.com/dharsanguruparan/LabelDrop/internal/upload"
)

// recordStore is what the server needs from either backing store.
type recordStore interface {
	live.Source
	upload.RecordCreator
	status.Store
	api.RecordGetter
}

const resubscribeDelay = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(2)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Step 1: pick the record store. Postgres is the default; the in-memory
	// store keeps the UI usable without a database during development.
	var (
		store recordStore
		ready func(context.Context) error
	)
	switch cfg.Store {
	case config.StoreMemory:
		logger.Warn("using in-memory record store, records are lost on restart")
		store = memstore.New()
	default:
		if err := database.Migrate(cfg.DatabaseURL, logger); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()
		store = repository.NewRecordRepository(pool)
		ready = pool.Ping
	}

	// Step 2: object storage for the PDFs.
	blobs, err := blobstore.New(cfg)
	if err != nil {
		return err
	}
	if err := blobs.EnsureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}

	uploads := upload.New(blobs, store, cfg.KeyPrefix, logger)
	if cfg.InspectionEnabled() {
		client := asynq.NewClient(queue.RedisOpt(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB))
		defer client.Close()
		uploads.WithEnqueuer(queue.NewEnqueuer(client))
		logger.Info("label inspection enabled", zap.String("redis", cfg.RedisAddr))
	}

	// Step 3: keep the recent window in memory and follow every change.
	view := listview.New(logger, time.Local)
	go follow(ctx, store, view, cfg.RecentLimit, logger)

	srv := api.New(api.Deps{
		Uploads:     uploads,
		Statuses:    status.New(store, logger),
		Records:     store,
		Objects:     blobs,
		View:        view,
		Logger:      logger,
		MaxFileSize: cfg.MaxFileSize,
		Ready:       ready,
	})
	return srv.Run(ctx, cfg.Address)
}

// follow feeds view from a live subscription and subscribes again after a
// failure. The view shows its banner until a new snapshot arrives.
func follow(ctx context.Context, src live.Source, view *listview.View, limit int, logger *zap.Logger) {
	for {
		sub, err := live.Watch(ctx, src, limit, logger)
		if err != nil {
			view.Fail(err)
		} else {
			err = view.Run(ctx, sub)
			sub.Close()
		}
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, model.ErrSubscription) {
			logger.Warn("list view stopped", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(resubscribeDelay):
		}
	}
}
