package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/domain"
	httpHandler "github.com/nghiemng0310/nail/internal/handler/http"
	"github.com/nghiemng0310/nail/internal/handler/middleware"
	"github.com/nghiemng0310/nail/internal/helpers"
	"github.com/nghiemng0310/nail/internal/infrastructure/codec"
	infradatabase "github.com/nghiemng0310/nail/internal/infrastructure/database"
	"github.com/nghiemng0310/nail/internal/infrastructure/kafka"
	"github.com/nghiemng0310/nail/internal/infrastructure/storage"
	"github.com/nghiemng0310/nail/internal/metrics"
	"github.com/nghiemng0310/nail/internal/repository/cached"
	"github.com/nghiemng0310/nail/internal/repository/postgres"
	"github.com/nghiemng0310/nail/internal/repository/sqlite"
	"github.com/nghiemng0310/nail/internal/retry"
	"github.com/nghiemng0310/nail/internal/usecase"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting nail gallery API server")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("NAIL_CONFIG"))
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}

	repo, closeDB, err := openRepository(cfg)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open catalog")
	}
	defer closeDB()
	repo = cached.NewImageRepository(repo, time.Duration(cfg.Gallery.CacheTTLSec)*time.Second)

	storageService, err := storage.New(&cfg.Storage, cfg.Server.PublicBaseURL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	galleryMetrics, err := metrics.NewGalleryMetrics(prometheus.NewRegistry())
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to register metrics")
	}

	imageCodec := codec.New(&cfg.Processing).WithObserver(func(d time.Duration) {
		galleryMetrics.RecordCodec(d.Seconds())
	})

	var queue domain.QueueService = kafka.NoopQueue{}
	if cfg.Kafka.Enabled {
		queue = kafka.NewProducer(&cfg.Kafka)
	}
	defer queue.Close()

	imageUsecase := usecase.NewImageUsecase(repo, storageService, imageCodec, queue, galleryMetrics, usecase.Options{
		MaxDimension: cfg.Processing.MaxDimension,
		Quality:      cfg.Processing.Quality,
		ImagesDir:    cfg.Storage.ImagesDir,
		PageSize:     cfg.Gallery.PageSize,
	})

	imageHandler := httpHandler.NewImageHandler(
		imageUsecase,
		cfg.Server.MaxUploadSizeMB,
		cfg.Processing.SupportedFormats,
	)

	routerOpts := httpHandler.RouterOptions{
		Metrics: galleryMetrics,
		Likes:   middleware.NewIPRateLimiter(cfg.Likes.RatePerMinute, cfg.Likes.Burst),
	}
	if cfg.Storage.Type == "local" {
		routerOpts.FilesDir = cfg.Storage.LocalPath
	}
	engine := httpHandler.NewRouter(imageHandler, routerOpts)

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
	}

	go func() {
		zlog.Logger.Info().Str("addr", cfg.Server.Addr).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Logger.Fatal().Err(err).Msg("Failed to start API server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeoutSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("HTTP server shutdown failed")
	} else {
		zlog.Logger.Info().Msg("HTTP server stopped gracefully")
	}

	zlog.Logger.Info().Msg("API shutdown complete")
}

// openRepository connects the configured catalog backend, applies migrations
// and returns the repository with a func that releases the connections.
func openRepository(cfg *config.Config) (domain.ImageRepository, func(), error) {
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := infradatabase.OpenSQLite(cfg.Database.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		if err := infradatabase.RunMigrations(db, "sqlite", cfg.Migrations.Path); err != nil {
			db.Close()
			return nil, nil, err
		}
		closeFn := func() { closeSQL(db) }
		return sqlite.NewImageRepository(db, cfg.Gallery.PageSize, cfg.Gallery.FilterCap), closeFn, nil

	case "postgres":
		var slaves []string
		if strings.TrimSpace(cfg.Database.Slaves) != "" {
			slaves = helpers.SplitAndTrim(cfg.Database.Slaves, ",")
		}
		dbOpts := &dbpg.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: time.Duration(cfg.Database.ConnMaxLifetimeSec) * time.Second,
		}
		database, err := infradatabase.ConnectWithRetries(cfg.Database.DSN, slaves, dbOpts,
			cfg.Database.ConnectRetries, cfg.Database.ConnectRetryDelaySec)
		if err != nil {
			return nil, nil, err
		}

		zlog.Logger.Info().Msg("Running database migrations...")
		if err := infradatabase.RunMigrations(database.Master, "postgres", cfg.Migrations.Path); err != nil {
			infradatabase.Close(database)
			return nil, nil, err
		}
		closeFn := func() { infradatabase.Close(database) }
		repo := postgres.NewImageRepository(database, retry.FromConfig(&cfg.Database),
			cfg.Gallery.PageSize, cfg.Gallery.FilterCap)
		return repo, closeFn, nil
	}
	return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

func closeSQL(db *sql.DB) {
	if err := db.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("closing sqlite failed")
	} else {
		zlog.Logger.Info().Msg("sqlite closed")
	}
}
