package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/infrastructure/kafka"
	"github.com/nghiemng0310/nail/internal/infrastructure/storage"
	"github.com/nghiemng0310/nail/internal/usecase"
	"github.com/nghiemng0310/nail/internal/worker"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	zlog.Init()
	zlog.Logger.Info().Msg("Starting nail gallery cleanup worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(os.Getenv("NAIL_CONFIG"))
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to load config")
	}
	if !cfg.Kafka.Enabled {
		zlog.Logger.Fatal().Msg("kafka is disabled, the cleanup worker has nothing to consume")
	}

	storageService, err := storage.New(&cfg.Storage, cfg.Server.PublicBaseURL)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize storage")
	}

	cleanupUsecase := usecase.NewCleanupUsecase(storageService)
	cleanupWorker := worker.NewCleanupWorker(cleanupUsecase)

	// tasks that keep failing go back to the topic through the producer
	requeue := kafka.NewProducer(&cfg.Kafka)
	defer requeue.Close()

	kafkaConsumer, err := kafka.NewConsumer(&cfg.Kafka, cleanupWorker.HandleCleanupTask, requeue)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("Failed to initialize Kafka consumer")
	}
	defer kafkaConsumer.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := kafkaConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			zlog.Logger.Error().Err(err).Msg("Kafka consumer error")
			stop()
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("Shutdown signal received")
	<-done

	zlog.Logger.Info().Msg("Worker shutdown complete")
}
