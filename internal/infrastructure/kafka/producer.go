package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/dto"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type Producer struct {
	client *wbfkafka.Producer
	topic  string
}

func NewProducer(cfg *config.KafkaConfig) *Producer {
	client := wbfkafka.NewProducer(cfg.Brokers, cfg.Topic)
	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Msg("kafka producer initialized")
	return &Producer{
		client: client,
		topic:  cfg.Topic,
	}
}

// PublishCleanupTask queues a blob for removal by the worker. The URL is the
// message key so retries of the same blob land on one partition.
func (p *Producer) PublishCleanupTask(ctx context.Context, url, reason string) error {
	task := dto.BlobCleanupTask{URL: url, Reason: reason}
	data, err := json.Marshal(task)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("url", url).Msg("failed to marshal cleanup task")
		return err
	}

	strategy := retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}
	if err := p.client.SendWithRetry(ctx, strategy, []byte(url), data); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("url", url).
			Str("reason", reason).
			Msg("failed to send cleanup task")
		return err
	}

	zlog.Logger.Info().
		Str("url", url).
		Str("reason", reason).
		Msg("cleanup task sent to kafka")
	return nil
}

func (p *Producer) Close() error {
	if err := p.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer")
		return err
	}
	zlog.Logger.Info().Msg("kafka producer closed")
	return nil
}
