package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/dto"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

type MessageHandler func(ctx context.Context, task *dto.BlobCleanupTask) error

// Requeuer puts a task that keeps failing back at the end of the topic.
type Requeuer interface {
	PublishCleanupTask(ctx context.Context, url, reason string) error
}

// messageClient is the part of the wbf consumer used here.
type messageClient interface {
	FetchWithRetry(ctx context.Context, strategy retry.Strategy) (kafkago.Message, error)
	Commit(ctx context.Context, msg kafkago.Message) error
	Close() error
}

var (
	fetchStrategy = retry.Strategy{
		Attempts: 3,
		Delay:    2 * time.Second,
		Backoff:  2.0,
	}
	handleStrategy = retry.Strategy{
		Attempts: 3,
		Delay:    time.Second,
		Backoff:  2.0,
	}
)

type Consumer struct {
	client   messageClient
	handler  MessageHandler
	requeue  Requeuer
	topic    string
	strategy retry.Strategy
}

// NewConsumer builds a consumer for cfg.Topic. requeue may be nil, in which
// case a failing task is retried in place until it succeeds or ctx ends.
func NewConsumer(cfg *config.KafkaConfig, handler MessageHandler, requeue Requeuer) (*Consumer, error) {
	client := wbfkafka.NewConsumer(cfg.Brokers, cfg.Topic, cfg.GroupID)

	zlog.Logger.Info().
		Strs("brokers", cfg.Brokers).
		Str("topic", cfg.Topic).
		Str("group_id", cfg.GroupID).
		Msg("kafka consumer initialized")

	return newConsumer(client, cfg.Topic, handler, requeue, handleStrategy), nil
}

func newConsumer(client messageClient, topic string, handler MessageHandler, requeue Requeuer, strategy retry.Strategy) *Consumer {
	return &Consumer{
		client:   client,
		handler:  handler,
		requeue:  requeue,
		topic:    topic,
		strategy: strategy,
	}
}

// Start consumes until ctx is done. The reader moves past every fetched
// message, so a message is committed only once its task is settled: handled,
// or published again after the in-place retries ran out. Malformed messages
// are committed and dropped.
func (c *Consumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			zlog.Logger.Info().Msg("kafka consumer stopped")
			return nil
		default:
		}

		msg, err := c.client.FetchWithRetry(ctx, fetchStrategy)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			zlog.Logger.Error().Err(err).Msg("failed to fetch kafka message")
			time.Sleep(time.Second)
			continue
		}

		c.process(ctx, msg)
	}
}

func (c *Consumer) process(ctx context.Context, msg kafkago.Message) {
	task, ok := DecodeCleanupTask(msg.Value)
	if ok && !c.settle(ctx, task) {
		zlog.Logger.Warn().Str("url", task.URL).Int64("offset", msg.Offset).Msg("cleanup task unsettled at shutdown, leaving uncommitted")
		return
	}

	if err := c.client.Commit(ctx, msg); err != nil {
		zlog.Logger.Error().Err(err).Int64("offset", msg.Offset).Msg("failed to commit message")
		return
	}
	if ok {
		zlog.Logger.Info().Str("url", task.URL).Msg("cleanup task processed and committed")
	}
}

// settle reports whether the task no longer depends on this message: it was
// handled, or handed back to the topic. It returns false only when ctx ends
// first.
func (c *Consumer) settle(ctx context.Context, task *dto.BlobCleanupTask) bool {
	for {
		err := retry.Do(func() error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return c.handler(ctx, task)
		}, c.strategy)
		if err == nil {
			return true
		}
		zlog.Logger.Error().Err(err).Str("url", task.URL).Int("attempts", c.strategy.Attempts).Msg("cleanup task failed")

		if c.requeue != nil && ctx.Err() == nil {
			perr := c.requeue.PublishCleanupTask(ctx, task.URL, task.Reason)
			if perr == nil {
				zlog.Logger.Warn().Str("url", task.URL).Msg("cleanup task published again for a later attempt")
				return true
			}
			zlog.Logger.Error().Err(perr).Str("url", task.URL).Msg("failed to publish cleanup task again")
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.strategy.Delay):
		}
	}
}

// DecodeCleanupTask parses a message body, logging and rejecting anything
// without a URL.
func DecodeCleanupTask(value []byte) (*dto.BlobCleanupTask, bool) {
	var task dto.BlobCleanupTask
	if err := json.Unmarshal(value, &task); err != nil {
		zlog.Logger.Error().Err(err).Bytes("msg", value).Msg("failed to unmarshal message")
		return nil, false
	}
	if task.URL == "" {
		zlog.Logger.Error().Str("reason", task.Reason).Msg("invalid task: empty url")
		return nil, false
	}
	return &task, true
}

func (c *Consumer) Close() error {
	if err := c.client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer")
		return err
	}
	zlog.Logger.Info().Msg("kafka consumer closed")
	return nil
}
