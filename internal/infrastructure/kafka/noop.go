package kafka

import (
	"context"

	"github.com/wb-go/wbf/zlog"
)

// NoopQueue stands in for the producer when kafka is disabled. Orphaned blobs
// are only logged.
type NoopQueue struct{}

func (NoopQueue) PublishCleanupTask(_ context.Context, url, reason string) error {
	zlog.Logger.Warn().
		Str("url", url).
		Str("reason", reason).
		Msg("kafka disabled, orphaned blob left in storage")
	return nil
}

func (NoopQueue) Close() error { return nil }
