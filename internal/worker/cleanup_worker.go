package worker

import (
	"context"
	"fmt"

	"github.com/nghiemng0310/nail/internal/dto"
	"github.com/wb-go/wbf/zlog"
)

// BlobRemover is the part of the cleanup use case the worker drives.
type BlobRemover interface {
	RemoveBlob(ctx context.Context, url string) error
}

// CleanupWorker retries removal of blobs the API could not delete inline.
type CleanupWorker struct {
	remover BlobRemover
}

func NewCleanupWorker(remover BlobRemover) *CleanupWorker {
	return &CleanupWorker{remover: remover}
}

func (w *CleanupWorker) HandleCleanupTask(ctx context.Context, task *dto.BlobCleanupTask) error {
	if task.URL == "" {
		zlog.Logger.Error().Str("reason", task.Reason).Msg("cleanup task without url")
		return fmt.Errorf("cleanup task without url")
	}

	zlog.Logger.Info().
		Str("url", task.URL).
		Str("reason", task.Reason).
		Msg("starting blob cleanup task")

	if err := w.remover.RemoveBlob(ctx, task.URL); err != nil {
		zlog.Logger.Error().
			Err(err).
			Str("url", task.URL).
			Msg("failed to remove blob")
		return fmt.Errorf("remove blob %s: %w", task.URL, err)
	}

	return nil
}
