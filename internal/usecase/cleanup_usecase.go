package usecase

import (
	"context"
	"errors"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/infrastructure/storage"
	"github.com/wb-go/wbf/zlog"
)

// CleanupUsecase removes orphaned blobs on behalf of the worker.
type CleanupUsecase struct {
	storage storage.Storage
}

func NewCleanupUsecase(storage storage.Storage) *CleanupUsecase {
	return &CleanupUsecase{storage: storage}
}

// RemoveBlob deletes url. A blob that is already gone counts as removed, and
// so does a URL this storage does not own, since retrying cannot fix it.
func (u *CleanupUsecase) RemoveBlob(ctx context.Context, url string) error {
	err := u.storage.Delete(ctx, url)
	switch {
	case err == nil:
		zlog.Logger.Info().Str("url", url).Msg("orphaned blob removed")
		return nil
	case errors.Is(err, domain.ErrNotFound):
		zlog.Logger.Info().Str("url", url).Msg("orphaned blob already gone")
		return nil
	case errors.Is(err, domain.ErrValidation):
		zlog.Logger.Warn().Err(err).Str("url", url).Msg("dropping cleanup task for foreign url")
		return nil
	default:
		return err
	}
}
