package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/infrastructure/storage"
	"github.com/nghiemng0310/nail/internal/metrics"
	"github.com/wb-go/wbf/zlog"
)

const maxNameLength = 200

// Normalizer converts an upload into a bounded WebP blob.
type Normalizer interface {
	Normalize(r io.Reader, filename string, maxDimension int, quality float64) (*domain.Blob, error)
}

type Options struct {
	MaxDimension int
	Quality      float64
	ImagesDir    string
	PageSize     int
}

type ImageUsecase struct {
	repo    domain.ImageRepository
	storage storage.Storage
	codec   Normalizer
	queue   domain.QueueService
	metrics *metrics.GalleryMetrics
	opts    Options
}

func NewImageUsecase(
	repo domain.ImageRepository,
	storage storage.Storage,
	codec Normalizer,
	queue domain.QueueService,
	m *metrics.GalleryMetrics,
	opts Options,
) *ImageUsecase {
	if opts.ImagesDir == "" {
		opts.ImagesDir = "images"
	}
	if opts.PageSize <= 0 {
		opts.PageSize = domain.DefaultPageSize
	}
	return &ImageUsecase{
		repo:    repo,
		storage: storage,
		codec:   codec,
		queue:   queue,
		metrics: m,
		opts:    opts,
	}
}

func (u *ImageUsecase) CreateImage(ctx context.Context, in domain.CreateImageInput, progress domain.ProgressListener) (rec *domain.ImageRecord, err error) {
	defer u.observe("create", time.Now(), &err)

	name, categories, err := validateFields(in.Name, in.Categories)
	if err != nil {
		return nil, err
	}
	if in.File == nil {
		return nil, domain.Validationf("image file is required")
	}

	url, err := u.normalizeAndUpload(ctx, in.Filename, in.File, progress)
	if err != nil {
		return nil, err
	}

	id, err := u.repo.Insert(ctx, domain.NewImage{Name: name, ImageURL: url, Categories: categories})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("url", url).Msg("failed to insert image record, removing blob")
		u.discardBlob(ctx, url, "create_failed")
		return nil, err
	}

	rec, err = u.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	zlog.Logger.Info().
		Str("image_id", id).
		Str("name", name).
		Strs("categories", categories).
		Msg("image created successfully")
	return rec, nil
}

func (u *ImageUsecase) UpdateImage(ctx context.Context, id string, in domain.UpdateImageInput, progress domain.ProgressListener) (rec *domain.ImageRecord, err error) {
	defer u.observe("update", time.Now(), &err)

	name, categories, err := validateFields(in.Name, in.Categories)
	if err != nil {
		return nil, err
	}

	current, err := u.repo.Get(ctx, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to find image for update")
		return nil, err
	}

	patch := domain.ImagePatch{Name: &name, Categories: &categories}
	var newURL string
	if in.File != nil {
		newURL, err = u.normalizeAndUpload(ctx, in.Filename, in.File, progress)
		if err != nil {
			return nil, err
		}
		patch.ImageURL = &newURL
	}

	if err := u.repo.Update(ctx, id, patch); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to update image record")
		if newURL != "" {
			u.discardBlob(ctx, newURL, "update_failed")
		}
		return nil, err
	}

	if newURL != "" && current.ImageURL != newURL {
		u.removeSuperseded(ctx, id, current.ImageURL)
	}

	zlog.Logger.Info().
		Str("image_id", id).
		Bool("image_replaced", newURL != "").
		Msg("image updated successfully")
	return u.repo.Get(ctx, id)
}

// DeleteImage removes the record before the blob. A crash in between leaves
// an orphaned blob, never a record pointing at nothing.
func (u *ImageUsecase) DeleteImage(ctx context.Context, id string) (err error) {
	defer u.observe("delete", time.Now(), &err)

	image, err := u.repo.Get(ctx, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to find image for delete")
		return err
	}

	if err := u.repo.Delete(ctx, id); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image record")
		return err
	}

	if err := u.storage.Delete(ctx, image.ImageURL); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			zlog.Logger.Warn().Str("image_id", id).Str("url", image.ImageURL).Msg("blob already gone")
		} else {
			zlog.Logger.Error().Err(err).Str("image_id", id).Str("url", image.ImageURL).Msg("failed to delete blob")
			u.queueCleanup(ctx, image.ImageURL, "delete")
			return fmt.Errorf("%w: %v", domain.ErrPartialDelete, err)
		}
	}

	zlog.Logger.Info().Str("image_id", id).Msg("image deleted successfully")
	return nil
}

func (u *ImageUsecase) GetImage(ctx context.Context, id string) (*domain.ImageRecord, error) {
	return u.repo.Get(ctx, id)
}

func (u *ImageUsecase) ListAll(ctx context.Context) ([]*domain.ImageRecord, error) {
	images, err := u.repo.ListAll(ctx)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list images")
		return nil, err
	}
	return images, nil
}

func (u *ImageUsecase) ListPage(ctx context.Context, q domain.PageQuery) (page *domain.Page, err error) {
	defer u.observe("list_page", time.Now(), &err)

	categories, err := domain.NormalizeCategories(q.Categories)
	if err != nil {
		return nil, err
	}
	q.Categories = categories
	q.PageSize = domain.ClampPageSize(q.PageSize, u.opts.PageSize)

	return u.repo.ListPage(ctx, q)
}

func (u *ImageUsecase) LikeImage(ctx context.Context, id string) (err error) {
	defer u.observe("like", time.Now(), &err)

	if err := u.repo.IncrementLikes(ctx, id); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to like image")
		return err
	}
	return nil
}

func (u *ImageUsecase) normalizeAndUpload(ctx context.Context, filename string, file io.Reader, progress domain.ProgressListener) (string, error) {
	blob, err := u.codec.Normalize(file, filename, u.opts.MaxDimension, u.opts.Quality)
	if err != nil {
		return "", err
	}

	path := storage.ObjectPath(u.opts.ImagesDir, filename, blob.Ext, time.Now())
	url, err := u.storage.Upload(ctx, path, blob, progress)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", path).Msg("failed to upload blob")
		return "", err
	}
	u.metrics.RecordUpload(blob.Size())
	return url, nil
}

// removeSuperseded deletes the blob an update replaced. Failure never fails
// the update; it only defers the removal.
func (u *ImageUsecase) removeSuperseded(ctx context.Context, id, oldURL string) {
	err := u.storage.Delete(ctx, oldURL)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrNotFound):
		zlog.Logger.Warn().Str("image_id", id).Str("url", oldURL).Msg("previous blob already gone")
	default:
		zlog.Logger.Warn().Err(err).Str("image_id", id).Str("url", oldURL).Msg("failed to delete previous blob")
		u.queueCleanup(ctx, oldURL, "update")
	}
}

func (u *ImageUsecase) discardBlob(ctx context.Context, url, reason string) {
	if err := u.storage.Delete(ctx, url); err != nil && !errors.Is(err, domain.ErrNotFound) {
		zlog.Logger.Warn().Err(err).Str("url", url).Msg("failed to discard fresh blob")
		u.queueCleanup(ctx, url, reason)
	}
}

func (u *ImageUsecase) queueCleanup(ctx context.Context, url, reason string) {
	u.metrics.RecordCleanupTask(reason)
	if u.queue == nil {
		return
	}
	if err := u.queue.PublishCleanupTask(ctx, url, reason); err != nil {
		zlog.Logger.Error().Err(err).Str("url", url).Msg("failed to queue blob cleanup")
	}
}

func (u *ImageUsecase) observe(op string, start time.Time, err *error) {
	u.metrics.RecordOperation(op, *err, time.Since(start).Seconds())
}

func validateFields(name string, categories []string) (string, []string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, domain.Validationf("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", nil, domain.Validationf("name must be at most %d characters", maxNameLength)
	}
	normalized, err := domain.NormalizeCategories(categories)
	if err != nil {
		return "", nil, err
	}
	return name, normalized, nil
}
