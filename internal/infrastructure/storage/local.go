package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

// FilesRoute is where the API serves local blobs.
const FilesRoute = "/files"

type localStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(cfg *config.StorageConfig, publicBaseURL string) (Storage, error) {
	if cfg.LocalPath == "" {
		return nil, fmt.Errorf("LocalPath is empty, set storage.local_path in config or env")
	}
	if err := os.MkdirAll(cfg.LocalPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	abs, err := filepath.Abs(cfg.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("resolve storage directory: %w", err)
	}

	return &localStorage{
		basePath: abs,
		baseURL:  strings.TrimRight(publicBaseURL, "/") + FilesRoute,
	}, nil
}

func (s *localStorage) resolve(key string) (string, error) {
	full := filepath.Join(s.basePath, filepath.FromSlash(key))
	rel, err := filepath.Rel(s.basePath, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", domain.Validationf("path %q escapes storage root", key)
	}
	return full, nil
}

func (s *localStorage) Upload(ctx context.Context, path string, blob *domain.Blob, progress domain.ProgressListener) (string, error) {
	if blob == nil || len(blob.Data) == 0 {
		return "", domain.Validationf("blob is empty")
	}
	fullPath, err := s.resolve(path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create directory")
		return "", fmt.Errorf("%w: create directory: %v", domain.ErrUpload, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".upload-*")
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to create temp file")
		return "", fmt.Errorf("%w: create temp file: %v", domain.ErrUpload, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	reader := newProgressReader(bytes.NewReader(blob.Data), blob.Size(), progress)
	written, err := io.Copy(tmp, &ctxReader{ctx: ctx, r: reader})
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to write file")
		return "", fmt.Errorf("%w: write file: %v", domain.ErrUpload, err)
	}

	if err := os.Rename(tmpName, fullPath); err != nil {
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to move file into place")
		return "", fmt.Errorf("%w: rename: %v", domain.ErrUpload, err)
	}

	url := s.baseURL + "/" + path
	zlog.Logger.Info().
		Str("path", path).
		Int64("bytes", written).
		Str("url", url).
		Msg("file saved successfully")

	return url, nil
}

func (s *localStorage) Delete(ctx context.Context, url string) error {
	key, err := keyFromURL(url, s.baseURL)
	if err != nil {
		return err
	}
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zlog.Logger.Warn().Str("path", fullPath).Msg("file not found")
			return fmt.Errorf("%w: %s", domain.ErrBlobNotFound, key)
		}
		zlog.Logger.Error().Err(err).Str("path", fullPath).Msg("failed to delete file")
		return fmt.Errorf("delete file %s: %w", key, err)
	}

	zlog.Logger.Info().Str("path", key).Msg("file deleted successfully")
	return nil
}

// ctxReader stops a copy once the context is cancelled.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
