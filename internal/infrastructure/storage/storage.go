package storage

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

// Storage persists normalized blobs and hands back their public URL.
type Storage interface {
	Upload(ctx context.Context, path string, blob *domain.Blob, progress domain.ProgressListener) (string, error)
	Delete(ctx context.Context, url string) error
}

func New(cfg *config.StorageConfig, publicBaseURL string) (Storage, error) {
	switch cfg.Type {
	case "local":
		zlog.Logger.Info().Msg("initializing local storage")
		return NewLocalStorage(cfg, publicBaseURL)
	case "s3":
		zlog.Logger.Info().Msg("initializing s3 storage")
		return NewS3Storage(cfg)
	default:
		zlog.Logger.Error().Str("type", cfg.Type).Msg("unsupported storage type, use 'local' or 's3'")
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9._-]+`)

// ObjectPath builds "<dir>/<unixmillis>_<slug>.<ext>" for a fresh upload.
func ObjectPath(dir, originalName, ext string, now time.Time) string {
	base := originalName
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	slug := strings.Trim(slugUnsafe.ReplaceAllString(strings.ToLower(base), "-"), "-.")
	if slug == "" {
		slug = "image"
	}
	if len(slug) > 64 {
		slug = slug[:64]
	}

	name := strconv.FormatInt(now.UnixMilli(), 10) + "_" + slug
	if ext != "" {
		name += "." + strings.TrimPrefix(ext, ".")
	}
	if dir = strings.Trim(dir, "/"); dir == "" {
		return name
	}
	return dir + "/" + name
}

// keyFromURL strips base from url, rejecting URLs that belong elsewhere.
func keyFromURL(url, base string) (string, error) {
	base = strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, base) {
		return "", domain.Validationf("url %q is not managed by this storage", url)
	}
	key := strings.TrimPrefix(url, base)
	if key == "" {
		return "", domain.Validationf("url %q has no object key", url)
	}
	return key, nil
}
