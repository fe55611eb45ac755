package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

type s3Storage struct {
	client  *minio.Client
	bucket  string
	baseURL string
}

func NewS3Storage(cfg *config.StorageConfig) (Storage, error) {
	if cfg.S3Endpoint == "" {
		return nil, fmt.Errorf("s3 endpoint is required")
	}
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if cfg.S3AccessKey == "" || cfg.S3SecretKey == "" {
		return nil, fmt.Errorf("s3 access key and secret key are required")
	}

	creds := credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, "")
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  creds,
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize s3 client: %w", err)
	}

	ctx := context.Background()
	exists, err := client.BucketExists(ctx, cfg.S3Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check s3 bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.S3Bucket, minio.MakeBucketOptions{Region: cfg.S3Region}); err != nil {
			zlog.Logger.Warn().Err(err).Str("bucket", cfg.S3Bucket).Msg("unable to create bucket, ensure it exists and credentials are correct")
		} else {
			zlog.Logger.Info().Str("bucket", cfg.S3Bucket).Msg("created s3 bucket")
		}
	}

	return &s3Storage{
		client:  client,
		bucket:  cfg.S3Bucket,
		baseURL: publicS3URL(cfg),
	}, nil
}

func publicS3URL(cfg *config.StorageConfig) string {
	if cfg.S3PublicURL != "" {
		return strings.TrimRight(cfg.S3PublicURL, "/")
	}
	scheme := "http"
	if cfg.S3UseSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimRight(cfg.S3Endpoint, "/") + "/" + cfg.S3Bucket
}

func (s *s3Storage) Upload(ctx context.Context, objectName string, blob *domain.Blob, progress domain.ProgressListener) (string, error) {
	if blob == nil || len(blob.Data) == 0 {
		return "", domain.Validationf("blob is empty")
	}
	if strings.Contains(objectName, "..") {
		return "", domain.Validationf("object name %q escapes bucket", objectName)
	}

	tracker := newProgressSink(blob.Size(), progress)
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(blob.Data), blob.Size(), minio.PutObjectOptions{
		ContentType: blob.ContentType,
		Progress:    tracker,
	})
	if err != nil {
		zlog.Logger.Error().Err(err).Str("object", objectName).Msg("failed to put object to s3")
		return "", fmt.Errorf("%w: put object %s: %v", domain.ErrUpload, objectName, err)
	}

	url := s.baseURL + "/" + objectName
	zlog.Logger.Info().Str("path", objectName).Int64("bytes", blob.Size()).Msg("object saved to s3")
	return url, nil
}

func (s *s3Storage) Delete(ctx context.Context, url string) error {
	objectName, err := keyFromURL(url, s.baseURL)
	if err != nil {
		return err
	}

	// RemoveObject succeeds on missing keys, so existence is checked first.
	if _, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			zlog.Logger.Warn().Str("object", objectName).Msg("object not found")
			return fmt.Errorf("%w: %s", domain.ErrBlobNotFound, objectName)
		}
		zlog.Logger.Error().Err(err).Str("object", objectName).Msg("failed to stat object")
		return fmt.Errorf("stat object %s: %w", objectName, err)
	}

	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		zlog.Logger.Error().Err(err).Str("path", objectName).Msg("failed to delete object from s3")
		return fmt.Errorf("remove object %s: %w", objectName, err)
	}
	zlog.Logger.Info().Str("path", objectName).Msg("object deleted from s3")
	return nil
}
