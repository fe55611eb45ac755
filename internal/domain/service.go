package domain

import (
	"context"
	"io"
)

// ProgressListener observes upload progress, in percent of bytes transferred.
// Calls arrive in increasing order; the last one is not guaranteed to be 100.
type ProgressListener interface {
	OnProgress(percent float64)
}

// ProgressFunc adapts a plain function to ProgressListener.
type ProgressFunc func(percent float64)

func (f ProgressFunc) OnProgress(percent float64) { f(percent) }

type CreateImageInput struct {
	Name       string
	Categories []string
	Filename   string
	File       io.Reader
}

// UpdateImageInput replaces name and categories; File is optional and, when
// set, replaces the stored image.
type UpdateImageInput struct {
	Name       string
	Categories []string
	Filename   string
	File       io.Reader
}

type ImageService interface {
	CreateImage(ctx context.Context, in CreateImageInput, progress ProgressListener) (*ImageRecord, error)
	UpdateImage(ctx context.Context, id string, in UpdateImageInput, progress ProgressListener) (*ImageRecord, error)
	DeleteImage(ctx context.Context, id string) error
	GetImage(ctx context.Context, id string) (*ImageRecord, error)
	ListAll(ctx context.Context) ([]*ImageRecord, error)
	ListPage(ctx context.Context, query PageQuery) (*Page, error)
	LikeImage(ctx context.Context, id string) error
}

// QueueService hands off blob removals that failed inline so a worker can retry them.
type QueueService interface {
	PublishCleanupTask(ctx context.Context, url string, reason string) error
	Close() error
}
