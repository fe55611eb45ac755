package domain

import "context"

type ImageRepository interface {
	Insert(ctx context.Context, fields NewImage) (string, error)
	Get(ctx context.Context, id string) (*ImageRecord, error)
	Update(ctx context.Context, id string, patch ImagePatch) error
	Delete(ctx context.Context, id string) error
	IncrementLikes(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*ImageRecord, error)
	ListPage(ctx context.Context, query PageQuery) (*Page, error)
}
