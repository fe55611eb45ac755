package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const selectColumns = `id, name, image_url, categories, likes, created_at, updated_at`

type imageRepository struct {
	db        *dbpg.DB
	strategy  retry.Strategy
	pageSize  int
	filterCap int
}

func NewImageRepository(db *dbpg.DB, strategy retry.Strategy, pageSize, filterCap int) domain.ImageRepository {
	if filterCap <= 0 {
		filterCap = domain.DefaultFilterCap
	}
	return &imageRepository{
		db:        db,
		strategy:  strategy,
		pageSize:  pageSize,
		filterCap: filterCap,
	}
}

func (r *imageRepository) Insert(ctx context.Context, fields domain.NewImage) (string, error) {
	id := uuid.NewString()
	now := domain.Now()

	categories := fields.Categories
	if categories == nil {
		categories = []string{}
	}

	// The id is generated once, so the insert is safe to retry.
	query := `
		INSERT INTO images (id, name, image_url, categories, likes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, $5)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := r.db.ExecWithRetry(ctx, r.strategy, query, id, fields.Name, fields.ImageURL, pq.Array(categories), now)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to insert image")
		return "", domain.StoreError("insert image", err)
	}

	zlog.Logger.Info().Str("image_id", id).Msg("image inserted")
	return id, nil
}

func (r *imageRepository) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	row := r.db.Master.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM images WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrImageNotFound
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to get image")
		return nil, domain.StoreError("get image", err)
	}
	return rec, nil
}

func (r *imageRepository) Update(ctx context.Context, id string, patch domain.ImagePatch) error {
	var categories any
	if patch.Categories != nil {
		cats := *patch.Categories
		if cats == nil {
			cats = []string{}
		}
		categories = pq.Array(cats)
	}

	query := `
		UPDATE images SET
			name       = COALESCE($2, name),
			image_url  = COALESCE($3, image_url),
			categories = COALESCE($4::text[], categories),
			updated_at = $5
		WHERE id = $1
	`
	res, err := r.db.ExecWithRetry(ctx, r.strategy, query, id, patch.Name, patch.ImageURL, categories, domain.Now())
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to update image")
		return domain.StoreError("update image", err)
	}
	return requireAffected(res, id)
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecWithRetry(ctx, r.strategy, `DELETE FROM images WHERE id = $1`, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image")
		return domain.StoreError("delete image", err)
	}
	return requireAffected(res, id)
}

// IncrementLikes is a single statement on the master and is never retried:
// a retry after an ambiguous failure could count the like twice.
func (r *imageRepository) IncrementLikes(ctx context.Context, id string) error {
	res, err := r.db.Master.ExecContext(ctx, `UPDATE images SET likes = likes + 1 WHERE id = $1`, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to increment likes")
		return domain.StoreError("increment likes", err)
	}
	return requireAffected(res, id)
}

func (r *imageRepository) ListAll(ctx context.Context) ([]*domain.ImageRecord, error) {
	rows, err := r.db.QueryWithRetry(ctx, r.strategy, `SELECT `+selectColumns+` FROM images ORDER BY updated_at DESC, id DESC`)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list images")
		return nil, domain.StoreError("list images", err)
	}
	return collect(rows)
}

func (r *imageRepository) ListPage(ctx context.Context, q domain.PageQuery) (*domain.Page, error) {
	if q.Filtered() {
		return r.listFiltered(ctx, q.Categories)
	}

	size := domain.ClampPageSize(q.PageSize, r.pageSize)
	var (
		rows *sql.Rows
		err  error
	)
	if q.Cursor == "" {
		rows, err = r.db.QueryWithRetry(ctx, r.strategy,
			`SELECT `+selectColumns+` FROM images ORDER BY updated_at DESC, id DESC LIMIT $1`, size+1)
	} else {
		c, decodeErr := domain.DecodeCursor(q.Cursor)
		if decodeErr != nil {
			return nil, decodeErr
		}
		rows, err = r.db.QueryWithRetry(ctx, r.strategy,
			`SELECT `+selectColumns+` FROM images
			WHERE (updated_at, id) < ($1, $2)
			ORDER BY updated_at DESC, id DESC LIMIT $3`, c.UpdatedAt, c.ID, size+1)
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list page")
		return nil, domain.StoreError("list page", err)
	}

	records, err := collect(rows)
	if err != nil {
		return nil, err
	}

	page := &domain.Page{Records: records}
	if len(records) > size {
		page.Records = records[:size]
		page.HasMore = true
		page.NextCursor = domain.EncodeCursor(domain.CursorOf(page.Records[size-1]))
	}
	return page, nil
}

func (r *imageRepository) listFiltered(ctx context.Context, labels []string) (*domain.Page, error) {
	rows, err := r.db.QueryWithRetry(ctx, r.strategy,
		`SELECT `+selectColumns+` FROM images WHERE categories && $1 LIMIT $2`, pq.Array(labels), r.filterCap)
	if err != nil {
		zlog.Logger.Error().Err(err).Strs("categories", labels).Msg("failed to list filtered images")
		return nil, domain.StoreError("list filtered", err)
	}
	records, err := collect(rows)
	if err != nil {
		return nil, err
	}

	domain.SortByRecency(records)
	return &domain.Page{Records: records}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.ImageRecord, error) {
	var rec domain.ImageRecord
	var categories pq.StringArray

	if err := s.Scan(&rec.ID, &rec.Name, &rec.ImageURL, &categories, &rec.Likes, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	rec.Categories = []string(categories)
	if rec.Categories == nil {
		rec.Categories = []string{}
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return &rec, nil
}

func collect(rows *sql.Rows) ([]*domain.ImageRecord, error) {
	defer rows.Close()

	records := make([]*domain.ImageRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to scan image row")
			return nil, domain.StoreError("scan image", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("iterate images", err)
	}
	return records, nil
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StoreError("rows affected", err)
	}
	if n == 0 {
		return domain.ErrImageNotFound
	}
	return nil
}
