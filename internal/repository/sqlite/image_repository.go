package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

const selectColumns = `id, name, image_url, categories, likes, created_at, updated_at`

type imageRepository struct {
	db        *sql.DB
	pageSize  int
	filterCap int
}

// NewImageRepository stores the catalog in SQLite. Timestamps are kept as
// unix nanoseconds and categories as a JSON array.
func NewImageRepository(db *sql.DB, pageSize, filterCap int) domain.ImageRepository {
	if filterCap <= 0 {
		filterCap = domain.DefaultFilterCap
	}
	return &imageRepository{db: db, pageSize: pageSize, filterCap: filterCap}
}

func (r *imageRepository) Insert(ctx context.Context, fields domain.NewImage) (string, error) {
	id := uuid.NewString()
	now := domain.Now()

	categories, err := encodeCategories(fields.Categories)
	if err != nil {
		return "", err
	}

	query := `
		INSERT INTO images (id, name, image_url, categories, likes, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.ExecContext(ctx, query, id, fields.Name, fields.ImageURL, categories, now.UnixNano(), now.UnixNano()); err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to insert image")
		return "", domain.StoreError("insert image", err)
	}

	zlog.Logger.Info().Str("image_id", id).Msg("image inserted")
	return id, nil
}

func (r *imageRepository) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM images WHERE id = ?`, id)
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
	sets := []string{"updated_at = ?"}
	args := []any{domain.Now().UnixNano()}

	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.ImageURL != nil {
		sets = append(sets, "image_url = ?")
		args = append(args, *patch.ImageURL)
	}
	if patch.Categories != nil {
		categories, err := encodeCategories(*patch.Categories)
		if err != nil {
			return err
		}
		sets = append(sets, "categories = ?")
		args = append(args, categories)
	}
	args = append(args, id)

	query := `UPDATE images SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to update image")
		return domain.StoreError("update image", err)
	}
	return requireAffected(res, id)
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM images WHERE id = ?`, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to delete image")
		return domain.StoreError("delete image", err)
	}
	return requireAffected(res, id)
}

func (r *imageRepository) IncrementLikes(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE images SET likes = likes + 1 WHERE id = ?`, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("image_id", id).Msg("failed to increment likes")
		return domain.StoreError("increment likes", err)
	}
	return requireAffected(res, id)
}

func (r *imageRepository) ListAll(ctx context.Context) ([]*domain.ImageRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM images ORDER BY updated_at DESC, id DESC`)
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
	query := `SELECT ` + selectColumns + ` FROM images`
	var args []any

	if q.Cursor != "" {
		c, err := domain.DecodeCursor(q.Cursor)
		if err != nil {
			return nil, err
		}
		query += ` WHERE (updated_at, id) < (?, ?)`
		args = append(args, c.UpdatedAt.UnixNano(), c.ID)
	}
	query += ` ORDER BY updated_at DESC, id DESC LIMIT ?`
	args = append(args, size+1)

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	}
	if page.HasMore {
		page.NextCursor = domain.EncodeCursor(domain.CursorOf(page.Records[len(page.Records)-1]))
	}
	return page, nil
}

// listFiltered returns up to filterCap records carrying any of the labels.
// The query has no ORDER BY; records are sorted here.
func (r *imageRepository) listFiltered(ctx context.Context, labels []string) (*domain.Page, error) {
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(labels)), ", ")
	query := `SELECT ` + selectColumns + ` FROM images
		WHERE EXISTS (SELECT 1 FROM json_each(images.categories) WHERE json_each.value IN (` + placeholders + `))
		LIMIT ?`

	args := make([]any, 0, len(labels)+1)
	for _, l := range labels {
		args = append(args, l)
	}
	args = append(args, r.filterCap)

	rows, err := r.db.QueryContext(ctx, query, args...)
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
	var categories string
	var created, updated int64

	if err := s.Scan(&rec.ID, &rec.Name, &rec.ImageURL, &categories, &rec.Likes, &created, &updated); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(categories), &rec.Categories); err != nil {
		return nil, fmt.Errorf("decode categories of %s: %w", rec.ID, err)
	}
	if rec.Categories == nil {
		rec.Categories = []string{}
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.UpdatedAt = time.Unix(0, updated).UTC()
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

func encodeCategories(categories []string) (string, error) {
	if categories == nil {
		categories = []string{}
	}
	b, err := json.Marshal(categories)
	if err != nil {
		return "", domain.StoreError("encode categories", err)
	}
	return string(b), nil
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
