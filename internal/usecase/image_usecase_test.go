package usecase

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/infrastructure/codec"
	"github.com/nghiemng0310/nail/internal/infrastructure/database"
	"github.com/nghiemng0310/nail/internal/repository/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

const memPrefix = "mem://blobs/"

type memStorage struct {
	mu         sync.Mutex
	blobs      map[string][]byte
	uploadErr  error
	deleteErrs map[string]error
}

func newMemStorage() *memStorage {
	return &memStorage{blobs: map[string][]byte{}, deleteErrs: map[string]error{}}
}

func (s *memStorage) Upload(_ context.Context, path string, blob *domain.Blob, progress domain.ProgressListener) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if progress != nil {
		progress.OnProgress(100)
	}
	url := memPrefix + path
	s.blobs[url] = blob.Data
	return url, nil
}

func (s *memStorage) Delete(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.deleteErrs[url]; ok {
		return err
	}
	if _, ok := s.blobs[url]; !ok {
		return domain.ErrBlobNotFound
	}
	delete(s.blobs, url)
	return nil
}

func (s *memStorage) has(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blobs[url]
	return ok
}

func (s *memStorage) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

type recordingQueue struct {
	mu    sync.Mutex
	tasks []string
}

func (q *recordingQueue) PublishCleanupTask(_ context.Context, url, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, reason+" "+url)
	return nil
}

func (q *recordingQueue) Close() error { return nil }

type failingInsertRepo struct {
	domain.ImageRepository
}

func (failingInsertRepo) Insert(context.Context, domain.NewImage) (string, error) {
	return "", domain.StoreError("insert image", errors.New("disk full"))
}

type fixture struct {
	uc      *ImageUsecase
	repo    domain.ImageRepository
	storage *memStorage
	queue   *recordingQueue
}

func newFixture(t *testing.T, wrap func(domain.ImageRepository) domain.ImageRepository) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.RunMigrations(db, "sqlite", ""))

	repo := sqlite.NewImageRepository(db, 10, 100)
	if wrap != nil {
		repo = wrap(repo)
	}
	f := &fixture{repo: repo, storage: newMemStorage(), queue: &recordingQueue{}}
	c := codec.New(&config.ProcessingConfig{MaxSourceMB: 5, CompressMaxDimension: 1920})
	f.uc = NewImageUsecase(repo, f.storage, c, f.queue, nil, Options{MaxDimension: 800, Quality: 0.9})
	return f
}

func pngFile(t *testing.T, w, h int) *bytes.Reader {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return bytes.NewReader(buf.Bytes())
}

func (f *fixture) create(t *testing.T, name string, categories ...string) *domain.ImageRecord {
	t.Helper()
	rec, err := f.uc.CreateImage(context.Background(), domain.CreateImageInput{
		Name:       name,
		Categories: categories,
		Filename:   name + ".png",
		File:       pngFile(t, 40, 20),
	}, nil)
	require.NoError(t, err)
	return rec
}

func TestCreateImage_AppearsFirst(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, "older", "Gel")

	var progress []float64
	rec, err := f.uc.CreateImage(ctx, domain.CreateImageInput{
		Name:       "  Cherry blossom ",
		Categories: []string{"Hoa văn", "Gel", "Gel"},
		Filename:   "IMG_01.png",
		File:       pngFile(t, 2000, 1000),
	}, domain.ProgressFunc(func(p float64) { progress = append(progress, p) }))
	require.NoError(t, err)

	assert.Equal(t, "Cherry blossom", rec.Name)
	assert.Equal(t, []string{"Hoa văn", "Gel"}, rec.Categories)
	assert.Equal(t, int64(0), rec.Likes)
	assert.True(t, strings.HasPrefix(rec.ImageURL, memPrefix+"images/"))
	assert.True(t, strings.HasSuffix(rec.ImageURL, "_img-01.webp"))
	assert.True(t, f.storage.has(rec.ImageURL))
	assert.Equal(t, []float64{100}, progress)

	page, err := f.uc.ListPage(ctx, domain.PageQuery{PageSize: 1})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)
	assert.Equal(t, rec.ID, page.Records[0].ID)
	assert.True(t, page.HasMore)
}

func TestCreateImage_Validation(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name    string
		in      domain.CreateImageInput
		wantErr error
	}{
		{"blank name", domain.CreateImageInput{Name: "  ", File: pngFile(t, 4, 4)}, domain.ErrValidation},
		{"long name", domain.CreateImageInput{Name: strings.Repeat("a", 201), File: pngFile(t, 4, 4)}, domain.ErrValidation},
		{"unknown category", domain.CreateImageInput{Name: "x", Categories: []string{"Spa"}, File: pngFile(t, 4, 4)}, domain.ErrValidation},
		{"no file", domain.CreateImageInput{Name: "x"}, domain.ErrValidation},
		{"undecodable", domain.CreateImageInput{Name: "x", Filename: "x.jpg", File: strings.NewReader("nope")}, domain.ErrDecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.CreateImage(context.Background(), tt.in, nil)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}

	all, err := f.uc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
	assert.Equal(t, 0, f.storage.count())
}

func TestCreateImage_UploadFailureCreatesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.storage.uploadErr = domain.ErrUpload

	_, err := f.uc.CreateImage(context.Background(), domain.CreateImageInput{Name: "x", Filename: "x.png", File: pngFile(t, 4, 4)}, nil)
	assert.True(t, errors.Is(err, domain.ErrUpload))

	all, err := f.uc.ListAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateImage_InsertFailureRemovesBlob(t *testing.T) {
	f := newFixture(t, func(r domain.ImageRepository) domain.ImageRepository { return failingInsertRepo{r} })

	_, err := f.uc.CreateImage(context.Background(), domain.CreateImageInput{Name: "x", Filename: "x.png", File: pngFile(t, 4, 4)}, nil)
	assert.True(t, errors.Is(err, domain.ErrStore))
	assert.Equal(t, 0, f.storage.count())
}

func TestUpdateImage_ReplacesBlob(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	orig := f.create(t, "orig", "Gel")
	time.Sleep(2 * time.Millisecond)

	updated, err := f.uc.UpdateImage(ctx, orig.ID, domain.UpdateImageInput{
		Name:       "renamed",
		Categories: []string{"Ombre"},
		Filename:   "new.png",
		File:       pngFile(t, 30, 30),
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, []string{"Ombre"}, updated.Categories)
	assert.NotEqual(t, orig.ImageURL, updated.ImageURL)
	assert.True(t, updated.UpdatedAt.After(orig.UpdatedAt))
	assert.True(t, f.storage.has(updated.ImageURL))
	assert.False(t, f.storage.has(orig.ImageURL))
	assert.Empty(t, f.queue.tasks)
}

func TestUpdateImage_MetadataOnly(t *testing.T) {
	f := newFixture(t, nil)
	orig := f.create(t, "orig", "Gel")

	updated, err := f.uc.UpdateImage(context.Background(), orig.ID, domain.UpdateImageInput{Name: "renamed"}, nil)
	require.NoError(t, err)
	assert.Equal(t, orig.ImageURL, updated.ImageURL)
	assert.Equal(t, []string{}, updated.Categories)
	assert.True(t, f.storage.has(orig.ImageURL))
}

func TestUpdateImage_OldBlobMissingIsNotAnError(t *testing.T) {
	f := newFixture(t, nil)
	orig := f.create(t, "orig")
	require.NoError(t, f.storage.Delete(context.Background(), orig.ImageURL))

	updated, err := f.uc.UpdateImage(context.Background(), orig.ID, domain.UpdateImageInput{
		Name: "again", Filename: "again.png", File: pngFile(t, 8, 8),
	}, nil)
	require.NoError(t, err)
	assert.True(t, f.storage.has(updated.ImageURL))
	assert.Empty(t, f.queue.tasks)
}

func TestUpdateImage_OldBlobFailureIsQueued(t *testing.T) {
	f := newFixture(t, nil)
	orig := f.create(t, "orig")
	f.storage.deleteErrs[orig.ImageURL] = errors.New("connection reset")

	_, err := f.uc.UpdateImage(context.Background(), orig.ID, domain.UpdateImageInput{
		Name: "again", Filename: "again.png", File: pngFile(t, 8, 8),
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"update " + orig.ImageURL}, f.queue.tasks)
}

func TestUpdateImage_Missing(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.uc.UpdateImage(context.Background(), "nope", domain.UpdateImageInput{
		Name: "x", Filename: "x.png", File: pngFile(t, 8, 8),
	}, nil)
	assert.True(t, errors.Is(err, domain.ErrImageNotFound))
	assert.Equal(t, 0, f.storage.count())
}

func TestDeleteImage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.create(t, "doomed")

	require.NoError(t, f.uc.DeleteImage(ctx, rec.ID))
	_, err := f.uc.GetImage(ctx, rec.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.False(t, f.storage.has(rec.ImageURL))

	assert.True(t, errors.Is(f.uc.DeleteImage(ctx, rec.ID), domain.ErrImageNotFound))
}

func TestDeleteImage_BlobAlreadyGone(t *testing.T) {
	f := newFixture(t, nil)
	rec := f.create(t, "doomed")
	require.NoError(t, f.storage.Delete(context.Background(), rec.ImageURL))

	assert.NoError(t, f.uc.DeleteImage(context.Background(), rec.ID))
}

func TestDeleteImage_PartialFailure(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.create(t, "doomed")
	f.storage.deleteErrs[rec.ImageURL] = errors.New("timeout")

	err := f.uc.DeleteImage(ctx, rec.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPartialDelete))
	assert.True(t, errors.Is(err, domain.ErrStore))

	_, err = f.uc.GetImage(ctx, rec.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Equal(t, []string{"delete " + rec.ImageURL}, f.queue.tasks)
}

func TestLikeImage(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	rec := f.create(t, "liked")

	require.NoError(t, f.uc.LikeImage(ctx, rec.ID))
	require.NoError(t, f.uc.LikeImage(ctx, rec.ID))

	got, err := f.uc.GetImage(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Likes)

	assert.True(t, errors.Is(f.uc.LikeImage(ctx, "missing"), domain.ErrImageNotFound))
}

func TestListPage_Filter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.create(t, "a", "Gel")
	f.create(t, "b", "French")
	f.create(t, "c", "Acrylic", "Gel")

	page, err := f.uc.ListPage(ctx, domain.PageQuery{Categories: []string{" Gel "}})
	require.NoError(t, err)
	require.Len(t, page.Records, 2)
	assert.Equal(t, "c", page.Records[0].Name)
	assert.False(t, page.HasMore)

	_, err = f.uc.ListPage(ctx, domain.PageQuery{Categories: []string{"Pedicure"}})
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestCleanupUsecase_RemoveBlob(t *testing.T) {
	s := newMemStorage()
	s.blobs[memPrefix+"a"] = []byte{1}
	s.deleteErrs[memPrefix+"b"] = errors.New("timeout")
	s.deleteErrs[memPrefix+"c"] = domain.Validationf("foreign")
	uc := NewCleanupUsecase(s)
	ctx := context.Background()

	assert.NoError(t, uc.RemoveBlob(ctx, memPrefix+"a"))
	assert.NoError(t, uc.RemoveBlob(ctx, memPrefix+"a"))
	assert.Error(t, uc.RemoveBlob(ctx, memPrefix+"b"))
	assert.NoError(t, uc.RemoveBlob(ctx, memPrefix+"c"))
}
