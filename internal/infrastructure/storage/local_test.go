package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nghiemng0310/nail/internal/config"
	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/zlog"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

func newLocal(t *testing.T) (Storage, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(&config.StorageConfig{Type: "local", LocalPath: dir}, "http://localhost:8080/")
	require.NoError(t, err)
	return s, dir
}

func testBlob(size int) *domain.Blob {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i)
	}
	return &domain.Blob{Data: data, ContentType: "image/webp", Ext: "webp"}
}

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	s, dir := newLocal(t)
	ctx := context.Background()

	url, err := s.Upload(ctx, "images/1700000000000_gel.webp", testBlob(1024), nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/images/1700000000000_gel.webp", url)

	data, err := os.ReadFile(filepath.Join(dir, "images", "1700000000000_gel.webp"))
	require.NoError(t, err)
	assert.Len(t, data, 1024)

	require.NoError(t, s.Delete(ctx, url))
	_, err = os.Stat(filepath.Join(dir, "images", "1700000000000_gel.webp"))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	err = s.Delete(ctx, url)
	assert.True(t, errors.Is(err, domain.ErrBlobNotFound))
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestLocalStorage_Progress(t *testing.T) {
	s, _ := newLocal(t)

	var got []float64
	_, err := s.Upload(context.Background(), "images/p.webp", testBlob(200_000), domain.ProgressFunc(func(p float64) {
		got = append(got, p)
	}))
	require.NoError(t, err)

	require.NotEmpty(t, got)
	for i := 1; i < len(got); i++ {
		assert.Greater(t, got[i], got[i-1])
	}
	for _, p := range got {
		assert.GreaterOrEqual(t, p, 0.0)
		assert.LessOrEqual(t, p, 100.0)
	}
	assert.Equal(t, 100.0, got[len(got)-1])
}

func TestLocalStorage_PanickingListener(t *testing.T) {
	s, _ := newLocal(t)

	url, err := s.Upload(context.Background(), "images/x.webp", testBlob(64), domain.ProgressFunc(func(float64) {
		panic("observer bug")
	}))
	require.NoError(t, err)
	assert.NotEmpty(t, url)
}

func TestLocalStorage_RejectsForeignAndEscapingPaths(t *testing.T) {
	s, _ := newLocal(t)
	ctx := context.Background()

	_, err := s.Upload(ctx, "../outside.webp", testBlob(8), nil)
	assert.True(t, errors.Is(err, domain.ErrValidation))

	err = s.Delete(ctx, "https://cdn.example.com/images/a.webp")
	assert.True(t, errors.Is(err, domain.ErrValidation))

	err = s.Delete(ctx, "http://localhost:8080/files/../../etc/passwd")
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	s, _ := newLocal(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Upload(ctx, "images/c.webp", testBlob(8), nil)
	assert.True(t, errors.Is(err, domain.ErrUpload))
}

func TestProgressChan_NeverBlocks(t *testing.T) {
	ch := make(chan float64, 1)
	listener := ProgressChan(ch)

	listener.OnProgress(10)
	listener.OnProgress(20)

	assert.Equal(t, 10.0, <-ch)
	assert.Len(t, ch, 0)
}

func TestProgressSink_CountsBytes(t *testing.T) {
	var got []float64
	sink := newProgressSink(100, domain.ProgressFunc(func(p float64) { got = append(got, p) }))

	_, _ = sink.Read(make([]byte, 25))
	_, _ = sink.Read(make([]byte, 0))
	_, _ = sink.Read(make([]byte, 75))

	assert.Equal(t, []float64{25, 100}, got)
}

func TestObjectPath(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		name, dir, file, ext, want string
	}{
		{"plain", "images", "Gel Pink.JPG", "webp", "images/1700000000123_gel-pink.webp"},
		{"unicode stripped", "images/", "Móng tay.png", ".webp", "images/1700000000123_m-ng-tay.webp"},
		{"no name", "images", "", "webp", "images/1700000000123_image.webp"},
		{"no dir", "", "a.png", "webp", "1700000000123_a.webp"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ObjectPath(tt.dir, tt.file, tt.ext, now)
			assert.Equal(t, tt.want, got)
			assert.False(t, strings.Contains(got, ".."))
		})
	}
}
