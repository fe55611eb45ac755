package postgres

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/nghiemng0310/nail/internal/infrastructure/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

// Set NAIL_TEST_POSTGRES_DSN to a disposable database to run these tests.
func newRepo(t *testing.T) domain.ImageRepository {
	t.Helper()
	dsn := os.Getenv("NAIL_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("NAIL_TEST_POSTGRES_DSN not set")
	}
	zlog.Init()

	db, err := dbpg.New(dsn, nil, &dbpg.Options{MaxOpenConns: 10, MaxIdleConns: 5, ConnMaxLifetime: time.Minute})
	require.NoError(t, err)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.RunMigrations(db.Master, "postgres", ""))
	_, err = db.Master.Exec(`TRUNCATE images`)
	require.NoError(t, err)

	strategy := retry.Strategy{Attempts: 2, Delay: 50 * time.Millisecond, Backoff: 2}
	return NewImageRepository(db, strategy, 10, 100)
}

func TestImageRepository_Lifecycle(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, domain.NewImage{Name: "French tips", ImageURL: "http://files/f.webp", Categories: []string{"French"}})
	require.NoError(t, err)

	rec, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"French"}, rec.Categories)

	cats := []string{"French", "Gel"}
	require.NoError(t, repo.Update(ctx, id, domain.ImagePatch{Categories: &cats}))
	rec, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "French tips", rec.Name)
	assert.Equal(t, cats, rec.Categories)

	page, err := repo.ListPage(ctx, domain.PageQuery{Categories: []string{"Gel"}})
	require.NoError(t, err)
	require.Len(t, page.Records, 1)

	require.NoError(t, repo.Delete(ctx, id))
	_, err = repo.Get(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrImageNotFound))
}

func TestImageRepository_Pagination(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		_, err := repo.Insert(ctx, domain.NewImage{Name: "n", ImageURL: "u"})
		require.NoError(t, err)
	}

	seen := map[string]bool{}
	cursor := ""
	for {
		page, err := repo.ListPage(ctx, domain.PageQuery{PageSize: 3, Cursor: cursor})
		require.NoError(t, err)
		for _, r := range page.Records {
			assert.False(t, seen[r.ID])
			seen[r.ID] = true
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	assert.Len(t, seen, 7)
}

func TestImageRepository_ConcurrentLikes(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id, err := repo.Insert(ctx, domain.NewImage{Name: "n", ImageURL: "u"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.IncrementLikes(ctx, id))
		}()
	}
	wg.Wait()

	rec, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, int64(20), rec.Likes)
}
