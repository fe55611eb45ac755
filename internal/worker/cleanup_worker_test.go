package worker

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/nghiemng0310/nail/internal/dto"
	"github.com/stretchr/testify/assert"
	"github.com/wb-go/wbf/zlog"
)

func TestMain(m *testing.M) {
	zlog.Init()
	os.Exit(m.Run())
}

type fakeRemover struct {
	err   error
	calls []string
}

func (f *fakeRemover) RemoveBlob(_ context.Context, url string) error {
	f.calls = append(f.calls, url)
	return f.err
}

func TestHandleCleanupTask(t *testing.T) {
	ctx := context.Background()

	ok := &fakeRemover{}
	w := NewCleanupWorker(ok)
	assert.NoError(t, w.HandleCleanupTask(ctx, &dto.BlobCleanupTask{URL: "http://files/a.webp", Reason: "delete"}))
	assert.Equal(t, []string{"http://files/a.webp"}, ok.calls)

	assert.Error(t, w.HandleCleanupTask(ctx, &dto.BlobCleanupTask{}))

	boom := errors.New("timeout")
	failing := NewCleanupWorker(&fakeRemover{err: boom})
	err := failing.HandleCleanupTask(ctx, &dto.BlobCleanupTask{URL: "http://files/b.webp"})
	assert.True(t, errors.Is(err, boom))
}
