// Package gallery holds the client-side gallery state machine and the HTTP
// client it talks to.
package gallery

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/wb-go/wbf/zlog"
)

type State string

const (
	StateEmpty          State = "empty"
	StateLoadingInitial State = "loadingInitial"
	StateIdle           State = "idle"
	StateLoadingMore    State = "loadingMore"
	StateExhausted      State = "exhausted"
	StateError          State = "error"
)

// ErrDisposed is returned by operations on a disposed gallery.
var ErrDisposed = errors.New("gallery disposed")

type Pager interface {
	ListPage(ctx context.Context, q domain.PageQuery) (*domain.Page, error)
}

type Liker interface {
	LikeImage(ctx context.Context, id string) error
}

// Notifier surfaces user-facing messages such as failed loads.
type Notifier interface {
	Notify(message string)
}

type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }

// Snapshot is an immutable copy of the gallery state handed to observers.
type Snapshot struct {
	State   State
	Records []domain.ImageRecord
	Filter  []string
	HasMore bool
	Err     error
}

// Gallery accumulates pages of the catalog for an infinite-scroll view.
//
// Fetches run without holding the lock. Every reset bumps a generation
// counter, and a response is applied only if its generation is still current
// and the gallery has not been disposed.
type Gallery struct {
	pager    Pager
	liker    Liker
	notifier Notifier
	pageSize int

	mu         sync.Mutex
	state      State
	records    []*domain.ImageRecord
	cursor     string
	hasMore    bool
	filter     []string
	generation uint64
	lastErr    error
	disposed   bool

	observers  map[int]func(Snapshot)
	nextObsKey int
}

func New(pager Pager, liker Liker, notifier Notifier, pageSize int) *Gallery {
	if notifier == nil {
		notifier = NotifierFunc(func(string) {})
	}
	return &Gallery{
		pager:     pager,
		liker:     liker,
		notifier:  notifier,
		pageSize:  domain.ClampPageSize(pageSize, domain.DefaultPageSize),
		state:     StateEmpty,
		observers: make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn for every state change and returns its cancel func.
func (g *Gallery) Subscribe(fn func(Snapshot)) func() {
	g.mu.Lock()
	defer g.mu.Unlock()
	key := g.nextObsKey
	g.nextObsKey++
	g.observers[key] = fn
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.observers, key)
	}
}

func (g *Gallery) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Mount loads the first page with the current filter.
func (g *Gallery) Mount(ctx context.Context) error {
	g.mu.Lock()
	filter := g.filter
	g.mu.Unlock()
	return g.reset(ctx, filter)
}

// SetFilter discards everything loaded so far and restarts from the first
// page of the new filter. An empty filter means the whole catalog.
func (g *Gallery) SetFilter(ctx context.Context, categories []string) error {
	return g.reset(ctx, append([]string(nil), categories...))
}

func (g *Gallery) reset(ctx context.Context, filter []string) error {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return ErrDisposed
	}
	g.generation++
	gen := g.generation
	g.filter = filter
	g.records = nil
	g.cursor = ""
	g.hasMore = false
	g.lastErr = nil
	g.state = StateLoadingInitial
	q := domain.PageQuery{PageSize: g.pageSize, Categories: filter}
	emit := g.emitLocked()
	g.mu.Unlock()
	emit()

	return g.fetch(ctx, gen, q)
}

// SentinelVisible loads the next page when the end of the list scrolls into
// view. It reports whether a fetch was started; nothing happens unless the
// gallery is idle with more pages to load.
func (g *Gallery) SentinelVisible(ctx context.Context) (bool, error) {
	g.mu.Lock()
	if g.disposed || g.state != StateIdle || !g.hasMore {
		g.mu.Unlock()
		return false, nil
	}
	g.state = StateLoadingMore
	gen := g.generation
	q := domain.PageQuery{PageSize: g.pageSize, Cursor: g.cursor, Categories: g.filter}
	emit := g.emitLocked()
	g.mu.Unlock()
	emit()

	return true, g.fetch(ctx, gen, q)
}

func (g *Gallery) fetch(ctx context.Context, gen uint64, q domain.PageQuery) error {
	page, err := g.pager.ListPage(ctx, q)

	g.mu.Lock()
	if g.disposed || gen != g.generation {
		g.mu.Unlock()
		zlog.Logger.Debug().Uint64("generation", gen).Msg("discarding stale gallery response")
		return nil
	}

	if err != nil {
		g.state = StateError
		g.lastErr = err
		emitErr := g.emitLocked()
		g.mu.Unlock()
		emitErr()

		g.notifier.Notify(fmt.Sprintf("could not load images: %v", err))

		g.mu.Lock()
		if g.disposed || gen != g.generation {
			g.mu.Unlock()
			return err
		}
		if len(g.records) > 0 {
			g.state = StateIdle
		} else {
			g.state = StateEmpty
		}
		emit := g.emitLocked()
		g.mu.Unlock()
		emit()
		return err
	}

	g.records = append(g.records, page.Records...)
	g.cursor = page.NextCursor
	g.hasMore = page.HasMore && page.NextCursor != ""
	g.lastErr = nil
	if g.hasMore {
		g.state = StateIdle
	} else {
		g.state = StateExhausted
	}
	emit := g.emitLocked()
	g.mu.Unlock()
	emit()
	return nil
}

// Like bumps the record's count right away and reverts it if the remote call
// fails. The revert finds the record by id again, and is skipped when the list
// has been reloaded since, because fresh data never saw the bump.
func (g *Gallery) Like(ctx context.Context, id string) error {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return ErrDisposed
	}
	gen := g.generation
	g.adjustLikesLocked(id, 1)
	emit := g.emitLocked()
	g.mu.Unlock()
	emit()

	err := g.liker.LikeImage(ctx, id)
	if err == nil {
		return nil
	}

	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return err
	}
	if gen == g.generation {
		g.adjustLikesLocked(id, -1)
	}
	emit = g.emitLocked()
	g.mu.Unlock()
	emit()

	g.notifier.Notify(fmt.Sprintf("could not like image: %v", err))
	return err
}

func (g *Gallery) adjustLikesLocked(id string, delta int64) {
	for _, rec := range g.records {
		if rec.ID == id {
			rec.Likes += delta
			if rec.Likes < 0 {
				rec.Likes = 0
			}
			return
		}
	}
}

// Dispose detaches the gallery. Outstanding requests still complete but their
// results are dropped.
func (g *Gallery) Dispose() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.disposed = true
	g.observers = make(map[int]func(Snapshot))
}

func (g *Gallery) snapshotLocked() Snapshot {
	records := make([]domain.ImageRecord, len(g.records))
	for i, rec := range g.records {
		records[i] = *rec
		records[i].Categories = append([]string(nil), rec.Categories...)
	}
	return Snapshot{
		State:   g.state,
		Records: records,
		Filter:  append([]string(nil), g.filter...),
		HasMore: g.hasMore,
		Err:     g.lastErr,
	}
}

// emitLocked captures the snapshot and observer list under the lock and
// returns a func that delivers them once the lock is released.
func (g *Gallery) emitLocked() func() {
	if len(g.observers) == 0 {
		return func() {}
	}
	snap := g.snapshotLocked()
	observers := make([]func(Snapshot), 0, len(g.observers))
	for i := 0; i < g.nextObsKey; i++ {
		if fn, ok := g.observers[i]; ok {
			observers = append(observers, fn)
		}
	}
	return func() {
		for _, fn := range observers {
			fn(snap)
		}
	}
}
