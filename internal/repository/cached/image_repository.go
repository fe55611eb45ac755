package cached

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nghiemng0310/nail/internal/domain"
	"github.com/patrickmn/go-cache"
	"github.com/wb-go/wbf/zlog"
)

// imageRepository caches single-record reads and filtered listings, the one
// query that scans without an index-backed order. Every write flushes the cache.
//
// A read that misses only stores its result if no write started while it was
// in flight; otherwise it could put a row back that the flush just dropped.
type imageRepository struct {
	next  domain.ImageRepository
	cache *cache.Cache

	mu         sync.Mutex
	generation uint64
}

// NewImageRepository wraps next; a non-positive ttl returns next unchanged.
func NewImageRepository(next domain.ImageRepository, ttl time.Duration) domain.ImageRepository {
	if ttl <= 0 {
		return next
	}
	zlog.Logger.Info().Dur("ttl", ttl).Msg("catalog cache enabled")
	return &imageRepository{
		next:  next,
		cache: cache.New(ttl, ttl*2),
	}
}

// invalidate is called before and after every write. The first call stops
// in-flight reads from caching what they saw; the second drops what was
// cached while the write ran.
func (r *imageRepository) invalidate() {
	r.mu.Lock()
	r.generation++
	r.cache.Flush()
	r.mu.Unlock()
}

func (r *imageRepository) currentGeneration() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}

// store caches v under key unless a write started after gen was taken.
func (r *imageRepository) store(gen uint64, key string, v any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if gen != r.generation {
		return
	}
	r.cache.Set(key, v, cache.DefaultExpiration)
}

func (r *imageRepository) write(fn func() error) error {
	r.invalidate()
	defer r.invalidate()
	return fn()
}

func (r *imageRepository) Insert(ctx context.Context, fields domain.NewImage) (id string, err error) {
	err = r.write(func() error {
		id, err = r.next.Insert(ctx, fields)
		return err
	})
	return id, err
}

func (r *imageRepository) Get(ctx context.Context, id string) (*domain.ImageRecord, error) {
	key := "image:" + id
	if v, ok := r.cache.Get(key); ok {
		return copyRecord(v.(*domain.ImageRecord)), nil
	}
	gen := r.currentGeneration()
	rec, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(gen, key, copyRecord(rec))
	return rec, nil
}

func (r *imageRepository) Update(ctx context.Context, id string, patch domain.ImagePatch) error {
	return r.write(func() error { return r.next.Update(ctx, id, patch) })
}

func (r *imageRepository) Delete(ctx context.Context, id string) error {
	return r.write(func() error { return r.next.Delete(ctx, id) })
}

func (r *imageRepository) IncrementLikes(ctx context.Context, id string) error {
	return r.write(func() error { return r.next.IncrementLikes(ctx, id) })
}

func (r *imageRepository) ListAll(ctx context.Context) ([]*domain.ImageRecord, error) {
	return r.next.ListAll(ctx)
}

func (r *imageRepository) ListPage(ctx context.Context, q domain.PageQuery) (*domain.Page, error) {
	if !q.Filtered() {
		return r.next.ListPage(ctx, q)
	}

	key := filterKey(q.Categories)
	if v, ok := r.cache.Get(key); ok {
		return copyPage(v.(*domain.Page)), nil
	}
	gen := r.currentGeneration()
	page, err := r.next.ListPage(ctx, q)
	if err != nil {
		return nil, err
	}
	r.store(gen, key, copyPage(page))
	return page, nil
}

func filterKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return "filter:" + strings.Join(sorted, "\x1f")
}

func copyPage(p *domain.Page) *domain.Page {
	out := &domain.Page{NextCursor: p.NextCursor, HasMore: p.HasMore, Records: make([]*domain.ImageRecord, len(p.Records))}
	for i, rec := range p.Records {
		out.Records[i] = copyRecord(rec)
	}
	return out
}

func copyRecord(rec *domain.ImageRecord) *domain.ImageRecord {
	c := *rec
	c.Categories = append([]string(nil), rec.Categories...)
	return &c
}
