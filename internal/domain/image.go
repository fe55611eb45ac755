package domain

import (
	"sort"
	"strings"
	"time"
)

// ImageRecord is a single gallery entry.
type ImageRecord struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"image_url"`
	Categories []string  `json:"categories"`
	Likes      int64     `json:"likes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewImage holds the caller-supplied fields of an insert. The store assigns
// id, likes and timestamps.
type NewImage struct {
	Name       string
	ImageURL   string
	Categories []string
}

// ImagePatch is a partial update; nil fields are left unchanged.
type ImagePatch struct {
	Name       *string
	ImageURL   *string
	Categories *[]string
}

func (p ImagePatch) IsEmpty() bool {
	return p.Name == nil && p.ImageURL == nil && p.Categories == nil
}

// PageQuery selects one page of the catalog. A non-empty Categories list
// switches to filtered mode, where Cursor is ignored.
type PageQuery struct {
	PageSize   int
	Cursor     string
	Categories []string
}

func (q PageQuery) Filtered() bool {
	return len(q.Categories) > 0
}

// Page is one slice of the recency-ordered catalog. An empty NextCursor means
// there is nothing to resume from.
type Page struct {
	Records    []*ImageRecord `json:"records"`
	NextCursor string         `json:"next_cursor,omitempty"`
	HasMore    bool           `json:"has_more"`
}

// Blob is a normalized, upload-ready image.
type Blob struct {
	Data        []byte
	ContentType string
	Ext         string
	Width       int
	Height      int
}

func (b *Blob) Size() int64 {
	return int64(len(b.Data))
}

// Now returns the store clock reading: UTC, truncated to the microsecond
// precision PostgreSQL keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// NewerFirst reports whether a sorts before b in gallery order:
// updated_at descending, id descending on ties.
func NewerFirst(a, b *ImageRecord) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return strings.Compare(a.ID, b.ID) > 0
}

// SortByRecency orders records newest first in place.
func SortByRecency(records []*ImageRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return NewerFirst(records[i], records[j])
	})
}

// HasAnyCategory reports whether the record carries at least one of the labels.
func (i *ImageRecord) HasAnyCategory(labels []string) bool {
	for _, c := range i.Categories {
		for _, l := range labels {
			if c == l {
				return true
			}
		}
	}
	return false
}

const (
	DefaultPageSize  = 10
	MaxPageSize      = 100
	DefaultFilterCap = 100
)

// ClampPageSize maps a requested size into [1, MaxPageSize]; zero or
// negative values fall back to def.
func ClampPageSize(size, def int) int {
	if size <= 0 {
		size = def
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	return size
}
