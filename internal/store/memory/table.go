// Package memory provides an in-process bookmarks table and change feed.
// It backs development runs and tests when no PostgreSQL or Redis is configured.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory table closed")

// ErrNoOwner is returned when an insert carries no owner.
var ErrNoOwner = errors.New("row has no owner")

type row struct {
	bookmark domain.Bookmark
	seq      uint64 // insertion order, breaks CreatedAt ties
}

// Table is a mutex-guarded bookmarks relation.
// Every operation checks the owner itself, mirroring a row-level access policy.
type Table struct {
	mu     sync.RWMutex
	rows   map[string]*row
	seq    uint64
	now    func() time.Time
	closed bool
}

// Option configures a Table.
type Option func(*Table)

// WithClock overrides the timestamp source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

func NewTable(opts ...Option) *Table {
	t := &Table{
		rows: make(map[string]*row),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Table) Select(ctx context.Context, ownerID string) ([]domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return nil, ErrClosed
	}

	owned := make([]*row, 0)
	for _, r := range t.rows {
		if r.bookmark.OwnerID == ownerID {
			owned = append(owned, r)
		}
	}

	sort.Slice(owned, func(i, j int) bool {
		a, b := owned[i], owned[j]
		if !a.bookmark.CreatedAt.Equal(b.bookmark.CreatedAt) {
			return a.bookmark.CreatedAt.After(b.bookmark.CreatedAt)
		}
		return a.seq > b.seq
	})

	result := make([]domain.Bookmark, len(owned))
	for i, r := range owned {
		result[i] = r.bookmark
	}
	return result, nil
}

func (t *Table) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	if err := ctx.Err(); err != nil {
		return domain.Bookmark{}, err
	}
	if nb.OwnerID == "" {
		return domain.Bookmark{}, ErrNoOwner
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return domain.Bookmark{}, ErrClosed
	}

	t.seq++
	b := domain.Bookmark{
		ID:        uuid.NewString(),
		OwnerID:   nb.OwnerID,
		Title:     nb.Title,
		URL:       nb.URL,
		CreatedAt: t.now().UTC(),
	}
	t.rows[b.ID] = &row{bookmark: b, seq: t.seq}

	return b, nil
}

func (t *Table) Update(ctx context.Context, edit domain.BookmarkEdit) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}

	r, ok := t.rows[edit.ID]
	if !ok || r.bookmark.OwnerID != edit.OwnerID {
		return 0, nil
	}
	r.bookmark.Title = edit.Title
	r.bookmark.URL = edit.URL

	return 1, nil
}

func (t *Table) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0, ErrClosed
	}

	r, ok := t.rows[id]
	if !ok || r.bookmark.OwnerID != ownerID {
		return 0, nil
	}
	delete(t.rows, id)

	return 1, nil
}

func (t *Table) Ping(ctx context.Context) error {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.closed {
		return ErrClosed
	}
	return ctx.Err()
}

func (t *Table) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	return nil
}
