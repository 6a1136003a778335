// Package bookmarks is the owner-scoped repository client used by the view.
//
// Every operation is a silent no-op without an owner or with missing fields,
// and store failures never reach the caller: they are logged and published
// on the error channel, and the operation reports false.
package bookmarks

import (
	"context"
	"fmt"
	"sync"

	validator "github.com/go-playground/validator/v10"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/store"
)

const defaultErrorBuffer = 32

// OpError describes a failed store call.
type OpError struct {
	Op      string
	OwnerID string
	Err     error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("bookmarks %s for %s: %v", e.Op, e.OwnerID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }

type Client struct {
	table    store.Table
	logger   logger.Logger
	validate *validator.Validate

	errorChannel chan error
	closeOnce    sync.Once
	mu           sync.RWMutex
	closed       bool
}

type Option func(*Client)

// WithErrorBuffer sets how many unread errors are kept before new ones are dropped.
func WithErrorBuffer(n int) Option {
	return func(c *Client) { c.errorChannel = make(chan error, n) }
}

func New(table store.Table, log logger.Logger, opts ...Option) *Client {
	c := &Client{
		table:        table,
		logger:       log,
		validate:     validator.New(),
		errorChannel: make(chan error, defaultErrorBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListenErrors calls callback for every store failure until Close.
func (c *Client) ListenErrors(callback func(error)) {
	go func() {
		for err := range c.errorChannel {
			callback(err)
		}
	}()
}

// Close ends the error channel.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.errorChannel)
		c.mu.Unlock()
	})
}

// List returns the owner's bookmarks, newest first. ok is false when the read failed;
// the slice is then empty, as it is when there is nothing to show.
func (c *Client) List(ctx context.Context, ownerID string) (list []domain.Bookmark, ok bool) {
	if ownerID == "" {
		return []domain.Bookmark{}, true
	}

	rows, err := c.table.Select(ctx, ownerID)
	if err != nil {
		c.fail("list", ownerID, err)
		return []domain.Bookmark{}, false
	}
	if rows == nil {
		rows = []domain.Bookmark{}
	}
	return rows, true
}

// Insert adds a bookmark. It reports whether a row was written.
func (c *Client) Insert(ctx context.Context, ownerID, title, url string) bool {
	nb := domain.NewBookmark{OwnerID: ownerID, Title: title, URL: url}
	if c.validate.Struct(nb) != nil {
		return false
	}

	b, err := c.table.Insert(ctx, nb)
	if err != nil {
		c.fail("insert", ownerID, err)
		return false
	}

	c.logger.Debug("bookmark inserted", logger.String("id", b.ID), logger.UserID(ownerID))
	return true
}

// Update edits the row matching both id and owner. false when nothing matched.
func (c *Client) Update(ctx context.Context, id, ownerID, title, url string) bool {
	edit := domain.BookmarkEdit{ID: id, OwnerID: ownerID, Title: title, URL: url}
	if c.validate.Struct(edit) != nil {
		return false
	}

	rows, err := c.table.Update(ctx, edit)
	if err != nil {
		c.fail("update", ownerID, err)
		return false
	}
	return rows > 0
}

// Remove deletes the row matching both id and owner. Removing a missing row is a no-op.
func (c *Client) Remove(ctx context.Context, id, ownerID string) bool {
	if id == "" || ownerID == "" {
		return false
	}

	rows, err := c.table.Delete(ctx, id, ownerID)
	if err != nil {
		c.fail("remove", ownerID, err)
		return false
	}
	return rows > 0
}

func (c *Client) fail(op, ownerID string, err error) {
	c.logger.Warn("bookmark store call failed",
		logger.String("op", op),
		logger.UserID(ownerID),
		logger.Error(err))

	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.errorChannel <- &OpError{Op: op, OwnerID: ownerID, Err: err}:
	default:
	}
}
