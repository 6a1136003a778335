// Package store defines the data store boundary: row-level CRUD against the
// bookmarks relation and a subscribable change feed filtered by owner.
package store

import (
	"context"
	"fmt"

	"github.com/MrSnakeDoc/shelf/internal/domain"
)

// Table is row-level CRUD against the bookmarks relation.
// Every call is scoped by owner id; implementations must also enforce
// ownership on their side.
type Table interface {
	// Select returns the owner's rows ordered by creation time, newest first.
	Select(ctx context.Context, ownerID string) ([]domain.Bookmark, error)

	// Insert stores a new row and returns it with its store-assigned id and timestamp.
	Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error)

	// Update changes title and url of the row matching both id and owner.
	// It returns the number of matched rows.
	Update(ctx context.Context, edit domain.BookmarkEdit) (int64, error)

	// Delete removes the row matching both id and owner.
	// It returns the number of removed rows.
	Delete(ctx context.Context, id, ownerID string) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// Filter selects change notifications, in the spirit of
// subscribe(table, event="*", filter="user_id=eq.<id>").
type Filter struct {
	Table   string
	Event   domain.ChangeEvent
	OwnerID string
}

// Match reports whether the change passes the filter.
func (f Filter) Match(c domain.Change) bool {
	if f.Table != "" && f.Table != c.Table {
		return false
	}
	if f.OwnerID != "" && f.OwnerID != c.OwnerID {
		return false
	}
	return c.Matches(f.Event)
}

func (f Filter) String() string {
	event := f.Event
	if event == "" {
		event = domain.ChangeAny
	}
	return fmt.Sprintf("%s:%s:user_id=eq.%s", f.Table, event, f.OwnerID)
}

// Subscription is a live change stream. Close is synchronous and idempotent;
// after it returns the channel is closed and no more changes are delivered.
type Subscription interface {
	C() <-chan domain.Change
	Close() error
}

// Feed hands out filtered change subscriptions.
type Feed interface {
	Subscribe(ctx context.Context, filter Filter) (Subscription, error)
}

// Publisher pushes a change notification to a feed.
type Publisher interface {
	Publish(ctx context.Context, change domain.Change) error
}
