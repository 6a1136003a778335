package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/store"
)

func aliceFilter() store.Filter {
	return store.Filter{Table: domain.TableBookmarks, Event: domain.ChangeAny, OwnerID: "alice"}
}

func TestFeedDeliversMatchingChanges(t *testing.T) {
	ctx := context.Background()
	feed := NewFeed(4)

	sub, err := feed.Subscribe(ctx, aliceFilter())
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	require.NoError(t, feed.Publish(ctx, domain.Change{Table: domain.TableBookmarks, Event: domain.ChangeInsert, OwnerID: "bob"}))
	require.NoError(t, feed.Publish(ctx, domain.Change{Table: domain.TableBookmarks, Event: domain.ChangeInsert, OwnerID: "alice", BookmarkID: "1"}))

	select {
	case c := <-sub.C():
		assert.Equal(t, "alice", c.OwnerID)
		assert.Equal(t, "1", c.BookmarkID)
	case <-time.After(time.Second):
		t.Fatal("expected a change for alice")
	}

	select {
	case c := <-sub.C():
		t.Fatalf("unexpected change delivered: %+v", c)
	default:
	}
}

func TestFeedCloseIsIdempotent(t *testing.T) {
	ctx := context.Background()
	feed := NewFeed(1)

	sub, err := feed.Subscribe(ctx, aliceFilter())
	require.NoError(t, err)
	assert.Equal(t, 1, feed.Subscribers())

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())
	assert.Equal(t, 0, feed.Subscribers())

	_, open := <-sub.C()
	assert.False(t, open, "channel must be closed after Close")

	// Publishing after close must not panic.
	require.NoError(t, feed.Publish(ctx, domain.Change{Table: domain.TableBookmarks, OwnerID: "alice"}))
}

func TestFeedClosesWithContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	feed := NewFeed(1)

	sub, err := feed.Subscribe(ctx, aliceFilter())
	require.NoError(t, err)

	cancel()

	select {
	case _, open := <-sub.C():
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("subscription should close when its context ends")
	}
	assert.NoError(t, sub.Close())
}

func TestFeedDropsWhenFull(t *testing.T) {
	ctx := context.Background()
	feed := NewFeed(1)

	sub, err := feed.Subscribe(ctx, aliceFilter())
	require.NoError(t, err)
	defer func() { _ = sub.Close() }()

	for i := 0; i < 3; i++ {
		require.NoError(t, feed.Publish(ctx, domain.Change{Table: domain.TableBookmarks, OwnerID: "alice"}))
	}
	assert.Len(t, sub.C(), 1)
}
