package redis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/store"
)

func newTestFeed(t *testing.T) *Feed {
	t.Helper()

	addr := os.Getenv("SHELF_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SHELF_TEST_REDIS_ADDR not set")
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, client.Ping(ctx).Err())

	return NewFeed(client, logger.Nop())
}

func TestSubscribeRequiresOwner(t *testing.T) {
	feed := NewFeed(nil, logger.Nop())
	_, err := feed.Subscribe(context.Background(), store.Filter{Table: domain.TableBookmarks})
	assert.ErrorIs(t, err, ErrOwnerRequired)
}

func TestFeedRoundTrip(t *testing.T) {
	feed := newTestFeed(t)
	ctx := context.Background()
	owner := "test-" + time.Now().Format("150405.000000")

	sub, err := feed.Subscribe(ctx, store.Filter{Table: domain.TableBookmarks, Event: domain.ChangeAny, OwnerID: owner})
	require.NoError(t, err)

	require.NoError(t, feed.Publish(ctx, domain.Change{Table: domain.TableBookmarks, Event: domain.ChangeInsert, OwnerID: "someone-else"}))
	require.NoError(t, feed.Publish(ctx, domain.Change{Table: domain.TableBookmarks, Event: domain.ChangeInsert, OwnerID: owner, BookmarkID: "b1"}))

	select {
	case c := <-sub.C():
		assert.Equal(t, owner, c.OwnerID)
		assert.Equal(t, "b1", c.BookmarkID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
	}

	require.NoError(t, sub.Close())
	assert.NotPanics(t, func() { _ = sub.Close() })

	_, open := <-sub.C()
	assert.False(t, open)
}
