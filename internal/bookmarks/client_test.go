package bookmarks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/store/memory"
)

var errDown = errors.New("store down")

// brokenTable fails every call.
type brokenTable struct{}

func (brokenTable) Select(context.Context, string) ([]domain.Bookmark, error) {
	return nil, errDown
}

func (brokenTable) Insert(context.Context, domain.NewBookmark) (domain.Bookmark, error) {
	return domain.Bookmark{}, errDown
}

func (brokenTable) Update(context.Context, domain.BookmarkEdit) (int64, error) { return 0, errDown }
func (brokenTable) Delete(context.Context, string, string) (int64, error)      { return 0, errDown }
func (brokenTable) Ping(context.Context) error                                 { return errDown }
func (brokenTable) Close() error                                               { return nil }

func newClient(t *testing.T) *Client {
	t.Helper()
	c := New(memory.NewTable(), logger.Nop())
	t.Cleanup(c.Close)
	return c
}

func TestOwnerIsolation(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.True(t, c.Insert(ctx, "alice", "A", "https://a.example"))
	require.True(t, c.Insert(ctx, "bob", "B", "https://b.example"))

	alice, ok := c.List(ctx, "alice")
	require.True(t, ok)
	require.Len(t, alice, 1)
	assert.Equal(t, "A", alice[0].Title)

	bob, _ := c.List(ctx, "bob")
	require.Len(t, bob, 1)
	assert.Equal(t, "B", bob[0].Title)
}

func TestInsertThenListNewestFirst(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.True(t, c.Insert(ctx, "alice", "first", "https://1.example"))
	require.True(t, c.Insert(ctx, "alice", "second", "https://2.example"))

	list, ok := c.List(ctx, "alice")
	require.True(t, ok)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title)
	assert.Equal(t, "first", list[1].Title)
}

func TestPresenceChecks(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		owner string
		title string
		url   string
	}{
		{name: "no owner", owner: "", title: "t", url: "https://u"},
		{name: "no title", owner: "alice", title: "", url: "https://u"},
		{name: "no url", owner: "alice", title: "t", url: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, c.Insert(ctx, tt.owner, tt.title, tt.url))
		})
	}

	list, ok := c.List(ctx, "alice")
	assert.True(t, ok)
	assert.Empty(t, list)

	empty, ok := c.List(ctx, "")
	assert.True(t, ok)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdateRequiresOwnerMatch(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.True(t, c.Insert(ctx, "alice", "old", "https://old.example"))
	list, _ := c.List(ctx, "alice")
	id := list[0].ID

	assert.False(t, c.Update(ctx, id, "bob", "hijack", "https://evil.example"))
	assert.False(t, c.Update(ctx, id, "alice", "", "https://new.example"), "title must be present")
	assert.True(t, c.Update(ctx, id, "alice", "new", "https://new.example"))

	list, _ = c.List(ctx, "alice")
	assert.Equal(t, "new", list[0].Title)
	assert.Equal(t, "https://new.example", list[0].URL)
}

func TestRemoveIsIdempotent(t *testing.T) {
	c := newClient(t)
	ctx := context.Background()

	require.True(t, c.Insert(ctx, "alice", "x", "https://x.example"))
	list, _ := c.List(ctx, "alice")
	id := list[0].ID

	assert.False(t, c.Remove(ctx, id, "bob"))
	assert.True(t, c.Remove(ctx, id, "alice"))
	assert.False(t, c.Remove(ctx, id, "alice"))

	list, _ = c.List(ctx, "alice")
	assert.Empty(t, list)
}

func TestStoreFailuresAreSwallowed(t *testing.T) {
	c := New(brokenTable{}, logger.Nop())
	defer c.Close()

	errs := make(chan error, 8)
	c.ListenErrors(func(err error) { errs <- err })

	ctx := context.Background()

	list, ok := c.List(ctx, "alice")
	assert.False(t, ok)
	assert.NotNil(t, list)
	assert.Empty(t, list)

	assert.False(t, c.Insert(ctx, "alice", "t", "https://u"))
	assert.False(t, c.Update(ctx, "id", "alice", "t", "https://u"))
	assert.False(t, c.Remove(ctx, "id", "alice"))

	var ops []string
	for i := 0; i < 4; i++ {
		select {
		case err := <-errs:
			var opErr *OpError
			require.ErrorAs(t, err, &opErr)
			assert.ErrorIs(t, err, errDown)
			ops = append(ops, opErr.Op)
		case <-time.After(time.Second):
			t.Fatal("missing error notification")
		}
	}
	assert.ElementsMatch(t, []string{"list", "insert", "update", "remove"}, ops)
}

func TestErrorsDroppedWhenBufferFull(t *testing.T) {
	c := New(brokenTable{}, logger.Nop(), WithErrorBuffer(1))

	ctx := context.Background()
	c.List(ctx, "alice")
	c.List(ctx, "alice")

	assert.Len(t, c.errorChannel, 1)

	c.Close()
	c.Close()
	assert.NotPanics(t, func() { c.List(ctx, "alice") })
}
