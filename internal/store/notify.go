package store

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// NotifyingTable wraps a Table and publishes a change after every successful write.
// Publishing is best effort: the write already happened, so a publish failure is
// logged and never returned.
type NotifyingTable struct {
	Table
	publisher Publisher
	logger    logger.Logger
	now       func() time.Time
}

// Notify returns table decorated with change publishing.
func Notify(table Table, publisher Publisher, log logger.Logger) *NotifyingTable {
	return &NotifyingTable{
		Table:     table,
		publisher: publisher,
		logger:    log,
		now:       time.Now,
	}
}

func (t *NotifyingTable) Insert(ctx context.Context, nb domain.NewBookmark) (domain.Bookmark, error) {
	b, err := t.Table.Insert(ctx, nb)
	if err != nil {
		return b, err
	}
	t.publish(ctx, domain.ChangeInsert, b.OwnerID, b.ID)
	return b, nil
}

func (t *NotifyingTable) Update(ctx context.Context, edit domain.BookmarkEdit) (int64, error) {
	rows, err := t.Table.Update(ctx, edit)
	if err != nil || rows == 0 {
		return rows, err
	}
	t.publish(ctx, domain.ChangeUpdate, edit.OwnerID, edit.ID)
	return rows, nil
}

func (t *NotifyingTable) Delete(ctx context.Context, id, ownerID string) (int64, error) {
	rows, err := t.Table.Delete(ctx, id, ownerID)
	if err != nil || rows == 0 {
		return rows, err
	}
	t.publish(ctx, domain.ChangeDelete, ownerID, id)
	return rows, nil
}

func (t *NotifyingTable) publish(ctx context.Context, event domain.ChangeEvent, ownerID, id string) {
	change := domain.Change{
		Table:      domain.TableBookmarks,
		Event:      event,
		OwnerID:    ownerID,
		BookmarkID: id,
		At:         t.now(),
	}
	if err := t.publisher.Publish(ctx, change); err != nil {
		t.logger.Warn("failed to publish bookmark change",
			logger.String("event", string(event)),
			logger.String("id", id),
			logger.Error(err))
	}
}
