package memory

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/store"
)

// DefaultFeedBuffer is the per-subscription queue length.
const DefaultFeedBuffer = 16

// Feed is an in-process change feed. It implements both store.Feed and store.Publisher.
type Feed struct {
	mu     sync.Mutex
	subs   map[*subscription]struct{}
	buffer int
}

func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = DefaultFeedBuffer
	}
	return &Feed{
		subs:   make(map[*subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a filtered subscription. It is closed by Close or when ctx ends.
func (f *Feed) Subscribe(ctx context.Context, filter store.Filter) (store.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sub := &subscription{
		feed:   f,
		filter: filter,
		ch:     make(chan domain.Change, f.buffer),
	}

	f.mu.Lock()
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	sub.stop = context.AfterFunc(ctx, sub.release)

	return sub, nil
}

// Publish delivers the change to every matching subscription without blocking.
// A full queue drops the change: a pending notification already guarantees a refresh.
func (f *Feed) Publish(ctx context.Context, change domain.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for sub := range f.subs {
		if !sub.filter.Match(change) {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

type subscription struct {
	feed   *Feed
	filter store.Filter
	ch     chan domain.Change
	stop   func() bool
	once   sync.Once
}

func (s *subscription) C() <-chan domain.Change { return s.ch }

func (s *subscription) Close() error {
	s.stop()
	s.release()
	return nil
}

func (s *subscription) release() {
	s.once.Do(func() {
		s.feed.mu.Lock()
		delete(s.feed.subs, s)
		close(s.ch)
		s.feed.mu.Unlock()
	})
}
