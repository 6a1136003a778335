package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/store"
)

// DefaultFeedBuffer is the per-subscription queue length.
const DefaultFeedBuffer = 16

// ErrOwnerRequired is returned when a subscription has no owner filter.
var ErrOwnerRequired = errors.New("change subscription requires an owner filter")

// Feed is a change feed over Redis pub/sub. It implements store.Feed and store.Publisher.
type Feed struct {
	client *redis.Client
	logger logger.Logger
	buffer int
}

// NewFeed creates a new Redis change feed
func NewFeed(client *redis.Client, log logger.Logger) *Feed {
	return &Feed{
		client: client,
		logger: log,
		buffer: DefaultFeedBuffer,
	}
}

// Publish sends a change to the owner's channel
func (f *Feed) Publish(ctx context.Context, change domain.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}

	channel := ChangesChannel(change.Table, change.OwnerID)
	if err := f.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish change: %w", err)
	}

	return nil
}

// Subscribe listens to the owner's channel until Close is called or ctx ends.
func (f *Feed) Subscribe(ctx context.Context, filter store.Filter) (store.Subscription, error) {
	if filter.OwnerID == "" {
		return nil, ErrOwnerRequired
	}
	if filter.Table == "" {
		filter.Table = domain.TableBookmarks
	}

	channel := ChangesChannel(filter.Table, filter.OwnerID)
	ps := f.client.Subscribe(ctx, channel)

	// Wait for the subscription confirmation so no change published after
	// Subscribe returns can be missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &subscription{
		pubsub:  ps,
		filter:  filter,
		ch:      make(chan domain.Change, f.buffer),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
		logger:  f.logger,
	}
	go sub.pump()
	sub.stop = context.AfterFunc(ctx, func() { _ = sub.shutdown() })

	f.logger.Debug("subscribed to change feed", logger.String("channel", channel))

	return sub, nil
}

type subscription struct {
	pubsub  *redis.PubSub
	filter  store.Filter
	ch      chan domain.Change
	done    chan struct{}
	stopped chan struct{}
	stop    func() bool
	once    sync.Once
	err     error
	logger  logger.Logger
}

func (s *subscription) C() <-chan domain.Change { return s.ch }

func (s *subscription) Close() error {
	s.stop()
	return s.shutdown()
}

// shutdown closes the pubsub and waits for the pump to exit. Safe to call twice.
func (s *subscription) shutdown() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.pubsub.Close()
		<-s.stopped
	})
	return s.err
}

func (s *subscription) pump() {
	defer close(s.stopped)
	defer close(s.ch)

	messages := s.pubsub.Channel()
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			var change domain.Change
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				s.logger.Warn("dropping malformed change notification",
					logger.String("channel", msg.Channel),
					logger.Error(err))
				continue
			}
			if !s.filter.Match(change) {
				continue
			}

			// A full queue drops the change: a pending one already triggers a refresh.
			select {
			case s.ch <- change:
			default:
			}
		}
	}
}
