// Package refresh keeps the local bookmark list in step with the store.
//
// Refreshes come from five places: the initial fetch when a session starts,
// the poll ticker, the change feed, manual triggers and mutation follow-ups.
// They race freely. Each fetch is stamped from a single increasing counter
// when it is issued, and a response only replaces the list if its stamp is
// newer than the one already applied and it belongs to the running session.
package refresh

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/store"
)

var (
	// ErrNotRunning is returned by Trigger when no session is active.
	ErrNotRunning = errors.New("refresh coordinator is not running")
	// ErrTriggerPending is returned by Trigger when a manual refresh is already queued.
	ErrTriggerPending = errors.New("refresh already pending")
)

const defaultFetchTimeout = 5 * time.Second

// Lister reads the full list for an owner. ok is false when the read failed.
type Lister interface {
	List(ctx context.Context, ownerID string) ([]domain.Bookmark, bool)
}

// Stats is a point-in-time view of the coordinator.
type Stats struct {
	Running     bool          `json:"running"`
	OwnerID     string        `json:"user_id,omitempty"`
	Issued      uint64        `json:"issued"`
	Applied     uint64        `json:"applied"`
	Discarded   uint64        `json:"discarded"`
	Failed      uint64        `json:"failed"`
	Subscribed  bool          `json:"subscribed"`
	Interval    time.Duration `json:"poll_interval"`
	Count       int           `json:"count"`
	LastRefresh time.Time     `json:"last_refresh"`
}

type Coordinator struct {
	lister       Lister
	feed         store.Feed
	logger       logger.Logger
	interval     time.Duration
	fetchTimeout time.Duration
	now          func() time.Time

	manualTrigger chan struct{}
	issued        atomic.Uint64

	mu          sync.Mutex
	list        []domain.Bookmark
	applied     uint64
	owner       string
	gen         uint64
	running     bool
	runCtx      context.Context
	cancel      context.CancelFunc
	done        chan struct{}
	subscribed  bool
	discarded   uint64
	failed      uint64
	lastRefresh time.Time
}

type Option func(*Coordinator)

// WithPollInterval sets the polling period. 0 disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.interval = d }
}

// WithFetchTimeout bounds each list call.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithClock overrides the clock used for LastRefresh.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a stopped coordinator. feed may be nil, leaving polling and
// explicit refreshes as the only triggers.
func New(lister Lister, feed store.Feed, log logger.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		lister:        lister,
		feed:          feed,
		logger:        log,
		fetchTimeout:  defaultFetchTimeout,
		now:           time.Now,
		manualTrigger: make(chan struct{}, 1),
		list:          []domain.Bookmark{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins refreshing for ownerID. Starting for the owner already running is a no-op;
// a different owner stops the current run first.
func (c *Coordinator) Start(ownerID string) {
	if ownerID == "" {
		return
	}

	c.mu.Lock()
	if c.running && c.owner == ownerID {
		c.mu.Unlock()
		return
	}
	switching := c.running
	c.mu.Unlock()

	if switching {
		c.Stop()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		// lost a race with another Start
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.gen++
	c.owner = ownerID
	c.running = true
	c.runCtx = ctx
	c.cancel = cancel
	c.done = make(chan struct{})

	// drop a trigger left over from a previous run
	select {
	case <-c.manualTrigger:
	default:
	}

	c.logger.Info("refresh started",
		logger.UserID(ownerID),
		logger.Duration("poll_interval", c.interval))

	go c.loop(ctx, c.gen, ownerID, c.done)
}

// Stop cancels in-flight fetches, releases the subscription and the ticker,
// clears the list and waits for the loop to exit. Safe to call repeatedly.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	owner := c.owner
	c.running = false
	c.cancel()
	done := c.done
	c.gen++
	c.owner = ""
	c.subscribed = false
	c.list = []domain.Bookmark{}
	c.mu.Unlock()

	<-done

	c.logger.Info("refresh stopped", logger.UserID(owner))
}

// Refresh fetches synchronously in the caller's goroutine and reports whether
// the result replaced the list. Used right after a successful mutation.
func (c *Coordinator) Refresh(ctx context.Context) bool {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return false
	}
	runCtx, gen, owner := c.runCtx, c.gen, c.owner
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(runCtx, cancel)
	defer stop()

	return c.fetch(ctx, gen, owner, "mutation")
}

// Trigger queues a manual refresh without waiting for it. Triggers coalesce:
// while one is queued, further calls return ErrTriggerPending.
func (c *Coordinator) Trigger() error {
	c.mu.Lock()
	running := c.running
	c.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case c.manualTrigger <- struct{}{}:
		return nil
	default:
		return ErrTriggerPending
	}
}

// Snapshot returns a copy of the current list. It is the only way the list
// leaves the coordinator, so readers always see the newest applied response.
func (c *Coordinator) Snapshot() []domain.Bookmark {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.list)
}

// SnapshotFor returns a copy of the list only if it is being kept for ownerID,
// and an empty list otherwise.
func (c *Coordinator) SnapshotFor(ownerID string) []domain.Bookmark {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running || ownerID == "" || c.owner != ownerID {
		return []domain.Bookmark{}
	}
	return slices.Clone(c.list)
}

func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Running:     c.running,
		OwnerID:     c.owner,
		Issued:      c.issued.Load(),
		Applied:     c.applied,
		Discarded:   c.discarded,
		Failed:      c.failed,
		Subscribed:  c.subscribed,
		Interval:    c.interval,
		Count:       len(c.list),
		LastRefresh: c.lastRefresh,
	}
}

func (c *Coordinator) loop(ctx context.Context, gen uint64, owner string, done chan struct{}) {
	defer close(done)

	changes, release := c.subscribe(ctx, gen, owner)
	defer release()

	c.fetch(ctx, gen, owner, "mount")

	var tick <-chan time.Time
	if c.interval > 0 {
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			c.fetch(ctx, gen, owner, "poll")
		case change, ok := <-changes:
			if !ok {
				c.logger.Warn("change feed closed, relying on polling", logger.UserID(owner))
				changes = nil
				c.setSubscribed(gen, false)
				continue
			}
			c.logger.Debug("change received",
				logger.String("event", string(change.Event)),
				logger.String("id", change.BookmarkID))
			c.fetch(ctx, gen, owner, "feed")
		case <-c.manualTrigger:
			c.logger.Info("manual refresh triggered", logger.UserID(owner))
			c.fetch(ctx, gen, owner, "manual")
		}
	}
}

func (c *Coordinator) subscribe(ctx context.Context, gen uint64, owner string) (<-chan domain.Change, func()) {
	if c.feed == nil {
		return nil, func() {}
	}

	filter := store.Filter{Table: domain.TableBookmarks, Event: domain.ChangeAny, OwnerID: owner}
	sub, err := c.feed.Subscribe(ctx, filter)
	if err != nil {
		if ctx.Err() == nil {
			c.logger.Warn("change feed unavailable, relying on polling",
				logger.String("filter", filter.String()),
				logger.Error(err))
		}
		return nil, func() {}
	}

	c.setSubscribed(gen, true)
	return sub.C(), func() {
		if err := sub.Close(); err != nil {
			c.logger.Debug("failed to close change subscription", logger.Error(err))
		}
		c.setSubscribed(gen, false)
	}
}

func (c *Coordinator) setSubscribed(gen uint64, v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen {
		return
	}
	c.subscribed = v
}

// fetch stamps, reads and applies one refresh.
func (c *Coordinator) fetch(ctx context.Context, gen uint64, owner, trigger string) bool {
	seq := c.issued.Add(1)

	fetchCtx, cancel := context.WithTimeout(ctx, c.fetchTimeout)
	list, ok := c.lister.List(fetchCtx, owner)
	cancel()

	return c.apply(ctx, gen, owner, seq, list, ok, trigger)
}

func (c *Coordinator) apply(ctx context.Context, gen uint64, owner string, seq uint64, list []domain.Bookmark, ok bool, trigger string) bool {
	c.mu.Lock()

	if ctx.Err() != nil || !c.running || gen != c.gen || owner != c.owner {
		c.discarded++
		c.mu.Unlock()
		c.logger.Debug("discarding refresh from a previous session",
			logger.Uint64("seq", seq),
			logger.String("trigger", trigger))
		return false
	}
	if !ok {
		// keep what is shown; the next trigger retries
		c.failed++
		c.mu.Unlock()
		return false
	}
	if seq <= c.applied {
		c.discarded++
		applied := c.applied
		c.mu.Unlock()
		c.logger.Debug("discarding stale refresh",
			logger.Uint64("seq", seq),
			logger.Uint64("applied", applied),
			logger.String("trigger", trigger))
		return false
	}

	c.applied = seq
	c.list = slices.Clone(list)
	if c.list == nil {
		c.list = []domain.Bookmark{}
	}
	c.lastRefresh = c.now()
	count := len(c.list)
	c.mu.Unlock()

	c.logger.Debug("list refreshed",
		logger.Uint64("seq", seq),
		logger.Int("count", count),
		logger.String("trigger", trigger))
	return true
}
