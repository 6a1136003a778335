// Package view holds the presentation state: the session, the bookmark list
// and the single row being edited, and turns user intents into repository
// calls followed by a refresh.
package view

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/refresh"
	"github.com/MrSnakeDoc/shelf/internal/session"
)

// Sessions is the session store as seen by the view.
type Sessions interface {
	Load(ctx context.Context) (domain.Session, bool)
	Current() (domain.Session, bool)
	OnChange(fn session.Subscriber) (unsubscribe func())
	SignIn(ctx context.Context, provider string) (string, error)
	SignOut(ctx context.Context) error
}

// Repository performs owner-scoped writes. Each call reports whether it changed a row.
type Repository interface {
	Insert(ctx context.Context, ownerID, title, url string) bool
	Update(ctx context.Context, id, ownerID, title, url string) bool
	Remove(ctx context.Context, id, ownerID string) bool
}

// Refresher owns the local list.
type Refresher interface {
	Start(ownerID string)
	Stop()
	Refresh(ctx context.Context) bool
	Trigger() error
	SnapshotFor(ownerID string) []domain.Bookmark
	Stats() refresh.Stats
}

// SessionInfo is the part of the session shown to the client.
type SessionInfo struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Draft is the pending edit of one row.
type Draft struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type State struct {
	Session   *SessionInfo      `json:"session"`
	Bookmarks []domain.Bookmark `json:"bookmarks"`
	Editing   *Draft            `json:"editing"`
}

type View struct {
	sessions  Sessions
	repo      Repository
	refresher Refresher
	logger    logger.Logger

	mu          sync.Mutex
	draft       *Draft
	mounted     bool
	unsubscribe func()
}

func New(sessions Sessions, repo Repository, refresher Refresher, log logger.Logger) *View {
	return &View{
		sessions:  sessions,
		repo:      repo,
		refresher: refresher,
		logger:    log,
	}
}

// Mount follows the session: the list starts refreshing when a session is
// present and is cleared when it goes away. A session that already exists is
// picked up immediately.
func (v *View) Mount(ctx context.Context) {
	v.mu.Lock()
	if v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = true
	v.unsubscribe = v.sessions.OnChange(v.onSession)
	v.mu.Unlock()

	if s, ok := v.sessions.Load(ctx); ok {
		v.refresher.Start(s.UserID)
	}
}

// Unmount releases the session subscription and stops refreshing.
func (v *View) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	unsubscribe := v.unsubscribe
	v.unsubscribe = nil
	v.draft = nil
	v.mu.Unlock()

	unsubscribe()
	v.refresher.Stop()
}

func (v *View) onSession(s domain.Session, present bool) {
	if present {
		if v.refresher.Stats().OwnerID != s.UserID {
			// a draft never outlives the owner it was opened for
			v.mu.Lock()
			v.draft = nil
			v.mu.Unlock()
		}
		v.refresher.Start(s.UserID)
		return
	}

	v.mu.Lock()
	v.draft = nil
	v.mu.Unlock()
	v.refresher.Stop()
}

// State returns what the client should render.
func (v *View) State() State {
	state := State{Bookmarks: []domain.Bookmark{}}

	if s, ok := v.sessions.Current(); ok {
		state.Session = &SessionInfo{UserID: s.UserID, Email: s.Email, ExpiresAt: s.ExpiresAt}
		state.Bookmarks = v.refresher.SnapshotFor(s.UserID)
	}

	v.mu.Lock()
	if v.draft != nil && state.Session != nil {
		d := *v.draft
		state.Editing = &d
	}
	v.mu.Unlock()

	return state
}

// SignIn starts the provider handoff and returns the URL to send the user to.
func (v *View) SignIn(ctx context.Context, provider string) (string, error) {
	return v.sessions.SignIn(ctx, provider)
}

func (v *View) SignOut(ctx context.Context) State {
	if err := v.sessions.SignOut(ctx); err != nil {
		v.logger.Warn("sign out failed", logger.Error(err))
	}
	v.mu.Lock()
	v.draft = nil
	v.mu.Unlock()
	return v.State()
}

// Add inserts a bookmark and refreshes on success.
func (v *View) Add(ctx context.Context, title, url string) State {
	owner, ok := v.owner()
	if !ok {
		return v.State()
	}

	if v.repo.Insert(ctx, owner, title, url) {
		v.refresher.Refresh(ctx)
	}
	return v.State()
}

// BeginEdit opens the row for editing, seeded with its current values.
// Only one row is edited at a time.
func (v *View) BeginEdit(id string) State {
	owner, ok := v.owner()
	if !ok {
		return v.State()
	}

	list := v.refresher.SnapshotFor(owner)
	idx := slices.IndexFunc(list, func(b domain.Bookmark) bool { return b.ID == id })
	if idx < 0 {
		return v.State()
	}
	b := list[idx]

	v.mu.Lock()
	v.draft = &Draft{ID: b.ID, Title: b.Title, URL: b.URL}
	v.mu.Unlock()

	return v.State()
}

// UpdateEdit changes the pending values. nil leaves a field as it is.
func (v *View) UpdateEdit(title, url *string) State {
	v.mu.Lock()
	if v.draft != nil {
		if title != nil {
			v.draft.Title = *title
		}
		if url != nil {
			v.draft.URL = *url
		}
	}
	v.mu.Unlock()

	return v.State()
}

// SaveEdit writes the pending values of row id. A successful save closes the edit.
func (v *View) SaveEdit(ctx context.Context, id string) State {
	owner, ok := v.owner()
	if !ok {
		return v.State()
	}

	v.mu.Lock()
	if v.draft == nil || v.draft.ID != id {
		v.mu.Unlock()
		return v.State()
	}
	draft := *v.draft
	v.mu.Unlock()

	if v.repo.Update(ctx, draft.ID, owner, draft.Title, draft.URL) {
		v.closeEdit(id)
		v.refresher.Refresh(ctx)
		return v.State()
	}

	// the row may be gone already; an edit of nothing stays closed
	if !slices.ContainsFunc(v.refresher.SnapshotFor(owner), func(b domain.Bookmark) bool { return b.ID == id }) {
		v.closeEdit(id)
	}
	return v.State()
}

// CancelEdit discards the pending values.
func (v *View) CancelEdit() State {
	v.mu.Lock()
	v.draft = nil
	v.mu.Unlock()
	return v.State()
}

// Delete removes row id and refreshes on success.
func (v *View) Delete(ctx context.Context, id string) State {
	owner, ok := v.owner()
	if !ok {
		return v.State()
	}

	if v.repo.Remove(ctx, id, owner) {
		v.closeEdit(id)
		v.refresher.Refresh(ctx)
	}
	return v.State()
}

// Refresh asks for a background refresh. See refresh.Coordinator.Trigger.
func (v *View) Refresh() error {
	return v.refresher.Trigger()
}

// Stats exposes the refresher's counters.
func (v *View) Stats() refresh.Stats {
	return v.refresher.Stats()
}

func (v *View) owner() (string, bool) {
	s, ok := v.sessions.Current()
	if !ok || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}

func (v *View) closeEdit(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.draft != nil && v.draft.ID == id {
		v.draft = nil
	}
}
