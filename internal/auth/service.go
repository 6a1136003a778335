package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// StateTTL bounds how long a sign-in handoff may take.
const StateTTL = 10 * time.Minute

// Listener observes session transitions. present is false when the session became absent.
// Listeners run synchronously, in transition order, and must not start a transition themselves.
type Listener func(session domain.Session, present bool)

type pendingSignIn struct {
	provider  string
	expiresAt time.Time
}

type listenerEntry struct {
	id uint64
	fn Listener
}

// Service holds the process-wide session and drives its transitions.
type Service struct {
	tokens *Tokens
	logger logger.Logger
	now    func() time.Time

	// transition serializes transitions together with their notifications.
	transition sync.Mutex

	mu        sync.Mutex
	session   domain.Session
	providers map[string]Provider
	pending   map[string]pendingSignIn
	revoked   map[string]time.Time // signed-out token => its expiry
	listeners []listenerEntry
	nextID    uint64
	expiry    *time.Timer
}

type Option func(*Service)

// WithProvider registers an identity provider.
func WithProvider(p Provider) Option {
	return func(s *Service) { s.providers[strings.ToLower(p.Name())] = p }
}

// WithClock overrides the clock used for state and token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
		s.tokens.now = now
	}
}

func NewService(tokens *Tokens, log logger.Logger, opts ...Option) *Service {
	s := &Service{
		tokens:    tokens,
		logger:    log,
		now:       time.Now,
		providers: make(map[string]Provider),
		pending:   make(map[string]pendingSignIn),
		revoked:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Providers lists the registered provider names.
func (s *Service) Providers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.providers))
	for name := range s.providers {
		names = append(names, name)
	}
	return names
}

// GetSession returns the current session.
func (s *Service) GetSession(ctx context.Context) (domain.Session, bool) {
	if ctx.Err() != nil {
		return domain.Session{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session.UserID == "" || !s.session.Valid(s.now()) {
		return domain.Session{}, false
	}
	return s.session, true
}

// OnAuthStateChange registers l for every later transition. The returned func
// removes it and may be called more than once.
func (s *Service) OnAuthStateChange(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, listenerEntry{id: id, fn: l})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, entry := range s.listeners {
				if entry.id == id {
					s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// SignInWithProvider starts the OAuth handoff and returns the provider URL to redirect to.
func (s *Service) SignInWithProvider(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name = strings.ToLower(strings.TrimSpace(name))

	s.mu.Lock()
	defer s.mu.Unlock()

	provider, ok := s.providers[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", domain.ErrUnknownProvider, name)
	}

	now := s.now()
	for state, p := range s.pending {
		if !now.Before(p.expiresAt) {
			delete(s.pending, state)
		}
	}

	state := uuid.NewString()
	s.pending[state] = pendingSignIn{provider: name, expiresAt: now.Add(StateTTL)}

	return provider.AuthCodeURL(state), nil
}

// CompleteSignIn finishes the handoff started by SignInWithProvider. Each state is accepted once.
func (s *Service) CompleteSignIn(ctx context.Context, state, code string) (domain.Session, error) {
	s.mu.Lock()
	pending, ok := s.pending[state]
	delete(s.pending, state)
	provider := s.providers[pending.provider]
	s.mu.Unlock()

	if !ok || provider == nil || !s.now().Before(pending.expiresAt) {
		return domain.Session{}, domain.ErrInvalidState
	}

	id, err := provider.Exchange(ctx, code)
	if err != nil {
		return domain.Session{}, fmt.Errorf("sign-in with %s failed: %w", pending.provider, err)
	}

	session, err := s.tokens.Issue(pending.provider+":"+id.Subject, id.Email)
	if err != nil {
		return domain.Session{}, err
	}

	s.logger.Info("signed in",
		logger.String("provider", pending.provider),
		logger.UserID(session.UserID))

	s.set(session, nil)
	return session, nil
}

// Restore adopts a session token presented by a request. It reports true only when
// the token is the current session afterwards: a revoked token is refused, and so is
// any token while a different session is active.
func (s *Service) Restore(ctx context.Context, token string) (domain.Session, bool) {
	if token == "" || ctx.Err() != nil {
		return domain.Session{}, false
	}

	session, err := s.tokens.Parse(token)
	if err != nil {
		s.logger.Debug("ignoring session token", logger.Error(err))
		return domain.Session{}, false
	}

	adopted := s.set(session, func(current domain.Session) bool {
		if _, revoked := s.revoked[token]; revoked {
			return false
		}
		return current.Token == token || !current.Valid(s.now())
	})
	if !adopted {
		s.logger.Debug("session token refused", logger.UserID(session.UserID))
		return domain.Session{}, false
	}
	return session, true
}

// SignOut makes the session absent. Its token can no longer be restored.
func (s *Service) SignOut(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.set(domain.Session{}, func(current domain.Session) bool {
		if current.Token != "" {
			s.revoked[current.Token] = current.ExpiresAt
		}
		now := s.now()
		for token, exp := range s.revoked {
			if !exp.IsZero() && !now.Before(exp) {
				delete(s.revoked, token)
			}
		}
		return true
	})
	return nil
}

// Close stops the expiry timer.
func (s *Service) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
}

func (s *Service) expire(token string) {
	s.set(domain.Session{}, func(current domain.Session) bool {
		return current.Token == token
	})
}

// set replaces the session and notifies listeners when it actually changed.
// guard, if non-nil, runs under mu and must accept the current session for the
// change to apply. set reports whether next is the session on return.
func (s *Service) set(next domain.Session, guard func(domain.Session) bool) bool {
	s.transition.Lock()
	defer s.transition.Unlock()

	s.mu.Lock()
	if guard != nil && !guard(s.session) {
		s.mu.Unlock()
		return false
	}
	if s.session.UserID == next.UserID && s.session.Token == next.Token {
		s.mu.Unlock()
		return true
	}

	s.session = next
	if s.expiry != nil {
		s.expiry.Stop()
		s.expiry = nil
	}
	if next.UserID != "" && !next.ExpiresAt.IsZero() {
		token := next.Token
		s.expiry = time.AfterFunc(next.ExpiresAt.Sub(s.now()), func() { s.expire(token) })
	}
	listeners := make([]Listener, len(s.listeners))
	for i, entry := range s.listeners {
		listeners[i] = entry.fn
	}
	s.mu.Unlock()

	present := next.UserID != ""
	if present {
		s.logger.Debug("session present", logger.UserID(next.UserID))
	} else {
		s.logger.Debug("session absent")
	}

	for _, l := range listeners {
		l(next, present)
	}
	return true
}
