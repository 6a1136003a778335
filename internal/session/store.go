// Package session mirrors the auth service's session for the rest of the
// application and fans its transitions out to subscribers.
package session

import (
	"context"
	"sync"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

// Auth is the part of the auth service the store depends on.
type Auth interface {
	GetSession(ctx context.Context) (domain.Session, bool)
	OnAuthStateChange(l auth.Listener) (unsubscribe func())
	SignInWithProvider(ctx context.Context, provider string) (string, error)
	SignOut(ctx context.Context) error
}

// Subscriber is told about every session transition.
type Subscriber func(session domain.Session, present bool)

type subscriber struct {
	id uint64
	fn Subscriber
}

type Store struct {
	auth   Auth
	logger logger.Logger

	mu      sync.Mutex
	session domain.Session
	present bool
	subs    []subscriber
	nextID  uint64

	release   func()
	closeOnce sync.Once
}

// New creates a store listening to a. Call Load to pick up an existing session.
func New(a Auth, log logger.Logger) *Store {
	s := &Store{auth: a, logger: log}
	s.release = a.OnAuthStateChange(s.apply)
	return s
}

// Load asks the auth service for the current session.
func (s *Store) Load(ctx context.Context) (domain.Session, bool) {
	session, present := s.auth.GetSession(ctx)
	s.apply(session, present)
	return session, present
}

// Current returns the last known session.
func (s *Store) Current() (domain.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.present
}

// OnChange registers fn for later transitions. unsubscribe is safe to call more than once.
func (s *Store) OnChange(fn Subscriber) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// SignIn starts the provider handoff. The session itself arrives through OnChange.
func (s *Store) SignIn(ctx context.Context, provider string) (string, error) {
	return s.auth.SignInWithProvider(ctx, provider)
}

// SignOut ends the session. Completion is observed through OnChange.
func (s *Store) SignOut(ctx context.Context) error {
	return s.auth.SignOut(ctx)
}

// Close stops listening to the auth service.
func (s *Store) Close() {
	s.closeOnce.Do(func() {
		if s.release != nil {
			s.release()
		}
	})
}

func (s *Store) apply(session domain.Session, present bool) {
	if !present {
		session = domain.Session{}
	}

	s.mu.Lock()
	if s.present == present && s.session.UserID == session.UserID && s.session.Token == session.Token {
		s.mu.Unlock()
		return
	}
	s.session, s.present = session, present
	subs := make([]Subscriber, len(s.subs))
	for i, sub := range s.subs {
		subs[i] = sub.fn
	}
	s.mu.Unlock()

	s.logger.Debug("session changed",
		logger.Bool("present", present),
		logger.UserID(session.UserID))

	for _, fn := range subs {
		fn(session, present)
	}
}
