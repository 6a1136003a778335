package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
)

type fakeProvider struct {
	name string
	id   Identity
	err  error
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) AuthCodeURL(state string) string {
	return "https://idp.domain.ext/authorize?state=" + url.QueryEscape(state)
}

func (p *fakeProvider) Exchange(context.Context, string) (Identity, error) {
	return p.id, p.err
}

type transitions struct {
	mu     sync.Mutex
	events []bool
	users  []string
}

func (tr *transitions) listen(s domain.Session, present bool) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.events = append(tr.events, present)
	tr.users = append(tr.users, s.UserID)
}

func (tr *transitions) snapshot() []bool {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]bool(nil), tr.events...)
}

func newTestService(t *testing.T, p Provider, ttl time.Duration) *Service {
	t.Helper()
	svc := NewService(NewTokens(testSecret, ttl), logger.Nop(), WithProvider(p))
	t.Cleanup(svc.Close)
	return svc
}

func stateOf(t *testing.T, redirect string) string {
	t.Helper()
	u, err := url.Parse(redirect)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestSignInFlow(t *testing.T) {
	svc := newTestService(t, &fakeProvider{name: "Google", id: Identity{Subject: "42", Email: "me@domain.ext"}}, time.Hour)
	ctx := context.Background()

	var tr transitions
	svc.OnAuthStateChange(tr.listen)

	_, ok := svc.GetSession(ctx)
	assert.False(t, ok)

	redirect, err := svc.SignInWithProvider(ctx, "GOOGLE")
	require.NoError(t, err)
	state := stateOf(t, redirect)
	require.NotEmpty(t, state)

	session, err := svc.CompleteSignIn(ctx, state, "code")
	require.NoError(t, err)
	assert.Equal(t, "google:42", session.UserID)

	current, ok := svc.GetSession(ctx)
	require.True(t, ok)
	assert.Equal(t, session.Token, current.Token)
	assert.Equal(t, []bool{true}, tr.snapshot())

	// state is single use
	_, err = svc.CompleteSignIn(ctx, state, "code")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	require.NoError(t, svc.SignOut(ctx))
	_, ok = svc.GetSession(ctx)
	assert.False(t, ok)
	assert.Equal(t, []bool{true, false}, tr.snapshot())

	// signing out twice does not notify again
	require.NoError(t, svc.SignOut(ctx))
	assert.Equal(t, []bool{true, false}, tr.snapshot())
}

func TestSignInUnknownProvider(t *testing.T) {
	svc := newTestService(t, &fakeProvider{name: "google"}, time.Hour)
	_, err := svc.SignInWithProvider(context.Background(), "github")
	assert.ErrorIs(t, err, domain.ErrUnknownProvider)
}

func TestCompleteSignInFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown state", func(t *testing.T) {
		svc := newTestService(t, &fakeProvider{name: "google", id: Identity{Subject: "1"}}, time.Hour)
		_, err := svc.CompleteSignIn(ctx, "forged", "code")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("expired state", func(t *testing.T) {
		now := time.Now()
		svc := NewService(NewTokens(testSecret, time.Hour), logger.Nop(),
			WithProvider(&fakeProvider{name: "google", id: Identity{Subject: "1"}}),
			WithClock(func() time.Time { return now }))
		t.Cleanup(svc.Close)

		redirect, err := svc.SignInWithProvider(ctx, "google")
		require.NoError(t, err)

		now = now.Add(StateTTL + time.Second)
		_, err = svc.CompleteSignIn(ctx, stateOf(t, redirect), "code")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("exchange error keeps session absent", func(t *testing.T) {
		svc := newTestService(t, &fakeProvider{name: "google", err: errors.New("denied")}, time.Hour)
		var tr transitions
		svc.OnAuthStateChange(tr.listen)

		redirect, err := svc.SignInWithProvider(ctx, "google")
		require.NoError(t, err)
		_, err = svc.CompleteSignIn(ctx, stateOf(t, redirect), "code")
		assert.Error(t, err)

		_, ok := svc.GetSession(ctx)
		assert.False(t, ok)
		assert.Empty(t, tr.snapshot())
	})
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeProvider{name: "google"}, time.Hour)

	issued, err := svc.tokens.Issue("google:7", "")
	require.NoError(t, err)

	var tr transitions
	svc.OnAuthStateChange(tr.listen)

	_, ok := svc.Restore(ctx, "garbage")
	assert.False(t, ok)

	session, ok := svc.Restore(ctx, issued.Token)
	require.True(t, ok)
	assert.Equal(t, "google:7", session.UserID)

	// same token again is not a transition
	_, ok = svc.Restore(ctx, issued.Token)
	assert.True(t, ok)
	assert.Equal(t, []bool{true}, tr.snapshot())

	require.NoError(t, svc.SignOut(ctx))
	_, ok = svc.Restore(ctx, issued.Token)
	assert.False(t, ok, "a signed-out token must not come back")
}

func TestRestoreKeepsActiveSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeProvider{name: "google"}, time.Hour)

	owner, err := svc.tokens.Issue("google:1001", "")
	require.NoError(t, err)
	other, err := svc.tokens.Issue("google:2002", "")
	require.NoError(t, err)

	_, ok := svc.Restore(ctx, owner.Token)
	require.True(t, ok)

	var tr transitions
	svc.OnAuthStateChange(tr.listen)

	_, ok = svc.Restore(ctx, other.Token)
	assert.False(t, ok, "a second valid token must not replace the active session")

	current, ok := svc.GetSession(ctx)
	require.True(t, ok)
	assert.Equal(t, "google:1001", current.UserID)
	assert.Empty(t, tr.snapshot())

	require.NoError(t, svc.SignOut(ctx))
	session, ok := svc.Restore(ctx, other.Token)
	require.True(t, ok, "once the session is gone another token may be adopted")
	assert.Equal(t, "google:2002", session.UserID)
}

func TestRestoreRacingSignOut(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &fakeProvider{name: "google"}, time.Hour)

	for i := 0; i < 200; i++ {
		issued, err := svc.tokens.Issue(fmt.Sprintf("google:%d", i), "")
		require.NoError(t, err)
		_, ok := svc.Restore(ctx, issued.Token)
		require.True(t, ok)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			assert.NoError(t, svc.SignOut(ctx))
		}()
		go func() {
			defer wg.Done()
			svc.Restore(ctx, issued.Token)
		}()
		wg.Wait()

		_, present := svc.GetSession(ctx)
		require.False(t, present, "iteration %d: signed-out token came back", i)
	}
}

func TestSessionExpires(t *testing.T) {
	svc := newTestService(t, &fakeProvider{name: "google"}, time.Second)

	issued, err := svc.tokens.Issue("google:9", "")
	require.NoError(t, err)

	absent := make(chan struct{})
	svc.OnAuthStateChange(func(_ domain.Session, present bool) {
		if !present {
			close(absent)
		}
	})

	_, ok := svc.Restore(context.Background(), issued.Token)
	require.True(t, ok)

	select {
	case <-absent:
	case <-time.After(3 * time.Second):
		t.Fatal("session did not expire")
	}
	_, ok = svc.GetSession(context.Background())
	assert.False(t, ok)
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	svc := newTestService(t, &fakeProvider{name: "google"}, time.Hour)
	ctx := context.Background()

	var first, second transitions
	unsubscribe := svc.OnAuthStateChange(first.listen)
	svc.OnAuthStateChange(second.listen)

	unsubscribe()
	unsubscribe()

	issued, err := svc.tokens.Issue("u", "")
	require.NoError(t, err)
	svc.Restore(ctx, issued.Token)

	assert.Empty(t, first.snapshot())
	assert.Equal(t, []bool{true}, second.snapshot())
}
