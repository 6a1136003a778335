package deps

import (
	"context"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/domain"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/refresh"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

// View is the presentation layer driven by the API handlers.
type View interface {
	State() view.State
	SignIn(ctx context.Context, provider string) (string, error)
	SignOut(ctx context.Context) view.State
	Add(ctx context.Context, title, url string) view.State
	BeginEdit(id string) view.State
	UpdateEdit(title, url *string) view.State
	SaveEdit(ctx context.Context, id string) view.State
	CancelEdit() view.State
	Delete(ctx context.Context, id string) view.State
	Refresh() error
	Stats() refresh.Stats
}

// Auth completes sign-in handoffs and restores sessions from cookies.
type Auth interface {
	CompleteSignIn(ctx context.Context, state, code string) (domain.Session, error)
	Restore(ctx context.Context, token string) (domain.Session, bool)
	Providers() []string
}

// Pinger is anything /readyz and /infra can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed to access the server
	AllowedCIDRS []string         // IPs allowed to access healthz/readyz/infra endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)

	View  View
	Auth  Auth
	Store Pinger // bookmark table
	Feed  Pinger // change feed, nil for the in-process feed

	StoreKind string // "postgres" | "memory"
	FeedKind  string // "redis" | "memory"

	CookieName   string
	CookieSecure bool
}
