package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/shelf/internal/auth"
	"github.com/MrSnakeDoc/shelf/internal/bookmarks"
	"github.com/MrSnakeDoc/shelf/internal/config"
	"github.com/MrSnakeDoc/shelf/internal/httpserver"
	"github.com/MrSnakeDoc/shelf/internal/httpserver/deps"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/redis"
	"github.com/MrSnakeDoc/shelf/internal/refresh"
	"github.com/MrSnakeDoc/shelf/internal/session"
	"github.com/MrSnakeDoc/shelf/internal/store"
	"github.com/MrSnakeDoc/shelf/internal/store/memory"
	"github.com/MrSnakeDoc/shelf/internal/store/postgres"
	redisstore "github.com/MrSnakeDoc/shelf/internal/store/redis"
	"github.com/MrSnakeDoc/shelf/internal/utils"
	"github.com/MrSnakeDoc/shelf/internal/version"
	"github.com/MrSnakeDoc/shelf/internal/view"
)

// changeFeed is what both feed implementations provide.
type changeFeed interface {
	store.Feed
	store.Publisher
}

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	table       store.Table
	redisClient *goredis.Client
	auth        *auth.Service
	sessions    *session.Store
	bookmarks   *bookmarks.Client
	view        *view.View
}

// New loads the configuration and wires every component. Nothing runs until Run.
func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	loggerClient, err := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		return nil, err
	}

	secret, err := auth.DecodeSecret(cfg.SessionSecret)
	if err != nil {
		return nil, err
	}

	table, storeKind, err := openTable(ctx, cfg, loggerClient)
	if err != nil {
		return nil, err
	}

	feed, redisClient, feedKind, err := openFeed(ctx, cfg, loggerClient)
	if err != nil {
		utils.Close("bookmark table", table, loggerClient)
		return nil, err
	}

	repo := bookmarks.New(store.Notify(table, feed, loggerClient), loggerClient.Named("bookmarks"))
	repo.ListenErrors(func(err error) {
		loggerClient.Debug("error passed from the bookmark repository", logger.Error(err))
	})

	var authOpts []auth.Option
	if cfg.GoogleEnabled() {
		authOpts = append(authOpts, auth.WithProvider(auth.NewGoogle(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			UserInfoURL:  cfg.UserInfoURL,
		})))
	} else {
		loggerClient.Warn("google client not configured, sign-in disabled (cookie sessions still restore)")
	}
	authService := auth.NewService(auth.NewTokens(secret, cfg.SessionTTL), loggerClient.Named("auth"), authOpts...)

	sessions := session.New(authService, loggerClient.Named("session"))

	coordinator := refresh.New(repo, feed, loggerClient.Named("refresh"),
		refresh.WithPollInterval(cfg.PollInterval),
		refresh.WithFetchTimeout(cfg.FetchTimeout))

	v := view.New(sessions, repo, coordinator, loggerClient.Named("view"))

	var feedPinger deps.Pinger
	if redisClient != nil {
		feedPinger = redisPinger{redisClient}
	}

	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		View:         v,
		Auth:         authService,
		Store:        table,
		Feed:         feedPinger,
		StoreKind:    storeKind,
		FeedKind:     feedKind,
		CookieName:   cfg.CookieName,
		CookieSecure: cfg.CookieSecure,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg, loggerClient, d),
		table:       table,
		redisClient: redisClient,
		auth:        authService,
		sessions:    sessions,
		bookmarks:   repo,
		view:        v,
	}, nil
}

func openTable(ctx context.Context, cfg *config.Config, log logger.Logger) (store.Table, string, error) {
	if cfg.DatabaseDSN == "" {
		log.Warn("no database configured, bookmarks live in memory and are lost on restart")
		return memory.NewTable(), "memory", nil
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN, cfg.DBConnectTimeout)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize postgres store: %w", err)
	}
	log.Info("postgres store initialized")
	return db, "postgres", nil
}

func openFeed(ctx context.Context, cfg *config.Config, log logger.Logger) (changeFeed, *goredis.Client, string, error) {
	if cfg.RedisAddr == "" {
		log.Info("no redis configured, using in-process change feed")
		return memory.NewFeed(memory.DefaultFeedBuffer), nil, "memory", nil
	}

	client, err := redis.Connect(ctx, redis.OptionsFromConfig(cfg), log)
	if err != nil {
		return nil, nil, "", fmt.Errorf("failed to connect change feed: %w", err)
	}
	return redisstore.NewFeed(client, log), client, "redis", nil
}

type redisPinger struct{ client *goredis.Client }

func (p redisPinger) Ping(ctx context.Context) error { return p.client.Ping(ctx).Err() }

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting shelf v%s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Infof("shelf %s (commit=%s, built=%s, go=%s)",
		version.Version, version.Commit, version.BuildDate, version.GoVersion)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.view.Mount(ctx)
	a.logger.Info("view mounted",
		logger.Duration("poll_interval", a.cfg.PollInterval))

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	a.view.Unmount()
	a.sessions.Close()
	a.auth.Close()
	a.bookmarks.Close()

	utils.Close("bookmark table", a.table, a.logger)
	if a.redisClient != nil {
		utils.Close("redis", a.redisClient, a.logger)
	}

	if runErr == nil {
		a.logger.Info("✅ shelf stopped cleanly")
	}
	_ = a.logger.Sync()
	return runErr
}

// Migrate applies the database migrations and exits.
func Migrate(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("SHELF_DATABASE_DSN is required to migrate")
	}

	loggerClient, err := logger.New(cfg.LogLevel, cfg.PrettyLog)
	if err != nil {
		return err
	}

	db, err := postgres.New(ctx, cfg.DatabaseDSN, cfg.DBConnectTimeout)
	if err != nil {
		return err
	}
	defer utils.Close("database", db, loggerClient)

	loggerClient.Info("migrations applied")
	return nil
}
