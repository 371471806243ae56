// Package server wires the expensebook application together: it opens the
// database, applies migrations, builds the services and runs the HTTP server
// until the process is asked to stop.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/expensebook/expensebook/internal/logging"
	"github.com/expensebook/expensebook/internal/server/auth"
	"github.com/expensebook/expensebook/internal/server/config"
	"github.com/expensebook/expensebook/internal/server/httpapi"
	"github.com/expensebook/expensebook/internal/server/ratelimit"
	"github.com/expensebook/expensebook/internal/server/repositories/repomanager"
	"github.com/expensebook/expensebook/internal/server/services"
	"github.com/redis/go-redis/v9"
)

// Seams for tests.
var (
	openDB = func(dsn string) (*sql.DB, error) {
		return sql.Open("pgx", dsn)
	}

	newRepositoryManager = func() repomanager.RepositoryManager {
		return repomanager.NewPostgresRepositoryManager()
	}
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	redis  *redis.Client
	server *httpapi.Server
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, err := logging.New(os.Stdout, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	db, err := openDB(c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	rm := newRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	app := &App{config: c, logger: logger, db: db}

	issuer := auth.NewTokenIssuer(
		c.AccessTokenSecret, c.AccessTokenValidityDuration,
		c.RefreshTokenSecret, c.RefreshTokenValidityDuration,
	)

	opts := []services.UserServiceOption{services.WithLogger(logger.With("module", "user_service"))}
	if c.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		limiter := ratelimit.NewLoginLimiter(app.redis, c.LoginAttemptLimit, c.LoginAttemptWindow)
		opts = append(opts, services.WithLoginLimiter(limiter))
		logger.Info(ctx, "Login attempt limiting enabled", "redis", c.RedisAddr)
	}

	us := services.NewUserService(db, rm, auth.NewBcryptHasher(c.BcryptCost), issuer, opts...)
	fs := services.NewFriendService(db, rm)
	as := services.NewAvatarService(db, rm, c)

	app.server = httpapi.NewServer(c, logger, httpapi.Deps{
		Users:   us,
		Friends: fs,
		Avatars: as,
		Tokens:  issuer,
		DB:      db,
	})

	return app, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a termination signal arrives or the
// HTTP server fails.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	<-ctx.Done()
	wg.Wait()

	app.logger.Info(ctx, "App stopped")
}

// Close releases the database and Redis connections.
func (app *App) Close() error {
	var errs []error
	if app.redis != nil {
		errs = append(errs, app.redis.Close())
	}
	if app.db != nil {
		errs = append(errs, app.db.Close())
	}
	return errors.Join(errs...)
}
