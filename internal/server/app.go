// Package server wires the application together: database, repositories,
// brute-force guard, event publisher, managers and the HTTP endpoint, plus
// graceful shutdown on OS signals.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/kpawlak/taskgrid/internal/logging"
	"github.com/kpawlak/taskgrid/internal/server/bruteforce"
	"github.com/kpawlak/taskgrid/internal/server/config"
	"github.com/kpawlak/taskgrid/internal/server/events"
	"github.com/kpawlak/taskgrid/internal/server/messages"
	"github.com/kpawlak/taskgrid/internal/server/repositories/repomanager"
	"github.com/kpawlak/taskgrid/internal/server/security"
	"github.com/kpawlak/taskgrid/internal/server/session"
	transport "github.com/kpawlak/taskgrid/internal/server/transport/http"
)

// shutdownTimeout bounds how long in-flight requests may run after a
// termination signal.
const shutdownTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger logging.Logger
}

func NewApp(cfg *config.Config) *App {
	l := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	return &App{
		config: cfg,
		logger: logging.NewSlogLogger(l),
	}
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

// attemptStore picks where failed-login counters live: redis when an
// address is configured (so every instance sees the same lockout state),
// process memory otherwise.
func (app *App) attemptStore() bruteforce.AttemptStore {
	if app.config.RedisAddr == "" {
		return bruteforce.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
	return bruteforce.NewRedisStore(client, app.config.LoginLockoutWindow)
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting server",
		"addr", app.config.EndpointAddrHTTP, "task_mode", app.config.TaskMode)

	app.initSignalHandler(cancelFunc)

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("db init error: %w", err)
	}
	defer db.Close()

	rm, err := repomanager.NewPostgresRepositoryManager()
	if err != nil {
		return fmt.Errorf("repository init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	guard := bruteforce.NewGuard(app.attemptStore(),
		app.config.LoginAttemptLimit, app.config.LoginLockoutWindow)

	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	defer pubSub.Close()
	publisher := events.NewWatermillPublisher(pubSub)

	sec := security.NewManager(db, rm, app.config, guard, publisher, app.logger)
	sessions := session.NewManager(db, rm, app.config.TaskMode, app.logger)
	inbox := messages.NewManager(sec, app.logger)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: transport.SetupRouter(sec, sessions, inbox, app.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	return nil
}
