// Package server initializes and runs the document gateway: database and
// migrations, storage backends, services, the HTTP endpoint, and graceful
// shutdown.
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
	"sync"
	"syscall"
	"time"

	"github.com/propertyhub/docgate/internal/logging"
	"github.com/propertyhub/docgate/internal/server/auth"
	"github.com/propertyhub/docgate/internal/server/config"
	"github.com/propertyhub/docgate/internal/server/documents"
	"github.com/propertyhub/docgate/internal/server/httpapi"
	"github.com/propertyhub/docgate/internal/server/repositories/repomanager"
	"github.com/propertyhub/docgate/internal/server/storage"
)

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Hour
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	authSvc *auth.Service
	handler http.Handler
}

func NewApp(cfg *config.Config) (*App, error) {
	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	local, err := storage.NewLocalBackend(cfg.UploadsRoot)
	if err != nil {
		return nil, fmt.Errorf("local storage init error: %w", err)
	}

	var remote storage.RemoteBackend
	if cfg.RemoteConfigured() {
		remote = storage.NewS3Backend(cfg)
	}

	router := storage.NewRouter(remote, local, cfg.RemoteAttempts, cfg.RemoteTimeout, logger)
	streamer := storage.NewStreamer(remote, local, cfg.RemoteTimeout)

	authSvc, err := auth.NewService(db, rm, cfg)
	if err != nil {
		return nil, fmt.Errorf("auth init error: %w", err)
	}
	docsSvc := documents.NewService(db, rm, router, streamer, cfg, logger)

	handler := httpapi.NewRouter(httpapi.NewHandler(authSvc, docsSvc, cfg, logger))

	return &App{
		config:  cfg,
		logger:  logger,
		db:      db,
		authSvc: authSvc,
		handler: handler,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:    app.config.EndpointAddr,
		Handler: app.handler,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err.Error())
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, "http server error", "error", err.Error())
		cancelFunc()
	}
}

// startSessionSweeper periodically removes expired sessions so the table
// does not grow without bound.
func (app *App) startSessionSweeper(ctx context.Context) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.authSvc.SweepExpired(ctx)
			if err != nil {
				app.logger.Warn(ctx, "session sweep failed", "error", err.Error())
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "expired sessions removed", "count", n)
			}
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting app")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startSessionSweeper(ctx)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err.Error())
	}
}
