// Package entrypoint wires configuration, storage and services into the
// running HTTP server.
package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/analytics"
	"github.com/mrlokans/readstack/internal/browse"
	"github.com/mrlokans/readstack/internal/config"
	"github.com/mrlokans/readstack/internal/database"
	"github.com/mrlokans/readstack/internal/database/books"
	"github.com/mrlokans/readstack/internal/database/quotes"
	"github.com/mrlokans/readstack/internal/database/sessions"
	http_controllers "github.com/mrlokans/readstack/internal/http"
	"github.com/mrlokans/readstack/internal/notes"
	"github.com/mrlokans/readstack/internal/openlibrary"
	"github.com/mrlokans/readstack/internal/scheduler"
	"github.com/mrlokans/readstack/internal/shelving"
	"github.com/mrlokans/readstack/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// App holds every long-lived component of a running server.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Database  *database.Database
	Catalog   *openlibrary.Client
	Shelving  *shelving.Service
	Browse    *browse.Service
	Notes     *notes.Service
	Analytics *analytics.Service

	// Tasks and Scheduler are nil when disabled.
	Tasks     *tasks.Client
	Scheduler *scheduler.CatalogRefreshScheduler
}

// NewApp opens the database and constructs every service.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewDatabase(cfg.Database.Path, logger.Named("database"))
	if err != nil {
		return nil, err
	}

	catalog := openlibrary.NewClient(cfg.Catalog)
	bookRepo := books.NewRepository(db)
	quoteRepo := quotes.NewRepository(db)
	sessionRepo := sessions.NewRepository(db)

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Database:  db,
		Catalog:   catalog,
		Shelving:  shelving.NewService(catalog, bookRepo, logger.Named("shelving"), shelving.WithGracePeriod(cfg.Shelves.GracePeriod)),
		Browse:    browse.NewService(catalog, logger.Named("browse")),
		Notes:     notes.NewService(quoteRepo, logger.Named("notes")),
		Analytics: analytics.NewService(db, bookRepo, quoteRepo, sessionRepo),
	}

	var queue tasks.Enqueuer
	if cfg.Tasks.Enabled {
		client, err := tasks.NewClient(cfg.Database.Path, tasks.ConfigFrom(cfg.Tasks), logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		client.Register(
			tasks.NewRefreshBookQueue(catalog, bookRepo, logger.Named("tasks")),
			tasks.NewRefreshAllBooksQueue(client, bookRepo, logger.Named("tasks")),
		)
		app.Tasks = client
		queue = client
	}

	if cfg.Refresh.Enabled {
		app.Scheduler = scheduler.NewCatalogRefreshScheduler(cfg.Refresh.Schedule, queue, app.Browse.Genres(), logger)
	}

	return app, nil
}

// Router builds the HTTP router over the app's services.
func (a *App) Router(version string) *gin.Engine {
	rc := http_controllers.RouterConfig{
		Database:  a.Database,
		Shelving:  a.Shelving,
		Browse:    a.Browse,
		Notes:     a.Notes,
		Analytics: a.Analytics,
		Logger:    a.Logger,
		Version:   version,
	}
	if a.Tasks != nil {
		rc.TaskQueue = a.Tasks
	}
	return http_controllers.NewRouter(rc)
}

// Start launches background workers. They stop when ctx is done or on
// Shutdown.
func (a *App) Start(ctx context.Context) error {
	if a.Tasks != nil {
		a.Tasks.Start(ctx)
	}
	if a.Scheduler != nil {
		if err := a.Scheduler.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Shutdown stops background work and closes the stores.
func (a *App) Shutdown(ctx context.Context) {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.Tasks != nil {
		if !a.Tasks.Stop(ctx) {
			a.Logger.Warn("task queue did not drain before shutdown deadline")
		}
		if err := a.Tasks.Close(); err != nil {
			a.Logger.Error("failed to close task queue", zap.Error(err))
		}
	}
	if err := a.Database.Close(); err != nil {
		a.Logger.Error("failed to close database", zap.Error(err))
	}
}

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully.
func Serve(router *gin.Engine, cfg *config.Config, logger *zap.Logger, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	logger.Info("shutting down server", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Stop accepting requests first so that streams end before the stores close.
	err := srv.Shutdown(ctx)
	if onShutdown != nil {
		onShutdown(ctx)
	}
	if err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server exiting")
	return nil
}

// Run starts the full application and blocks until it shuts down.
func Run(cfg *config.Config, logger *zap.Logger, version string) error {
	logger.Info("starting readstack", zap.String("version", version))

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		app.Shutdown(ctx)
		return err
	}

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	return Serve(app.Router(version), cfg, logger, func(ctx context.Context) {
		cancel()
		app.Shutdown(ctx)
	})
}
