// Package server wires the submission backend together: the Postgres store,
// object storage, the submission service and the HTTP API, and runs it until
// the process is signalled.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophsubmit/internal/filex"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
	"github.com/dmitrijs2005/gophsubmit/internal/server/config"
	"github.com/dmitrijs2005/gophsubmit/internal/server/httpapi"
	"github.com/dmitrijs2005/gophsubmit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsubmit/internal/server/services"
	"github.com/dmitrijs2005/gophsubmit/internal/server/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

// Test seams.
var (
	openDatabase = repomanager.OpenDatabase

	newObjectStore = func(ctx context.Context, c *config.Config) (services.ObjectStore, error) {
		return storage.NewS3Storage(ctx, c)
	}
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	registry *prometheus.Registry
	service  *services.SubmissionService
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	logger := logging.New(os.Stdout, "json", c.LogLevel)

	spool, err := filex.EnsureSubdDir(c.SpoolDir)
	if err != nil {
		return nil, fmt.Errorf("spool dir error: %w", err)
	}
	c.SpoolDir = spool

	rm := repomanager.NewPostgresRepositoryManager()
	db, err := openDatabase(ctx, c.DatabaseDSN, rm)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	store, err := newObjectStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := services.NewSubmissionService(db, rm, store, c, reg)

	return &App{config: c, logger: logger, db: db, registry: reg, service: svc}, nil
}

func (app *App) initSignalHandler(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
}

// Run serves the API until ctx is cancelled or a termination signal arrives.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := app.initSignalHandler(ctx)
	defer cancelFunc()

	defer func() {
		if err := app.db.Close(); err != nil {
			app.logger.Error(context.Background(), "db close error", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting app...")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s := httpapi.NewHTTPServer(app.config.HTTPAddr, app.logger, app.service, app.registry)
		return s.Run(ctx)
	})

	if err := g.Wait(); err != nil {
		app.logger.Error(ctx, "server stopped", "error", err)
		return err
	}

	app.logger.Info(ctx, "Stopped")
	return nil
}
