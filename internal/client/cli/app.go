package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/client"
	"github.com/dmitrijs2005/gophsubmit/internal/client/config"
	"github.com/dmitrijs2005/gophsubmit/internal/client/filesubmission"
	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
)

// closeTimeout bounds how long Close waits for running uploads to stop.
const closeTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	db       *sql.DB
	pipeline *filesubmission.Assembly
	composer *filesubmission.Composer
	logger   logging.Logger
	out      io.Writer
}

// NewApp opens the local store, builds the pipeline and resumes work left
// over from a previous run.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.New(os.Stderr, "text", c.LogLevel)

	db, err := client.InitDatabase(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	api := client.NewHTTPClient(c.APIBaseURL, c.AccessToken, c.RequestTimeout)

	app, err := newApp(ctx, c, db, api, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return app, nil
}

func newApp(ctx context.Context, c *config.Config, db *sql.DB, api client.Client, logger logging.Logger) (*App, error) {
	asm, err := filesubmission.New(ctx, filesubmission.Options{
		DB:                   db,
		API:                  api,
		MaxConcurrentUploads: c.MaxConcurrentUploads,
		Logger:               logger,
	})
	if err != nil {
		return nil, err
	}

	if err := asm.Resume(ctx); err != nil {
		logger.Warn(ctx, "resume interrupted submissions", "error", err)
	}

	return &App{
		config:   c,
		db:       db,
		pipeline: asm,
		composer: asm.Composer(),
		logger:   logger,
		out:      os.Stdout,
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.Root(ctx)
}

// Close stops running uploads and closes the store.
func (a *App) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := a.pipeline.Close(ctx); err != nil {
		a.logger.Warn(ctx, "close pipeline", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn(ctx, "close database", "error", err)
	}
}

// getStatus returns the prompt status: the number of submissions still in
// progress, or an empty string when there are none.
func (a *App) getStatus() string {
	list, err := a.composer.List(context.Background())
	if err != nil {
		return ""
	}
	active := 0
	for _, s := range list {
		if !s.State.IsTerminal() && s.State != models.StatePendingTargets {
			active++
		}
	}
	if active == 0 {
		return ""
	}
	return fmt.Sprintf("(%d active)", active)
}
