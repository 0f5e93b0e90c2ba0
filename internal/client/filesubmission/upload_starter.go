package filesubmission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophsubmit/internal/client/client"
	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/client/transport"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
)

// UploadStarter starts uploads for the items of a submission that have a
// target and were neither started nor finished.
type UploadStarter struct {
	db      *sql.DB
	api     client.Client
	session *transport.Session
	cache   *ObserverCache
	logger  logging.Logger
	metrics *Metrics
}

func NewUploadStarter(db *sql.DB, api client.Client, session *transport.Session, cache *ObserverCache, logger logging.Logger, m *Metrics) *UploadStarter {
	return &UploadStarter{
		db:      db,
		api:     api,
		session: session,
		cache:   cache,
		logger:  logger.With("module", "upload_starter"),
		metrics: m,
	}
}

// Start returns once every eligible upload has been started; it reports how
// many were. Items that were already started or finished are skipped, so
// calling Start twice never duplicates an upload.
func (s *UploadStarter) Start(ctx context.Context, submissionID string) (int, error) {
	items := files.NewSQLiteRepository(s.db)

	list, err := items.ListBySubmission(ctx, submissionID)
	if err != nil {
		return 0, err
	}

	started := 0
	for _, item := range list {
		if !item.IsReadyToUpload() {
			continue
		}

		ok, err := s.startOne(ctx, items, item)
		if err != nil {
			return started, err
		}
		if ok {
			started++
		}
	}
	return started, nil
}

func (s *UploadStarter) startOne(ctx context.Context, items *files.SQLiteRepository, item *models.FileItem) (bool, error) {
	req, err := s.api.NewUploadRequest(ctx, *item.Target, item.LocalPath)
	if err != nil {
		// the file cannot be read, so the upload is over before it began
		s.logger.Warn(ctx, "cannot build upload request", "item_id", item.ID, "path", item.LocalPath, "error", err)
		s.cache.Observer(item.ID, item.SubmissionID).OnComplete(fmt.Errorf("read %s: %w", item.FileName, err))
		return false, nil
	}

	task, err := s.session.NewUploadTask(req, item.ID)
	if err != nil {
		return false, err
	}

	ok, err := items.MarkStarted(ctx, item.ID, task.ID)
	if err != nil || !ok {
		task.Discard()
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	s.cache.Observer(item.ID, item.SubmissionID)
	if s.metrics != nil {
		s.metrics.UploadsStarted.Inc()
	}
	task.Resume()

	s.logger.Debug(ctx, "upload started", "item_id", item.ID, "task_id", task.ID, "bytes", req.ContentLength)
	return true, nil
}
