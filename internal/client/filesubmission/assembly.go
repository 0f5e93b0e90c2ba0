package filesubmission

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/gophsubmit/internal/client/client"
	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/submissions"
	"github.com/dmitrijs2005/gophsubmit/internal/client/transport"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

const (
	interruptedUpload = "upload interrupted"
	interruptedSubmit = "interrupted before confirmation"

	// resumeParallelism bounds concurrent submissions handled by Resume.
	resumeParallelism = 4
)

type Options struct {
	DB  *sql.DB
	API client.Client

	// HTTPClient runs the uploads; nil means a default client.
	HTTPClient           *http.Client
	MaxConcurrentUploads int64

	Logger     logging.Logger
	Registerer prometheus.Registerer
}

// Assembly wires the pipeline together and owns the transport session and
// the observer cache.
type Assembly struct {
	db     *sql.DB
	logger logging.Logger

	session   *transport.Session
	cache     *ObserverCache
	targets   *TargetsRequester
	starter   *UploadStarter
	submitter *Submitter
	composer  *Composer
	metrics   *Metrics
	events    *broadcaster

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New builds the pipeline. The transport session id is kept in the metadata
// table, so the same id is used across restarts.
func New(ctx context.Context, opts Options) (*Assembly, error) {
	if opts.DB == nil || opts.API == nil {
		return nil, errors.New("filesubmission: DB and API are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	logger = logger.With("module", "filesubmission")

	sessionID, err := metadata.NewSQLiteRepository(opts.DB).GetOrCreate(ctx, metadata.KeySessionID, func() []byte {
		return []byte(uuid.NewString())
	})
	if err != nil {
		return nil, fmt.Errorf("load session id: %w", err)
	}

	a := &Assembly{
		db:       opts.DB,
		logger:   logger,
		metrics:  NewMetrics(opts.Registerer),
		events:   newBroadcaster(),
		composer: NewComposer(opts.DB),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())

	a.cache = NewObserverCache(func(itemID, submissionID string) *Observer {
		return newObserver(itemID, submissionID, a.db, a.logger, a.metrics, a.events)
	}, a.uploadFinished)

	a.session = transport.NewSession(transport.Config{
		ID:            string(sessionID),
		MaxConcurrent: opts.MaxConcurrentUploads,
		HTTPClient:    opts.HTTPClient,
	}, func(desc string) transport.Delegate {
		if o := a.cache.Lookup(desc); o != nil {
			return o
		}
		return nil
	}, logger)

	a.targets = NewTargetsRequester(opts.DB, opts.API, logger)
	a.starter = NewUploadStarter(opts.DB, opts.API, a.session, a.cache, logger, a.metrics)
	a.submitter = NewSubmitter(opts.DB, opts.API, logger, a.metrics, a.events)

	return a, nil
}

func (a *Assembly) Composer() *Composer {
	return a.composer
}

func (a *Assembly) SessionID() string {
	return a.session.ID()
}

// Subscribe registers fn for pipeline events until cancel is called. fn runs
// on pipeline goroutines and must not block.
func (a *Assembly) Subscribe(fn func(Event)) (cancel func()) {
	return a.events.subscribe(fn)
}

// Start runs the submission in the background. Results are observed through
// the store or Subscribe.
func (a *Assembly) Start(submissionID string) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.Run(a.ctx, submissionID); err != nil {
			a.logger.Warn(a.ctx, "submission start failed", "submission_id", submissionID, "error", err)
		}
	}()
}

// Run fetches targets and starts the uploads of a submission. It returns once
// the uploads are started; a submission without files is submitted before
// Run returns. Running an uploading submission again only starts items
// that were not started yet.
func (a *Assembly) Run(ctx context.Context, submissionID string) error {
	repo := submissions.NewSQLiteRepository(a.db)

	for {
		s, err := repo.GetByID(ctx, submissionID)
		if err != nil {
			return err
		}

		switch s.State {
		case models.StateUploading:
			_, err := a.starter.Start(ctx, submissionID)
			return err
		case models.StatePendingTargets:
		default:
			return fmt.Errorf("%w: submission %s is %s", ErrInvalidState, submissionID, s.State)
		}

		if len(s.Items) == 0 {
			won, err := repo.TriggerSubmit(ctx, submissionID)
			if err != nil || !won {
				return err
			}
			return a.submitter.Submit(ctx, submissionID)
		}

		if err := a.targets.Request(ctx, submissionID); err != nil {
			if errors.Is(err, ErrTargetsUnavailable) {
				a.fail(ctx, submissionID, err, models.StatePendingTargets)
			}
			return err
		}

		moved, err := a.beginUploading(ctx, submissionID)
		if err != nil {
			return err
		}
		if moved {
			_, err = a.starter.Start(ctx, submissionID)
			return err
		}
	}
}

// beginUploading moves a pending submission to uploading when every item
// has a target. It reports false when items were added or all were removed
// during the targets request, or when the state changed meanwhile.
func (a *Assembly) beginUploading(ctx context.Context, submissionID string) (bool, error) {
	var moved bool
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := submissions.NewSQLiteRepository(tx)
		s, err := repo.GetByID(ctx, submissionID)
		if err != nil {
			return err
		}
		if s.State != models.StatePendingTargets || len(s.Items) == 0 {
			return nil
		}
		for _, item := range s.Items {
			if item.Target == nil && !item.IsFinished() {
				return nil
			}
		}
		moved, err = repo.Transition(ctx, submissionID, models.StateUploading, "", models.StatePendingTargets)
		return err
	})
	return moved, err
}

// uploadFinished is the completion handler of every observer.
func (a *Assembly) uploadFinished(c Completion) {
	if err := a.completeIfFinished(a.ctx, c.SubmissionID); err != nil && !errors.Is(err, models.ErrNotFound) {
		a.logger.Warn(a.ctx, "completion handling failed", "submission_id", c.SubmissionID, "error", err)
	}
}

// completeIfFinished runs the all-finished check and the submit trigger in
// one transaction and submits when this caller won the trigger.
func (a *Assembly) completeIfFinished(ctx context.Context, submissionID string) error {
	var (
		won   bool
		empty bool
	)
	err := dbx.WithTx(ctx, a.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := submissions.NewSQLiteRepository(tx)
		s, err := repo.GetByID(ctx, submissionID)
		if err != nil {
			return err
		}
		if s.State != models.StateUploading {
			return nil
		}
		if len(s.Items) == 0 {
			// every item was removed while uploading
			empty = true
			return nil
		}

		all, err := AllFinished(ctx, tx, submissionID)
		if err != nil || !all {
			return err
		}
		won, err = repo.TriggerSubmit(ctx, submissionID)
		return err
	})
	if err != nil {
		return err
	}

	if empty {
		a.fail(ctx, submissionID, fmt.Errorf("%w: all files were removed", ErrIncompleteUpload), models.StateUploading)
		return nil
	}
	if !won {
		return nil
	}
	err = a.submitter.Submit(ctx, submissionID)
	if errors.Is(err, ErrIncompleteUpload) || errors.Is(err, ErrSubmitFailed) {
		// recorded on the submission
		return nil
	}
	return err
}

// fail moves the submission to failed from one of the given states.
func (a *Assembly) fail(ctx context.Context, submissionID string, cause error, from ...models.SubmissionState) {
	ok, err := submissions.NewSQLiteRepository(a.db).Transition(ctx, submissionID, models.StateFailed, cause.Error(), from...)
	if err != nil {
		a.logger.Error(ctx, "failed to mark submission failed", "submission_id", submissionID, "error", err)
		return
	}
	if ok {
		a.logger.Warn(ctx, "submission failed", "submission_id", submissionID, "error", cause)
		a.submitter.finished(submissionID, models.StateFailed, cause)
	}
}

// Resume recovers after a restart. Uploads of a previous process cannot be
// re-attached: their items are marked failed. Submissions left in
// submitting are failed because the outcome of their submit call is
// unknown. Uploading submissions then get their remaining uploads started
// and are completed if everything has finished.
func (a *Assembly) Resume(ctx context.Context) error {
	repo := submissions.NewSQLiteRepository(a.db)

	stuck, err := repo.ListByState(ctx, models.StateSubmitting)
	if err != nil {
		return err
	}
	for _, s := range stuck {
		a.fail(ctx, s.ID, fmt.Errorf("%w: %s", ErrSubmitFailed, interruptedSubmit), models.StateSubmitting)
	}

	items := files.NewSQLiteRepository(a.db)
	interrupted, err := items.ListInterrupted(ctx)
	if err != nil {
		return err
	}
	for _, item := range interrupted {
		if a.cache.Lookup(item.ID) != nil {
			// uploaded by this process
			continue
		}
		if _, err := items.SetFailed(ctx, item.ID, interruptedUpload); err != nil {
			return err
		}
		a.logger.Info(ctx, "upload interrupted by restart", "item_id", item.ID, "submission_id", item.SubmissionID)
	}

	uploading, err := repo.ListByState(ctx, models.StateUploading)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(resumeParallelism)
	for _, s := range uploading {
		g.Go(func() error {
			if _, err := a.starter.Start(gctx, s.ID); err != nil {
				return fmt.Errorf("resume %s: %w", s.ID, err)
			}
			if err := a.completeIfFinished(gctx, s.ID); err != nil && !errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("resume %s: %w", s.ID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// Delete removes a submission and cancels its running uploads.
func (a *Assembly) Delete(ctx context.Context, submissionID string) error {
	taskIDs, err := a.composer.DeleteSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	for _, id := range taskIDs {
		a.session.Cancel(id)
	}
	return nil
}

// Wait blocks until background Start calls have returned. Uploads they
// started may still be running.
func (a *Assembly) Wait() {
	a.wg.Wait()
}

// Close cancels running uploads, waits for their completion handlers and
// stops background work.
func (a *Assembly) Close(ctx context.Context) error {
	a.wg.Wait()
	err := a.session.Close(ctx)
	a.cancel()
	return err
}
