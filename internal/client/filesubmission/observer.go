package filesubmission

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"github.com/dmitrijs2005/gophsubmit/internal/client/client"
	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/client/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
)

// Completion is what an Observer reports once its upload is over.
type Completion struct {
	SubmissionID string
	ItemID       string

	// APIID is the remote file id of a successful upload.
	APIID string

	// Err is nil on success, an *UploadError when the upload failed, or
	// ErrItemNotFound when the item record no longer exists.
	Err error
}

// Observer tracks one file item's upload and writes it into the store. It
// implements transport.Delegate.
type Observer struct {
	itemID       string
	submissionID string

	db      *sql.DB
	logger  logging.Logger
	metrics *Metrics
	events  *broadcaster

	mu        sync.Mutex
	body      []byte
	apiID     string
	done      bool
	listeners []func(Completion)
}

func newObserver(itemID, submissionID string, db *sql.DB, logger logging.Logger, m *Metrics, events *broadcaster) *Observer {
	return &Observer{
		itemID:       itemID,
		submissionID: submissionID,
		db:           db,
		logger:       logger.With("item_id", itemID, "submission_id", submissionID),
		metrics:      m,
		events:       events,
	}
}

func (o *Observer) ItemID() string {
	return o.itemID
}

func (o *Observer) SubmissionID() string {
	return o.submissionID
}

// OnFinished registers fn to run once when the observer completes. It
// reports false, dropping fn, if the observer has already completed.
func (o *Observer) OnFinished(fn func(Completion)) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done {
		return false
	}
	o.listeners = append(o.listeners, fn)
	return true
}

func (o *Observer) OnProgress(sent, totalSent, totalExpected int64) {
	ctx := context.Background()

	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}

	if totalExpected < 0 {
		totalExpected = 0
	}
	err := files.NewSQLiteRepository(o.db).UpdateProgress(ctx, o.itemID, totalSent, totalExpected)
	if errors.Is(err, models.ErrNotFound) {
		o.finishLocked(Completion{Err: ErrItemNotFound})
		return
	}
	o.mu.Unlock()

	if err != nil {
		o.logger.Warn(ctx, "failed to persist upload progress", "error", err)
		return
	}
	if o.metrics != nil && sent > 0 {
		o.metrics.BytesUploaded.Add(float64(sent))
	}
	o.events.emit(Event{
		Kind:          EventItemProgress,
		SubmissionID:  o.submissionID,
		ItemID:        o.itemID,
		BytesUploaded: totalSent,
		BytesToUpload: totalExpected,
	})
}

// OnBodyReceived accumulates the response and keeps the file id as soon as
// the body decodes.
func (o *Observer) OnBodyReceived(data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.done || o.apiID != "" {
		return
	}
	o.body = append(o.body, data...)
	if id, err := client.DecodeFileID(o.body); err == nil {
		o.apiID = id
		o.body = nil
	}
}

// OnComplete stores the upload result. A file id received in the body wins
// over err. Calls after the first are ignored.
func (o *Observer) OnComplete(err error) {
	ctx := context.Background()

	o.mu.Lock()
	if o.done {
		o.mu.Unlock()
		return
	}

	items := files.NewSQLiteRepository(o.db)
	var (
		c        Completion
		storeErr error
	)
	if o.apiID != "" {
		c.APIID = o.apiID
		_, storeErr = items.SetSucceeded(ctx, o.itemID, o.apiID)
	} else {
		reason := unknownUploadFailure
		if err != nil {
			reason = err.Error()
		}
		c.Err = &UploadError{Reason: reason}
		_, storeErr = items.SetFailed(ctx, o.itemID, reason)
	}

	switch {
	case errors.Is(storeErr, models.ErrNotFound):
		c = Completion{Err: ErrItemNotFound}
	case storeErr != nil:
		// the result stays unwritten; Resume marks the item interrupted
		o.logger.Error(ctx, "failed to persist upload result", "error", storeErr)
	}

	o.finishLocked(c)
}

// finishLocked marks the observer done, releases o.mu and notifies listeners.
func (o *Observer) finishLocked(c Completion) {
	c.SubmissionID = o.submissionID
	c.ItemID = o.itemID

	o.done = true
	o.body = nil
	listeners := o.listeners
	o.listeners = nil
	o.mu.Unlock()

	result := resultSucceeded
	switch {
	case errors.Is(c.Err, ErrItemNotFound):
		result = resultNotFound
		o.logger.Info(context.Background(), "upload item disappeared")
	case c.Err != nil:
		result = resultFailed
		o.logger.Info(context.Background(), "upload failed", "error", c.Err)
	default:
		o.logger.Info(context.Background(), "upload finished", "api_id", c.APIID)
	}
	if o.metrics != nil {
		o.metrics.UploadsFinished.WithLabelValues(result).Inc()
	}

	o.events.emit(Event{
		Kind:         EventItemFinished,
		SubmissionID: o.submissionID,
		ItemID:       o.itemID,
		APIID:        c.APIID,
		Err:          c.Err,
	})

	for _, fn := range listeners {
		fn(c)
	}
}
