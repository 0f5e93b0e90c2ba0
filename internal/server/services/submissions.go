// Package services holds the backend use cases behind the HTTP API: handing
// out upload targets, accepting file content and creating submissions.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/cryptox"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/dmitrijs2005/gophsubmit/internal/filex"
	"github.com/dmitrijs2005/gophsubmit/internal/server/auth"
	sc "github.com/dmitrijs2005/gophsubmit/internal/server/config"
	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
	"github.com/dmitrijs2005/gophsubmit/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophsubmit/internal/server/storage"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrValidation marks requests that are malformed or reference files that
	// cannot be used.
	ErrValidation = errors.New("validation failed")
	// ErrTooLarge is returned for files above the configured maximum size.
	ErrTooLarge = errors.New("file too large")
	// ErrSizeMismatch is returned when uploaded content is shorter than the
	// declared size.
	ErrSizeMismatch = errors.New("content size does not match declared size")
)

// Test seams.
var (
	newFileID     = uuid.NewString
	newStorageKey = storage.NewStorageKey
	nowFn         = time.Now
)

// ObjectStore keeps uploaded content.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64, contentType string) error
	PresignGet(ctx context.Context, key string) (string, error)
}

// FileRequest is one file a client wants to upload.
type FileRequest struct {
	// ID is the client's identifier; targets are keyed by it.
	ID   string
	Name string
	Size int64
}

// UploadTarget tells the client where and how to upload one file.
type UploadTarget struct {
	URL    string
	Params map[string]string
}

// FileInfo is a file with a temporary download link.
type FileInfo struct {
	*models.File
	DownloadURL string
}

type SubmissionService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	config      *sc.Config
	metrics     *Metrics
}

func NewSubmissionService(db *sql.DB, repomanager repomanager.RepositoryManager, store ObjectStore,
	config *sc.Config, reg prometheus.Registerer) *SubmissionService {
	return &SubmissionService{
		db:          db,
		repomanager: repomanager,
		store:       store,
		config:      config,
		metrics:     NewMetrics(reg),
	}
}

func (s *SubmissionService) validateFiles(files []FileRequest) error {
	seen := make(map[string]struct{}, len(files))
	for _, f := range files {
		if f.ID == "" {
			return fmt.Errorf("%w: file id is required", ErrValidation)
		}
		if _, ok := seen[f.ID]; ok {
			return fmt.Errorf("%w: duplicate file id %s", ErrValidation, f.ID)
		}
		seen[f.ID] = struct{}{}

		if f.Name == "" {
			return fmt.Errorf("%w: file %s has no name", ErrValidation, f.ID)
		}
		if f.Size < 0 {
			return fmt.Errorf("%w: file %s has negative size", ErrValidation, f.ID)
		}
		if f.Size > s.config.MaxUploadSize {
			return fmt.Errorf("%w: %s is %d bytes, limit is %d", ErrTooLarge, f.Name, f.Size, s.config.MaxUploadSize)
		}
	}
	return nil
}

func (s *SubmissionService) contentURL(fileID string) string {
	return s.config.PublicBaseURL + "/api/v1/files/" + url.PathEscape(fileID) + "/content"
}

// RequestTargets registers pending files for an assignment and returns one
// upload target per requested file, keyed by FileRequest.ID.
func (s *SubmissionService) RequestTargets(ctx context.Context, courseID, assignmentID string, files []FileRequest) (map[string]UploadTarget, error) {
	if courseID == "" || assignmentID == "" {
		return nil, fmt.Errorf("%w: course and assignment are required", ErrValidation)
	}
	if err := s.validateFiles(files); err != nil {
		return nil, err
	}

	created := make([]*models.File, 0, len(files))
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Files(tx)
		for _, f := range files {
			file := &models.File{
				ID:           newFileID(),
				CourseID:     courseID,
				AssignmentID: assignmentID,
				Name:         f.Name,
				DeclaredSize: f.Size,
			}
			if err := repo.Create(ctx, file); err != nil {
				return err
			}
			created = append(created, file)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error creating files: %w", err)
	}

	targets := make(map[string]UploadTarget, len(files))
	for i, f := range files {
		file := created[i]
		token, err := auth.GenerateUploadToken(file.ID, file.DeclaredSize, []byte(s.config.SecretKey), s.config.UploadTokenValidity)
		if err != nil {
			return nil, fmt.Errorf("error signing upload token: %w", err)
		}
		targets[f.ID] = UploadTarget{
			URL:    s.contentURL(file.ID),
			Params: map[string]string{"token": token},
		}
	}

	s.metrics.TargetsIssued.Add(float64(len(files)))
	return targets, nil
}

// Upload stores the content of a pending file. content must hold exactly
// the declared size.
func (s *SubmissionService) Upload(ctx context.Context, fileID, token string, content io.Reader, contentType string) (*models.File, error) {
	claims, err := auth.ParseUploadToken(token, []byte(s.config.SecretKey))
	if err != nil {
		return nil, err
	}
	if claims.FileID != fileID {
		return nil, auth.ErrInvalidToken
	}

	repo := s.repomanager.Files(s.db)
	file, err := repo.GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if file.IsUploaded() {
		return nil, fmt.Errorf("%w: file %s is already uploaded", models.ErrConflict, fileID)
	}

	h := cryptox.NewChecksum()
	spooled, n, err := filex.Spool(s.config.SpoolDir, content, file.DeclaredSize, h)
	if err != nil {
		if errors.Is(err, filex.ErrTooLarge) {
			s.metrics.UploadsRejected.Inc()
			return nil, fmt.Errorf("%w: more than %d bytes", ErrSizeMismatch, file.DeclaredSize)
		}
		return nil, err
	}
	defer filex.Release(spooled)

	if n != file.DeclaredSize {
		s.metrics.UploadsRejected.Inc()
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrSizeMismatch, n, file.DeclaredSize)
	}

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := newStorageKey(file.CourseID, file.AssignmentID)
	if err := s.store.Put(ctx, key, spooled, n, contentType); err != nil {
		return nil, err
	}

	sum := cryptox.HexSum(h)
	if err := repo.MarkUploaded(ctx, fileID, n, key, sum); err != nil {
		return nil, err
	}

	now := nowFn()
	file.Size = n
	file.StorageKey = key
	file.Checksum = sum
	file.UploadStatus = models.UploadCompleted
	file.UploadedAt = &now

	s.metrics.UploadsAccepted.Inc()
	s.metrics.BytesReceived.Add(float64(n))
	return file, nil
}

// CreateSubmission submits uploaded files to an assignment, keeping their
// order. An empty file list is accepted.
func (s *SubmissionService) CreateSubmission(ctx context.Context, courseID, assignmentID, comment string, fileIDs []string) (*models.Submission, error) {
	if courseID == "" || assignmentID == "" {
		return nil, fmt.Errorf("%w: course and assignment are required", ErrValidation)
	}

	seen := make(map[string]struct{}, len(fileIDs))
	for _, id := range fileIDs {
		if _, ok := seen[id]; ok {
			return nil, fmt.Errorf("%w: duplicate file id %s", ErrValidation, id)
		}
		seen[id] = struct{}{}
	}

	sub := &models.Submission{
		CourseID:     courseID,
		AssignmentID: assignmentID,
		Comment:      comment,
		FileIDs:      append([]string{}, fileIDs...),
	}

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		files := s.repomanager.Files(tx)
		for _, id := range fileIDs {
			f, err := files.GetByID(ctx, id)
			if errors.Is(err, models.ErrNotFound) {
				return fmt.Errorf("%w: unknown file %s", ErrValidation, id)
			}
			if err != nil {
				return err
			}
			if f.CourseID != courseID || f.AssignmentID != assignmentID {
				return fmt.Errorf("%w: file %s belongs to another assignment", ErrValidation, id)
			}
			if !f.IsUploaded() {
				return fmt.Errorf("%w: file %s is not uploaded", ErrValidation, id)
			}
		}
		return s.repomanager.Submissions(tx).Create(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.SubmissionsCreated.Inc()
	return sub, nil
}

// GetFile returns the metadata of a file and, once it is uploaded, a
// temporary download link.
func (s *SubmissionService) GetFile(ctx context.Context, fileID string) (*FileInfo, error) {
	file, err := s.repomanager.Files(s.db).GetByID(ctx, fileID)
	if err != nil {
		return nil, err
	}

	info := &FileInfo{File: file}
	if file.IsUploaded() {
		u, err := s.store.PresignGet(ctx, file.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("error presigning download: %w", err)
		}
		info.DownloadURL = u
	}
	return info, nil
}

// GetSubmission returns a stored submission.
func (s *SubmissionService) GetSubmission(ctx context.Context, id int64) (*models.Submission, error) {
	return s.repomanager.Submissions(s.db).GetByID(ctx, id)
}
