package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/gophsubmit/internal/dbx"
	"github.com/dmitrijs2005/gophsubmit/internal/server/auth"
	"github.com/dmitrijs2005/gophsubmit/internal/server/config"
	"github.com/dmitrijs2005/gophsubmit/internal/server/models"
	"github.com/dmitrijs2005/gophsubmit/internal/server/repositories/files"
	"github.com/dmitrijs2005/gophsubmit/internal/server/repositories/submissions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -------- test fakes --------

type fakeFilesRepo struct {
	files     map[string]*models.File
	createErr error
	markErr   error
}

func (f *fakeFilesRepo) Create(_ context.Context, file *models.File) error {
	if f.createErr != nil {
		return f.createErr
	}
	file.UploadStatus = models.UploadPending
	cp := *file
	f.files[file.ID] = &cp
	return nil
}

func (f *fakeFilesRepo) GetByID(_ context.Context, id string) (*models.File, error) {
	file, ok := f.files[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *file
	return &cp, nil
}

func (f *fakeFilesRepo) MarkUploaded(_ context.Context, id string, size int64, key, sum string) error {
	if f.markErr != nil {
		return f.markErr
	}
	file, ok := f.files[id]
	if !ok || file.IsUploaded() {
		return models.ErrConflict
	}
	file.Size, file.StorageKey, file.Checksum, file.UploadStatus = size, key, sum, models.UploadCompleted
	return nil
}

type fakeSubmissionsRepo struct {
	created []*models.Submission
}

func (f *fakeSubmissionsRepo) Create(_ context.Context, s *models.Submission) error {
	s.ID = int64(len(f.created) + 1)
	s.SubmittedAt = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	f.created = append(f.created, s)
	return nil
}

func (f *fakeSubmissionsRepo) GetByID(_ context.Context, id int64) (*models.Submission, error) {
	for _, s := range f.created {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

type fakeRepoManager struct {
	files *fakeFilesRepo
	subs  *fakeSubmissionsRepo
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Files(dbx.DBTX) files.Repository              { return m.files }
func (m *fakeRepoManager) Submissions(dbx.DBTX) submissions.Repository  { return m.subs }

type fakeStore struct {
	objects map[string][]byte
	putErr  error
}

func (s *fakeStore) Put(_ context.Context, key string, body io.ReadSeeker, size int64, _ string) error {
	if s.putErr != nil {
		return s.putErr
	}
	b, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(b)) != size {
		return fmt.Errorf("short body: %d != %d", len(b), size)
	}
	s.objects[key] = b
	return nil
}

func (s *fakeStore) PresignGet(_ context.Context, key string) (string, error) {
	return "https://s3.local/" + key + "?sig=1", nil
}

// -------- helpers --------

type testEnv struct {
	svc   *SubmissionService
	mock  sqlmock.Sqlmock
	repos *fakeRepoManager
	store *fakeStore
	reg   *prometheus.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	n := 0
	origID, origKey := newFileID, newStorageKey
	newFileID = func() string { n++; return fmt.Sprintf("file-%d", n) }
	newStorageKey = func(course, assignment string) string { return course + "/" + assignment + "/obj" }
	t.Cleanup(func() { newFileID, newStorageKey = origID, origKey })

	cfg := &config.Config{
		PublicBaseURL:       "http://api.test",
		SecretKey:           "secret",
		UploadTokenValidity: time.Minute,
		MaxUploadSize:       100,
		SpoolDir:            t.TempDir(),
	}

	repos := &fakeRepoManager{
		files: &fakeFilesRepo{files: map[string]*models.File{}},
		subs:  &fakeSubmissionsRepo{},
	}
	store := &fakeStore{objects: map[string][]byte{}}
	reg := prometheus.NewRegistry()

	return &testEnv{
		svc:   NewSubmissionService(db, repos, store, cfg, reg),
		mock:  mock,
		repos: repos,
		store: store,
		reg:   reg,
	}
}

func (e *testEnv) requestOne(t *testing.T, name string, size int64) (string, string) {
	t.Helper()
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
	targets, err := e.svc.RequestTargets(context.Background(), "c1", "a1", []FileRequest{{ID: "item", Name: name, Size: size}})
	require.NoError(t, err)
	tg := targets["item"]
	fileID := strings.TrimSuffix(strings.TrimPrefix(tg.URL, "http://api.test/api/v1/files/"), "/content")
	return fileID, tg.Params["token"]
}

// -------- RequestTargets --------

func TestRequestTargets_CreatesPendingFilesAndSignedTargets(t *testing.T) {
	e := newTestEnv(t)
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()

	targets, err := e.svc.RequestTargets(context.Background(), "c1", "a1", []FileRequest{
		{ID: "i1", Name: "a.txt", Size: 5},
		{ID: "i2", Name: "b.txt", Size: 0},
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)

	assert.Equal(t, "http://api.test/api/v1/files/file-1/content", targets["i1"].URL)
	assert.Equal(t, "http://api.test/api/v1/files/file-2/content", targets["i2"].URL)

	claims, err := auth.ParseUploadToken(targets["i1"].Params["token"], []byte("secret"))
	require.NoError(t, err)
	assert.Equal(t, "file-1", claims.FileID)
	assert.Equal(t, int64(5), claims.Size)

	f := e.repos.files.files["file-2"]
	require.NotNil(t, f)
	assert.Equal(t, "b.txt", f.Name)
	assert.Equal(t, models.UploadPending, f.UploadStatus)

	assert.Equal(t, 2.0, testutil.ToFloat64(e.svc.metrics.TargetsIssued))
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestRequestTargets_Validation(t *testing.T) {
	tests := []struct {
		name    string
		course  string
		files   []FileRequest
		wantErr error
	}{
		{"no course", "", nil, ErrValidation},
		{"missing id", "c1", []FileRequest{{Name: "a"}}, ErrValidation},
		{"duplicate id", "c1", []FileRequest{{ID: "x", Name: "a"}, {ID: "x", Name: "b"}}, ErrValidation},
		{"missing name", "c1", []FileRequest{{ID: "x"}}, ErrValidation},
		{"negative size", "c1", []FileRequest{{ID: "x", Name: "a", Size: -1}}, ErrValidation},
		{"too large", "c1", []FileRequest{{ID: "x", Name: "a", Size: 101}}, ErrTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEnv(t)
			_, err := e.svc.RequestTargets(context.Background(), tt.course, "a1", tt.files)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, e.repos.files.files)
		})
	}
}

func TestRequestTargets_RollsBackOnRepoError(t *testing.T) {
	e := newTestEnv(t)
	e.repos.files.createErr = errors.New("db down")
	e.mock.ExpectBegin()
	e.mock.ExpectRollback()

	_, err := e.svc.RequestTargets(context.Background(), "c1", "a1", []FileRequest{{ID: "i1", Name: "a", Size: 1}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	require.NoError(t, e.mock.ExpectationsWereMet())
}

// -------- Upload --------

func TestUpload_StoresContentAndMarksFile(t *testing.T) {
	e := newTestEnv(t)
	fileID, token := e.requestOne(t, "a.txt", 5)

	f, err := e.svc.Upload(context.Background(), fileID, token, strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)

	assert.True(t, f.IsUploaded())
	assert.Equal(t, int64(5), f.Size)
	assert.Equal(t, "c1/a1/obj", f.StorageKey)
	assert.Len(t, f.Checksum, 64)
	require.NotNil(t, f.UploadedAt)

	assert.Equal(t, []byte("hello"), e.store.objects["c1/a1/obj"])
	assert.True(t, e.repos.files.files[fileID].IsUploaded())
	assert.Equal(t, 1.0, testutil.ToFloat64(e.svc.metrics.UploadsAccepted))
	assert.Equal(t, 5.0, testutil.ToFloat64(e.svc.metrics.BytesReceived))
}

func TestUpload_TokenChecks(t *testing.T) {
	e := newTestEnv(t)
	fileID, token := e.requestOne(t, "a.txt", 1)

	_, err := e.svc.Upload(context.Background(), fileID, "garbage", strings.NewReader("x"), "")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	_, err = e.svc.Upload(context.Background(), "other", token, strings.NewReader("x"), "")
	assert.ErrorIs(t, err, auth.ErrInvalidToken)

	expired, err := auth.GenerateUploadToken(fileID, 1, []byte("secret"), -time.Minute)
	require.NoError(t, err)
	_, err = e.svc.Upload(context.Background(), fileID, expired, strings.NewReader("x"), "")
	assert.ErrorIs(t, err, auth.ErrTokenExpired)

	assert.Empty(t, e.store.objects)
}

func TestUpload_SizeMustMatchDeclaration(t *testing.T) {
	e := newTestEnv(t)
	fileID, token := e.requestOne(t, "a.txt", 5)

	_, err := e.svc.Upload(context.Background(), fileID, token, strings.NewReader("hi"), "")
	assert.ErrorIs(t, err, ErrSizeMismatch)

	_, err = e.svc.Upload(context.Background(), fileID, token, strings.NewReader("hello world"), "")
	assert.ErrorIs(t, err, ErrSizeMismatch)

	assert.Empty(t, e.store.objects)
	assert.False(t, e.repos.files.files[fileID].IsUploaded())
	assert.Equal(t, 2.0, testutil.ToFloat64(e.svc.metrics.UploadsRejected))
}

func TestUpload_SecondUploadConflicts(t *testing.T) {
	e := newTestEnv(t)
	fileID, token := e.requestOne(t, "a.txt", 1)

	_, err := e.svc.Upload(context.Background(), fileID, token, strings.NewReader("x"), "")
	require.NoError(t, err)

	_, err = e.svc.Upload(context.Background(), fileID, token, strings.NewReader("x"), "")
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestUpload_StoreError(t *testing.T) {
	e := newTestEnv(t)
	fileID, token := e.requestOne(t, "a.txt", 1)
	e.store.putErr = errors.New("s3 down")

	_, err := e.svc.Upload(context.Background(), fileID, token, strings.NewReader("x"), "")
	require.Error(t, err)
	assert.False(t, e.repos.files.files[fileID].IsUploaded())
}

// -------- CreateSubmission --------

func TestCreateSubmission_KeepsOrder(t *testing.T) {
	e := newTestEnv(t)
	id1, tok1 := e.requestOne(t, "a.txt", 1)
	id2, tok2 := e.requestOne(t, "b.txt", 1)
	_, err := e.svc.Upload(context.Background(), id1, tok1, strings.NewReader("a"), "")
	require.NoError(t, err)
	_, err = e.svc.Upload(context.Background(), id2, tok2, strings.NewReader("b"), "")
	require.NoError(t, err)

	e.mock.ExpectBegin()
	e.mock.ExpectCommit()
	sub, err := e.svc.CreateSubmission(context.Background(), "c1", "a1", "done", []string{id2, id1})
	require.NoError(t, err)

	assert.Equal(t, int64(1), sub.ID)
	assert.Equal(t, []string{id2, id1}, sub.FileIDs)
	assert.Equal(t, "done", sub.Comment)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.svc.metrics.SubmissionsCreated))

	got, err := e.svc.GetSubmission(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub, got)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestCreateSubmission_EmptyFileList(t *testing.T) {
	e := newTestEnv(t)
	e.mock.ExpectBegin()
	e.mock.ExpectCommit()

	sub, err := e.svc.CreateSubmission(context.Background(), "c1", "a1", "", nil)
	require.NoError(t, err)
	assert.Empty(t, sub.FileIDs)
	assert.NotNil(t, sub.FileIDs)
}

func TestCreateSubmission_RejectsUnusableFiles(t *testing.T) {
	e := newTestEnv(t)
	pending, _ := e.requestOne(t, "a.txt", 1)

	e.repos.files.files["elsewhere"] = &models.File{ID: "elsewhere", CourseID: "c2", AssignmentID: "a1", UploadStatus: models.UploadCompleted}

	for _, ids := range [][]string{{"missing"}, {pending}, {"elsewhere"}} {
		e.mock.ExpectBegin()
		e.mock.ExpectRollback()
		_, err := e.svc.CreateSubmission(context.Background(), "c1", "a1", "", ids)
		assert.ErrorIs(t, err, ErrValidation, "ids %v", ids)
	}

	_, err := e.svc.CreateSubmission(context.Background(), "c1", "a1", "", []string{"x", "x"})
	assert.ErrorIs(t, err, ErrValidation)

	assert.Empty(t, e.repos.subs.created)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

// -------- GetFile --------

func TestGetFile(t *testing.T) {
	e := newTestEnv(t)
	fileID, token := e.requestOne(t, "a.txt", 1)

	info, err := e.svc.GetFile(context.Background(), fileID)
	require.NoError(t, err)
	assert.Empty(t, info.DownloadURL)

	_, err = e.svc.Upload(context.Background(), fileID, token, strings.NewReader("x"), "")
	require.NoError(t, err)

	info, err = e.svc.GetFile(context.Background(), fileID)
	require.NoError(t, err)
	assert.Equal(t, "https://s3.local/c1/a1/obj?sig=1", info.DownloadURL)
	assert.Equal(t, "a.txt", info.Name)

	_, err = e.svc.GetFile(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
