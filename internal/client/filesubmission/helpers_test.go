package filesubmission

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/client/client"
	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
	"github.com/dmitrijs2005/gophsubmit/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

// fakeServer serves the remote API over HTTP. Uploads are keyed by file name.
type fakeServer struct {
	*httptest.Server

	mu            sync.Mutex
	targetsStatus int
	targetCalls   int
	onTargets     func()
	uploadStatus  map[string]int
	block         map[string]chan struct{}
	uploads       []string
	creates       [][]string
}

func newFakeServer(t *testing.T) *fakeServer {
	t.Helper()
	fs := &fakeServer{uploadStatus: map[string]int{}, block: map[string]chan struct{}{}}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/courses/{course}/assignments/{assignment}/submissions/self/files", fs.handleTargets)
	mux.HandleFunc("POST /api/v1/courses/{course}/assignments/{assignment}/submissions", fs.handleCreate)
	mux.HandleFunc("POST /upload", fs.handleUpload)

	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeServer) handleTargets(w http.ResponseWriter, r *http.Request) {
	fs.mu.Lock()
	fs.targetCalls++
	status, hook := fs.targetsStatus, fs.onTargets
	fs.onTargets = nil
	fs.mu.Unlock()
	if hook != nil {
		hook()
	}
	if status != 0 {
		http.Error(w, "targets unavailable", status)
		return
	}

	var req struct {
		Files []client.FileDescriptor `json:"files"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	targets := map[string]models.UploadTarget{}
	for _, f := range req.Files {
		targets[f.ID] = models.UploadTarget{URL: fs.URL + "/upload", Params: map[string]string{"token": "t-" + f.ID}}
	}
	_ = json.NewEncoder(w).Encode(map[string]any{"targets": targets})
}

func (fs *fakeServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	f, h, err := r.FormFile("file")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	_, _ = io.Copy(io.Discard, f)
	_ = f.Close()

	fs.mu.Lock()
	fs.uploads = append(fs.uploads, h.Filename)
	status := fs.uploadStatus[h.Filename]
	ch := fs.block[h.Filename]
	fs.mu.Unlock()

	if ch != nil {
		select {
		case <-ch:
		case <-r.Context().Done():
			return
		}
	}
	if status != 0 {
		http.Error(w, "upload failed", status)
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"id": "api-" + h.Filename})
}

func (fs *fakeServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Submission struct {
			FileIDs []string `json:"file_ids"`
		} `json:"submission"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fs.mu.Lock()
	fs.creates = append(fs.creates, req.Submission.FileIDs)
	n := len(fs.creates)
	fs.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]any{"id": n, "file_ids": req.Submission.FileIDs})
}

func (fs *fakeServer) createCalls() [][]string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([][]string(nil), fs.creates...)
}

func (fs *fakeServer) targetsCalls() int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.targetCalls
}

func (fs *fakeServer) uploadCalls() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.uploads...)
}

func newTestAssembly(t *testing.T, db *sql.DB, api client.Client, reg prometheus.Registerer) *Assembly {
	t.Helper()
	a, err := New(context.Background(), Options{
		DB:                   db,
		API:                  api,
		MaxConcurrentUploads: 2,
		Logger:               logging.Discard(),
		Registerer:           reg,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(ctx)
	})
	return a
}

// finished subscribes to SubmissionFinished events of one submission.
func finished(a *Assembly, submissionID string) (<-chan Event, func()) {
	ch := make(chan Event, 4)
	cancel := a.Subscribe(func(e Event) {
		if e.Kind == EventSubmissionFinished && e.SubmissionID == submissionID {
			ch <- e
		}
	})
	return ch, cancel
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case e := <-ch:
		return e
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

// fakeAPI is an in-process client.Client for tests that never upload.
type fakeAPI struct {
	client.Client

	mu        sync.Mutex
	createErr error
	creates   [][]string
	targets   func(client.TargetsRequest) (map[string]models.UploadTarget, error)
}

func (f *fakeAPI) RequestUploadTargets(ctx context.Context, req client.TargetsRequest) (map[string]models.UploadTarget, error) {
	return f.targets(req)
}

func (f *fakeAPI) CreateSubmission(ctx context.Context, req client.CreateSubmissionRequest) (*client.SubmissionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates = append(f.creates, req.FileIDs)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &client.SubmissionResult{ID: "remote-1", SubmittedAt: time.Now()}, nil
}

func (f *fakeAPI) createCalls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.creates...)
}
