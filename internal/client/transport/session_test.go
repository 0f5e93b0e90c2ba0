package transport

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophsubmit/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu       sync.Mutex
	progress []int64
	expected []int64
	body     bytes.Buffer
	events   []string
	err      error
	done     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{})}
}

func (r *recorder) OnProgress(sent, totalSent, totalExpected int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, totalSent)
	r.expected = append(r.expected, totalExpected)
	r.events = append(r.events, "progress")
}

func (r *recorder) OnBodyReceived(data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body.Write(data)
	r.events = append(r.events, "body")
}

func (r *recorder) OnComplete(err error) {
	r.mu.Lock()
	r.err = err
	r.events = append(r.events, "complete")
	r.mu.Unlock()
	close(r.done)
}

func (r *recorder) wait(t *testing.T) {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not complete")
	}
}

func testClient() *http.Client {
	return &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
}

func newSession(t *testing.T, max int64, delegates map[string]Delegate) *Session {
	t.Helper()
	var mu sync.Mutex
	s := NewSession(Config{ID: "sess", MaxConcurrent: max, HTTPClient: testClient()}, func(desc string) Delegate {
		mu.Lock()
		defer mu.Unlock()
		return delegates[desc]
	}, logging.Discard())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

func upload(t *testing.T, url string, payload string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, io.NopCloser(strings.NewReader(payload)))
	require.NoError(t, err)
	req.ContentLength = int64(len(payload))
	return req
}

func TestTask_ReportsProgressBodyAndCompletion(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		_, _ = io.WriteString(w, `{"id":"f1"}`)
	}))
	defer ts.Close()

	rec := newRecorder()
	s := newSession(t, 2, map[string]Delegate{"item-1": rec})
	assert.Equal(t, "sess", s.ID())

	payload := strings.Repeat("x", 100_000)
	task, err := s.NewUploadTask(upload(t, ts.URL, payload), "item-1")
	require.NoError(t, err)
	task.Resume()
	task.Resume()
	rec.wait(t)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.NoError(t, rec.err)
	assert.Equal(t, `{"id":"f1"}`, rec.body.String())
	require.NotEmpty(t, rec.progress)
	assert.Equal(t, int64(len(payload)), rec.progress[len(rec.progress)-1])
	for i := 1; i < len(rec.progress); i++ {
		assert.GreaterOrEqual(t, rec.progress[i], rec.progress[i-1])
	}
	for _, e := range rec.expected {
		assert.Equal(t, int64(len(payload)), e)
	}
	assert.Equal(t, "complete", rec.events[len(rec.events)-1])
	assert.Contains(t, rec.events, "body")
}

func TestTask_Non2xxIsStatusError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	}))
	defer ts.Close()

	rec := newRecorder()
	s := newSession(t, 1, map[string]Delegate{"d": rec})
	task, err := s.NewUploadTask(upload(t, ts.URL, "abc"), "d")
	require.NoError(t, err)
	task.Resume()
	rec.wait(t)

	var se *StatusError
	require.True(t, errors.As(rec.err, &se))
	assert.Equal(t, http.StatusRequestEntityTooLarge, se.StatusCode)
	assert.Contains(t, rec.body.String(), "too large")
}

func TestSession_CancelTask(t *testing.T) {
	release := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(release)

	rec := newRecorder()
	s := newSession(t, 1, map[string]Delegate{"d": rec})
	task, err := s.NewUploadTask(upload(t, ts.URL, "abc"), "d")
	require.NoError(t, err)
	task.Resume()

	assert.True(t, s.Cancel(task.ID))
	rec.wait(t)
	assert.ErrorIs(t, rec.err, ErrCanceled)
	assert.False(t, s.Cancel("unknown"))
}

func TestSession_BoundsConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		_, _ = io.Copy(io.Discard, r.Body)
		inFlight.Add(-1)
	}))
	defer ts.Close()

	delegates := map[string]Delegate{}
	recs := make([]*recorder, 6)
	for i := range recs {
		recs[i] = newRecorder()
		delegates[string(rune('a'+i))] = recs[i]
	}
	s := newSession(t, 2, delegates)

	for i := range recs {
		task, err := s.NewUploadTask(upload(t, ts.URL, "p"), string(rune('a'+i)))
		require.NoError(t, err)
		task.Resume()
	}
	for _, r := range recs {
		r.wait(t)
		assert.NoError(t, r.err)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))
	assert.Equal(t, 0, s.Running())
}

func TestSession_NilDelegateIsIgnored(t *testing.T) {
	var hits atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = io.Copy(io.Discard, r.Body)
	}))
	defer ts.Close()

	s := newSession(t, 1, map[string]Delegate{})
	task, err := s.NewUploadTask(upload(t, ts.URL, "abc"), "gone")
	require.NoError(t, err)
	task.Resume()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
	assert.LessOrEqual(t, hits.Load(), int32(1))
}

func TestSession_Closed(t *testing.T) {
	s := newSession(t, 1, nil)
	idle, err := s.NewUploadTask(upload(t, "http://127.0.0.1:1", "abc"), "idle")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Running())

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, 0, s.Running())

	idle.Resume()
	assert.Equal(t, 0, s.Running())

	_, err = s.NewUploadTask(upload(t, "http://127.0.0.1:1", "abc"), "late")
	require.ErrorIs(t, err, ErrSessionClosed)
}

func TestTask_Discard(t *testing.T) {
	s := newSession(t, 1, nil)
	task, err := s.NewUploadTask(upload(t, "http://127.0.0.1:1", "abc"), "d")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Running())

	task.Discard()
	assert.Equal(t, 0, s.Running())

	task.Resume()
	assert.Equal(t, 0, s.Running())
}
