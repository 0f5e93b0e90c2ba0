package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/dmitrijs2005/gophsubmit/internal/logging"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// maxResponseBody bounds the response body delivered to a delegate.
const maxResponseBody = 1 << 20

var (
	ErrSessionClosed = errors.New("transport session closed")
	ErrCanceled      = errors.New("upload task canceled")
)

// Delegate receives the events of one upload task.
type Delegate interface {
	// OnProgress reports bytes sent since the previous call, total bytes
	// sent and the expected total (-1 when unknown).
	OnProgress(sent, totalSent, totalExpected int64)

	// OnBodyReceived delivers a chunk of the response body. It may be called
	// several times and always before OnComplete.
	OnBodyReceived(data []byte)

	// OnComplete is called exactly once per resumed task. err is nil only for
	// a 2xx response.
	OnComplete(err error)
}

// DelegateResolver returns the delegate for a task description, or nil when
// nobody is interested in the task anymore.
type DelegateResolver func(desc string) Delegate

// StatusError is the completion error of a task that got a non-2xx response.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upload rejected: %s", e.Status)
}

type Config struct {
	ID            string
	MaxConcurrent int64
	HTTPClient    *http.Client
}

type Session struct {
	id      string
	client  *http.Client
	sem     *semaphore.Weighted
	resolve DelegateResolver
	logger  logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	tasks  map[string]*Task
	closed bool
}

func NewSession(cfg Config, resolve DelegateResolver, logger logging.Logger) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:      cfg.ID,
		client:  cfg.HTTPClient,
		sem:     semaphore.NewWeighted(cfg.MaxConcurrent),
		resolve: resolve,
		logger:  logger.With("module", "transport", "session", cfg.ID),
		ctx:     ctx,
		cancel:  cancel,
		tasks:   make(map[string]*Task),
	}
}

func (s *Session) ID() string {
	return s.id
}

// NewUploadTask registers a task for req. desc is handed to the resolver to
// find the task's delegate. The task does nothing until Resume is called.
func (s *Session) NewUploadTask(req *http.Request, desc string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		closeBody(req)
		return nil, ErrSessionClosed
	}

	ctx, cancel := context.WithCancel(s.ctx)
	t := &Task{
		ID:      uuid.NewString(),
		Desc:    desc,
		session: s,
		req:     req.WithContext(ctx),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.tasks[t.ID] = t
	return t, nil
}

// Cancel aborts a task; its delegate still gets OnComplete if it was resumed.
func (s *Session) Cancel(taskID string) bool {
	s.mu.Lock()
	t, ok := s.tasks[taskID]
	s.mu.Unlock()
	if !ok {
		return false
	}
	t.cancel()
	return true
}

// Running returns the number of tasks that were created and not finished.
func (s *Session) Running() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Close cancels every task and waits for them to report completion or for
// ctx to end.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	pending := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	s.cancel()
	for _, t := range pending {
		t.Discard()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) forget(t *Task) {
	s.mu.Lock()
	delete(s.tasks, t.ID)
	s.mu.Unlock()
}

func (s *Session) delegate(desc string) Delegate {
	if s.resolve == nil {
		return nil
	}
	return s.resolve(desc)
}

// Task is one upload request run by a Session.
type Task struct {
	ID   string
	Desc string

	session *Session
	req     *http.Request
	ctx     context.Context
	cancel  context.CancelFunc

	// state is guarded by session.mu.
	state taskState
}

type taskState int

const (
	taskIdle taskState = iota
	taskRunning
	taskDiscarded
)

// Resume starts the task in the background. Calling it again is a no-op.
// A task of a closed session is discarded without reporting completion.
func (t *Task) Resume() {
	s := t.session
	s.mu.Lock()
	if t.state != taskIdle {
		s.mu.Unlock()
		return
	}
	if s.closed {
		t.state = taskDiscarded
		s.mu.Unlock()
		t.release()
		return
	}
	t.state = taskRunning
	s.wg.Add(1)
	s.mu.Unlock()

	go t.run()
}

// Discard releases a task that will not be resumed. It is a no-op after
// Resume.
func (t *Task) Discard() {
	s := t.session
	s.mu.Lock()
	if t.state != taskIdle {
		s.mu.Unlock()
		return
	}
	t.state = taskDiscarded
	s.mu.Unlock()
	t.release()
}

func (t *Task) release() {
	t.cancel()
	closeBody(t.req)
	t.session.forget(t)
}

func (t *Task) run() {
	s := t.session
	defer s.wg.Done()
	defer s.forget(t)
	defer t.cancel()

	err := t.do()
	if d := s.delegate(t.Desc); d != nil {
		d.OnComplete(err)
	}

	if err != nil {
		s.logger.Debug(t.ctx, "upload task finished with error", "task", t.ID, "desc", t.Desc, "error", err)
	} else {
		s.logger.Debug(t.ctx, "upload task finished", "task", t.ID, "desc", t.Desc)
	}
}

func (t *Task) do() error {
	s := t.session

	if err := s.sem.Acquire(t.ctx, 1); err != nil {
		closeBody(t.req)
		return canceled(err)
	}
	defer s.sem.Release(1)

	req := t.req
	total := req.ContentLength
	if total <= 0 {
		total = -1
	}
	if req.Body != nil && req.Body != http.NoBody {
		body := &progressReader{rc: req.Body, total: total, report: func(n, sent int64) {
			if d := s.delegate(t.Desc); d != nil {
				d.OnProgress(n, sent, total)
			}
		}}
		req.Body = body
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return canceled(err)
	}
	defer resp.Body.Close()

	if err := t.deliverBody(resp.Body); err != nil {
		return canceled(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}
	return nil
}

func (t *Task) deliverBody(r io.Reader) error {
	buf := make([]byte, 32<<10)
	lr := io.LimitReader(r, maxResponseBody)
	for {
		n, err := lr.Read(buf)
		if n > 0 {
			if d := t.session.delegate(t.Desc); d != nil {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				d.OnBodyReceived(chunk)
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// canceled replaces context cancellation errors with ErrCanceled.
func canceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrCanceled, err)
	}
	return err
}

func closeBody(req *http.Request) {
	if req != nil && req.Body != nil {
		_ = req.Body.Close()
	}
}

// progressReader reports every successful read of the request body.
type progressReader struct {
	rc     io.ReadCloser
	total  int64
	sent   int64
	report func(n, totalSent int64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.rc.Read(b)
	if n > 0 {
		p.sent += int64(n)
		p.report(int64(n), p.sent)
	}
	return n, err
}

func (p *progressReader) Close() error {
	return p.rc.Close()
}
