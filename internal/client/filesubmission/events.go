package filesubmission

import (
	"sync"

	"github.com/dmitrijs2005/gophsubmit/internal/client/models"
)

type EventKind int

const (
	// EventItemProgress fires for every persisted progress update.
	EventItemProgress EventKind = iota + 1
	// EventItemFinished fires once per observed upload.
	EventItemFinished
	// EventSubmissionFinished fires once when a submission reaches a
	// terminal state.
	EventSubmissionFinished
)

func (k EventKind) String() string {
	switch k {
	case EventItemProgress:
		return "item_progress"
	case EventItemFinished:
		return "item_finished"
	case EventSubmissionFinished:
		return "submission_finished"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind         EventKind
	SubmissionID string
	ItemID       string

	BytesUploaded int64
	BytesToUpload int64

	// APIID is set for a successful EventItemFinished.
	APIID string

	// State is set for EventSubmissionFinished.
	State models.SubmissionState

	Err error
}

// broadcaster fans events out to subscribers synchronously. Subscribers must
// not block.
type broadcaster struct {
	mu   sync.RWMutex
	next int
	subs map[int]func(Event)
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[int]func(Event))}
}

func (b *broadcaster) subscribe(fn func(Event)) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) emit(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	subs := make([]func(Event), 0, len(b.subs))
	for _, fn := range b.subs {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
