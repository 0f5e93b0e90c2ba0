package filesubmission

import (
	"sync"
)

// ObserverCache maps file item ids to their live observers. An observer is
// created on first request and evicted right after its completion handler
// has run.
type ObserverCache struct {
	newObserver func(itemID, submissionID string) *Observer
	onFinished  func(Completion)

	mu        sync.Mutex
	observers map[string]*Observer
}

// NewObserverCache builds a cache. onFinished runs once per observer when its
// upload is over, before the observer is evicted.
func NewObserverCache(newObserver func(itemID, submissionID string) *Observer, onFinished func(Completion)) *ObserverCache {
	return &ObserverCache{
		newObserver: newObserver,
		onFinished:  onFinished,
		observers:   make(map[string]*Observer),
	}
}

// Observer returns the live observer for itemID, creating it if needed.
func (c *ObserverCache) Observer(itemID, submissionID string) *Observer {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o, ok := c.observers[itemID]; ok {
		return o
	}

	o := c.newObserver(itemID, submissionID)
	o.OnFinished(func(comp Completion) {
		defer c.evict(itemID, o)
		if c.onFinished != nil {
			c.onFinished(comp)
		}
	})
	c.observers[itemID] = o
	return o
}

// Lookup returns the live observer for itemID or nil.
func (c *ObserverCache) Lookup(itemID string) *Observer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.observers[itemID]
}

func (c *ObserverCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.observers)
}

func (c *ObserverCache) evict(itemID string, o *Observer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.observers[itemID] == o {
		delete(c.observers, itemID)
	}
}
