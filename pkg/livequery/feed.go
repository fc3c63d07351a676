package livequery

import "sync"

// Change identifies one written document. An empty ID stands for any document
// in the collection.
type Change struct {
	Collection string
	ID         string
}

// Matcher decides whether a change can affect a subscription's result.
type Matcher func(Change) bool

// MatchCollection matches every change in collection.
func MatchCollection(collection string) Matcher {
	return func(c Change) bool { return c.Collection == collection }
}

// MatchDocument matches changes to a single document and collection-wide
// changes.
func MatchDocument(collection, id string) Matcher {
	return func(c Change) bool {
		return c.Collection == collection && (c.ID == "" || c.ID == id)
	}
}

// Feed fans change notifications out to live subscriptions. Signals are
// coalesced per listener: many changes between two fetches cause one refetch.
type Feed struct {
	mu        sync.RWMutex
	next      uint64
	listeners map[uint64]*listener
}

type listener struct {
	match  Matcher
	signal chan struct{}
}

func NewFeed() *Feed {
	return &Feed{listeners: make(map[uint64]*listener)}
}

func (f *Feed) Publish(changes ...Change) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, l := range f.listeners {
		for _, c := range changes {
			if l.match != nil && !l.match(c) {
				continue
			}
			select {
			case l.signal <- struct{}{}:
			default:
			}
			break
		}
	}
}

func (f *Feed) register(match Matcher) (<-chan struct{}, func()) {
	l := &listener{match: match, signal: make(chan struct{}, 1)}
	f.mu.Lock()
	f.next++
	id := f.next
	f.listeners[id] = l
	f.mu.Unlock()

	var once sync.Once
	return l.signal, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.listeners, id)
			f.mu.Unlock()
		})
	}
}

// Listeners returns the number of registered subscriptions.
func (f *Feed) Listeners() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.listeners)
}
