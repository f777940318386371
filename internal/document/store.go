package document

import (
	"log/slog"
	"sync"
)

// Subscriber receives the full document list after every store mutation.
type Subscriber func(docs []*Document)

// Store is the in-memory document list shared by everything that renders
// or reasons about documents in a session. It is a pure cache: no
// persistence happens here, and callers that mutate it are expected to
// pair the mutation with a repository call (the Service wraps both).
//
// Every mutation publishes a fresh snapshot to all subscribers before the
// mutating call returns. Snapshots are copies, so a reader during another
// mutation's fan-out sees the fully-old or fully-new list, never a
// partial one.
type Store struct {
	mu      sync.RWMutex
	docs    []Document
	subs    map[int64]Subscriber
	nextSub int64
	logger  *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	return &Store{
		subs:   make(map[int64]Subscriber),
		logger: logger,
	}
}

// CurrentList returns a snapshot of the current document list.
func (s *Store) CurrentList() []*Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshot(s.docs)
}

// Subscribe registers fn for snapshot emissions and returns a cancel
// function. fn is invoked synchronously on the mutating goroutine.
func (s *Store) Subscribe(fn Subscriber) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Add prepends doc to the list. A zero id gets a locally-unique one
// assigned (one greater than the current maximum). Returns the stored
// copy.
func (s *Store) Add(doc *Document) *Document {
	s.mu.Lock()
	d := *doc
	if d.ID == 0 {
		d.ID = s.maxIDLocked() + 1
	}
	s.docs = append([]Document{d}, s.docs...)
	subs, snap := s.fanoutLocked()
	s.mu.Unlock()

	publish(subs, snap)
	stored := d
	return &stored
}

// Update replaces the entity matching doc's id with doc's current field
// values. The store keeps no per-field versioning: two in-flight updates
// for the same id resolve last-write-wins, so callers must supply the
// complete intended state for every field they touch.
func (s *Store) Update(doc *Document) {
	s.mu.Lock()
	for i := range s.docs {
		if s.docs[i].ID == doc.ID {
			s.docs[i] = *doc
			break
		}
	}
	subs, snap := s.fanoutLocked()
	s.mu.Unlock()

	publish(subs, snap)
}

// Delete removes the entity with the given id, if present.
func (s *Store) Delete(id int64) {
	s.mu.Lock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			break
		}
	}
	subs, snap := s.fanoutLocked()
	s.mu.Unlock()

	publish(subs, snap)
}

// ReplaceAll swaps the whole list, used after a full refresh from the
// repository.
func (s *Store) ReplaceAll(docs []*Document) {
	s.mu.Lock()
	s.docs = make([]Document, len(docs))
	for i, d := range docs {
		s.docs[i] = *d
	}
	subs, snap := s.fanoutLocked()
	s.mu.Unlock()

	publish(subs, snap)
}

// Get returns a copy of the entity with the given id, or nil.
func (s *Store) Get(id int64) *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			d := s.docs[i]
			return &d
		}
	}
	return nil
}

func (s *Store) maxIDLocked() int64 {
	var max int64
	for i := range s.docs {
		if s.docs[i].ID > max {
			max = s.docs[i].ID
		}
	}
	return max
}

// fanoutLocked collects the subscriber list and a snapshot while the lock
// is held; the actual callbacks run after release so a subscriber may
// call back into the store.
func (s *Store) fanoutLocked() ([]Subscriber, []*Document) {
	subs := make([]Subscriber, 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	return subs, snapshot(s.docs)
}

func publish(subs []Subscriber, snap []*Document) {
	for _, fn := range subs {
		fn(snap)
	}
}

func snapshot(docs []Document) []*Document {
	out := make([]*Document, len(docs))
	for i := range docs {
		d := docs[i]
		out[i] = &d
	}
	return out
}
