package gallery

import (
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when an entry does not exist.
var ErrNotFound = errors.New("gallery entry not found")

// Entry is one persisted photo: a single shot or a finished collage.
// URL holds the encoded still as a self-contained data URL.
type Entry struct {
	ID        int64  `json:"id"`
	URL       string `json:"url"`
	IsCollage bool   `json:"isCollage,omitempty"`
	Layout    string `json:"layout,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// Store is the persistence abstraction for the gallery collection.
// Implementations can be in-memory or file-based. The collection is flat,
// insertion-ordered and unbounded.
type Store interface {
	// List returns all entries in insertion order.
	List() ([]Entry, error)
	// Append adds an entry at the end of the collection.
	Append(e Entry) error
	// Remove deletes the entry with the given id. Removing a missing id
	// is not an error.
	Remove(id int64) error
	// Get returns one entry by id or ErrNotFound.
	Get(id int64) (Entry, error)
}

// IDSource hands out entry IDs derived from the wall clock in
// milliseconds, strictly increasing even when several entries are created
// within the same millisecond.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDSource creates an ID source on the given clock (nil = time.Now).
func NewIDSource(now func() time.Time) *IDSource {
	if now == nil {
		now = time.Now
	}
	return &IDSource{now: now}
}

// Next returns the next ID.
func (s *IDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// Observe raises the floor so later IDs stay above id (used when an
// existing collection is loaded).
func (s *IDSource) Observe(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id > s.last {
		s.last = id
	}
}

func find(entries []Entry, id int64) (Entry, error) {
	for _, e := range entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

func without(entries []Entry, id int64) []Entry {
	out := entries[:0:0]
	for _, e := range entries {
		if e.ID != id {
			out = append(out, e)
		}
	}
	return out
}

// Seed raises src above every ID already present in store.
func Seed(src *IDSource, store Store) error {
	entries, err := store.List()
	if err != nil {
		return err
	}
	for _, e := range entries {
		src.Observe(e.ID)
	}
	return nil
}
