package gallery

import "sync"

// MemoryStore is an in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore returns a new empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// List implements Store.List.
func (s *MemoryStore) List() ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

// Append implements Store.Append.
func (s *MemoryStore) Append(e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

// Remove implements Store.Remove.
func (s *MemoryStore) Remove(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = without(s.entries, id)
	return nil
}

// Get implements Store.Get.
func (s *MemoryStore) Get(id int64) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.entries, id)
}
