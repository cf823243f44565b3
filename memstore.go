package binindex

import "sync"

// MemStore is an in-memory KV backend. Wrap it with NewKVStore to obtain a
// Store.
type MemStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

// NewMemStore inits a new MemStore.
func NewMemStore() *MemStore {
	return &MemStore{m: make(map[string][]byte)}
}

// Has implements KV.
func (s *MemStore) Has(key []byte) (bool, error) {
	s.mu.RLock()
	_, ok := s.m[string(key)]
	s.mu.RUnlock()
	return ok, nil
}

// Get implements KV.
func (s *MemStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	val, ok := s.m[string(key)]
	s.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), val...), nil
}

// Set implements KV.
func (s *MemStore) Set(key, value []byte) error {
	s.mu.Lock()
	s.m[string(key)] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored values.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
