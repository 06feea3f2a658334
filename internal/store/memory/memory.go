package memory

import (
	"context"
	"encoding/json"
	"sync"

	"forno/backend/internal/store"
)

// Store keeps collections in process memory. Records are copied on the way
// in and out.
type Store struct {
	mu          sync.RWMutex
	collections map[string][]json.RawMessage
	writes      map[string]int
}

func New() *Store {
	return &Store{
		collections: make(map[string][]json.RawMessage),
		writes:      make(map[string]int),
	}
}

func (s *Store) Load(_ context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.RLock()
	records, ok := s.collections[collection]
	s.mu.RUnlock()
	if ok {
		return store.CloneRecords(records), nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[collection]; !ok {
		s.collections[collection] = []json.RawMessage{}
	}
	return store.CloneRecords(s.collections[collection]), nil
}

func (s *Store) Replace(_ context.Context, collection string, records []json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[collection] = store.CloneRecords(records)
	s.writes[collection]++
	return nil
}

func (s *Store) ReplaceBatch(_ context.Context, collections []store.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range collections {
		s.collections[c.Name] = store.CloneRecords(c.Records)
		s.writes[c.Name]++
	}
	return nil
}

// Writes returns how many times collection has been replaced.
func (s *Store) Writes(collection string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes[collection]
}
