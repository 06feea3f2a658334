package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"forno/backend/internal/store"
)

// Store keeps one JSON array file per collection under dir.
type Store struct {
	dir string
	mu  sync.Mutex
}

func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) path(collection string) string {
	return filepath.Join(s.dir, collection+".json")
}

func (s *Store) Load(_ context.Context, collection string) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := os.ReadFile(s.path(collection))
	if errors.Is(err, fs.ErrNotExist) {
		if err := s.write(collection, nil); err != nil {
			return nil, err
		}
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]json.RawMessage, 0)
	if len(strings.TrimSpace(string(payload))) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", collection, err)
	}
	return records, nil
}

func (s *Store) Replace(_ context.Context, collection string, records []json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(collection, records)
}

// ReplaceBatch stages every collection to a temp file before renaming any of
// them into place.
func (s *Store) ReplaceBatch(_ context.Context, collections []store.Collection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make([]string, 0, len(collections))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}
	for _, c := range collections {
		tmp, err := s.stage(c.Name, c.Records)
		if err != nil {
			cleanup()
			return err
		}
		staged = append(staged, tmp)
	}

	for i, c := range collections {
		if err := os.Rename(staged[i], s.path(c.Name)); err != nil {
			cleanup()
			return fmt.Errorf("commit collection %s: %w", c.Name, err)
		}
	}
	return nil
}

func (s *Store) write(collection string, records []json.RawMessage) error {
	tmp, err := s.stage(collection, records)
	if err != nil {
		return err
	}
	if err := os.Rename(tmp, s.path(collection)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("commit collection %s: %w", collection, err)
	}
	return nil
}

func (s *Store) stage(collection string, records []json.RawMessage) (string, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode collection %s: %w", collection, err)
	}

	f, err := os.CreateTemp(s.dir, collection+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
