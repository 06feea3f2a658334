package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	"forno/backend/internal/store"
)

// session is the unit of work of one operation. Collections are loaded on
// first use, mutated in memory and written back together on commit.
type session struct {
	ctx     context.Context
	records store.RecordStore
	loaded  map[string]any
	pending map[string]func() ([]json.RawMessage, error)
}

// run locks names, hands fn a fresh session and commits what fn changed.
// Nothing is written when fn fails.
func (s *Service) run(ctx context.Context, names []string, fn func(*session) error) error {
	unlock := s.locks.Lock(names...)
	defer unlock()

	sess := &session{
		ctx:     ctx,
		records: s.records,
		loaded:  make(map[string]any),
		pending: make(map[string]func() ([]json.RawMessage, error)),
	}
	if err := fn(sess); err != nil {
		return err
	}
	return sess.commit()
}

func load[T any](sess *session, name string) ([]T, error) {
	if cached, ok := sess.loaded[name]; ok {
		return cached.([]T), nil
	}

	raw, err := sess.records.Load(sess.ctx, name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	items, err := store.Decode[T](name, raw)
	if err != nil {
		return nil, err
	}
	sess.loaded[name] = items
	return items, nil
}

func put[T any](sess *session, name string, items []T) {
	sess.loaded[name] = items
	sess.pending[name] = func() ([]json.RawMessage, error) {
		return store.Encode(name, items)
	}
}

// commit writes every changed collection. Orders go last so a partial
// failure on a non-batch store never leaves an order without its stock move.
func (sess *session) commit() error {
	if len(sess.pending) == 0 {
		return nil
	}

	names := make([]string, 0, len(sess.pending))
	for name := range sess.pending {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		if (a == store.Orders) != (b == store.Orders) {
			if a == store.Orders {
				return 1
			}
			return -1
		}
		if a < b {
			return -1
		}
		if a > b {
			return 1
		}
		return 0
	})

	collections := make([]store.Collection, 0, len(names))
	for _, name := range names {
		raw, err := sess.pending[name]()
		if err != nil {
			return err
		}
		collections = append(collections, store.Collection{Name: name, Records: raw})
	}
	return store.ReplaceAll(sess.ctx, sess.records, collections)
}

func nextID[T any](items []T, id func(T) int64) int64 {
	var max int64
	for _, item := range items {
		if v := id(item); v > max {
			max = v
		}
	}
	return max + 1
}
