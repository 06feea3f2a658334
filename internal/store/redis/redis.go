package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"forno/backend/internal/store"
)

const emptyCollection = "[]"

// Store keeps each collection as one JSON array value under
// <prefix>:collection:<name>.
type Store struct {
	client *redis.Client
	prefix string
}

func New(addr string, password string, db int, prefix string) *Store {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if prefix == "" {
		prefix = "forno"
	}

	return &Store{client: client, prefix: prefix}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) key(collection string) string {
	return s.prefix + ":collection:" + collection
}

func (s *Store) Load(ctx context.Context, collection string) ([]json.RawMessage, error) {
	key := s.key(collection)
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		if err := s.client.SetNX(ctx, key, emptyCollection, 0).Err(); err != nil {
			return nil, err
		}
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]json.RawMessage, 0)
	if err := json.Unmarshal([]byte(val), &records); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", collection, err)
	}
	return records, nil
}

func (s *Store) Replace(ctx context.Context, collection string, records []json.RawMessage) error {
	payload, err := encodeRecords(records)
	if err != nil {
		return fmt.Errorf("encode collection %s: %w", collection, err)
	}
	return s.client.Set(ctx, s.key(collection), payload, 0).Err()
}

// ReplaceBatch writes all collections inside one MULTI/EXEC block.
func (s *Store) ReplaceBatch(ctx context.Context, collections []store.Collection) error {
	payloads := make([][]byte, len(collections))
	for i, c := range collections {
		payload, err := encodeRecords(c.Records)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", c.Name, err)
		}
		payloads[i] = payload
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, c := range collections {
			pipe.Set(ctx, s.key(c.Name), payloads[i], 0)
		}
		return nil
	})
	return err
}

func encodeRecords(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	return json.Marshal(records)
}
