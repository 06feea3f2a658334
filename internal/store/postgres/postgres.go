package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"forno/backend/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS record_collections (
	name       TEXT PRIMARY KEY,
	records    JSONB NOT NULL DEFAULT '[]'::jsonb,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Store keeps each collection as one JSONB array row.
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Load(ctx context.Context, collection string) ([]json.RawMessage, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT records FROM record_collections WHERE name = $1
	`, collection).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO record_collections (name, records) VALUES ($1, '[]'::jsonb)
			ON CONFLICT (name) DO NOTHING
		`, collection); err != nil {
			return nil, err
		}
		return []json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}

	records := make([]json.RawMessage, 0)
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, fmt.Errorf("decode collection %s: %w", collection, err)
	}
	return records, nil
}

func (s *Store) Replace(ctx context.Context, collection string, records []json.RawMessage) error {
	return s.ReplaceBatch(ctx, []store.Collection{{Name: collection, Records: records}})
}

// ReplaceBatch writes all collections in one serializable transaction.
func (s *Store) ReplaceBatch(ctx context.Context, collections []store.Collection) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, c := range collections {
		payload, err := encodeRecords(c.Records)
		if err != nil {
			return fmt.Errorf("encode collection %s: %w", c.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO record_collections (name, records, updated_at)
			VALUES ($1, $2::jsonb, now())
			ON CONFLICT (name) DO UPDATE SET records = EXCLUDED.records, updated_at = now()
		`, c.Name, string(payload)); err != nil {
			if isSerializationFailure(err) {
				return fmt.Errorf("replace %s: %w", c.Name, store.ErrConflict)
			}
			return fmt.Errorf("replace %s: %w", c.Name, err)
		}
	}

	return tx.Commit()
}

func encodeRecords(records []json.RawMessage) ([]byte, error) {
	if records == nil {
		records = []json.RawMessage{}
	}
	return json.Marshal(records)
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001"
	}
	return false
}
