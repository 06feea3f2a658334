package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDuplicateName     = errors.New("duplicate name")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrConflict          = errors.New("conflict")
)

// InsufficientStockError describes the first line of a batch that could not
// be covered by current stock.
type InsufficientStockError struct {
	ProductID   int64
	ProductName string
	Available   int
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %q (product %d): available %d, requested %d", e.ProductName, e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Collection names used by the service.
const (
	Products  = "products"
	Movements = "movements"
	Sales     = "sales"
	Orders    = "orders"
	PreSales  = "presales"
	Loyalty   = "loyalty"
	Users     = "users"
)

// RecordStore persists whole named collections of JSON records. Load of an
// unknown collection creates it empty.
type RecordStore interface {
	Load(ctx context.Context, collection string) ([]json.RawMessage, error)
	Replace(ctx context.Context, collection string, records []json.RawMessage) error
}

// Collection is one collection write of a batch.
type Collection struct {
	Name    string
	Records []json.RawMessage
}

// BatchReplacer is implemented by stores that can write several collections
// in one atomic step. Collections are applied in slice order.
type BatchReplacer interface {
	ReplaceBatch(ctx context.Context, collections []Collection) error
}

// ReplaceAll writes every collection, atomically when rs supports it.
func ReplaceAll(ctx context.Context, rs RecordStore, collections []Collection) error {
	if batch, ok := rs.(BatchReplacer); ok {
		return batch.ReplaceBatch(ctx, collections)
	}
	for _, c := range collections {
		if err := rs.Replace(ctx, c.Name, c.Records); err != nil {
			return fmt.Errorf("replace %s: %w", c.Name, err)
		}
	}
	return nil
}

// Decode unmarshals every record of a collection into T.
func Decode[T any](collection string, records []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(records))
	for i, raw := range records {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode %s record %d: %w", collection, i, err)
		}
		out = append(out, item)
	}
	return out, nil
}

// Encode marshals items into raw records.
func Encode[T any](collection string, items []T) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("encode %s record %d: %w", collection, i, err)
		}
		out = append(out, raw)
	}
	return out, nil
}

// CloneRecords deep-copies a record slice so callers cannot alias store state.
func CloneRecords(records []json.RawMessage) []json.RawMessage {
	out := make([]json.RawMessage, len(records))
	for i, raw := range records {
		out[i] = append(json.RawMessage(nil), raw...)
	}
	return out
}
