package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forno/backend/internal/store"
)

func TestLoadCreatesCollectionFile(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	require.NoError(t, err)

	records, err := s.Load(context.Background(), store.Products)
	require.NoError(t, err)
	assert.Empty(t, records)

	payload, err := os.ReadFile(filepath.Join(dir, "products.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(payload))
}

func TestReplaceBatchPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	s, err := New(dir)
	require.NoError(t, err)

	err = store.ReplaceAll(ctx, s, []store.Collection{
		{Name: store.Products, Records: []json.RawMessage{json.RawMessage(`{"id":1,"name":"Café"}`)}},
		{Name: store.Movements, Records: []json.RawMessage{json.RawMessage(`{"id":1}`)}},
	})
	require.NoError(t, err)

	reopened, err := New(dir)
	require.NoError(t, err)
	products, err := reopened.Load(ctx, store.Products)
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.JSONEq(t, `{"id":1,"name":"Café"}`, string(products[0]))

	leftovers, err := filepath.Glob(filepath.Join(dir, "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestLoadRejectsCorruptCollection(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "orders.json"), []byte(`{broken`), 0o644))
	s, err := New(dir)
	require.NoError(t, err)

	_, err = s.Load(context.Background(), store.Orders)
	assert.Error(t, err)
}

func TestNewRequiresDir(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
}
