package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPrefixesUUID(t *testing.T) {
	id := New("req")
	require.True(t, strings.HasPrefix(id, "req-"))

	_, err := uuid.Parse(strings.TrimPrefix(id, "req-"))
	assert.NoError(t, err)
	assert.NotEqual(t, id, New("req"))
}
