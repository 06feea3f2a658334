package xid

import (
	"github.com/google/uuid"
)

// New returns a random identifier such as "req-6f1c...".
func New(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
