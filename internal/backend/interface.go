package backend

import (
	"context"

	"bilancio/internal/ledger"
)

// CleanupFunc releases backend resources
type CleanupFunc func() error

// Result contains the store instance and optional cleanup function
type Result struct {
	Store   ledger.Store
	Cleanup CleanupFunc
}

// Factory creates ledger stores based on configuration
type Factory interface {
	CreateStore(ctx context.Context, backendType Type) (*Result, error)
}

// Type represents the kind of persistence backend
type Type string

const (
	SQLiteBackend Type = "sqlite"
	MemoryBackend Type = "memory"
)

// String implements fmt.Stringer
func (t Type) String() string {
	return string(t)
}

// IsValid returns true if the backend type is known
func (t Type) IsValid() bool {
	switch t {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
