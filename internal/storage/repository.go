// Package storage loads parsed table records into a relational database.
//
// Each backend (sqlite, postgres, mssql) registers itself under a kind from an
// init function; import internal/storage/all to link every backend in.
package storage

import (
	"context"
	"fmt"
	"sync"
)

// Config selects and configures a backend.
type Config struct {
	// Kind is a registered backend kind, e.g. "sqlite".
	Kind string

	// DSN is passed to the backend as is.
	DSN string
}

// Repository stores record rows.
//
// Backends implement idempotent loads: rows are deduplicated on RowHash, so
// loading the same page twice stores its rows once.
type Repository interface {
	// Close releases backend resources. Call it once.
	Close()

	// EnsureTable creates the destination table if it does not exist.
	EnsureTable(ctx context.Context, spec TableSpec) error

	// InsertRows inserts rows into table and returns how many were new.
	InsertRows(ctx context.Context, table string, rows []Row) (int64, error)
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind.
//
// Panics if kind is empty, f is nil or kind is already registered.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// Kinds returns the registered backend kinds.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	return out
}
