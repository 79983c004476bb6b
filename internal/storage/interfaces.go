// Package storage defines the persistence boundary of the engine: a
// generic record store for entities, intentions, patterns, insights, and
// outcome events, plus the async recorder and circuit-breaker decorators
// layered on top of it.
//
// Persistence is best-effort by design: the engine never blocks a
// conversation turn on a store write, and store failures degrade to
// logging, never to processing errors.
package storage

import (
	"context"
	"errors"

	"github.com/scrypster/attune/pkg/types"
)

// ErrNotFound is returned by Query implementations when asked for a
// specific record that does not exist.
var ErrNotFound = errors.New("record not found")

// RecordStore persists engine records keyed by (kind, conversation,
// key). Save upserts: writing an existing key replaces its payload.
type RecordStore interface {
	// Save upserts a single record.
	Save(ctx context.Context, record *types.Record) error

	// Query returns records matching the filter, most recently updated
	// first. A zero filter returns everything (bounded by Limit).
	Query(ctx context.Context, filter types.RecordFilter) ([]*types.Record, error)

	// Close releases the underlying connections.
	Close() error
}
