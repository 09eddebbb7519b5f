// Package store provides the Postgres-backed persistence layer: idempotent
// table materialization from the schema catalog and transactional row writes.
package store

import (
	"context"

	"github.com/attolytics/attolytics/internal/schema"
)

// RowWriter inserts rows inside an open transaction.
type RowWriter interface {
	InsertRow(ctx context.Context, table string, values map[string]any) error
}

// Store is the persistence surface used by the ingestor and by startup.
type Store interface {
	// Materialize ensures every table in the catalog physically exists.
	// Safe to re-run; the service must not serve traffic until it succeeds.
	Materialize(ctx context.Context, s *schema.Schema) error
	// RunInTx runs fn inside one transaction, committing when fn returns nil
	// and rolling back otherwise.
	RunInTx(ctx context.Context, fn func(ctx context.Context, w RowWriter) error) error
	Close() error
}
