// Package source is the C1 Source Reader: it streams rows from a
// named datasource/table in bounded-size batches with an optional
// predicate, and exposes the two auxiliary queries strategies need
// (a scalar COUNT(*) and table/primary-key introspection). It issues
// only SELECT statements — no server-side hashing, grouping, or
// ordering — keeping all per-row computation in the engine (spec
// §4.1 rationale).
package source

import (
	"context"

	"github.com/relsnap/cdc/internal/cdctypes"
)

// TableInfo describes a table's columns and primary key, as returned
// by Reader.TableInfo.
type TableInfo struct {
	Columns     []string
	PrimaryKeys []string
}

// BatchIterator is a lazy, finite sequence of batches. Calling Next
// blocks until either a batch is ready, the sequence is exhausted, or
// ctx is cancelled. Memory usage is bounded to one batch at a time.
type BatchIterator interface {
	// Next returns the next batch. ok is false once the sequence is
	// exhausted; the iterator must not be used again after that.
	Next(ctx context.Context) (rows []cdctypes.Row, ok bool, err error)
	// Close releases the underlying connection/cursor. Safe to call
	// multiple times and after the sequence is exhausted.
	Close(ctx context.Context) error
}

// Reader is the C1 Source Reader contract (spec §4.1).
type Reader interface {
	// FetchBatches streams table in batches of at most batchSize rows.
	// where, if non-empty, is appended as a raw SQL WHERE clause.
	FetchBatches(ctx context.Context, datasource, qualifiedTable string, batchSize int, where string) (BatchIterator, error)

	// ExecuteScalar runs a single-row, single-column query (used only
	// for SELECT COUNT(*)) and returns its value.
	ExecuteScalar(ctx context.Context, datasource, query string) (any, error)

	// TableInfo returns column names and primary key columns for table.
	TableInfo(ctx context.Context, datasource, qualifiedTable string) (TableInfo, error)

	// ColumnDataType returns the source dialect's declared type name
	// for one column, used by the hash-partition strategy to reject
	// non-integer primary keys before issuing a MOD/CAST predicate
	// against them (spec §4.5.3 partition predicate limitation).
	ColumnDataType(ctx context.Context, datasource, qualifiedTable, column string) (string, error)

	// Close disposes every datasource connection pool. Called once at
	// process shutdown (spec §3.1 Datasource lifecycle).
	Close()
}
