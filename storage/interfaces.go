package storage

import (
	"context"

	"github.com/poiesic/membank/core"
)

// TableWriter is the narrow write surface used during ingestion.
type TableWriter interface {
	// Info returns the table schema.
	Info() core.TableInfo

	// AddRecords appends a batch of records to the table in one call.
	// Every record is validated against the table's dimensionality first;
	// nothing is written if any record is invalid.
	AddRecords(ctx context.Context, records ...*core.Record) error
}

// Table provides operations on one session table.
// Implementations must be thread-safe and support concurrent access.
type Table interface {
	TableWriter

	// GetRecord retrieves a single record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetRecord(ctx context.Context, id string) (*core.Record, error)

	// Count returns the number of records in the table.
	Count(ctx context.Context) (int, error)

	// ForEach calls fn with batches of up to batchSize records.
	// Iteration stops on the first error returned by fn.
	ForEach(ctx context.Context, batchSize int, fn func([]*core.Record) error) error

	// UpdateVectors replaces the vectors of existing records.
	// Returns ErrNotFound if any record doesn't exist.
	UpdateVectors(ctx context.Context, vectors map[string][]float32) error

	// FindSimilar finds records similar to the given vector.
	// Returns records with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)
}

// TableStore manages the session tables of one memory bank.
type TableStore interface {
	// CreateTable creates a table with the given vector dimensionality.
	// An existing table with the same name is discarded first.
	CreateTable(ctx context.Context, name string, dimensions int) (Table, error)

	// OpenTable opens an existing table.
	// Returns ErrTableNotFound if the table doesn't exist.
	OpenTable(ctx context.Context, name string) (Table, error)

	// DropTable removes a table and all of its records.
	// Returns ErrTableNotFound if the table doesn't exist.
	DropTable(ctx context.Context, name string) error

	// ListTables returns the schemas of all tables, ordered by name.
	ListTables(ctx context.Context) ([]core.TableInfo, error)

	// Close closes the storage backend and releases resources.
	Close() error
}
