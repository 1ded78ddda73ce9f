package badger

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
)

// Table implements storage.Table for BadgerDB.
type Table struct {
	backend *Backend
	info    core.TableInfo
	prefix  []byte
}

var _ storage.Table = (*Table)(nil)

// newTable creates a Table handle for an existing schema.
func newTable(backend *Backend, info core.TableInfo) *Table {
	return &Table{
		backend: backend,
		info:    info,
		prefix:  makeRecordPrefix(info.Name),
	}
}

// Info returns the table schema.
func (t *Table) Info() core.TableInfo {
	return t.info
}

// AddRecords appends records to the table.
// All records are validated before anything is written.
func (t *Table) AddRecords(ctx context.Context, records ...*core.Record) error {
	if len(records) == 0 {
		return nil
	}

	values := make([][]byte, len(records))
	for i, record := range records {
		if err := core.ValidateRecord(record, t.info.Dimensions); err != nil {
			return err
		}
		value, err := storage.MarshalRecord(record)
		if err != nil {
			return err
		}
		values[i] = value
	}

	if t.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	tx := t.backend.db.NewTransaction(true)
	defer func() { tx.Discard() }()

	for i, record := range records {
		key := makeRecordKey(t.info.Name, record.ID)
		err := tx.Set(key, values[i])
		if errors.Is(err, badger.ErrTxnTooBig) {
			// Oversized batches are committed in pieces
			if err := tx.Commit(); err != nil {
				return err
			}
			tx = t.backend.db.NewTransaction(true)
			err = tx.Set(key, values[i])
		}
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetRecord retrieves a single record by ID.
func (t *Table) GetRecord(ctx context.Context, id string) (*core.Record, error) {
	var record *core.Record
	err := t.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		record, err = t.readRecord(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Count returns the number of records in the table.
func (t *Table) Count(ctx context.Context) (int, error) {
	count := 0
	err := t.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = t.prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// ForEach calls fn with batches of up to batchSize records in key order.
func (t *Table) ForEach(ctx context.Context, batchSize int, fn func([]*core.Record) error) error {
	if batchSize <= 0 {
		return fmt.Errorf("%w: batch size must be greater than 0", storage.ErrInvalidQuery)
	}

	// Collect first so fn may write to the table
	var records []*core.Record
	err := t.backend.scanRecords(ctx, t.prefix, func(record *core.Record) error {
		records = append(records, record)
		return nil
	})
	if err != nil {
		return err
	}

	for i := 0; i < len(records); i += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(i+batchSize, len(records))
		if err := fn(records[i:end]); err != nil {
			return err
		}
	}
	return nil
}

// UpdateVectors replaces the vectors of existing records.
func (t *Table) UpdateVectors(ctx context.Context, vectors map[string][]float32) error {
	return t.backend.WithTx(func(tx *badger.Txn) error {
		for id, vector := range vectors {
			record, err := t.readRecord(tx, id)
			if err != nil {
				return err
			}
			record.Vector = vector
			if err := core.ValidateRecord(record, t.info.Dimensions); err != nil {
				return err
			}
			value, err := storage.MarshalRecord(record)
			if err != nil {
				return err
			}
			if err := tx.Set(makeRecordKey(t.info.Name, id), value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// FindSimilar finds records similar to the given vector.
func (t *Table) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return t.backend.FindSimilar(ctx, t.prefix, vector, minSimilarity, limit)
}

// readRecord loads a record within a transaction.
func (t *Table) readRecord(tx *badger.Txn, id string) (*core.Record, error) {
	item, err := tx.Get(makeRecordKey(t.info.Name, id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
		}
		return nil, err
	}

	var record *core.Record
	err = item.Value(func(val []byte) error {
		var err error
		record, err = storage.UnmarshalRecord(val)
		return err
	})
	return record, err
}
