// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/membank/core"
	"github.com/poiesic/membank/storage"
)

// TableStore implements storage.TableStore for BadgerDB.
// One BadgerDB database holds every session table of a memory bank.
type TableStore struct {
	backend *Backend
	logger  *slog.Logger
}

var _ storage.TableStore = (*TableStore)(nil)

// NewTableStore opens the memory bank database at path.
//
// Returns storage.TableStore interface to enforce abstraction.
func NewTableStore(path string) (storage.TableStore, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return newTableStore(backend), nil
}

// newTableStore is an internal constructor that returns the concrete type.
func newTableStore(backend *Backend) *TableStore {
	return &TableStore{
		backend: backend,
		logger:  slog.Default().With("component", "badger-tables"),
	}
}

// CreateTable creates a table, discarding any previous table of that name.
func (s *TableStore) CreateTable(ctx context.Context, name string, dimensions int) (storage.Table, error) {
	if err := core.ValidateTableName(name); err != nil {
		return nil, err
	}
	if dimensions <= 0 {
		return nil, core.ErrInvalidDimensions
	}

	if err := s.backend.DeletePrefix(makeRecordPrefix(name)); err != nil {
		return nil, fmt.Errorf("failed to clear table %s: %w", name, err)
	}

	info := core.TableInfo{
		Name:       name,
		Dimensions: dimensions,
		CreatedAt:  time.Now().UTC(),
	}
	value, err := storage.MarshalTableInfo(info)
	if err != nil {
		return nil, err
	}

	err = s.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Set(makeTableKey(name), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return nil, err
	}

	s.logger.Info("created table", "table", name, "dimensions", dimensions)
	return newTable(s.backend, info), nil
}

// OpenTable opens an existing table.
func (s *TableStore) OpenTable(ctx context.Context, name string) (storage.Table, error) {
	if err := core.ValidateTableName(name); err != nil {
		return nil, err
	}

	var info core.TableInfo
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		info, err = readTableInfo(tx, name)
		return err
	}, false)
	if err != nil {
		return nil, err
	}

	return newTable(s.backend, info), nil
}

// DropTable removes a table and all of its records.
func (s *TableStore) DropTable(ctx context.Context, name string) error {
	if err := core.ValidateTableName(name); err != nil {
		return err
	}

	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := readTableInfo(tx, name); err != nil {
			return err
		}
		if err := tx.Delete(makeTableKey(name)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return err
	}

	if err := s.backend.DeletePrefix(makeRecordPrefix(name)); err != nil {
		return fmt.Errorf("failed to clear table %s: %w", name, err)
	}
	s.logger.Info("dropped table", "table", name)
	return nil
}

// ListTables returns the schemas of all tables, ordered by name.
func (s *TableStore) ListTables(ctx context.Context) ([]core.TableInfo, error) {
	var tables []core.TableInfo
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeTablesPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var info core.TableInfo
			err := iter.Item().Value(func(val []byte) error {
				var err error
				info, err = storage.UnmarshalTableInfo(val)
				return err
			})
			if err != nil {
				return err
			}
			tables = append(tables, info)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return tables, nil
}

// Close closes the underlying database.
func (s *TableStore) Close() error {
	return s.backend.Close()
}

// readTableInfo loads a table schema within a transaction.
func readTableInfo(tx *badger.Txn, name string) (core.TableInfo, error) {
	item, err := tx.Get(makeTableKey(name))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.TableInfo{}, fmt.Errorf("%w: %s", storage.ErrTableNotFound, name)
		}
		return core.TableInfo{}, err
	}

	var info core.TableInfo
	err = item.Value(func(val []byte) error {
		var err error
		info, err = storage.UnmarshalTableInfo(val)
		return err
	})
	return info, err
}
