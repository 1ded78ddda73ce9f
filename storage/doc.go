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


// Package storage provides the storage abstraction layer for membank.
//
// A memory bank holds named session tables. Each table stores Records
// (identifier, embedding vector, text, metadata) with a fixed vector
// dimensionality declared when the table is created. Creating a table that
// already exists discards its previous contents.
//
// # Constructor Return Type Pattern
//
// Public constructors return interfaces so that backends are swappable:
//
//	store, err := badger.NewTableStore(path)  // returns storage.TableStore
//
// Internal constructors (newTable, etc.) may return concrete types since
// they're only used within the implementation package.
//
// # Backends
//
//   - storage/badger: embedded BadgerDB database per memory bank
//   - storage/postgres: PostgreSQL with the pgvector extension
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
