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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyID indicates the record ID is empty.
	ErrEmptyID = errors.New("record id cannot be empty")

	// ErrEmptyText indicates the record text is empty.
	ErrEmptyText = errors.New("record text cannot be empty")

	// ErrDimensionMismatch indicates a vector length differs from the table schema.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrInvalidTableName indicates a session or bank name is not a safe identifier.
	ErrInvalidTableName = errors.New("invalid table name")

	// ErrInvalidDimensions indicates a non-positive table dimensionality.
	ErrInvalidDimensions = errors.New("dimensions must be greater than 0")
)
