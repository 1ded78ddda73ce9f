package core

import (
	"fmt"
	"regexp"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_-]*$`)

// ValidateRecord validates a Record according to domain rules.
//
// Validation rules:
//   - ID must not be empty
//   - Text must not be empty
//   - Vector length must equal dims when dims > 0
//
// NOT validated:
//   - Metadata (free-form, may be nil)
func ValidateRecord(record *Record, dims int) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyID)
	}

	if record.Text == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyText)
	}

	if dims > 0 && len(record.Vector) != dims {
		return fmt.Errorf("%w: %w: expected %d, got %d",
			ErrInvalidRecord, ErrDimensionMismatch, dims, len(record.Vector))
	}

	return nil
}

// ValidateTableName checks that a session or memory bank name is usable as a
// key prefix and as an SQL identifier.
func ValidateTableName(name string) error {
	if !tableNamePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, name)
	}
	return nil
}
