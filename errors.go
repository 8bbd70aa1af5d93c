// Package proseql implements an embedded, schema-validated, file-backed
// document database. See SPEC_FULL.md for the full component design.
package proseql

import (
	"fmt"

	"github.com/proseql/proseql/internal/codec"
	"github.com/proseql/proseql/internal/entitystore"
	"github.com/proseql/proseql/internal/migrate"
	"github.com/proseql/proseql/internal/persist"
	"github.com/proseql/proseql/internal/query"
	"github.com/proseql/proseql/internal/schema"
	"github.com/proseql/proseql/internal/storage"
)

// ValidationError is raised when input fails schema validation or a
// query option is ill-formed (spec §7).
type ValidationError struct {
	Issues []schema.Issue
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("proseql: validation failed: %v", e.Issues)
}

// NotFoundError is raised when an id lookup fails in findById, update,
// or delete.
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("proseql: %s/%s not found", e.Collection, e.ID)
}

// DuplicateKeyError is raised on a unique or id collision.
type DuplicateKeyError struct {
	Collection string
	Fields     []string
	Value      []any
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("proseql: %s: duplicate key on %v = %v", e.Collection, e.Fields, e.Value)
}

// ForeignKeyError is raised on a ref integrity violation, either on
// mutate (the referenced id does not exist) or on a restricted delete
// (something still references the id being deleted).
type ForeignKeyError struct {
	Collection string
	Relation   string
	ID         string
}

func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf("proseql: %s.%s -> %q violates referential integrity", e.Collection, e.Relation, e.ID)
}

// DanglingReferenceError is raised when a populate can't resolve a ref
// and the relation was not marked optional.
type DanglingReferenceError = query.DanglingReferenceError

// OperationError covers any invariant violation not captured by a more
// specific error type.
type OperationError struct {
	Message string
}

func (e *OperationError) Error() string { return "proseql: " + e.Message }

// StorageError is an adapter I/O failure (including quota).
type StorageError = storage.Error

// SerializationError is a codec encode/decode failure.
type SerializationError = codec.Error

// UnsupportedFormatError is raised when no codec claims an extension.
type UnsupportedFormatError = codec.UnsupportedFormatError

// MigrationError is a registry validation or application failure.
type MigrationError = migrate.Error

func toDuplicateKeyError(collection string, err error) error {
	if dup, ok := err.(*entitystore.DuplicateKeyError); ok {
		return &DuplicateKeyError{Collection: collection, Fields: dup.Fields, Value: dup.Value}
	}
	return err
}

func toValidationError(issues []schema.Issue) *ValidationError {
	return &ValidationError{Issues: issues}
}
