package domain

import (
	"errors"
	"fmt"

	"github.com/vinicius-lino-figueiredo/docengine/pkg/value"
)

var (
	// ErrPositionalNoMatch is returned when an update path uses the
	// positional $ placeholder but the filter did not match any array
	// element.
	ErrPositionalNoMatch = errors.New("the positional operator did not find the match needed from the query")
	// ErrCannotDropIDIndex is returned when trying to drop the _id index.
	ErrCannotDropIDIndex = errors.New("cannot drop _id index")
	// ErrIndexNotFound is returned when dropping an index that does not
	// exist.
	ErrIndexNotFound = errors.New("index not found")
	// ErrNotFound is returned by FindOne when no document matches.
	ErrNotFound = errors.New("no document found")
	// ErrTargetNil is returned when decoding into a nil target.
	ErrTargetNil = errors.New("target interface is nil")
	// ErrNonPointer is returned when decoding into a non-pointer target.
	ErrNonPointer = errors.New("target is not a pointer")
	// ErrCursorClosed is returned when using a closed cursor.
	ErrCursorClosed = errors.New("cursor is closed")
	// ErrScanBeforeNext is returned when calling Scan before Next.
	ErrScanBeforeNext = errors.New("scan called before next")
	// ErrCollectionNotFound is returned when a named collection does not
	// exist in the registry.
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrCollectionExists is returned when renaming onto an existing
	// collection without dropping it.
	ErrCollectionExists = errors.New("target collection exists")
	// ErrMissingGroupID is returned by $group stages without an _id
	// specification.
	ErrMissingGroupID = errors.New("a group specification must include an _id")
	// ErrIndexExists is returned when creating an index whose name is
	// already used by an index over different keys.
	ErrIndexExists = errors.New("index with this name already exists with different options")
	// ErrNoIndexKeys is returned when creating an index without fields.
	ErrNoIndexKeys = errors.New("index must have at least one key")
)

// ErrInvalidOperator is returned when an unknown or misplaced $-operator is
// found in a filter, update, expression or pipeline stage.
type ErrInvalidOperator struct {
	Operator string
	Reason   string
}

// Error implements [error].
func (e ErrInvalidOperator) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid operator %q: %s", e.Operator, e.Reason)
	}
	return fmt.Sprintf("unknown operator %q", e.Operator)
}

// ErrInvalidFieldName is returned when a field name is not allowed where it
// is used, like a $-prefixed key in a stored document.
type ErrInvalidFieldName struct {
	Field  string
	Reason string
}

// Error implements [error].
func (e ErrInvalidFieldName) Error() string {
	return fmt.Sprintf("invalid field name %q: %s", e.Field, e.Reason)
}

// ErrImmutableField is returned when an update would change _id.
type ErrImmutableField struct {
	Field string
}

// Error implements [error].
func (e ErrImmutableField) Error() string {
	return fmt.Sprintf("performing an update would modify the immutable field %q", e.Field)
}

// ErrDuplicateKey is returned when a write violates a unique index.
type ErrDuplicateKey struct {
	Index string
	Key   value.Value
}

// Error implements [error].
func (e ErrDuplicateKey) Error() string {
	return fmt.Sprintf("duplicate key error, index: %s, dup key: %s", e.Index, value.Format(e.Key))
}

// ErrTypeMismatch is returned when an operator is applied to a value of a type
// it does not accept.
type ErrTypeMismatch struct {
	Op     string
	Want   string
	Actual value.Value
}

// Error implements [error].
func (e ErrTypeMismatch) Error() string {
	return fmt.Sprintf("%s expects %s, got %s", e.Op, e.Want, value.KindOf(e.Actual))
}

// ErrUpdateConflict is returned when two update operators target the same
// path or one path is a prefix of the other.
type ErrUpdateConflict struct {
	Path  string
	Other string
}

// Error implements [error].
func (e ErrUpdateConflict) Error() string {
	return fmt.Sprintf("updating the path %q would create a conflict at %q", e.Path, e.Other)
}

// ErrDecode wraps third party decoding errors.
type ErrDecode struct {
	Target any
}

// Error implements [error].
func (e ErrDecode) Error() string {
	return fmt.Sprintf("cannot decode document into %T", e.Target)
}

// ErrCorruptData is returned when too many records of a dump could not be
// read.
type ErrCorruptData struct {
	CorruptionRate float64
	CorruptItems   int
	DataLength     int
	Threshold      float64
}

// Error implements [error].
func (e ErrCorruptData) Error() string {
	return fmt.Sprintf("%.1f%% of the data is corrupt (%d of %d records), more than the %.1f%% threshold",
		e.CorruptionRate*100, e.CorruptItems, e.DataLength, e.Threshold*100)
}
