package dedup

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument matches every InvalidArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSchemaMismatch matches every SchemaMismatchError.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrNotFound matches every NotFoundError.
	ErrNotFound = errors.New("not found")
)

// InvalidArgumentError reports a missing or empty required argument.
type InvalidArgumentError struct {
	Argument string
	Reason   string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Argument, e.Reason)
}

// Is reports whether target is ErrInvalidArgument.
func (e *InvalidArgumentError) Is(target error) bool {
	return target == ErrInvalidArgument
}

// SchemaMismatchError reports key columns absent from the table schema.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: column(s) not in table schema: %s", strings.Join(e.Missing, ", "))
}

// Is reports whether target is ErrSchemaMismatch.
func (e *SchemaMismatchError) Is(target error) bool {
	return target == ErrSchemaMismatch
}

// NotFoundError reports that something required does not exist.
type NotFoundError struct {
	What string
}

func (e *NotFoundError) Error() string {
	return e.What + " not found"
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
