package catalog

import (
	"errors"
	"fmt"
)

var (
	// Table errors
	ErrNoSuchTable        = errors.New("table does not exist")
	ErrTableAlreadyExists = errors.New("table already exists")

	// Namespace errors
	ErrNoSuchNamespace        = errors.New("namespace does not exist")
	ErrNamespaceAlreadyExists = errors.New("namespace already exists")
	ErrNamespaceNotEmpty      = errors.New("namespace is not empty")

	// Commit errors
	ErrCommitFailed = errors.New("commit failed: requirement not met")
)

// CommitConflictError reports a commit whose requirement no longer holds,
// typically because another writer committed first.
type CommitConflictError struct {
	Table       string
	Requirement string
	Expected    any
	Actual      any
	Cause       error
}

// Error implements the error interface.
func (e *CommitConflictError) Error() string {
	if e.Requirement == "" && e.Cause != nil {
		return fmt.Sprintf("commit conflict on table %s: %v", e.Table, e.Cause)
	}
	return fmt.Sprintf("commit conflict on table %s: %s (expected: %v, actual: %v)",
		e.Table, e.Requirement, e.Expected, e.Actual)
}

// Unwrap returns the underlying cause.
func (e *CommitConflictError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error.
func (e *CommitConflictError) Is(target error) bool {
	return target == ErrCommitFailed
}

// IsCommitConflict reports whether err is a commit conflict.
func IsCommitConflict(err error) bool {
	var conflict *CommitConflictError
	return errors.As(err, &conflict)
}
