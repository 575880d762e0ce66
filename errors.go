package lakeutil

import (
	"errors"
	"fmt"

	"github.com/BrobridgeOrg/go-lakeutil/catalog"
)

// Common errors for client operations.
var (
	// Table errors
	ErrTableNotFound      = errors.New("table not found")
	ErrTableAlreadyExists = errors.New("table already exists")

	// Namespace errors
	ErrNamespaceNotFound      = errors.New("namespace not found")
	ErrNamespaceAlreadyExists = errors.New("namespace already exists")
	ErrNamespaceNotEmpty      = errors.New("namespace is not empty")

	// Configuration errors
	ErrInvalidConfig = errors.New("invalid configuration")
)

// TableNotFoundError represents a table not found error with details.
type TableNotFoundError struct {
	Table string
	Cause error
}

// Error implements the error interface.
func (e *TableNotFoundError) Error() string {
	return fmt.Sprintf("table not found: %s", e.Table)
}

// Unwrap returns the underlying cause.
func (e *TableNotFoundError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error.
func (e *TableNotFoundError) Is(target error) bool {
	return target == ErrTableNotFound
}

// NamespaceNotFoundError represents a namespace not found error with details.
type NamespaceNotFoundError struct {
	Namespace string
	Cause     error
}

// Error implements the error interface.
func (e *NamespaceNotFoundError) Error() string {
	return fmt.Sprintf("namespace not found: %s", e.Namespace)
}

// Unwrap returns the underlying cause.
func (e *NamespaceNotFoundError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error.
func (e *NamespaceNotFoundError) Is(target error) bool {
	return target == ErrNamespaceNotFound
}

// ConfigError reports an invalid configuration field.
type ConfigError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Message)
}

// Is reports whether the target matches this error.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// IsCommitConflict reports whether err was caused by another writer
// committing to the table first. The operation can be run again against
// the refreshed table.
func IsCommitConflict(err error) bool {
	return errors.Is(err, catalog.ErrCommitFailed)
}

// mapCatalogError translates catalog sentinels into the client's errors.
// The catalog error stays in the chain.
func mapCatalogError(err error, target string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, catalog.ErrNoSuchTable):
		return &TableNotFoundError{Table: target, Cause: err}
	case errors.Is(err, catalog.ErrNoSuchNamespace):
		return &NamespaceNotFoundError{Namespace: target, Cause: err}
	case errors.Is(err, catalog.ErrTableAlreadyExists):
		return fmt.Errorf("%w: %s: %w", ErrTableAlreadyExists, target, err)
	case errors.Is(err, catalog.ErrNamespaceAlreadyExists):
		return fmt.Errorf("%w: %s: %w", ErrNamespaceAlreadyExists, target, err)
	case errors.Is(err, catalog.ErrNamespaceNotEmpty):
		return fmt.Errorf("%w: %s: %w", ErrNamespaceNotEmpty, target, err)
	}
	return err
}
