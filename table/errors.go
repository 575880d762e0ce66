package table

import "errors"

var (
	ErrColumnNotFound   = errors.New("column not found")
	ErrDuplicateColumn  = errors.New("column already exists")
	ErrSchemaMismatch   = errors.New("record does not match table schema")
	ErrInvalidCondition = errors.New("invalid merge condition")
	ErrSnapshotNotFound = errors.New("snapshot not found")
)
