// Package io provides the storage abstraction used for table data and
// metadata files.
package io

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNotExist is returned when a file does not exist.
var ErrNotExist = errors.New("file does not exist")

// FileIO is the interface for file operations.
type FileIO interface {
	// Open opens a file for reading.
	Open(ctx context.Context, path string) (InputFile, error)

	// Create creates a new file for writing.
	Create(ctx context.Context, path string) (OutputFile, error)

	// Delete deletes a file.
	Delete(ctx context.Context, path string) error

	// Exists checks if a file exists.
	Exists(ctx context.Context, path string) (bool, error)
}

// InputFile represents a readable file.
type InputFile interface {
	Location() string
	Length(ctx context.Context) (int64, error)
	Open(ctx context.Context) (io.ReadCloser, error)
}

// OutputFile represents a writable file.
type OutputFile interface {
	Location() string

	// Create creates the file, failing if it already exists.
	Create(ctx context.Context) (io.WriteCloser, error)

	// CreateOverwrite creates or overwrites the file.
	CreateOverwrite(ctx context.Context) (io.WriteCloser, error)
}

// BulkFileIO extends FileIO with bulk operations.
type BulkFileIO interface {
	FileIO

	// DeleteFiles deletes multiple files.
	DeleteFiles(ctx context.Context, paths []string) error

	// ListFiles lists files under a prefix.
	ListFiles(ctx context.Context, prefix string) ([]string, error)
}

// ReadFile reads a whole file.
func ReadFile(ctx context.Context, fio FileIO, path string) ([]byte, error) {
	in, err := fio.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	r, err := in.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes data to path. With exclusive set the write fails if
// the file already exists.
func WriteFile(ctx context.Context, fio FileIO, path string, data []byte, exclusive bool) error {
	out, err := fio.Create(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	var w io.WriteCloser
	if exclusive {
		w, err = out.Create(ctx)
	} else {
		w, err = out.CreateOverwrite(ctx)
	}
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// IsS3Location reports whether a location uses an S3 scheme.
func IsS3Location(location string) bool {
	return strings.HasPrefix(location, "s3://") || strings.HasPrefix(location, "s3a://")
}
