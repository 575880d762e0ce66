package io

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalFileIO implements FileIO for local filesystem.
type LocalFileIO struct{}

// NewLocalFileIO creates a new local file I/O handler.
func NewLocalFileIO() *LocalFileIO {
	return &LocalFileIO{}
}

// Open opens a file for reading.
func (l *LocalFileIO) Open(ctx context.Context, path string) (InputFile, error) {
	return &localInputFile{path: normalizePath(path)}, nil
}

// Create creates a new file for writing.
func (l *LocalFileIO) Create(ctx context.Context, path string) (OutputFile, error) {
	return &localOutputFile{path: normalizePath(path)}, nil
}

// Delete deletes a file.
func (l *LocalFileIO) Delete(ctx context.Context, path string) error {
	err := os.Remove(normalizePath(path))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return err
}

// Exists checks if a file exists.
func (l *LocalFileIO) Exists(ctx context.Context, path string) (bool, error) {
	_, err := os.Stat(normalizePath(path))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// DeleteFiles deletes multiple files. Files that are already gone are
// skipped.
func (l *LocalFileIO) DeleteFiles(ctx context.Context, paths []string) error {
	for _, path := range paths {
		if err := l.Delete(ctx, path); err != nil && !errors.Is(err, ErrNotExist) {
			return fmt.Errorf("failed to delete %s: %w", path, err)
		}
	}
	return nil
}

// ListFiles lists files under a prefix.
func (l *LocalFileIO) ListFiles(ctx context.Context, prefix string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(normalizePath(prefix), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return files, nil
}

// normalizePath removes file:// prefix if present.
func normalizePath(path string) string {
	return strings.TrimPrefix(path, "file://")
}

type localInputFile struct {
	path string
}

func (f *localInputFile) Location() string {
	return f.path
}

func (f *localInputFile) Length(ctx context.Context) (int64, error) {
	info, err := os.Stat(f.path)
	if err != nil {
		return 0, wrapNotExist(err, f.path)
	}
	return info.Size(), nil
}

func (f *localInputFile) Open(ctx context.Context) (io.ReadCloser, error) {
	file, err := os.Open(f.path)
	if err != nil {
		return nil, wrapNotExist(err, f.path)
	}
	return file, nil
}

type localOutputFile struct {
	path string
}

func (f *localOutputFile) Location() string {
	return f.path
}

func (f *localOutputFile) Create(ctx context.Context) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return os.OpenFile(f.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
}

func (f *localOutputFile) CreateOverwrite(ctx context.Context) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return os.Create(f.path)
}

func wrapNotExist(err error, path string) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return err
}
