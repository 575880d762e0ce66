package io

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestLocalFileIO_WriteAndRead(t *testing.T) {
	ctx := context.Background()
	fileIO := NewLocalFileIO()
	testPath := filepath.Join(t.TempDir(), "a", "b", "data.bin")
	content := []byte("table bytes")

	if err := WriteFile(ctx, fileIO, testPath, content, true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	in, err := fileIO.Open(ctx, testPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if in.Location() != testPath {
		t.Errorf("Location = %s, want %s", in.Location(), testPath)
	}
	length, err := in.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != int64(len(content)) {
		t.Errorf("Length = %d, want %d", length, len(content))
	}

	got, err := ReadFile(ctx, fileIO, testPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content = %s, want %s", got, content)
	}
}

func TestLocalFileIO_ExclusiveCreate(t *testing.T) {
	ctx := context.Background()
	fileIO := NewLocalFileIO()
	testPath := filepath.Join(t.TempDir(), "v1.metadata.json")

	if err := WriteFile(ctx, fileIO, testPath, []byte("first"), true); err != nil {
		t.Fatalf("first WriteFile failed: %v", err)
	}
	if err := WriteFile(ctx, fileIO, testPath, []byte("second"), true); err == nil {
		t.Error("exclusive WriteFile should fail when the file exists")
	}

	if err := WriteFile(ctx, fileIO, testPath, []byte("third"), false); err != nil {
		t.Fatalf("overwrite WriteFile failed: %v", err)
	}
	data, err := os.ReadFile(testPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(data) != "third" {
		t.Errorf("content = %s, want third", data)
	}
}

func TestLocalFileIO_NotExist(t *testing.T) {
	ctx := context.Background()
	fileIO := NewLocalFileIO()
	missing := filepath.Join(t.TempDir(), "missing.parquet")

	if _, err := ReadFile(ctx, fileIO, missing); !errors.Is(err, ErrNotExist) {
		t.Errorf("ReadFile error = %v, want ErrNotExist", err)
	}
	if err := fileIO.Delete(ctx, missing); !errors.Is(err, ErrNotExist) {
		t.Errorf("Delete error = %v, want ErrNotExist", err)
	}

	exists, err := fileIO.Exists(ctx, missing)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if exists {
		t.Error("file should not exist")
	}
}

func TestLocalFileIO_FileScheme(t *testing.T) {
	ctx := context.Background()
	fileIO := NewLocalFileIO()
	testPath := filepath.Join(t.TempDir(), "scheme.txt")

	if err := WriteFile(ctx, fileIO, "file://"+testPath, []byte("x"), true); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	exists, err := fileIO.Exists(ctx, testPath)
	if err != nil {
		t.Fatalf("Exists failed: %v", err)
	}
	if !exists {
		t.Error("file:// path should resolve to the local path")
	}
}

func TestLocalFileIO_ListAndDeleteFiles(t *testing.T) {
	ctx := context.Background()
	fileIO := NewLocalFileIO()
	root := t.TempDir()

	paths := []string{
		filepath.Join(root, "data", "a.parquet"),
		filepath.Join(root, "data", "b.parquet"),
		filepath.Join(root, "metadata", "v1.metadata.json"),
	}
	for _, p := range paths {
		if err := WriteFile(ctx, fileIO, p, []byte("x"), true); err != nil {
			t.Fatalf("WriteFile(%s) failed: %v", p, err)
		}
	}

	files, err := fileIO.ListFiles(ctx, root)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	sort.Strings(files)
	if len(files) != 3 || files[0] != paths[0] {
		t.Errorf("ListFiles = %v, want %v", files, paths)
	}

	// The missing path must not abort the batch.
	batch := append(files, filepath.Join(root, "gone.parquet"))
	if err := fileIO.DeleteFiles(ctx, batch); err != nil {
		t.Fatalf("DeleteFiles failed: %v", err)
	}

	files, err = fileIO.ListFiles(ctx, root)
	if err != nil {
		t.Fatalf("ListFiles failed: %v", err)
	}
	if len(files) != 0 {
		t.Errorf("ListFiles after delete = %v, want empty", files)
	}

	files, err = fileIO.ListFiles(ctx, filepath.Join(root, "nope"))
	if err != nil || files != nil {
		t.Errorf("ListFiles(missing) = %v, %v, want nil, nil", files, err)
	}
}

func TestLocalFileIO_EmptyFile(t *testing.T) {
	ctx := context.Background()
	fileIO := NewLocalFileIO()
	testPath := filepath.Join(t.TempDir(), "empty.txt")

	if err := WriteFile(ctx, fileIO, testPath, nil, false); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	in, err := fileIO.Open(ctx, testPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	length, err := in.Length(ctx)
	if err != nil {
		t.Fatalf("Length failed: %v", err)
	}
	if length != 0 {
		t.Errorf("Length = %d, want 0", length)
	}
}
