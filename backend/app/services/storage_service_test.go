package services

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gocloud.dev/blob/memblob"
)

func testData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	return data
}

func newMemStorage(t *testing.T) *StorageService {
	t.Helper()
	s := NewStorageService(memblob.OpenBucket(nil))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStorageSize(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage(t)
	if err := s.Put(ctx, "a.txt", testData(2500)); err != nil {
		t.Fatalf("Put: %v", err)
	}

	size, err := s.Size(ctx, "a.txt")
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 2500 {
		t.Errorf("expected 2500, got %d", size)
	}

	if _, err := s.Size(ctx, "missing.txt"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
	if _, err := s.Size(ctx, "../etc/passwd"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound for traversal, got %v", err)
	}
}

func TestStorageReadRange(t *testing.T) {
	ctx := context.Background()
	s := newMemStorage(t)
	data := testData(2500)
	if err := s.Put(ctx, "a.txt", data); err != nil {
		t.Fatalf("Put: %v", err)
	}

	tests := []struct{ start, end int64 }{
		{0, 999},
		{1000, 1999},
		{2000, 2499},
		{0, 0},
		{2499, 2499},
	}
	for _, tt := range tests {
		got, err := s.ReadRange(ctx, "a.txt", tt.start, tt.end)
		if err != nil {
			t.Fatalf("ReadRange(%d, %d): %v", tt.start, tt.end, err)
		}
		if !bytes.Equal(got, data[tt.start:tt.end+1]) {
			t.Errorf("ReadRange(%d, %d) returned wrong bytes", tt.start, tt.end)
		}
	}

	if _, err := s.ReadRange(ctx, "a.txt", 2000, 2600); err == nil {
		t.Error("expected error reading past EOF")
	}
	if _, err := s.ReadRange(ctx, "a.txt", 10, 5); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestOpenBucketDirectory(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "files")
	bucket, err := OpenBucket(ctx, dir)
	if err != nil {
		t.Fatalf("OpenBucket: %v", err)
	}
	s := NewStorageService(bucket)
	defer s.Close()

	if err := os.WriteFile(filepath.Join(dir, "hello.txt"), []byte("hello world"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	size, err := s.Size(ctx, "hello.txt")
	if err != nil {
		t.Fatalf("Size: %v", err)
	}
	if size != 11 {
		t.Errorf("expected 11, got %d", size)
	}
	got, err := s.ReadRange(ctx, "hello.txt", 6, 10)
	if err != nil {
		t.Fatalf("ReadRange: %v", err)
	}
	if string(got) != "world" {
		t.Errorf("expected %q, got %q", "world", got)
	}
}
