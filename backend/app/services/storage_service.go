package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"udpfetch/network"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/memblob"
	"gocloud.dev/gcerrors"
)

var ErrFileNotFound = errors.New("file not found")

// StorageService is the read side of the file store served to clients.
type StorageService struct {
	bucket *blob.Bucket
}

// OpenBucket opens a gocloud bucket URL (file:///srv, mem://, ...). A value
// without a scheme is treated as a local directory and created if missing.
func OpenBucket(ctx context.Context, url string) (*blob.Bucket, error) {
	if url == "" {
		return nil, errors.New("storage url is required")
	}
	if !strings.Contains(url, "://") {
		if err := os.MkdirAll(url, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
		return fileblob.OpenBucket(url, nil)
	}
	return blob.OpenBucket(ctx, url)
}

func NewStorageService(bucket *blob.Bucket) *StorageService {
	return &StorageService{bucket: bucket}
}

// Size returns the byte length of name, or ErrFileNotFound.
func (s *StorageService) Size(ctx context.Context, name string) (int64, error) {
	if !network.ValidFileName(name) {
		return 0, ErrFileNotFound
	}
	attrs, err := s.bucket.Attributes(ctx, name)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return 0, ErrFileNotFound
		}
		return 0, fmt.Errorf("stat %s: %w", name, err)
	}
	return attrs.Size, nil
}

// ReadRange returns bytes [start, end] of name, both ends inclusive.
func (s *StorageService) ReadRange(ctx context.Context, name string, start, end int64) ([]byte, error) {
	if start < 0 || end < start {
		return nil, fmt.Errorf("invalid range [%d, %d]", start, end)
	}
	if !network.ValidFileName(name) {
		return nil, ErrFileNotFound
	}
	length := end - start + 1
	r, err := s.bucket.NewRangeReader(ctx, name, start, length, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if int64(len(data)) != length {
		return nil, fmt.Errorf("read %s [%d, %d]: %w", name, start, end, io.ErrUnexpectedEOF)
	}
	return data, nil
}

// Put stores data under name. Used to seed buckets.
func (s *StorageService) Put(ctx context.Context, name string, data []byte) error {
	if !network.ValidFileName(name) {
		return fmt.Errorf("invalid file name %q", name)
	}
	return s.bucket.WriteAll(ctx, name, data, nil)
}

func (s *StorageService) Close() error { return s.bucket.Close() }
