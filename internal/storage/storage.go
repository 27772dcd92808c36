// Package storage keeps uploaded images in an object store. MinIO, Google
// Cloud Storage and S3 compatible backends are supported.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/imzleep/abibuilder-sub000/config"
)

// Supported backend names.
const (
	BackendMinio = "minio"
	BackendGCS   = "gcs"
	BackendS3    = "s3"
)

// ImageCacheControl is set on every stored object. Keys are never reused,
// so objects can be cached forever.
const ImageCacheControl = "public, max-age=31536000, immutable"

// ErrObjectNotFound is returned by Open when the key does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Size        int64
	ContentType string
}

// ObjectStorage defines common object operations across backends.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
	name    string
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(name string, backend ObjectStorage) *Storage {
	return &Storage{backend: backend, name: name}
}

// New builds the backend selected by cfg and makes sure its bucket exists.
// An empty backend name disables storage and returns nil.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	var (
		backend ObjectStorage
		err     error
	)
	name := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch name {
	case "":
		return nil, nil
	case BackendMinio:
		backend, err = NewMinioClient(cfg.Minio)
	case BackendGCS:
		backend, err = NewGCSClient(ctx, cfg.GCS)
	case BackendS3:
		backend, err = NewS3Client(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s storage: %w", name, err)
	}

	s := NewStorage(name, backend)
	if err := s.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure %s bucket %q: %w", name, backend.Bucket(), err)
	}
	return s, nil
}

// Name returns the backend name.
func (s *Storage) Name() string {
	return s.name
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an object to the configured bucket.
func (s *Storage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Open returns a reader for an object along with its metadata.
func (s *Storage) Open(ctx context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	if err := validKey(key); err != nil {
		return nil, ObjectInfo{}, ErrObjectNotFound
	}
	return s.backend.Open(ctx, key)
}

// Delete removes an object from the configured bucket.
func (s *Storage) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}

func validKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key %q", key)
	}
	return nil
}
