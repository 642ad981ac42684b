package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// FSObjectStore stores blob chunks as files below a root directory.
// Object keys map directly to relative paths.
type FSObjectStore struct {
	root string
}

// NewFSObjectStore creates a filesystem object store rooted at root
func NewFSObjectStore(root string) (*FSObjectStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create object root: %w", err)
	}
	return &FSObjectStore{root: root}, nil
}

// PutObject writes data under objectKey. The file appears atomically.
func (s *FSObjectStore) PutObject(ctx context.Context, objectKey string, data []byte) error {
	_, span := tracer.Start(ctx, "fs.put_object",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
			attribute.Int("size_bytes", len(data)),
		),
	)
	defer span.End()

	path, err := s.objectPath(objectKey)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		span.RecordError(err)
		return fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".object-*")
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		span.RecordError(err)
		return fmt.Errorf("write object data: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		span.RecordError(err)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		span.RecordError(err)
		return fmt.Errorf("rename object: %w", err)
	}
	return nil
}

// GetObject reads the object stored under objectKey
func (s *FSObjectStore) GetObject(ctx context.Context, objectKey string) ([]byte, error) {
	_, span := tracer.Start(ctx, "fs.get_object",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
		),
	)
	defer span.End()

	path, err := s.objectPath(objectKey)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %s: %w", objectKey, ErrNotFound)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read object %s: %w", objectKey, err)
	}
	return data, nil
}

// DeleteObject removes the object. Missing objects are not an error.
func (s *FSObjectStore) DeleteObject(ctx context.Context, objectKey string) error {
	_, span := tracer.Start(ctx, "fs.delete_object",
		trace.WithAttributes(
			attribute.String("object_key", objectKey),
		),
	)
	defer span.End()

	path, err := s.objectPath(objectKey)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		span.RecordError(err)
		return fmt.Errorf("delete object %s: %w", objectKey, err)
	}
	return nil
}

// CountObjects returns the number of stored objects
func (s *FSObjectStore) CountObjects() (int, error) {
	count := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && !strings.HasPrefix(d.Name(), ".") {
			count++
		}
		return nil
	})
	return count, err
}

// objectPath resolves a key below root, refusing keys that escape it.
func (s *FSObjectStore) objectPath(objectKey string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(objectKey))
	if objectKey == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", objectKey)
	}
	return filepath.Join(s.root, clean), nil
}
