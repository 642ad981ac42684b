// Package blob stores binary uploads (resumes, videos) as ordered, hashed
// chunks in an object store, with metadata kept in the record database.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maneesh/talentdrop/internal/chunker"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("talentdrop-blob")

var (
	// ErrNotFound is returned when no blob has the requested identifier.
	ErrNotFound = errors.New("blob not found")

	// ErrCorruptChunk is returned mid-read when a chunk fails hash verification.
	ErrCorruptChunk = errors.New("blob chunk hash mismatch")
)

// Store persists arbitrary binary content addressed by an opaque identifier.
type Store interface {
	// Put streams r into the store. On error no blob becomes visible.
	Put(ctx context.Context, filename, contentType string, r io.Reader) (*models.Blob, error)

	// Open returns the blob metadata and a reader over its content.
	// Returns ErrNotFound if the blob does not exist.
	Open(ctx context.Context, id string) (*models.Blob, io.ReadCloser, error)
}

// ObjectStore holds chunk payloads.
type ObjectStore interface {
	PutObject(ctx context.Context, objectKey string, data []byte) error
	GetObject(ctx context.Context, objectKey string) ([]byte, error)
	DeleteObject(ctx context.Context, objectKey string) error
}

// MetadataStore holds blob and chunk rows.
type MetadataStore interface {
	CreateBlob(ctx context.Context, blob *models.Blob, chunks []*models.Chunk) error
	GetBlob(ctx context.Context, blobID string) (*models.Blob, error)
	GetChunks(ctx context.Context, blobID string) ([]*models.Chunk, error)
}

// MetadataCache is an optional read-through cache for blob metadata.
type MetadataCache interface {
	GetBlob(ctx context.Context, id string) (*models.Blob, error)
	SetBlob(ctx context.Context, b *models.Blob) error
}

// ChunkedStore implements Store on top of an ObjectStore and MetadataStore.
type ChunkedStore struct {
	objects ObjectStore
	meta    MetadataStore
	cache   MetadataCache
	chunker *chunker.Chunker
	logger  *slog.Logger
}

// Option configures a ChunkedStore.
type Option func(*ChunkedStore)

// WithCache enables blob metadata caching.
func WithCache(c MetadataCache) Option {
	return func(s *ChunkedStore) { s.cache = c }
}

// WithLogger sets the logger used for non-fatal failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *ChunkedStore) { s.logger = l }
}

// NewChunkedStore creates a chunked blob store.
func NewChunkedStore(objects ObjectStore, meta MetadataStore, c *chunker.Chunker, opts ...Option) *ChunkedStore {
	s := &ChunkedStore{
		objects: objects,
		meta:    meta,
		chunker: c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put splits r into chunks, uploads each one and then commits the metadata.
// Uploaded chunks are removed again if anything fails before the commit.
func (s *ChunkedStore) Put(ctx context.Context, filename, contentType string, r io.Reader) (*models.Blob, error) {
	ctx, span := tracer.Start(ctx, "blob.put",
		trace.WithAttributes(
			attribute.String("filename", filename),
			attribute.String("content_type", contentType),
		),
	)
	defer span.End()

	blobID := uuid.NewString()
	span.SetAttributes(attribute.String("blob_id", blobID))

	whole := newHasher()
	var chunks []*models.Chunk

	size, err := s.chunker.Split(r, func(cd *models.ChunkData) error {
		objectKey := fmt.Sprintf("chunks/%s/%d", blobID, cd.OrderIndex)
		if err := s.objects.PutObject(ctx, objectKey, cd.Data); err != nil {
			return fmt.Errorf("failed to upload chunk %d: %w", cd.OrderIndex, err)
		}
		whole.Write(cd.Data)
		chunks = append(chunks, &models.Chunk{
			ID:         uuid.NewString(),
			BlobID:     blobID,
			OrderIndex: cd.OrderIndex,
			Hash:       cd.Hash,
			ObjectKey:  objectKey,
			Size:       cd.Size,
		})
		return nil
	})
	if err != nil {
		span.RecordError(err)
		s.discard(ctx, chunks)
		return nil, err
	}

	blob := &models.Blob{
		ID:          blobID,
		Filename:    filename,
		ContentType: contentType,
		Size:        size,
		SHA256:      whole.Sum(),
		ChunkCount:  len(chunks),
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.meta.CreateBlob(ctx, blob, chunks); err != nil {
		span.RecordError(err)
		s.discard(ctx, chunks)
		return nil, fmt.Errorf("failed to save blob metadata: %w", err)
	}

	span.SetAttributes(
		attribute.Int64("size", size),
		attribute.Int("chunk_count", len(chunks)),
	)
	return blob, nil
}

// Open looks up blob metadata and returns a reader that fetches chunks in
// order as it is consumed.
func (s *ChunkedStore) Open(ctx context.Context, id string) (*models.Blob, io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "blob.open",
		trace.WithAttributes(
			attribute.String("blob_id", id),
		),
	)
	defer span.End()

	blob, err := s.metadata(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}

	chunks, err := s.meta.GetChunks(ctx, id)
	if err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("failed to get chunks: %w", err)
	}
	if len(chunks) != blob.ChunkCount {
		err := fmt.Errorf("blob %s has %d chunks, want %d: %w", id, len(chunks), blob.ChunkCount, ErrCorruptChunk)
		span.RecordError(err)
		return nil, nil, err
	}

	return blob, newChunkReader(ctx, s.objects, chunks), nil
}

func (s *ChunkedStore) metadata(ctx context.Context, id string) (*models.Blob, error) {
	if s.cache != nil {
		blob, err := s.cache.GetBlob(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "blob cache lookup failed", "blob_id", id, "error", err)
		} else if blob != nil {
			return blob, nil
		}
	}

	blob, err := s.meta.GetBlob(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("blob %s: %w", id, ErrNotFound)
	} else if err != nil {
		return nil, fmt.Errorf("failed to get blob metadata: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.SetBlob(ctx, blob); err != nil {
			s.logger.WarnContext(ctx, "failed to update blob cache", "blob_id", id, "error", err)
		}
	}
	return blob, nil
}

// discard best-effort removes chunk objects of a blob that was never committed.
func (s *ChunkedStore) discard(ctx context.Context, chunks []*models.Chunk) {
	// The request context may already be cancelled; cleanup still has to run.
	ctx = context.WithoutCancel(ctx)
	for _, chunk := range chunks {
		if err := s.objects.DeleteObject(ctx, chunk.ObjectKey); err != nil {
			s.logger.WarnContext(ctx, "failed to remove orphaned chunk", "object_key", chunk.ObjectKey, "error", err)
		}
	}
}
