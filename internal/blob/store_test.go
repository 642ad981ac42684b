package blob

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/maneesh/talentdrop/internal/chunker"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memObjects is an in-memory ObjectStore with failure injection.
type memObjects struct {
	mu       sync.Mutex
	data     map[string][]byte
	failPut  int // fail the n-th put (1-based), 0 = never
	puts     int
	failGets bool
}

func newMemObjects() *memObjects { return &memObjects{data: map[string][]byte{}} }

func (m *memObjects) PutObject(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.failPut != 0 && m.puts == m.failPut {
		return errors.New("object store unavailable")
	}
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *memObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGets {
		return nil, errors.New("object store unavailable")
	}
	d, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, storage.ErrNotFound)
	}
	return d, nil
}

func (m *memObjects) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memObjects) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// failingMeta wraps a MetadataStore and fails CreateBlob.
type failingMeta struct{ MetadataStore }

func (failingMeta) CreateBlob(context.Context, *models.Blob, []*models.Chunk) error {
	return errors.New("database down")
}

// memCache records cache traffic.
type memCache struct {
	blobs map[string]*models.Blob
	sets  int
}

func (c *memCache) GetBlob(_ context.Context, id string) (*models.Blob, error) {
	return c.blobs[id], nil
}

func (c *memCache) SetBlob(_ context.Context, b *models.Blob) error {
	c.sets++
	c.blobs[b.ID] = b
	return nil
}

func newSQLMeta(t *testing.T) *storage.SQLStore {
	t.Helper()
	s, err := storage.NewSQLiteClient(filepath.Join(t.TempDir(), "blob.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.EnsureSchema(context.Background()))
	return s
}

func sha(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func TestChunkedStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	objects := newMemObjects()
	s := NewChunkedStore(objects, newSQLMeta(t), chunker.NewChunker(4))

	data := []byte("%PDF-1.7 resume body")
	blob, err := s.Put(ctx, "resume-1-cv.pdf", "application/pdf", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, int64(len(data)), blob.Size)
	assert.Equal(t, 5, blob.ChunkCount)
	assert.Equal(t, sha(data), blob.SHA256)
	assert.Equal(t, 5, objects.count())

	got, rc, err := s.Open(ctx, blob.ID)
	require.NoError(t, err)
	defer rc.Close()

	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "resume-1-cv.pdf", got.Filename)

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, body)
}

func TestChunkedStore_EmptyContent(t *testing.T) {
	ctx := context.Background()
	s := NewChunkedStore(newMemObjects(), newSQLMeta(t), chunker.NewChunker(4))

	blob, err := s.Put(ctx, "empty", "video/webm", bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Zero(t, blob.ChunkCount)

	_, rc, err := s.Open(ctx, blob.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, body)
}

func TestChunkedStore_Open_NotFound(t *testing.T) {
	s := NewChunkedStore(newMemObjects(), newSQLMeta(t), chunker.NewChunker(4))

	_, _, err := s.Open(context.Background(), "5f0c5a3e-8a57-4a53-9d39-3a8e0cf7a001")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestChunkedStore_Put_ObjectFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	objects := newMemObjects()
	objects.failPut = 3
	meta := newSQLMeta(t)
	s := NewChunkedStore(objects, meta, chunker.NewChunker(2))

	_, err := s.Put(ctx, "v.webm", "video/webm", bytes.NewReader([]byte("abcdefgh")))
	require.Error(t, err)

	assert.Zero(t, objects.count())
	n, err := meta.CountBlobs(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChunkedStore_Put_ReaderFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	objects := newMemObjects()
	s := NewChunkedStore(objects, newSQLMeta(t), chunker.NewChunker(2))

	tooLarge := errors.New("too large")
	r := io.MultiReader(bytes.NewReader([]byte("abcd")), iotestErrReader{tooLarge})

	_, err := s.Put(ctx, "v.webm", "video/webm", r)
	assert.ErrorIs(t, err, tooLarge)
	assert.Zero(t, objects.count())
}

func TestChunkedStore_Put_MetadataFailureCleansUp(t *testing.T) {
	ctx := context.Background()
	objects := newMemObjects()
	s := NewChunkedStore(objects, failingMeta{newSQLMeta(t)}, chunker.NewChunker(2))

	_, err := s.Put(ctx, "v.webm", "video/webm", bytes.NewReader([]byte("abcdef")))
	require.Error(t, err)
	assert.Zero(t, objects.count())
}

func TestChunkedStore_Open_CorruptChunk(t *testing.T) {
	ctx := context.Background()
	objects := newMemObjects()
	s := NewChunkedStore(objects, newSQLMeta(t), chunker.NewChunker(4))

	blob, err := s.Put(ctx, "r.pdf", "application/pdf", bytes.NewReader([]byte("aaaabbbbcccc")))
	require.NoError(t, err)

	objects.data[fmt.Sprintf("chunks/%s/1", blob.ID)] = []byte("XXXX")

	_, rc, err := s.Open(ctx, blob.ID)
	require.NoError(t, err)

	body, err := io.ReadAll(rc)
	assert.ErrorIs(t, err, ErrCorruptChunk)
	assert.Equal(t, []byte("aaaa"), body)
}

func TestChunkedStore_Open_MissingChunkObject(t *testing.T) {
	ctx := context.Background()
	objects := newMemObjects()
	s := NewChunkedStore(objects, newSQLMeta(t), chunker.NewChunker(4))

	blob, err := s.Put(ctx, "r.pdf", "application/pdf", bytes.NewReader([]byte("aaaabbbb")))
	require.NoError(t, err)
	delete(objects.data, fmt.Sprintf("chunks/%s/0", blob.ID))

	_, rc, err := s.Open(ctx, blob.ID)
	require.NoError(t, err)
	_, err = io.ReadAll(rc)
	assert.ErrorIs(t, err, ErrCorruptChunk)
}

func TestChunkedStore_Open_UsesCache(t *testing.T) {
	ctx := context.Background()
	cache := &memCache{blobs: map[string]*models.Blob{}}
	s := NewChunkedStore(newMemObjects(), newSQLMeta(t), chunker.NewChunker(4), WithCache(cache))

	blob, err := s.Put(ctx, "r.pdf", "application/pdf", bytes.NewReader([]byte("data")))
	require.NoError(t, err)

	_, _, err = s.Open(ctx, blob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	_, _, err = s.Open(ctx, blob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets, "second open should be served from cache")
}

func TestChunkedStore_FSObjects(t *testing.T) {
	ctx := context.Background()
	objects, err := storage.NewFSObjectStore(t.TempDir())
	require.NoError(t, err)
	s := NewChunkedStore(objects, newSQLMeta(t), chunker.NewChunker(1024))

	data := bytes.Repeat([]byte{0x1a, 0x45, 0xdf, 0xa3}, 1000)
	blob, err := s.Put(ctx, "video-1.webm", "video/webm", bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 4, blob.ChunkCount)

	_, rc, err := s.Open(ctx, blob.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, data, body)
}

type iotestErrReader struct{ err error }

func (r iotestErrReader) Read([]byte) (int, error) { return 0, r.err }
