package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"

	"github.com/maneesh/talentdrop/internal/chunker"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/storage"
)

// chunkReader streams a blob one chunk at a time, verifying each chunk hash
// before handing out its bytes.
type chunkReader struct {
	ctx     context.Context
	objects ObjectStore
	chunks  []*models.Chunk
	next    int
	buf     []byte
	err     error
}

func newChunkReader(ctx context.Context, objects ObjectStore, chunks []*models.Chunk) *chunkReader {
	return &chunkReader{ctx: ctx, objects: objects, chunks: chunks}
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.buf) == 0 {
		if r.err != nil {
			return 0, r.err
		}
		if r.next >= len(r.chunks) {
			r.err = io.EOF
			return 0, io.EOF
		}
		r.err = r.fetch()
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *chunkReader) fetch() error {
	chunk := r.chunks[r.next]
	data, err := r.objects.GetObject(r.ctx, chunk.ObjectKey)
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("chunk %d missing: %w", chunk.OrderIndex, ErrCorruptChunk)
	} else if err != nil {
		return fmt.Errorf("failed to download chunk %d: %w", chunk.OrderIndex, err)
	}
	if !chunker.VerifyChunkHash(data, chunk.Hash) {
		return fmt.Errorf("chunk %d: %w", chunk.OrderIndex, ErrCorruptChunk)
	}
	r.buf = data
	r.next++
	return nil
}

func (r *chunkReader) Close() error {
	r.buf = nil
	r.err = errors.New("read on closed blob reader")
	return nil
}

// hasher accumulates the SHA-256 of a whole blob across chunks.
type hasher struct {
	h hash.Hash
}

func newHasher() *hasher { return &hasher{h: sha256.New()} }

func (h *hasher) Write(p []byte) { h.h.Write(p) }

func (h *hasher) Sum() string { return hex.EncodeToString(h.h.Sum(nil)) }
