package chunker

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/maneesh/talentdrop/internal/models"
)

// Chunker handles splitting streams into fixed-size hashed chunks
type Chunker struct {
	chunkSize int64
}

// NewChunker creates a new chunker with the specified chunk size
func NewChunker(chunkSize int64) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1024 * 1024
	}
	return &Chunker{
		chunkSize: chunkSize,
	}
}

// ChunkSize returns the configured chunk size in bytes
func (c *Chunker) ChunkSize() int64 {
	return c.chunkSize
}

// Split reads from a reader and hands each chunk to fn as soon as it is full.
// The chunk buffer is reused, so fn must not retain cd.Data after returning.
// An error from fn stops the split and is returned unchanged.
func (c *Chunker) Split(reader io.Reader, fn func(*models.ChunkData) error) (int64, error) {
	var totalSize int64
	orderIndex := 0
	buffer := make([]byte, c.chunkSize)

	for {
		n, err := io.ReadFull(reader, buffer)

		if n > 0 {
			chunkData := buffer[:n]
			chunk := &models.ChunkData{
				Data:       chunkData,
				OrderIndex: orderIndex,
				Hash:       ComputeHash(chunkData),
				Size:       int64(n),
			}
			if ferr := fn(chunk); ferr != nil {
				return totalSize, ferr
			}
			totalSize += int64(n)
			orderIndex++
		}

		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		} else if err != nil {
			return totalSize, fmt.Errorf("error reading chunk: %w", err)
		}
	}

	return totalSize, nil
}

// ComputeHash computes SHA256 hash of data
func ComputeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// VerifyChunkHash verifies that chunk data matches the expected hash
func VerifyChunkHash(data []byte, expectedHash string) bool {
	return ComputeHash(data) == expectedHash
}
