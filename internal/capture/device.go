package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileDevice is a capture source backed by a prerecorded media file, used
// where no camera is available. A stream always delivers the whole file,
// however early the recording is stopped; only the session timer reflects
// the recording time.
type FileDevice struct {
	Path string
	// ContentType overrides the type derived from the file extension.
	ContentType string
}

// Open starts "capturing" the file.
func (d FileDevice) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return &fileStream{f: f, contentType: d.contentType(), released: make(chan struct{})}, nil
}

func (d FileDevice) contentType() string {
	if d.ContentType != "" {
		return d.ContentType
	}
	ext := strings.ToLower(filepath.Ext(d.Path))
	if ct := mime.TypeByExtension(ext); strings.HasPrefix(ct, "video/") {
		if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
			return mediaType
		}
	}
	switch ext {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	default:
		return "video/webm"
	}
}

// fileStream delivers the whole file and then, like a live camera, stays
// open until released.
type fileStream struct {
	f           *os.File
	contentType string
	released    chan struct{}
	once        sync.Once
}

func (s *fileStream) Read(p []byte) (int, error) {
	n, err := s.f.Read(p)
	if errors.Is(err, io.EOF) {
		s.f.Close()
		<-s.released
	}
	return n, err
}

// Close releases the stream. A read still in progress finishes the file
// first, so the capture is never cut short.
func (s *fileStream) Close() error {
	s.once.Do(func() { close(s.released) })
	return nil
}

func (s *fileStream) ContentType() string { return s.contentType }
