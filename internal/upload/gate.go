// Package upload intercepts multipart file uploads, enforces a per-route
// policy on type and size, and stores accepted files in the blob store before
// the route handler runs.
package upload

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/maneesh/talentdrop/internal/apperr"
	"github.com/maneesh/talentdrop/internal/blob"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/response"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("talentdrop-upload")

// ErrTooLarge is returned by the limited reader once a file exceeds its policy.
var ErrTooLarge = errors.New("upload exceeds size limit")

type contextKey struct{}

// WithBlob returns a context carrying the stored upload.
func WithBlob(ctx context.Context, b *models.Blob) context.Context {
	return context.WithValue(ctx, contextKey{}, b)
}

// BlobFromContext returns the blob stored by the gate, if any.
func BlobFromContext(ctx context.Context) (*models.Blob, bool) {
	b, ok := ctx.Value(contextKey{}).(*models.Blob)
	return b, ok && b != nil
}

// Gate stores uploaded files that satisfy a Policy.
type Gate struct {
	store  blob.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewGate creates an upload gate writing to store.
func NewGate(store blob.Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{store: store, logger: logger, now: time.Now}
}

// Middleware accepts the policy's file field, stores it and passes the
// resulting blob to next through the request context. Rejected uploads never
// reach next.
func (g *Gate) Middleware(p Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			b, err := g.Accept(r, p)
			if err != nil {
				response.Error(w, r, g.logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithBlob(r.Context(), b)))
		})
	}
}

// Accept reads the multipart body of r and stores the file in the policy's
// field. Parts before it are skipped; parts after it are never read.
func (g *Gate) Accept(r *http.Request, p Policy) (*models.Blob, error) {
	ctx, span := tracer.Start(r.Context(), "upload.accept",
		trace.WithAttributes(
			attribute.String("kind", p.Kind),
			attribute.Int64("max_bytes", p.MaxBytes),
		),
	)
	defer span.End()

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, apperr.Validation(p.MissingMessage)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, apperr.Validation(p.MissingMessage)
		}
		if err != nil {
			span.RecordError(err)
			return nil, apperr.Validation("Malformed multipart body")
		}
		if part.FormName() != p.Field || part.FileName() == "" {
			part.Close()
			continue
		}

		b, err := g.save(ctx, part, p)
		part.Close()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		span.SetAttributes(
			attribute.String("blob_id", b.ID),
			attribute.Int64("size", b.Size),
		)
		return b, nil
	}
}

func (g *Gate) save(ctx context.Context, part *multipart.Part, p Policy) (*models.Blob, error) {
	mediaType, _, err := mime.ParseMediaType(part.Header.Get("Content-Type"))
	if errors.Is(err, mime.ErrInvalidMediaParameter) {
		// Recorders send unquoted codec lists such as "video/webm;codecs=vp8,opus".
		err = nil
	}
	if err != nil || !p.Accept(mediaType) {
		g.logger.InfoContext(ctx, "upload rejected",
			"kind", p.Kind,
			"content_type", part.Header.Get("Content-Type"),
			"reason", "type",
		)
		return nil, apperr.UploadRejected("unsupported media type", "Only "+p.Description+" files are allowed")
	}

	filename := p.Filename(part.FileName(), mediaType, g.now())
	b, err := g.store.Put(ctx, filename, mediaType, newLimitedReader(part, p.MaxBytes))
	if errors.Is(err, ErrTooLarge) {
		g.logger.InfoContext(ctx, "upload rejected", "kind", p.Kind, "reason", "size", "max_bytes", p.MaxBytes)
		return nil, apperr.UploadRejected("file too large", "File exceeds the "+humanBytes(p.MaxBytes)+" limit")
	}
	if err != nil {
		return nil, apperr.Storage("Error uploading file", err)
	}
	return b, nil
}
