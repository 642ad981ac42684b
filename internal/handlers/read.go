package handlers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/maneesh/talentdrop/internal/apperr"
	"github.com/maneesh/talentdrop/internal/candidate"
	"github.com/maneesh/talentdrop/internal/response"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// streamBufferSize is how much of a file is buffered ahead of the response.
const streamBufferSize = 64 * 1024

// FetchHandler handles candidate record lookups
type FetchHandler struct {
	service CandidateService
	logger  *slog.Logger
}

// NewFetchHandler creates a new fetch handler
func NewFetchHandler(service CandidateService, logger *slog.Logger) *FetchHandler {
	return &FetchHandler{service: service, logger: logger}
}

// ServeHTTP handles GET /candidate/{id}
func (fh *FetchHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "get_candidate",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	id := mux.Vars(r)["id"]
	span.SetAttributes(attribute.String("candidate_id", id))

	c, err := fh.service.GetCandidateByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		response.Error(w, r, fh.logger, err)
		return
	}

	span.SetAttributes(attribute.String("stage", string(c.Stage())))
	response.JSON(w, http.StatusOK, c, "Candidate fetched successfully")
}

// DownloadHandler streams a stored resume or video back to the caller
type DownloadHandler struct {
	open               func(*http.Request, string) (*candidate.File, error)
	kind               string
	defaultContentType string
	attachment         bool
	logger             *slog.Logger
}

// NewResumeDownloadHandler serves resumes as attachments
func NewResumeDownloadHandler(service CandidateService, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		open: func(r *http.Request, id string) (*candidate.File, error) {
			return service.GetResumeByID(r.Context(), id)
		},
		kind:               "resume",
		defaultContentType: "application/pdf",
		attachment:         true,
		logger:             logger,
	}
}

// NewVideoStreamHandler serves videos inline for playback
func NewVideoStreamHandler(service CandidateService, logger *slog.Logger) *DownloadHandler {
	return &DownloadHandler{
		open: func(r *http.Request, id string) (*candidate.File, error) {
			return service.GetVideoByID(r.Context(), id)
		},
		kind:               "video",
		defaultContentType: "video/mp4",
		logger:             logger,
	}
}

// ServeHTTP handles GET /candidate/download-resume/{fileId} and
// GET /candidate/stream-video/{fileId}
func (dh *DownloadHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "stream_"+dh.kind,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	fileID := mux.Vars(r)["fileId"]
	span.SetAttributes(attribute.String("file_id", fileID))

	file, err := dh.open(r, fileID)
	if err != nil {
		span.RecordError(err)
		response.Error(w, r, dh.logger, err)
		return
	}
	defer file.Body.Close()

	// Pull the first chunk before committing to a 200 so that an early
	// storage failure can still be reported as an error envelope.
	body := bufio.NewReaderSize(file.Body, streamBufferSize)
	if _, err := body.Peek(1); err != nil && !errors.Is(err, io.EOF) {
		span.RecordError(err)
		response.Error(w, r, dh.logger, apperr.Stream("Error streaming file", err))
		return
	}

	contentType := file.Blob.ContentType
	if contentType == "" {
		contentType = dh.defaultContentType
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(file.Blob.Size, 10))
	if dh.attachment {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Blob.Filename))
	}
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, body)
	span.SetAttributes(attribute.Int64("bytes_sent", n))
	if err != nil {
		span.RecordError(err)
		dh.logger.ErrorContext(ctx, "stream aborted",
			"kind", dh.kind,
			"file_id", fileID,
			"bytes_sent", n,
			"size", file.Blob.Size,
			"error", err,
		)
		// Headers are gone; abort so the client sees a truncated response.
		panic(http.ErrAbortHandler)
	}
}
