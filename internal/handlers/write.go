package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/maneesh/talentdrop/internal/apperr"
	"github.com/maneesh/talentdrop/internal/candidate"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/response"
	"github.com/maneesh/talentdrop/internal/upload"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("talentdrop-handlers")

// maxInfoBody bounds the submit-info body; it only carries five short fields.
const maxInfoBody = 64 * 1024

// CandidateService is the part of the candidate service the endpoints use.
type CandidateService interface {
	CreateCandidate(ctx context.Context, in candidate.Input) (*models.Candidate, error)
	GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error)
	AttachResume(ctx context.Context, candidateID, blobID string) (*models.Candidate, error)
	AttachVideo(ctx context.Context, candidateID, blobID string) (*models.Candidate, error)
	GetResumeByID(ctx context.Context, fileID string) (*candidate.File, error)
	GetVideoByID(ctx context.Context, fileID string) (*candidate.File, error)
}

// SubmitHandler handles candidate profile submissions
type SubmitHandler struct {
	service CandidateService
	logger  *slog.Logger
}

// NewSubmitHandler creates a new submit handler
func NewSubmitHandler(service CandidateService, logger *slog.Logger) *SubmitHandler {
	return &SubmitHandler{service: service, logger: logger}
}

// ServeHTTP handles POST /candidate/submit-info
func (sh *SubmitHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "submit_info",
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	in, err := decodeInfo(r)
	if err != nil {
		span.RecordError(err)
		response.Error(w, r, sh.logger, err)
		return
	}

	c, err := sh.service.CreateCandidate(ctx, in)
	if err != nil {
		span.RecordError(err)
		response.Error(w, r, sh.logger, err)
		return
	}

	span.SetAttributes(attribute.String("candidate_id", c.ID))
	sh.logger.InfoContext(ctx, "candidate created", "candidate_id", c.ID)
	response.JSON(w, http.StatusCreated, c, "Candidate created successfully. Proceed to upload resume.")
}

// infoRequest mirrors candidate.Input on the wire. Form posts and some
// clients send experienceYears as a string.
type infoRequest struct {
	FirstName       string      `json:"firstName"`
	LastName        string      `json:"lastName"`
	PositionApplied string      `json:"positionApplied"`
	CurrentPosition string      `json:"currentPosition"`
	ExperienceYears flexibleInt `json:"experienceYears"`
}

func decodeInfo(r *http.Request) (candidate.Input, error) {
	var req infoRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(nil, r.Body, maxInfoBody)
		if err := r.ParseMultipartForm(maxInfoBody); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return candidate.Input{}, apperr.Validation("Invalid request body")
		}
		req.FirstName = r.FormValue("firstName")
		req.LastName = r.FormValue("lastName")
		req.PositionApplied = r.FormValue("positionApplied")
		req.CurrentPosition = r.FormValue("currentPosition")
		if err := req.ExperienceYears.parse(r.FormValue("experienceYears")); err != nil {
			return candidate.Input{}, err
		}
	default:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxInfoBody))
		if err != nil {
			return candidate.Input{}, apperr.Validation("Invalid request body")
		}
		if len(bytes.TrimSpace(body)) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				var ae *apperr.Error
				if errors.As(err, &ae) {
					return candidate.Input{}, ae
				}
				return candidate.Input{}, apperr.Validation("Invalid JSON body")
			}
		}
	}

	return candidate.Input{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		PositionApplied: req.PositionApplied,
		CurrentPosition: req.CurrentPosition,
		ExperienceYears: req.ExperienceYears.value,
	}, nil
}

// flexibleInt accepts a JSON number, a numeric string, or null/"" for absent.
type flexibleInt struct {
	value *int
}

func (f *flexibleInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		f.value = nil
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return errNotWholeNumber
		}
		return f.parse(str)
	}
	return f.parse(s)
}

func (f *flexibleInt) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		f.value = nil
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		// Whole numbers written as floats ("3.0") are accepted.
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || fl != float64(int(fl)) {
			return errNotWholeNumber
		}
		n = int(fl)
	}
	f.value = &n
	return nil
}

var (
	errNotWholeNumber = apperr.Validation("Experience years must be a whole number", "experienceYears")
	errNoUpload       = errors.New("upload gate stored no file")
)

// AttachHandler links a file stored by the upload gate to a candidate
type AttachHandler struct {
	service CandidateService
	kind    string
	logger  *slog.Logger
}

// NewResumeHandler creates the handler behind the resume upload gate
func NewResumeHandler(service CandidateService, logger *slog.Logger) *AttachHandler {
	return &AttachHandler{service: service, kind: "resume", logger: logger}
}

// NewVideoHandler creates the handler behind the video upload gate
func NewVideoHandler(service CandidateService, logger *slog.Logger) *AttachHandler {
	return &AttachHandler{service: service, kind: "video", logger: logger}
}

// ServeHTTP handles POST /candidate/upload-resume/{candidateId} and
// POST /candidate/upload-video/{candidateId}
func (ah *AttachHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "attach_"+ah.kind,
		trace.WithSpanKind(trace.SpanKindServer),
	)
	defer span.End()
	r = r.WithContext(ctx)

	candidateID := mux.Vars(r)["candidateId"]
	b, ok := upload.BlobFromContext(ctx)
	if !ok {
		response.Error(w, r, ah.logger, apperr.Internal("Internal Server Error", errNoUpload))
		return
	}

	span.SetAttributes(
		attribute.String("candidate_id", candidateID),
		attribute.String("blob_id", b.ID),
		attribute.Int64("size", b.Size),
	)

	attach, message := ah.service.AttachResume, "Resume uploaded successfully"
	if ah.kind == "video" {
		attach, message = ah.service.AttachVideo, "Video uploaded successfully"
	}

	c, err := attach(ctx, candidateID, b.ID)
	if err != nil {
		span.RecordError(err)
		// The blob stays stored but unreferenced.
		ah.logger.WarnContext(ctx, "attach failed after upload",
			"kind", ah.kind,
			"candidate_id", candidateID,
			"blob_id", b.ID,
			"error", err,
		)
		response.Error(w, r, ah.logger, err)
		return
	}

	ah.logger.InfoContext(ctx, "file attached",
		"kind", ah.kind,
		"candidate_id", c.ID,
		"blob_id", b.ID,
		"size", b.Size,
	)
	response.JSON(w, http.StatusOK, c, message)
}
