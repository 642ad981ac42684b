// Package candidate implements the intake operations on candidate records:
// creation, lookup, attaching uploaded files and retrieving them again.
package candidate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/maneesh/talentdrop/internal/apperr"
	"github.com/maneesh/talentdrop/internal/blob"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("talentdrop-candidate")

// Repository persists candidate records.
type Repository interface {
	CreateCandidate(ctx context.Context, c *models.Candidate) error
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	SetResumeFile(ctx context.Context, candidateID, blobID string) (*models.Candidate, error)
	SetVideoFile(ctx context.Context, candidateID, blobID string) (*models.Candidate, error)
}

// Cache is an optional read-through cache for candidate records.
type Cache interface {
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	SetCandidate(ctx context.Context, c *models.Candidate) error
	InvalidateCandidate(ctx context.Context, id string) error
}

// Input is the profile submitted on the first intake screen. ExperienceYears
// is a pointer so that an omitted value can be told apart from zero.
type Input struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	PositionApplied string `json:"positionApplied"`
	CurrentPosition string `json:"currentPosition"`
	ExperienceYears *int   `json:"experienceYears"`
}

// File is a stored resume or video opened for reading. Callers must close Body.
type File struct {
	Blob *models.Blob
	Body io.ReadCloser
}

// Service implements the candidate operations.
type Service struct {
	repo   Repository
	blobs  blob.Store
	cache  Cache
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables candidate record caching.
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets the logger used for cache failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService creates a candidate service.
func NewService(repo Repository, blobs blob.Store, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		blobs:  blobs,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ValidID reports whether id is a well-formed record or blob identifier.
func ValidID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// CreateCandidate validates the profile and stores a new record with no
// files attached.
func (s *Service) CreateCandidate(ctx context.Context, in Input) (*models.Candidate, error) {
	ctx, span := tracer.Start(ctx, "candidate.create")
	defer span.End()

	c, err := in.validate()
	if err != nil {
		return nil, err
	}
	c.ID = uuid.NewString()
	span.SetAttributes(attribute.String("candidate_id", c.ID))

	if err := s.repo.CreateCandidate(ctx, c); err != nil {
		span.RecordError(err)
		return nil, apperr.Storage("Database Error", err)
	}
	return c, nil
}

func (in Input) validate() (*models.Candidate, error) {
	c := &models.Candidate{
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		PositionApplied: strings.TrimSpace(in.PositionApplied),
		CurrentPosition: strings.TrimSpace(in.CurrentPosition),
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"firstName", c.FirstName},
		{"lastName", c.LastName},
		{"positionApplied", c.PositionApplied},
		{"currentPosition", c.CurrentPosition},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if in.ExperienceYears == nil {
		missing = append(missing, "experienceYears")
	}
	if len(missing) > 0 {
		return nil, apperr.Validation("Missing required fields: "+strings.Join(missing, ", "), missing...)
	}

	if *in.ExperienceYears < 0 {
		return nil, apperr.Validation("Experience years must be zero or more", "experienceYears")
	}
	c.ExperienceYears = *in.ExperienceYears
	return c, nil
}

// GetCandidateByID returns a candidate record.
func (s *Service) GetCandidateByID(ctx context.Context, id string) (*models.Candidate, error) {
	ctx, span := tracer.Start(ctx, "candidate.get",
		trace.WithAttributes(attribute.String("candidate_id", id)),
	)
	defer span.End()

	if !ValidID(id) {
		return nil, apperr.Validation("Invalid candidate ID")
	}

	if s.cache != nil {
		c, err := s.cache.GetCandidate(ctx, id)
		if err != nil {
			s.logger.WarnContext(ctx, "candidate cache lookup failed", "candidate_id", id, "error", err)
		} else if c != nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return c, nil
		}
	}

	c, err := s.repo.GetCandidate(ctx, id)
	if err != nil {
		return nil, s.recordError(span, err)
	}

	if s.cache != nil {
		if err := s.cache.SetCandidate(ctx, c); err != nil {
			s.logger.WarnContext(ctx, "failed to update candidate cache", "candidate_id", id, "error", err)
		}
	}
	return c, nil
}

// AttachResume points the candidate at an already stored resume blob,
// replacing any previous one.
func (s *Service) AttachResume(ctx context.Context, candidateID, blobID string) (*models.Candidate, error) {
	return s.attach(ctx, "candidate.attach_resume", candidateID, blobID, s.repo.SetResumeFile)
}

// AttachVideo points the candidate at an already stored video blob,
// replacing any previous one.
func (s *Service) AttachVideo(ctx context.Context, candidateID, blobID string) (*models.Candidate, error) {
	return s.attach(ctx, "candidate.attach_video", candidateID, blobID, s.repo.SetVideoFile)
}

func (s *Service) attach(ctx context.Context, name, candidateID, blobID string,
	set func(context.Context, string, string) (*models.Candidate, error)) (*models.Candidate, error) {
	ctx, span := tracer.Start(ctx, name,
		trace.WithAttributes(
			attribute.String("candidate_id", candidateID),
			attribute.String("blob_id", blobID),
		),
	)
	defer span.End()

	if !ValidID(candidateID) {
		return nil, apperr.Validation("Invalid candidate ID")
	}

	c, err := set(ctx, candidateID, blobID)
	if err != nil {
		return nil, s.recordError(span, err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateCandidate(ctx, candidateID); err != nil {
			s.logger.WarnContext(ctx, "failed to invalidate candidate cache", "candidate_id", candidateID, "error", err)
		}
	}
	return c, nil
}

// GetResumeByID opens a stored resume.
func (s *Service) GetResumeByID(ctx context.Context, fileID string) (*File, error) {
	return s.openFile(ctx, "candidate.get_resume", fileID, "Invalid resume file ID", "Resume not found")
}

// GetVideoByID opens a stored video.
func (s *Service) GetVideoByID(ctx context.Context, fileID string) (*File, error) {
	return s.openFile(ctx, "candidate.get_video", fileID, "Invalid video file ID", "Video not found")
}

func (s *Service) openFile(ctx context.Context, name, fileID, invalidMsg, notFoundMsg string) (*File, error) {
	ctx, span := tracer.Start(ctx, name,
		trace.WithAttributes(attribute.String("blob_id", fileID)),
	)
	defer span.End()

	if !ValidID(fileID) {
		return nil, apperr.Validation(invalidMsg)
	}

	b, body, err := s.blobs.Open(ctx, fileID)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, apperr.NotFound(notFoundMsg)
	} else if err != nil {
		span.RecordError(err)
		return nil, apperr.Storage("Error streaming file", err)
	}
	return &File{Blob: b, Body: body}, nil
}

func (s *Service) recordError(span trace.Span, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.NotFound("Candidate not found")
	}
	span.RecordError(err)
	return apperr.Storage("Database Error", fmt.Errorf("candidate lookup: %w", err))
}
