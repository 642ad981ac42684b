package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/maneesh/talentdrop/internal/client"
	"github.com/maneesh/talentdrop/internal/models"
)

// ResumeMaxBytes mirrors the server's resume limit so oversized files are
// caught before upload.
const ResumeMaxBytes = 5 * 1024 * 1024

// API is the part of the intake client the capture flow drives.
type API interface {
	SubmitInfo(ctx context.Context, p client.Profile) (*models.Candidate, error)
	UploadResume(ctx context.Context, candidateID, filename string, r io.Reader) (*models.Candidate, error)
	UploadVideo(ctx context.Context, candidateID, contentType string, r io.Reader) (*models.Candidate, error)
	GetCandidate(ctx context.Context, id string) (*models.Candidate, error)
	DownloadResume(ctx context.Context, fileID string) (*client.File, error)
	StreamVideo(ctx context.Context, fileID string) (*client.File, error)
}

// Form is the first screen: profile fields as typed, plus the resume file.
type Form struct {
	FirstName       string
	LastName        string
	PositionApplied string
	CurrentPosition string
	ExperienceYears string
	ResumePath      string
}

// FieldError is one invalid form field.
type FieldError struct {
	Field   string
	Message string
}

// FormErrors lists every invalid field of a form.
type FormErrors []FieldError

func (e FormErrors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the form locally and returns the profile to submit.
func (f Form) Validate() (client.Profile, error) {
	var errs FormErrors
	required := func(field, label, value string) string {
		value = strings.TrimSpace(value)
		if value == "" {
			errs = append(errs, FieldError{field, label + " is required"})
		}
		return value
	}

	p := client.Profile{
		FirstName:       required("firstName", "First name", f.FirstName),
		LastName:        required("lastName", "Last name", f.LastName),
		PositionApplied: required("positionApplied", "Position applied for", f.PositionApplied),
		CurrentPosition: required("currentPosition", "Current position", f.CurrentPosition),
	}

	if years := required("experienceYears", "Experience", f.ExperienceYears); years != "" {
		n, err := strconv.Atoi(years)
		if err != nil || n < 0 {
			errs = append(errs, FieldError{"experienceYears", "Experience must be a whole number of years"})
		}
		p.ExperienceYears = n
	}

	if msg := checkResume(f.ResumePath); msg != "" {
		errs = append(errs, FieldError{"resume", msg})
	}

	if len(errs) > 0 {
		return client.Profile{}, errs
	}
	return p, nil
}

// checkResume returns a user-facing message when the resume cannot be sent.
func checkResume(path string) string {
	if strings.TrimSpace(path) == "" {
		return "Please upload your resume"
	}
	if !strings.EqualFold(filepath.Ext(path), ".pdf") {
		return "Resume must be a PDF"
	}
	info, err := os.Stat(path)
	if err != nil {
		return "Resume cannot be read: " + err.Error()
	}
	if info.Size() > ResumeMaxBytes {
		return "Resume must be 5MB or smaller"
	}
	return ""
}

// Submit validates the form, creates the candidate and uploads the resume.
// If the resume upload fails the candidate already exists; its record is
// returned with the error so the caller can retry the upload.
func Submit(ctx context.Context, api API, f Form) (*models.Candidate, error) {
	p, err := f.Validate()
	if err != nil {
		return nil, err
	}

	rec, err := api.SubmitInfo(ctx, p)
	if err != nil {
		return nil, err
	}

	updated, err := UploadResume(ctx, api, rec.ID, f.ResumePath)
	if err != nil {
		return rec, err
	}
	return updated, nil
}

// UploadResume uploads the PDF at path for an existing candidate.
func UploadResume(ctx context.Context, api API, candidateID, path string) (*models.Candidate, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open resume: %w", err)
	}
	defer file.Close()

	return api.UploadResume(ctx, candidateID, filepath.Base(path), file)
}
