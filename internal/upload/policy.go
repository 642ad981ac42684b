package upload

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// Default limits.
const (
	DefaultResumeMaxBytes int64 = 5 * 1024 * 1024
	DefaultVideoMaxBytes  int64 = 50 * 1024 * 1024
)

// Policy describes what one upload route accepts.
type Policy struct {
	// Kind names the upload in logs and spans ("resume", "video").
	Kind string
	// Field is the multipart form field carrying the file.
	Field string
	// MaxBytes is the largest accepted file; a file of exactly MaxBytes passes.
	MaxBytes int64
	// Accept reports whether a media type (without parameters) is allowed.
	Accept func(mediaType string) bool
	// Filename derives the stored filename.
	Filename func(original, mediaType string, now time.Time) string
	// MissingMessage is returned when the field is absent.
	MissingMessage string
	// Description names the accepted files in rejection details.
	Description string
}

// ResumePolicy accepts a single PDF in the "resume" field.
func ResumePolicy(maxBytes int64) Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultResumeMaxBytes
	}
	return Policy{
		Kind:     "resume",
		Field:    "resume",
		MaxBytes: maxBytes,
		Accept: func(mediaType string) bool {
			return mediaType == "application/pdf"
		},
		Filename: func(original, _ string, now time.Time) string {
			name := path.Base(strings.ReplaceAll(original, `\`, "/"))
			if name == "." || name == "/" {
				name = "resume.pdf"
			}
			return fmt.Sprintf("resume-%d-%s", now.UnixMilli(), name)
		},
		MissingMessage: "No resume file uploaded",
		Description:    "PDF",
	}
}

// VideoPolicy accepts any video/* file in the "video" field.
func VideoPolicy(maxBytes int64) Policy {
	if maxBytes <= 0 {
		maxBytes = DefaultVideoMaxBytes
	}
	return Policy{
		Kind:     "video",
		Field:    "video",
		MaxBytes: maxBytes,
		Accept: func(mediaType string) bool {
			return strings.HasPrefix(mediaType, "video/") && len(mediaType) > len("video/")
		},
		Filename: func(_, mediaType string, now time.Time) string {
			return fmt.Sprintf("video-%d.%s", now.UnixMilli(), strings.TrimPrefix(mediaType, "video/"))
		},
		MissingMessage: "No video file uploaded",
		Description:    "video",
	}
}
