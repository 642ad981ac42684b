package capture

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/maneesh/talentdrop/internal/client"
	"github.com/maneesh/talentdrop/internal/models"
)

// ReviewResult is the final screen: the stored record and local copies of
// both files. A file that could not be fetched leaves its path empty and
// its error set.
type ReviewResult struct {
	Candidate  *models.Candidate
	ResumePath string
	ResumeErr  error
	VideoPath  string
	VideoErr   error
}

// Review re-fetches the candidate and streams both files into dir.
func Review(ctx context.Context, api API, candidateID, dir string, logger *slog.Logger) (*ReviewResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	rec, err := api.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("load candidate: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}

	res := &ReviewResult{Candidate: rec}

	if rec.ResumeFileID != nil {
		res.ResumePath, res.ResumeErr = save(dir, "resume-"+rec.ID+".pdf", func() (*client.File, error) {
			return api.DownloadResume(ctx, *rec.ResumeFileID)
		})
		if res.ResumeErr != nil {
			logger.Warn("error fetching resume", "candidate_id", rec.ID, "error", res.ResumeErr)
		}
	}

	if rec.VideoFileID != nil {
		res.VideoPath, res.VideoErr = save(dir, "video-"+rec.ID, func() (*client.File, error) {
			return api.StreamVideo(ctx, *rec.VideoFileID)
		})
		if res.VideoErr != nil {
			logger.Warn("error fetching video", "candidate_id", rec.ID, "error", res.VideoErr)
		}
	}

	return res, nil
}

// save streams a fetched file into dir. A name without extension gets one
// from the response content type.
func save(dir, name string, fetch func() (*client.File, error)) (string, error) {
	f, err := fetch()
	if err != nil {
		return "", err
	}
	defer f.Body.Close()

	if filepath.Ext(name) == "" {
		name += extensionFor(f.ContentType)
	}
	path := filepath.Join(dir, name)

	out, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, f.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return path, nil
}

func extensionFor(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ".bin"
	}
	if sub, ok := strings.CutPrefix(mediaType, "video/"); ok && sub != "" {
		return "." + sub
	}
	if exts, err := mime.ExtensionsByType(mediaType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
