package client

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/maneesh/talentdrop/internal/blob"
	"github.com/maneesh/talentdrop/internal/candidate"
	"github.com/maneesh/talentdrop/internal/chunker"
	"github.com/maneesh/talentdrop/internal/handlers"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/storage"
	"github.com/maneesh/talentdrop/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *HTTPClient {
	t.Helper()
	dir := t.TempDir()

	sql, err := storage.NewSQLiteClient(filepath.Join(dir, "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { sql.Close() })
	require.NoError(t, sql.EnsureSchema(context.Background()))

	objects, err := storage.NewFSObjectStore(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs := blob.NewChunkedStore(objects, sql, chunker.NewChunker(512))
	srv := httptest.NewServer(handlers.NewRouter(handlers.RouterConfig{
		Service:      candidate.NewService(sql, blobs),
		Gate:         upload.NewGate(blobs, logger),
		ResumePolicy: upload.ResumePolicy(0),
		VideoPolicy:  upload.VideoPolicy(0),
		BasePath:     "/api",
		Logger:       logger,
	}))
	t.Cleanup(srv.Close)

	return New(srv.URL + "/api/")
}

var ada = Profile{
	FirstName:       "Ada",
	LastName:        "Lovelace",
	PositionApplied: "Engineer",
	CurrentPosition: "Analyst",
	ExperienceYears: 3,
}

func TestHTTPClient_FullFlow(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec, err := c.SubmitInfo(ctx, ada)
	require.NoError(t, err)
	assert.Equal(t, models.StageInfoOnly, rec.Stage())

	pdf := bytes.Repeat([]byte("%PDF"), 1000)
	rec, err = c.UploadResume(ctx, rec.ID, "cv.pdf", bytes.NewReader(pdf))
	require.NoError(t, err)
	require.NotNil(t, rec.ResumeFileID)

	clip := bytes.Repeat([]byte{0x1a, 0x45}, 3000)
	rec, err = c.UploadVideo(ctx, rec.ID, "video/webm", bytes.NewReader(clip))
	require.NoError(t, err)
	require.NotNil(t, rec.VideoFileID)

	got, err := c.GetCandidate(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageComplete, got.Stage())

	resume, err := c.DownloadResume(ctx, *got.ResumeFileID)
	require.NoError(t, err)
	defer resume.Body.Close()
	assert.Equal(t, "application/pdf", resume.ContentType)
	assert.Contains(t, resume.Filename, "cv.pdf")
	assert.Equal(t, int64(len(pdf)), resume.Size)
	data, err := io.ReadAll(resume.Body)
	require.NoError(t, err)
	assert.Equal(t, pdf, data)

	video, err := c.StreamVideo(ctx, *got.VideoFileID)
	require.NoError(t, err)
	defer video.Body.Close()
	assert.Equal(t, "video/webm", video.ContentType)
	data, err = io.ReadAll(video.Body)
	require.NoError(t, err)
	assert.Equal(t, clip, data)
}

func TestHTTPClient_APIErrors(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.SubmitInfo(ctx, Profile{FirstName: "Ada", ExperienceYears: 1})
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadRequest, ae.StatusCode)
	assert.Equal(t, "Missing required fields: lastName, positionApplied, currentPosition", ae.Message)
	assert.Equal(t, []string{"lastName", "positionApplied", "currentPosition"}, ae.Errors)

	_, err = c.GetCandidate(ctx, uuid.NewString())
	assert.True(t, IsNotFound(err))

	rec, err := c.SubmitInfo(ctx, ada)
	require.NoError(t, err)

	_, err = c.UploadVideo(ctx, rec.ID, "audio/ogg", bytes.NewReader([]byte("x")))
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "unsupported media type", ae.Message)

	_, err = c.StreamVideo(ctx, uuid.NewString())
	assert.True(t, IsNotFound(err))
}

func TestDecodeError_NonEnvelopeBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetCandidate(context.Background(), uuid.NewString())
	var ae *APIError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusBadGateway, ae.StatusCode)
	assert.Equal(t, "bad gateway", ae.Message)
}
