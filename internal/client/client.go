// Package client talks to the candidate intake HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maneesh/talentdrop/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Profile is the first-screen candidate information.
type Profile struct {
	FirstName       string `json:"firstName"`
	LastName        string `json:"lastName"`
	PositionApplied string `json:"positionApplied"`
	CurrentPosition string `json:"currentPosition"`
	ExperienceYears int    `json:"experienceYears"`
}

// File is a streamed resume or video. Callers must close Body.
type File struct {
	Body        io.ReadCloser
	ContentType string
	Filename    string
	Size        int64
}

// HTTPClient calls the intake endpoints.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HTTPClient) { c.httpClient = hc }
}

// WithTimeout bounds every request, including body transfer.
func WithTimeout(d time.Duration) Option {
	return func(c *HTTPClient) { c.httpClient.Timeout = d }
}

// New creates a client for the API rooted at baseURL (including any base
// path, e.g. "http://localhost:8080/api").
func New(baseURL string, opts ...Option) *HTTPClient {
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) candidateURL(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return c.baseURL + "/candidate/" + strings.Join(escaped, "/")
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	return resp, nil
}

// doRecord performs a request that answers with a candidate envelope.
func (c *HTTPClient) doRecord(ctx context.Context, method, endpoint string, body io.Reader, contentType string) (*models.Candidate, error) {
	resp, err := c.do(ctx, method, endpoint, body, contentType)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, decodeError(resp)
	}

	var env struct {
		Data *models.Candidate `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if env.Data == nil {
		return nil, fmt.Errorf("decode response: envelope has no data")
	}
	return env.Data, nil
}

// SubmitInfo creates a candidate record.
func (c *HTTPClient) SubmitInfo(ctx context.Context, p Profile) (*models.Candidate, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	rec, err := c.doRecord(ctx, http.MethodPost, c.candidateURL("submit-info"), bytes.NewReader(data), "application/json")
	if err != nil {
		return nil, fmt.Errorf("submit info: %w", err)
	}
	return rec, nil
}

// GetCandidate fetches a candidate record.
func (c *HTTPClient) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	rec, err := c.doRecord(ctx, http.MethodGet, c.candidateURL(id), nil, "")
	if err != nil {
		return nil, fmt.Errorf("get candidate %s: %w", id, err)
	}
	return rec, nil
}

// UploadResume sends a PDF resume for the candidate.
func (c *HTTPClient) UploadResume(ctx context.Context, candidateID, filename string, r io.Reader) (*models.Candidate, error) {
	rec, err := c.upload(ctx, c.candidateURL("upload-resume", candidateID), "resume", filename, "application/pdf", r)
	if err != nil {
		return nil, fmt.Errorf("upload resume: %w", err)
	}
	return rec, nil
}

// UploadVideo sends a recorded video for the candidate.
func (c *HTTPClient) UploadVideo(ctx context.Context, candidateID, contentType string, r io.Reader) (*models.Candidate, error) {
	rec, err := c.upload(ctx, c.candidateURL("upload-video", candidateID), "video", "recording", contentType, r)
	if err != nil {
		return nil, fmt.Errorf("upload video: %w", err)
	}
	return rec, nil
}

// upload streams r as a single multipart file field without buffering it.
func (c *HTTPClient) upload(ctx context.Context, endpoint, field, filename, contentType string, r io.Reader) (*models.Candidate, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		h := textproto.MIMEHeader{}
		h.Set("Content-Disposition", mime.FormatMediaType("form-data", map[string]string{
			"name":     field,
			"filename": filename,
		}))
		h.Set("Content-Type", contentType)

		part, err := mw.CreatePart(h)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	rec, err := c.doRecord(ctx, http.MethodPost, endpoint, pr, mw.FormDataContentType())
	// Unblocks the writer goroutine if the server answered early.
	pr.Close()
	return rec, err
}

// DownloadResume streams a stored resume.
func (c *HTTPClient) DownloadResume(ctx context.Context, fileID string) (*File, error) {
	f, err := c.download(ctx, c.candidateURL("download-resume", fileID))
	if err != nil {
		return nil, fmt.Errorf("download resume %s: %w", fileID, err)
	}
	return f, nil
}

// StreamVideo streams a stored video.
func (c *HTTPClient) StreamVideo(ctx context.Context, fileID string) (*File, error) {
	f, err := c.download(ctx, c.candidateURL("stream-video", fileID))
	if err != nil {
		return nil, fmt.Errorf("stream video %s: %w", fileID, err)
	}
	return f, nil
}

func (c *HTTPClient) download(ctx context.Context, endpoint string) (*File, error) {
	resp, err := c.do(ctx, http.MethodGet, endpoint, nil, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}

	f := &File{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}
	if f.Size < 0 {
		if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
			f.Size = n
		}
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		f.Filename = params["filename"]
	}
	return f, nil
}
