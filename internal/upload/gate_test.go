package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/maneesh/talentdrop/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStore struct {
	puts []*models.Blob
	data [][]byte
	fail error
}

func (s *recordingStore) Put(_ context.Context, filename, contentType string, r io.Reader) (*models.Blob, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if s.fail != nil {
		return nil, s.fail
	}
	b := &models.Blob{ID: uuid.NewString(), Filename: filename, ContentType: contentType, Size: int64(len(data))}
	s.puts = append(s.puts, b)
	s.data = append(s.data, data)
	return b, nil
}

func (s *recordingStore) Open(context.Context, string) (*models.Blob, io.ReadCloser, error) {
	return nil, nil, errors.New("not implemented")
}

type filePart struct {
	field, filename, contentType string
	data                         []byte
}

func multipartRequest(t *testing.T, parts ...filePart) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		h := textproto.MIMEHeader{}
		if p.filename == "" {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q`, p.field))
		} else {
			h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, p.field, p.filename))
		}
		if p.contentType != "" {
			h.Set("Content-Type", p.contentType)
		}
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func newTestGate(store *recordingStore) *Gate {
	g := NewGate(store, nil)
	g.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return g
}

// serve runs the gate in front of a handler that echoes the stored blob.
func serve(g *Gate, p Policy, req *http.Request) (*httptest.ResponseRecorder, bool) {
	reached := false
	h := g.Middleware(p)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		b, ok := BlobFromContext(r.Context())
		if !ok {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		response.JSON(w, http.StatusOK, b, "stored")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, reached
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) response.ErrorEnvelope {
	t.Helper()
	var env response.ErrorEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestGate_AcceptsPDF(t *testing.T) {
	store := &recordingStore{}
	req := multipartRequest(t, filePart{"resume", "cv.pdf", "application/pdf", []byte("%PDF-1.4")})

	rec, reached := serve(newTestGate(store), ResumePolicy(0), req)

	require.True(t, reached)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, store.puts, 1)
	assert.Equal(t, "resume-1700000000000-cv.pdf", store.puts[0].Filename)
	assert.Equal(t, "application/pdf", store.puts[0].ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), store.data[0])
}

func TestGate_SkipsOtherFields(t *testing.T) {
	store := &recordingStore{}
	req := multipartRequest(t,
		filePart{field: "note", data: []byte("hello")},
		filePart{"resume", "cv.pdf", "application/pdf", []byte("%PDF")},
	)

	rec, _ := serve(newTestGate(store), ResumePolicy(0), req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, store.puts, 1)
}

func TestGate_RejectsWrongType(t *testing.T) {
	store := &recordingStore{}
	req := multipartRequest(t, filePart{"resume", "cv.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document", []byte("PK")})

	rec, reached := serve(newTestGate(store), ResumePolicy(0), req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.puts)

	env := decodeError(t, rec)
	assert.Equal(t, "unsupported media type", env.Message)
	assert.Equal(t, []string{"Only PDF files are allowed"}, env.Errors)
	assert.False(t, env.Success)
}

func TestGate_SizeLimit(t *testing.T) {
	cases := []struct {
		name   string
		size   int
		status int
	}{
		{"below limit", 9, http.StatusOK},
		{"exactly at limit", 10, http.StatusOK},
		{"one byte over", 11, http.StatusBadRequest},
		{"far over", 4096, http.StatusBadRequest},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &recordingStore{}
			req := multipartRequest(t, filePart{"resume", "cv.pdf", "application/pdf", bytes.Repeat([]byte("x"), tc.size)})

			rec, reached := serve(newTestGate(store), ResumePolicy(10), req)

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status == http.StatusOK, reached)
			if tc.status != http.StatusOK {
				assert.Empty(t, store.puts)
				assert.Equal(t, "file too large", decodeError(t, rec).Message)
			}
		})
	}
}

func TestGate_DefaultLimits(t *testing.T) {
	const mib = 1024 * 1024
	cases := []struct {
		name    string
		policy  Policy
		part    filePart
		size    int
		status  int
		details string
	}{
		{"resume at 5MB", ResumePolicy(0), filePart{field: "resume", filename: "cv.pdf", contentType: "application/pdf"}, 5 * mib, http.StatusOK, ""},
		{"resume over 5MB", ResumePolicy(0), filePart{field: "resume", filename: "cv.pdf", contentType: "application/pdf"}, 5*mib + 1, http.StatusBadRequest, "File exceeds the 5MB limit"},
		{"video at 50MB", VideoPolicy(0), filePart{field: "video", filename: "recording", contentType: "video/webm"}, 50 * mib, http.StatusOK, ""},
		{"video over 50MB", VideoPolicy(0), filePart{field: "video", filename: "recording", contentType: "video/webm"}, 50*mib + 1, http.StatusBadRequest, "File exceeds the 50MB limit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &recordingStore{}
			part := tc.part
			part.data = bytes.Repeat([]byte{0x42}, tc.size)

			rec, reached := serve(newTestGate(store), tc.policy, multipartRequest(t, part))

			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.status == http.StatusOK, reached)
			if tc.status == http.StatusOK {
				require.Len(t, store.puts, 1)
				assert.Equal(t, int64(tc.size), store.puts[0].Size)
				return
			}
			assert.Empty(t, store.puts)
			env := decodeError(t, rec)
			assert.Equal(t, "file too large", env.Message)
			assert.Equal(t, []string{tc.details}, env.Errors)
		})
	}
}

func TestGate_MissingField(t *testing.T) {
	store := &recordingStore{}
	req := multipartRequest(t, filePart{"document", "cv.pdf", "application/pdf", []byte("%PDF")})

	rec, reached := serve(newTestGate(store), ResumePolicy(0), req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No resume file uploaded", decodeError(t, rec).Message)
}

func TestGate_NotMultipart(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{"video":"x"}`))
	req.Header.Set("Content-Type", "application/json")

	rec, _ := serve(newTestGate(&recordingStore{}), VideoPolicy(0), req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No video file uploaded", decodeError(t, rec).Message)
}

func TestGate_Video(t *testing.T) {
	cases := []struct {
		contentType string
		ok          bool
		filename    string
	}{
		{"video/webm", true, "video-1700000000000.webm"},
		{"video/webm;codecs=vp8,opus", true, "video-1700000000000.webm"},
		{"video/mp4", true, "video-1700000000000.mp4"},
		{"audio/webm", false, ""},
		{"video/", false, ""},
	}

	for _, tc := range cases {
		t.Run(tc.contentType, func(t *testing.T) {
			store := &recordingStore{}
			req := multipartRequest(t, filePart{"video", "blob", tc.contentType, []byte{0x1a, 0x45, 0xdf, 0xa3}})

			rec, _ := serve(newTestGate(store), VideoPolicy(0), req)

			if !tc.ok {
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Empty(t, store.puts)
				return
			}
			require.Equal(t, http.StatusOK, rec.Code)
			require.Len(t, store.puts, 1)
			assert.Equal(t, tc.filename, store.puts[0].Filename)
		})
	}
}

func TestGate_StoreFailure(t *testing.T) {
	store := &recordingStore{fail: errors.New("bucket unreachable")}
	req := multipartRequest(t, filePart{"video", "clip.webm", "video/webm", []byte("data")})

	rec, reached := serve(newTestGate(store), VideoPolicy(0), req)

	assert.False(t, reached)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decodeError(t, rec)
	assert.Equal(t, "Error uploading file", env.Message)
	assert.NotContains(t, rec.Body.String(), "bucket unreachable")
}

func TestLimitedReader(t *testing.T) {
	data, err := io.ReadAll(newLimitedReader(bytes.NewReader([]byte("abcd")), 4))
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data))

	_, err = io.ReadAll(newLimitedReader(bytes.NewReader([]byte("abcde")), 4))
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestResumePolicy_FilenameStripsDirectories(t *testing.T) {
	p := ResumePolicy(0)
	now := time.UnixMilli(42)

	assert.Equal(t, "resume-42-cv.pdf", p.Filename(`C:\Users\ada\cv.pdf`, "application/pdf", now))
	assert.Equal(t, "resume-42-cv.pdf", p.Filename("../../cv.pdf", "application/pdf", now))
}
