package capture

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/maneesh/talentdrop/internal/client"
	"github.com/maneesh/talentdrop/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func validForm(t *testing.T) Form {
	return Form{
		FirstName:       " Ada ",
		LastName:        "Lovelace",
		PositionApplied: "Engineer",
		CurrentPosition: "Analyst",
		ExperienceYears: "5",
		ResumePath:      writeFile(t, "cv.pdf", []byte("%PDF-1.7")),
	}
}

func TestForm_Validate(t *testing.T) {
	p, err := validForm(t).Validate()
	require.NoError(t, err)
	assert.Equal(t, client.Profile{
		FirstName:       "Ada",
		LastName:        "Lovelace",
		PositionApplied: "Engineer",
		CurrentPosition: "Analyst",
		ExperienceYears: 5,
	}, p)
}

func TestForm_ValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Form)
		fields []string
	}{
		{"empty names", func(f *Form) { f.FirstName, f.LastName = "", "  " }, []string{"firstName", "lastName"}},
		{"missing experience", func(f *Form) { f.ExperienceYears = "" }, []string{"experienceYears"}},
		{"negative experience", func(f *Form) { f.ExperienceYears = "-1" }, []string{"experienceYears"}},
		{"text experience", func(f *Form) { f.ExperienceYears = "five" }, []string{"experienceYears"}},
		{"no resume", func(f *Form) { f.ResumePath = "" }, []string{"resume"}},
		{"not a pdf", func(f *Form) { f.ResumePath = "cv.docx" }, []string{"resume"}},
		{"missing file", func(f *Form) { f.ResumePath = "/does/not/exist.pdf" }, []string{"resume"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := validForm(t)
			tc.mutate(&f)

			_, err := f.Validate()
			var fe FormErrors
			require.ErrorAs(t, err, &fe)

			var fields []string
			for _, e := range fe {
				fields = append(fields, e.Field)
			}
			assert.Equal(t, tc.fields, fields)
		})
	}
}

func TestForm_ZeroExperienceIsValid(t *testing.T) {
	f := validForm(t)
	f.ExperienceYears = "0"
	p, err := f.Validate()
	require.NoError(t, err)
	assert.Zero(t, p.ExperienceYears)
}

func TestForm_NoResumeMessage(t *testing.T) {
	f := validForm(t)
	f.ResumePath = ""
	_, err := f.Validate()
	assert.EqualError(t, err, "Please upload your resume")
}

// fakeAPI is an in-memory intake server.
type fakeAPI struct {
	candidates  map[string]*models.Candidate
	files       map[string][]byte
	resumeErr   error
	downloadErr error
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{candidates: map[string]*models.Candidate{}, files: map[string][]byte{}}
}

func (a *fakeAPI) SubmitInfo(_ context.Context, p client.Profile) (*models.Candidate, error) {
	c := &models.Candidate{ID: uuid.NewString(), FirstName: p.FirstName, LastName: p.LastName, ExperienceYears: p.ExperienceYears}
	a.candidates[c.ID] = c
	return c, nil
}

func (a *fakeAPI) store(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	a.files[id] = data
	return id, nil
}

func (a *fakeAPI) UploadResume(_ context.Context, candidateID, _ string, r io.Reader) (*models.Candidate, error) {
	if a.resumeErr != nil {
		return nil, a.resumeErr
	}
	id, err := a.store(r)
	if err != nil {
		return nil, err
	}
	c := a.candidates[candidateID]
	c.ResumeFileID = &id
	return c, nil
}

func (a *fakeAPI) UploadVideo(_ context.Context, candidateID, _ string, r io.Reader) (*models.Candidate, error) {
	id, err := a.store(r)
	if err != nil {
		return nil, err
	}
	c := a.candidates[candidateID]
	c.VideoFileID = &id
	return c, nil
}

func (a *fakeAPI) GetCandidate(_ context.Context, id string) (*models.Candidate, error) {
	c, ok := a.candidates[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Message: "Candidate not found"}
	}
	return c, nil
}

func (a *fakeAPI) open(id, contentType string) (*client.File, error) {
	if a.downloadErr != nil {
		return nil, a.downloadErr
	}
	data, ok := a.files[id]
	if !ok {
		return nil, &client.APIError{StatusCode: 404, Message: "not found"}
	}
	return &client.File{Body: io.NopCloser(bytesReader(data)), ContentType: contentType, Size: int64(len(data))}, nil
}

func (a *fakeAPI) DownloadResume(_ context.Context, id string) (*client.File, error) {
	return a.open(id, "application/pdf")
}

func (a *fakeAPI) StreamVideo(_ context.Context, id string) (*client.File, error) {
	return a.open(id, "video/webm")
}

func TestSubmit(t *testing.T) {
	api := newFakeAPI()

	rec, err := Submit(context.Background(), api, validForm(t))
	require.NoError(t, err)
	require.NotNil(t, rec.ResumeFileID)
	assert.Equal(t, []byte("%PDF-1.7"), api.files[*rec.ResumeFileID])
}

func TestSubmit_ResumeFailureReturnsRecord(t *testing.T) {
	api := newFakeAPI()
	api.resumeErr = errors.New("unsupported media type")

	rec, err := Submit(context.Background(), api, validForm(t))
	require.Error(t, err)
	require.NotNil(t, rec)
	assert.Contains(t, api.candidates, rec.ID)
	assert.Nil(t, rec.ResumeFileID)
}

func TestSubmit_InvalidFormSendsNothing(t *testing.T) {
	api := newFakeAPI()
	f := validForm(t)
	f.LastName = ""

	_, err := Submit(context.Background(), api, f)
	require.Error(t, err)
	assert.Empty(t, api.candidates)
}
