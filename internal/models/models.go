package models

import (
	"encoding/json"
	"time"
)

// Stage describes how far a candidate has progressed through intake
type Stage string

const (
	StageInfoOnly       Stage = "info-only"
	StageResumeAttached Stage = "resume-attached"
	StageVideoAttached  Stage = "video-attached"
	StageComplete       Stage = "complete"
)

// Candidate represents an applicant profile stored in the record store
type Candidate struct {
	ID              string    `json:"id"`
	FirstName       string    `json:"firstName"`
	LastName        string    `json:"lastName"`
	PositionApplied string    `json:"positionApplied"`
	CurrentPosition string    `json:"currentPosition"`
	ExperienceYears int       `json:"experienceYears"`
	ResumeFileID    *string   `json:"resumeFileId"`
	VideoFileID     *string   `json:"videoFileId"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Stage derives the intake stage from the attached file references.
// Attach order is free, so a video may be present without a resume.
func (c *Candidate) Stage() Stage {
	switch {
	case c.ResumeFileID != nil && c.VideoFileID != nil:
		return StageComplete
	case c.ResumeFileID != nil:
		return StageResumeAttached
	case c.VideoFileID != nil:
		return StageVideoAttached
	default:
		return StageInfoOnly
	}
}

// MarshalJSON also emits the identifier as "_id" for clients written against
// the document-store shape of the API.
func (c Candidate) MarshalJSON() ([]byte, error) {
	type plain Candidate
	return json.Marshal(struct {
		LegacyID string `json:"_id"`
		plain
		Stage Stage `json:"stage"`
	}{
		LegacyID: c.ID,
		plain:    plain(c),
		Stage:    c.Stage(),
	})
}

// Blob represents metadata of a stored binary object (resume, video)
type Blob struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	ChunkCount  int       `json:"chunk_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chunk represents a chunk of a blob
type Chunk struct {
	ID         string `json:"id"`
	BlobID     string `json:"blob_id"`
	OrderIndex int    `json:"order_index"`
	Hash       string `json:"hash"`
	ObjectKey  string `json:"object_key"`
	Size       int64  `json:"size"`
}

// ChunkData holds chunk information during upload
type ChunkData struct {
	Data       []byte
	OrderIndex int
	Hash       string
	Size       int64
}
