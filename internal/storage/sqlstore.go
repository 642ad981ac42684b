package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/maneesh/talentdrop/internal/models"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// SQLStore persists candidate records and blob metadata. It runs against
// TiDB/MySQL in production and SQLite for local runs and tests.
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewTiDBClient opens a TiDB (MySQL protocol) backed store
func NewTiDBClient(dsn string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLStore{db: db, driver: "mysql"}, nil
}

// NewSQLiteClient opens a SQLite backed store at path
func NewSQLiteClient(path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite allows a single writer; serialise through one connection.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLStore{db: db, driver: "sqlite"}, nil
}

// Close closes the database connection
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Driver returns the database/sql driver name in use
func (s *SQLStore) Driver() string {
	return s.driver
}

// Ping checks the database connection
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS candidates (
		id VARCHAR(36) PRIMARY KEY,
		first_name VARCHAR(255) NOT NULL,
		last_name VARCHAR(255) NOT NULL,
		position_applied VARCHAR(255) NOT NULL,
		current_position VARCHAR(255) NOT NULL,
		experience_years INTEGER NOT NULL,
		resume_file_id VARCHAR(36) NULL,
		video_file_id VARCHAR(36) NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS blobs (
		id VARCHAR(36) PRIMARY KEY,
		filename VARCHAR(512) NOT NULL,
		content_type VARCHAR(255) NOT NULL,
		size BIGINT NOT NULL,
		sha256 VARCHAR(64) NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at DATETIME(6) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS blob_chunks (
		id VARCHAR(36) PRIMARY KEY,
		blob_id VARCHAR(36) NOT NULL,
		order_index INTEGER NOT NULL,
		hash VARCHAR(64) NOT NULL,
		object_key VARCHAR(255) NOT NULL,
		size BIGINT NOT NULL,
		UNIQUE (blob_id, order_index)
	)`,
}

// EnsureSchema creates the tables used by the service if they are missing
func (s *SQLStore) EnsureSchema(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "sql.ensure_schema")
	defer span.End()

	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

const candidateColumns = `id, first_name, last_name, position_applied, current_position,
	experience_years, resume_file_id, video_file_id, created_at, updated_at`

// CreateCandidate inserts a candidate record. CreatedAt/UpdatedAt are set here.
func (s *SQLStore) CreateCandidate(ctx context.Context, c *models.Candidate) error {
	ctx, span := tracer.Start(ctx, "sql.create_candidate",
		trace.WithAttributes(
			attribute.String("candidate_id", c.ID),
		),
	)
	defer span.End()

	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	query := `INSERT INTO candidates (` + candidateColumns + `)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.FirstName, c.LastName, c.PositionApplied, c.CurrentPosition,
		c.ExperienceYears, nullString(c.ResumeFileID), nullString(c.VideoFileID),
		c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert candidate: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// GetCandidate retrieves a candidate by ID
func (s *SQLStore) GetCandidate(ctx context.Context, id string) (*models.Candidate, error) {
	ctx, span := tracer.Start(ctx, "sql.get_candidate",
		trace.WithAttributes(
			attribute.String("candidate_id", id),
		),
	)
	defer span.End()

	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE id = ?`

	var (
		c                models.Candidate
		resume, video    sql.NullString
		created, updated timestamp
	)
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&c.ID,
		&c.FirstName,
		&c.LastName,
		&c.PositionApplied,
		&c.CurrentPosition,
		&c.ExperienceYears,
		&resume,
		&video,
		&created,
		&updated,
	)

	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, fmt.Errorf("candidate %s: %w", id, ErrNotFound)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query candidate: %w", err)
	}

	c.ResumeFileID = stringPtr(resume)
	c.VideoFileID = stringPtr(video)
	c.CreatedAt = created.Time
	c.UpdatedAt = updated.Time

	span.SetAttributes(attribute.Bool("found", true))
	return &c, nil
}

// SetResumeFile points a candidate at a stored resume blob
func (s *SQLStore) SetResumeFile(ctx context.Context, candidateID, blobID string) (*models.Candidate, error) {
	return s.setFileRef(ctx, "resume_file_id", candidateID, blobID)
}

// SetVideoFile points a candidate at a stored video blob
func (s *SQLStore) SetVideoFile(ctx context.Context, candidateID, blobID string) (*models.Candidate, error) {
	return s.setFileRef(ctx, "video_file_id", candidateID, blobID)
}

// setFileRef updates a single reference column. Concurrent calls for the
// same candidate are last-write-wins.
func (s *SQLStore) setFileRef(ctx context.Context, column, candidateID, blobID string) (*models.Candidate, error) {
	ctx, span := tracer.Start(ctx, "sql.set_file_ref",
		trace.WithAttributes(
			attribute.String("candidate_id", candidateID),
			attribute.String("column", column),
			attribute.String("blob_id", blobID),
		),
	)
	defer span.End()

	// column is one of two constants above, never caller input
	query := `UPDATE candidates SET ` + column + ` = ?, updated_at = ? WHERE id = ?`

	res, err := s.db.ExecContext(ctx, query, blobID, time.Now().UTC(), candidateID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to update candidate: %w", err)
	}

	// MySQL reports matched rows only with CLIENT_FOUND_ROWS, so a zero count
	// is confirmed by the re-read below rather than trusted here.
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		span.SetAttributes(attribute.Int64("rows_affected", n))
	}

	return s.GetCandidate(ctx, candidateID)
}

// CreateBlob inserts blob metadata together with its chunks in one transaction
func (s *SQLStore) CreateBlob(ctx context.Context, blob *models.Blob, chunks []*models.Chunk) error {
	ctx, span := tracer.Start(ctx, "sql.create_blob",
		trace.WithAttributes(
			attribute.String("blob_id", blob.ID),
			attribute.String("filename", blob.Filename),
			attribute.Int64("size", blob.Size),
			attribute.Int("chunk_count", len(chunks)),
		),
	)
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO blobs (id, filename, content_type, size, sha256, chunk_count, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		blob.ID, blob.Filename, blob.ContentType, blob.Size, blob.SHA256, blob.ChunkCount, blob.CreatedAt.UTC(),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert blob: %w", err)
	}

	for _, chunk := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO blob_chunks (id, blob_id, order_index, hash, object_key, size)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			chunk.ID, chunk.BlobID, chunk.OrderIndex, chunk.Hash, chunk.ObjectKey, chunk.Size,
		)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to insert chunk %d: %w", chunk.OrderIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to commit blob: %w", err)
	}

	span.SetAttributes(attribute.Bool("insert_success", true))
	return nil
}

// GetBlob retrieves blob metadata by ID
func (s *SQLStore) GetBlob(ctx context.Context, blobID string) (*models.Blob, error) {
	ctx, span := tracer.Start(ctx, "sql.get_blob",
		trace.WithAttributes(
			attribute.String("blob_id", blobID),
		),
	)
	defer span.End()

	query := `SELECT id, filename, content_type, size, sha256, chunk_count, created_at
			  FROM blobs WHERE id = ?`

	var (
		blob    models.Blob
		created timestamp
	)
	err := s.db.QueryRowContext(ctx, query, blobID).Scan(
		&blob.ID,
		&blob.Filename,
		&blob.ContentType,
		&blob.Size,
		&blob.SHA256,
		&blob.ChunkCount,
		&created,
	)

	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("found", false))
		return nil, fmt.Errorf("blob %s: %w", blobID, ErrNotFound)
	} else if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query blob: %w", err)
	}
	blob.CreatedAt = created.Time

	span.SetAttributes(attribute.Bool("found", true))
	return &blob, nil
}

// GetChunks retrieves all chunks for a blob ordered by order_index
func (s *SQLStore) GetChunks(ctx context.Context, blobID string) ([]*models.Chunk, error) {
	ctx, span := tracer.Start(ctx, "sql.get_chunks",
		trace.WithAttributes(
			attribute.String("blob_id", blobID),
		),
	)
	defer span.End()

	query := `SELECT id, blob_id, order_index, hash, object_key, size
			  FROM blob_chunks
			  WHERE blob_id = ?
			  ORDER BY order_index ASC`

	rows, err := s.db.QueryContext(ctx, query, blobID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var chunks []*models.Chunk
	for rows.Next() {
		var chunk models.Chunk
		err := rows.Scan(
			&chunk.ID,
			&chunk.BlobID,
			&chunk.OrderIndex,
			&chunk.Hash,
			&chunk.ObjectKey,
			&chunk.Size,
		)
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		chunks = append(chunks, &chunk)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("error iterating chunks: %w", err)
	}

	span.SetAttributes(attribute.Int("chunk_count", len(chunks)))
	return chunks, nil
}

// CountBlobs returns the number of committed blobs
func (s *SQLStore) CountBlobs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM blobs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count blobs: %w", err)
	}
	return n, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
