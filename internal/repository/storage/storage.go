package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trunov/audiohub/internal/entities"
)

type dbStorage struct {
	dbpool *pgxpool.Pool
}

func New(ctx context.Context, databaseDSN string) (*dbStorage, error) {
	pool, err := pgxpool.New(ctx, databaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &dbStorage{dbpool: pool}, nil
}

func (s *dbStorage) Ping(ctx context.Context) error {
	return s.dbpool.Ping(ctx)
}

func (s *dbStorage) Close() {
	s.dbpool.Close()
}

func (s *dbStorage) InsertJob(ctx context.Context, job entities.Job) error {
	_, err := s.dbpool.Exec(ctx, `
		INSERT INTO jobs (id, owner, source_blob_id, original_filename, file_size, status)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, job.ID, job.Owner, job.SourceBlobID, job.OriginalFilename, job.FileSize, job.Status)
	if err != nil {
		return fmt.Errorf("insert job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateJobStatus moves the job identified by its source blob id to a new
// status. Result id and error message stay untouched when nil.
func (s *dbStorage) UpdateJobStatus(ctx context.Context, sourceBlobID, status string, resultBlobID, errMsg *string) error {
	_, err := s.dbpool.Exec(ctx, `
		UPDATE jobs
		SET status = $2,
		    result_blob_id = COALESCE($3, result_blob_id),
		    error = COALESCE($4, error),
		    updated_timestamp = now()
		WHERE source_blob_id = $1
	`, sourceBlobID, status, resultBlobID, errMsg)
	if err != nil {
		return fmt.Errorf("update job for blob %s: %w", sourceBlobID, err)
	}
	return nil
}

func (s *dbStorage) GetJob(ctx context.Context, id string) (entities.Job, error) {
	var job entities.Job
	err := s.dbpool.QueryRow(ctx, `
		SELECT id, owner, source_blob_id, result_blob_id, original_filename,
		       file_size, status, error, created_timestamp, updated_timestamp
		FROM jobs
		WHERE id = $1
	`, id).Scan(
		&job.ID, &job.Owner, &job.SourceBlobID, &job.ResultBlobID,
		&job.OriginalFilename, &job.FileSize, &job.Status, &job.Error,
		&job.CreatedTimestamp, &job.UpdatedTimestamp,
	)
	if err != nil {
		return entities.Job{}, fmt.Errorf("get job %s: %w", id, err)
	}
	return job, nil
}
