package use_case

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/trunov/audiohub/internal/entities"
	"github.com/trunov/audiohub/internal/queue"
	"github.com/trunov/audiohub/internal/saga"
)

var (
	ErrEmptyFile = errors.New("no file content provided")
	ErrStore     = errors.New("failed to store file")
	ErrPublish   = errors.New("failed to queue processing job")
)

type BlobStore interface {
	Put(ctx context.Context, payload []byte, contentType string) (string, error)
	Delete(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, job queue.JobDescriptor) error
}

// JobRepo persists job records for operators. Failures here never fail the
// upload; nil disables persistence entirely.
type JobRepo interface {
	InsertJob(ctx context.Context, job entities.Job) error
}

// useCase is the upload coordinator: store the payload, announce it on the
// uploaded queue, and undo the store when the announcement fails.
type useCase struct {
	blobs     BlobStore
	publisher Publisher
	repo      JobRepo
}

func New(blobs BlobStore, publisher Publisher, repo JobRepo) *useCase {
	return &useCase{
		blobs:     blobs,
		publisher: publisher,
		repo:      repo,
	}
}

// SubmitUpload runs the store-then-announce saga for one uploaded file.
//
// On the success path the stored blob is always referenced by exactly one
// published descriptor. A publish failure deletes the blob before the error
// is returned; only a failed compensating delete can leak an orphan, and
// that is logged and tolerated.
func (c *useCase) SubmitUpload(ctx context.Context, payload []byte, contentType, filename, owner string) (queue.JobDescriptor, error) {
	var desc queue.JobDescriptor

	if len(payload) == 0 {
		return desc, ErrEmptyFile
	}

	sg := saga.Begin()

	blobID, err := c.blobs.Put(ctx, payload, contentType)
	if err != nil {
		return desc, fmt.Errorf("%w: %v", ErrStore, err)
	}
	sg.Stored(func(ctx context.Context) error {
		return c.blobs.Delete(ctx, blobID)
	})

	desc = queue.JobDescriptor{
		SourceBlobID:     blobID,
		Owner:            owner,
		Status:           queue.StatusUploaded,
		OriginalFilename: filename,
		FileSize:         int64(len(payload)),
	}

	if err := c.publisher.Publish(ctx, desc); err != nil {
		if rbErr := sg.Rollback(ctx); rbErr != nil {
			log.Printf("[upload] compensating delete of blob %s failed, orphan left behind: %v", blobID, rbErr)
		}
		return queue.JobDescriptor{}, fmt.Errorf("%w: %v", ErrPublish, err)
	}
	sg.Announced()

	if c.repo != nil {
		job := entities.Job{
			ID:               uuid.NewString(),
			Owner:            owner,
			SourceBlobID:     blobID,
			OriginalFilename: filename,
			FileSize:         desc.FileSize,
			Status:           entities.JobStatusUploaded,
			CreatedTimestamp: time.Now().UTC(),
			UpdatedTimestamp: time.Now().UTC(),
		}
		if err := c.repo.InsertJob(ctx, job); err != nil {
			log.Printf("[upload] failed to record job for blob %s: %v", blobID, err)
		}
	}

	log.Printf("[upload] accepted %q from %s, blob=%s size=%d", filename, owner, blobID, desc.FileSize)
	return desc, nil
}
