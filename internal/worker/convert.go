package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/getsentry/sentry-go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trunov/audiohub/internal/entities"
	"github.com/trunov/audiohub/internal/metrics"
	"github.com/trunov/audiohub/internal/queue"
	"github.com/trunov/audiohub/internal/saga"
)

type BlobStore interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Put(ctx context.Context, payload []byte, contentType string) (string, error)
	Delete(ctx context.Context, id string) error
}

type Publisher interface {
	Publish(ctx context.Context, job queue.JobDescriptor) error
}

type Converter interface {
	Convert(ctx context.Context, sourcePath string) ([]byte, error)
}

// DedupStore remembers completed source ids so a redelivered descriptor is
// skipped instead of converted twice.
type DedupStore interface {
	Seen(ctx context.Context, id string) (bool, error)
	MarkDone(ctx context.Context, id string) error
}

// JobRepo records status transitions; best effort, nil disables it.
type JobRepo interface {
	UpdateJobStatus(ctx context.Context, sourceBlobID, status string, resultBlobID, errMsg *string) error
}

// ConvertWorker consumes uploaded descriptors one at a time, converts the
// source video to audio, and forwards a converted descriptor downstream.
type ConvertWorker struct {
	blobs     BlobStore
	converter Converter
	publisher Publisher
	dedup     DedupStore
	repo      JobRepo
	metrics   *metrics.Metrics
}

func NewConvertWorker(blobs BlobStore, conv Converter, publisher Publisher, dedup DedupStore, repo JobRepo, m *metrics.Metrics) *ConvertWorker {
	return &ConvertWorker{
		blobs:     blobs,
		converter: conv,
		publisher: publisher,
		dedup:     dedup,
		repo:      repo,
		metrics:   m,
	}
}

// Run processes deliveries until the channel closes or the context ends.
// One blocking loop, one in-flight message; the broker's queue depth is the
// only backpressure.
func (w *ConvertWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	log.Printf("[convert-worker] waiting for messages")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[convert-worker] stopping: %v", ctx.Err())
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Printf("[convert-worker] delivery channel closed")
				return
			}
			w.handle(ctx, d)
		}
	}
}

func (w *ConvertWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job queue.JobDescriptor
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("[convert-worker] dropping malformed message: %v", err)
		sentry.CaptureException(err)
		_ = d.Nack(false, false)
		return
	}

	outcome, err := w.process(ctx, job)
	if err != nil {
		log.Printf("[convert-worker] job %s failed (%s): %v", job.SourceBlobID, outcome, err)
		sentry.CaptureException(err)
		w.metrics.ConversionJobs.WithLabelValues("error").Inc()
		w.recordStatus(ctx, job.SourceBlobID, entities.JobStatusFailed, nil, err)
	} else if outcome == Ack {
		w.metrics.ConversionJobs.WithLabelValues("success").Inc()
	}

	switch outcome {
	case Ack:
		_ = d.Ack(false)
	case Drop:
		_ = d.Nack(false, false)
	default:
		_ = d.Nack(false, true)
	}
}

// process runs one unit of work: fetch, convert, store, announce. The
// result blob and the downstream descriptor appear together or not at all;
// scratch state is removed on every exit path.
func (w *ConvertWorker) process(ctx context.Context, job queue.JobDescriptor) (Outcome, error) {
	if w.dedup != nil {
		seen, err := w.dedup.Seen(ctx, job.SourceBlobID)
		if err != nil {
			log.Printf("[convert-worker] dedup lookup failed for %s, proceeding: %v", job.SourceBlobID, err)
		} else if seen {
			log.Printf("[convert-worker] %s already converted, skipping redelivery", job.SourceBlobID)
			return Ack, nil
		}
	}

	source, err := w.blobs.Get(ctx, job.SourceBlobID)
	if err != nil {
		return Nack, fmt.Errorf("fetch source blob %s: %w", job.SourceBlobID, err)
	}

	scratch, err := os.CreateTemp("", "audiohub-*.video")
	if err != nil {
		return Nack, fmt.Errorf("create scratch file: %w", err)
	}
	defer os.Remove(scratch.Name())

	if _, err := scratch.Write(source); err != nil {
		scratch.Close()
		return Nack, fmt.Errorf("write scratch file: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return Nack, fmt.Errorf("close scratch file: %w", err)
	}

	audio, err := w.converter.Convert(ctx, scratch.Name())
	if err != nil {
		return Nack, fmt.Errorf("convert %s: %w", job.SourceBlobID, err)
	}

	sg := saga.Begin()

	resultID, err := w.blobs.Put(ctx, audio, "audio/mpeg")
	if err != nil {
		return Nack, fmt.Errorf("store result for %s: %w", job.SourceBlobID, err)
	}
	sg.Stored(func(ctx context.Context) error {
		return w.blobs.Delete(ctx, resultID)
	})

	out := job
	out.ResultBlobID = resultID
	out.Status = queue.StatusConverted

	if err := w.publisher.Publish(ctx, out); err != nil {
		if rbErr := sg.Rollback(ctx); rbErr != nil {
			log.Printf("[convert-worker] compensating delete of result %s failed, orphan left behind: %v", resultID, rbErr)
		}
		return Nack, fmt.Errorf("publish converted descriptor for %s: %w", job.SourceBlobID, err)
	}
	sg.Announced()

	if w.dedup != nil {
		if err := w.dedup.MarkDone(ctx, job.SourceBlobID); err != nil {
			log.Printf("[convert-worker] failed to mark %s done: %v", job.SourceBlobID, err)
		}
	}
	w.recordStatus(ctx, job.SourceBlobID, entities.JobStatusConverted, &resultID, nil)

	log.Printf("[convert-worker] converted %s -> %s (%d bytes)", job.SourceBlobID, resultID, len(audio))
	return Ack, nil
}

func (w *ConvertWorker) recordStatus(ctx context.Context, sourceID, status string, resultID *string, cause error) {
	if w.repo == nil {
		return
	}
	var errMsg *string
	if cause != nil {
		s := cause.Error()
		errMsg = &s
	}
	if err := w.repo.UpdateJobStatus(ctx, sourceID, status, resultID, errMsg); err != nil {
		log.Printf("[convert-worker] failed to record status %q for %s: %v", status, sourceID, err)
	}
}
