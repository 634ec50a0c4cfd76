package worker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/getsentry/sentry-go"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/trunov/audiohub/internal/entities"
	"github.com/trunov/audiohub/internal/metrics"
	"github.com/trunov/audiohub/internal/queue"
)

type Notifier interface {
	Notify(ctx context.Context, job queue.JobDescriptor) error
}

// NotifyWorker consumes converted descriptors and tells the owner their
// audio is ready. There is no local retry: a failed delivery is nacked and
// the broker redelivers.
type NotifyWorker struct {
	notifier Notifier
	repo     JobRepo
	metrics  *metrics.Metrics
}

func NewNotifyWorker(notifier Notifier, repo JobRepo, m *metrics.Metrics) *NotifyWorker {
	return &NotifyWorker{
		notifier: notifier,
		repo:     repo,
		metrics:  m,
	}
}

func (w *NotifyWorker) Run(ctx context.Context, deliveries <-chan amqp.Delivery) {
	log.Printf("[notify-worker] waiting for messages")
	for {
		select {
		case <-ctx.Done():
			log.Printf("[notify-worker] stopping: %v", ctx.Err())
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Printf("[notify-worker] delivery channel closed")
				return
			}
			w.handle(ctx, d)
		}
	}
}

// handle records one duration observation per attempt, success or not, and
// bumps exactly one outcome counter.
func (w *NotifyWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job queue.JobDescriptor
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("[notify-worker] dropping malformed message: %v", err)
		sentry.CaptureException(err)
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	err := w.notifier.Notify(ctx, job)
	w.metrics.NotificationDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		log.Printf("[notify-worker] notification for %s failed: %v", job.ResultBlobID, err)
		sentry.CaptureException(err)
		w.metrics.NotificationJobs.WithLabelValues("error").Inc()
		_ = d.Nack(false, true)
		return
	}

	w.metrics.NotificationJobs.WithLabelValues("success").Inc()
	if w.repo != nil {
		if rerr := w.repo.UpdateJobStatus(ctx, job.SourceBlobID, entities.JobStatusNotified, nil, nil); rerr != nil {
			log.Printf("[notify-worker] failed to record status for %s: %v", job.SourceBlobID, rerr)
		}
	}
	_ = d.Ack(false)
}
