package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunov/audiohub/internal/metrics"
	"github.com/trunov/audiohub/internal/queue"
)

type fakeNotifier struct {
	errs  []error // per-call results, nil entry means success
	calls int
}

func (f *fakeNotifier) Notify(ctx context.Context, job queue.JobDescriptor) error {
	f.calls++
	if f.calls <= len(f.errs) {
		return f.errs[f.calls-1]
	}
	return nil
}

func convertedJob() queue.JobDescriptor {
	return queue.JobDescriptor{
		SourceBlobID:     "source-1",
		ResultBlobID:     "result-1",
		Owner:            "alice@example.com",
		Status:           queue.StatusConverted,
		OriginalFilename: "holiday.mp4",
	}
}

// durationObservations reads the sample count of the notification histogram.
func durationObservations(t *testing.T, reg *prometheus.Registry) uint64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() == "notification_job_duration_seconds" {
			return fam.GetMetric()[0].GetHistogram().GetSampleCount()
		}
	}
	return 0
}

func TestNotifyWorker_SuccessAcksAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	n := &fakeNotifier{}
	repo := &fakeJobRepo{}

	w := NewNotifyWorker(n, repo, m)
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, convertedJob()))

	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationJobs.WithLabelValues("success")))
	assert.Equal(t, uint64(1), durationObservations(t, reg))

	require.Len(t, repo.updates, 1)
	assert.Equal(t, "notified", repo.updates[0].status)
}

func TestNotifyWorker_FailureNacksForRedelivery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	n := &fakeNotifier{errs: []error{errors.New("smtp refused")}}

	w := NewNotifyWorker(n, nil, m)
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, convertedJob()))

	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 1, ack.requeues)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationJobs.WithLabelValues("error")))
	assert.Equal(t, uint64(1), durationObservations(t, reg))
}

// One failed attempt followed by a successful redelivery: one error count,
// one success count, two duration observations.
func TestNotifyWorker_RedeliveryAfterFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	n := &fakeNotifier{errs: []error{errors.New("transient smtp error"), nil}}

	w := NewNotifyWorker(n, nil, m)

	first := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, first, convertedJob()))
	assert.Equal(t, 1, first.nacks)

	// the broker redelivers the same descriptor
	second := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, second, convertedJob()))
	assert.Equal(t, 1, second.acks)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationJobs.WithLabelValues("error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.NotificationJobs.WithLabelValues("success")))
	assert.Equal(t, uint64(2), durationObservations(t, reg))
}

func TestNotifyWorker_MalformedMessageIsDropped(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	w := NewNotifyWorker(&fakeNotifier{}, nil, m)

	ack := &fakeAcknowledger{}
	w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("{broken")})

	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 0, ack.requeues)
}
