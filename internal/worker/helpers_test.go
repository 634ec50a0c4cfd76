package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"

	"github.com/trunov/audiohub/internal/metrics"
	"github.com/trunov/audiohub/internal/queue"
)

// fakeAcknowledger records how the handler settled each delivery.
type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeues int
}

func (f *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	f.acks++
	return nil
}

func (f *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	f.nacks++
	if requeue {
		f.requeues++
	}
	return nil
}

func (f *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	return f.Nack(tag, false, requeue)
}

func newDelivery(t *testing.T, ack *fakeAcknowledger, job queue.JobDescriptor) amqp.Delivery {
	t.Helper()
	body, err := json.Marshal(job)
	require.NoError(t, err)
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: body}
}

type fakeBlobStore struct {
	blobs  map[string][]byte
	putErr error
	getErr error
	nextID int
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: map[string][]byte{}}
}

func (f *fakeBlobStore) Get(ctx context.Context, id string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.blobs[id]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", id)
	}
	return data, nil
}

func (f *fakeBlobStore) Put(ctx context.Context, payload []byte, contentType string) (string, error) {
	if f.putErr != nil {
		return "", f.putErr
	}
	f.nextID++
	id := fmt.Sprintf("result-%d", f.nextID)
	f.blobs[id] = payload
	return id, nil
}

func (f *fakeBlobStore) Delete(ctx context.Context, id string) error {
	delete(f.blobs, id)
	return nil
}

type fakePublisher struct {
	published []queue.JobDescriptor
	err       error
}

func (f *fakePublisher) Publish(ctx context.Context, job queue.JobDescriptor) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, job)
	return nil
}

type fakeConverter struct {
	output []byte
	err    error
	calls  int
}

func (f *fakeConverter) Convert(ctx context.Context, sourcePath string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.output, nil
}

type fakeDedup struct {
	done    map[string]bool
	seenErr error
}

func newFakeDedup() *fakeDedup {
	return &fakeDedup{done: map[string]bool{}}
}

func (f *fakeDedup) Seen(ctx context.Context, id string) (bool, error) {
	if f.seenErr != nil {
		return false, f.seenErr
	}
	return f.done[id], nil
}

func (f *fakeDedup) MarkDone(ctx context.Context, id string) error {
	f.done[id] = true
	return nil
}

type statusUpdate struct {
	sourceID string
	status   string
}

type fakeJobRepo struct {
	updates []statusUpdate
}

func (f *fakeJobRepo) UpdateJobStatus(ctx context.Context, sourceBlobID, status string, resultBlobID, errMsg *string) error {
	f.updates = append(f.updates, statusUpdate{sourceID: sourceBlobID, status: status})
	return nil
}

func newTestMetrics() *metrics.Metrics {
	return metrics.New(prometheus.NewRegistry())
}
