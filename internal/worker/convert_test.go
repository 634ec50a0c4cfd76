package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trunov/audiohub/internal/queue"
)

func uploadedJob(sourceID string) queue.JobDescriptor {
	return queue.JobDescriptor{
		SourceBlobID:     sourceID,
		Owner:            "alice@example.com",
		Status:           queue.StatusUploaded,
		OriginalFilename: "holiday.mp4",
		FileSize:         1024,
	}
}

func TestConvertWorker_SuccessPublishesConvertedDescriptor(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.blobs["source-1"] = []byte("video bytes")
	conv := &fakeConverter{output: []byte("audio bytes")}
	pub := &fakePublisher{}
	dedup := newFakeDedup()
	repo := &fakeJobRepo{}
	m := newTestMetrics()

	w := NewConvertWorker(blobs, conv, pub, dedup, repo, m)
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, uploadedJob("source-1")))

	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, ack.nacks)

	// exactly one converted descriptor, result blob exists
	require.Len(t, pub.published, 1)
	out := pub.published[0]
	assert.Equal(t, queue.StatusConverted, out.Status)
	assert.Equal(t, "source-1", out.SourceBlobID)
	assert.Equal(t, "alice@example.com", out.Owner)
	require.NotEmpty(t, out.ResultBlobID)
	assert.Equal(t, []byte("audio bytes"), blobs.blobs[out.ResultBlobID])

	assert.True(t, dedup.done["source-1"])
	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConversionJobs.WithLabelValues("success")))
}

func TestConvertWorker_ConversionFailureNacksWithoutPublishing(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.blobs["source-1"] = []byte("corrupt bytes")
	conv := &fakeConverter{err: errors.New("moov atom not found")}
	pub := &fakePublisher{}
	m := newTestMetrics()

	w := NewConvertWorker(blobs, conv, pub, newFakeDedup(), nil, m)
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, uploadedJob("source-1")))

	assert.Equal(t, 0, ack.acks)
	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 1, ack.requeues)

	// no downstream message, no result blob
	assert.Empty(t, pub.published)
	assert.Len(t, blobs.blobs, 1) // only the source remains

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ConversionJobs.WithLabelValues("error")))
}

func TestConvertWorker_PublishFailureDeletesResultAndNacks(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.blobs["source-1"] = []byte("video bytes")
	conv := &fakeConverter{output: []byte("audio bytes")}
	pub := &fakePublisher{err: errors.New("broker unreachable")}
	dedup := newFakeDedup()

	w := NewConvertWorker(blobs, conv, pub, dedup, nil, newTestMetrics())
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, uploadedJob("source-1")))

	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 1, ack.requeues)

	// the compensating delete removed the just-written result blob
	assert.Len(t, blobs.blobs, 1)
	assert.Contains(t, blobs.blobs, "source-1")

	// the unit of work is retried from scratch, so it is not marked done
	assert.False(t, dedup.done["source-1"])
}

func TestConvertWorker_FetchFailureNacksForRedelivery(t *testing.T) {
	blobs := newFakeBlobStore() // source blob missing
	conv := &fakeConverter{output: []byte("audio")}
	pub := &fakePublisher{}

	w := NewConvertWorker(blobs, conv, pub, newFakeDedup(), nil, newTestMetrics())
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, uploadedJob("missing")))

	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 0, conv.calls)
	assert.Empty(t, pub.published)
}

func TestConvertWorker_DuplicateDeliveryIsAckedAndSkipped(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.blobs["source-1"] = []byte("video bytes")
	conv := &fakeConverter{output: []byte("audio bytes")}
	pub := &fakePublisher{}
	dedup := newFakeDedup()
	dedup.done["source-1"] = true

	w := NewConvertWorker(blobs, conv, pub, dedup, nil, newTestMetrics())
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, uploadedJob("source-1")))

	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, 0, conv.calls)
	assert.Empty(t, pub.published)
}

func TestConvertWorker_DedupLookupFailureFallsThroughToProcessing(t *testing.T) {
	blobs := newFakeBlobStore()
	blobs.blobs["source-1"] = []byte("video bytes")
	conv := &fakeConverter{output: []byte("audio bytes")}
	pub := &fakePublisher{}
	dedup := newFakeDedup()
	dedup.seenErr = errors.New("redis down")

	w := NewConvertWorker(blobs, conv, pub, dedup, nil, newTestMetrics())
	ack := &fakeAcknowledger{}
	w.handle(context.Background(), newDelivery(t, ack, uploadedJob("source-1")))

	// a broken dedup store degrades to at-least-once, never blocks work
	assert.Equal(t, 1, ack.acks)
	assert.Len(t, pub.published, 1)
}

func TestConvertWorker_MalformedMessageIsDropped(t *testing.T) {
	w := NewConvertWorker(newFakeBlobStore(), &fakeConverter{}, &fakePublisher{}, nil, nil, newTestMetrics())

	ack := &fakeAcknowledger{}
	w.handle(context.Background(), amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte("{not json")})

	// dropped without requeue so a poison message cannot loop forever
	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, 0, ack.requeues)
}
