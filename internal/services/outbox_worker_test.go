package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backoffice/internal/domain/outbox"
	"backoffice/pkg/logger"
)

func seedOutboxEvent(repo *fakeOutboxRepo, eventType, aggregateID string) uuid.UUID {
	id := uuid.New()
	_ = repo.Append(context.Background(), nil, &outbox.Event{
		ID:            id,
		EventType:     eventType,
		AggregateType: "order",
		AggregateID:   aggregateID,
		Payload:       []byte(`{"order_id":1}`),
	})
	return id
}

func drainOnce(w *OutboxWorker) {
	w.processBatch()
}

func TestOutboxWorkerPublishesAndRemoves(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{}
	w := NewOutboxWorker(repo, pub, logger.NewNop())

	seedOutboxEvent(repo, "order.created", "42")
	drainOnce(w)

	msgs := pub.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "order.created", msgs[0].Topic)
	assert.Equal(t, "42", msgs[0].Key)
	assert.JSONEq(t, `{"order_id":1}`, string(msgs[0].Payload))

	// Acknowledged records are gone; nothing is republished.
	drainOnce(w)
	assert.Len(t, pub.messages(), 1)
	assert.Empty(t, repo.events)
}

func TestOutboxWorkerRetriesAfterBrokerFailure(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{failNext: 1}
	w := NewOutboxWorker(repo, pub, logger.NewNop(), WithBaseBackoff(time.Millisecond))

	seedOutboxEvent(repo, "order.created", "42")
	drainOnce(w)

	// First publish failed: the record survives with a retry schedule.
	assert.Empty(t, pub.messages())
	require.Len(t, repo.events, 1)
	assert.Equal(t, outbox.StatusPending, repo.events[0].Status)
	assert.Equal(t, 1, repo.events[0].Attempts)
	assert.NotEmpty(t, repo.events[0].LastError)

	// Wait out the backoff, then the retry succeeds and the record goes.
	time.Sleep(5 * time.Millisecond)
	drainOnce(w)
	require.Len(t, pub.messages(), 1)
	assert.Empty(t, repo.events)
}

func TestOutboxWorkerDeadLettersAfterMaxAttempts(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{failNext: 100}
	w := NewOutboxWorker(repo, pub, logger.NewNop(),
		WithMaxAttempts(3),
		WithBaseBackoff(time.Nanosecond))

	seedOutboxEvent(repo, "order.created", "42")
	for i := 0; i < 5; i++ {
		time.Sleep(time.Millisecond)
		drainOnce(w)
	}

	require.Len(t, repo.events, 1)
	assert.Equal(t, outbox.StatusFailed, repo.events[0].Status)
	assert.Empty(t, pub.messages())

	// Dead-lettered records are off the delivery path for good.
	drainOnce(w)
	assert.Empty(t, pub.messages())
}

func TestOutboxWorkerPreservesOrderHonoringClaimLimit(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{}
	w := NewOutboxWorker(repo, pub, logger.NewNop(), WithBatchSize(2))

	seedOutboxEvent(repo, "order.created", "1")
	seedOutboxEvent(repo, "order.created", "2")
	seedOutboxEvent(repo, "order.created", "3")

	drainOnce(w)
	require.Len(t, pub.messages(), 2)

	drainOnce(w)
	msgs := pub.messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "1", msgs[0].Key)
	assert.Equal(t, "2", msgs[1].Key)
	assert.Equal(t, "3", msgs[2].Key)
}

func TestOutboxWorkerRetryDoesNotLetNewerRecordOvertake(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{failNext: 1}
	w := NewOutboxWorker(repo, pub, logger.NewNop(), WithBaseBackoff(time.Millisecond))

	appendFact := func(payload string) {
		_ = repo.Append(context.Background(), nil, &outbox.Event{
			ID:            uuid.New(),
			EventType:     "order.created",
			AggregateType: "order",
			AggregateID:   "42",
			Payload:       []byte(payload),
		})
	}
	appendFact(`{"seq":1}`)
	appendFact(`{"seq":2}`)

	// The first send fails and goes into its retry window.
	drainOnce(w)
	assert.Empty(t, pub.messages())

	// While the older record waits, the newer one for the same aggregate
	// must stay behind it.
	drainOnce(w)
	assert.Empty(t, pub.messages())

	time.Sleep(5 * time.Millisecond)
	drainOnce(w)
	drainOnce(w)

	msgs := pub.messages()
	require.Len(t, msgs, 2)
	assert.JSONEq(t, `{"seq":1}`, string(msgs[0].Payload))
	assert.JSONEq(t, `{"seq":2}`, string(msgs[1].Payload))
	assert.Empty(t, repo.events)
}

func TestOutboxWorkerReclaimsAbandonedRecords(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{}
	w := NewOutboxWorker(repo, pub, logger.NewNop())

	seedOutboxEvent(repo, "order.created", "42")

	// A publisher instance claimed the record and died before sending.
	claimed, err := repo.ClaimPending(context.Background(), 10, time.Minute)
	require.Len(t, claimed, 1)
	require.NoError(t, err)

	// While the claim is fresh the record is invisible to other drains.
	drainOnce(w)
	assert.Empty(t, pub.messages())

	// Once the claim goes stale it is picked up and delivered.
	repo.events[0].UpdatedAt = time.Now().Add(-2 * time.Minute)
	drainOnce(w)
	require.Len(t, pub.messages(), 1)
	assert.Empty(t, repo.events)
}

func TestOutboxWorkerStartStop(t *testing.T) {
	repo := &fakeOutboxRepo{}
	pub := &fakePublisher{}
	w := NewOutboxWorker(repo, pub, logger.NewNop(), WithInterval(time.Millisecond))

	seedOutboxEvent(repo, "order.created", "42")

	w.Start()
	w.Start() // second call is a no-op

	require.Eventually(t, func() bool {
		return len(pub.messages()) == 1
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
	require.NoError(t, w.Stop(ctx)) // idempotent
}

func TestBackoffDoublesAndCaps(t *testing.T) {
	w := NewOutboxWorker(&fakeOutboxRepo{}, &fakePublisher{}, logger.NewNop(),
		WithBaseBackoff(time.Second))

	assert.Equal(t, time.Second, w.backoffFor(0))
	assert.Equal(t, 2*time.Second, w.backoffFor(1))
	assert.Equal(t, 8*time.Second, w.backoffFor(3))
	assert.Equal(t, time.Minute, w.backoffFor(10))
}
