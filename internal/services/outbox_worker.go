package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"backoffice/internal/domain/outbox"
	"backoffice/internal/repository"
	"backoffice/pkg/broker"
	"backoffice/pkg/logger"
)

// OutboxWorker drains the outbox table and forwards event records to the
// broker. Records are routed on their event type (topic) and aggregate id
// (partition key) and removed only after the broker acknowledges them, so
// a fact survives broker outages of arbitrary length. Delivery is
// at-least-once: a crash between publish and delete resends the record.
type OutboxWorker struct {
	outboxRepo repository.OutboxRepository
	publisher  broker.Publisher
	log        *logger.Logger

	interval    time.Duration
	batchSize   int
	maxAttempts int
	baseBackoff time.Duration
	staleClaim  time.Duration

	started  int32
	closed   int32
	stopChan chan struct{}
	wg       sync.WaitGroup
}

type OutboxWorkerOption func(*OutboxWorker)

func WithInterval(interval time.Duration) OutboxWorkerOption {
	return func(w *OutboxWorker) { w.interval = interval }
}

func WithBatchSize(size int) OutboxWorkerOption {
	return func(w *OutboxWorker) { w.batchSize = size }
}

func WithMaxAttempts(attempts int) OutboxWorkerOption {
	return func(w *OutboxWorker) { w.maxAttempts = attempts }
}

func WithBaseBackoff(backoff time.Duration) OutboxWorkerOption {
	return func(w *OutboxWorker) { w.baseBackoff = backoff }
}

func NewOutboxWorker(outboxRepo repository.OutboxRepository, publisher broker.Publisher, log *logger.Logger, opts ...OutboxWorkerOption) *OutboxWorker {
	w := &OutboxWorker{
		outboxRepo:  outboxRepo,
		publisher:   publisher,
		log:         log,
		interval:    100 * time.Millisecond,
		batchSize:   100,
		maxAttempts: 10,
		baseBackoff: time.Second,
		staleClaim:  time.Minute,
		stopChan:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins the worker loop. Calling Start twice has no effect.
func (w *OutboxWorker) Start() {
	if !atomic.CompareAndSwapInt32(&w.started, 0, 1) {
		return
	}
	w.wg.Add(1)
	go w.run()
}

// Stop shuts the worker down, waiting for the in-flight batch up to the
// context deadline.
func (w *OutboxWorker) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&w.closed, 0, 1) {
		return nil
	}
	close(w.stopChan)

	done := make(chan struct{})
	go func() {
		defer close(done)
		w.wg.Wait()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *OutboxWorker) run() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
			w.processBatch()
		}
	}
}

func (w *OutboxWorker) processBatch() {
	ctx := context.Background()
	events, err := w.outboxRepo.ClaimPending(ctx, w.batchSize, w.staleClaim)
	if err != nil {
		w.log.Errorf("failed to claim outbox batch: %v", err)
		return
	}

	for i := range events {
		w.processEvent(ctx, &events[i])
	}
}

func (w *OutboxWorker) processEvent(ctx context.Context, event *outbox.Event) {
	msg := broker.Message{
		Topic:   event.EventType,
		Key:     event.AggregateID,
		Payload: event.Payload,
	}

	if err := w.publisher.Publish(ctx, msg); err != nil {
		if event.Attempts+1 >= w.maxAttempts {
			w.log.Errorf("outbox event %s exhausted %d attempts, moving to dead letter: %v",
				event.ID, w.maxAttempts, err)
			if dlErr := w.outboxRepo.MoveToDeadLetter(ctx, event.ID, err.Error()); dlErr != nil {
				w.log.Errorf("failed to dead-letter outbox event %s: %v", event.ID, dlErr)
			}
			return
		}
		next := time.Now().Add(w.backoffFor(event.Attempts))
		if failErr := w.outboxRepo.MarkFailed(ctx, event.ID, err.Error(), next); failErr != nil {
			w.log.Errorf("failed to mark outbox event %s failed: %v", event.ID, failErr)
		}
		return
	}

	// Broker acknowledged. If the delete fails the record is resent on a
	// later cycle, which consumers must tolerate (at-least-once).
	if err := w.outboxRepo.MarkPublished(ctx, event.ID); err != nil {
		w.log.Errorf("failed to remove published outbox event %s: %v", event.ID, err)
	}
}

func (w *OutboxWorker) backoffFor(attempts int) time.Duration {
	backoff := w.baseBackoff
	for i := 0; i < attempts && backoff < time.Minute; i++ {
		backoff *= 2
	}
	if backoff > time.Minute {
		backoff = time.Minute
	}
	return backoff
}
