package broker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"

	apperrors "backoffice/pkg/errors"
	"backoffice/pkg/logger"
)

// MessageHandler applies one delivered message. Returning a retryable error
// keeps the message uncommitted so it is delivered again; any other error
// drops it.
type MessageHandler func(ctx context.Context, msg Message) error

// messageSource is the slice of kafka.Reader the consumer loop needs.
type messageSource interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads one topic inside a consumer group and feeds each
// message to the handler. Offsets are committed only after the handler
// succeeds, so a crash mid-handling redelivers the message; handlers must
// be idempotent.
type KafkaConsumer struct {
	source  messageSource
	topic   string
	handle  MessageHandler
	log     *logger.Logger
	backoff time.Duration

	started int32
	closed  int32
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewKafkaConsumer(brokers []string, groupID, topic string, handle MessageHandler, log *logger.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
	})
	return newConsumer(reader, topic, handle, log)
}

func newConsumer(source messageSource, topic string, handle MessageHandler, log *logger.Logger) *KafkaConsumer {
	return &KafkaConsumer{
		source:  source,
		topic:   topic,
		handle:  handle,
		log:     log,
		backoff: time.Second,
	}
}

// Start begins the consume loop. Calling Start twice has no effect.
func (c *KafkaConsumer) Start() {
	if !atomic.CompareAndSwapInt32(&c.started, 0, 1) {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop cancels the loop, waits for the in-flight message up to the context
// deadline and closes the reader.
func (c *KafkaConsumer) Stop(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.wg.Wait()
	}()

	var waitErr error
	select {
	case <-done:
	case <-ctx.Done():
		waitErr = ctx.Err()
	}
	if err := c.source.Close(); err != nil {
		return err
	}
	return waitErr
}

func (c *KafkaConsumer) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		msg, err := c.source.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.log.Errorf("failed to fetch from %s: %v", c.topic, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		if !c.deliver(ctx, msg) {
			return
		}
	}
}

// deliver retries the handler until it succeeds or fails permanently, then
// commits the offset. It reports false when the context ended, leaving the
// offset uncommitted so the group redelivers the message.
func (c *KafkaConsumer) deliver(ctx context.Context, msg kafka.Message) bool {
	wire := Message{Topic: msg.Topic, Key: string(msg.Key), Payload: msg.Value}
	for {
		err := c.handle(ctx, wire)
		if err == nil {
			break
		}
		if !apperrors.IsRetryable(err) {
			c.log.Errorf("dropping message on %s key %s: %v", c.topic, wire.Key, err)
			break
		}
		c.log.Warnf("retrying message on %s key %s: %v", c.topic, wire.Key, err)
		select {
		case <-ctx.Done():
			return false
		case <-time.After(c.backoff):
		}
	}
	if err := c.source.CommitMessages(ctx, msg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false
		}
		c.log.Errorf("failed to commit offset on %s: %v", c.topic, err)
	}
	return true
}
