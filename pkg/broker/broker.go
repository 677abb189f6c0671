package broker

import "context"

// Message is one externalized domain fact. Key selects the partition, so
// all facts for one aggregate are delivered to external consumers in order.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

// Publisher forwards messages to the pub/sub broker. Delivery is
// at-least-once; the outbox publisher may hand over the same message twice.
type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}
