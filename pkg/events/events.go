package events

import "context"

// Type identifies a kind of domain fact, e.g. "order.created". It doubles
// as the broker topic when the fact is externalized.
type Type string

// Event is one committed domain fact. AggregateID keys broker routing so
// facts about one aggregate are delivered in order.
type Event interface {
	EventType() Type
	AggregateType() string
	AggregateID() string
}

// Handler consumes a single event. Handlers must be idempotent: the same
// event may be delivered more than once.
type Handler func(ctx context.Context, event Event) error
