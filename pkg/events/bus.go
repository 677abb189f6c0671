package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	apperrors "backoffice/pkg/errors"
	"backoffice/pkg/logger"
)

// Bus is the in-process dispatcher. Modules register handlers at startup
// with Subscribe; producers call Dispatch once their transaction has
// committed. Delivery is per-subscriber independent: one handler failing
// never blocks the others and never unwinds the committed transaction.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	log      *logger.Logger
}

func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for an event type. Intended to be called
// during process wiring, before any Dispatch.
func (b *Bus) Subscribe(t Type, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = append(b.handlers[t], h)
}

// Dispatch delivers event to every subscriber of its type, synchronously,
// in registration order. This is the optimistic fast path run right after
// the producing transaction commits: handler errors are logged, not
// surfaced, because the fact sits in the outbox and comes back through the
// broker consumers until the handler succeeds.
func (b *Bus) Dispatch(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventType()]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			if apperrors.IsRetryable(err) {
				b.log.Warnf("handler for %s failed, event eligible for redelivery: %v", event.EventType(), err)
			} else {
				b.log.Errorf("handler for %s failed permanently: %v", event.EventType(), err)
			}
		}
	}
}

// Deliver runs every subscriber like Dispatch but surfaces the combined
// handler error so the caller can schedule redelivery. One handler failing
// still never stops the others; a redelivered event therefore reaches every
// subscriber again, which is why handlers must be idempotent.
func (b *Bus) Deliver(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.EventType()]
	b.mu.RUnlock()

	var result *multierror.Error
	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			result = multierror.Append(result, fmt.Errorf("handler for %s: %w", event.EventType(), err))
		}
	}
	return result.ErrorOrNil()
}
