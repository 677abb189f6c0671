package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backoffice/internal/domain/outbox"
	"backoffice/internal/repository"
	pkgevents "backoffice/pkg/events"
)

// appendToOutbox serializes the event and stores it inside the caller's
// transaction. A failure here fails the whole transaction, so a committed
// state change always has its event record and a rolled back one never does.
func appendToOutbox(ctx context.Context, tx *gorm.DB, repo repository.OutboxRepository, event pkgevents.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.EventType(), err)
	}

	return repo.Append(ctx, tx, &outbox.Event{
		ID:            uuid.New(),
		EventType:     string(event.EventType()),
		AggregateType: event.AggregateType(),
		AggregateID:   event.AggregateID(),
		Payload:       payload,
	})
}
