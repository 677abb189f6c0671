package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"backoffice/internal/domain/outbox"
)

type outboxRepository struct {
	db *gorm.DB
}

func NewOutboxRepository(db *gorm.DB) OutboxRepository {
	return &outboxRepository{db: db}
}

func (r *outboxRepository) Append(ctx context.Context, tx *gorm.DB, event *outbox.Event) error {
	execDB := tx
	if execDB == nil {
		execDB = r.db
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Status == "" {
		event.Status = outbox.StatusPending
	}
	if event.NextAttemptAt.IsZero() {
		event.NextAttemptAt = time.Now()
	}
	return execDB.WithContext(ctx).Create(event).Error
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]outbox.Event, error) {
	var claimed []outbox.Event
	now := time.Now()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var batch []outbox.Event
		err := tx.
			Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("(status = ? OR (status = ? AND updated_at < ?)) AND next_attempt_at <= ?",
				outbox.StatusPending, outbox.StatusProcessing, now.Add(-staleAfter), now).
			// An aggregate's facts leave in creation order: a record whose
			// predecessor for the same aggregate is still undelivered (for
			// example waiting out a retry backoff) stays behind it. A
			// dead-lettered predecessor does not hold the line up.
			Where("NOT EXISTS (SELECT 1 FROM outbox_events prior"+
				" WHERE prior.aggregate_type = outbox_events.aggregate_type"+
				" AND prior.aggregate_id = outbox_events.aggregate_id"+
				" AND prior.created_at < outbox_events.created_at"+
				" AND prior.status IN ?)",
				[]outbox.Status{outbox.StatusPending, outbox.StatusProcessing}).
			Order("created_at ASC").
			Limit(limit).
			Find(&batch).Error
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(batch))
		for i := range batch {
			ids = append(ids, batch[i].ID)
		}
		if err := tx.Model(&outbox.Event{}).
			Where("id IN ?", ids).
			Updates(map[string]interface{}{
				"status":     outbox.StatusProcessing,
				"updated_at": now,
			}).Error; err != nil {
			return err
		}
		claimed = batch
		return nil
	})
	return claimed, err
}

func (r *outboxRepository) MarkPublished(ctx context.Context, id uuid.UUID) error {
	// The record has done its job once the broker acknowledged it; the
	// table only holds undelivered and dead-lettered facts.
	return r.db.WithContext(ctx).Delete(&outbox.Event{}, "id = ?", id).Error
}

func (r *outboxRepository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttemptAt time.Time) error {
	return r.db.WithContext(ctx).Model(&outbox.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":          outbox.StatusPending,
			"attempts":        gorm.Expr("attempts + 1"),
			"last_error":      errMsg,
			"next_attempt_at": nextAttemptAt,
			"updated_at":      time.Now(),
		}).Error
}

func (r *outboxRepository) MoveToDeadLetter(ctx context.Context, id uuid.UUID, errMsg string) error {
	return r.db.WithContext(ctx).Model(&outbox.Event{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     outbox.StatusFailed,
			"last_error": errMsg,
			"updated_at": time.Now(),
		}).Error
}
