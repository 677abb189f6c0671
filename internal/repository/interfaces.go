package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backoffice/internal/domain/attendance"
	"backoffice/internal/domain/order"
	"backoffice/internal/domain/outbox"
	"backoffice/internal/domain/product"
)

// TxRunner runs fn inside one atomic transaction. Repository methods that
// accept a tx must be handed the *gorm.DB given to fn so the business
// mutation and its outbox record commit or roll back together.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxRepository interface {
	// Append writes the event record inside the caller's transaction.
	Append(ctx context.Context, tx *gorm.DB, event *outbox.Event) error

	// ClaimPending fetches up to limit undelivered records, oldest first,
	// moving them to PROCESSING so a second publisher instance does not
	// claim the same batch. Records stuck in PROCESSING longer than
	// staleAfter are considered abandoned by a crashed publisher and are
	// claimed again.
	ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]outbox.Event, error)

	// MarkPublished removes the record after broker acknowledgment.
	MarkPublished(ctx context.Context, id uuid.UUID) error

	// MarkFailed returns the record to PENDING with an incremented attempt
	// count and a scheduled retry time.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttemptAt time.Time) error

	// MoveToDeadLetter parks the record as FAILED for operator attention.
	MoveToDeadLetter(ctx context.Context, id uuid.UUID, errMsg string) error
}

type OrderRepository interface {
	Create(ctx context.Context, tx *gorm.DB, o *order.Order) error
	Save(ctx context.Context, tx *gorm.DB, o *order.Order) error
	// GetByID reads inside tx when one is given, so an event handler can
	// check and flip the order status atomically with its own mutation.
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*order.Order, error)
	List(ctx context.Context) ([]order.Order, error)
	ListByCustomer(ctx context.Context, customerName string) ([]order.Order, error)
	Delete(ctx context.Context, id int64) error
}

type ProductRepository interface {
	Create(ctx context.Context, tx *gorm.DB, p *product.Product) error
	Save(ctx context.Context, tx *gorm.DB, p *product.Product) error
	// GetByID reads the authoritative row from the store, never a cache.
	GetByID(ctx context.Context, tx *gorm.DB, id int64) (*product.Product, error)
	List(ctx context.Context) ([]product.Product, error)
	ListByCategory(ctx context.Context, category string) ([]product.Product, error)
	SearchByName(ctx context.Context, name string) ([]product.Product, error)
	Delete(ctx context.Context, id int64) error
}

type RecordRepository interface {
	Create(ctx context.Context, tx *gorm.DB, r *attendance.Record) error
	Save(ctx context.Context, tx *gorm.DB, r *attendance.Record) error
	GetByID(ctx context.Context, id int64) (*attendance.Record, error)
	List(ctx context.Context) ([]attendance.Record, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]attendance.Record, error)
	ListByEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.Record, error)
}

type SettingRepository interface {
	Create(ctx context.Context, tx *gorm.DB, s *attendance.ManagementSetting) error
	Save(ctx context.Context, tx *gorm.DB, s *attendance.ManagementSetting) error
	GetByID(ctx context.Context, id int64) (*attendance.ManagementSetting, error)
	List(ctx context.Context) ([]attendance.ManagementSetting, error)
}

type ApplicationRepository interface {
	Create(ctx context.Context, tx *gorm.DB, a *attendance.Application) error
	Save(ctx context.Context, tx *gorm.DB, a *attendance.Application) error
	GetByID(ctx context.Context, id int64) (*attendance.Application, error)
	List(ctx context.Context) ([]attendance.Application, error)
	ListByEmployee(ctx context.Context, employeeID string) ([]attendance.Application, error)
	ListPendingByType(ctx context.Context, appType attendance.ApplicationType) ([]attendance.Application, error)
	ListPendingByEmployeeAndType(ctx context.Context, tx *gorm.DB, employeeID string, appType attendance.ApplicationType) ([]attendance.Application, error)
}
