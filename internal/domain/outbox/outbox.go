package outbox

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the processing state of an outbox event
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusFailed     Status = "FAILED"
)

// Event is the durable record of one emitted domain fact. It is written in
// the same transaction as the state change it describes and stays in the
// table, with published_at unset, until the broker acknowledges delivery.
type Event struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key"`
	EventType     string    `gorm:"type:varchar(100);not null;index"`
	AggregateType string    `gorm:"type:varchar(50);not null"`
	AggregateID   string    `gorm:"type:varchar(64);not null"`
	Payload       []byte    `gorm:"type:jsonb;not null"`
	Status        Status    `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Attempts      int       `gorm:"default:0"`
	LastError     string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"not null;index"`
	UpdatedAt     time.Time `gorm:"not null"`
	NextAttemptAt time.Time `gorm:"not null;index"`
	PublishedAt   *time.Time
}

// TableName returns the database table name
func (Event) TableName() string {
	return "outbox_events"
}
