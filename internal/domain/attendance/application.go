package attendance

import (
	"time"

	apperrors "backoffice/pkg/errors"
)

type ApplicationType string

const (
	TypePaidLeave  ApplicationType = "PAID_LEAVE"
	TypeCorrection ApplicationType = "CORRECTION"
)

type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationApproved ApplicationStatus = "APPROVED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// Application is an employee request against their attendance: a paid
// leave booking or a record correction.
type Application struct {
	ID         int64             `gorm:"primaryKey;autoIncrement"`
	EmployeeID string            `gorm:"type:varchar(64);not null;index"`
	Type       ApplicationType   `gorm:"type:varchar(20);not null"`
	Status     ApplicationStatus `gorm:"type:varchar(20);not null;default:'PENDING'"`

	// Target date and requested times, used by correction requests.
	TargetDate        *time.Time `gorm:"type:date"`
	RequestedClockIn  *time.Time
	RequestedClockOut *time.Time

	// Paid leave period. Either bound may be missing on partially filled
	// applications; such applications are skipped by the auto-approval flow.
	StartDate *time.Time `gorm:"type:date"`
	EndDate   *time.Time `gorm:"type:date"`

	Reason     string `gorm:"type:varchar(512)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ResolvedAt *time.Time
}

func (Application) TableName() string {
	return "attendance_applications"
}

// ChangeStatus transitions the application and stamps ResolvedAt on any
// terminal status.
func (a *Application) ChangeStatus(newStatus ApplicationStatus) {
	a.Status = newStatus
	if newStatus == ApplicationApproved || newStatus == ApplicationRejected {
		a.ResolvedAt = apperrors.NowPtr()
	}
}

// CoversDate reports whether the paid leave period includes date. A missing
// bound means the period is not fully specified and nothing is covered.
func (a *Application) CoversDate(date time.Time) bool {
	if a.StartDate == nil || a.EndDate == nil {
		return false
	}
	d := date.Truncate(24 * time.Hour)
	return !d.Before(a.StartDate.Truncate(24*time.Hour)) && !d.After(a.EndDate.Truncate(24*time.Hour))
}
