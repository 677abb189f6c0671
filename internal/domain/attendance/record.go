package attendance

import "time"

type RecordStatus string

const (
	StatusWorking   RecordStatus = "WORKING"
	StatusCompleted RecordStatus = "COMPLETED"
	StatusAbsent    RecordStatus = "ABSENT"
	StatusLeave     RecordStatus = "LEAVE"
)

// Record is one employee's attendance for one work date.
type Record struct {
	ID            int64        `gorm:"primaryKey;autoIncrement"`
	EmployeeID    string       `gorm:"type:varchar(64);not null;index"`
	WorkDate      time.Time    `gorm:"type:date;not null"`
	ClockIn       *time.Time
	ClockOut      *time.Time
	WorkedMinutes *int
	Status        RecordStatus `gorm:"type:varchar(20);not null;default:'WORKING'"`
	Note          string       `gorm:"type:varchar(512)"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Record) TableName() string {
	return "attendance_records"
}

// UpdateActualTimes sets the actual clock in/out pair and marks the record
// completed when the pair is well ordered.
func (r *Record) UpdateActualTimes(clockIn, clockOut *time.Time) {
	r.ClockIn = clockIn
	r.ClockOut = clockOut
	if clockIn != nil && clockOut != nil && !clockOut.Before(*clockIn) {
		r.Status = StatusCompleted
	}
	r.RecalculateWorkedMinutes()
}

func (r *Record) MarkAsAbsent(note string) {
	r.Status = StatusAbsent
	r.Note = note
}

func (r *Record) MarkAsLeave() {
	r.Status = StatusLeave
}

func (r *Record) RecalculateWorkedMinutes() {
	if r.ClockIn != nil && r.ClockOut != nil && !r.ClockOut.Before(*r.ClockIn) {
		minutes := int(r.ClockOut.Sub(*r.ClockIn).Minutes())
		r.WorkedMinutes = &minutes
	}
}
