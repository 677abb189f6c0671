package events

import (
	"strconv"
	"time"

	"backoffice/internal/domain/attendance"
	"backoffice/internal/domain/order"
	"backoffice/pkg/events"
)

const (
	EventOrderCreated             events.Type = "order.created"
	EventAttendanceRecorded       events.Type = "attendance.recorded"
	EventSettingUpdated           events.Type = "attendance.management_setting.updated"
	EventApplicationCreated       events.Type = "attendance.application.created"
	EventApplicationStatusChanged events.Type = "attendance.application.status_changed"
)

// OrderCreatedEvent is emitted when an order commits. The inventory module
// reacts to it by reserving stock.
type OrderCreatedEvent struct {
	OrderID      int64     `json:"order_id"`
	ProductID    int64     `json:"product_id"`
	Quantity     int       `json:"quantity"`
	CustomerName string    `json:"customer_name"`
	CreatedAt    time.Time `json:"created_at"`
}

func (e *OrderCreatedEvent) EventType() events.Type { return EventOrderCreated }
func (e *OrderCreatedEvent) AggregateType() string  { return "order" }
func (e *OrderCreatedEvent) AggregateID() string    { return strconv.FormatInt(e.OrderID, 10) }

func NewOrderCreated(o *order.Order) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		OrderID:      o.ID,
		ProductID:    o.ProductID,
		Quantity:     o.Quantity,
		CustomerName: o.CustomerName,
		CreatedAt:    o.CreatedAt,
	}
}

// AttendanceRecordedEvent carries the record together with the management
// setting snapshot that was current when the record was written.
type AttendanceRecordedEvent struct {
	RecordID      int64                   `json:"record_id"`
	EmployeeID    string                  `json:"employee_id"`
	WorkDate      time.Time               `json:"work_date"`
	ClockIn       *time.Time              `json:"clock_in,omitempty"`
	ClockOut      *time.Time              `json:"clock_out,omitempty"`
	WorkedMinutes *int                    `json:"worked_minutes,omitempty"`
	Status        attendance.RecordStatus `json:"status"`
	Note          string                  `json:"note,omitempty"`

	SettingID         int64  `json:"setting_id,omitempty"`
	OrganizationID    string `json:"organization_id"`
	StandardStartTime string `json:"standard_start_time"`
	StandardEndTime   string `json:"standard_end_time"`
	BreakMinutes      int    `json:"break_minutes"`
	OvertimeAllowed   bool   `json:"overtime_allowed"`
}

func (e *AttendanceRecordedEvent) EventType() events.Type { return EventAttendanceRecorded }
func (e *AttendanceRecordedEvent) AggregateType() string  { return "attendance_record" }
func (e *AttendanceRecordedEvent) AggregateID() string    { return e.EmployeeID }

func NewAttendanceRecorded(r *attendance.Record, snapshot attendance.SettingsSnapshot) *AttendanceRecordedEvent {
	return &AttendanceRecordedEvent{
		RecordID:          r.ID,
		EmployeeID:        r.EmployeeID,
		WorkDate:          r.WorkDate,
		ClockIn:           r.ClockIn,
		ClockOut:          r.ClockOut,
		WorkedMinutes:     r.WorkedMinutes,
		Status:            r.Status,
		Note:              r.Note,
		SettingID:         snapshot.SettingID,
		OrganizationID:    snapshot.OrganizationID,
		StandardStartTime: snapshot.StandardStartTime,
		StandardEndTime:   snapshot.StandardEndTime,
		BreakMinutes:      snapshot.BreakMinutes,
		OvertimeAllowed:   snapshot.OvertimeAllowed,
	}
}

// SettingUpdatedEvent is emitted when a management setting is created or
// changed; the attendance record module replaces its snapshot with it.
type SettingUpdatedEvent struct {
	SettingID         int64      `json:"setting_id"`
	OrganizationID    string     `json:"organization_id"`
	StandardStartTime string     `json:"standard_start_time"`
	StandardEndTime   string     `json:"standard_end_time"`
	BreakMinutes      int        `json:"break_minutes"`
	OvertimeAllowed   bool       `json:"overtime_allowed"`
	EffectiveFrom     *time.Time `json:"effective_from,omitempty"`
	Note              string     `json:"note,omitempty"`
}

func (e *SettingUpdatedEvent) EventType() events.Type { return EventSettingUpdated }
func (e *SettingUpdatedEvent) AggregateType() string  { return "management_setting" }
func (e *SettingUpdatedEvent) AggregateID() string    { return e.OrganizationID }

func NewSettingUpdated(s *attendance.ManagementSetting) *SettingUpdatedEvent {
	return &SettingUpdatedEvent{
		SettingID:         s.ID,
		OrganizationID:    s.OrganizationID,
		StandardStartTime: s.StandardStartTime,
		StandardEndTime:   s.StandardEndTime,
		BreakMinutes:      s.BreakMinutes,
		OvertimeAllowed:   s.OvertimeAllowed,
		EffectiveFrom:     s.EffectiveFrom,
		Note:              s.Note,
	}
}

// ApplicationCreatedEvent is emitted when an employee files an application.
type ApplicationCreatedEvent struct {
	ApplicationID int64                      `json:"application_id"`
	EmployeeID    string                     `json:"employee_id"`
	Type          attendance.ApplicationType `json:"type"`
	StartDate     *time.Time                 `json:"start_date,omitempty"`
	EndDate       *time.Time                 `json:"end_date,omitempty"`
	CreatedAt     time.Time                  `json:"created_at"`
}

func (e *ApplicationCreatedEvent) EventType() events.Type { return EventApplicationCreated }
func (e *ApplicationCreatedEvent) AggregateType() string  { return "attendance_application" }
func (e *ApplicationCreatedEvent) AggregateID() string {
	return strconv.FormatInt(e.ApplicationID, 10)
}

func NewApplicationCreated(a *attendance.Application) *ApplicationCreatedEvent {
	return &ApplicationCreatedEvent{
		ApplicationID: a.ID,
		EmployeeID:    a.EmployeeID,
		Type:          a.Type,
		StartDate:     a.StartDate,
		EndDate:       a.EndDate,
		CreatedAt:     a.CreatedAt,
	}
}

// ApplicationStatusChangedEvent is emitted on every status transition,
// including the saga's automatic approvals.
type ApplicationStatusChangedEvent struct {
	ApplicationID int64                        `json:"application_id"`
	EmployeeID    string                       `json:"employee_id"`
	Type          attendance.ApplicationType   `json:"type"`
	OldStatus     attendance.ApplicationStatus `json:"old_status"`
	NewStatus     attendance.ApplicationStatus `json:"new_status"`
	ResolvedAt    *time.Time                   `json:"resolved_at,omitempty"`
}

func (e *ApplicationStatusChangedEvent) EventType() events.Type {
	return EventApplicationStatusChanged
}
func (e *ApplicationStatusChangedEvent) AggregateType() string { return "attendance_application" }
func (e *ApplicationStatusChangedEvent) AggregateID() string {
	return strconv.FormatInt(e.ApplicationID, 10)
}

func NewApplicationStatusChanged(a *attendance.Application, oldStatus attendance.ApplicationStatus) *ApplicationStatusChangedEvent {
	return &ApplicationStatusChangedEvent{
		ApplicationID: a.ID,
		EmployeeID:    a.EmployeeID,
		Type:          a.Type,
		OldStatus:     oldStatus,
		NewStatus:     a.Status,
		ResolvedAt:    a.ResolvedAt,
	}
}
