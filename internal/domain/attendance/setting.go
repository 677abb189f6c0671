package attendance

import "time"

// ManagementSetting is the organization wide attendance policy.
type ManagementSetting struct {
	ID                int64     `gorm:"primaryKey;autoIncrement"`
	OrganizationID    string    `gorm:"type:varchar(64);not null;index"`
	StandardStartTime string    `gorm:"type:varchar(5);not null"` // "HH:MM"
	StandardEndTime   string    `gorm:"type:varchar(5);not null"`
	BreakMinutes      int       `gorm:"not null;default:60"`
	OvertimeAllowed   bool      `gorm:"not null;default:true"`
	EffectiveFrom     *time.Time `gorm:"type:date"`
	Note              string    `gorm:"type:varchar(512)"`
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

func (ManagementSetting) TableName() string {
	return "attendance_management_settings"
}

// UpdateBy copies the mutable policy fields from source.
func (s *ManagementSetting) UpdateBy(source *ManagementSetting) {
	s.StandardStartTime = source.StandardStartTime
	s.StandardEndTime = source.StandardEndTime
	s.BreakMinutes = source.BreakMinutes
	s.OvertimeAllowed = source.OvertimeAllowed
	s.EffectiveFrom = source.EffectiveFrom
	s.Note = source.Note
}

// SettingsSnapshot is the process-local copy of the latest management
// setting. It is replaced wholesale on every setting-updated event and read
// by the record creation path; readers tolerate it lagging the settings
// store by the event delivery latency.
type SettingsSnapshot struct {
	SettingID         int64
	OrganizationID    string
	StandardStartTime string
	StandardEndTime   string
	BreakMinutes      int
	OvertimeAllowed   bool
	EffectiveFrom     time.Time
}

// DefaultSnapshot is what readers observe before any setting-updated event
// has arrived in this process.
func DefaultSnapshot() SettingsSnapshot {
	return SettingsSnapshot{
		OrganizationID:    "default",
		StandardStartTime: "09:00",
		StandardEndTime:   "18:00",
		BreakMinutes:      60,
		OvertimeAllowed:   true,
		EffectiveFrom:     time.Now().Truncate(24 * time.Hour),
	}
}
