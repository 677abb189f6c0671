package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"backoffice/internal/domain/attendance"
	"backoffice/internal/events"
	"backoffice/internal/repository"
	pkgevents "backoffice/pkg/events"
	"backoffice/pkg/logger"
)

// AttendanceRecordService owns attendance records and the process-local
// settings snapshot. Every record mutation emits attendance.recorded with
// the snapshot that was current at write time.
type AttendanceRecordService struct {
	records repository.RecordRepository
	outbox  repository.OutboxRepository
	txs     repository.TxRunner
	bus     *pkgevents.Bus
	log     *logger.Logger

	// Replaced wholesale on every setting-updated event; readers see the
	// old or the new snapshot, never a mix.
	snapshot atomic.Pointer[attendance.SettingsSnapshot]
}

func NewAttendanceRecordService(
	records repository.RecordRepository,
	outboxRepo repository.OutboxRepository,
	txs repository.TxRunner,
	bus *pkgevents.Bus,
	log *logger.Logger,
) *AttendanceRecordService {
	s := &AttendanceRecordService{
		records: records,
		outbox:  outboxRepo,
		txs:     txs,
		bus:     bus,
		log:     log,
	}
	def := attendance.DefaultSnapshot()
	s.snapshot.Store(&def)
	return s
}

// Snapshot returns the current settings snapshot without blocking or
// touching the network. Before any update event has arrived this is the
// hard-coded default.
func (s *AttendanceRecordService) Snapshot() attendance.SettingsSnapshot {
	return *s.snapshot.Load()
}

func (s *AttendanceRecordService) CreateRecord(ctx context.Context, rec *attendance.Record) (*attendance.Record, error) {
	if rec.Status == "" {
		rec.Status = attendance.StatusWorking
	}

	evt, err := s.saveAndRecord(ctx, rec, true)
	if err != nil {
		return nil, err
	}
	s.log.Infof("attendance record created: id=%d employee=%s", rec.ID, rec.EmployeeID)
	s.bus.Dispatch(ctx, evt)
	return rec, nil
}

func (s *AttendanceRecordService) UpdateActualTimes(ctx context.Context, recordID int64, clockIn, clockOut *time.Time) (*attendance.Record, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	rec.UpdateActualTimes(clockIn, clockOut)

	evt, err := s.saveAndRecord(ctx, rec, false)
	if err != nil {
		return nil, err
	}
	s.log.Infof("attendance record times updated: id=%d", recordID)
	s.bus.Dispatch(ctx, evt)
	return rec, nil
}

func (s *AttendanceRecordService) MarkAsLeave(ctx context.Context, recordID int64, note string) (*attendance.Record, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	rec.MarkAsLeave()
	rec.Note = note

	evt, err := s.saveAndRecord(ctx, rec, false)
	if err != nil {
		return nil, err
	}
	s.log.Infof("attendance record marked as leave: id=%d", recordID)
	s.bus.Dispatch(ctx, evt)
	return rec, nil
}

func (s *AttendanceRecordService) MarkAsAbsent(ctx context.Context, recordID int64, note string) (*attendance.Record, error) {
	rec, err := s.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	rec.MarkAsAbsent(note)

	evt, err := s.saveAndRecord(ctx, rec, false)
	if err != nil {
		return nil, err
	}
	s.log.Infof("attendance record marked as absent: id=%d", recordID)
	s.bus.Dispatch(ctx, evt)
	return rec, nil
}

func (s *AttendanceRecordService) GetRecord(ctx context.Context, recordID int64) (*attendance.Record, error) {
	return s.records.GetByID(ctx, recordID)
}

func (s *AttendanceRecordService) ListRecords(ctx context.Context) ([]attendance.Record, error) {
	return s.records.List(ctx)
}

func (s *AttendanceRecordService) ListRecordsForEmployee(ctx context.Context, employeeID string) ([]attendance.Record, error) {
	return s.records.ListByEmployee(ctx, employeeID)
}

func (s *AttendanceRecordService) ListRecordsForEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.Record, error) {
	return s.records.ListByEmployeeBetween(ctx, employeeID, start, end)
}

// HandleSettingUpdated replaces the settings snapshot with the value from
// the event. The cache intentionally lags the settings store by the event
// delivery latency.
func (s *AttendanceRecordService) HandleSettingUpdated(ctx context.Context, event pkgevents.Event) error {
	evt, ok := event.(*events.SettingUpdatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.EventType(), event)
	}

	snap := attendance.SettingsSnapshot{
		SettingID:         evt.SettingID,
		OrganizationID:    evt.OrganizationID,
		StandardStartTime: evt.StandardStartTime,
		StandardEndTime:   evt.StandardEndTime,
		BreakMinutes:      evt.BreakMinutes,
		OvertimeAllowed:   evt.OvertimeAllowed,
	}
	if evt.EffectiveFrom != nil {
		snap.EffectiveFrom = *evt.EffectiveFrom
	}
	s.snapshot.Store(&snap)
	s.log.Infof("settings snapshot replaced: organization=%s setting=%d", snap.OrganizationID, snap.SettingID)
	return nil
}

func (s *AttendanceRecordService) saveAndRecord(ctx context.Context, rec *attendance.Record, create bool) (*events.AttendanceRecordedEvent, error) {
	var evt *events.AttendanceRecordedEvent
	err := s.txs.InTx(ctx, func(tx *gorm.DB) error {
		var err error
		if create {
			err = s.records.Create(ctx, tx, rec)
		} else {
			err = s.records.Save(ctx, tx, rec)
		}
		if err != nil {
			return err
		}
		evt = events.NewAttendanceRecorded(rec, s.Snapshot())
		return appendToOutbox(ctx, tx, s.outbox, evt)
	})
	if err != nil {
		return nil, err
	}
	return evt, nil
}
