package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/domain/attendance"
	"backoffice/internal/events"
	"backoffice/internal/repository"
	apperrors "backoffice/pkg/errors"
	pkgevents "backoffice/pkg/events"
	"backoffice/pkg/logger"
)

// ApplicationService owns leave/correction applications and hosts the
// leave auto-approval saga: when an attendance record lands with leave
// status, every pending paid-leave application whose period covers the
// work date is approved.
type ApplicationService struct {
	apps   repository.ApplicationRepository
	outbox repository.OutboxRepository
	txs    repository.TxRunner
	bus    *pkgevents.Bus
	log    *logger.Logger
}

func NewApplicationService(
	apps repository.ApplicationRepository,
	outboxRepo repository.OutboxRepository,
	txs repository.TxRunner,
	bus *pkgevents.Bus,
	log *logger.Logger,
) *ApplicationService {
	return &ApplicationService{
		apps:   apps,
		outbox: outboxRepo,
		txs:    txs,
		bus:    bus,
		log:    log,
	}
}

func (s *ApplicationService) CreateApplication(ctx context.Context, app *attendance.Application) (*attendance.Application, error) {
	if app.Status == "" {
		app.Status = attendance.ApplicationPending
	}

	var evt *events.ApplicationCreatedEvent
	err := s.txs.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.apps.Create(ctx, tx, app); err != nil {
			return err
		}
		evt = events.NewApplicationCreated(app)
		return appendToOutbox(ctx, tx, s.outbox, evt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("application created: id=%d type=%s employee=%s", app.ID, app.Type, app.EmployeeID)
	s.bus.Dispatch(ctx, evt)
	return app, nil
}

func (s *ApplicationService) UpdateStatus(ctx context.Context, applicationID int64, newStatus attendance.ApplicationStatus) (*attendance.Application, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.Status != attendance.ApplicationPending {
		return nil, fmt.Errorf("%w: application %d is already %s", apperrors.ErrInvalidTransition, applicationID, app.Status)
	}

	oldStatus := app.Status
	app.ChangeStatus(newStatus)

	var evt *events.ApplicationStatusChangedEvent
	err = s.txs.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.apps.Save(ctx, tx, app); err != nil {
			return err
		}
		evt = events.NewApplicationStatusChanged(app, oldStatus)
		return appendToOutbox(ctx, tx, s.outbox, evt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("application status updated: id=%d %s -> %s", applicationID, oldStatus, newStatus)
	s.bus.Dispatch(ctx, evt)
	return app, nil
}

func (s *ApplicationService) GetApplication(ctx context.Context, applicationID int64) (*attendance.Application, error) {
	return s.apps.GetByID(ctx, applicationID)
}

func (s *ApplicationService) ListApplications(ctx context.Context) ([]attendance.Application, error) {
	return s.apps.List(ctx)
}

func (s *ApplicationService) ListApplicationsForEmployee(ctx context.Context, employeeID string) ([]attendance.Application, error) {
	return s.apps.ListByEmployee(ctx, employeeID)
}

// ListPendingApplicationsByType returns the approval queue for one
// application type, oldest first.
func (s *ApplicationService) ListPendingApplicationsByType(ctx context.Context, appType attendance.ApplicationType) ([]attendance.Application, error) {
	return s.apps.ListPendingByType(ctx, appType)
}

// HandleAttendanceRecorded runs the auto-approval saga. Redelivery of the
// same fact is harmless: already-approved applications are no longer
// pending and are not touched again. Applications with an incomplete leave
// period are tolerated and skipped.
func (s *ApplicationService) HandleAttendanceRecorded(ctx context.Context, event pkgevents.Event) error {
	evt, ok := event.(*events.AttendanceRecordedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.EventType(), event)
	}
	if evt.Status != attendance.StatusLeave {
		return nil
	}
	ctx = context.WithValue(ctx, logger.EmployeeIdKey, evt.EmployeeID)

	var emitted []pkgevents.Event
	err := s.txs.InTx(ctx, func(tx *gorm.DB) error {
		pending, err := s.apps.ListPendingByEmployeeAndType(ctx, tx, evt.EmployeeID, attendance.TypePaidLeave)
		if err != nil {
			return err
		}

		for i := range pending {
			app := &pending[i]
			if app.Status != attendance.ApplicationPending {
				continue
			}
			if app.StartDate == nil || app.EndDate == nil {
				s.log.Warnf("application %d has incomplete leave period, skipping", app.ID)
				continue
			}
			if !app.CoversDate(evt.WorkDate) {
				continue
			}

			oldStatus := app.Status
			app.ChangeStatus(attendance.ApplicationApproved)
			if err := s.apps.Save(ctx, tx, app); err != nil {
				return err
			}
			statusEvt := events.NewApplicationStatusChanged(app, oldStatus)
			if err := appendToOutbox(ctx, tx, s.outbox, statusEvt); err != nil {
				return err
			}
			emitted = append(emitted, statusEvt)
			s.log.InfofCtx(ctx, "leave application auto-approved: id=%d workDate=%s",
				app.ID, evt.WorkDate.Format("2006-01-02"))
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, e := range emitted {
		s.bus.Dispatch(ctx, e)
	}
	return nil
}
