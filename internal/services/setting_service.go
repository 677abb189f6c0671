package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/domain/attendance"
	"backoffice/internal/events"
	"backoffice/internal/repository"
	pkgevents "backoffice/pkg/events"
	"backoffice/pkg/logger"
)

// SettingService owns the organizational management settings. Every create
// or update emits a setting-updated event that the record module folds into
// its snapshot.
type SettingService struct {
	settings repository.SettingRepository
	outbox   repository.OutboxRepository
	txs      repository.TxRunner
	bus      *pkgevents.Bus
	log      *logger.Logger
}

func NewSettingService(
	settings repository.SettingRepository,
	outboxRepo repository.OutboxRepository,
	txs repository.TxRunner,
	bus *pkgevents.Bus,
	log *logger.Logger,
) *SettingService {
	return &SettingService{
		settings: settings,
		outbox:   outboxRepo,
		txs:      txs,
		bus:      bus,
		log:      log,
	}
}

func (s *SettingService) CreateSetting(ctx context.Context, setting *attendance.ManagementSetting) (*attendance.ManagementSetting, error) {
	var evt *events.SettingUpdatedEvent
	err := s.txs.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.settings.Create(ctx, tx, setting); err != nil {
			return err
		}
		evt = events.NewSettingUpdated(setting)
		return appendToOutbox(ctx, tx, s.outbox, evt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("management setting created: id=%d organization=%s", setting.ID, setting.OrganizationID)
	s.bus.Dispatch(ctx, evt)
	return setting, nil
}

func (s *SettingService) UpdateSetting(ctx context.Context, settingID int64, source *attendance.ManagementSetting) (*attendance.ManagementSetting, error) {
	existing, err := s.settings.GetByID(ctx, settingID)
	if err != nil {
		return nil, err
	}
	existing.UpdateBy(source)

	var evt *events.SettingUpdatedEvent
	err = s.txs.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.settings.Save(ctx, tx, existing); err != nil {
			return err
		}
		evt = events.NewSettingUpdated(existing)
		return appendToOutbox(ctx, tx, s.outbox, evt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("management setting updated: id=%d", settingID)
	s.bus.Dispatch(ctx, evt)
	return existing, nil
}

func (s *SettingService) GetSetting(ctx context.Context, settingID int64) (*attendance.ManagementSetting, error) {
	return s.settings.GetByID(ctx, settingID)
}

func (s *SettingService) ListSettings(ctx context.Context) ([]attendance.ManagementSetting, error) {
	return s.settings.List(ctx)
}

// HandleApplicationStatusChanged records application status transitions for
// the settings module's audit trail.
func (s *SettingService) HandleApplicationStatusChanged(ctx context.Context, event pkgevents.Event) error {
	evt, ok := event.(*events.ApplicationStatusChangedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.EventType(), event)
	}
	s.log.Infof("application status changed: id=%d %s -> %s", evt.ApplicationID, evt.OldStatus, evt.NewStatus)
	return nil
}
