package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"backoffice/internal/domain/attendance"
	apperrors "backoffice/pkg/errors"
)

type recordRepository struct {
	db *gorm.DB
}

func NewRecordRepository(db *gorm.DB) RecordRepository {
	return &recordRepository{db: db}
}

func (r *recordRepository) exec(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *recordRepository) Create(ctx context.Context, tx *gorm.DB, rec *attendance.Record) error {
	if rec.Status == "" {
		rec.Status = attendance.StatusWorking
	}
	rec.RecalculateWorkedMinutes()
	return r.exec(tx).WithContext(ctx).Create(rec).Error
}

func (r *recordRepository) Save(ctx context.Context, tx *gorm.DB, rec *attendance.Record) error {
	rec.RecalculateWorkedMinutes()
	return r.exec(tx).WithContext(ctx).Save(rec).Error
}

func (r *recordRepository) GetByID(ctx context.Context, id int64) (*attendance.Record, error) {
	var rec attendance.Record
	if err := r.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("attendance record %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepository) List(ctx context.Context) ([]attendance.Record, error) {
	var records []attendance.Record
	err := r.db.WithContext(ctx).Find(&records).Error
	return records, err
}

func (r *recordRepository) ListByEmployee(ctx context.Context, employeeID string) ([]attendance.Record, error) {
	var records []attendance.Record
	err := r.db.WithContext(ctx).Where("employee_id = ?", employeeID).Find(&records).Error
	return records, err
}

func (r *recordRepository) ListByEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.Record, error) {
	var records []attendance.Record
	err := r.db.WithContext(ctx).
		Where("employee_id = ? AND work_date BETWEEN ? AND ?", employeeID, start, end).
		Find(&records).Error
	return records, err
}

type settingRepository struct {
	db *gorm.DB
}

func NewSettingRepository(db *gorm.DB) SettingRepository {
	return &settingRepository{db: db}
}

func (r *settingRepository) exec(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *settingRepository) Create(ctx context.Context, tx *gorm.DB, s *attendance.ManagementSetting) error {
	return r.exec(tx).WithContext(ctx).Create(s).Error
}

func (r *settingRepository) Save(ctx context.Context, tx *gorm.DB, s *attendance.ManagementSetting) error {
	return r.exec(tx).WithContext(ctx).Save(s).Error
}

func (r *settingRepository) GetByID(ctx context.Context, id int64) (*attendance.ManagementSetting, error) {
	var s attendance.ManagementSetting
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("management setting %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &s, nil
}

func (r *settingRepository) List(ctx context.Context) ([]attendance.ManagementSetting, error) {
	var settings []attendance.ManagementSetting
	err := r.db.WithContext(ctx).Find(&settings).Error
	return settings, err
}

type applicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) ApplicationRepository {
	return &applicationRepository{db: db}
}

func (r *applicationRepository) exec(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *applicationRepository) Create(ctx context.Context, tx *gorm.DB, a *attendance.Application) error {
	if a.Status == "" {
		a.Status = attendance.ApplicationPending
	}
	return r.exec(tx).WithContext(ctx).Create(a).Error
}

func (r *applicationRepository) Save(ctx context.Context, tx *gorm.DB, a *attendance.Application) error {
	return r.exec(tx).WithContext(ctx).Save(a).Error
}

func (r *applicationRepository) GetByID(ctx context.Context, id int64) (*attendance.Application, error) {
	var a attendance.Application
	if err := r.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("application %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &a, nil
}

func (r *applicationRepository) List(ctx context.Context) ([]attendance.Application, error) {
	var apps []attendance.Application
	err := r.db.WithContext(ctx).Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) ListByEmployee(ctx context.Context, employeeID string) ([]attendance.Application, error) {
	var apps []attendance.Application
	err := r.db.WithContext(ctx).Where("employee_id = ?", employeeID).Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) ListPendingByType(ctx context.Context, appType attendance.ApplicationType) ([]attendance.Application, error) {
	var apps []attendance.Application
	err := r.db.WithContext(ctx).
		Where("type = ? AND status = ?", appType, attendance.ApplicationPending).
		Order("created_at ASC").
		Find(&apps).Error
	return apps, err
}

func (r *applicationRepository) ListPendingByEmployeeAndType(ctx context.Context, tx *gorm.DB, employeeID string, appType attendance.ApplicationType) ([]attendance.Application, error) {
	var apps []attendance.Application
	err := r.exec(tx).WithContext(ctx).
		Where("employee_id = ? AND type = ? AND status = ?", employeeID, appType, attendance.ApplicationPending).
		Order("created_at ASC").
		Find(&apps).Error
	return apps, err
}
