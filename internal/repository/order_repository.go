package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/domain/order"
	apperrors "backoffice/pkg/errors"
)

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) exec(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *orderRepository) Create(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	return r.exec(tx).WithContext(ctx).Create(o).Error
}

func (r *orderRepository) Save(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	return r.exec(tx).WithContext(ctx).Save(o).Error
}

func (r *orderRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*order.Order, error) {
	var o order.Order
	if err := r.exec(tx).WithContext(ctx).First(&o, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("order %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepository) List(ctx context.Context) ([]order.Order, error) {
	var orders []order.Order
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&orders).Error
	return orders, err
}

func (r *orderRepository) ListByCustomer(ctx context.Context, customerName string) ([]order.Order, error) {
	var orders []order.Order
	err := r.db.WithContext(ctx).Where("customer_name = ?", customerName).Find(&orders).Error
	return orders, err
}

func (r *orderRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&order.Order{}, id).Error
}
