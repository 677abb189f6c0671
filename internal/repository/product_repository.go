package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/domain/product"
	apperrors "backoffice/pkg/errors"
)

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) exec(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return r.db
}

func (r *productRepository) Create(ctx context.Context, tx *gorm.DB, p *product.Product) error {
	return r.exec(tx).WithContext(ctx).Create(p).Error
}

func (r *productRepository) Save(ctx context.Context, tx *gorm.DB, p *product.Product) error {
	return r.exec(tx).WithContext(ctx).Save(p).Error
}

func (r *productRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*product.Product, error) {
	var p product.Product
	if err := r.exec(tx).WithContext(ctx).First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("product %d: %w", id, apperrors.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (r *productRepository) List(ctx context.Context) ([]product.Product, error) {
	var products []product.Product
	err := r.db.WithContext(ctx).Find(&products).Error
	return products, err
}

func (r *productRepository) ListByCategory(ctx context.Context, category string) ([]product.Product, error) {
	var products []product.Product
	err := r.db.WithContext(ctx).Where("category = ?", category).Find(&products).Error
	return products, err
}

func (r *productRepository) SearchByName(ctx context.Context, name string) ([]product.Product, error) {
	var products []product.Product
	err := r.db.WithContext(ctx).Where("name LIKE ?", "%"+name+"%").Find(&products).Error
	return products, err
}

func (r *productRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&product.Product{}, id).Error
}
