package product

import (
	"fmt"
	"time"

	apperrors "backoffice/pkg/errors"
)

type Product struct {
	ID            int64   `gorm:"primaryKey;autoIncrement"`
	Name          string  `gorm:"type:varchar(255);not null"`
	Description   string  `gorm:"type:text"`
	Price         float64 `gorm:"not null"`
	StockQuantity int     `gorm:"not null"`
	Category      string  `gorm:"type:varchar(100);index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (Product) TableName() string {
	return "products"
}

// DecreaseStock decrements the stock counter. Callers must hold the stock
// lease for this product and have read the current value from the store,
// not from a cache.
func (p *Product) DecreaseStock(quantity int) error {
	if p.StockQuantity < quantity {
		return fmt.Errorf("%w: product %d has %d, requested %d",
			apperrors.ErrInsufficientStock, p.ID, p.StockQuantity, quantity)
	}
	p.StockQuantity -= quantity
	return nil
}

// IncreaseStock adds quantity back to the stock counter.
func (p *Product) IncreaseStock(quantity int) {
	p.StockQuantity += quantity
}
