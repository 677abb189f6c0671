package order

import "time"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

type Order struct {
	ID           int64   `gorm:"primaryKey;autoIncrement"`
	ProductID    int64   `gorm:"not null;index"`
	CustomerName string  `gorm:"type:varchar(255);not null"`
	Quantity     int     `gorm:"not null"`
	TotalPrice   float64 `gorm:"not null"`
	Status       Status  `gorm:"type:varchar(20);not null;default:'PENDING'"`
	CreatedAt    time.Time
}

func (Order) TableName() string {
	return "orders"
}
