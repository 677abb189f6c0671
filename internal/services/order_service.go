package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"backoffice/internal/domain/order"
	"backoffice/internal/events"
	"backoffice/internal/repository"
	apperrors "backoffice/pkg/errors"
	pkgevents "backoffice/pkg/events"
	"backoffice/pkg/logger"
)

// OrderService owns the order aggregate. Creating an order commits the row
// and its order.created event record in one transaction, then notifies
// in-process subscribers; external consumers get the event through the
// outbox worker.
type OrderService struct {
	orders repository.OrderRepository
	outbox repository.OutboxRepository
	txs    repository.TxRunner
	bus    *pkgevents.Bus
	log    *logger.Logger
}

func NewOrderService(
	orders repository.OrderRepository,
	outboxRepo repository.OutboxRepository,
	txs repository.TxRunner,
	bus *pkgevents.Bus,
	log *logger.Logger,
) *OrderService {
	return &OrderService{
		orders: orders,
		outbox: outboxRepo,
		txs:    txs,
		bus:    bus,
		log:    log,
	}
}

func (s *OrderService) CreateOrder(ctx context.Context, o *order.Order) (*order.Order, error) {
	if o.Quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", apperrors.ErrInvalidInput)
	}

	var evt *events.OrderCreatedEvent
	err := s.txs.InTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.Create(ctx, tx, o); err != nil {
			return err
		}
		evt = events.NewOrderCreated(o)
		return appendToOutbox(ctx, tx, s.outbox, evt)
	})
	if err != nil {
		return nil, err
	}

	s.log.Infof("order created: id=%d product=%d quantity=%d", o.ID, o.ProductID, o.Quantity)
	s.bus.Dispatch(ctx, evt)
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id int64) (*order.Order, error) {
	return s.orders.GetByID(ctx, nil, id)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]order.Order, error) {
	return s.orders.List(ctx)
}

func (s *OrderService) ListOrdersByCustomer(ctx context.Context, customerName string) ([]order.Order, error) {
	return s.orders.ListByCustomer(ctx, customerName)
}

func (s *OrderService) UpdateOrderStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error) {
	o, err := s.orders.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	o.Status = status
	if err := s.orders.Save(ctx, nil, o); err != nil {
		return nil, err
	}
	s.log.Infof("order status updated: id=%d status=%s", id, status)
	return o, nil
}

func (s *OrderService) DeleteOrder(ctx context.Context, id int64) error {
	return s.orders.Delete(ctx, id)
}
