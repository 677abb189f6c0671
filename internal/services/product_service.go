package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"backoffice/internal/domain/order"
	"backoffice/internal/domain/product"
	"backoffice/internal/events"
	"backoffice/internal/redis"
	"backoffice/internal/repository"
	apperrors "backoffice/pkg/errors"
	pkgevents "backoffice/pkg/events"
	"backoffice/pkg/logger"
)

// ProductCache is the read cache in front of the product store. Get misses
// are not errors; callers fall back to the repository and populate.
type ProductCache interface {
	Get(ctx context.Context, id int64) (*product.Product, bool, error)
	Set(ctx context.Context, p *product.Product) error
	Invalidate(ctx context.Context, id int64) error
}

// ProductService owns the inventory module. It serves cache-aside product
// reads and hosts the stock reservation coordinator, which serializes
// concurrent stock decrements per product behind a distributed lease.
type ProductService struct {
	products repository.ProductRepository
	orders   repository.OrderRepository
	txs      repository.TxRunner
	cache    ProductCache
	locks    redis.LockManager
	log      *logger.Logger

	lockWait time.Duration
	lockTTL  time.Duration
}

func NewProductService(
	products repository.ProductRepository,
	orders repository.OrderRepository,
	txs repository.TxRunner,
	cache ProductCache,
	locks redis.LockManager,
	log *logger.Logger,
	lockWait, lockTTL time.Duration,
) *ProductService {
	if lockWait <= 0 {
		lockWait = 10 * time.Second
	}
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &ProductService{
		products: products,
		orders:   orders,
		txs:      txs,
		cache:    cache,
		locks:    locks,
		log:      log,
		lockWait: lockWait,
		lockTTL:  lockTTL,
	}
}

func stockLockKey(productID int64) string {
	return fmt.Sprintf("product:stock:lock:%d", productID)
}

func (s *ProductService) CreateProduct(ctx context.Context, p *product.Product) (*product.Product, error) {
	if err := s.products.Create(ctx, nil, p); err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warnf("failed to cache product %d: %v", p.ID, err)
	}
	s.log.Infof("product created: id=%d", p.ID)
	return p, nil
}

// GetProduct reads through the cache: hit returns the cached value, miss
// reads the store and populates the cache.
func (s *ProductService) GetProduct(ctx context.Context, id int64) (*product.Product, error) {
	if cached, ok, err := s.cache.Get(ctx, id); err != nil {
		s.log.Warnf("product cache read failed for %d: %v", id, err)
	} else if ok {
		return cached, nil
	}

	p, err := s.products.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warnf("failed to cache product %d: %v", id, err)
	}
	return p, nil
}

func (s *ProductService) ListProducts(ctx context.Context) ([]product.Product, error) {
	return s.products.List(ctx)
}

func (s *ProductService) ListProductsByCategory(ctx context.Context, category string) ([]product.Product, error) {
	return s.products.ListByCategory(ctx, category)
}

func (s *ProductService) SearchProductsByName(ctx context.Context, name string) ([]product.Product, error) {
	return s.products.SearchByName(ctx, name)
}

func (s *ProductService) UpdateProduct(ctx context.Context, id int64, details *product.Product) (*product.Product, error) {
	p, err := s.products.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	p.Name = details.Name
	p.Description = details.Description
	p.Price = details.Price
	p.StockQuantity = details.StockQuantity
	p.Category = details.Category
	if err := s.products.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, p); err != nil {
		s.log.Warnf("failed to refresh cache for product %d: %v", id, err)
	}
	s.log.Infof("product updated: id=%d", id)
	return p, nil
}

func (s *ProductService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, id); err != nil {
		s.log.Warnf("failed to evict product %d from cache: %v", id, err)
	}
	return nil
}

// CheckStock answers whether the product currently has at least the
// required quantity. Reads go through the cache, so the answer may lag
// behind a decrement committed elsewhere.
func (s *ProductService) CheckStock(ctx context.Context, productID int64, required int) (bool, error) {
	p, err := s.GetProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return p.StockQuantity >= required, nil
}

// HandleOrderCreated is the stock reservation coordinator. It acquires the
// per-product lease, re-reads the authoritative stock value, decrements it
// and flips the order to CONFIRMED in the same transaction. The order
// status doubles as the dedup record: delivery is at-least-once, and a
// redelivered event finds the order already resolved and does nothing. A
// lease timeout is retryable - nothing is written and the event comes back;
// insufficient stock cancels the order and is a permanent failure.
func (s *ProductService) HandleOrderCreated(ctx context.Context, event pkgevents.Event) error {
	evt, ok := event.(*events.OrderCreatedEvent)
	if !ok {
		return fmt.Errorf("unexpected payload for %s: %T", event.EventType(), event)
	}

	lockKey := stockLockKey(evt.ProductID)
	lock, err := s.locks.Acquire(ctx, lockKey, s.lockWait, s.lockTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire stock lock for product %d: %w", evt.ProductID, err)
	}
	s.log.InfofCtx(ctx, "stock lock acquired: %s", lockKey)
	defer func() {
		// Best-effort release even when ctx is already cancelled. Redsync
		// refuses to release a lease this holder lost to expiry, so a
		// reacquired lease is never stolen back.
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.log.Warnf("failed to release stock lock %s: %v", lockKey, relErr)
		}
	}()

	var insufficient error
	var reserved bool
	err = s.txs.InTx(ctx, func(tx *gorm.DB) error {
		o, err := s.orders.GetByID(ctx, tx, evt.OrderID)
		if err != nil {
			return err
		}
		if o.Status != order.StatusPending {
			s.log.InfofCtx(ctx, "order %d already %s, skipping stock reservation", o.ID, o.Status)
			return nil
		}

		p, err := s.products.GetByID(ctx, tx, evt.ProductID)
		if err != nil {
			return err
		}
		if err := p.DecreaseStock(evt.Quantity); err != nil {
			if errors.Is(err, apperrors.ErrInsufficientStock) {
				// The cancellation must commit; keep the failure for the
				// caller so the event is not retried.
				o.Status = order.StatusCancelled
				insufficient = fmt.Errorf("order %d: %w", o.ID, err)
				return s.orders.Save(ctx, tx, o)
			}
			return err
		}
		if err := s.products.Save(ctx, tx, p); err != nil {
			return err
		}
		o.Status = order.StatusConfirmed
		if err := s.orders.Save(ctx, tx, o); err != nil {
			return err
		}
		reserved = true
		s.log.InfofCtx(ctx, "stock reserved: product=%d remaining=%d order=%d", p.ID, p.StockQuantity, o.ID)
		return nil
	})
	if err != nil {
		return err
	}
	if insufficient != nil {
		s.log.ErrorfCtx(ctx, "order cancelled: %v", insufficient)
		return insufficient
	}
	if !reserved {
		return nil
	}

	if err := s.cache.Invalidate(ctx, evt.ProductID); err != nil {
		s.log.Warnf("failed to invalidate cache for product %d: %v", evt.ProductID, err)
	}
	return nil
}
