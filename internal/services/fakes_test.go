package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"backoffice/internal/domain/attendance"
	"backoffice/internal/domain/order"
	"backoffice/internal/domain/outbox"
	"backoffice/internal/domain/product"
	"backoffice/internal/redis"
	"backoffice/pkg/broker"
	apperrors "backoffice/pkg/errors"
)

// memState lets the fake transaction runner snapshot and restore store
// contents so a failing transaction really rolls its writes back.
type memState interface {
	snapshot() any
	restore(any)
}

type fakeTxRunner struct {
	mu     sync.Mutex
	stores []memState
}

func newFakeTxRunner(stores ...memState) *fakeTxRunner {
	return &fakeTxRunner{stores: stores}
}

func (f *fakeTxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	snaps := make([]any, len(f.stores))
	for i, s := range f.stores {
		snaps[i] = s.snapshot()
	}
	if err := fn(nil); err != nil {
		for i, s := range f.stores {
			s.restore(snaps[i])
		}
		return err
	}
	return nil
}

type fakeOutboxRepo struct {
	mu        sync.Mutex
	events    []outbox.Event
	appendErr error
}

func (f *fakeOutboxRepo) snapshot() any {
	return append([]outbox.Event(nil), f.events...)
}

func (f *fakeOutboxRepo) restore(s any) {
	f.events = s.([]outbox.Event)
}

func (f *fakeOutboxRepo) Append(ctx context.Context, tx *gorm.DB, event *outbox.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.appendErr != nil {
		return f.appendErr
	}
	e := *event
	e.Status = outbox.StatusPending
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	e.NextAttemptAt = e.CreatedAt
	f.events = append(f.events, e)
	return nil
}

func (f *fakeOutboxRepo) ClaimPending(ctx context.Context, limit int, staleAfter time.Duration) ([]outbox.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var claimed []outbox.Event
	for i := range f.events {
		if len(claimed) >= limit {
			break
		}
		e := &f.events[i]
		pending := e.Status == outbox.StatusPending
		abandoned := e.Status == outbox.StatusProcessing && e.UpdatedAt.Before(now.Add(-staleAfter))
		if (!pending && !abandoned) || e.NextAttemptAt.After(now) {
			continue
		}
		if f.blockedByPredecessor(e) {
			continue
		}
		e.Status = outbox.StatusProcessing
		e.UpdatedAt = now
		claimed = append(claimed, *e)
	}
	return claimed, nil
}

// blockedByPredecessor mirrors the claim query's ordering rule: a record
// waits behind any older undelivered record for the same aggregate.
func (f *fakeOutboxRepo) blockedByPredecessor(e *outbox.Event) bool {
	for i := range f.events {
		p := &f.events[i]
		if p.ID == e.ID || p.AggregateType != e.AggregateType || p.AggregateID != e.AggregateID {
			continue
		}
		if !p.CreatedAt.Before(e.CreatedAt) {
			continue
		}
		if p.Status == outbox.StatusPending || p.Status == outbox.StatusProcessing {
			return true
		}
	}
	return false
}

func (f *fakeOutboxRepo) MarkPublished(ctx context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeOutboxRepo) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, nextAttemptAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Status = outbox.StatusPending
			f.events[i].Attempts++
			f.events[i].LastError = errMsg
			f.events[i].NextAttemptAt = nextAttemptAt
		}
	}
	return nil
}

func (f *fakeOutboxRepo) MoveToDeadLetter(ctx context.Context, id uuid.UUID, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.events {
		if f.events[i].ID == id {
			f.events[i].Status = outbox.StatusFailed
			f.events[i].LastError = errMsg
		}
	}
	return nil
}

func (f *fakeOutboxRepo) byType(eventType string) []outbox.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []outbox.Event
	for _, e := range f.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeOrderRepo struct {
	mu     sync.Mutex
	orders map[int64]order.Order
	nextID int64
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: make(map[int64]order.Order), nextID: 1}
}

func (f *fakeOrderRepo) snapshot() any {
	cp := make(map[int64]order.Order, len(f.orders))
	for k, v := range f.orders {
		cp[k] = v
	}
	return cp
}

func (f *fakeOrderRepo) restore(s any) {
	f.orders = s.(map[int64]order.Order)
}

func (f *fakeOrderRepo) Create(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.Status == "" {
		o.Status = order.StatusPending
	}
	o.ID = f.nextID
	o.CreatedAt = time.Now()
	f.nextID++
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrderRepo) Save(ctx context.Context, tx *gorm.DB, o *order.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders[o.ID] = *o
	return nil
}

func (f *fakeOrderRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %d: %w", id, apperrors.ErrNotFound)
	}
	return &o, nil
}

func (f *fakeOrderRepo) List(ctx context.Context) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		out = append(out, o)
	}
	return out, nil
}

func (f *fakeOrderRepo) ListByCustomer(ctx context.Context, customerName string) ([]order.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []order.Order
	for _, o := range f.orders {
		if o.CustomerName == customerName {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.orders, id)
	return nil
}

type fakeProductRepo struct {
	mu       sync.Mutex
	products map[int64]product.Product
	nextID   int64
}

func newFakeProductRepo() *fakeProductRepo {
	return &fakeProductRepo{products: make(map[int64]product.Product), nextID: 1}
}

func (f *fakeProductRepo) snapshot() any {
	cp := make(map[int64]product.Product, len(f.products))
	for k, v := range f.products {
		cp[k] = v
	}
	return cp
}

func (f *fakeProductRepo) restore(s any) {
	f.products = s.(map[int64]product.Product)
}

func (f *fakeProductRepo) Create(ctx context.Context, tx *gorm.DB, p *product.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.ID = f.nextID
	f.nextID++
	f.products[p.ID] = *p
	return nil
}

func (f *fakeProductRepo) Save(ctx context.Context, tx *gorm.DB, p *product.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.products[p.ID] = *p
	return nil
}

func (f *fakeProductRepo) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*product.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, apperrors.ErrNotFound)
	}
	return &p, nil
}

func (f *fakeProductRepo) List(ctx context.Context) ([]product.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) ListByCategory(ctx context.Context, category string) ([]product.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) SearchByName(ctx context.Context, name string) ([]product.Product, error) {
	return nil, nil
}

func (f *fakeProductRepo) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.products, id)
	return nil
}

func (f *fakeProductRepo) stock(id int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].StockQuantity
}

type fakeRecordRepo struct {
	mu      sync.Mutex
	records map[int64]attendance.Record
	nextID  int64
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{records: make(map[int64]attendance.Record), nextID: 1}
}

func (f *fakeRecordRepo) snapshot() any {
	cp := make(map[int64]attendance.Record, len(f.records))
	for k, v := range f.records {
		cp[k] = v
	}
	return cp
}

func (f *fakeRecordRepo) restore(s any) {
	f.records = s.(map[int64]attendance.Record)
}

func (f *fakeRecordRepo) Create(ctx context.Context, tx *gorm.DB, r *attendance.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r.Status == "" {
		r.Status = attendance.StatusWorking
	}
	r.ID = f.nextID
	f.nextID++
	f.records[r.ID] = *r
	return nil
}

func (f *fakeRecordRepo) Save(ctx context.Context, tx *gorm.DB, r *attendance.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[r.ID] = *r
	return nil
}

func (f *fakeRecordRepo) GetByID(ctx context.Context, id int64) (*attendance.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, fmt.Errorf("attendance record %d: %w", id, apperrors.ErrNotFound)
	}
	return &r, nil
}

func (f *fakeRecordRepo) List(ctx context.Context) ([]attendance.Record, error) {
	return nil, nil
}

func (f *fakeRecordRepo) ListByEmployee(ctx context.Context, employeeID string) ([]attendance.Record, error) {
	return nil, nil
}

func (f *fakeRecordRepo) ListByEmployeeBetween(ctx context.Context, employeeID string, start, end time.Time) ([]attendance.Record, error) {
	return nil, nil
}

type fakeApplicationRepo struct {
	mu     sync.Mutex
	apps   map[int64]attendance.Application
	nextID int64
}

func newFakeApplicationRepo() *fakeApplicationRepo {
	return &fakeApplicationRepo{apps: make(map[int64]attendance.Application), nextID: 1}
}

func (f *fakeApplicationRepo) snapshot() any {
	cp := make(map[int64]attendance.Application, len(f.apps))
	for k, v := range f.apps {
		cp[k] = v
	}
	return cp
}

func (f *fakeApplicationRepo) restore(s any) {
	f.apps = s.(map[int64]attendance.Application)
}

func (f *fakeApplicationRepo) Create(ctx context.Context, tx *gorm.DB, a *attendance.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.Status == "" {
		a.Status = attendance.ApplicationPending
	}
	a.ID = f.nextID
	f.nextID++
	a.CreatedAt = time.Now()
	f.apps[a.ID] = *a
	return nil
}

func (f *fakeApplicationRepo) Save(ctx context.Context, tx *gorm.DB, a *attendance.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[a.ID] = *a
	return nil
}

func (f *fakeApplicationRepo) GetByID(ctx context.Context, id int64) (*attendance.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.apps[id]
	if !ok {
		return nil, fmt.Errorf("application %d: %w", id, apperrors.ErrNotFound)
	}
	return &a, nil
}

func (f *fakeApplicationRepo) List(ctx context.Context) ([]attendance.Application, error) {
	return nil, nil
}

func (f *fakeApplicationRepo) ListByEmployee(ctx context.Context, employeeID string) ([]attendance.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []attendance.Application
	for _, a := range f.apps {
		if a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeApplicationRepo) ListPendingByType(ctx context.Context, appType attendance.ApplicationType) ([]attendance.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []attendance.Application
	for _, a := range f.apps {
		if a.Type == appType && a.Status == attendance.ApplicationPending {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeApplicationRepo) ListPendingByEmployeeAndType(ctx context.Context, tx *gorm.DB, employeeID string, appType attendance.ApplicationType) ([]attendance.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []attendance.Application
	for _, a := range f.apps {
		if a.EmployeeID == employeeID && a.Type == appType && a.Status == attendance.ApplicationPending {
			out = append(out, a)
		}
	}
	return out, nil
}

// fakeLockManager hands out real mutual exclusion per key via a buffered
// channel semaphore, so concurrency tests exercise genuine serialization.
type fakeLockManager struct {
	mu          sync.Mutex
	sems        map[string]chan struct{}
	failAcquire bool
}

func newFakeLockManager() *fakeLockManager {
	return &fakeLockManager{sems: make(map[string]chan struct{})}
}

func (f *fakeLockManager) sem(key string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sems[key]
	if !ok {
		s = make(chan struct{}, 1)
		f.sems[key] = s
	}
	return s
}

func (f *fakeLockManager) Acquire(ctx context.Context, key string, wait, ttl time.Duration) (redis.Lock, error) {
	if f.failAcquire {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLockNotAcquired, key)
	}
	sem := f.sem(key)
	select {
	case sem <- struct{}{}:
		return &fakeLock{sem: sem}, nil
	case <-time.After(wait):
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLockNotAcquired, key)
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s", apperrors.ErrLockNotAcquired, key)
	}
}

type fakeLock struct {
	sem  chan struct{}
	once sync.Once
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.once.Do(func() { <-l.sem })
	return nil
}

type fakeProductCache struct {
	mu          sync.Mutex
	entries     map[int64]product.Product
	invalidated []int64
}

func newFakeProductCache() *fakeProductCache {
	return &fakeProductCache{entries: make(map[int64]product.Product)}
}

func (f *fakeProductCache) Get(ctx context.Context, id int64) (*product.Product, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.entries[id]
	if !ok {
		return nil, false, nil
	}
	return &p, true, nil
}

func (f *fakeProductCache) Set(ctx context.Context, p *product.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries[p.ID] = *p
	return nil
}

func (f *fakeProductCache) Invalidate(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.entries, id)
	f.invalidated = append(f.invalidated, id)
	return nil
}

// fakePublisher records published messages and can fail the first n sends.
type fakePublisher struct {
	mu        sync.Mutex
	published []broker.Message
	failNext  int
}

func (f *fakePublisher) Publish(ctx context.Context, msg broker.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext > 0 {
		f.failNext--
		return fmt.Errorf("%w: broker unreachable", apperrors.ErrServiceUnavailable)
	}
	f.published = append(f.published, msg)
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) messages() []broker.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]broker.Message(nil), f.published...)
}
