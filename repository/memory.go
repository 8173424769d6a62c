package repository

import (
	"context"
	"sync"
	"time"

	"clip-orchestrator/constant"
	"clip-orchestrator/entities"
)

// memoryRepo keeps rows in process. Lookups by job id are full scans over every order's jobs.
type memoryRepo struct {
	mu     sync.RWMutex
	rows   map[string]*entities.Order
	order  []string
	nowFor func() time.Time
}

func NewMemoryRepo() OrderRepository {
	return &memoryRepo{
		rows:   make(map[string]*entities.Order),
		nowFor: func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepo) FindByPaymentID(ctx context.Context, paymentID string) (*entities.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	row, ok := r.rows[paymentID]
	if !ok {
		return nil, ErrNotFound
	}
	return row.Clone(), nil
}

func (r *memoryRepo) FindByJobID(ctx context.Context, jobID string) (*entities.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		row := r.rows[id]
		if row.JobIndex(jobID) >= 0 {
			return row.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) FindByStatus(ctx context.Context, status constant.OrderStatus) ([]*entities.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var orders []*entities.Order
	for _, id := range r.order {
		if row := r.rows[id]; row.Status == status {
			orders = append(orders, row.Clone())
		}
	}
	return orders, nil
}

func (r *memoryRepo) Insert(ctx context.Context, order *entities.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rows[order.PaymentID]; ok {
		return ErrAlreadyExists
	}

	now := r.nowFor()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.LastUpdatedAt = now
	order.Version = 1
	if order.Jobs == nil {
		order.Jobs = entities.JobList{}
	}

	r.rows[order.PaymentID] = order.Clone()
	r.order = append(r.order, order.PaymentID)
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, order *entities.Order, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[order.PaymentID]
	if !ok {
		return ErrNotFound
	}
	if row.Version != expectedVersion {
		return ErrConflict
	}

	stored := row.Clone()
	stored.Status = order.Status
	stored.Jobs = order.Clone().Jobs
	stored.Version = expectedVersion + 1
	stored.LastUpdatedAt = r.nowFor()
	r.rows[order.PaymentID] = stored

	order.Version = stored.Version
	order.LastUpdatedAt = stored.LastUpdatedAt
	return nil
}

func (r *memoryRepo) Migrate(ctx context.Context) error {
	return nil
}
