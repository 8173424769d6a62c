package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"clip-orchestrator/constant"
	"clip-orchestrator/entities"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrAlreadyExists = errors.New("order already exists")
	// ErrConflict is returned by Update when the stored version moved since the caller read it.
	ErrConflict = errors.New("order version conflict")
)

// OrderRepository is the row store gateway. Every method returns copies; callers own what they get back.
type OrderRepository interface {
	FindByPaymentID(ctx context.Context, paymentID string) (*entities.Order, error)
	FindByJobID(ctx context.Context, jobID string) (*entities.Order, error)
	FindByStatus(ctx context.Context, status constant.OrderStatus) ([]*entities.Order, error)
	Insert(ctx context.Context, order *entities.Order) error
	// Update writes status and jobs if the stored version equals expectedVersion,
	// then bumps order.Version. Otherwise it returns ErrConflict and leaves order untouched.
	Update(ctx context.Context, order *entities.Order, expectedVersion int64) error
	Migrate(ctx context.Context) error
}

type repo struct {
	db *gorm.DB
}

func NewRepo(db *sql.DB, debug bool) (OrderRepository, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(level),
		},
	)
	if err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

func (r *repo) GetDB() *gorm.DB {
	return r.db
}

func (r *repo) FindByPaymentID(ctx context.Context, paymentID string) (*entities.Order, error) {
	order := &entities.Order{}
	err := r.GetDB().WithContext(ctx).First(order, "payment_id = ?", paymentID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return order, nil
}

func (r *repo) FindByJobID(ctx context.Context, jobID string) (*entities.Order, error) {
	filter, err := json.Marshal([]map[string]string{{"job_id": jobID}})
	if err != nil {
		return nil, err
	}

	order := &entities.Order{}
	err = r.GetDB().WithContext(ctx).Where("jobs @> ?::jsonb", string(filter)).First(order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return order, nil
}

func (r *repo) FindByStatus(ctx context.Context, status constant.OrderStatus) ([]*entities.Order, error) {
	var orders []*entities.Order
	err := r.GetDB().WithContext(ctx).Where("status = ?", string(status)).Order("created_at ASC").Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repo) Insert(ctx context.Context, order *entities.Order) error {
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.LastUpdatedAt = now
	order.Version = 1
	if order.Jobs == nil {
		order.Jobs = entities.JobList{}
	}

	res := r.GetDB().WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(order)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrAlreadyExists
	}
	return nil
}

func (r *repo) Update(ctx context.Context, order *entities.Order, expectedVersion int64) error {
	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":          string(order.Status),
		"jobs":            order.Jobs,
		"version":         expectedVersion + 1,
		"last_updated_at": now,
	}
	res := r.GetDB().WithContext(ctx).Model(&entities.Order{}).
		Where("payment_id = ? AND version = ?", order.PaymentID, expectedVersion).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrConflict(ctx, order.PaymentID)
	}

	order.Version = expectedVersion + 1
	order.LastUpdatedAt = now
	return nil
}

// missOrConflict explains a CAS update that matched no row.
func (r *repo) missOrConflict(ctx context.Context, paymentID string) error {
	var count int64
	err := r.GetDB().WithContext(ctx).Model(&entities.Order{}).Where("payment_id = ?", paymentID).Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrNotFound
	}
	return ErrConflict
}

func (r *repo) Migrate(ctx context.Context) error {
	db := r.GetDB().WithContext(ctx)
	if err := db.AutoMigrate(&entities.Order{}); err != nil {
		return err
	}
	return db.Exec("CREATE INDEX IF NOT EXISTS idx_orders_jobs ON orders USING GIN (jobs jsonb_path_ops)").Error
}
