package orders

import (
	"context"
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
	"gorm.io/gorm"
)

// StatsRow aggregates order totals for the operator dashboard.
type StatsRow struct {
	TotalOrders     int64 `json:"total_orders"`
	PendingOrders   int64 `json:"pending_orders"`
	ActiveOrders    int64 `json:"active_orders"`
	CompletedOrders int64 `json:"completed_orders"`
	CancelledOrders int64 `json:"cancelled_orders"`
	GrossRevenue    int64 `json:"gross_revenue"`
}

// Repository manages persistence for orders and the per-account order
// aggregates kept on the accounts table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	Get(ctx context.Context, id string) (*models.Order, error)
	Delete(ctx context.Context, id string) error
	UpdateState(ctx context.Context, order *models.Order) error
	SetExternalRef(ctx context.Context, id string, externalRef string) error
	ListByAccount(ctx context.Context, telegramID int64, limit int, cursor *pagination.Cursor) ([]models.Order, error)
	ListByStatus(ctx context.Context, status enums.OrderStatus, limit int) ([]models.Order, error)
	AdjustAccountStats(ctx context.Context, telegramID int64, ordersDelta, spentDelta int64) error
	Stats(ctx context.Context) (*StatsRow, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an orders repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Order{}).Error
}

func (r *repository) UpdateState(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":       order.Status,
			"progress":     order.Progress,
			"completed_at": order.CompletedAt,
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *repository) SetExternalRef(ctx context.Context, id string, externalRef string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("external_ref", externalRef).Error
}

func (r *repository) ListByAccount(ctx context.Context, telegramID int64, limit int, cursor *pagination.Cursor) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit)

	if cursor != nil {
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.Key,
		)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) ListByStatus(ctx context.Context, status enums.OrderStatus, limit int) ([]models.Order, error) {
	query := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var orders []models.Order
	if err := query.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *repository) AdjustAccountStats(ctx context.Context, telegramID int64, ordersDelta, spentDelta int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{
			"total_orders": gorm.Expr("total_orders + ?", ordersDelta),
			"total_spent":  gorm.Expr("total_spent + ?", spentDelta),
			"updated_at":   time.Now().UTC(),
		}).Error
}

func (r *repository) Stats(ctx context.Context) (*StatsRow, error) {
	var stats StatsRow
	row := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select(
			"COUNT(*) AS total_orders",
			"COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending_orders",
			"COALESCE(SUM(CASE WHEN status = 'processing' THEN 1 ELSE 0 END), 0) AS active_orders",
			"COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0) AS completed_orders",
			"COALESCE(SUM(CASE WHEN status = 'cancelled' THEN 1 ELSE 0 END), 0) AS cancelled_orders",
			"COALESCE(SUM(CASE WHEN status != 'cancelled' THEN price ELSE 0 END), 0) AS gross_revenue",
		)
	if err := row.Scan(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}
