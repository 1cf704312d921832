package ledger

import (
	"context"
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
	"gorm.io/gorm"
)

// Repository manages persistence for accounts' balances and their
// append-only transaction entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetAccount(ctx context.Context, telegramID int64) (*models.Account, error)
	SetBalance(ctx context.Context, telegramID int64, balance int64) error
	CreateTransaction(ctx context.Context, entry *models.Transaction) error
	GetTransaction(ctx context.Context, id string) (*models.Transaction, error)
	MarkCompleted(ctx context.Context, id string) error
	ListByAccount(ctx context.Context, telegramID int64, limit int, cursor *pagination.Cursor) ([]models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetAccount(ctx context.Context, telegramID int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) SetBalance(ctx context.Context, telegramID int64, balance int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{
			"balance":    balance,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) CreateTransaction(ctx context.Context, entry *models.Transaction) error {
	if entry.Seq == 0 {
		entry.Seq = time.Now().UnixNano()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var entry models.Transaction
	if err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&entry).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Model(&models.Transaction{}).
		Where("id = ?", id).
		Update("status", enums.TransactionStatusCompleted).Error
}

func (r *repository) ListByAccount(ctx context.Context, telegramID int64, limit int, cursor *pagination.Cursor) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("created_at DESC").
		Order("seq DESC").
		Limit(limit)

	if cursor != nil {
		seq, err := cursor.IntKey()
		if err != nil {
			return nil, err
		}
		query = query.Where(
			"(created_at < ?) OR (created_at = ? AND seq < ?)",
			cursor.CreatedAt, cursor.CreatedAt, seq,
		)
	}

	var entries []models.Transaction
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
