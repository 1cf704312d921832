package accounts

import (
	"context"
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes account-related persistence operations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, telegramID int64) (*models.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) error
	UpdateProfile(ctx context.Context, account *models.Account) error
	IncrementReferralCount(ctx context.Context, telegramID int64) error
	List(ctx context.Context, limit int) ([]models.Account, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository constructs an accounts repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Get(ctx context.Context, telegramID int64) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Where("referral_code = ?", code).
		First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) UpdateProfile(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("telegram_id = ?", account.TelegramID).
		Updates(map[string]any{
			"first_name": account.FirstName,
			"last_name":  account.LastName,
			"username":   account.Username,
			"is_premium": account.IsPremium,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *repository) IncrementReferralCount(ctx context.Context, telegramID int64) error {
	return r.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("telegram_id = ?", telegramID).
		Updates(map[string]any{
			"referral_count": gorm.Expr("referral_count + 1"),
			"updated_at":     time.Now().UTC(),
		}).Error
}

func (r *repository) List(ctx context.Context, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}
