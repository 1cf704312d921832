package promos

import (
	"context"

	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"gorm.io/gorm"
)

// Repository manages persistence for promo codes and their redemptions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetByCode(ctx context.Context, code string) (*models.PromoCode, error)
	Create(ctx context.Context, promo *models.PromoCode) error
	List(ctx context.Context) ([]models.PromoCode, error)
	SetActive(ctx context.Context, promoID int64, active bool) error
	HasUsage(ctx context.Context, promoID, telegramID int64) (bool, error)
	CreateUsage(ctx context.Context, usage *models.PromoUsage) error
	ClaimUse(ctx context.Context, promoID int64) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a promos repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	var promo models.PromoCode
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&promo).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) Create(ctx context.Context, promo *models.PromoCode) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

func (r *repository) List(ctx context.Context) ([]models.PromoCode, error) {
	var promos []models.PromoCode
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

func (r *repository) SetActive(ctx context.Context, promoID int64, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ?", promoID).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) HasUsage(ctx context.Context, promoID, telegramID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.PromoUsage{}).
		Where("promo_id = ? AND telegram_id = ?", promoID, telegramID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) CreateUsage(ctx context.Context, usage *models.PromoUsage) error {
	return r.db.WithContext(ctx).Create(usage).Error
}

// ClaimUse bumps used_count, refusing the bump when the cap is already
// reached. The guard in the WHERE clause makes the claim safe under
// concurrent redemptions of different accounts.
func (r *repository) ClaimUse(ctx context.Context, promoID int64) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.PromoCode{}).
		Where("id = ? AND (max_uses <= 0 OR used_count < max_uses)", promoID).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
