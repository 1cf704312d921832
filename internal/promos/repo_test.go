package promos

import (
	"context"
	"testing"

	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPromosTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&models.PromoCode{}, &models.PromoUsage{}))
	return db
}

func TestRepository_ClaimUseRespectsCap(t *testing.T) {
	db := setupPromosTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := &models.PromoCode{Code: "CAPPED", DiscountPercent: 10, MaxUses: 2, IsActive: true}
	require.NoError(t, repo.Create(ctx, promo))

	for i := 0; i < 2; i++ {
		claimed, err := repo.ClaimUse(ctx, promo.ID)
		require.NoError(t, err)
		assert.True(t, claimed)
	}

	claimed, err := repo.ClaimUse(ctx, promo.ID)
	require.NoError(t, err)
	assert.False(t, claimed, "third claim must be refused")

	stored, err := repo.GetByCode(ctx, "CAPPED")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.UsedCount)
}

func TestRepository_ClaimUseUnlimitedWhenNoCap(t *testing.T) {
	db := setupPromosTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := &models.PromoCode{Code: "OPEN", DiscountAmount: 1000, MaxUses: 0, IsActive: true}
	require.NoError(t, repo.Create(ctx, promo))

	for i := 0; i < 5; i++ {
		claimed, err := repo.ClaimUse(ctx, promo.ID)
		require.NoError(t, err)
		assert.True(t, claimed)
	}
}

func TestRepository_UsageUniquePerAccount(t *testing.T) {
	db := setupPromosTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	promo := &models.PromoCode{Code: "ONCE", DiscountPercent: 10, IsActive: true}
	require.NoError(t, repo.Create(ctx, promo))

	require.NoError(t, repo.CreateUsage(ctx, &models.PromoUsage{PromoID: promo.ID, TelegramID: 100}))

	used, err := repo.HasUsage(ctx, promo.ID, 100)
	require.NoError(t, err)
	assert.True(t, used)

	used, err = repo.HasUsage(ctx, promo.ID, 200)
	require.NoError(t, err)
	assert.False(t, used)

	err = repo.CreateUsage(ctx, &models.PromoUsage{PromoID: promo.ID, TelegramID: 100})
	assert.Error(t, err, "duplicate usage must hit the unique index")
}

func TestRepository_CreateDuplicateCodeTranslates(t *testing.T) {
	db := setupPromosTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.PromoCode{Code: "TAKEN", DiscountPercent: 10, IsActive: true}))

	err := repo.Create(ctx, &models.PromoCode{Code: "TAKEN", DiscountAmount: 500, IsActive: true})
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey,
		"duplicate code mapping matches on gorm.ErrDuplicatedKey")
}
