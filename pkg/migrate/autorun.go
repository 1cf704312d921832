package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/config"
	"github.com/ilomswe/smmhub-backend/pkg/db"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

// MaybeRunDev prepares the schema automatically when the app runs in dev
// mode with the flag enabled. SQLite deployments use GORM's AutoMigrate
// because the goose files are written for Postgres.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}

	if cfg.FeatureFlags.UseSQLite {
		logg.Info(ctx, "auto-migrating SQLite schema")
		if err := client.DB().WithContext(ctx).AutoMigrate(
			&models.Account{},
			&models.Transaction{},
			&models.Order{},
			&models.PromoCode{},
			&models.PromoUsage{},
		); err != nil {
			return fmt.Errorf("auto-migrate sqlite: %w", err)
		}
		return SeedPromoCodes(ctx, client)
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	meta := map[string]any{"env": cfg.App.Env, "dir": DefaultDir}
	ctx = logg.WithFields(ctx, meta)
	logg.Info(ctx, "running Goose migrations (dev auto-run)")

	if err := Run(ctx, sqlDB, DefaultDir, "up"); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "Goose migrations completed")
	return nil
}

// SeedPromoCodes inserts the launch promo codes when they are missing. The
// Postgres path seeds them inside the migration instead.
func SeedPromoCodes(ctx context.Context, client *db.Client) error {
	seeds := []models.PromoCode{
		{Code: "YANGI20", DiscountPercent: 20, MaxUses: 1000, MinAmount: 0, IsActive: true},
		{Code: "SMM50", DiscountAmount: 5000, MaxUses: 500, MinAmount: 10000, IsActive: true},
	}
	for _, seed := range seeds {
		var count int64
		if err := client.DB().WithContext(ctx).
			Model(&models.PromoCode{}).
			Where("code = ?", seed.Code).
			Count(&count).Error; err != nil {
			return fmt.Errorf("checking promo seed %s: %w", seed.Code, err)
		}
		if count > 0 {
			continue
		}
		seed.CreatedAt = time.Now().UTC()
		if err := client.DB().WithContext(ctx).Create(&seed).Error; err != nil {
			return fmt.Errorf("seeding promo %s: %w", seed.Code, err)
		}
	}
	return nil
}
