package models

import "time"

// PromoUsage records one redemption. The existence of a row is the sole
// source of truth for "already used"; the (promo, account) pair is unique.
type PromoUsage struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	PromoID    int64     `gorm:"column:promo_id;not null;uniqueIndex:idx_promo_usages_promo_account" json:"promo_id"`
	TelegramID int64     `gorm:"column:telegram_id;not null;uniqueIndex:idx_promo_usages_promo_account" json:"telegram_id"`
	UsedAt     time.Time `gorm:"column:used_at;autoCreateTime" json:"used_at"`
}
