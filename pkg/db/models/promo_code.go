package models

import "time"

// PromoCode is a discount code. Codes are stored upper-cased; percent takes
// priority over the flat amount when both are set.
type PromoCode struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Code            string     `gorm:"column:code;not null;uniqueIndex" json:"code"`
	DiscountPercent int64      `gorm:"column:discount_percent;not null;default:0" json:"discount_percent"`
	DiscountAmount  int64      `gorm:"column:discount_amount;not null;default:0" json:"discount_amount"`
	MaxUses         int64      `gorm:"column:max_uses;not null" json:"max_uses"`
	UsedCount       int64      `gorm:"column:used_count;not null;default:0" json:"used_count"`
	MinAmount       int64      `gorm:"column:min_amount;not null;default:0" json:"min_amount"`
	IsActive        bool       `gorm:"column:is_active;not null;default:true" json:"is_active"`
	ExpiresAt       *time.Time `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
