package models

import "time"

// Account is a user's monetary and identity record. The Telegram id is the
// stable external identity and the primary key; balances are kept in the
// smallest currency unit.
type Account struct {
	TelegramID    int64      `gorm:"column:telegram_id;primaryKey;autoIncrement:false" json:"telegram_id"`
	FirstName     string     `gorm:"column:first_name;not null;default:''" json:"first_name"`
	LastName      string     `gorm:"column:last_name;not null;default:''" json:"last_name"`
	Username      string     `gorm:"column:username;not null;default:''" json:"username"`
	IsPremium     bool       `gorm:"column:is_premium;not null;default:false" json:"is_premium"`
	Balance       int64      `gorm:"column:balance;not null;default:0" json:"balance"`
	TotalOrders   int64      `gorm:"column:total_orders;not null;default:0" json:"total_orders"`
	TotalSpent    int64      `gorm:"column:total_spent;not null;default:0" json:"total_spent"`
	ReferralCode  string     `gorm:"column:referral_code;not null;uniqueIndex" json:"referral_code"`
	ReferredBy    *string    `gorm:"column:referred_by" json:"referred_by,omitempty"`
	ReferralCount int64      `gorm:"column:referral_count;not null;default:0" json:"referral_count"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
