package models

import (
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/enums"
)

// Order is a purchase of a fulfillable service tracked through its
// lifecycle. ExternalRef holds the panel-side order id when dispatch
// succeeded.
type Order struct {
	ID          string            `gorm:"column:id;primaryKey" json:"order_id"`
	TelegramID  int64             `gorm:"column:telegram_id;not null;index" json:"telegram_id"`
	ServiceRef  string            `gorm:"column:service_ref;not null" json:"service_id"`
	ServiceName string            `gorm:"column:service_name;not null;default:''" json:"service_name"`
	Category    string            `gorm:"column:category;not null;default:''" json:"category"`
	Link        string            `gorm:"column:link;not null" json:"link"`
	Quantity    int64             `gorm:"column:quantity;not null" json:"quantity"`
	Price       int64             `gorm:"column:price;not null" json:"price"`
	Status      enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'" json:"status"`
	Progress    int               `gorm:"column:progress;not null;default:0" json:"progress"`
	ExternalRef *string           `gorm:"column:external_ref" json:"external_ref,omitempty"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
	CompletedAt *time.Time        `gorm:"column:completed_at" json:"completed_at,omitempty"`
}
