package models

import (
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/enums"
)

// Transaction is one append-only ledger entry. Seq breaks ordering ties for
// entries created within the same timestamp; the repository assigns it on
// insert.
type Transaction struct {
	ID          string                  `gorm:"column:id;primaryKey" json:"transaction_id"`
	Seq         int64                   `gorm:"column:seq;not null;index" json:"-"`
	TelegramID  int64                   `gorm:"column:telegram_id;not null;index" json:"telegram_id"`
	Kind        enums.TransactionKind   `gorm:"column:kind;type:text;not null" json:"type"`
	Amount      int64                   `gorm:"column:amount;not null" json:"amount"`
	Method      *string                 `gorm:"column:method" json:"method,omitempty"`
	Status      enums.TransactionStatus `gorm:"column:status;type:text;not null;default:'completed'" json:"status"`
	Description string                  `gorm:"column:description;not null;default:''" json:"description"`
	CreatedAt   time.Time               `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}
