package enums

import "fmt"

// TransactionKind classifies a ledger transaction.
type TransactionKind string

const (
	TransactionKindBonus      TransactionKind = "bonus"
	TransactionKindReferral   TransactionKind = "referral"
	TransactionKindPurchase   TransactionKind = "purchase"
	TransactionKindDeposit    TransactionKind = "deposit"
	TransactionKindRefund     TransactionKind = "refund"
	TransactionKindAdjustment TransactionKind = "adjustment"
)

var validTransactionKinds = []TransactionKind{
	TransactionKindBonus,
	TransactionKindReferral,
	TransactionKindPurchase,
	TransactionKindDeposit,
	TransactionKindRefund,
	TransactionKindAdjustment,
}

// String implements fmt.Stringer.
func (k TransactionKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known TransactionKind.
func (k TransactionKind) IsValid() bool {
	for _, candidate := range validTransactionKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseTransactionKind converts raw input into a TransactionKind.
func ParseTransactionKind(value string) (TransactionKind, error) {
	for _, candidate := range validTransactionKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction kind %q", value)
}
