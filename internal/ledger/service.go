package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/ilomswe/smmhub-backend/internal/keylock"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
	"github.com/ilomswe/smmhub-backend/pkg/txid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service is the single entry point for balance mutations. Every credit and
// debit writes a transaction entry and the new balance in one database
// transaction, serialized per account, so money is never created or lost
// outside the ledger.
type Service interface {
	Credit(ctx context.Context, input EntryInput) (*models.Transaction, error)
	Debit(ctx context.Context, input EntryInput) (*models.Transaction, error)
	RecordPendingDeposit(ctx context.Context, input DepositInput) (*models.Transaction, error)
	ConfirmDeposit(ctx context.Context, transactionID string) (*models.Transaction, error)
	Balance(ctx context.Context, telegramID int64) (int64, error)
	History(ctx context.Context, telegramID int64, params pagination.Params) (*HistoryPage, error)
}

type service struct {
	repo       Repository
	tx         txRunner
	locks      *keylock.KeyLock
	minDeposit int64
}

// EntryInput captures one balance mutation. Amount is always positive; the
// direction comes from calling Credit or Debit.
type EntryInput struct {
	TelegramID  int64
	Amount      int64
	Kind        enums.TransactionKind
	Method      *string
	Description string
}

// DepositInput starts a deposit that is credited later, once confirmed.
type DepositInput struct {
	TelegramID int64
	Amount     int64
	Method     string
}

// HistoryPage is one newest-first page of an account's ledger entries.
type HistoryPage struct {
	Items      []models.Transaction
	NextCursor string
}

var kindPrefixes = map[enums.TransactionKind]string{
	enums.TransactionKindBonus:      txid.PrefixBonus,
	enums.TransactionKindReferral:   txid.PrefixReferral,
	enums.TransactionKindPurchase:   txid.PrefixPurchase,
	enums.TransactionKindDeposit:    txid.PrefixDeposit,
	enums.TransactionKindRefund:     txid.PrefixRefund,
	enums.TransactionKindAdjustment: txid.PrefixAdjust,
}

// NewService wires a ledger service with the provided dependencies.
func NewService(repo Repository, tx txRunner, minDeposit int64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:       repo,
		tx:         tx,
		locks:      keylock.New(),
		minDeposit: minDeposit,
	}, nil
}

func (s *service) Credit(ctx context.Context, input EntryInput) (*models.Transaction, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}

	var entry *models.Transaction
	err := s.locks.Do(accountKey(input.TelegramID), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			account, err := repo.GetAccount(ctx, input.TelegramID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
			}

			entry = newEntry(input, input.Amount)
			if err := repo.CreateTransaction(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record credit")
			}
			if err := repo.SetBalance(ctx, input.TelegramID, account.Balance+input.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply credit")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Debit(ctx context.Context, input EntryInput) (*models.Transaction, error) {
	if err := validateEntry(input); err != nil {
		return nil, err
	}

	var entry *models.Transaction
	err := s.locks.Do(accountKey(input.TelegramID), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			account, err := repo.GetAccount(ctx, input.TelegramID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
			}
			if account.Balance < input.Amount {
				return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "balance too low").
					WithDetails(map[string]int64{
						"balance":  account.Balance,
						"required": input.Amount,
					})
			}

			entry = newEntry(input, -input.Amount)
			if err := repo.CreateTransaction(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record debit")
			}
			if err := repo.SetBalance(ctx, input.TelegramID, account.Balance-input.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply debit")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) RecordPendingDeposit(ctx context.Context, input DepositInput) (*models.Transaction, error) {
	if input.TelegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}
	if input.Amount < s.minDeposit {
		return nil, pkgerrors.New(pkgerrors.CodeBelowMinimum,
			fmt.Sprintf("minimum deposit is %d", s.minDeposit)).
			WithDetails(map[string]int64{"minimum": s.minDeposit, "amount": input.Amount})
	}

	if _, err := s.repo.GetAccount(ctx, input.TelegramID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	method := input.Method
	entry := &models.Transaction{
		ID:          txid.New(txid.PrefixDeposit),
		TelegramID:  input.TelegramID,
		Kind:        enums.TransactionKindDeposit,
		Amount:      input.Amount,
		Method:      &method,
		Status:      enums.TransactionStatusPending,
		Description: fmt.Sprintf("Deposit via %s", method),
	}
	if err := s.repo.CreateTransaction(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record pending deposit")
	}
	return entry, nil
}

func (s *service) ConfirmDeposit(ctx context.Context, transactionID string) (*models.Transaction, error) {
	if transactionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id required")
	}

	// Peek outside the lock only to learn which account to serialize on.
	peek, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "deposit not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deposit")
	}

	var confirmed *models.Transaction
	err = s.locks.Do(accountKey(peek.TelegramID), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			entry, err := repo.GetTransaction(ctx, transactionID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeNotFound, "deposit not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load deposit")
			}
			if entry.Kind != enums.TransactionKindDeposit {
				return pkgerrors.New(pkgerrors.CodeValidation, "transaction is not a deposit")
			}
			if entry.Status != enums.TransactionStatusPending {
				return pkgerrors.New(pkgerrors.CodeAlreadyConfirmed, "deposit already confirmed")
			}

			account, err := repo.GetAccount(ctx, entry.TelegramID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
			}
			if err := repo.MarkCompleted(ctx, entry.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm deposit")
			}
			if err := repo.SetBalance(ctx, entry.TelegramID, account.Balance+entry.Amount); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply deposit")
			}

			entry.Status = enums.TransactionStatusCompleted
			confirmed = entry
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return confirmed, nil
}

func (s *service) Balance(ctx context.Context, telegramID int64) (int64, error) {
	account, err := s.repo.GetAccount(ctx, telegramID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account.Balance, nil
}

func (s *service) History(ctx context.Context, telegramID int64, params pagination.Params) (*HistoryPage, error) {
	if telegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if cursor != nil {
		if _, err := cursor.IntKey(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListByAccount(ctx, telegramID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list transactions")
	}

	page := &HistoryPage{Items: entries}
	if len(entries) > limit {
		page.Items = entries[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			Key:       strconv.FormatInt(last.Seq, 10),
		})
	}
	return page, nil
}

func validateEntry(input EntryInput) error {
	if input.TelegramID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}
	if input.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}
	if !input.Kind.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid transaction kind %q", input.Kind))
	}
	return nil
}

func newEntry(input EntryInput, signedAmount int64) *models.Transaction {
	prefix, ok := kindPrefixes[input.Kind]
	if !ok {
		prefix = txid.PrefixPurchase
	}
	return &models.Transaction{
		ID:          txid.New(prefix),
		TelegramID:  input.TelegramID,
		Kind:        input.Kind,
		Amount:      signedAmount,
		Method:      input.Method,
		Status:      enums.TransactionStatusCompleted,
		Description: input.Description,
	}
}

func accountKey(telegramID int64) string {
	return "account:" + strconv.FormatInt(telegramID, 10)
}
