package accounts

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilomswe/smmhub-backend/internal/ledger"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
	"gorm.io/gorm"
)

type notifier interface {
	ReferralBonus(ctx context.Context, telegramID int64, amount int64, referredName string)
}

// Service manages account identity, signup rewards and referral tracking.
type Service interface {
	Authenticate(ctx context.Context, input AuthInput) (*AuthResult, error)
	Get(ctx context.Context, telegramID int64) (*models.Account, error)
	Stats(ctx context.Context, telegramID int64) (*StatsOutput, error)
	AdjustBalance(ctx context.Context, input AdjustInput) (*models.Transaction, error)
	List(ctx context.Context, limit int) ([]models.Account, error)
}

type service struct {
	repo          Repository
	ledger        ledger.Service
	notify        notifier
	signupBonus   int64
	referralBonus int64
}

// AuthInput carries the Telegram identity presented on every login.
type AuthInput struct {
	TelegramID   int64
	FirstName    string
	LastName     string
	Username     string
	IsPremium    bool
	ReferralCode string
}

// AuthResult reports the account state after an upsert, and whether this
// call created it.
type AuthResult struct {
	Account *models.Account
	Created bool
}

// StatsOutput aggregates the numbers shown on an account's profile screen.
type StatsOutput struct {
	TelegramID    int64     `json:"telegram_id"`
	Balance       int64     `json:"balance"`
	TotalOrders   int64     `json:"total_orders"`
	TotalSpent    int64     `json:"total_spent"`
	ReferralCode  string    `json:"referral_code"`
	ReferralCount int64     `json:"referral_count"`
	MemberSince   time.Time `json:"member_since"`
}

// AdjustInput is an operator-initiated balance correction. Positive amounts
// credit, negative amounts debit.
type AdjustInput struct {
	TelegramID int64
	Amount     int64
	Reason     string
}

// NewService wires an accounts service with the provided dependencies.
func NewService(repo Repository, ledgerSvc ledger.Service, notify notifier, signupBonus, referralBonus int64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	return &service{
		repo:          repo,
		ledger:        ledgerSvc,
		notify:        notify,
		signupBonus:   signupBonus,
		referralBonus: referralBonus,
	}, nil
}

func (s *service) Authenticate(ctx context.Context, input AuthInput) (*AuthResult, error) {
	if input.TelegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}

	existing, err := s.repo.Get(ctx, input.TelegramID)
	if err == nil {
		return s.refreshProfile(ctx, existing, input)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	account := &models.Account{
		TelegramID:   input.TelegramID,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Username:     input.Username,
		IsPremium:    input.IsPremium,
		ReferralCode: ReferralCode(input.TelegramID),
	}

	referrer := s.resolveReferrer(ctx, input)
	if referrer != nil {
		account.ReferredBy = &referrer.ReferralCode
	}

	if err := s.repo.Create(ctx, account); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost a race against a concurrent first login. The winner
			// already handed out the bonuses.
			existing, loadErr := s.repo.Get(ctx, input.TelegramID)
			if loadErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, loadErr, "load account")
			}
			return s.refreshProfile(ctx, existing, input)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}

	if s.signupBonus > 0 {
		if _, err := s.ledger.Credit(ctx, ledger.EntryInput{
			TelegramID:  account.TelegramID,
			Amount:      s.signupBonus,
			Kind:        enums.TransactionKindBonus,
			Description: "Welcome bonus",
		}); err != nil {
			return nil, err
		}
	}

	if referrer != nil && s.referralBonus > 0 {
		if err := s.rewardReferrer(ctx, referrer, account); err != nil {
			return nil, err
		}
	}

	created, err := s.repo.Get(ctx, account.TelegramID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload account")
	}
	return &AuthResult{Account: created, Created: true}, nil
}

func (s *service) refreshProfile(ctx context.Context, account *models.Account, input AuthInput) (*AuthResult, error) {
	account.FirstName = input.FirstName
	account.LastName = input.LastName
	account.Username = input.Username
	account.IsPremium = input.IsPremium
	if err := s.repo.UpdateProfile(ctx, account); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update profile")
	}
	return &AuthResult{Account: account, Created: false}, nil
}

// resolveReferrer maps the presented code to an existing account. Unknown
// codes and self-referrals are silently ignored so signup never fails on a
// bad invite link.
func (s *service) resolveReferrer(ctx context.Context, input AuthInput) *models.Account {
	code := strings.TrimSpace(input.ReferralCode)
	if code == "" || strings.EqualFold(code, ReferralCode(input.TelegramID)) {
		return nil
	}
	referrer, err := s.repo.GetByReferralCode(ctx, code)
	if err != nil {
		return nil
	}
	if referrer.TelegramID == input.TelegramID {
		return nil
	}
	return referrer
}

func (s *service) rewardReferrer(ctx context.Context, referrer, referred *models.Account) error {
	if err := s.repo.IncrementReferralCount(ctx, referrer.TelegramID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "increment referral count")
	}
	if _, err := s.ledger.Credit(ctx, ledger.EntryInput{
		TelegramID:  referrer.TelegramID,
		Amount:      s.referralBonus,
		Kind:        enums.TransactionKindReferral,
		Description: fmt.Sprintf("Referral bonus for inviting %s", displayName(referred)),
	}); err != nil {
		return err
	}
	if s.notify != nil {
		s.notify.ReferralBonus(ctx, referrer.TelegramID, s.referralBonus, displayName(referred))
	}
	return nil
}

func (s *service) Get(ctx context.Context, telegramID int64) (*models.Account, error) {
	account, err := s.repo.Get(ctx, telegramID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return account, nil
}

func (s *service) Stats(ctx context.Context, telegramID int64) (*StatsOutput, error) {
	account, err := s.Get(ctx, telegramID)
	if err != nil {
		return nil, err
	}
	return &StatsOutput{
		TelegramID:    account.TelegramID,
		Balance:       account.Balance,
		TotalOrders:   account.TotalOrders,
		TotalSpent:    account.TotalSpent,
		ReferralCode:  account.ReferralCode,
		ReferralCount: account.ReferralCount,
		MemberSince:   account.CreatedAt,
	}, nil
}

func (s *service) AdjustBalance(ctx context.Context, input AdjustInput) (*models.Transaction, error) {
	if input.TelegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}
	if input.Amount == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be non-zero")
	}

	description := input.Reason
	if description == "" {
		description = "Operator adjustment"
	}

	entry := ledger.EntryInput{
		TelegramID:  input.TelegramID,
		Kind:        enums.TransactionKindAdjustment,
		Description: description,
	}
	if input.Amount > 0 {
		entry.Amount = input.Amount
		return s.ledger.Credit(ctx, entry)
	}
	entry.Amount = -input.Amount
	return s.ledger.Debit(ctx, entry)
}

func (s *service) List(ctx context.Context, limit int) ([]models.Account, error) {
	accounts, err := s.repo.List(ctx, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list accounts")
	}
	return accounts, nil
}

// ReferralCode derives the stable invite code for a Telegram id.
func ReferralCode(telegramID int64) string {
	return "REF" + strconv.FormatInt(telegramID, 10)
}

func displayName(account *models.Account) string {
	name := strings.TrimSpace(account.FirstName + " " + account.LastName)
	if name != "" {
		return name
	}
	if account.Username != "" {
		return "@" + account.Username
	}
	return strconv.FormatInt(account.TelegramID, 10)
}
