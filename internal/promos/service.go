package promos

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ilomswe/smmhub-backend/internal/keylock"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service validates and redeems promo codes. Each code can be redeemed at
// most once per account; redemptions for the same (code, account) pair are
// serialized.
type Service interface {
	Validate(ctx context.Context, input RedeemInput) (*Quote, error)
	Redeem(ctx context.Context, input RedeemInput) (*Quote, error)
	Create(ctx context.Context, input CreateInput) (*models.PromoCode, error)
	Deactivate(ctx context.Context, promoID int64) error
	List(ctx context.Context) ([]models.PromoCode, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	locks *keylock.KeyLock
}

// RedeemInput names the code an account wants to apply to an amount.
type RedeemInput struct {
	TelegramID int64
	Code       string
	Amount     int64
}

// Quote is the outcome of applying a code: the discount taken off and what
// is left to pay.
type Quote struct {
	Promo       *models.PromoCode `json:"promo"`
	Discount    int64             `json:"discount"`
	FinalAmount int64             `json:"final_amount"`
}

// CreateInput describes a new promo code set up by an operator.
type CreateInput struct {
	Code            string
	DiscountPercent int64
	DiscountAmount  int64
	MaxUses         int64
	MinAmount       int64
	ExpiresAt       *time.Time
}

// NewService wires a promos service with the provided dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promos repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{
		repo:  repo,
		tx:    tx,
		locks: keylock.New(),
	}, nil
}

func (s *service) Validate(ctx context.Context, input RedeemInput) (*Quote, error) {
	promo, err := s.check(ctx, s.repo, input)
	if err != nil {
		return nil, err
	}
	return quote(promo, input.Amount), nil
}

func (s *service) Redeem(ctx context.Context, input RedeemInput) (*Quote, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	code := normalizeCode(input.Code)
	var result *Quote
	err := s.locks.Do(redeemKey(code, input.TelegramID), func() error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			promo, err := s.check(ctx, repo, input)
			if err != nil {
				return err
			}

			claimed, err := repo.ClaimUse(ctx, promo.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim promo use")
			}
			if !claimed {
				return pkgerrors.New(pkgerrors.CodePromoLimit, "promo code usage limit reached")
			}

			if err := repo.CreateUsage(ctx, &models.PromoUsage{
				PromoID:    promo.ID,
				TelegramID: input.TelegramID,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record promo usage")
			}

			promo.UsedCount++
			result = quote(promo, input.Amount)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// check runs the validation chain in its fixed order: existence and
// activity first, then the usage cap, the minimum amount, and finally
// whether this account already used the code.
func (s *service) check(ctx context.Context, repo Repository, input RedeemInput) (*models.PromoCode, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	promo, err := repo.GetByCode(ctx, normalizeCode(input.Code))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promo code")
	}
	if !promo.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
	}
	if promo.ExpiresAt != nil && promo.ExpiresAt.Before(time.Now()) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
	}
	if promo.MaxUses > 0 && promo.UsedCount >= promo.MaxUses {
		return nil, pkgerrors.New(pkgerrors.CodePromoLimit, "promo code usage limit reached")
	}
	if input.Amount < promo.MinAmount {
		return nil, pkgerrors.New(pkgerrors.CodeBelowMinimum,
			fmt.Sprintf("minimum order amount for this code is %d", promo.MinAmount)).
			WithDetails(map[string]int64{"minimum": promo.MinAmount, "amount": input.Amount})
	}

	used, err := repo.HasUsage(ctx, promo.ID, input.TelegramID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check promo usage")
	}
	if used {
		return nil, pkgerrors.New(pkgerrors.CodePromoUsed, "promo code already used")
	}
	return promo, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.PromoCode, error) {
	code := normalizeCode(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	if input.DiscountPercent < 0 || input.DiscountPercent > 100 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "discount percent must be between 0 and 100")
	}
	if input.DiscountPercent == 0 && input.DiscountAmount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code needs a percent or a flat discount")
	}

	promo := &models.PromoCode{
		Code:            code,
		DiscountPercent: input.DiscountPercent,
		DiscountAmount:  input.DiscountAmount,
		MaxUses:         input.MaxUses,
		MinAmount:       input.MinAmount,
		IsActive:        true,
		ExpiresAt:       input.ExpiresAt,
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "promo code already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promo code")
	}
	return promo, nil
}

func (s *service) Deactivate(ctx context.Context, promoID int64) error {
	if promoID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo id required")
	}
	if err := s.repo.SetActive(ctx, promoID, false); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "promo code not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate promo code")
	}
	return nil
}

func (s *service) List(ctx context.Context) ([]models.PromoCode, error) {
	promos, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promo codes")
	}
	return promos, nil
}

// quote computes the discount. A percent discount wins over a flat one when
// both are configured, and the result never exceeds the amount itself.
func quote(promo *models.PromoCode, amount int64) *Quote {
	var discount int64
	if promo.DiscountPercent > 0 {
		discount = amount * promo.DiscountPercent / 100
	} else {
		discount = promo.DiscountAmount
	}
	if discount > amount {
		discount = amount
	}
	return &Quote{
		Promo:       promo,
		Discount:    discount,
		FinalAmount: amount - discount,
	}
}

func validateInput(input RedeemInput) error {
	if input.TelegramID == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}
	if strings.TrimSpace(input.Code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "promo code required")
	}
	if input.Amount < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	return nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func redeemKey(code string, telegramID int64) string {
	return code + "|" + strconv.FormatInt(telegramID, 10)
}
