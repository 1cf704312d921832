package promos

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"gorm.io/gorm"
)

type usageKey struct {
	promoID    int64
	telegramID int64
}

type fakeRepository struct {
	mu     sync.Mutex
	promos map[string]*models.PromoCode
	usages map[usageKey]bool
	nextID int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		promos: make(map[string]*models.PromoCode),
		usages: make(map[usageKey]bool),
	}
}

func (f *fakeRepository) addPromo(promo models.PromoCode) *models.PromoCode {
	f.nextID++
	promo.ID = f.nextID
	f.promos[promo.Code] = &promo
	return &promo
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) GetByCode(ctx context.Context, code string) (*models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	promo, ok := f.promos[code]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *promo
	return &copied, nil
}

func (f *fakeRepository) Create(ctx context.Context, promo *models.PromoCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.promos[promo.Code]; exists {
		return gorm.ErrDuplicatedKey
	}
	f.nextID++
	promo.ID = f.nextID
	copied := *promo
	f.promos[promo.Code] = &copied
	return nil
}

func (f *fakeRepository) List(ctx context.Context) ([]models.PromoCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.PromoCode
	for _, promo := range f.promos {
		out = append(out, *promo)
	}
	return out, nil
}

func (f *fakeRepository) SetActive(ctx context.Context, promoID int64, active bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, promo := range f.promos {
		if promo.ID == promoID {
			promo.IsActive = active
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) HasUsage(ctx context.Context, promoID, telegramID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.usages[usageKey{promoID, telegramID}], nil
}

func (f *fakeRepository) CreateUsage(ctx context.Context, usage *models.PromoUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := usageKey{usage.PromoID, usage.TelegramID}
	if f.usages[key] {
		return gorm.ErrDuplicatedKey
	}
	f.usages[key] = true
	return nil
}

func (f *fakeRepository) ClaimUse(ctx context.Context, promoID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, promo := range f.promos {
		if promo.ID == promoID {
			if promo.MaxUses > 0 && promo.UsedCount >= promo.MaxUses {
				return false, nil
			}
			promo.UsedCount++
			return true, nil
		}
	}
	return false, gorm.ErrRecordNotFound
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_RedeemPercentCode(t *testing.T) {
	repo := newFakeRepository()
	repo.addPromo(models.PromoCode{Code: "YANGI20", DiscountPercent: 20, MaxUses: 1000, IsActive: true})
	svc := newTestService(t, repo)

	result, err := svc.Redeem(context.Background(), RedeemInput{TelegramID: 100, Code: "yangi20", Amount: 5000})
	if err != nil {
		t.Fatalf("Redeem error: %v", err)
	}
	if result.Discount != 1000 {
		t.Fatalf("expected 20%% discount of 1000, got %d", result.Discount)
	}
	if result.FinalAmount != 4000 {
		t.Fatalf("expected final amount 4000, got %d", result.FinalAmount)
	}
	if repo.promos["YANGI20"].UsedCount != 1 {
		t.Fatalf("used count not incremented")
	}
	if !repo.usages[usageKey{result.Promo.ID, 100}] {
		t.Fatalf("usage row not recorded")
	}
}

func TestService_RedeemPercentFloorsDiscount(t *testing.T) {
	repo := newFakeRepository()
	repo.addPromo(models.PromoCode{Code: "YANGI20", DiscountPercent: 20, IsActive: true})
	svc := newTestService(t, repo)

	result, err := svc.Redeem(context.Background(), RedeemInput{TelegramID: 100, Code: "YANGI20", Amount: 5509})
	if err != nil {
		t.Fatalf("Redeem error: %v", err)
	}
	if result.Discount != 1101 {
		t.Fatalf("expected floored discount 1101, got %d", result.Discount)
	}
}

func TestService_RedeemFlatCodeClampedToAmount(t *testing.T) {
	repo := newFakeRepository()
	repo.addPromo(models.PromoCode{Code: "SMM50", DiscountAmount: 5000, IsActive: true})
	svc := newTestService(t, repo)

	result, err := svc.Redeem(context.Background(), RedeemInput{TelegramID: 100, Code: "SMM50", Amount: 3000})
	if err != nil {
		t.Fatalf("Redeem error: %v", err)
	}
	if result.Discount != 3000 || result.FinalAmount != 0 {
		t.Fatalf("flat discount should clamp to amount, got discount=%d final=%d", result.Discount, result.FinalAmount)
	}
}

func TestService_PercentWinsOverFlat(t *testing.T) {
	repo := newFakeRepository()
	repo.addPromo(models.PromoCode{Code: "BOTH", DiscountPercent: 10, DiscountAmount: 9999, IsActive: true})
	svc := newTestService(t, repo)

	result, err := svc.Validate(context.Background(), RedeemInput{TelegramID: 100, Code: "BOTH", Amount: 1000})
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Discount != 100 {
		t.Fatalf("percent should take priority, got discount %d", result.Discount)
	}
}

func TestService_ValidationOrder(t *testing.T) {
	repo := newFakeRepository()
	inactive := repo.addPromo(models.PromoCode{Code: "GONE", DiscountPercent: 10, IsActive: false})
	expired := time.Now().Add(-time.Hour)
	repo.addPromo(models.PromoCode{Code: "OLD", DiscountPercent: 10, IsActive: true, ExpiresAt: &expired})
	capped := repo.addPromo(models.PromoCode{Code: "FULL", DiscountPercent: 10, MaxUses: 1, UsedCount: 1, IsActive: true, MinAmount: 99999})
	strict := repo.addPromo(models.PromoCode{Code: "STRICT", DiscountPercent: 10, MinAmount: 10000, IsActive: true})

	// The "already used" marks would trip later checks if the order were
	// wrong.
	repo.usages[usageKey{inactive.ID, 100}] = true
	repo.usages[usageKey{capped.ID, 100}] = true
	repo.usages[usageKey{strict.ID, 100}] = true

	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "MISSING", Amount: 5000}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown code: expected NOT_FOUND, got %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "GONE", Amount: 5000}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("inactive code: expected NOT_FOUND, got %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "OLD", Amount: 5000}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expired code: expected NOT_FOUND, got %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "FULL", Amount: 5000}); !pkgerrors.IsCode(err, pkgerrors.CodePromoLimit) {
		t.Fatalf("capped code: expected PROMO_LIMIT_REACHED before min-amount, got %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "STRICT", Amount: 5000}); !pkgerrors.IsCode(err, pkgerrors.CodeBelowMinimum) {
		t.Fatalf("low amount: expected BELOW_MINIMUM before already-used, got %v", err)
	}
}

func TestService_DoubleRedeemRejected(t *testing.T) {
	repo := newFakeRepository()
	repo.addPromo(models.PromoCode{Code: "ONCE", DiscountPercent: 10, IsActive: true})
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "ONCE", Amount: 5000}); err != nil {
		t.Fatalf("first redeem: %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "ONCE", Amount: 5000}); !pkgerrors.IsCode(err, pkgerrors.CodePromoUsed) {
		t.Fatalf("expected PROMO_ALREADY_USED, got %v", err)
	}
	if repo.promos["ONCE"].UsedCount != 1 {
		t.Fatalf("used count must only move once, got %d", repo.promos["ONCE"].UsedCount)
	}
}

func TestService_ConcurrentRedeemSameAccountOnceOnly(t *testing.T) {
	repo := newFakeRepository()
	repo.addPromo(models.PromoCode{Code: "RACE", DiscountPercent: 10, IsActive: true})
	svc := newTestService(t, repo)

	const workers = 10
	results := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Redeem(context.Background(), RedeemInput{TelegramID: 100, Code: "RACE", Amount: 5000})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.IsCode(err, pkgerrors.CodePromoUsed):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("exactly one redemption should land, got %d", succeeded)
	}
	if repo.promos["RACE"].UsedCount != 1 {
		t.Fatalf("expected used count 1, got %d", repo.promos["RACE"].UsedCount)
	}
}

func TestService_CreateValidation(t *testing.T) {
	repo := newFakeRepository()
	svc := newTestService(t, repo)
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Code: ""}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("empty code should be rejected, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Code: "X", DiscountPercent: 120}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("percent over 100 should be rejected, got %v", err)
	}
	if _, err := svc.Create(ctx, CreateInput{Code: "X"}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("code without any discount should be rejected, got %v", err)
	}

	promo, err := svc.Create(ctx, CreateInput{Code: " fresh10 ", DiscountPercent: 10, MaxUses: 5})
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if promo.Code != "FRESH10" {
		t.Fatalf("code should be normalized upper-case, got %s", promo.Code)
	}
	if !promo.IsActive {
		t.Fatalf("new promo should be active")
	}

	if _, err := svc.Create(ctx, CreateInput{Code: "FRESH10", DiscountPercent: 10}); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("duplicate code should be rejected, got %v", err)
	}
}

func TestService_DeactivateStopsRedemption(t *testing.T) {
	repo := newFakeRepository()
	promo := repo.addPromo(models.PromoCode{Code: "OLD10", DiscountPercent: 10, IsActive: true})
	svc := newTestService(t, repo)
	ctx := context.Background()

	if err := svc.Deactivate(ctx, promo.ID); err != nil {
		t.Fatalf("Deactivate error: %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{TelegramID: 100, Code: "OLD10", Amount: 5000}); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("deactivated code should look gone, got %v", err)
	}
	if err := svc.Deactivate(ctx, 9999); !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("unknown promo id should report not found, got %v", err)
	}
}
