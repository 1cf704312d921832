package ledger

import (
	"context"
	"sort"
	"sync"
	"testing"

	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
	"gorm.io/gorm"
)

type fakeRepository struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	entries  []*models.Transaction
	nextSeq  int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{accounts: make(map[int64]*models.Account)}
}

func (f *fakeRepository) addAccount(telegramID, balance int64) {
	f.accounts[telegramID] = &models.Account{TelegramID: telegramID, Balance: balance}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	return f
}

func (f *fakeRepository) GetAccount(ctx context.Context, telegramID int64) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[telegramID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *account
	return &copied, nil
}

func (f *fakeRepository) SetBalance(ctx context.Context, telegramID int64, balance int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[telegramID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	account.Balance = balance
	return nil
}

func (f *fakeRepository) CreateTransaction(ctx context.Context, entry *models.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextSeq++
	entry.Seq = f.nextSeq
	copied := *entry
	f.entries = append(f.entries, &copied)
	return nil
}

func (f *fakeRepository) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == id {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) MarkCompleted(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range f.entries {
		if entry.ID == id {
			entry.Status = enums.TransactionStatusCompleted
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (f *fakeRepository) ListByAccount(ctx context.Context, telegramID int64, limit int, cursor *pagination.Cursor) ([]models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Transaction
	for _, entry := range f.entries {
		if entry.TelegramID == telegramID {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRepository) balance(telegramID int64) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[telegramID].Balance
}

func (f *fakeRepository) entryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newTestService(t *testing.T, repo Repository, minDeposit int64) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, minDeposit)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc
}

func TestService_CreditRecordsEntryAndBalance(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(100, 2000)
	svc := newTestService(t, repo, 5000)

	entry, err := svc.Credit(context.Background(), EntryInput{
		TelegramID:  100,
		Amount:      3000,
		Kind:        enums.TransactionKindBonus,
		Description: "Welcome bonus",
	})
	if err != nil {
		t.Fatalf("Credit error: %v", err)
	}
	if entry.Amount != 3000 {
		t.Fatalf("expected credit amount 3000, got %d", entry.Amount)
	}
	if entry.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed status, got %s", entry.Status)
	}
	if got := repo.balance(100); got != 5000 {
		t.Fatalf("expected balance 5000, got %d", got)
	}
}

func TestService_CreditUnknownAccount(t *testing.T) {
	svc := newTestService(t, newFakeRepository(), 5000)

	_, err := svc.Credit(context.Background(), EntryInput{
		TelegramID: 999,
		Amount:     100,
		Kind:       enums.TransactionKindBonus,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestService_DebitStoresNegativeAmount(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(100, 10000)
	svc := newTestService(t, repo, 5000)

	entry, err := svc.Debit(context.Background(), EntryInput{
		TelegramID:  100,
		Amount:      4000,
		Kind:        enums.TransactionKindPurchase,
		Description: "Order ORD-TEST",
	})
	if err != nil {
		t.Fatalf("Debit error: %v", err)
	}
	if entry.Amount != -4000 {
		t.Fatalf("debit should be stored negative, got %d", entry.Amount)
	}
	if got := repo.balance(100); got != 6000 {
		t.Fatalf("expected balance 6000, got %d", got)
	}
}

func TestService_DebitInsufficientFundsLeavesNoTrace(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(100, 1000)
	svc := newTestService(t, repo, 5000)

	_, err := svc.Debit(context.Background(), EntryInput{
		TelegramID: 100,
		Amount:     5000,
		Kind:       enums.TransactionKindPurchase,
	})
	if !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS, got %v", err)
	}
	if repo.entryCount() != 0 {
		t.Fatalf("failed debit must not record an entry")
	}
	if got := repo.balance(100); got != 1000 {
		t.Fatalf("failed debit must not change balance, got %d", got)
	}
}

func TestService_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(100, 10000)
	svc := newTestService(t, repo, 5000)

	const workers = 20
	results := make(chan error, workers)

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.Debit(context.Background(), EntryInput{
				TelegramID: 100,
				Amount:     1000,
				Kind:       enums.TransactionKindPurchase,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, rejected := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if succeeded != 10 || rejected != 10 {
		t.Fatalf("expected exactly 10 debits to land, got %d ok / %d rejected", succeeded, rejected)
	}
	if got := repo.balance(100); got != 0 {
		t.Fatalf("expected balance drained to 0, got %d", got)
	}
	if repo.entryCount() != 10 {
		t.Fatalf("expected 10 entries, got %d", repo.entryCount())
	}
}

func TestService_PendingDepositLifecycle(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(100, 0)
	svc := newTestService(t, repo, 5000)
	ctx := context.Background()

	_, err := svc.RecordPendingDeposit(ctx, DepositInput{TelegramID: 100, Amount: 4999, Method: "click"})
	if !pkgerrors.IsCode(err, pkgerrors.CodeBelowMinimum) {
		t.Fatalf("expected BELOW_MINIMUM, got %v", err)
	}

	pending, err := svc.RecordPendingDeposit(ctx, DepositInput{TelegramID: 100, Amount: 8000, Method: "click"})
	if err != nil {
		t.Fatalf("RecordPendingDeposit error: %v", err)
	}
	if pending.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending status, got %s", pending.Status)
	}
	if got := repo.balance(100); got != 0 {
		t.Fatalf("pending deposit must not touch the balance, got %d", got)
	}

	confirmed, err := svc.ConfirmDeposit(ctx, pending.ID)
	if err != nil {
		t.Fatalf("ConfirmDeposit error: %v", err)
	}
	if confirmed.Status != enums.TransactionStatusCompleted {
		t.Fatalf("expected completed status, got %s", confirmed.Status)
	}
	if got := repo.balance(100); got != 8000 {
		t.Fatalf("expected balance 8000 after confirm, got %d", got)
	}

	_, err = svc.ConfirmDeposit(ctx, pending.ID)
	if !pkgerrors.IsCode(err, pkgerrors.CodeAlreadyConfirmed) {
		t.Fatalf("second confirm should fail with ALREADY_CONFIRMED, got %v", err)
	}
	if got := repo.balance(100); got != 8000 {
		t.Fatalf("double confirm must not double credit, got %d", got)
	}

	_, err = svc.ConfirmDeposit(ctx, "DEP-UNKNOWN")
	if !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected NOT_FOUND for unknown deposit, got %v", err)
	}
}

func TestService_HistoryEmitsNextCursorOnFullPage(t *testing.T) {
	repo := newFakeRepository()
	repo.addAccount(100, 0)
	svc := newTestService(t, repo, 5000)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.Credit(ctx, EntryInput{
			TelegramID: 100,
			Amount:     1000,
			Kind:       enums.TransactionKindBonus,
		}); err != nil {
			t.Fatalf("seed credit: %v", err)
		}
	}

	page, err := svc.History(ctx, 100, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("History error: %v", err)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}
	if page.NextCursor == "" {
		t.Fatalf("expected next cursor on full page")
	}
	if page.Items[0].Seq < page.Items[1].Seq {
		t.Fatalf("expected newest-first ordering")
	}
}
