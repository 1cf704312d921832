package deposits

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ilomswe/smmhub-backend/internal/ledger"
	"github.com/ilomswe/smmhub-backend/internal/scheduler"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

type fakeLedger struct {
	pending   map[string]*models.Transaction
	balance   int64
	confirmed []string
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{pending: make(map[string]*models.Transaction)}
}

func (f *fakeLedger) RecordPendingDeposit(ctx context.Context, input ledger.DepositInput) (*models.Transaction, error) {
	entry := &models.Transaction{
		ID:         "DEP-TEST1",
		TelegramID: input.TelegramID,
		Amount:     input.Amount,
		Kind:       enums.TransactionKindDeposit,
		Status:     enums.TransactionStatusPending,
	}
	f.pending[entry.ID] = entry
	return entry, nil
}

func (f *fakeLedger) ConfirmDeposit(ctx context.Context, transactionID string) (*models.Transaction, error) {
	entry, ok := f.pending[transactionID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "transaction not found")
	}
	if entry.Status == enums.TransactionStatusCompleted {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyConfirmed, "deposit already confirmed")
	}
	entry.Status = enums.TransactionStatusCompleted
	f.balance += entry.Amount
	f.confirmed = append(f.confirmed, transactionID)
	return entry, nil
}

func (f *fakeLedger) Balance(ctx context.Context, telegramID int64) (int64, error) {
	return f.balance, nil
}

type scheduledTask struct {
	name  string
	delay time.Duration
	task  scheduler.TaskFunc
}

type fakeScheduler struct {
	tasks []scheduledTask
}

func (f *fakeScheduler) Schedule(name string, delay time.Duration, task scheduler.TaskFunc) {
	f.tasks = append(f.tasks, scheduledTask{name: name, delay: delay, task: task})
}

type fakeNotifier struct {
	deposits []int64
	balances []int64
}

func (f *fakeNotifier) DepositConfirmed(ctx context.Context, telegramID int64, amount int64, balance int64) {
	f.deposits = append(f.deposits, amount)
	f.balances = append(f.balances, balance)
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func TestDepositConfirmsOnSchedule(t *testing.T) {
	fakeL := newFakeLedger()
	sched := &fakeScheduler{}
	notify := &fakeNotifier{}

	svc, err := NewService(fakeL, sched, notify, testLogger(), 3*time.Second)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx := context.Background()
	entry, err := svc.Start(ctx, ledger.DepositInput{TelegramID: 100, Amount: 20_000, Method: "click"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if entry.Status != enums.TransactionStatusPending {
		t.Fatalf("expected pending deposit, got %s", entry.Status)
	}
	if fakeL.balance != 0 {
		t.Fatalf("balance must stay untouched until confirmation, got %d", fakeL.balance)
	}
	if len(sched.tasks) != 1 || sched.tasks[0].delay != 3*time.Second {
		t.Fatalf("expected one confirmation task at 3s, got %+v", sched.tasks)
	}

	if err := sched.tasks[0].task(ctx); err != nil {
		t.Fatalf("confirmation task: %v", err)
	}
	if fakeL.balance != 20_000 {
		t.Fatalf("expected confirmed balance 20000, got %d", fakeL.balance)
	}
	if len(notify.deposits) != 1 || notify.deposits[0] != 20_000 || notify.balances[0] != 20_000 {
		t.Fatalf("expected one notification for 20000, got %+v/%+v", notify.deposits, notify.balances)
	}
}

func TestScheduledConfirmSkipsSettledDeposit(t *testing.T) {
	fakeL := newFakeLedger()
	sched := &fakeScheduler{}
	notify := &fakeNotifier{}

	svc, err := NewService(fakeL, sched, notify, testLogger(), time.Second)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx := context.Background()
	entry, err := svc.Start(ctx, ledger.DepositInput{TelegramID: 100, Amount: 5000, Method: "payme"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Operator settles it manually before the scheduled tick fires.
	if _, err := svc.Confirm(ctx, entry.ID); err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if err := sched.tasks[0].task(ctx); !errors.Is(err, scheduler.ErrSkipped) {
		t.Fatalf("expected ErrSkipped for settled deposit, got %v", err)
	}
	if len(fakeL.confirmed) != 1 {
		t.Fatalf("deposit must be confirmed exactly once, got %v", fakeL.confirmed)
	}
	if len(notify.deposits) != 1 {
		t.Fatalf("expected a single notification, got %d", len(notify.deposits))
	}
}
