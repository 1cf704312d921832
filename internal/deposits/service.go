// Package deposits wires the pending-deposit ledger flow to the simulated
// payment confirmation: a deposit is recorded immediately and credited by a
// scheduled confirmation a short delay later, the way a real payment
// provider callback would.
package deposits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ilomswe/smmhub-backend/internal/ledger"
	"github.com/ilomswe/smmhub-backend/internal/scheduler"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

const taskDepositConfirm = "deposit-confirm"

type ledgerService interface {
	RecordPendingDeposit(ctx context.Context, input ledger.DepositInput) (*models.Transaction, error)
	ConfirmDeposit(ctx context.Context, transactionID string) (*models.Transaction, error)
	Balance(ctx context.Context, telegramID int64) (int64, error)
}

type taskScheduler interface {
	Schedule(name string, delay time.Duration, task scheduler.TaskFunc)
}

type notifier interface {
	DepositConfirmed(ctx context.Context, telegramID int64, amount int64, balance int64)
}

// Service accepts deposits and drives them to confirmation.
type Service interface {
	Start(ctx context.Context, input ledger.DepositInput) (*models.Transaction, error)
	Confirm(ctx context.Context, transactionID string) (*models.Transaction, error)
}

type service struct {
	ledger     ledgerService
	sched      taskScheduler
	notify     notifier
	logg       *logger.Logger
	confirmGap time.Duration
}

// NewService wires the deposit flow.
func NewService(ledgerSvc ledgerService, sched taskScheduler, notify notifier, logg *logger.Logger, confirmGap time.Duration) (Service, error) {
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		ledger:     ledgerSvc,
		sched:      sched,
		notify:     notify,
		logg:       logg,
		confirmGap: confirmGap,
	}, nil
}

// Start records the pending deposit and schedules its confirmation.
func (s *service) Start(ctx context.Context, input ledger.DepositInput) (*models.Transaction, error) {
	entry, err := s.ledger.RecordPendingDeposit(ctx, input)
	if err != nil {
		return nil, err
	}
	if s.sched != nil {
		transactionID := entry.ID
		s.sched.Schedule(taskDepositConfirm, s.confirmGap, func(taskCtx context.Context) error {
			return s.settle(taskCtx, transactionID)
		})
	}
	return entry, nil
}

// Confirm settles a pending deposit immediately, outside the scheduled path.
func (s *service) Confirm(ctx context.Context, transactionID string) (*models.Transaction, error) {
	entry, err := s.ledger.ConfirmDeposit(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	s.announce(ctx, entry)
	return entry, nil
}

// settle is the scheduled confirmation. A deposit already confirmed through
// the manual path is a skip, not a failure.
func (s *service) settle(ctx context.Context, transactionID string) error {
	entry, err := s.ledger.ConfirmDeposit(ctx, transactionID)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeAlreadyConfirmed) {
			return scheduler.ErrSkipped
		}
		if pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
			return scheduler.ErrSkipped
		}
		return err
	}
	s.announce(ctx, entry)
	return nil
}

func (s *service) announce(ctx context.Context, entry *models.Transaction) {
	if s.notify == nil {
		return
	}
	balance, err := s.ledger.Balance(ctx, entry.TelegramID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "failed to load balance for deposit notification", err)
		}
		return
	}
	s.notify.DepositConfirmed(ctx, entry.TelegramID, entry.Amount, balance)
}
