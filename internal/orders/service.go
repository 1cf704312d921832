package orders

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/ilomswe/smmhub-backend/internal/fulfillment"
	"github.com/ilomswe/smmhub-backend/internal/ledger"
	"github.com/ilomswe/smmhub-backend/internal/promos"
	"github.com/ilomswe/smmhub-backend/internal/scheduler"
	"github.com/ilomswe/smmhub-backend/pkg/config"
	"github.com/ilomswe/smmhub-backend/pkg/db/models"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
	"github.com/ilomswe/smmhub-backend/pkg/txid"
	"gorm.io/gorm"
)

const (
	taskOrderProcessing = "order-processing"
	taskOrderProgress   = "order-progress"
	taskOrderComplete   = "order-complete"
)

type ledgerService interface {
	Credit(ctx context.Context, input ledger.EntryInput) (*models.Transaction, error)
	Debit(ctx context.Context, input ledger.EntryInput) (*models.Transaction, error)
	Balance(ctx context.Context, telegramID int64) (int64, error)
}

type promoRedeemer interface {
	Redeem(ctx context.Context, input promos.RedeemInput) (*promos.Quote, error)
}

type panelClient interface {
	Submit(ctx context.Context, serviceRef, link string, quantity int64) (string, error)
	Cancel(ctx context.Context, externalRef string) error
}

type taskScheduler interface {
	Schedule(name string, delay time.Duration, task scheduler.TaskFunc)
}

type notifier interface {
	OrderPlaced(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order)
}

// Service drives the order lifecycle: placement charges the account before
// anything is dispatched, and the synthetic progression moves orders toward
// completion on configurable delays.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*PlaceResult, error)
	Get(ctx context.Context, orderID string) (*models.Order, error)
	ListByAccount(ctx context.Context, telegramID int64, params pagination.Params) (*Page, error)
	ListByStatus(ctx context.Context, status enums.OrderStatus, limit int) ([]models.Order, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	Stats(ctx context.Context) (*StatsRow, error)
}

type service struct {
	repo      Repository
	ledger    ledgerService
	promos    promoRedeemer
	panel     panelClient
	sched     taskScheduler
	notify    notifier
	logg      *logger.Logger
	lifecycle config.LifecycleConfig
}

// PlaceInput captures a purchase request.
type PlaceInput struct {
	TelegramID int64
	ServiceRef string
	Link       string
	Quantity   int64
	PromoCode  string
}

// PlaceResult reports the stored order plus the applied pricing.
type PlaceResult struct {
	Order       *models.Order `json:"order"`
	GrossPrice  int64         `json:"gross_price"`
	Discount    int64         `json:"discount"`
	ChargedFrom string        `json:"transaction_id"`
}

// UpdateStatusInput is an explicit transition request, operator-initiated.
type UpdateStatusInput struct {
	OrderID  string
	Status   enums.OrderStatus
	Progress *int
}

// Page is one newest-first page of an account's orders.
type Page struct {
	Items      []models.Order
	NextCursor string
}

// NewService wires the order engine with its dependencies.
func NewService(
	repo Repository,
	ledgerSvc ledgerService,
	promoSvc promoRedeemer,
	panel panelClient,
	sched taskScheduler,
	notify notifier,
	logg *logger.Logger,
	lifecycle config.LifecycleConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		ledger:    ledgerSvc,
		promos:    promoSvc,
		panel:     panel,
		sched:     sched,
		notify:    notify,
		logg:      logg,
		lifecycle: lifecycle,
	}, nil
}

func (s *service) Place(ctx context.Context, input PlaceInput) (*PlaceResult, error) {
	if input.TelegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}
	if input.Link == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "link required")
	}
	svc, ok := fulfillment.LookupService(input.ServiceRef)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "unknown service")
	}
	if input.Quantity < svc.MinQuantity || input.Quantity > svc.MaxQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity must be between %d and %d", svc.MinQuantity, svc.MaxQuantity))
	}

	gross := svc.Price(input.Quantity)
	price := gross
	var discount int64
	if input.PromoCode != "" && s.promos != nil {
		quote, err := s.promos.Redeem(ctx, promos.RedeemInput{
			TelegramID: input.TelegramID,
			Code:       input.PromoCode,
			Amount:     gross,
		})
		if err != nil {
			return nil, err
		}
		discount = quote.Discount
		price = quote.FinalAmount
	}

	// Check funds before writing anything; the debit re-checks under the
	// account lock and stays the authority on races.
	balance, err := s.ledger.Balance(ctx, input.TelegramID)
	if err != nil {
		return nil, err
	}
	if balance < price {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds,
			fmt.Sprintf("balance %d is below the order price %d", balance, price)).
			WithDetails(map[string]int64{"balance": balance, "price": price})
	}

	order := &models.Order{
		ID:          txid.New(txid.PrefixOrder),
		TelegramID:  input.TelegramID,
		ServiceRef:  svc.Ref,
		ServiceName: svc.Name,
		Category:    svc.Category,
		Link:        input.Link,
		Quantity:    input.Quantity,
		Price:       price,
		Status:      enums.OrderStatusPending,
		Progress:    0,
	}
	if err := s.repo.Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	entry, err := s.ledger.Debit(ctx, ledger.EntryInput{
		TelegramID:  input.TelegramID,
		Amount:      price,
		Kind:        enums.TransactionKindPurchase,
		Description: fmt.Sprintf("Order %s: %s x%d", order.ID, svc.Name, input.Quantity),
	})
	if err != nil {
		// The charge never happened, so the order must not exist either.
		if delErr := s.repo.Delete(ctx, order.ID); delErr != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "failed to remove uncharged order", delErr)
		}
		return nil, err
	}

	if err := s.repo.AdjustAccountStats(ctx, input.TelegramID, 1, price); err != nil {
		s.logg.Error(ctx, "failed to bump account order stats", err)
	}

	s.dispatch(ctx, order)

	if s.notify != nil {
		s.notify.OrderPlaced(ctx, order)
	}
	s.scheduleLifecycle(order.ID)

	return &PlaceResult{
		Order:       order,
		GrossPrice:  gross,
		Discount:    discount,
		ChargedFrom: entry.ID,
	}, nil
}

// dispatch forwards the order to the panel. Failures only log: the charge
// stands and the synthetic progression carries the order regardless.
func (s *service) dispatch(ctx context.Context, order *models.Order) {
	if s.panel == nil {
		return
	}
	externalRef, err := s.panel.Submit(ctx, order.ServiceRef, order.Link, order.Quantity)
	if err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "panel dispatch failed", err)
		return
	}
	order.ExternalRef = &externalRef
	if err := s.repo.SetExternalRef(ctx, order.ID, externalRef); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "failed to store panel reference", err)
	}
}

func (s *service) scheduleLifecycle(orderID string) {
	if s.sched == nil {
		return
	}

	processingAt := s.lifecycle.ProcessingDelay
	progressAt := processingAt + s.lifecycle.ProgressDelay
	completeAt := progressAt + s.lifecycle.CompletionDelay
	if s.lifecycle.CompletionJitter > 0 {
		completeAt += time.Duration(rand.Int63n(int64(s.lifecycle.CompletionJitter)))
	}

	s.sched.Schedule(taskOrderProcessing, processingAt, func(ctx context.Context) error {
		return s.advance(ctx, orderID, enums.OrderStatusProcessing, 10)
	})
	s.sched.Schedule(taskOrderProgress, progressAt, func(ctx context.Context) error {
		return s.advance(ctx, orderID, enums.OrderStatusProcessing, 30+int(rand.Int31n(41)))
	})
	s.sched.Schedule(taskOrderComplete, completeAt, func(ctx context.Context) error {
		return s.advance(ctx, orderID, enums.OrderStatusCompleted, 100)
	})
}

// advance is the scheduled-tick transition: it re-loads the order and
// silently skips when the state already moved past the target.
func (s *service) advance(ctx context.Context, orderID string, status enums.OrderStatus, progress int) error {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return scheduler.ErrSkipped
		}
		return err
	}
	if order.Status.IsTerminal() {
		return scheduler.ErrSkipped
	}
	if status == enums.OrderStatusProcessing && order.Status == enums.OrderStatusProcessing && progress <= order.Progress {
		return scheduler.ErrSkipped
	}

	s.applyTarget(order, status, progress)
	if err := s.repo.UpdateState(ctx, order); err != nil {
		return err
	}
	if s.notify != nil {
		s.notify.OrderStatusChanged(ctx, order)
	}
	return nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Status))
	}

	order, err := s.repo.Get(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status.IsTerminal() {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("order is already %s", order.Status))
	}
	if input.Status == enums.OrderStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition, "orders cannot return to pending")
	}

	progress := order.Progress
	if input.Progress != nil {
		progress = *input.Progress
	} else if input.Status == enums.OrderStatusProcessing && order.Status == enums.OrderStatusPending {
		progress = 10
	}
	// Progress never decreases except through cancellation.
	if input.Status == enums.OrderStatusProcessing && progress < order.Progress {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidTransition,
			fmt.Sprintf("progress cannot move back from %d to %d", order.Progress, progress))
	}

	s.applyTarget(order, input.Status, progress)
	if err := s.repo.UpdateState(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
	}

	if order.Status == enums.OrderStatusCancelled {
		if err := s.refund(ctx, order); err != nil {
			return nil, err
		}
	}
	if s.notify != nil {
		s.notify.OrderStatusChanged(ctx, order)
	}
	return order, nil
}

// applyTarget mutates the in-memory order to the target state. Progress is
// clamped to [1,99] while processing; completion forces 100; cancellation
// freezes whatever was reached.
func (s *service) applyTarget(order *models.Order, status enums.OrderStatus, progress int) {
	switch status {
	case enums.OrderStatusProcessing:
		if progress < 1 {
			progress = 1
		}
		if progress > 99 {
			progress = 99
		}
		order.Progress = progress
	case enums.OrderStatusCompleted:
		order.Progress = 100
		now := time.Now().UTC()
		order.CompletedAt = &now
	}
	order.Status = status
}

// refund returns the full charge after a cancellation and reverses the
// spent aggregate. The panel is told to cancel too, best-effort.
func (s *service) refund(ctx context.Context, order *models.Order) error {
	if _, err := s.ledger.Credit(ctx, ledger.EntryInput{
		TelegramID:  order.TelegramID,
		Amount:      order.Price,
		Kind:        enums.TransactionKindRefund,
		Description: fmt.Sprintf("Refund for cancelled order %s", order.ID),
	}); err != nil {
		return err
	}
	if err := s.repo.AdjustAccountStats(ctx, order.TelegramID, 0, -order.Price); err != nil {
		s.logg.Error(ctx, "failed to reverse account spend stats", err)
	}
	if s.panel != nil && order.ExternalRef != nil {
		if err := s.panel.Cancel(ctx, *order.ExternalRef); err != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID), "panel cancel failed", err)
		}
	}
	return nil
}

func (s *service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	order, err := s.repo.Get(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

func (s *service) ListByAccount(ctx context.Context, telegramID int64, params pagination.Params) (*Page, error) {
	if telegramID == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "telegram id required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	items, err := s.repo.ListByAccount(ctx, telegramID, limit+1, cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &Page{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		last := page.Items[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, Key: last.ID})
	}
	return page, nil
}

func (s *service) ListByStatus(ctx context.Context, status enums.OrderStatus, limit int) ([]models.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", status))
	}
	items, err := s.repo.ListByStatus(ctx, status, pagination.NormalizeLimit(limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return items, nil
}

func (s *service) Stats(ctx context.Context) (*StatsRow, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "aggregate order stats")
	}
	return stats, nil
}
