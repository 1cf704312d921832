package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ilomswe/smmhub-backend/api/responses"
	"github.com/ilomswe/smmhub-backend/api/validators"
	"github.com/ilomswe/smmhub-backend/internal/accounts"
	"github.com/ilomswe/smmhub-backend/internal/fulfillment"
	"github.com/ilomswe/smmhub-backend/internal/orders"
	"github.com/ilomswe/smmhub-backend/internal/promos"
	"github.com/ilomswe/smmhub-backend/pkg/enums"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
)

// AdminStats aggregates order totals for the operator dashboard.
func AdminStats(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}

func AdminOrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := enums.OrderStatus(strings.TrimSpace(r.URL.Query().Get("status")))
		items, err := svc.ListByStatus(r.Context(), status, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"orders": items})
	}
}

func AdminUserList(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		users, err := svc.List(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"users": users})
	}
}

type orderStatusRequest struct {
	Status   string `json:"status" validate:"required"`
	Progress *int   `json:"progress"`
}

// AdminOrderUpdate overrides an order's status, with the cancellation
// refund and the terminal-state guard applied by the service.
func AdminOrderUpdate(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		var req orderStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:  orderID,
			Status:   enums.OrderStatus(req.Status),
			Progress: req.Progress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type balanceAdjustRequest struct {
	Amount int64  `json:"amount" validate:"required"`
	Reason string `json:"reason"`
}

func AdminBalanceAdjust(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		telegramID, err := validators.ParsePathTelegramID(chi.URLParam(r, "telegramID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req balanceAdjustRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.AdjustBalance(r.Context(), accounts.AdjustInput{
			TelegramID: telegramID,
			Amount:     req.Amount,
			Reason:     req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}

func AdminFulfillmentBalance(panel fulfillment.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if panel == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeDependency, "fulfillment panel not configured"))
			return
		}
		balance, err := panel.Balance(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}

type promoCreateRequest struct {
	Code            string `json:"code" validate:"required"`
	DiscountPercent int64  `json:"discount_percent" validate:"gte=0,max=100"`
	DiscountAmount  int64  `json:"discount_amount" validate:"gte=0"`
	MaxUses         int64  `json:"max_uses" validate:"gte=0"`
	MinAmount       int64  `json:"min_amount" validate:"gte=0"`
	ExpiresAt       string `json:"expires_at"`
}

func AdminPromoCreate(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promoCreateRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := promos.CreateInput{
			Code:            req.Code,
			DiscountPercent: req.DiscountPercent,
			DiscountAmount:  req.DiscountAmount,
			MaxUses:         req.MaxUses,
			MinAmount:       req.MinAmount,
		}
		if req.ExpiresAt != "" {
			expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
			if err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.New(pkgerrors.CodeValidation, "expires_at must be RFC3339"))
				return
			}
			input.ExpiresAt = &expiresAt
		}

		promo, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, promo)
	}
}

func AdminPromoList(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"promos": items})
	}
}

func AdminPromoDeactivate(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promoID, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "promoID")), 10, 64)
		if err != nil || promoID <= 0 {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "promo id must be a positive integer"))
			return
		}

		if err := svc.Deactivate(r.Context(), promoID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"deactivated": promoID})
	}
}
