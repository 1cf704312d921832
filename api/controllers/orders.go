package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ilomswe/smmhub-backend/api/responses"
	"github.com/ilomswe/smmhub-backend/api/validators"
	"github.com/ilomswe/smmhub-backend/internal/fulfillment"
	"github.com/ilomswe/smmhub-backend/internal/orders"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
)

type placeOrderRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required,gt=0"`
	ServiceID  string `json:"service_id" validate:"required"`
	Link       string `json:"link" validate:"required,url"`
	Quantity   int64  `json:"quantity" validate:"required,gt=0"`
	PromoCode  string `json:"promo_code"`
}

// OrderPlace charges the account and enqueues the order.
func OrderPlace(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Place(r.Context(), orders.PlaceInput{
			TelegramID: req.TelegramID,
			ServiceRef: req.ServiceID,
			Link:       req.Link,
			Quantity:   req.Quantity,
			PromoCode:  req.PromoCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func OrderGet(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
		if orderID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "order id required"))
			return
		}

		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

func OrderList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		telegramID, err := validators.ParseTelegramID(r, "telegram_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListByAccount(r.Context(), telegramID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"orders":      page.Items,
			"next_cursor": page.NextCursor,
		})
	}
}

// ServiceCatalog lists the purchasable services with their rates.
func ServiceCatalog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]any{"services": fulfillment.Catalog()})
	}
}
