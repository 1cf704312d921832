package controllers

import (
	"net/http"
	"strings"

	"github.com/ilomswe/smmhub-backend/api/responses"
	"github.com/ilomswe/smmhub-backend/api/validators"
	"github.com/ilomswe/smmhub-backend/internal/deposits"
	"github.com/ilomswe/smmhub-backend/internal/ledger"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
	"github.com/ilomswe/smmhub-backend/pkg/pagination"
)

type depositRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required,gt=0"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Method     string `json:"method" validate:"required"`
}

// BalanceDeposit records a pending top-up; the amount is credited once the
// confirmation settles it.
func BalanceDeposit(svc deposits.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req depositRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		entry, err := svc.Start(r.Context(), ledger.DepositInput{
			TelegramID: req.TelegramID,
			Amount:     req.Amount,
			Method:     req.Method,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func BalanceGet(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		telegramID, err := validators.ParseTelegramID(r, "telegram_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := svc.Balance(r.Context(), telegramID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"telegram_id": telegramID,
			"balance":     balance,
		})
	}
}

func TransactionList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
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

		page, err := svc.History(r.Context(), telegramID, pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"transactions": page.Items,
			"next_cursor":  page.NextCursor,
		})
	}
}
