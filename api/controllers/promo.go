package controllers

import (
	"net/http"

	"github.com/ilomswe/smmhub-backend/api/responses"
	"github.com/ilomswe/smmhub-backend/api/validators"
	"github.com/ilomswe/smmhub-backend/internal/promos"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

type promoApplyRequest struct {
	TelegramID int64  `json:"telegram_id" validate:"required,gt=0"`
	Code       string `json:"code" validate:"required"`
	Amount     int64  `json:"amount" validate:"gte=0"`
}

// PromoApply redeems a code for the account. The redemption is recorded
// immediately; the returned quote tells the client what the discount is
// worth against the supplied amount.
func PromoApply(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promoApplyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Redeem(r.Context(), promos.RedeemInput{
			TelegramID: req.TelegramID,
			Code:       req.Code,
			Amount:     req.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// PromoValidate quotes a code without consuming it.
func PromoValidate(svc promos.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promoApplyRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Validate(r.Context(), promos.RedeemInput{
			TelegramID: req.TelegramID,
			Code:       req.Code,
			Amount:     req.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}
