package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ilomswe/smmhub-backend/api/responses"
	"github.com/ilomswe/smmhub-backend/api/validators"
	"github.com/ilomswe/smmhub-backend/internal/accounts"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

type authRequest struct {
	TelegramID   int64  `json:"telegram_id" validate:"required,gt=0"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Username     string `json:"username"`
	IsPremium    bool   `json:"is_premium"`
	ReferralCode string `json:"referral_code"`
}

// UserAuth upserts the Telegram identity: first contact creates the account
// with its signup bonus and optional referral reward, later calls refresh
// the profile.
func UserAuth(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Authenticate(r.Context(), accounts.AuthInput{
			TelegramID:   req.TelegramID,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Username:     req.Username,
			IsPremium:    req.IsPremium,
			ReferralCode: req.ReferralCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusOK
		if result.Created {
			status = http.StatusCreated
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"account": result.Account,
			"created": result.Created,
		})
	}
}

func UserGet(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		telegramID, err := validators.ParsePathTelegramID(chi.URLParam(r, "telegramID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Get(r.Context(), telegramID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, account)
	}
}

func UserStats(svc accounts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		telegramID, err := validators.ParsePathTelegramID(chi.URLParam(r, "telegramID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stats, err := svc.Stats(r.Context(), telegramID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, stats)
	}
}
