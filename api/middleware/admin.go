package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/ilomswe/smmhub-backend/api/responses"
	"github.com/ilomswe/smmhub-backend/pkg/config"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

const adminIDHeader = "X-Admin-Id"

type adminIDKey struct{}

// RequireAdmin guards operator routes behind the configured Telegram id
// allow-list. A missing header is unauthorized; an id off the list is
// forbidden.
func RequireAdmin(admin config.AdminConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get(adminIDHeader))
			if raw == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin id required"))
				return
			}
			adminID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || !admin.IsAdmin(adminID) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "not an operator"))
				return
			}

			ctx := context.WithValue(r.Context(), adminIDKey{}, adminID)
			if logg != nil {
				ctx = logg.WithField(ctx, "admin_id", adminID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminIDFromContext returns the authenticated operator id, or zero.
func AdminIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(adminIDKey{}).(int64); ok {
		return id
	}
	return 0
}
