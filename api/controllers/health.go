package controllers

import (
	"context"
	"net/http"

	"github.com/ilomswe/smmhub-backend/api/responses"
	"github.com/ilomswe/smmhub-backend/pkg/config"
	pkgerrors "github.com/ilomswe/smmhub-backend/pkg/errors"
	"github.com/ilomswe/smmhub-backend/pkg/logger"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SmmHub-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady pings the hard dependencies. Redis is optional wiring, so a
// nil client is simply skipped.
func HealthReady(cfg *config.Config, logg *logger.Logger, db pinger, cache pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-SmmHub-Env", cfg.App.Env)

		checks := map[string]string{}
		ready := true

		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				checks["database"] = err.Error()
				ready = false
			} else {
				checks["database"] = "ok"
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				checks["redis"] = err.Error()
				ready = false
			} else {
				checks["redis"] = "ok"
			}
		}

		if !ready {
			responses.WriteError(r.Context(), logg, w,
				pkgerrors.New(pkgerrors.CodeDependency, "dependency not ready").WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
