package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/angelmondragon/clinicvax-backend/api/responses"
	"github.com/angelmondragon/clinicvax-backend/pkg/config"
	"github.com/angelmondragon/clinicvax-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/redis"
)

const readinessTimeout = 2 * time.Second

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ClinicVax-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when every backing store answers a ping.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-ClinicVax-Env", cfg.App.Env)

		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()

		checks := map[string]string{}
		var failed error
		if err := ping(ctx, dbP); err != nil {
			checks["database"] = "down"
			failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database not ready")
		} else {
			checks["database"] = "up"
		}
		if err := ping(ctx, redisP); err != nil {
			checks["redis"] = "down"
			if failed == nil {
				failed = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis not ready")
			}
		} else {
			checks["redis"] = "up"
		}

		if failed != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.As(failed).WithDetails(checks))
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

func ping(ctx context.Context, p pinger) error {
	if p == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "not configured")
	}
	return p.Ping(ctx)
}
