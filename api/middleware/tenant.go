package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/api/responses"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
)

// TenantContext rejects requests that reached the handler chain without a
// tenant scope.
func TenantContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if TenantIDFromContext(r.Context()) == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
