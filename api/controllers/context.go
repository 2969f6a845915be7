package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
)

func tenantFrom(r *http.Request) (uuid.UUID, error) {
	tenantID := middleware.TenantIDFromContext(r.Context())
	if tenantID == uuid.Nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	return tenantID, nil
}

// actorFrom returns the authenticated user id, or nil for tokens without one.
func actorFrom(r *http.Request) *uuid.UUID {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" service unavailable")
}
