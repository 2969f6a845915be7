package controllers

import (
	"net/http"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

func parseDateField(field, value string) (time.Time, error) {
	t, err := types.ParseDate(value)
	if err != nil {
		return time.Time{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date").WithDetails(map[string]string{field: "must be a YYYY-MM-DD date"})
	}
	return t, nil
}

func parseOptionalDateField(field string, value *string) (*time.Time, error) {
	t, err := types.ParseOptionalDate(value)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid date").WithDetails(map[string]string{field: "must be a YYYY-MM-DD date"})
	}
	return t, nil
}

// parseAsOf returns the zero time for an absent value, which services read as today.
func parseAsOf(value *string) (time.Time, error) {
	t, err := parseOptionalDateField("as_of", value)
	if err != nil || t == nil {
		return time.Time{}, err
	}
	return *t, nil
}

func optionalQuery(r *http.Request, key string) *string {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil
	}
	return &value
}
