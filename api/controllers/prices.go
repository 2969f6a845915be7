package controllers

import (
	"net/http"

	"github.com/angelmondragon/clinicvax-backend/api/responses"
	"github.com/angelmondragon/clinicvax-backend/api/validators"
	"github.com/angelmondragon/clinicvax-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
)

type createPriceRequest struct {
	VaccineID       int64   `json:"vaccine_id" validate:"required,gt=0"`
	PriceMinorUnits int64   `json:"price_minor_units" validate:"gte=0"`
	StartDate       string  `json:"start_date" validate:"required"`
	EndDate         *string `json:"end_date"`
}

// PriceCreate adds a price version for a vaccine in a table. Overlapping
// windows are accepted and reported back in overlaps_with.
func PriceCreate(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pricing"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableID, err := validators.ParsePathID(r, "tableID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createPriceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		start, err := parseDateField("start_date", payload.StartDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		end, err := parseOptionalDateField("end_date", payload.EndDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		price, err := svc.CreatePrice(r.Context(), tenantID, pricing.CreatePriceInput{
			PriceTableID:    tableID,
			VaccineID:       payload.VaccineID,
			PriceMinorUnits: payload.PriceMinorUnits,
			StartDate:       start,
			EndDate:         end,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, price)
	}
}

// PriceList lists the versions in a table, optionally for one vaccine.
func PriceList(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pricing"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableID, err := validators.ParsePathID(r, "tableID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vaccineID, err := validators.ParseOptionalQueryID(r, "vaccine_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		prices, err := svc.ListPrices(r.Context(), tenantID, tableID, vaccineID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"prices": prices})
	}
}

func PriceDeactivate(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pricing"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathID(r, "priceID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DeactivatePrice(r.Context(), tenantID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// PriceResolve returns the effective list price of one vaccine in a table.
// found=false is a normal answer, not an error.
func PriceResolve(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("pricing"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		tableID, err := validators.ParsePathID(r, "tableID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		vaccineID, err := validators.ParseOptionalQueryID(r, "vaccine_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if vaccineID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "vaccine_id is required").
				WithDetails(map[string]string{"vaccine_id": "is required"}))
			return
		}
		asOf, err := parseAsOf(optionalQuery(r, "as_of"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resolution, err := svc.Resolve(r.Context(), tenantID, tableID, *vaccineID, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, resolution)
	}
}
