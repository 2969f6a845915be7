package controllers

import (
	"net/http"

	"github.com/angelmondragon/clinicvax-backend/api/responses"
	"github.com/angelmondragon/clinicvax-backend/api/validators"
	"github.com/angelmondragon/clinicvax-backend/internal/quotes"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
)

type quoteRequest struct {
	PriceTableID *int64  `json:"price_table_id" validate:"omitempty,gt=0"`
	VaccineIDs   []int64 `json:"vaccine_ids" validate:"required,min=1,dive,gt=0"`
	AsOf         *string `json:"as_of"`
}

// QuoteCreate prices vaccines without persisting anything. A missing price is
// reported on the line, not as an error.
func QuoteCreate(svc quotes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("quote"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := parseAsOf(payload.AsOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.Quote(r.Context(), tenantID, quotes.QuoteInput{
			PriceTableID: payload.PriceTableID,
			VaccineIDs:   payload.VaccineIDs,
			AsOf:         asOf,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quotes.NewQuoteDTO(*quote))
	}
}
