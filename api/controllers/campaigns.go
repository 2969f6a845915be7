package controllers

import (
	"math"
	"net/http"
	"strings"

	"github.com/angelmondragon/clinicvax-backend/api/responses"
	"github.com/angelmondragon/clinicvax-backend/api/validators"
	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
)

type campaignRequest struct {
	Name          string  `json:"name" validate:"required,max=160"`
	DiscountKind  string  `json:"discount_kind" validate:"required"`
	DiscountValue int64   `json:"discount_value" validate:"gte=0"`
	VaccineIDs    []int64 `json:"vaccine_ids" validate:"omitempty,dive,gt=0"`
	StartDate     string  `json:"start_date" validate:"required"`
	EndDate       *string `json:"end_date"`
	Active        *bool   `json:"active"`
}

func (p campaignRequest) toInput() (campaigns.CampaignInput, error) {
	kind, err := enums.ParseDiscountKind(strings.TrimSpace(p.DiscountKind))
	if err != nil {
		return campaigns.CampaignInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount kind").
			WithDetails(map[string]string{"discount_kind": "must be percent or fixed_amount"})
	}
	start, err := parseDateField("start_date", p.StartDate)
	if err != nil {
		return campaigns.CampaignInput{}, err
	}
	end, err := parseOptionalDateField("end_date", p.EndDate)
	if err != nil {
		return campaigns.CampaignInput{}, err
	}
	active := true
	if p.Active != nil {
		active = *p.Active
	}
	return campaigns.CampaignInput{
		Name:          validators.SanitizeString(p.Name, 160),
		DiscountKind:  kind,
		DiscountValue: p.DiscountValue,
		VaccineIDs:    p.VaccineIDs,
		StartDate:     start,
		EndDate:       end,
		Active:        active,
	}, nil
}

func decodeCampaign(r *http.Request) (campaigns.CampaignInput, error) {
	var payload campaignRequest
	if err := validators.DecodeJSONBody(r, &payload); err != nil {
		return campaigns.CampaignInput{}, err
	}
	return payload.toInput()
}

func CampaignCreate(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("campaign"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := decodeCampaign(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Create(r.Context(), tenantID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, campaign)
	}
}

// CampaignUpdate replaces the whole campaign definition.
func CampaignUpdate(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("campaign"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathID(r, "campaignID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := decodeCampaign(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Update(r.Context(), tenantID, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

func CampaignGet(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("campaign"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathID(r, "campaignID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		campaign, err := svc.Get(r.Context(), tenantID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, campaign)
	}
}

// CampaignList returns the tenant's campaigns; ?active=true limits the list to
// active ones.
func CampaignList(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("campaign"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		activeOnly, err := validators.ParseQueryBool(r, "active", false)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		list, err := svc.List(r.Context(), tenantID, activeOnly)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"campaigns": list})
	}
}

func CampaignDelete(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("campaign"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathID(r, "campaignID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), tenantID, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CampaignBestDiscount previews which campaign would discount a vaccine at a
// given list price. matched=false means no campaign applies.
func CampaignBestDiscount(svc campaigns.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("campaign"))
			return
		}
		tenantID, err := tenantFrom(r)
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
		listPrice, err := validators.ParseQueryInt(r, "list_price", 0, 0, math.MaxInt32)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		asOf, err := parseAsOf(optionalQuery(r, "as_of"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		match, ok, err := svc.BestDiscount(r.Context(), tenantID, *vaccineID, asOf, int64(listPrice))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		payload := map[string]any{"matched": ok}
		if ok {
			payload["campaign_id"] = match.CampaignID
			payload["discount_minor_units"] = match.DiscountMinorUnits
		}
		responses.WriteSuccess(w, payload)
	}
}
