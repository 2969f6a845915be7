package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/api/middleware"
	"github.com/angelmondragon/clinicvax-backend/api/responses"
	"github.com/angelmondragon/clinicvax-backend/api/validators"
	"github.com/angelmondragon/clinicvax-backend/internal/budgets"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/pagination"
)

type patientRequest struct {
	PatientID *uuid.UUID `json:"patient_id"`
	Name      string     `json:"name" validate:"required,max=200"`
	TaxID     string     `json:"tax_id" validate:"required,max=64"`
	BirthDate string     `json:"birth_date" validate:"required"`
	Email     *string    `json:"email" validate:"omitempty,email"`
	Phone     *string    `json:"phone" validate:"omitempty,max=32"`
}

func (p patientRequest) toInput() (budgets.PatientInput, error) {
	birth, err := parseDateField("patient.birth_date", p.BirthDate)
	if err != nil {
		return budgets.PatientInput{}, err
	}
	return budgets.PatientInput{
		PatientID: p.PatientID,
		Name:      validators.SanitizeString(p.Name, 200),
		TaxID:     validators.SanitizeString(p.TaxID, 64),
		BirthDate: birth,
		Email:     p.Email,
		Phone:     p.Phone,
	}, nil
}

type budgetItemRequest struct {
	VaccineID    int64  `json:"vaccine_id"`
	VaccineName  string `json:"vaccine_name"`
	ListPrice    int64  `json:"list_price"`
	Discount     int64  `json:"discount"`
	FinalPrice   int64  `json:"final_price"`
	CampaignID   *int64 `json:"campaign_id"`
	MissingPrice bool   `json:"missing_price"`
}

// createBudgetRequest carries either the quoted items to snapshot as-is or the
// vaccine ids to price on the spot. Exactly one of the two must be present.
type createBudgetRequest struct {
	Patient      patientRequest      `json:"patient"`
	Status       string              `json:"status"`
	PriceTableID *int64              `json:"price_table_id" validate:"omitempty,gt=0"`
	Items        []budgetItemRequest `json:"items"`
	VaccineIDs   []int64             `json:"vaccine_ids" validate:"omitempty,dive,gt=0"`
	AsOf         *string             `json:"as_of"`
}

func parseStatus(raw string) (enums.BudgetStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return enums.BudgetStatusPending, nil
	}
	status, err := enums.ParseBudgetStatus(strings.ToLower(raw))
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").
			WithDetails(map[string]string{"status": "must be pending, accepted or rejected"})
	}
	return status, nil
}

// BudgetCreate records a budget snapshot for a patient.
func BudgetCreate(svc budgets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("budget"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createBudgetRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if (len(payload.Items) == 0) == (len(payload.VaccineIDs) == 0) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "provide either items or vaccine_ids").
				WithDetails(map[string]string{"items": "exactly one of items or vaccine_ids is required"}))
			return
		}
		patient, err := payload.Patient.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := parseStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		actor := actorFrom(r)
		role := middleware.RoleFromContext(r.Context())

		var budget *budgets.BudgetDTO
		if len(payload.VaccineIDs) > 0 {
			asOf, parseErr := parseAsOf(payload.AsOf)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			budget, err = svc.QuoteAndCreate(r.Context(), tenantID, budgets.QuoteAndCreateInput{
				Patient:      patient,
				PriceTableID: payload.PriceTableID,
				VaccineIDs:   payload.VaccineIDs,
				AsOf:         asOf,
				Status:       status,
				CreatedBy:    actor,
				ActorRole:    role,
			})
		} else {
			items := make([]budgets.ItemInput, 0, len(payload.Items))
			for _, item := range payload.Items {
				items = append(items, budgets.ItemInput(item))
			}
			budget, err = svc.CreateBudget(r.Context(), tenantID, budgets.CreateInput{
				Patient:      patient,
				Items:        items,
				Status:       status,
				PriceTableID: payload.PriceTableID,
				CreatedBy:    actor,
				ActorRole:    role,
			})
		}
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, budget)
	}
}

func BudgetGet(svc budgets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("budget"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		id, err := validators.ParsePathID(r, "budgetID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		budget, err := svc.Get(r.Context(), tenantID, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, budget)
	}
}

// BudgetGetByNumber looks a budget up by its tenant sequential number.
func BudgetGetByNumber(svc budgets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("budget"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		number, err := validators.ParsePathID(r, "number")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		budget, err := svc.GetByNumber(r.Context(), tenantID, number)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, budget)
	}
}

// BudgetList pages through budgets newest number first.
func BudgetList(svc budgets.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, unavailable("budget"))
			return
		}
		tenantID, err := tenantFrom(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params := budgets.ListParams{
			Params: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, parseErr := parseStatus(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, parseErr)
				return
			}
			params.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("patient_id")); raw != "" {
			patientID, parseErr := uuid.Parse(raw)
			if parseErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, parseErr, "invalid patient_id").
					WithDetails(map[string]string{"patient_id": "must be a uuid"}))
				return
			}
			params.PatientID = &patientID
		}

		result, err := svc.List(r.Context(), tenantID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
