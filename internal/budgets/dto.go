package budgets

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

type PatientSnapshotDTO struct {
	PatientID *uuid.UUID `json:"patient_id"`
	Name      string     `json:"name"`
	TaxID     string     `json:"tax_id"`
	BirthDate string     `json:"birth_date"`
	Email     *string    `json:"email"`
	Phone     *string    `json:"phone"`
}

type BudgetItemDTO struct {
	VaccineID    int64  `json:"vaccine_id"`
	VaccineName  string `json:"vaccine_name"`
	ListPrice    int64  `json:"list_price"`
	Discount     int64  `json:"discount"`
	FinalPrice   int64  `json:"final_price"`
	CampaignID   *int64 `json:"campaign_id"`
	MissingPrice bool   `json:"missing_price"`
}

type BudgetDTO struct {
	ID               int64              `json:"id"`
	SequentialNumber int64              `json:"sequential_number"`
	Patient          PatientSnapshotDTO `json:"patient"`
	PriceTableID     *int64             `json:"price_table_id"`
	Items            []BudgetItemDTO    `json:"items"`
	TotalList        int64              `json:"total_list"`
	TotalDiscount    int64              `json:"total_discount"`
	TotalFinal       int64              `json:"total_final"`
	AnyMissingPrice  bool               `json:"any_missing_price"`
	ValidUntil       string             `json:"valid_until"`
	// Expired is informational; no status change happens on expiry.
	Expired   bool               `json:"expired"`
	Status    enums.BudgetStatus `json:"status"`
	CreatedBy *uuid.UUID         `json:"created_by"`
	CreatedAt time.Time          `json:"created_at"`
}

type ListResult struct {
	Budgets    []BudgetDTO `json:"budgets"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

// NewBudgetDTO renders a stored budget. today is the caller's current calendar
// date and only feeds the Expired flag.
func NewBudgetDTO(b models.PatientBudget, today time.Time) BudgetDTO {
	items := make([]BudgetItemDTO, 0, len(b.Items))
	anyMissing := false
	for _, item := range b.Items {
		items = append(items, BudgetItemDTO{
			VaccineID:    item.VaccineID,
			VaccineName:  item.VaccineName,
			ListPrice:    item.ListPrice,
			Discount:     item.Discount,
			FinalPrice:   item.FinalPrice,
			CampaignID:   item.CampaignID,
			MissingPrice: item.MissingPrice,
		})
		anyMissing = anyMissing || item.MissingPrice
	}
	validUntil := types.DateOf(b.ValidUntil, time.UTC)
	return BudgetDTO{
		ID:               b.ID,
		SequentialNumber: b.SequentialNumber,
		Patient: PatientSnapshotDTO{
			PatientID: b.PatientID,
			Name:      b.PatientName,
			TaxID:     b.PatientTaxID,
			BirthDate: types.FormatDate(b.PatientBirthDate),
			Email:     b.PatientEmail,
			Phone:     b.PatientPhone,
		},
		PriceTableID:    b.PriceTableID,
		Items:           items,
		TotalList:       b.TotalList,
		TotalDiscount:   b.TotalDiscount,
		TotalFinal:      b.TotalFinal,
		AnyMissingPrice: anyMissing,
		ValidUntil:      types.FormatDate(validUntil),
		Expired:         validUntil.Before(today),
		Status:          b.Status,
		CreatedBy:       b.CreatedBy,
		CreatedAt:       b.CreatedAt,
	}
}
