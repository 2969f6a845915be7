package pricing

import (
	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

type VaccinePriceDTO struct {
	ID              int64   `json:"id"`
	PriceTableID    int64   `json:"price_table_id"`
	VaccineID       int64   `json:"vaccine_id"`
	PriceMinorUnits int64   `json:"price_minor_units"`
	StartDate       string  `json:"start_date"`
	EndDate         *string `json:"end_date"`
	Active          bool    `json:"active"`
	OverlapsWith    []int64 `json:"overlaps_with,omitempty"`
}

func NewVaccinePriceDTO(p models.VaccinePrice) VaccinePriceDTO {
	return VaccinePriceDTO{
		ID:              p.ID,
		PriceTableID:    p.PriceTableID,
		VaccineID:       p.VaccineID,
		PriceMinorUnits: p.PriceMinorUnits,
		StartDate:       types.FormatDate(p.StartDate),
		EndDate:         types.FormatOptionalDate(p.EndDate),
		Active:          p.Active,
	}
}
