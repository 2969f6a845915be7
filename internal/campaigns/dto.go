package campaigns

import (
	"time"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

type CampaignDTO struct {
	ID            int64              `json:"id"`
	Name          string             `json:"name"`
	DiscountKind  enums.DiscountKind `json:"discount_kind"`
	DiscountValue int64              `json:"discount_value"`
	VaccineIDs    []int64            `json:"vaccine_ids"`
	StartDate     string             `json:"start_date"`
	EndDate       *string            `json:"end_date"`
	Active        bool               `json:"active"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

func NewCampaignDTO(c models.PriceCampaign) CampaignDTO {
	return CampaignDTO{
		ID:            c.ID,
		Name:          c.Name,
		DiscountKind:  c.DiscountKind,
		DiscountValue: c.DiscountValue,
		VaccineIDs:    c.VaccineIDs(),
		StartDate:     types.FormatDate(c.StartDate),
		EndDate:       types.FormatOptionalDate(c.EndDate),
		Active:        c.Active,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}
