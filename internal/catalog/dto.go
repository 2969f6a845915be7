package catalog

import (
	"time"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
)

type VaccineDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func NewVaccineDTO(v models.Vaccine) VaccineDTO {
	return VaccineDTO{ID: v.ID, Name: v.Name, CreatedAt: v.CreatedAt}
}
