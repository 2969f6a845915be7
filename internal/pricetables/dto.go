package pricetables

import (
	"time"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
)

type PriceTableDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	IsDefault bool      `json:"is_default"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewPriceTableDTO(t models.PriceTable) PriceTableDTO {
	return PriceTableDTO{
		ID:        t.ID,
		Name:      t.Name,
		IsDefault: t.IsDefault,
		Active:    t.Active,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
