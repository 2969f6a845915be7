package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
)

// PriceCampaign is a time-bounded discount. A campaign without vaccine rows
// applies to every vaccine of the tenant.
type PriceCampaign struct {
	ID            int64                  `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID      uuid.UUID              `gorm:"column:tenant_id;type:uuid;not null;index:idx_price_campaigns_tenant"`
	Name          string                 `gorm:"column:name;not null"`
	DiscountKind  enums.DiscountKind     `gorm:"column:discount_kind;type:text;not null"`
	DiscountValue int64                  `gorm:"column:discount_value;not null"`
	StartDate     time.Time              `gorm:"column:start_date;type:date;not null"`
	EndDate       *time.Time             `gorm:"column:end_date;type:date"`
	Active        bool                   `gorm:"column:active;not null"`
	Vaccines      []PriceCampaignVaccine `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// PriceCampaignVaccine scopes a campaign to one vaccine.
type PriceCampaignVaccine struct {
	CampaignID int64 `gorm:"column:campaign_id;primaryKey"`
	VaccineID  int64 `gorm:"column:vaccine_id;primaryKey"`
}

// VaccineIDs flattens the scope rows.
func (c PriceCampaign) VaccineIDs() []int64 {
	ids := make([]int64, 0, len(c.Vaccines))
	for _, v := range c.Vaccines {
		ids = append(ids, v.VaccineID)
	}
	return ids
}
