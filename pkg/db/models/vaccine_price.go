package models

import (
	"time"

	"github.com/google/uuid"
)

// VaccinePrice is one dated version of a vaccine's list price inside a table.
// A nil EndDate means the price is open-ended.
type VaccinePrice struct {
	ID              int64      `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID        uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null"`
	PriceTableID    int64      `gorm:"column:price_table_id;not null;index:idx_vaccine_prices_lookup,priority:1"`
	VaccineID       int64      `gorm:"column:vaccine_id;not null;index:idx_vaccine_prices_lookup,priority:2"`
	PriceMinorUnits int64      `gorm:"column:price_minor_units;not null"`
	StartDate       time.Time  `gorm:"column:start_date;type:date;not null"`
	EndDate         *time.Time `gorm:"column:end_date;type:date"`
	Active          bool       `gorm:"column:active;not null"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
