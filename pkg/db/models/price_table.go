package models

import (
	"time"

	"github.com/google/uuid"
)

// PriceTable is a named, tenant-scoped set of vaccine prices. At most one row
// per tenant carries IsDefault.
type PriceTable struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index:idx_price_tables_tenant;uniqueIndex:ux_price_tables_tenant_default,where:is_default = true"`
	Name      string    `gorm:"column:name;not null"`
	IsDefault bool      `gorm:"column:is_default;not null"`
	Active    bool      `gorm:"column:active;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
