package models

import (
	"time"

	"github.com/google/uuid"
)

// Vaccine is the catalog entry quotes reference by id and display name.
type Vaccine struct {
	ID        int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID  uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;index:idx_vaccines_tenant"`
	Name      string    `gorm:"column:name;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
