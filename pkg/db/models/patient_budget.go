package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
)

// PatientBudget is an immutable quotation snapshot. Rows are inserted once
// and never updated.
type PatientBudget struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TenantID         uuid.UUID `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_patient_budgets_tenant_number,priority:1"`
	SequentialNumber int64     `gorm:"column:sequential_number;not null;uniqueIndex:ux_patient_budgets_tenant_number,priority:2"`

	PatientID        *uuid.UUID `gorm:"column:patient_id;type:uuid"`
	PatientName      string     `gorm:"column:patient_name;not null"`
	PatientTaxID     string     `gorm:"column:patient_tax_id;not null"`
	PatientBirthDate time.Time  `gorm:"column:patient_birth_date;type:date;not null"`
	PatientEmail     *string    `gorm:"column:patient_email"`
	PatientPhone     *string    `gorm:"column:patient_phone"`

	PriceTableID  *int64             `gorm:"column:price_table_id"`
	TotalList     int64              `gorm:"column:total_list;not null"`
	TotalDiscount int64              `gorm:"column:total_discount;not null"`
	TotalFinal    int64              `gorm:"column:total_final;not null"`
	ValidUntil    time.Time          `gorm:"column:valid_until;type:date;not null"`
	Status        enums.BudgetStatus `gorm:"column:status;type:text;not null"`
	CreatedBy     *uuid.UUID         `gorm:"column:created_by;type:uuid"`
	CreatedAt     time.Time          `gorm:"column:created_at;not null"`

	Items []PatientBudgetItem `gorm:"foreignKey:BudgetID"`
}

// PatientBudgetItem is one quoted line, copied by value.
type PatientBudgetItem struct {
	ID           int64  `gorm:"column:id;primaryKey;autoIncrement"`
	BudgetID     int64  `gorm:"column:budget_id;not null;index:idx_patient_budget_items_budget"`
	Position     int    `gorm:"column:position;not null"`
	VaccineID    int64  `gorm:"column:vaccine_id;not null"`
	VaccineName  string `gorm:"column:vaccine_name;not null"`
	ListPrice    int64  `gorm:"column:list_price;not null"`
	Discount     int64  `gorm:"column:discount;not null"`
	FinalPrice   int64  `gorm:"column:final_price;not null"`
	CampaignID   *int64 `gorm:"column:campaign_id"`
	MissingPrice bool   `gorm:"column:missing_price;not null"`
}

// BudgetSequence is the per-tenant counter backing sequential numbers.
type BudgetSequence struct {
	TenantID   uuid.UUID `gorm:"column:tenant_id;type:uuid;primaryKey"`
	LastNumber int64     `gorm:"column:last_number;not null"`
	UpdatedAt  time.Time `gorm:"column:updated_at;not null"`
}
