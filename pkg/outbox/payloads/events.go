package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
)

// BudgetCreatedEvent announces a new quotation snapshot to downstream
// workflow (acceptance follow-up, application/dispensing).
type BudgetCreatedEvent struct {
	BudgetID         int64              `json:"budget_id"`
	TenantID         uuid.UUID          `json:"tenant_id"`
	SequentialNumber int64              `json:"sequential_number"`
	Status           enums.BudgetStatus `json:"status"`
	PatientID        *uuid.UUID         `json:"patient_id,omitempty"`
	PriceTableID     *int64             `json:"price_table_id,omitempty"`
	ItemCount        int                `json:"item_count"`
	TotalList        int64              `json:"total_list"`
	TotalDiscount    int64              `json:"total_discount"`
	TotalFinal       int64              `json:"total_final"`
	AnyMissingPrice  bool               `json:"any_missing_price"`
	ValidUntil       string             `json:"valid_until"`
	CreatedAt        time.Time          `json:"created_at"`
}
