package budgets

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
)

// nextNumberSQL bumps the per-tenant counter. The counter never falls behind
// the highest stored number, so budgets inserted without it (imports, manual
// fixes) cannot cause a permanent collision.
const nextNumberSQL = `INSERT INTO budget_sequences (tenant_id, last_number, updated_at)
VALUES (?, (SELECT COALESCE(MAX(sequential_number), 0) FROM patient_budgets WHERE tenant_id = ?) + 1, ?)
ON CONFLICT (tenant_id) DO UPDATE
SET last_number = CASE
		WHEN budget_sequences.last_number >= (SELECT COALESCE(MAX(sequential_number), 0) FROM patient_budgets WHERE tenant_id = excluded.tenant_id)
		THEN budget_sequences.last_number
		ELSE (SELECT COALESCE(MAX(sequential_number), 0) FROM patient_budgets WHERE tenant_id = excluded.tenant_id)
	END + 1,
	updated_at = excluded.updated_at
RETURNING last_number`

// Repository persists budget snapshots. Budgets are insert-only.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// NextNumber bumps the tenant counter row and returns the new value. The row
// lock taken by the upsert serializes concurrent allocations for one tenant
// until the surrounding transaction ends.
func (r *Repository) NextNumber(ctx context.Context, tenantID uuid.UUID, at time.Time) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).Raw(nextNumberSQL, tenantID, tenantID, at).Scan(&next).Error
	return next, err
}

// Create inserts the budget together with its items.
func (r *Repository) Create(ctx context.Context, budget *models.PatientBudget) error {
	return r.db.WithContext(ctx).Create(budget).Error
}

func (r *Repository) FindByID(ctx context.Context, tenantID uuid.UUID, id int64) (*models.PatientBudget, error) {
	var budget models.PatientBudget
	err := r.withItems(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&budget).Error
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

func (r *Repository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number int64) (*models.PatientBudget, error) {
	var budget models.PatientBudget
	err := r.withItems(ctx).
		Where("tenant_id = ? AND sequential_number = ?", tenantID, number).
		First(&budget).Error
	if err != nil {
		return nil, err
	}
	return &budget, nil
}

// ListFilter narrows a newest-first budget listing.
type ListFilter struct {
	Status       *enums.BudgetStatus
	PatientID    *uuid.UUID
	BeforeNumber int64
	Limit        int
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.PatientBudget, error) {
	query := r.withItems(ctx).Where("tenant_id = ?", tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PatientID != nil {
		query = query.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.BeforeNumber > 0 {
		query = query.Where("sequential_number < ?", filter.BeforeNumber)
	}
	var rows []models.PatientBudget
	err := query.Order("sequential_number DESC").Limit(filter.Limit).Find(&rows).Error
	return rows, err
}

func (r *Repository) withItems(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	})
}
