package pricetables

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
)

// Repository persists price tables.
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

func (r *Repository) Create(ctx context.Context, table *models.PriceTable) error {
	return r.db.WithContext(ctx).Create(table).Error
}

// Save writes name and active. The default flag only moves through
// ClearDefault/MarkDefault.
func (r *Repository) Save(ctx context.Context, table *models.PriceTable) error {
	return r.db.WithContext(ctx).
		Model(&models.PriceTable{}).
		Where("tenant_id = ? AND id = ?", table.TenantID, table.ID).
		Updates(map[string]any{
			"name":       table.Name,
			"active":     table.Active,
			"updated_at": table.UpdatedAt,
		}).Error
}

func (r *Repository) FindByID(ctx context.Context, tenantID uuid.UUID, id int64) (*models.PriceTable, error) {
	var table models.PriceTable
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

// FindDefault returns gorm.ErrRecordNotFound when the tenant has no default.
func (r *Repository) FindDefault(ctx context.Context, tenantID uuid.UUID) (*models.PriceTable, error) {
	var table models.PriceTable
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		First(&table).Error
	if err != nil {
		return nil, err
	}
	return &table, nil
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.PriceTable, error) {
	var rows []models.PriceTable
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("is_default DESC").
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) ClearDefault(ctx context.Context, tenantID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.PriceTable{}).
		Where("tenant_id = ? AND is_default = ?", tenantID, true).
		Update("is_default", false).Error
}

func (r *Repository) MarkDefault(ctx context.Context, tenantID uuid.UUID, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.PriceTable{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("is_default", true).Error
}
