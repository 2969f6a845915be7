package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
)

// Repository reads and writes the tenant vaccine catalog.
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

func (r *Repository) Create(ctx context.Context, vaccine *models.Vaccine) error {
	return r.db.WithContext(ctx).Create(vaccine).Error
}

func (r *Repository) FindByID(ctx context.Context, tenantID uuid.UUID, id int64) (*models.Vaccine, error) {
	var vaccine models.Vaccine
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&vaccine).Error
	if err != nil {
		return nil, err
	}
	return &vaccine, nil
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID) ([]models.Vaccine, error) {
	var rows []models.Vaccine
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("name ASC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

// FindByIDs returns the subset of ids that belong to the tenant.
func (r *Repository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []int64) ([]models.Vaccine, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Vaccine
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Find(&rows).Error
	return rows, err
}
