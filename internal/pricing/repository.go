package pricing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
)

// Repository persists vaccine price versions.
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

func (r *Repository) Create(ctx context.Context, price *models.VaccinePrice) error {
	return r.db.WithContext(ctx).Create(price).Error
}

func (r *Repository) FindByID(ctx context.Context, tenantID uuid.UUID, id int64) (*models.VaccinePrice, error) {
	var price models.VaccinePrice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&price).Error
	if err != nil {
		return nil, err
	}
	return &price, nil
}

func (r *Repository) Deactivate(ctx context.Context, tenantID uuid.UUID, id int64) error {
	return r.db.WithContext(ctx).
		Model(&models.VaccinePrice{}).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Update("active", false).Error
}

// FindEffective returns every active row of the table whose validity window
// contains asOf, for the given vaccines.
func (r *Repository) FindEffective(ctx context.Context, tenantID uuid.UUID, tableID int64, vaccineIDs []int64, asOf time.Time) ([]models.VaccinePrice, error) {
	if len(vaccineIDs) == 0 {
		return nil, nil
	}
	var rows []models.VaccinePrice
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND price_table_id = ? AND vaccine_id IN ?", tenantID, tableID, vaccineIDs).
		Where("active = ?", true).
		Where("start_date <= ?", asOf).
		Where("(end_date IS NULL OR end_date >= ?)", asOf).
		Order("vaccine_id ASC").
		Order("start_date DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}

// FindOverlapping lists active rows for (table, vaccine) whose window
// intersects [start, end]. A nil end is open-ended.
func (r *Repository) FindOverlapping(ctx context.Context, tenantID uuid.UUID, tableID, vaccineID int64, start time.Time, end *time.Time) ([]models.VaccinePrice, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND price_table_id = ? AND vaccine_id = ?", tenantID, tableID, vaccineID).
		Where("active = ?", true).
		Where("(end_date IS NULL OR end_date >= ?)", start)
	if end != nil {
		query = query.Where("start_date <= ?", *end)
	}
	var rows []models.VaccinePrice
	err := query.Order("start_date ASC").Order("id ASC").Find(&rows).Error
	return rows, err
}

func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, tableID int64, vaccineID *int64) ([]models.VaccinePrice, error) {
	query := r.db.WithContext(ctx).
		Where("tenant_id = ? AND price_table_id = ?", tenantID, tableID)
	if vaccineID != nil {
		query = query.Where("vaccine_id = ?", *vaccineID)
	}
	var rows []models.VaccinePrice
	err := query.
		Order("vaccine_id ASC").
		Order("start_date DESC").
		Order("id DESC").
		Find(&rows).Error
	return rows, err
}
