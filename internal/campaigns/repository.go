package campaigns

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
)

// Repository persists price campaigns and their vaccine scope.
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

func (r *Repository) Create(ctx context.Context, campaign *models.PriceCampaign) error {
	return r.db.WithContext(ctx).Omit("Vaccines").Create(campaign).Error
}

func (r *Repository) Save(ctx context.Context, campaign *models.PriceCampaign) error {
	return r.db.WithContext(ctx).
		Model(&models.PriceCampaign{}).
		Where("tenant_id = ? AND id = ?", campaign.TenantID, campaign.ID).
		Updates(map[string]any{
			"name":           campaign.Name,
			"discount_kind":  campaign.DiscountKind,
			"discount_value": campaign.DiscountValue,
			"start_date":     campaign.StartDate,
			"end_date":       campaign.EndDate,
			"active":         campaign.Active,
			"updated_at":     campaign.UpdatedAt,
		}).Error
}

// ReplaceVaccines rewrites the campaign scope.
func (r *Repository) ReplaceVaccines(ctx context.Context, campaignID int64, vaccineIDs []int64) error {
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Delete(&models.PriceCampaignVaccine{}).Error; err != nil {
		return err
	}
	if len(vaccineIDs) == 0 {
		return nil
	}
	rows := make([]models.PriceCampaignVaccine, 0, len(vaccineIDs))
	for _, id := range vaccineIDs {
		rows = append(rows, models.PriceCampaignVaccine{CampaignID: campaignID, VaccineID: id})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *Repository) Delete(ctx context.Context, tenantID uuid.UUID, id int64) error {
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", id).
		Delete(&models.PriceCampaignVaccine{}).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.PriceCampaign{}).Error
}

func (r *Repository) FindByID(ctx context.Context, tenantID uuid.UUID, id int64) (*models.PriceCampaign, error) {
	var campaign models.PriceCampaign
	err := r.db.WithContext(ctx).
		Preload("Vaccines").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&campaign).Error
	if err != nil {
		return nil, err
	}
	return &campaign, nil
}

func (r *Repository) ListByTenant(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]models.PriceCampaign, error) {
	query := r.db.WithContext(ctx).
		Preload("Vaccines").
		Where("tenant_id = ?", tenantID)
	if activeOnly {
		query = query.Where("active = ?", true)
	}
	var rows []models.PriceCampaign
	err := query.Order("start_date DESC").Order("id DESC").Find(&rows).Error
	return rows, err
}

// FindActive returns the tenant's active campaigns whose window contains asOf.
func (r *Repository) FindActive(ctx context.Context, tenantID uuid.UUID, asOf time.Time) ([]models.PriceCampaign, error) {
	var rows []models.PriceCampaign
	err := r.db.WithContext(ctx).
		Preload("Vaccines").
		Where("tenant_id = ? AND active = ?", tenantID, true).
		Where("start_date <= ?", asOf).
		Where("(end_date IS NULL OR end_date >= ?)", asOf).
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}
