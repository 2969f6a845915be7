package campaigns

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/internal/catalog"
	"github.com/angelmondragon/clinicvax-backend/pkg/db"
	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

const maxNameLength = 160

// Service matches discount campaigns and manages their lifecycle.
type Service interface {
	// BestDiscount picks the campaign granting the largest discount on the
	// vaccine at asOf. ok is false when no campaign applies; that is never an
	// error. A vaccine outside the tenant's catalog is NOT_FOUND.
	BestDiscount(ctx context.Context, tenantID uuid.UUID, vaccineID int64, asOf time.Time, listPrice int64) (match Match, ok bool, err error)
	LoadActive(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*ActiveSet, error)
	Create(ctx context.Context, tenantID uuid.UUID, input CampaignInput) (*CampaignDTO, error)
	Update(ctx context.Context, tenantID uuid.UUID, id int64, input CampaignInput) (*CampaignDTO, error)
	Delete(ctx context.Context, tenantID uuid.UUID, id int64) error
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (*CampaignDTO, error)
	List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]CampaignDTO, error)
}

// CampaignInput is the full campaign definition. An empty VaccineIDs list
// means every vaccine of the tenant.
type CampaignInput struct {
	Name          string
	DiscountKind  enums.DiscountKind
	DiscountValue int64
	VaccineIDs    []int64
	StartDate     time.Time
	EndDate       *time.Time
	Active        bool
}

type vaccineLookup interface {
	EnsureOwned(ctx context.Context, tenantID uuid.UUID, ids []int64) error
}

type service struct {
	repo    *Repository
	tx      db.TxRunner
	catalog vaccineLookup
	loc     *time.Location
	now     func() time.Time
}

// ServiceParams wires the campaign service.
type ServiceParams struct {
	Repository *Repository
	Tx         db.TxRunner
	Catalog    vaccineLookup
	// Location decides which calendar day a zero asOf refers to.
	Location *time.Location
	Now      func() time.Time
}

// NewService constructs a campaign service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("campaign repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	loc := params.Location
	if loc == nil {
		loc = time.UTC
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		repo:    params.Repository,
		tx:      params.Tx,
		catalog: params.Catalog,
		loc:     loc,
		now:     now,
	}, nil
}

func (s *service) BestDiscount(ctx context.Context, tenantID uuid.UUID, vaccineID int64, asOf time.Time, listPrice int64) (Match, bool, error) {
	if err := s.catalog.EnsureOwned(ctx, tenantID, []int64{vaccineID}); err != nil {
		return Match{}, false, err
	}
	set, err := s.LoadActive(ctx, tenantID, asOf)
	if err != nil {
		return Match{}, false, err
	}
	match, ok := set.Best(vaccineID, listPrice)
	return match, ok, nil
}

func (s *service) LoadActive(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*ActiveSet, error) {
	day := s.asOfDay(asOf)
	rows, err := s.repo.FindActive(ctx, tenantID, day)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active campaigns")
	}
	set := &ActiveSet{AsOf: day, Candidates: make([]Candidate, 0, len(rows))}
	for _, row := range rows {
		candidate, err := candidateFrom(row)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "decode campaign")
		}
		set.Candidates = append(set.Candidates, candidate)
	}
	return set, nil
}

func (s *service) Create(ctx context.Context, tenantID uuid.UUID, input CampaignInput) (*CampaignDTO, error) {
	input, err := s.prepare(ctx, tenantID, input)
	if err != nil {
		return nil, err
	}
	campaign := &models.PriceCampaign{TenantID: tenantID}
	applyInput(campaign, input)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if err := txRepo.Create(ctx, campaign); err != nil {
			return err
		}
		return txRepo.ReplaceVaccines(ctx, campaign.ID, input.VaccineIDs)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create campaign")
	}
	return s.Get(ctx, tenantID, campaign.ID)
}

// Update replaces the campaign definition. Budgets already created keep the
// discounts they were quoted with.
func (s *service) Update(ctx context.Context, tenantID uuid.UUID, id int64, input CampaignInput) (*CampaignDTO, error) {
	input, err := s.prepare(ctx, tenantID, input)
	if err != nil {
		return nil, err
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		campaign, err := load(ctx, txRepo, tenantID, id)
		if err != nil {
			return err
		}
		applyInput(campaign, input)
		campaign.UpdatedAt = s.now().UTC()
		if err := txRepo.Save(ctx, campaign); err != nil {
			return err
		}
		return txRepo.ReplaceVaccines(ctx, campaign.ID, input.VaccineIDs)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update campaign")
	}
	return s.Get(ctx, tenantID, id)
}

func (s *service) Delete(ctx context.Context, tenantID uuid.UUID, id int64) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.repo.WithTx(tx)
		if _, err := load(ctx, txRepo, tenantID, id); err != nil {
			return err
		}
		return txRepo.Delete(ctx, tenantID, id)
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete campaign")
	}
	return nil
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (*CampaignDTO, error) {
	campaign, err := load(ctx, s.repo, tenantID, id)
	if err != nil {
		return nil, err
	}
	dto := NewCampaignDTO(*campaign)
	return &dto, nil
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, activeOnly bool) ([]CampaignDTO, error) {
	rows, err := s.repo.ListByTenant(ctx, tenantID, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list campaigns")
	}
	out := make([]CampaignDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewCampaignDTO(row))
	}
	return out, nil
}

func (s *service) prepare(ctx context.Context, tenantID uuid.UUID, input CampaignInput) (CampaignInput, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.VaccineIDs = catalog.Distinct(input.VaccineIDs)
	if !input.StartDate.IsZero() {
		input.StartDate = types.DateOf(input.StartDate, time.UTC)
	}
	if input.EndDate != nil {
		end := types.DateOf(*input.EndDate, time.UTC)
		input.EndDate = &end
	}
	if err := validateInput(input); err != nil {
		return input, err
	}
	if len(input.VaccineIDs) > 0 {
		if err := s.catalog.EnsureOwned(ctx, tenantID, input.VaccineIDs); err != nil {
			return input, err
		}
	}
	return input, nil
}

func (s *service) asOfDay(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return types.DateOf(s.now(), s.loc)
	}
	return types.DateOf(asOf, asOf.Location())
}

func validateInput(input CampaignInput) error {
	var errs error
	if input.Name == "" {
		errs = multierr.Append(errs, pkgerrors.Field("name", "required"))
	} else if len(input.Name) > maxNameLength {
		errs = multierr.Append(errs, pkgerrors.Field("name", fmt.Sprintf("must be at most %d characters", maxNameLength)))
	}
	switch input.DiscountKind {
	case enums.DiscountPercent:
		if input.DiscountValue < 0 || input.DiscountValue > 100 {
			errs = multierr.Append(errs, pkgerrors.Field("discount_value", "percent must be between 0 and 100"))
		}
	case enums.DiscountFixedAmount:
		if input.DiscountValue < 0 {
			errs = multierr.Append(errs, pkgerrors.Field("discount_value", "amount must not be negative"))
		}
	default:
		errs = multierr.Append(errs, pkgerrors.Field("discount_kind", "must be percent or fixed_amount"))
	}
	if input.StartDate.IsZero() {
		errs = multierr.Append(errs, pkgerrors.Field("start_date", "required"))
	} else if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		errs = multierr.Append(errs, pkgerrors.Field("end_date", "must not be before start_date"))
	}
	for _, id := range input.VaccineIDs {
		if id <= 0 {
			errs = multierr.Append(errs, pkgerrors.Field("vaccine_ids", "ids must be positive"))
			break
		}
	}
	return pkgerrors.Invalid("invalid campaign", errs)
}

func applyInput(campaign *models.PriceCampaign, input CampaignInput) {
	campaign.Name = input.Name
	campaign.DiscountKind = input.DiscountKind
	campaign.DiscountValue = input.DiscountValue
	campaign.StartDate = input.StartDate
	campaign.EndDate = input.EndDate
	campaign.Active = input.Active
}

func candidateFrom(row models.PriceCampaign) (Candidate, error) {
	rule, err := RuleFor(row.DiscountKind, row.DiscountValue)
	if err != nil {
		return Candidate{}, fmt.Errorf("campaign %d: %w", row.ID, err)
	}
	candidate := Candidate{ID: row.ID, Rule: rule}
	if len(row.Vaccines) > 0 {
		candidate.VaccineIDs = make(map[int64]struct{}, len(row.Vaccines))
		for _, v := range row.Vaccines {
			candidate.VaccineIDs[v.VaccineID] = struct{}{}
		}
	}
	return candidate, nil
}

func load(ctx context.Context, repo *Repository, tenantID uuid.UUID, id int64) (*models.PriceCampaign, error) {
	campaign, err := repo.FindByID(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load campaign")
	}
	return campaign, nil
}
