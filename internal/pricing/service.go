package pricing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/internal/catalog"
	"github.com/angelmondragon/clinicvax-backend/internal/pricetables"
	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

// Service resolves list prices and manages price versions.
type Service interface {
	// Resolve returns the list price of one vaccine in a table at asOf. A zero
	// asOf means today. The only error for a well-formed request is NOT_FOUND
	// when the table or the vaccine belongs to another tenant.
	Resolve(ctx context.Context, tenantID uuid.UUID, priceTableID, vaccineID int64, asOf time.Time) (Resolution, error)
	// ResolveMany is Resolve for a batch, keyed by vaccine id.
	ResolveMany(ctx context.Context, tenantID uuid.UUID, priceTableID int64, vaccineIDs []int64, asOf time.Time) (map[int64]Resolution, error)
	CreatePrice(ctx context.Context, tenantID uuid.UUID, input CreatePriceInput) (*VaccinePriceDTO, error)
	DeactivatePrice(ctx context.Context, tenantID uuid.UUID, id int64) error
	ListPrices(ctx context.Context, tenantID uuid.UUID, priceTableID int64, vaccineID *int64) ([]VaccinePriceDTO, error)
}

type CreatePriceInput struct {
	PriceTableID    int64
	VaccineID       int64
	PriceMinorUnits int64
	StartDate       time.Time
	EndDate         *time.Time
}

type tableLookup interface {
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (*pricetables.PriceTableDTO, error)
}

type vaccineLookup interface {
	EnsureOwned(ctx context.Context, tenantID uuid.UUID, ids []int64) error
}

// ServiceParams wires the pricing service.
type ServiceParams struct {
	Repository *Repository
	Tables     tableLookup
	Catalog    vaccineLookup
	Logger     *logger.Logger
	// Location decides which calendar day "today" is. Defaults to UTC.
	Location *time.Location
	Now      func() time.Time
}

type service struct {
	repo    *Repository
	tables  tableLookup
	catalog vaccineLookup
	logg    *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

// NewService constructs a pricing service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("price repository required")
	}
	if params.Tables == nil {
		return nil, fmt.Errorf("price table lookup required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
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
		tables:  params.Tables,
		catalog: params.Catalog,
		logg:    params.Logger,
		loc:     loc,
		now:     now,
	}, nil
}

func (s *service) Resolve(ctx context.Context, tenantID uuid.UUID, priceTableID, vaccineID int64, asOf time.Time) (Resolution, error) {
	out, err := s.ResolveMany(ctx, tenantID, priceTableID, []int64{vaccineID}, asOf)
	if err != nil {
		return Resolution{}, err
	}
	return out[vaccineID], nil
}

func (s *service) ResolveMany(ctx context.Context, tenantID uuid.UUID, priceTableID int64, vaccineIDs []int64, asOf time.Time) (map[int64]Resolution, error) {
	if _, err := s.tables.Get(ctx, tenantID, priceTableID); err != nil {
		return nil, err
	}
	ids := catalog.Distinct(vaccineIDs)
	if err := s.catalog.EnsureOwned(ctx, tenantID, ids); err != nil {
		return nil, err
	}
	day := s.asOfDay(asOf)
	rows, err := s.repo.FindEffective(ctx, tenantID, priceTableID, ids, day)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vaccine prices")
	}
	return resolveAll(rows, ids, day), nil
}

func (s *service) CreatePrice(ctx context.Context, tenantID uuid.UUID, input CreatePriceInput) (*VaccinePriceDTO, error) {
	if err := validateCreatePrice(input); err != nil {
		return nil, err
	}
	if _, err := s.tables.Get(ctx, tenantID, input.PriceTableID); err != nil {
		return nil, err
	}
	if err := s.catalog.EnsureOwned(ctx, tenantID, []int64{input.VaccineID}); err != nil {
		return nil, err
	}

	start := types.DateOf(input.StartDate, time.UTC)
	var end *time.Time
	if input.EndDate != nil {
		e := types.DateOf(*input.EndDate, time.UTC)
		end = &e
	}

	overlapping, err := s.repo.FindOverlapping(ctx, tenantID, input.PriceTableID, input.VaccineID, start, end)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check overlapping prices")
	}

	price := &models.VaccinePrice{
		TenantID:        tenantID,
		PriceTableID:    input.PriceTableID,
		VaccineID:       input.VaccineID,
		PriceMinorUnits: input.PriceMinorUnits,
		StartDate:       start,
		EndDate:         end,
		Active:          true,
	}
	if err := s.repo.Create(ctx, price); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vaccine price")
	}

	// Overlaps are allowed; resolution picks the latest start. Surface them for
	// whoever is maintaining the table.
	overlaps := overlapIDs(overlapping)
	if len(overlaps) > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"price_id":       price.ID,
			"price_table_id": price.PriceTableID,
			"vaccine_id":     price.VaccineID,
			"overlaps":       overlaps,
		})
		s.logg.Warn(logCtx, "vaccine price window overlaps existing prices")
	}

	dto := NewVaccinePriceDTO(*price)
	dto.OverlapsWith = overlaps
	return &dto, nil
}

func (s *service) DeactivatePrice(ctx context.Context, tenantID uuid.UUID, id int64) error {
	if _, err := s.repo.FindByID(ctx, tenantID, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "vaccine price not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vaccine price")
	}
	if err := s.repo.Deactivate(ctx, tenantID, id); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate vaccine price")
	}
	return nil
}

func (s *service) ListPrices(ctx context.Context, tenantID uuid.UUID, priceTableID int64, vaccineID *int64) ([]VaccinePriceDTO, error) {
	if _, err := s.tables.Get(ctx, tenantID, priceTableID); err != nil {
		return nil, err
	}
	rows, err := s.repo.List(ctx, tenantID, priceTableID, vaccineID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list vaccine prices")
	}
	out := make([]VaccinePriceDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, NewVaccinePriceDTO(row))
	}
	return out, nil
}

func (s *service) asOfDay(asOf time.Time) time.Time {
	if asOf.IsZero() {
		return types.DateOf(s.now(), s.loc)
	}
	return types.DateOf(asOf, asOf.Location())
}

func validateCreatePrice(input CreatePriceInput) error {
	var errs error
	if input.PriceTableID <= 0 {
		errs = multierr.Append(errs, pkgerrors.Field("price_table_id", "required"))
	}
	if input.VaccineID <= 0 {
		errs = multierr.Append(errs, pkgerrors.Field("vaccine_id", "required"))
	}
	if input.PriceMinorUnits < 0 {
		errs = multierr.Append(errs, pkgerrors.Field("price_minor_units", "must not be negative"))
	}
	if input.StartDate.IsZero() {
		errs = multierr.Append(errs, pkgerrors.Field("start_date", "required"))
	}
	if input.EndDate != nil && input.EndDate.Before(input.StartDate) {
		errs = multierr.Append(errs, pkgerrors.Field("end_date", "must not be before start_date"))
	}
	return pkgerrors.Invalid("invalid vaccine price", errs)
}

func overlapIDs(rows []models.VaccinePrice) []int64 {
	if len(rows) == 0 {
		return nil
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids
}
