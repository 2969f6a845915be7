package quotes

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/internal/catalog"
	"github.com/angelmondragon/clinicvax-backend/internal/pricetables"
	"github.com/angelmondragon/clinicvax-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/metrics"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

const maxVaccinesPerQuote = 100

// Service prices a list of vaccines for interactive display.
type Service interface {
	Quote(ctx context.Context, tenantID uuid.UUID, input QuoteInput) (*Quote, error)
}

// QuoteInput selects what to price. A nil PriceTableID uses the tenant default;
// a zero AsOf means today.
type QuoteInput struct {
	PriceTableID *int64
	VaccineIDs   []int64
	AsOf         time.Time
}

type tableResolver interface {
	ResolveTable(ctx context.Context, tenantID uuid.UUID, pinnedID *int64) (*pricetables.PriceTableDTO, error)
}

type vaccineNames interface {
	Names(ctx context.Context, tenantID uuid.UUID, ids []int64) (map[int64]string, error)
}

type priceResolver interface {
	ResolveMany(ctx context.Context, tenantID uuid.UUID, priceTableID int64, vaccineIDs []int64, asOf time.Time) (map[int64]pricing.Resolution, error)
}

type campaignLoader interface {
	LoadActive(ctx context.Context, tenantID uuid.UUID, asOf time.Time) (*campaigns.ActiveSet, error)
}

// ServiceParams wires the quote aggregator.
type ServiceParams struct {
	Tables    tableResolver
	Catalog   vaccineNames
	Prices    priceResolver
	Campaigns campaignLoader
	Metrics   *metrics.PricingMetrics
	Logger    *logger.Logger
	Location  *time.Location
	Now       func() time.Time
}

type service struct {
	tables    tableResolver
	catalog   vaccineNames
	prices    priceResolver
	campaigns campaignLoader
	metrics   *metrics.PricingMetrics
	logg      *logger.Logger
	loc       *time.Location
	now       func() time.Time
}

// NewService constructs a quote aggregator.
func NewService(params ServiceParams) (Service, error) {
	if params.Tables == nil {
		return nil, fmt.Errorf("price table registry required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Prices == nil {
		return nil, fmt.Errorf("price resolver required")
	}
	if params.Campaigns == nil {
		return nil, fmt.Errorf("campaign matcher required")
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
		tables:    params.Tables,
		catalog:   params.Catalog,
		prices:    params.Prices,
		campaigns: params.Campaigns,
		metrics:   params.Metrics,
		logg:      params.Logger,
		loc:       loc,
		now:       now,
	}, nil
}

func (s *service) Quote(ctx context.Context, tenantID uuid.UUID, input QuoteInput) (*Quote, error) {
	start := s.now()
	quote, err := s.quote(ctx, tenantID, input)
	result := metrics.QuoteComplete
	switch {
	case err != nil:
		result = metrics.QuoteError
	case quote.AnyMissingPrice:
		result = metrics.QuoteMissingPrice
	}
	s.metrics.ObserveQuote(result, s.now().Sub(start))
	return quote, err
}

func (s *service) quote(ctx context.Context, tenantID uuid.UUID, input QuoteInput) (*Quote, error) {
	if len(input.VaccineIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one vaccine is required").
			WithDetails(map[string]string{"vaccine_ids": "required"})
	}
	if len(input.VaccineIDs) > maxVaccinesPerQuote {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "at most %d vaccines per quote", maxVaccinesPerQuote).
			WithDetails(map[string]string{"vaccine_ids": "too many"})
	}

	table, err := s.tables.ResolveTable(ctx, tenantID, input.PriceTableID)
	if err != nil {
		return nil, err
	}

	names, err := s.catalog.Names(ctx, tenantID, input.VaccineIDs)
	if err != nil {
		return nil, err
	}
	if missing := catalog.Missing(input.VaccineIDs, names); len(missing) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vaccine not found").
			WithDetails(map[string]any{"vaccine_ids": missing})
	}

	asOf := types.DateOf(input.AsOf, input.AsOf.Location())
	if input.AsOf.IsZero() {
		asOf = types.DateOf(s.now(), s.loc)
	}

	prices, err := s.prices.ResolveMany(ctx, tenantID, table.ID, input.VaccineIDs, asOf)
	if err != nil {
		return nil, err
	}
	active, err := s.campaigns.LoadActive(ctx, tenantID, asOf)
	if err != nil {
		return nil, err
	}

	quote := newQuote(table.ID, asOf, assemble(input.VaccineIDs, names, prices, active))
	if quote.AnyMissingPrice {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"price_table_id": table.ID,
			"as_of":          types.FormatDate(asOf),
		}), "quote has vaccines without a price")
	}
	return quote, nil
}
