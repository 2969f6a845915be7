package budgets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/internal/catalog"
	"github.com/angelmondragon/clinicvax-backend/internal/pricetables"
	"github.com/angelmondragon/clinicvax-backend/internal/quotes"
	"github.com/angelmondragon/clinicvax-backend/pkg/db"
	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/metrics"
	"github.com/angelmondragon/clinicvax-backend/pkg/outbox"
	"github.com/angelmondragon/clinicvax-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/clinicvax-backend/pkg/pagination"
	"github.com/angelmondragon/clinicvax-backend/pkg/types"
)

const (
	// ValidityDays is how long a quotation stays valid after its creation date.
	ValidityDays = 7

	defaultSequenceAttempts = 5
	maxItemsPerBudget       = 100

	sequenceConstraint = "ux_patient_budgets_tenant_number"
	// sqlite reports the column list instead of the index name.
	sequenceColumn = "patient_budgets.sequential_number"
)

var validate = validator.New()

// Service records immutable quotation snapshots.
type Service interface {
	// CreateBudget persists exactly what it is given. It never re-prices items.
	CreateBudget(ctx context.Context, tenantID uuid.UUID, input CreateInput) (*BudgetDTO, error)
	// QuoteAndCreate prices the vaccines and snapshots the result in one call.
	QuoteAndCreate(ctx context.Context, tenantID uuid.UUID, input QuoteAndCreateInput) (*BudgetDTO, error)
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (*BudgetDTO, error)
	GetByNumber(ctx context.Context, tenantID uuid.UUID, number int64) (*BudgetDTO, error)
	List(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error)
}

// PatientInput is copied by value into the budget.
type PatientInput struct {
	PatientID *uuid.UUID
	Name      string
	TaxID     string
	BirthDate time.Time
	Email     *string
	Phone     *string
}

// ItemInput is one line as quoted.
type ItemInput struct {
	VaccineID    int64
	VaccineName  string
	ListPrice    int64
	Discount     int64
	FinalPrice   int64
	CampaignID   *int64
	MissingPrice bool
}

type CreateInput struct {
	Patient      PatientInput
	Items        []ItemInput
	Status       enums.BudgetStatus
	PriceTableID *int64
	CreatedBy    *uuid.UUID
	ActorRole    string
}

type QuoteAndCreateInput struct {
	Patient      PatientInput
	PriceTableID *int64
	VaccineIDs   []int64
	AsOf         time.Time
	Status       enums.BudgetStatus
	CreatedBy    *uuid.UUID
	ActorRole    string
}

type ListParams struct {
	pagination.Params
	Status    *enums.BudgetStatus
	PatientID *uuid.UUID
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type quoter interface {
	Quote(ctx context.Context, tenantID uuid.UUID, input quotes.QuoteInput) (*quotes.Quote, error)
}

type tableLookup interface {
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (*pricetables.PriceTableDTO, error)
}

type vaccineLookup interface {
	EnsureOwned(ctx context.Context, tenantID uuid.UUID, ids []int64) error
}

type campaignLookup interface {
	Get(ctx context.Context, tenantID uuid.UUID, id int64) (*campaigns.CampaignDTO, error)
}

// ServiceParams wires the budget service.
type ServiceParams struct {
	Repository *Repository
	Tx         db.TxRunner
	Outbox     eventEmitter
	Quotes     quoter
	// Tables, Catalog and Campaigns confirm that every reference in a budget
	// belongs to the tenant.
	Tables    tableLookup
	Catalog   vaccineLookup
	Campaigns campaignLookup
	Metrics   *metrics.PricingMetrics
	Logger     *logger.Logger
	// Location decides the calendar day a budget is created on.
	Location *time.Location
	Now      func() time.Time
	// SequenceAttempts bounds retries after a sequential number collision.
	SequenceAttempts int
}

type service struct {
	repo      *Repository
	tx        db.TxRunner
	outbox    eventEmitter
	quotes    quoter
	tables    tableLookup
	catalog   vaccineLookup
	campaigns campaignLookup
	metrics   *metrics.PricingMetrics
	logg      *logger.Logger
	loc       *time.Location
	now       func() time.Time
	attempts  int
}

// NewService constructs a budget service instance.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("budget repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox required")
	}
	if params.Quotes == nil {
		return nil, fmt.Errorf("quote service required")
	}
	if params.Tables == nil {
		return nil, fmt.Errorf("price table lookup required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	if params.Campaigns == nil {
		return nil, fmt.Errorf("campaign lookup required")
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
	attempts := params.SequenceAttempts
	if attempts <= 0 {
		attempts = defaultSequenceAttempts
	}
	return &service{
		repo:      params.Repository,
		tx:        params.Tx,
		outbox:    params.Outbox,
		quotes:    params.Quotes,
		tables:    params.Tables,
		catalog:   params.Catalog,
		campaigns: params.Campaigns,
		metrics:   params.Metrics,
		logg:      params.Logger,
		loc:       loc,
		now:       now,
		attempts:  attempts,
	}, nil
}

func (s *service) CreateBudget(ctx context.Context, tenantID uuid.UUID, input CreateInput) (*BudgetDTO, error) {
	input = normalize(input)
	if err := validateCreate(input); err != nil {
		return nil, err
	}
	if input.Status == enums.BudgetStatusAccepted {
		if missing := missingPriceVaccines(input.Items); len(missing) > 0 {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "budget cannot be accepted while vaccines have no price").
				WithDetails(map[string]any{"vaccine_ids": missing})
		}
	}
	if err := s.ensureReferences(ctx, tenantID, input); err != nil {
		return nil, err
	}

	createdAt := s.now().UTC()
	createdOn := types.DateOf(createdAt, s.loc)
	validUntil := createdOn.AddDate(0, 0, ValidityDays)

	var budget *models.PatientBudget
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create budget")
		}
		budget = buildBudget(tenantID, input, createdAt, validUntil)
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.insert(ctx, tx, budget, input)
		})
		if err == nil {
			break
		}
		if !isSequenceCollision(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create budget")
		}
		if attempt >= s.attempts {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a budget number")
		}
		s.metrics.IncSequenceRetry()
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"tenant_id": tenantID.String(),
			"attempt":   attempt,
		})
		s.logg.Warn(logCtx, "budget sequential number collision; retrying")
	}

	s.metrics.IncBudgetCreated(string(budget.Status))
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"budget_id":         budget.ID,
		"sequential_number": budget.SequentialNumber,
		"status":            budget.Status,
	})
	s.logg.Info(logCtx, "budget created")

	dto := NewBudgetDTO(*budget, s.today())
	return &dto, nil
}

// ensureReferences rejects a budget pointing at another tenant's price table,
// vaccine or campaign.
func (s *service) ensureReferences(ctx context.Context, tenantID uuid.UUID, input CreateInput) error {
	if input.PriceTableID != nil {
		if _, err := s.tables.Get(ctx, tenantID, *input.PriceTableID); err != nil {
			return err
		}
	}
	vaccineIDs := make([]int64, 0, len(input.Items))
	var campaignIDs []int64
	for _, item := range input.Items {
		vaccineIDs = append(vaccineIDs, item.VaccineID)
		if item.CampaignID != nil {
			campaignIDs = append(campaignIDs, *item.CampaignID)
		}
	}
	if err := s.catalog.EnsureOwned(ctx, tenantID, catalog.Distinct(vaccineIDs)); err != nil {
		return err
	}
	for _, id := range catalog.Distinct(campaignIDs) {
		if _, err := s.campaigns.Get(ctx, tenantID, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) insert(ctx context.Context, tx *gorm.DB, budget *models.PatientBudget, input CreateInput) error {
	repo := s.repo.WithTx(tx)
	number, err := repo.NextNumber(ctx, budget.TenantID, budget.CreatedAt)
	if err != nil {
		return err
	}
	budget.SequentialNumber = number
	if err := repo.Create(ctx, budget); err != nil {
		return err
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventBudgetCreated,
		AggregateType: enums.AggregatePatientBudget,
		AggregateID:   strconv.FormatInt(budget.ID, 10),
		TenantID:      budget.TenantID,
		Actor: &outbox.ActorRef{
			UserID:   input.CreatedBy,
			TenantID: budget.TenantID,
			Role:     input.ActorRole,
		},
		Data:       budgetCreatedPayload(budget),
		Version:    1,
		OccurredAt: budget.CreatedAt,
	})
}

func (s *service) QuoteAndCreate(ctx context.Context, tenantID uuid.UUID, input QuoteAndCreateInput) (*BudgetDTO, error) {
	quote, err := s.quotes.Quote(ctx, tenantID, quotes.QuoteInput{
		PriceTableID: input.PriceTableID,
		VaccineIDs:   input.VaccineIDs,
		AsOf:         input.AsOf,
	})
	if err != nil {
		return nil, err
	}
	tableID := quote.PriceTableID
	items := make([]ItemInput, 0, len(quote.Items))
	for _, item := range quote.Items {
		items = append(items, ItemInput(item))
	}
	return s.CreateBudget(ctx, tenantID, CreateInput{
		Patient:      input.Patient,
		Items:        items,
		Status:       input.Status,
		PriceTableID: &tableID,
		CreatedBy:    input.CreatedBy,
		ActorRole:    input.ActorRole,
	})
}

func (s *service) Get(ctx context.Context, tenantID uuid.UUID, id int64) (*BudgetDTO, error) {
	budget, err := s.repo.FindByID(ctx, tenantID, id)
	return s.found(budget, err)
}

func (s *service) GetByNumber(ctx context.Context, tenantID uuid.UUID, number int64) (*BudgetDTO, error) {
	budget, err := s.repo.FindByNumber(ctx, tenantID, number)
	return s.found(budget, err)
}

func (s *service) List(ctx context.Context, tenantID uuid.UUID, params ListParams) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	if params.Status != nil && !params.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	limit := pagination.NormalizeLimit(params.Limit)
	filter := ListFilter{
		Status:    params.Status,
		PatientID: params.PatientID,
		Limit:     pagination.LimitWithBuffer(params.Limit),
	}
	if cursor != nil {
		filter.BeforeNumber = cursor.Key
	}

	rows, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list budgets")
	}

	result := &ListResult{Budgets: make([]BudgetDTO, 0, limit)}
	if len(rows) > limit {
		rows = rows[:limit]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{Key: rows[len(rows)-1].SequentialNumber})
	}
	today := s.today()
	for _, row := range rows {
		result.Budgets = append(result.Budgets, NewBudgetDTO(row, today))
	}
	return result, nil
}

func (s *service) found(budget *models.PatientBudget, err error) (*BudgetDTO, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "budget not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load budget")
	}
	dto := NewBudgetDTO(*budget, s.today())
	return &dto, nil
}

func (s *service) today() time.Time {
	return types.DateOf(s.now(), s.loc)
}

func isSequenceCollision(err error) bool {
	return db.IsUniqueViolation(err, sequenceConstraint) ||
		db.IsUniqueViolation(err, sequenceColumn) ||
		db.IsRetryableTxError(err)
}

func normalize(input CreateInput) CreateInput {
	input.Patient.Name = strings.TrimSpace(input.Patient.Name)
	input.Patient.TaxID = strings.TrimSpace(input.Patient.TaxID)
	input.Patient.Email = trimOptional(input.Patient.Email)
	input.Patient.Phone = trimOptional(input.Patient.Phone)
	if !input.Patient.BirthDate.IsZero() {
		input.Patient.BirthDate = types.DateOf(input.Patient.BirthDate, time.UTC)
	}
	input.ActorRole = strings.TrimSpace(input.ActorRole)
	items := make([]ItemInput, len(input.Items))
	for i, item := range input.Items {
		item.VaccineName = strings.TrimSpace(item.VaccineName)
		items[i] = item
	}
	input.Items = items
	return input
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func validateCreate(input CreateInput) error {
	var errs error
	if input.Patient.Name == "" {
		errs = multierr.Append(errs, pkgerrors.Field("patient.name", "required"))
	}
	if input.Patient.TaxID == "" {
		errs = multierr.Append(errs, pkgerrors.Field("patient.tax_id", "required"))
	}
	if input.Patient.BirthDate.IsZero() {
		errs = multierr.Append(errs, pkgerrors.Field("patient.birth_date", "required"))
	}
	if input.Patient.Email != nil {
		if err := validate.Var(*input.Patient.Email, "email"); err != nil {
			errs = multierr.Append(errs, pkgerrors.Field("patient.email", "invalid email"))
		}
	}
	if !input.Status.IsValid() {
		errs = multierr.Append(errs, pkgerrors.Field("status", "must be pending, accepted or rejected"))
	}
	switch {
	case len(input.Items) == 0:
		errs = multierr.Append(errs, pkgerrors.Field("items", "at least one item is required"))
	case len(input.Items) > maxItemsPerBudget:
		errs = multierr.Append(errs, pkgerrors.Field("items", fmt.Sprintf("at most %d items", maxItemsPerBudget)))
	}
	for i, item := range input.Items {
		errs = multierr.Append(errs, validateItem(i, item))
	}
	return pkgerrors.Invalid("invalid budget", errs)
}

func validateItem(i int, item ItemInput) error {
	field := func(name string) string { return fmt.Sprintf("items[%d].%s", i, name) }
	var errs error
	if item.VaccineID <= 0 {
		errs = multierr.Append(errs, pkgerrors.Field(field("vaccine_id"), "required"))
	}
	if item.VaccineName == "" {
		errs = multierr.Append(errs, pkgerrors.Field(field("vaccine_name"), "required"))
	}
	if item.MissingPrice {
		if item.ListPrice != 0 || item.Discount != 0 || item.FinalPrice != 0 || item.CampaignID != nil {
			errs = multierr.Append(errs, pkgerrors.Field(field("missing_price"), "items without a price carry no amounts"))
		}
		return errs
	}
	if item.ListPrice < 0 {
		errs = multierr.Append(errs, pkgerrors.Field(field("list_price"), "must not be negative"))
	}
	if item.Discount < 0 || item.Discount > item.ListPrice {
		errs = multierr.Append(errs, pkgerrors.Field(field("discount"), "must be between 0 and list_price"))
	}
	if item.FinalPrice != item.ListPrice-item.Discount {
		errs = multierr.Append(errs, pkgerrors.Field(field("final_price"), "must equal list_price minus discount"))
	}
	return errs
}

func missingPriceVaccines(items []ItemInput) []int64 {
	var ids []int64
	for _, item := range items {
		if item.MissingPrice {
			ids = append(ids, item.VaccineID)
		}
	}
	return ids
}

func buildBudget(tenantID uuid.UUID, input CreateInput, createdAt, validUntil time.Time) *models.PatientBudget {
	budget := &models.PatientBudget{
		TenantID:         tenantID,
		PatientID:        input.Patient.PatientID,
		PatientName:      input.Patient.Name,
		PatientTaxID:     input.Patient.TaxID,
		PatientBirthDate: input.Patient.BirthDate,
		PatientEmail:     input.Patient.Email,
		PatientPhone:     input.Patient.Phone,
		PriceTableID:     input.PriceTableID,
		ValidUntil:       validUntil,
		Status:           input.Status,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        createdAt,
		Items:            make([]models.PatientBudgetItem, 0, len(input.Items)),
	}
	for i, item := range input.Items {
		budget.Items = append(budget.Items, models.PatientBudgetItem{
			Position:     i + 1,
			VaccineID:    item.VaccineID,
			VaccineName:  item.VaccineName,
			ListPrice:    item.ListPrice,
			Discount:     item.Discount,
			FinalPrice:   item.FinalPrice,
			CampaignID:   item.CampaignID,
			MissingPrice: item.MissingPrice,
		})
		budget.TotalList += item.ListPrice
		budget.TotalDiscount += item.Discount
		budget.TotalFinal += item.FinalPrice
	}
	return budget
}

func budgetCreatedPayload(b *models.PatientBudget) payloads.BudgetCreatedEvent {
	anyMissing := false
	for _, item := range b.Items {
		anyMissing = anyMissing || item.MissingPrice
	}
	return payloads.BudgetCreatedEvent{
		BudgetID:         b.ID,
		TenantID:         b.TenantID,
		SequentialNumber: b.SequentialNumber,
		Status:           b.Status,
		PatientID:        b.PatientID,
		PriceTableID:     b.PriceTableID,
		ItemCount:        len(b.Items),
		TotalList:        b.TotalList,
		TotalDiscount:    b.TotalDiscount,
		TotalFinal:       b.TotalFinal,
		AnyMissingPrice:  anyMissing,
		ValidUntil:       types.FormatDate(b.ValidUntil),
		CreatedAt:        b.CreatedAt,
	}
}
