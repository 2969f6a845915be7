package budgets

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/internal/catalog"
	"github.com/angelmondragon/clinicvax-backend/internal/pricetables"
	"github.com/angelmondragon/clinicvax-backend/internal/pricing"
	"github.com/angelmondragon/clinicvax-backend/internal/quotes"
	"github.com/angelmondragon/clinicvax-backend/pkg/db"
	"github.com/angelmondragon/clinicvax-backend/pkg/db/dbtest"
	"github.com/angelmondragon/clinicvax-backend/pkg/db/models"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
	"github.com/angelmondragon/clinicvax-backend/pkg/logger"
	"github.com/angelmondragon/clinicvax-backend/pkg/metrics"
	"github.com/angelmondragon/clinicvax-backend/pkg/outbox"
	"github.com/angelmondragon/clinicvax-backend/pkg/pagination"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	svc       Service
	conn      *gorm.DB
	outbox    *outbox.Repository
	catalog   catalog.Service
	tables    pricetables.Service
	prices    pricing.Service
	campaigns campaigns.Service
	registry  *prometheus.Registry
	tenant    uuid.UUID
}

type fixtureOption func(*ServiceParams)

func newFixture(t *testing.T, now time.Time, opts ...fixtureOption) fixture {
	t.Helper()
	client, conn := dbtest.Client(t)
	clock := func() time.Time { return now }
	logg := logger.Nop()

	cat, err := catalog.NewService(catalog.NewRepository(conn))
	require.NoError(t, err)
	tables, err := pricetables.NewService(pricetables.NewRepository(conn), client)
	require.NoError(t, err)
	prices, err := pricing.NewService(pricing.ServiceParams{
		Repository: pricing.NewRepository(conn), Tables: tables, Catalog: cat, Logger: logg, Now: clock,
	})
	require.NoError(t, err)
	camps, err := campaigns.NewService(campaigns.ServiceParams{
		Repository: campaigns.NewRepository(conn), Tx: client, Catalog: cat, Now: clock,
	})
	require.NoError(t, err)
	quoteSvc, err := quotes.NewService(quotes.ServiceParams{
		Tables: tables, Catalog: cat, Prices: prices, Campaigns: camps, Logger: logg, Now: clock,
	})
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	outboxRepo := outbox.NewRepository(conn)
	params := ServiceParams{
		Repository: NewRepository(conn),
		Tx:         client,
		Outbox:     outbox.NewService(outboxRepo, logg),
		Quotes:     quoteSvc,
		Tables:     tables,
		Catalog:    cat,
		Campaigns:  camps,
		Metrics:    metrics.NewPricingMetrics(reg),
		Logger:     logg,
		Now:        clock,
	}
	for _, opt := range opts {
		opt(&params)
	}
	svc, err := NewService(params)
	require.NoError(t, err)

	return fixture{
		svc: svc, conn: conn, outbox: outboxRepo, catalog: cat, tables: tables,
		prices: prices, campaigns: camps, registry: reg, tenant: uuid.New(),
	}
}

func (f fixture) vaccine(t *testing.T, tenant uuid.UUID, name string) int64 {
	t.Helper()
	v, err := f.catalog.Create(context.Background(), tenant, catalog.CreateVaccineInput{Name: name})
	require.NoError(t, err)
	return v.ID
}

func patient() PatientInput {
	email := "ana@example.com"
	return PatientInput{
		Name:      "Ana Souza",
		TaxID:     "123.456.789-00",
		BirthDate: day("1990-03-10"),
		Email:     &email,
	}
}

func pricedItem(vaccineID int64, list, discount int64) ItemInput {
	return ItemInput{
		VaccineID:   vaccineID,
		VaccineName: "Influenza",
		ListPrice:   list,
		Discount:    discount,
		FinalPrice:  list - discount,
	}
}

func TestCreateBudgetSnapshot(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 15, 18, 30, 0, 0, time.UTC)
	f := newFixture(t, now)
	createdBy := uuid.New()
	flu := f.vaccine(t, f.tenant, "Influenza")
	hpv := f.vaccine(t, f.tenant, "HPV")
	campaign, err := f.campaigns.Create(ctx, f.tenant, campaigns.CampaignInput{
		Name: "Winter", DiscountKind: enums.DiscountFixedAmount, DiscountValue: 1000,
		StartDate: day("2024-06-01"), Active: true,
	})
	require.NoError(t, err)
	campaignID := campaign.ID

	item := pricedItem(flu, 10000, 1000)
	item.CampaignID = &campaignID
	budget, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient:   patient(),
		Items:     []ItemInput{item, pricedItem(hpv, 4500, 0)},
		Status:    enums.BudgetStatusAccepted,
		CreatedBy: &createdBy,
		ActorRole: "staff",
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, budget.SequentialNumber)
	require.EqualValues(t, 14500, budget.TotalList)
	require.EqualValues(t, 1000, budget.TotalDiscount)
	require.EqualValues(t, 13500, budget.TotalFinal)
	require.Equal(t, "2024-06-22", budget.ValidUntil)
	require.False(t, budget.Expired)
	require.Equal(t, "1990-03-10", budget.Patient.BirthDate)
	require.Equal(t, enums.BudgetStatusAccepted, budget.Status)
	require.Len(t, budget.Items, 2)
	require.Equal(t, &campaignID, budget.Items[0].CampaignID)

	second, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0)},
		Status:  enums.BudgetStatusRejected,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, second.SequentialNumber)

	otherTenant := uuid.New()
	other, err := f.svc.CreateBudget(ctx, otherTenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(f.vaccine(t, otherTenant, "Influenza"), 10000, 0)},
		Status:  enums.BudgetStatusPending,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, other.SequentialNumber, "numbering is per tenant")

	events, err := f.outbox.FindByAggregate(nil, enums.AggregatePatientBudget, "1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, enums.EventBudgetCreated, events[0].EventType)
	require.Equal(t, f.tenant, events[0].TenantID)

	loaded, err := f.svc.GetByNumber(ctx, f.tenant, 1)
	require.NoError(t, err)
	require.Equal(t, budget.ID, loaded.ID)
	require.Equal(t, budget.Items, loaded.Items)

	_, err = f.svc.Get(ctx, uuid.New(), budget.ID)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestCreateBudgetValidationPersistsNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Now())

	_, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{Status: enums.BudgetStatusAccepted})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details := typed.Details().(map[string]string)
	require.Contains(t, details, "patient.name")
	require.Contains(t, details, "patient.tax_id")
	require.Contains(t, details, "patient.birth_date")
	require.Contains(t, details, "items")

	bad := pricedItem(1, 10000, 12000)
	_, err = f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(), Items: []ItemInput{bad}, Status: enums.BudgetStatusPending,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	wrongFinal := pricedItem(1, 10000, 1000)
	wrongFinal.FinalPrice = 10000
	_, err = f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(), Items: []ItemInput{wrongFinal}, Status: enums.BudgetStatusPending,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(), Items: []ItemInput{pricedItem(1, 100, 0)}, Status: enums.BudgetStatus("sent"),
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	var count int64
	require.NoError(t, f.conn.Model(&models.PatientBudget{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, f.conn.Model(&models.BudgetSequence{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestAcceptedBudgetRequiresEveryPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Now())
	flu := f.vaccine(t, f.tenant, "Influenza")
	yellowFever := f.vaccine(t, f.tenant, "Yellow fever")
	missing := ItemInput{VaccineID: yellowFever, VaccineName: "Yellow fever", MissingPrice: true}

	_, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0), missing},
		Status:  enums.BudgetStatusAccepted,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))

	budget, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0), missing},
		Status:  enums.BudgetStatusPending,
	})
	require.NoError(t, err)
	require.True(t, budget.AnyMissingPrice)
	require.EqualValues(t, 1, budget.SequentialNumber, "the rejected attempt consumed no number")
}

func TestConcurrentBudgetsGetDistinctNumbers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Now())
	flu := f.vaccine(t, f.tenant, "Influenza")
	const n = 12

	var wg sync.WaitGroup
	numbers := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			budget, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
				Patient: patient(),
				Items:   []ItemInput{pricedItem(flu, 10000, 0)},
				Status:  enums.BudgetStatusPending,
			})
			if err != nil {
				errs <- err
				return
			}
			numbers <- budget.SequentialNumber
		}()
	}
	wg.Wait()
	close(numbers)
	close(errs)
	for err := range errs {
		t.Fatalf("create budget: %v", err)
	}

	var got []int64
	for number := range numbers {
		got = append(got, number)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	require.Len(t, got, n)
	for i, number := range got {
		require.EqualValues(t, i+1, number)
	}
}

func TestCounterCatchesUpWithStoredNumbers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Now())
	flu := f.vaccine(t, f.tenant, "Influenza")

	imported := &models.PatientBudget{
		TenantID:         f.tenant,
		SequentialNumber: 41,
		PatientName:      "Imported",
		PatientTaxID:     "000",
		PatientBirthDate: day("1980-01-01"),
		ValidUntil:       day("2020-01-08"),
		Status:           enums.BudgetStatusRejected,
		CreatedAt:        day("2020-01-01"),
	}
	require.NoError(t, f.conn.Create(imported).Error)

	budget, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0)},
		Status:  enums.BudgetStatusPending,
	})
	require.NoError(t, err)
	require.EqualValues(t, 42, budget.SequentialNumber)

	old, err := f.svc.GetByNumber(ctx, f.tenant, 41)
	require.NoError(t, err)
	require.True(t, old.Expired)
}

// flakyTx fails the first failures transactions with a sequence collision.
type flakyTx struct {
	inner    db.TxRunner
	mu       sync.Mutex
	failures int
	calls    int
}

func (f *flakyTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls <= f.failures
	f.mu.Unlock()
	if fail {
		return errors.New("UNIQUE constraint failed: patient_budgets.tenant_id, patient_budgets.sequential_number")
	}
	return f.inner.WithTx(ctx, fn)
}

func TestSequenceCollisionIsRetried(t *testing.T) {
	ctx := context.Background()
	var flaky *flakyTx
	f := newFixture(t, time.Now(), func(p *ServiceParams) {
	flu := f.vaccine(t, f.tenant, "Influenza")
		flaky = &flakyTx{inner: p.Tx, failures: 2}
		p.Tx = flaky
	})

	budget, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0)},
		Status:  enums.BudgetStatusPending,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, budget.SequentialNumber)
	require.Equal(t, 3, flaky.calls)

	mfs, err := f.registry.Gather()
	require.NoError(t, err)
	var retries float64
	for _, mf := range mfs {
		if mf.GetName() == "clinicvax_budget_sequence_retries_total" {
			retries = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	require.EqualValues(t, 2, retries)
}

func TestSequenceAttemptsExhausted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Now(), func(p *ServiceParams) {
	flu := f.vaccine(t, f.tenant, "Influenza")
		p.Tx = &flakyTx{inner: p.Tx, failures: 100}
		p.SequenceAttempts = 3
	})

	_, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0)},
		Status:  enums.BudgetStatusPending,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
}

func TestBudgetIsImmutableAfterPricingChanges(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day("2024-06-15").Add(10*time.Hour))

	table, err := f.tables.Create(ctx, f.tenant, pricetables.CreateTableInput{Name: "Private", IsDefault: true, Active: true})
	require.NoError(t, err)
	vaccine, err := f.catalog.Create(ctx, f.tenant, catalog.CreateVaccineInput{Name: "Influenza"})
	require.NoError(t, err)
	price, err := f.prices.CreatePrice(ctx, f.tenant, pricing.CreatePriceInput{
		PriceTableID: table.ID, VaccineID: vaccine.ID, PriceMinorUnits: 10000, StartDate: day("2024-01-01"),
	})
	require.NoError(t, err)
	campaign, err := f.campaigns.Create(ctx, f.tenant, campaigns.CampaignInput{
		Name: "June", DiscountKind: enums.DiscountPercent, DiscountValue: 10,
		StartDate: day("2024-06-01"), Active: true,
	})
	require.NoError(t, err)

	budget, err := f.svc.QuoteAndCreate(ctx, f.tenant, QuoteAndCreateInput{
		Patient:    patient(),
		VaccineIDs: []int64{vaccine.ID},
		Status:     enums.BudgetStatusAccepted,
	})
	require.NoError(t, err)
	require.Equal(t, &table.ID, budget.PriceTableID)
	require.EqualValues(t, 9000, budget.TotalFinal)
	require.Equal(t, &campaign.ID, budget.Items[0].CampaignID)

	require.NoError(t, f.campaigns.Delete(ctx, f.tenant, campaign.ID))
	require.NoError(t, f.prices.DeactivatePrice(ctx, f.tenant, price.ID))
	_, err = f.prices.CreatePrice(ctx, f.tenant, pricing.CreatePriceInput{
		PriceTableID: table.ID, VaccineID: vaccine.ID, PriceMinorUnits: 20000, StartDate: day("2024-01-01"),
	})
	require.NoError(t, err)

	reloaded, err := f.svc.Get(ctx, f.tenant, budget.ID)
	require.NoError(t, err)
	require.Equal(t, budget.Items, reloaded.Items)
	require.Equal(t, budget.TotalList, reloaded.TotalList)
	require.Equal(t, budget.TotalDiscount, reloaded.TotalDiscount)
	require.Equal(t, budget.TotalFinal, reloaded.TotalFinal)
	require.Equal(t, budget.Patient, reloaded.Patient)
}

func TestQuoteAndCreateBlocksAcceptedWithMissingPrice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day("2024-06-15"))
	_, err := f.tables.Create(ctx, f.tenant, pricetables.CreateTableInput{Name: "Private", IsDefault: true, Active: true})
	require.NoError(t, err)
	vaccine, err := f.catalog.Create(ctx, f.tenant, catalog.CreateVaccineInput{Name: "Rabies"})
	require.NoError(t, err)

	_, err = f.svc.QuoteAndCreate(ctx, f.tenant, QuoteAndCreateInput{
		Patient:    patient(),
		VaccineIDs: []int64{vaccine.ID},
		Status:     enums.BudgetStatusAccepted,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestListBudgetsPaginates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, time.Now())
	flu := f.vaccine(t, f.tenant, "Influenza")
	for i := 0; i < 5; i++ {
		status := enums.BudgetStatusAccepted
		if i%2 == 1 {
			status = enums.BudgetStatusRejected
		}
		_, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
			Patient: patient(),
			Items:   []ItemInput{pricedItem(flu, 10000, 0)},
			Status:  status,
		})
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, f.tenant, ListParams{})
	require.NoError(t, err)
	require.Len(t, page.Budgets, 5)
	require.Empty(t, page.NextCursor)
	require.EqualValues(t, 5, page.Budgets[0].SequentialNumber)

	first, err := f.svc.List(ctx, f.tenant, ListParams{Params: paginationParams(2, "")})
	require.NoError(t, err)
	require.Len(t, first.Budgets, 2)
	require.NotEmpty(t, first.NextCursor)
	second, err := f.svc.List(ctx, f.tenant, ListParams{Params: paginationParams(2, first.NextCursor)})
	require.NoError(t, err)
	require.EqualValues(t, 3, second.Budgets[0].SequentialNumber)

	rejected := enums.BudgetStatusRejected
	filtered, err := f.svc.List(ctx, f.tenant, ListParams{Status: &rejected})
	require.NoError(t, err)
	require.Len(t, filtered.Budgets, 2)

	_, err = f.svc.List(ctx, f.tenant, ListParams{Params: paginationParams(2, "%%%")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func paginationParams(limit int, cursor string) pagination.Params {
	return pagination.Params{Limit: limit, Cursor: cursor}
}

func TestCreateBudgetRejectsForeignReferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, day("2024-06-15"))
	flu := f.vaccine(t, f.tenant, "Influenza")

	other := uuid.New()
	foreignTable, err := f.tables.Create(ctx, other, pricetables.CreateTableInput{Name: "Other clinic", IsDefault: true, Active: true})
	require.NoError(t, err)
	foreignVaccine := f.vaccine(t, other, "Influenza")
	foreignCampaign, err := f.campaigns.Create(ctx, other, campaigns.CampaignInput{
		Name: "Other 10%", DiscountKind: enums.DiscountPercent, DiscountValue: 10,
		StartDate: day("2024-06-01"), Active: true,
	})
	require.NoError(t, err)

	_, err = f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient:      patient(),
		Items:        []ItemInput{pricedItem(flu, 10000, 0)},
		Status:       enums.BudgetStatusPending,
		PriceTableID: &foreignTable.ID,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "foreign table: %v", err)

	_, err = f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0), pricedItem(foreignVaccine, 10000, 0)},
		Status:  enums.BudgetStatusPending,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "foreign vaccine: %v", err)

	discounted := pricedItem(flu, 10000, 1000)
	discounted.CampaignID = &foreignCampaign.ID
	_, err = f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{discounted},
		Status:  enums.BudgetStatusPending,
	})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound), "foreign campaign: %v", err)

	var count int64
	require.NoError(t, f.conn.Model(&models.PatientBudget{}).Where("tenant_id = ?", f.tenant).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, f.conn.Model(&models.BudgetSequence{}).Where("tenant_id = ?", f.tenant).Count(&count).Error)
	require.Zero(t, count)
}

// cancellingTx cancels the request on its first call and reports a sequence collision.
type cancellingTx struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls++
	c.cancel()
	return errors.New("UNIQUE constraint failed: patient_budgets.tenant_id, patient_budgets.sequential_number")
}

func TestSequenceRetryStopsWhenContextDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tx := &cancellingTx{cancel: cancel}
	f := newFixture(t, time.Now(), func(p *ServiceParams) {
		p.Tx = tx
		p.SequenceAttempts = 5
	})
	flu := f.vaccine(t, f.tenant, "Influenza")

	_, err := f.svc.CreateBudget(ctx, f.tenant, CreateInput{
		Patient: patient(),
		Items:   []ItemInput{pricedItem(flu, 10000, 0)},
		Status:  enums.BudgetStatusPending,
	})
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, tx.calls)
}
