package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/clinicvax-backend/internal/campaigns"
	"github.com/angelmondragon/clinicvax-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
)

type stubCampaignService struct {
	input      *campaigns.CampaignInput
	updatedID  int64
	deletedID  int64
	activeOnly bool
	match      campaigns.Match
	matched    bool
	listPrice  int64
	campaign   *campaigns.CampaignDTO
	err        error
}

func (s *stubCampaignService) BestDiscount(_ context.Context, _ uuid.UUID, _ int64, _ time.Time, listPrice int64) (campaigns.Match, bool, error) {
	s.listPrice = listPrice
	return s.match, s.matched, s.err
}

func (s *stubCampaignService) LoadActive(_ context.Context, _ uuid.UUID, _ time.Time) (*campaigns.ActiveSet, error) {
	return &campaigns.ActiveSet{}, s.err
}

func (s *stubCampaignService) Create(_ context.Context, _ uuid.UUID, input campaigns.CampaignInput) (*campaigns.CampaignDTO, error) {
	s.input = &input
	return s.campaign, s.err
}

func (s *stubCampaignService) Update(_ context.Context, _ uuid.UUID, id int64, input campaigns.CampaignInput) (*campaigns.CampaignDTO, error) {
	s.updatedID = id
	s.input = &input
	return s.campaign, s.err
}

func (s *stubCampaignService) Delete(_ context.Context, _ uuid.UUID, id int64) error {
	s.deletedID = id
	return s.err
}

func (s *stubCampaignService) Get(_ context.Context, _ uuid.UUID, _ int64) (*campaigns.CampaignDTO, error) {
	return s.campaign, s.err
}

func (s *stubCampaignService) List(_ context.Context, _ uuid.UUID, activeOnly bool) ([]campaigns.CampaignDTO, error) {
	s.activeOnly = activeOnly
	return nil, s.err
}

func TestCampaignCreateParsesPayload(t *testing.T) {
	svc := &stubCampaignService{campaign: &campaigns.CampaignDTO{ID: 4}}
	body := `{"name":"Winter flu","discount_kind":"fixedAmount","discount_value":500,"vaccine_ids":[1,2],"start_date":"2025-05-01","end_date":"2025-07-31"}`
	rec := httptest.NewRecorder()
	CampaignCreate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v1/campaigns", body, uuid.New(), nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	in := svc.input
	if in.DiscountKind != enums.DiscountFixedAmount || in.DiscountValue != 500 {
		t.Fatalf("unexpected discount %+v", in)
	}
	if !in.Active {
		t.Fatalf("campaigns default to active")
	}
	if len(in.VaccineIDs) != 2 || in.EndDate == nil {
		t.Fatalf("unexpected scope or window %+v", in)
	}
}

func TestCampaignCreateRejectsUnknownKind(t *testing.T) {
	svc := &stubCampaignService{}
	body := `{"name":"x","discount_kind":"bogo","discount_value":1,"start_date":"2025-05-01"}`
	rec := httptest.NewRecorder()
	CampaignCreate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPost, "/api/v1/campaigns", body, uuid.New(), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
	if svc.input != nil {
		t.Fatalf("service must not be called")
	}
}

func TestCampaignUpdateAndDelete(t *testing.T) {
	svc := &stubCampaignService{campaign: &campaigns.CampaignDTO{ID: 6}}
	body := `{"name":"x","discount_kind":"percent","discount_value":10,"start_date":"2025-05-01","active":false}`
	rec := httptest.NewRecorder()
	CampaignUpdate(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodPut, "/api/v1/campaigns/6", body, uuid.New(), map[string]string{"campaignID": "6"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.updatedID != 6 || svc.input.Active {
		t.Fatalf("unexpected update %d %+v", svc.updatedID, svc.input)
	}

	rec = httptest.NewRecorder()
	CampaignDelete(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodDelete, "/api/v1/campaigns/6", "", uuid.New(), map[string]string{"campaignID": "6"}))
	if rec.Code != http.StatusNoContent || svc.deletedID != 6 {
		t.Fatalf("expected 204 for delete got %d", rec.Code)
	}
}

func TestCampaignGetNotFound(t *testing.T) {
	svc := &stubCampaignService{err: pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")}
	rec := httptest.NewRecorder()
	CampaignGet(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodGet, "/api/v1/campaigns/1", "", uuid.New(), map[string]string{"campaignID": "1"}))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}
}

func TestCampaignListActiveFilter(t *testing.T) {
	svc := &stubCampaignService{}
	rec := httptest.NewRecorder()
	CampaignList(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodGet, "/api/v1/campaigns?active=true", "", uuid.New(), nil))
	if rec.Code != http.StatusOK || !svc.activeOnly {
		t.Fatalf("expected active-only listing, code %d", rec.Code)
	}
}

func TestCampaignListRejectsBadActiveFlag(t *testing.T) {
	svc := &stubCampaignService{}
	rec := httptest.NewRecorder()
	CampaignList(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodGet, "/api/v1/campaigns?active=maybe", "", uuid.New(), nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCampaignBestDiscount(t *testing.T) {
	svc := &stubCampaignService{match: campaigns.Match{CampaignID: 3, DiscountMinorUnits: 1500}, matched: true}
	rec := httptest.NewRecorder()
	CampaignBestDiscount(svc, nil).ServeHTTP(rec, tenantRequest(http.MethodGet, "/api/v1/campaigns/best?vaccine_id=2&list_price=10000", "", uuid.New(), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if svc.listPrice != 10000 {
		t.Fatalf("expected list price forwarded, got %d", svc.listPrice)
	}
	var payload struct {
		Matched    bool  `json:"matched"`
		CampaignID int64 `json:"campaign_id"`
		Discount   int64 `json:"discount_minor_units"`
	}
	decodeData(t, rec, &payload)
	if !payload.Matched || payload.CampaignID != 3 || payload.Discount != 1500 {
		t.Fatalf("unexpected payload %+v", payload)
	}
}
