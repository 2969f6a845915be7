package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	pkgerrors "github.com/angelmondragon/clinicvax-backend/pkg/errors"
)

func withURLParam(r *http.Request, key, value string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rc))
}

func TestParsePathID(t *testing.T) {
	req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", "42")
	id, err := ParsePathID(req, "id")
	if err != nil || id != 42 {
		t.Fatalf("expected 42, got %d (%v)", id, err)
	}

	for _, raw := range []string{"", "abc", "0", "-3"} {
		req := withURLParam(httptest.NewRequest(http.MethodGet, "/", nil), "id", raw)
		if _, err := ParsePathID(req, "id"); err == nil {
			t.Fatalf("expected error for %q", raw)
		} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Fatalf("expected validation error for %q", raw)
		}
	}
}

func TestParseOptionalQueryID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?price_table_id=7", nil)
	got, err := ParseOptionalQueryID(req, "price_table_id")
	if err != nil || got == nil || *got != 7 {
		t.Fatalf("expected 7, got %v (%v)", got, err)
	}

	got, err = ParseOptionalQueryID(httptest.NewRequest(http.MethodGet, "/", nil), "price_table_id")
	if err != nil || got != nil {
		t.Fatalf("expected nil for missing param")
	}

	if _, err := ParseOptionalQueryID(httptest.NewRequest(http.MethodGet, "/?price_table_id=x", nil), "price_table_id"); err == nil {
		t.Fatalf("expected error for non-numeric id")
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 50, 1, 200); err == nil {
		t.Fatalf("expected out of range error")
	}
	value, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 50, 1, 200)
	if err != nil || value != 50 {
		t.Fatalf("expected default 50, got %d", value)
	}
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	type payload struct {
		Name  string `json:"name" validate:"required,max=10"`
		Email string `json:"email" validate:"omitempty,email"`
	}

	var dst payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"","email":"nope"}`))
	err := DecodeJSONBody(req, &dst)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	details, ok := typed.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected field details, got %T", typed.Details())
	}
	if details["name"] != "is required" || details["email"] != "must be a valid email" {
		t.Fatalf("unexpected details %v", details)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ok","extra":1}`))
	if err := DecodeJSONBody(req, &dst); err == nil {
		t.Fatalf("expected unknown field rejection")
	}
}

func TestParseQueryBool(t *testing.T) {
	got, err := ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?active=1", nil), "active", false)
	if err != nil || !got {
		t.Fatalf("expected true, got %v (%v)", got, err)
	}
	got, err = ParseQueryBool(httptest.NewRequest(http.MethodGet, "/", nil), "active", true)
	if err != nil || !got {
		t.Fatalf("expected default true, got %v (%v)", got, err)
	}
	if _, err := ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?active=yes", nil), "active", false); err == nil {
		t.Fatalf("expected error for non-boolean flag")
	}
}

func TestDecodeJSONBodyKeysNestedFields(t *testing.T) {
	type patient struct {
		Email string `json:"email" validate:"omitempty,email"`
	}
	type payload struct {
		Patient    patient `json:"patient"`
		VaccineIDs []int64 `json:"vaccine_ids" validate:"required,min=1,dive,gt=0"`
	}

	var dst payload
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"patient":{"email":"nope"},"vaccine_ids":[4,0]}`))
	typed := pkgerrors.As(DecodeJSONBody(req, &dst))
	if typed == nil {
		t.Fatalf("expected validation error")
	}
	details := typed.Details().(map[string]string)
	if details["patient.email"] != "must be a valid email" {
		t.Fatalf("unexpected details %v", details)
	}
	if details["vaccine_ids[1]"] != "must be greater than 0" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestSanitizeString(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{in: "  Hepatitis B  ", max: 5, want: "Hepat"},
		{in: "  João   da \t Silva ", max: 0, want: "João da Silva"},
		{in: "Conceição", max: 8, want: "Conceiçã"},
		{in: "ab cd", max: 3, want: "ab"},
	}
	for _, tc := range cases {
		if got := SanitizeString(tc.in, tc.max); got != tc.want {
			t.Fatalf("SanitizeString(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}
