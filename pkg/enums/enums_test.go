package enums

import "testing"

func TestParseDiscountKind(t *testing.T) {
	tests := []struct {
		raw     string
		want    DiscountKind
		wantErr bool
	}{
		{raw: "percent", want: DiscountPercent},
		{raw: "fixed_amount", want: DiscountFixedAmount},
		{raw: "fixedAmount", want: DiscountFixedAmount},
		{raw: "bogo", wantErr: true},
		{raw: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseDiscountKind(tt.raw)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tt.raw)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Fatalf("%q: got %q err=%v", tt.raw, got, err)
		}
		if !got.IsValid() {
			t.Fatalf("%q: parsed kind should be valid", tt.raw)
		}
	}
}

func TestParseBudgetStatus(t *testing.T) {
	for _, raw := range []string{"pending", "accepted", "rejected"} {
		status, err := ParseBudgetStatus(raw)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", raw, err)
		}
		if status.String() != raw {
			t.Fatalf("round trip mismatch %q", status)
		}
	}
	if _, err := ParseBudgetStatus("Accepted"); err == nil {
		t.Fatalf("status parsing is case sensitive")
	}
	if BudgetStatus("converted").IsValid() {
		t.Fatalf("unexpected valid status")
	}
}

func TestMemberRoleAndOutboxEnums(t *testing.T) {
	if _, err := ParseMemberRole("owner"); err == nil {
		t.Fatalf("owner is not a tenant role here")
	}
	if role, err := ParseMemberRole("manager"); err != nil || role != MemberRoleManager {
		t.Fatalf("unexpected manager parse %q %v", role, err)
	}
	if et, err := ParseOutboxEventType("budget_created"); err != nil || !et.IsValid() {
		t.Fatalf("budget_created should parse, got %v", err)
	}
	if _, err := ParseOutboxAggregateType("vendor_order"); err == nil {
		t.Fatalf("unknown aggregate should fail")
	}
}
