package models

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParsePlanTier(t *testing.T) {
	tests := []struct {
		in   string
		want PlanTier
	}{
		{"team", PlanTeam},
		{"business", PlanBusiness},
		{"enterprise", PlanEnterprise},
		{"BUSINESS", PlanBusiness},
		{"premium", PlanTier("Premium")},
		{"proPlus", PlanTier("ProPlus")},
		{"  ", PlanUnknown},
		{"", PlanUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParsePlanTier(tt.in); got != tt.want {
				t.Errorf("ParsePlanTier(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPlanTier_IsKnown(t *testing.T) {
	if !PlanBusiness.IsKnown() {
		t.Error("Business should be known")
	}
	if PlanUnknown.IsKnown() {
		t.Error("Unknown should not be known")
	}
	if PlanTier("Premium").IsKnown() {
		t.Error("verbatim tiers should not be known")
	}
	if PlanTier("").String() != "Unknown" {
		t.Errorf("empty tier String() = %q, want Unknown", PlanTier("").String())
	}
}

func TestUser_IsRegistered(t *testing.T) {
	tests := []struct {
		name string
		user User
		want bool
	}{
		{"active unblocked", User{Status: "active"}, true},
		{"active blocked", User{Status: "active", IsBlocked: true}, false},
		{"invited", User{Status: "invited"}, false},
		{"disabled", User{Status: "disabled"}, false},
		{"empty status", User{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.IsRegistered(); got != tt.want {
				t.Errorf("IsRegistered() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRegisteredUsers_PreservesOrder(t *testing.T) {
	users := []User{
		{Email: "a@example.com", Status: "active"},
		{Email: "b@example.com", Status: "active", IsBlocked: true},
		{Email: "c@example.com", Status: "invited"},
		{Email: "d@example.com", Status: "active"},
	}

	got := RegisteredUsers(users)
	if len(got) != 2 {
		t.Fatalf("RegisteredUsers() returned %d users, want 2", len(got))
	}
	if got[0].Email != "a@example.com" || got[1].Email != "d@example.com" {
		t.Errorf("RegisteredUsers() = %v, %v", got[0].Email, got[1].Email)
	}
}

func TestUser_Defaults(t *testing.T) {
	var u User
	if u.DisplayName() != "N/A" {
		t.Errorf("DisplayName() = %q, want N/A", u.DisplayName())
	}
	if u.RoleOrDefault() != DefaultRole {
		t.Errorf("RoleOrDefault() = %q, want %q", u.RoleOrDefault(), DefaultRole)
	}
}

func TestUser_DecodeUpstream(t *testing.T) {
	body := `[
		{"name":"Ada","email":"ada@example.com","role":"admin","last_login":"2026-09-30T12:15:00Z","status":"active","is_blocked":false},
		{"email":"bob@example.com","last_login":"0001-01-01T00:00:00Z","status":"active","is_blocked":false},
		{"email":"eve@example.com","last_login":null,"status":"blocked","is_blocked":true},
		{"email":"joe@example.com","status":"active"}
	]`

	var users []User
	if err := json.Unmarshal([]byte(body), &users); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if len(users) != 4 {
		t.Fatalf("decoded %d users, want 4", len(users))
	}

	if got := users[0].LastLogin.String(); got != "2026-09-30 12:15:00" {
		t.Errorf("users[0].LastLogin = %q", got)
	}
	for i := 1; i < 4; i++ {
		if got := users[i].LastLogin.String(); got != "Never" {
			t.Errorf("users[%d].LastLogin = %q, want Never", i, got)
		}
	}
	if users[1].RoleOrDefault() != "user" {
		t.Errorf("users[1] role = %q, want user", users[1].RoleOrDefault())
	}
}

func TestTimestamp(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantText string
		wantJSON string
	}{
		{"null", `null`, "Never", `null`},
		{"empty string", `""`, "Never", `null`},
		{"zero sentinel", `"0001-01-01T00:00:00Z"`, "Never", `null`},
		{"epoch sentinel", `"1970-01-01T00:00:00Z"`, "Never", `null`},
		{"valid", `"2026-10-01T08:00:00+02:00"`, "2026-10-01 06:00:00", `"2026-10-01T06:00:00Z"`},
		{"unparseable", `"yesterday"`, "yesterday", `"yesterday"`},
		{"numeric", `1700000000`, "1700000000", `"1700000000"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.raw), &ts); err != nil {
				t.Fatalf("Unmarshal(%s) error: %v", tt.raw, err)
			}
			if got := ts.String(); got != tt.wantText {
				t.Errorf("String() = %q, want %q", got, tt.wantText)
			}
			out, err := json.Marshal(ts)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			if string(out) != tt.wantJSON {
				t.Errorf("Marshal() = %s, want %s", out, tt.wantJSON)
			}
		})
	}
}

func TestTimestamp_Constructed(t *testing.T) {
	ts := Timestamp{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	if ts.Never() {
		t.Error("constructed timestamp should not be Never")
	}
	if (Timestamp{}).String() != "Never" {
		t.Error("zero Timestamp should render Never")
	}
}

func TestReportEntry_BillingStatusAndAnomaly(t *testing.T) {
	entry := ReportEntry{TenantRecord: TenantRecord{RegisteredCount: 1, BillableCount: 3}, Difference: -2}
	if !entry.Anomaly() {
		t.Error("negative difference should be an anomaly")
	}
	if entry.BillingStatus() != "Billable" {
		t.Errorf("BillingStatus() = %q, want Billable", entry.BillingStatus())
	}

	entry = ReportEntry{TenantRecord: TenantRecord{RegisteredCount: 5}, Difference: 5}
	if entry.Anomaly() {
		t.Error("positive difference should not be an anomaly")
	}
	if entry.BillingStatus() != "Not Billable" {
		t.Errorf("BillingStatus() = %q, want Not Billable", entry.BillingStatus())
	}
}

func TestTenantState_IsTerminal(t *testing.T) {
	for _, s := range []TenantState{TenantStateSkipped, TenantStateReconciled} {
		if !s.IsTerminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []TenantState{TenantStateListed, TenantStatePlanDetected, TenantStateUsersFetched, TenantStateBillingFetched} {
		if s.IsTerminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}
