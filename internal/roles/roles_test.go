package roles

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEveryRoleHasWellFormedPolicy(t *testing.T) {
	for _, r := range All() {
		p, err := PolicyFor(r)
		if err != nil {
			t.Fatalf("PolicyFor(%s): %v", r, err)
		}
		if p.DisplayName == "" {
			t.Errorf("%s: empty display name", r)
		}
		if !strings.HasPrefix(p.Landing, "/dashboard") {
			t.Errorf("%s: landing %q outside dashboard", r, p.Landing)
		}
		if p.Menu == nil {
			t.Errorf("%s: nil menu", r)
		}

		ids := make(map[string]struct{})
		landingReachable := false
		for _, item := range p.Menu {
			if item.ID == "" || item.Label == "" || item.Path == "" {
				t.Errorf("%s: incomplete menu item %+v", r, item)
			}
			if item.Icon >= iconCount {
				t.Errorf("%s: item %s has unknown icon", r, item.ID)
			}
			if _, dup := ids[item.ID]; dup {
				t.Errorf("%s: duplicate menu id %s", r, item.ID)
			}
			ids[item.ID] = struct{}{}
			if item.Path == p.Landing {
				landingReachable = true
			}
		}
		if !landingReachable {
			t.Errorf("%s: landing %q not in menu", r, p.Landing)
		}
	}
}

func TestMenuIsDeterministicAndIsolated(t *testing.T) {
	first := MenuFor(Admin)
	first[0].Label = "mutated"

	second := MenuFor(Admin)
	if second[0].Label == "mutated" {
		t.Fatal("MenuFor leaked the shared table")
	}
	if len(first) != len(second) {
		t.Fatalf("menu length changed: %d vs %d", len(first), len(second))
	}
}

func TestMenuForInvalidRole(t *testing.T) {
	menu := MenuFor(Role(200))
	if menu == nil || len(menu) != 0 {
		t.Fatalf("MenuFor(invalid) = %v, want empty non-nil", menu)
	}
}

func TestParseRoundTrip(t *testing.T) {
	for _, r := range All() {
		got, err := Parse(r.String())
		if err != nil {
			t.Fatalf("Parse(%q): %v", r.String(), err)
		}
		if got != r {
			t.Errorf("Parse(%q) = %v, want %v", r.String(), got, r)
		}
	}

	if _, err := Parse("root"); !errors.Is(err, ErrUnknownRole) {
		t.Fatalf("Parse(root) error = %v, want ErrUnknownRole", err)
	}
}

func TestRoleJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Role Role `json:"role"`
	}{Role: TourGuide})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"role":"tour_guide"}` {
		t.Fatalf("marshal = %s", data)
	}

	var out struct {
		Role Role `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"finance"}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.Role != Finance {
		t.Fatalf("unmarshal = %v", out.Role)
	}
}

func TestScan(t *testing.T) {
	var r Role
	if err := r.Scan("sales_marketing"); err != nil || r != SalesMarketing {
		t.Fatalf("Scan string = %v, %v", r, err)
	}
	if err := r.Scan([]byte("customer")); err != nil || r != Customer {
		t.Fatalf("Scan bytes = %v, %v", r, err)
	}
	if err := r.Scan(nil); err == nil {
		t.Fatal("Scan(nil) should fail")
	}
}

func TestRolesForPath(t *testing.T) {
	tests := []struct {
		path string
		want []Role
	}{
		{"/dashboard/users", []Role{SuperAdmin, Admin}},
		{"/dashboard/users/abc", []Role{SuperAdmin, Admin}},
		{"/dashboard/my-bookings", []Role{Customer}},
		{"/dashboard/settings/", []Role{SuperAdmin}},
		{"/dashboard/nowhere", []Role{}},
	}

	for _, tt := range tests {
		got := RolesForPath(tt.path)
		if len(got) != len(tt.want) {
			t.Errorf("RolesForPath(%q) = %v, want %v", tt.path, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("RolesForPath(%q) = %v, want %v", tt.path, got, tt.want)
				break
			}
		}
	}

	root := RolesForPath("/dashboard")
	for _, r := range root {
		if r == Customer {
			t.Fatal("customer should not reach the staff dashboard root")
		}
	}
	if len(root) != int(roleCount)-1 {
		t.Fatalf("dashboard root roles = %v", root)
	}
}

func TestDisplayNameAndLanding(t *testing.T) {
	if DisplayName(Customer) != "Customer" {
		t.Fatalf("DisplayName(customer) = %q", DisplayName(Customer))
	}
	if LandingPath(Customer) != "/dashboard/my-bookings" {
		t.Fatalf("LandingPath(customer) = %q", LandingPath(Customer))
	}
	if DisplayName(Role(99)) != "Unknown" {
		t.Fatal("invalid role should have Unknown display name")
	}
}
