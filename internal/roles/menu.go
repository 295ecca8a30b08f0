package roles

import (
	"sort"
	"strings"
)

type Icon uint8

const (
	IconDashboard Icon = iota
	IconPackage
	IconBooking
	IconCalendar
	IconUsers
	IconCustomers
	IconGuide
	IconAgent
	IconPayment
	IconInvoice
	IconReport
	IconMarketing
	IconPromotion
	IconCommission
	IconSettings
	IconProfile

	iconCount
)

var iconNames = [iconCount]string{
	IconDashboard:  "layout-dashboard",
	IconPackage:    "package",
	IconBooking:    "calendar-check",
	IconCalendar:   "calendar",
	IconUsers:      "users",
	IconCustomers:  "user-round",
	IconGuide:      "compass",
	IconAgent:      "briefcase",
	IconPayment:    "credit-card",
	IconInvoice:    "receipt",
	IconReport:     "bar-chart",
	IconMarketing:  "megaphone",
	IconPromotion:  "tag",
	IconCommission: "percent",
	IconSettings:   "settings",
	IconProfile:    "user",
}

func (i Icon) String() string {
	if i >= iconCount {
		return "unknown"
	}
	return iconNames[i]
}

func (i Icon) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

type MenuItem struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Icon  Icon   `json:"icon"`
	Path  string `json:"path"`
	Badge string `json:"badge,omitempty"`
}

type Policy struct {
	DisplayName string
	Landing     string
	Menu        []MenuItem
}

const dashboardRoot = "/dashboard"

var (
	itemDashboard   = MenuItem{ID: "dashboard", Label: "Dashboard", Icon: IconDashboard, Path: dashboardRoot}
	itemPackages    = MenuItem{ID: "packages", Label: "Tour Packages", Icon: IconPackage, Path: "/dashboard/packages"}
	itemBookings    = MenuItem{ID: "bookings", Label: "Bookings", Icon: IconBooking, Path: "/dashboard/bookings"}
	itemCalendar    = MenuItem{ID: "calendar", Label: "Calendar", Icon: IconCalendar, Path: "/dashboard/calendar"}
	itemCustomers   = MenuItem{ID: "customers", Label: "Customers", Icon: IconCustomers, Path: "/dashboard/customers"}
	itemUsers       = MenuItem{ID: "users", Label: "User Management", Icon: IconUsers, Path: "/dashboard/users"}
	itemGuides      = MenuItem{ID: "tour-guides", Label: "Tour Guides", Icon: IconGuide, Path: "/dashboard/tour-guides"}
	itemAgents      = MenuItem{ID: "agents", Label: "Travel Agents", Icon: IconAgent, Path: "/dashboard/agents"}
	itemPayments    = MenuItem{ID: "payments", Label: "Payments", Icon: IconPayment, Path: "/dashboard/payments"}
	itemInvoices    = MenuItem{ID: "invoices", Label: "Invoices", Icon: IconInvoice, Path: "/dashboard/invoices"}
	itemReports     = MenuItem{ID: "reports", Label: "Reports", Icon: IconReport, Path: "/dashboard/reports"}
	itemMarketing   = MenuItem{ID: "marketing", Label: "Marketing", Icon: IconMarketing, Path: "/dashboard/marketing"}
	itemPromotions  = MenuItem{ID: "promotions", Label: "Promotions", Icon: IconPromotion, Path: "/dashboard/promotions"}
	itemCommissions = MenuItem{ID: "commissions", Label: "Commissions", Icon: IconCommission, Path: "/dashboard/commissions"}
	itemSettings    = MenuItem{ID: "settings", Label: "Settings", Icon: IconSettings, Path: "/dashboard/settings"}
	itemMyTours     = MenuItem{ID: "my-tours", Label: "My Tours", Icon: IconGuide, Path: "/dashboard/my-tours"}
	itemMyBookings  = MenuItem{ID: "my-bookings", Label: "My Bookings", Icon: IconBooking, Path: "/dashboard/my-bookings"}
	itemProfile     = MenuItem{ID: "profile", Label: "Profile", Icon: IconProfile, Path: "/dashboard/profile"}
)

func withBadge(item MenuItem, badge string) MenuItem {
	item.Badge = badge
	return item
}

var policies = [...]Policy{
	SuperAdmin: {
		DisplayName: "Super Admin",
		Landing:     dashboardRoot,
		Menu: []MenuItem{
			itemDashboard, itemPackages, itemBookings, itemCustomers, itemUsers, itemGuides,
			itemAgents, itemPayments, itemReports, itemMarketing, itemSettings,
		},
	},
	Admin: {
		DisplayName: "Administrator",
		Landing:     dashboardRoot,
		Menu: []MenuItem{
			itemDashboard, itemPackages, itemBookings, itemCustomers, itemUsers, itemGuides,
			itemPayments, itemReports,
		},
	},
	BookingReservation: {
		DisplayName: "Booking & Reservation",
		Landing:     dashboardRoot,
		Menu: []MenuItem{
			itemDashboard, withBadge(itemBookings, "New"), itemCalendar, itemCustomers, itemPackages,
		},
	},
	TourGuide: {
		DisplayName: "Tour Guide",
		Landing:     dashboardRoot,
		Menu:        []MenuItem{itemDashboard, itemMyTours, itemCalendar, itemProfile},
	},
	TravelAgent: {
		DisplayName: "Travel Agent",
		Landing:     dashboardRoot,
		Menu:        []MenuItem{itemDashboard, itemPackages, itemBookings, itemCommissions, itemProfile},
	},
	Finance: {
		DisplayName: "Finance",
		Landing:     dashboardRoot,
		Menu:        []MenuItem{itemDashboard, itemPayments, itemInvoices, itemReports},
	},
	SalesMarketing: {
		DisplayName: "Sales & Marketing",
		Landing:     dashboardRoot,
		Menu:        []MenuItem{itemDashboard, itemMarketing, itemPromotions, itemCustomers, itemReports},
	},
	Customer: {
		DisplayName: "Customer",
		Landing:     "/dashboard/my-bookings",
		Menu:        []MenuItem{itemMyBookings, itemProfile},
	},
}

// Compile-time check that the table has one entry per role.
var _ = [1]struct{}{}[len(policies)-int(roleCount)]

var pathRoles = buildPathRoles()

func buildPathRoles() map[string][]Role {
	out := make(map[string][]Role)
	for r := Role(0); r < roleCount; r++ {
		for _, item := range policies[r].Menu {
			out[item.Path] = append(out[item.Path], r)
		}
	}
	return out
}

// PolicyFor returns the policy of r. The menu slice is a copy.
func PolicyFor(r Role) (Policy, error) {
	if !r.Valid() {
		return Policy{}, ErrUnknownRole
	}
	p := policies[r]
	p.Menu = append([]MenuItem(nil), p.Menu...)
	return p, nil
}

// MenuFor returns the ordered menu for r, or an empty non-nil menu for an
// invalid role.
func MenuFor(r Role) []MenuItem {
	p, err := PolicyFor(r)
	if err != nil {
		return []MenuItem{}
	}
	return p.Menu
}

func DisplayName(r Role) string {
	if !r.Valid() {
		return "Unknown"
	}
	return policies[r].DisplayName
}

func LandingPath(r Role) string {
	if !r.Valid() {
		return dashboardRoot
	}
	return policies[r].Landing
}

// RolesForPath returns the roles whose menu reaches path, either exactly or
// through a sub-path of a menu entry. The dashboard root only matches exactly.
func RolesForPath(path string) []Role {
	path = strings.TrimSuffix(path, "/")
	if path == "" {
		return nil
	}

	seen := make(map[Role]struct{})
	for p, rs := range pathRoles {
		if p == path || (p != dashboardRoot && strings.HasPrefix(path, p+"/")) {
			for _, r := range rs {
				seen[r] = struct{}{}
			}
		}
	}

	out := make([]Role, 0, len(seen))
	for r := range seen {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
