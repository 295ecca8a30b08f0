// Package roles holds the closed set of dashboard roles and the static
// role-to-menu policy table.
package roles

import (
	"database/sql/driver"
	"errors"
	"fmt"
)

type Role uint8

const (
	SuperAdmin Role = iota
	Admin
	BookingReservation
	TourGuide
	TravelAgent
	Finance
	SalesMarketing
	Customer

	roleCount
)

var ErrUnknownRole = errors.New("unknown role")

var roleNames = [roleCount]string{
	SuperAdmin:         "super_admin",
	Admin:              "admin",
	BookingReservation: "booking_reservation",
	TourGuide:          "tour_guide",
	TravelAgent:        "travel_agent",
	Finance:            "finance",
	SalesMarketing:     "sales_marketing",
	Customer:           "customer",
}

// All returns every role in declaration order.
func All() []Role {
	out := make([]Role, 0, roleCount)
	for r := Role(0); r < roleCount; r++ {
		out = append(out, r)
	}
	return out
}

func (r Role) Valid() bool {
	return r < roleCount
}

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("role(%d)", uint8(r))
	}
	return roleNames[r]
}

func Parse(s string) (Role, error) {
	for r := Role(0); r < roleCount; r++ {
		if roleNames[r] == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownRole, uint8(r))
	}
	return []byte(roleNames[r]), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Scan reads the role column stored as text.
func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		return fmt.Errorf("%w: null", ErrUnknownRole)
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrUnknownRole, src)
	}
}

func (r Role) Value() (driver.Value, error) {
	text, err := r.MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

// In reports whether r is one of candidates.
func (r Role) In(candidates ...Role) bool {
	for _, c := range candidates {
		if c == r {
			return true
		}
	}
	return false
}
