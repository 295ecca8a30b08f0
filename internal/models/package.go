package models

import "time"

type AddOn struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	PriceMinor int64  `json:"priceMinor"`
	PerPerson  bool   `json:"perPerson"`
}

// Package is a bookable tour package. Prices are in minor currency units.
type Package struct {
	ID              string    `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	Destination     string    `json:"destination"`
	DurationDays    int       `json:"durationDays"`
	AdultPriceMinor int64     `json:"adultPriceMinor"`
	ChildPriceMinor int64     `json:"childPriceMinor"`
	Currency        string    `json:"currency"`
	MaxGroupSize    int       `json:"maxGroupSize"`
	AddOns          []AddOn   `json:"addOns"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"-"`
	UpdatedAt       time.Time `json:"-"`
}

func (p Package) AddOn(code string) (AddOn, bool) {
	for _, a := range p.AddOns {
		if a.Code == code {
			return a, true
		}
	}
	return AddOn{}, false
}
