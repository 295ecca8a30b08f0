package models

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

type PaymentStatus string

const (
	PaymentStatusUnpaid    PaymentStatus = "unpaid"
	PaymentStatusPaid      PaymentStatus = "paid"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

type Traveler struct {
	FullName string `json:"fullName"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Passport string `json:"passport,omitempty"`
	Child    bool   `json:"child,omitempty"`
}

type Booking struct {
	ID            string
	Number        string
	UserID        string
	PackageID     string
	DepartureDate time.Time
	Adults        int
	Children      int
	LeadTraveler  Traveler
	Travelers     []Traveler
	AddOns        []string
	TotalMinor    int64
	Currency      string
	Status        BookingStatus
	PaymentStatus PaymentStatus
	PurchaseID    *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
