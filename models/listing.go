package models

import "time"

// PropertyStatus is the listing lifecycle state. Only active listings are
// ever matched.
type PropertyStatus string

const (
	StatusActive   PropertyStatus = "active"
	StatusPending  PropertyStatus = "pending"
	StatusSold     PropertyStatus = "sold"
	StatusArchived PropertyStatus = "archived"
)

// PropertyListing is an owner-financed unit offered by a seller.
type PropertyListing struct {
	ID      string
	Address string
	City    string
	State   string
	ZipCode string

	Latitude     *float64
	Longitude    *float64
	NearbyCities []string

	Bedrooms   int
	Bathrooms  float64
	SquareFeet int

	ListPrice          float64
	DownPaymentAmount  float64
	DownPaymentPercent float64
	MonthlyPayment     float64
	InterestRate       float64
	TermYears          float64
	LoanAmount         float64
	BalloonPayment     *float64
	BalloonYears       *float64

	Status    PropertyStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the listing may be matched.
func (p *PropertyListing) IsActive() bool {
	return p.Status == StatusActive
}

// Notification is the message sent to a buyer about a matching property.
type Notification struct {
	BuyerID        string
	BuyerName      string
	BuyerPhone     string
	BuyerEmail     string
	PropertyID     string
	Address        string
	City           string
	State          string
	ListPrice      float64
	MonthlyPayment float64
	DownPayment    float64
	Bedrooms       int
	Bathrooms      float64
	BudgetTag      string
	DashboardURL   string
	Trigger        string
}
