package models

import "time"

// BoundingBox is the lat/lng envelope around a buyer's nearby cities.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// BuyerFilter is precomputed once per search city so matching never has to
// call the geo service on the hot path.
type BuyerFilter struct {
	NearbyCities   []string
	RadiusMiles    float64
	BoundingBox    *BoundingBox
	GeohashPrefix  string
	LastCityUpdate time.Time
}

// Requirements are the buyer's optional hard filters. A nil bound is unset.
type Requirements struct {
	MinBedrooms   *int
	MaxBedrooms   *int
	MinBathrooms  *float64
	MaxBathrooms  *float64
	MinSquareFeet *int
	MaxSquareFeet *int
	MinPrice      *float64
	MaxPrice      *float64
}

// BuyerProfile is a buyer's standing search request and, on the
// marketplace side, the lead an agent can purchase.
type BuyerProfile struct {
	ID     string
	UserID string

	FirstName string
	LastName  string
	Email     string
	Phone     string
	Languages []string

	PreferredCity  string
	PreferredState string
	SearchRadius   float64
	Latitude       *float64
	Longitude      *float64
	Filter         *BuyerFilter

	MaxMonthlyPayment float64
	MaxDownPayment    float64
	Requirements      Requirements

	IsActive               bool
	ProfileComplete        bool
	SMSNotifications       bool
	IsAvailableForPurchase bool
	PurchasedBy            string
	PurchasedAt            *time.Time
	LeadPrice              int

	LikedPropertyIDs []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
	LastActiveAt     *time.Time

	// Version is bumped by the store on every committed write.
	Version int64
}

// EffectiveLeadPrice returns the credit cost of the lead, defaulting to 1.
func (b *BuyerProfile) EffectiveLeadPrice() int {
	if b.LeadPrice <= 0 {
		return 1
	}
	return b.LeadPrice
}

// Contact returns the fields released to an agent after purchase.
func (b *BuyerProfile) Contact() BuyerContact {
	return BuyerContact{
		BuyerID:   b.ID,
		FirstName: b.FirstName,
		LastName:  b.LastName,
		Email:     b.Email,
		Phone:     b.Phone,
		City:      b.PreferredCity,
		State:     b.PreferredState,
	}
}

// Redacted returns a copy with contact details stripped, safe to show to
// agents browsing leads they have not bought.
func (b *BuyerProfile) Redacted() *BuyerProfile {
	c := *b
	c.Email = ""
	c.Phone = ""
	c.LastName = ""
	return &c
}

// BuyerContact is the unlocked part of a lead.
type BuyerContact struct {
	BuyerID   string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	City      string
	State     string
}
