package matching

import (
	"math/rand"
	"testing"

	"leadmarket/models"
)

func f64(v float64) *float64 { return &v }
func intp(v int) *int        { return &v }

func houstonBuyer() *models.BuyerProfile {
	return &models.BuyerProfile{
		ID:                "buyer-1",
		UserID:            "user-1",
		FirstName:         "Ana",
		PreferredCity:     "Houston",
		PreferredState:    "TX",
		SearchRadius:      25,
		Latitude:          f64(29.7604),
		Longitude:         f64(-95.3698),
		Filter:            &models.BuyerFilter{NearbyCities: []string{"Houston", "Pasadena", "Sugar Land"}},
		MaxMonthlyPayment: 1500,
		MaxDownPayment:    15000,
		IsActive:          true,
	}
}

func listing(id, city string, monthly, down float64) *models.PropertyListing {
	return &models.PropertyListing{
		ID:                id,
		City:              city,
		State:             "TX",
		MonthlyPayment:    monthly,
		DownPaymentAmount: down,
		ListPrice:         200_000,
		Bedrooms:          3,
		Bathrooms:         2,
		SquareFeet:        1600,
		Status:            models.StatusActive,
	}
}

func TestEvaluateHoustonScenario(t *testing.T) {
	e := NewEvaluator(0)
	b := houstonBuyer()

	dallas := listing("E", "Dallas", 1000, 5000)
	dallas.Latitude, dallas.Longitude = f64(32.7767), f64(-96.7970)

	tests := []struct {
		p       *models.PropertyListing
		matches bool
		budget  models.BudgetMatchType
		label   string
	}{
		{listing("A", "Houston", 1400, 12000), true, models.BudgetBoth, "Full Match"},
		{listing("B", "Houston", 1300, 20000), true, models.BudgetMonthlyOnly, "Low Monthly Payment"},
		{listing("C", "Houston", 1700, 10000), true, models.BudgetDownOnly, "Low Down Payment"},
		{listing("D", "Houston", 2000, 25000), false, models.BudgetNeither, ""},
		{dallas, false, models.BudgetNeither, ""},
	}
	for _, tt := range tests {
		got := e.Evaluate(tt.p, b)
		if got.Matches != tt.matches {
			t.Errorf("property %s: Matches = %v; want %v", tt.p.ID, got.Matches, tt.matches)
		}
		if got.BudgetMatchType != tt.budget {
			t.Errorf("property %s: BudgetMatchType = %q; want %q", tt.p.ID, got.BudgetMatchType, tt.budget)
		}
		if got.BudgetMatchType.Label() != tt.label {
			t.Errorf("property %s: label = %q; want %q", tt.p.ID, got.BudgetMatchType.Label(), tt.label)
		}
		if got.Matches && got.Score != 1 {
			t.Errorf("property %s: Score = %v; want 1", tt.p.ID, got.Score)
		}
	}
}

func TestEvaluateDallasSkipsBudget(t *testing.T) {
	e := NewEvaluator(0)
	b := houstonBuyer()
	p := listing("E", "Dallas", 1000, 5000)
	p.Latitude, p.Longitude = f64(32.7767), f64(-96.7970)

	got := e.Evaluate(p, b)
	if got.LocationStrategy != models.LocNone || len(got.MatchedOn) != 0 {
		t.Errorf("location failure should short-circuit, got %+v", got)
	}
}

func TestEvaluateORBudgetProperty(t *testing.T) {
	e := NewEvaluator(0)
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 1000; i++ {
		b := houstonBuyer()
		b.MaxMonthlyPayment = float64(500 + rng.Intn(3000))
		b.MaxDownPayment = float64(rng.Intn(60_000))
		p := listing("P", "Houston", float64(500+rng.Intn(3000)), float64(rng.Intn(60_000)))

		want := p.MonthlyPayment <= b.MaxMonthlyPayment || p.DownPaymentAmount <= b.MaxDownPayment
		if got := e.Evaluate(p, b).Matches; got != want {
			t.Fatalf("monthly %v/%v down %v/%v: Matches = %v; want %v",
				p.MonthlyPayment, b.MaxMonthlyPayment, p.DownPaymentAmount, b.MaxDownPayment, got, want)
		}
	}
}

func TestEvaluateBudgetBoundaryIsInclusive(t *testing.T) {
	e := NewEvaluator(0)
	b := houstonBuyer()
	p := listing("P", "Houston", 1500, 15000)

	got := e.Evaluate(p, b)
	if !got.Matches || got.BudgetMatchType != models.BudgetBoth {
		t.Errorf("payment == ceiling should match on both, got %+v", got)
	}
}

func TestEvaluateNearbyCitiesWinsOverRadius(t *testing.T) {
	e := NewEvaluator(0)
	b := houstonBuyer()
	b.SearchRadius = 1
	b.Filter.NearbyCities = append(b.Filter.NearbyCities, "Conroe")

	// Conroe sits ~38 miles from the buyer's coordinates.
	p := listing("P", "conroe", 1000, 5000)
	p.Latitude, p.Longitude = f64(30.3119), f64(-95.4561)

	got := e.Evaluate(p, b)
	if !got.Matches {
		t.Fatalf("nearby city should satisfy location, got %+v", got)
	}
	if got.LocationStrategy != models.LocNearbyCities {
		t.Errorf("LocationStrategy = %q; want %q", got.LocationStrategy, models.LocNearbyCities)
	}
}

func TestEvaluateLocationFallbackChain(t *testing.T) {
	e := NewEvaluator(0)

	tests := []struct {
		name   string
		buyer  func() *models.BuyerProfile
		p      func() *models.PropertyListing
		want   models.LocationStrategy
		reject bool
	}{
		{
			name: "exact city with state spelled out",
			buyer: func() *models.BuyerProfile {
				b := houstonBuyer()
				b.Filter = nil
				b.PreferredState = "Texas"
				return b
			},
			p:    func() *models.PropertyListing { return listing("P", "HOUSTON", 1000, 1000) },
			want: models.LocExactCity,
		},
		{
			name: "radius with default",
			buyer: func() *models.BuyerProfile {
				b := houstonBuyer()
				b.Filter = nil
				b.SearchRadius = 0
				return b
			},
			p: func() *models.PropertyListing {
				p := listing("P", "Pearland", 1000, 1000)
				p.Latitude, p.Longitude = f64(29.5636), f64(-95.2860)
				return p
			},
			want: models.LocRadius,
		},
		{
			name: "bounding box",
			buyer: func() *models.BuyerProfile {
				b := houstonBuyer()
				b.Latitude, b.Longitude = nil, nil
				b.Filter = &models.BuyerFilter{BoundingBox: &models.BoundingBox{
					MinLat: 29, MaxLat: 31, MinLng: -96, MaxLng: -95,
				}}
				return b
			},
			p: func() *models.PropertyListing {
				p := listing("P", "Conroe", 1000, 1000)
				p.Latitude, p.Longitude = f64(30.3119), f64(-95.4561)
				return p
			},
			want: models.LocBoundingBox,
		},
		{
			name: "no coordinates and different city",
			buyer: func() *models.BuyerProfile {
				b := houstonBuyer()
				b.Filter = nil
				return b
			},
			p:      func() *models.PropertyListing { return listing("P", "Katy", 1000, 1000) },
			reject: true,
		},
		{
			name: "same city in another state",
			buyer: func() *models.BuyerProfile {
				b := houstonBuyer()
				b.Filter = nil
				return b
			},
			p: func() *models.PropertyListing {
				p := listing("P", "Houston", 1000, 1000)
				p.State = "MO"
				return p
			},
			reject: true,
		},
		{
			name:  "nearby city name in another state",
			buyer: houstonBuyer,
			p: func() *models.PropertyListing {
				p := listing("P", "Pasadena", 1000, 1000)
				p.State = "CA"
				return p
			},
			reject: true,
		},
	}
	for _, tt := range tests {
		got := e.Evaluate(tt.p(), tt.buyer())
		if tt.reject {
			if got.Matches {
				t.Errorf("%s: expected rejection, got %+v", tt.name, got)
			}
			continue
		}
		if !got.Matches || got.LocationStrategy != tt.want {
			t.Errorf("%s: got strategy %q (matches=%v); want %q", tt.name, got.LocationStrategy, got.Matches, tt.want)
		}
	}
}

func TestEvaluateOptionalCriteria(t *testing.T) {
	e := NewEvaluator(0)

	tests := []struct {
		name    string
		req     models.Requirements
		matches bool
		dims    []models.Dimension
	}{
		{"unset", models.Requirements{}, true, nil},
		{"bedrooms satisfied", models.Requirements{MinBedrooms: intp(3)}, true, []models.Dimension{models.DimBedrooms}},
		{"bedrooms failed", models.Requirements{MinBedrooms: intp(4)}, false, nil},
		{"bath range", models.Requirements{MinBathrooms: f64(1.5), MaxBathrooms: f64(2)}, true, []models.Dimension{models.DimBathrooms}},
		{"sqft too small", models.Requirements{MinSquareFeet: intp(2000)}, false, nil},
		{"price cap", models.Requirements{MaxPrice: f64(150_000)}, false, nil},
		{
			"several satisfied",
			models.Requirements{MaxBedrooms: intp(3), MaxSquareFeet: intp(1600), MinPrice: f64(100_000)},
			true,
			[]models.Dimension{models.DimBedrooms, models.DimSquareFeet, models.DimPrice},
		},
	}
	for _, tt := range tests {
		b := houstonBuyer()
		b.Requirements = tt.req
		got := e.Evaluate(listing("P", "Houston", 1000, 1000), b)
		if got.Matches != tt.matches {
			t.Errorf("%s: Matches = %v; want %v", tt.name, got.Matches, tt.matches)
			continue
		}
		if !tt.matches {
			if len(got.MatchedOn) != 0 {
				t.Errorf("%s: rejected pair should not report dimensions, got %v", tt.name, got.MatchedOn)
			}
			continue
		}
		for _, d := range tt.dims {
			if !got.Has(d) {
				t.Errorf("%s: MatchedOn %v missing %q", tt.name, got.MatchedOn, d)
			}
		}
		if got.Score != 1 {
			t.Errorf("%s: Score = %v; want 1", tt.name, got.Score)
		}
	}
}

func TestEvaluateInactiveListing(t *testing.T) {
	e := NewEvaluator(0)
	p := listing("P", "Houston", 1000, 1000)
	for _, s := range []models.PropertyStatus{models.StatusPending, models.StatusSold, models.StatusArchived} {
		p.Status = s
		if e.Evaluate(p, houstonBuyer()).Matches {
			t.Errorf("status %q should never match", s)
		}
	}
	if e.Evaluate(nil, houstonBuyer()).Matches || e.Evaluate(listing("P", "Houston", 1, 1), nil).Matches {
		t.Errorf("nil inputs should not match")
	}
}

func TestMatchingBuyersOrdersFullMatchesFirst(t *testing.T) {
	e := NewEvaluator(0)
	monthlyOnly := houstonBuyer()
	monthlyOnly.ID = "monthly"
	monthlyOnly.MaxDownPayment = 100

	full := houstonBuyer()
	full.ID = "full"

	inactive := houstonBuyer()
	inactive.ID = "inactive"
	inactive.IsActive = false

	poor := houstonBuyer()
	poor.ID = "poor"
	poor.MaxMonthlyPayment, poor.MaxDownPayment = 10, 10

	got := e.MatchingBuyers(listing("P", "Houston", 1200, 9000), []*models.BuyerProfile{monthlyOnly, full, inactive, poor})
	if len(got) != 2 {
		t.Fatalf("got %d matches; want 2", len(got))
	}
	if got[0].Buyer.ID != "full" || got[1].Buyer.ID != "monthly" {
		t.Errorf("order = [%s %s]; want [full monthly]", got[0].Buyer.ID, got[1].Buyer.ID)
	}
}
