package services

import (
	"testing"

	"leadmarket/finance"
	"leadmarket/models"
	"leadmarket/utils"
)

func newTestLogger() *utils.Logger { return utils.NopLogger() }

func TestCleanerNormalisesText(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.PropertyListing{{
		ID:           " p1 ",
		Address:      "  12   Elm\tSt ",
		City:         " Sugar   Land",
		State:        "texas",
		ListPrice:    200_000,
		NearbyCities: []string{"Houston", " houston ", "", "Missouri  City"},
	}}

	got := c.Clean(raw)
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
	l := got[0]
	if l.ID != "p1" || l.Address != "12 Elm St" || l.City != "Sugar Land" || l.State != "TX" {
		t.Errorf("normalised = %q %q %q %q", l.ID, l.Address, l.City, l.State)
	}
	if len(l.NearbyCities) != 2 || l.NearbyCities[1] != "Missouri City" {
		t.Errorf("NearbyCities = %v", l.NearbyCities)
	}
	if l.Status != models.StatusActive {
		t.Errorf("Status = %q; want active by default", l.Status)
	}
	if raw[0].City != " Sugar   Land" {
		t.Errorf("input listing was modified")
	}
}

func TestCleanerCompletesTerms(t *testing.T) {
	c := NewCleaner(newTestLogger())
	got := c.Clean([]*models.PropertyListing{{ID: "p1", City: "Houston", State: "TX", ListPrice: 200_000}})
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
	l := got[0]
	if l.DownPaymentAmount != 20_000 || l.DownPaymentPercent != 10 || l.LoanAmount != 180_000 {
		t.Errorf("down/loan = %v / %v%% / %v", l.DownPaymentAmount, l.DownPaymentPercent, l.LoanAmount)
	}
	if want := finance.MonthlyPayment(180_000, finance.DefaultInterestRate, 20); l.MonthlyPayment != want {
		t.Errorf("MonthlyPayment = %v; want %v", l.MonthlyPayment, want)
	}
	if l.InterestRate != 0 || l.TermYears != 0 {
		t.Errorf("undisclosed terms surfaced: rate=%v term=%v", l.InterestRate, l.TermYears)
	}
}

func TestCleanerKeepsSellerPayment(t *testing.T) {
	c := NewCleaner(newTestLogger())
	got := c.Clean([]*models.PropertyListing{{
		ID: "p1", City: "Houston", State: "TX",
		ListPrice: 150_000, DownPaymentAmount: 15_000, MonthlyPayment: 1_200, InterestRate: 8,
	}})
	if len(got) != 1 {
		t.Fatalf("expected 1 listing, got %d", len(got))
	}
	if got[0].MonthlyPayment != 1_200 || got[0].InterestRate != 8 {
		t.Errorf("seller terms changed: %v / %v", got[0].MonthlyPayment, got[0].InterestRate)
	}
}

func TestCleanerDropsUnmatchable(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.PropertyListing{
		{ID: "", City: "Houston", State: "TX", ListPrice: 100_000},
		{ID: "no-city", City: " ", State: "TX", ListPrice: 100_000},
		{ID: "no-state", City: "Houston", State: "Not Set", ListPrice: 100_000},
		{ID: "free", City: "Houston", State: "TX", ListPrice: 0},
		nil,
		{ID: "ok", City: "Houston", State: "TX", ListPrice: 100_000},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 1 || cleaned[0].ID != "ok" {
		t.Errorf("expected only listing ok to survive, got %d", len(cleaned))
	}
}

func TestCleanerDeduplicatesIDs(t *testing.T) {
	c := NewCleaner(newTestLogger())
	raw := []*models.PropertyListing{
		{ID: "p1", Address: "A", City: "Houston", State: "TX", ListPrice: 100_000},
		{ID: "p1 ", Address: "B", City: "Houston", State: "TX", ListPrice: 100_000},
	}

	cleaned := c.Clean(raw)
	if len(cleaned) != 1 {
		t.Fatalf("expected 1 listing after dedup, got %d", len(cleaned))
	}
	if cleaned[0].Address != "A" {
		t.Errorf("dedup should keep the first record, got %q", cleaned[0].Address)
	}
}

func TestNormaliseText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  hello   world  ", "hello world"},
		{"\tfoo\nbar\t", "foo bar"},
		{"", ""},
		{"single", "single"},
	}
	for _, tt := range tests {
		got := normaliseText(tt.in)
		if got != tt.want {
			t.Errorf("normaliseText(%q) = %q; want %q", tt.in, got, tt.want)
		}
	}
}
