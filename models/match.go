package models

import "time"

// BudgetMatchType records which budget ceiling(s) a property fits under.
type BudgetMatchType string

const (
	BudgetBoth        BudgetMatchType = "both"
	BudgetMonthlyOnly BudgetMatchType = "monthly_only"
	BudgetDownOnly    BudgetMatchType = "down_only"
	BudgetNeither     BudgetMatchType = "neither"
)

// Label is the tag shown next to a partially matching property.
func (t BudgetMatchType) Label() string {
	switch t {
	case BudgetBoth:
		return "Full Match"
	case BudgetMonthlyOnly:
		return "Low Monthly Payment"
	case BudgetDownOnly:
		return "Low Down Payment"
	default:
		return ""
	}
}

// Dimension is one criterion the evaluator checked.
type Dimension string

const (
	DimLocation       Dimension = "location"
	DimMonthlyPayment Dimension = "monthly_payment"
	DimDownPayment    Dimension = "down_payment"
	DimBedrooms       Dimension = "bedrooms"
	DimBathrooms      Dimension = "bathrooms"
	DimSquareFeet     Dimension = "square_feet"
	DimPrice          Dimension = "price"
)

// LocationStrategy is the fallback step that satisfied the location check.
type LocationStrategy string

const (
	LocNone         LocationStrategy = ""
	LocNearbyCities LocationStrategy = "nearby_cities"
	LocExactCity    LocationStrategy = "exact_city"
	LocRadius       LocationStrategy = "radius"
	LocBoundingBox  LocationStrategy = "bounding_box"
)

// MatchResult is the outcome of evaluating one property against one buyer.
type MatchResult struct {
	Matches          bool
	Score            float64
	MatchedOn        []Dimension
	BudgetMatchType  BudgetMatchType
	LocationStrategy LocationStrategy
}

// Has reports whether d is among the matched dimensions.
func (r MatchResult) Has(d Dimension) bool {
	for _, m := range r.MatchedOn {
		if m == d {
			return true
		}
	}
	return false
}

// ScoredLead is a buyer lead ranked for an agent. Buyer has contact fields
// redacted.
type ScoredLead struct {
	Buyer             *BuyerProfile
	Score             float64
	MatchedProperties int
	ExactCityMatches  int
	NearbyMatches     int
	Reasons           []string
	LeadPrice         int
}

// SyncOutcome is what the match sync did for one matched pair.
type SyncOutcome string

const (
	OutcomeNotified    SyncOutcome = "notified"
	OutcomeDuplicate   SyncOutcome = "duplicate"
	OutcomeSkipped     SyncOutcome = "skipped"
	OutcomeRateLimited SyncOutcome = "rate_limited"
	OutcomeFailed      SyncOutcome = "failed"
)

// MatchRecord is one matched (property, buyer) pair seen by the sync job.
type MatchRecord struct {
	PropertyID       string
	Address          string
	City             string
	State            string
	BuyerID          string
	BuyerName        string
	MonthlyPayment   float64
	DownPayment      float64
	BudgetMatchType  BudgetMatchType
	LocationStrategy LocationStrategy
	Outcome          SyncOutcome
	At               time.Time
}

// PropertyMatchCount is how many buyers one property matched.
type PropertyMatchCount struct {
	PropertyID string
	Address    string
	City       string
	State      string
	Matches    int
}

// SyncReport summarises one match sync run.
type SyncReport struct {
	PropertiesScanned int
	TotalMatches      int
	UniqueBuyers      int
	ByBudget          map[BudgetMatchType]int
	ByStrategy        map[LocationStrategy]int
	ByCity            map[string]int
	ByOutcome         map[SyncOutcome]int
	TopProperties     []PropertyMatchCount
}
