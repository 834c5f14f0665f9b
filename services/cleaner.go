package services

import (
	"strings"
	"time"
	"unicode"

	"leadmarket/finance"
	"leadmarket/geo"
	"leadmarket/models"
	"leadmarket/utils"
)

// Cleaner normalises stored listings and completes their financing terms
// so the evaluator only ever sees consistent records.
type Cleaner struct {
	logger *utils.Logger
	now    func() time.Time
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger, now: time.Now}
}

// Clean returns normalised copies of the listings that can be matched.
// Listings without an ID, city or state, or without a positive list price
// are dropped, as are repeated IDs.
func (c *Cleaner) Clean(raw []*models.PropertyListing) []*models.PropertyListing {
	seen := make(map[string]struct{})
	result := make([]*models.PropertyListing, 0, len(raw))

	for _, r := range raw {
		if r == nil {
			continue
		}
		id := strings.TrimSpace(r.ID)
		if id == "" {
			c.logger.Warn("[cleaner] Dropping listing with empty ID: %s", r.Address)
			continue
		}
		if _, dup := seen[id]; dup {
			c.logger.Debug("[cleaner] Duplicate listing skipped: %s", id)
			continue
		}
		seen[id] = struct{}{}

		l := *r
		l.ID = id
		l.Address = normaliseText(r.Address)
		l.City = normaliseText(r.City)
		l.State = geo.NormalizeState(r.State)
		l.ZipCode = strings.TrimSpace(r.ZipCode)
		l.NearbyCities = normaliseCities(r.NearbyCities)
		if l.Status == "" {
			l.Status = models.StatusActive
		}

		if l.City == "" || geo.IsUnsetState(l.State) {
			c.logger.Warn("[cleaner] Dropping listing %s: missing city or state", id)
			continue
		}
		if l.ListPrice <= 0 {
			c.logger.Warn("[cleaner] Dropping listing %s: list price %.2f", id, l.ListPrice)
			continue
		}

		c.completeTerms(&l)
		l.UpdatedAt = c.now()
		result = append(result, &l)
	}

	c.logger.Info("[cleaner] Cleaned %d → %d listings (dropped %d)",
		len(raw), len(result), len(raw)-len(result))
	return result
}

// completeTerms fills the payment fields the seller left out. The seller's
// own figures are kept; drift against the recomputed payment is only
// logged.
func (c *Cleaner) completeTerms(l *models.PropertyListing) {
	f := finance.Complete(finance.Input{
		ListPrice:          l.ListPrice,
		DownPaymentAmount:  given(l.DownPaymentAmount),
		DownPaymentPercent: given(l.DownPaymentPercent),
		MonthlyPayment:     given(l.MonthlyPayment),
		InterestRate:       given(l.InterestRate),
		TermYears:          given(l.TermYears),
		BalloonPayment:     l.BalloonPayment,
		BalloonYears:       l.BalloonYears,
	})

	report := finance.Validate(f)
	for _, w := range report.Warnings {
		c.logger.Warn("[cleaner] Listing %s: %s", l.ID, w)
	}
	for _, e := range report.Errors {
		c.logger.Warn("[cleaner] Listing %s: %s", l.ID, e)
	}

	l.DownPaymentAmount = f.DownPaymentAmount
	l.DownPaymentPercent = f.DownPaymentPercent
	l.LoanAmount = f.LoanAmount
	l.MonthlyPayment = f.MonthlyPayment
	l.InterestRate = f.InterestRate
	l.TermYears = f.TermYears
	l.BalloonPayment = f.BalloonPayment
	l.BalloonYears = f.BalloonYears
}

func given(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return &v
}

func normaliseCities(cities []string) []string {
	if len(cities) == 0 {
		return nil
	}
	out := make([]string, 0, len(cities))
	seen := make(map[string]struct{}, len(cities))
	for _, c := range cities {
		c = normaliseText(c)
		key := strings.ToLower(c)
		if c == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// normaliseText strips leading/trailing whitespace and collapses internal whitespace.
func normaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
