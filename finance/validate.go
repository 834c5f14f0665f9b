package finance

import (
	"fmt"
	"math"
)

// DriftTolerancePercent is how far a stored payment may stray from the
// recomputed one before it is flagged.
const DriftTolerancePercent = 5.0

// Report is the outcome of Validate. Warnings never make it invalid.
type Report struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Validate sanity-checks completed financials. A payment that drifts more
// than DriftTolerancePercent from the recomputed amortized payment is a
// warning, not an error, so stale or hand-edited figures still go through.
func Validate(f Financials) Report {
	var errs, warns []string

	if f.ListPrice <= 0 {
		errs = append(errs, "List price must be greater than 0")
	}
	if f.ListPrice > 10_000_000 {
		warns = append(warns, "List price seems unusually high (>$10M)")
	}

	if f.DownPaymentAmount < 0 {
		errs = append(errs, "Down payment cannot be negative")
	}
	if f.ListPrice > 0 && f.DownPaymentAmount >= f.ListPrice {
		errs = append(errs, "Down payment cannot be greater than list price")
	}
	if f.DownPaymentPercent > 95 {
		warns = append(warns, "Down payment percentage seems very high (>95%)")
	}

	if f.MonthlyPayment <= 0 {
		errs = append(errs, "Monthly payment must be greater than 0")
	}

	if f.InterestRate < 0 || f.InterestRate > MaxInterest {
		errs = append(errs, "Interest rate must be between 0% and 50%")
	}
	if f.InterestRate > 15 {
		warns = append(warns, "Interest rate seems high (>15%) - verify this is correct")
	}

	if f.TermDisclosed && (f.TermYears < MinTermYears || f.TermYears > MaxTermYears) {
		errs = append(errs, "Loan term must be between 1 and 50 years")
	}

	if drift, expected, ok := PaymentDrift(f); ok && drift > DriftTolerancePercent {
		warns = append(warns, fmt.Sprintf(
			"Monthly payment may be incorrect. Expected ~$%.2f but got $%.2f", expected, f.MonthlyPayment))
	}

	return Report{Valid: len(errs) == 0, Errors: errs, Warnings: warns}
}

// PaymentDrift recomputes the payment from the loan, rate and term and
// returns the percentage difference from the stored payment. ok is false
// when there is nothing to compare.
func PaymentDrift(f Financials) (drift, expected float64, ok bool) {
	rate := f.InterestRate
	if !f.RateDisclosed {
		rate = f.EffectiveRate
	}
	term := f.TermYears
	if !f.TermDisclosed {
		term = f.EffectiveTerm
	}
	if f.MonthlyPayment <= 0 || f.LoanAmount <= 0 || term <= 0 {
		return 0, 0, false
	}
	expected = MonthlyPayment(f.LoanAmount, rate, term)
	return math.Abs(expected-f.MonthlyPayment) / f.MonthlyPayment * 100, expected, true
}
