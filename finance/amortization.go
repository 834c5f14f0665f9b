// Package finance completes owner-financing terms from whichever subset of
// fields a seller supplied.
package finance

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	// DefaultInterestRate is used for internal math when the seller gave no
	// rate. It is never surfaced.
	DefaultInterestRate = 7.0
	// DefaultDownPaymentPercent applies when neither down payment field is
	// given.
	DefaultDownPaymentPercent = 10.0
	// MaxTermYears caps reverse-solved and clamped terms.
	MaxTermYears = 50.0
	MinTermYears = 1.0
	MaxInterest  = 50.0
)

// Input is what a seller supplied. Nil means not provided; a provided
// non-positive value is treated as not provided.
type Input struct {
	ListPrice          float64
	DownPaymentAmount  *float64
	DownPaymentPercent *float64
	MonthlyPayment     *float64
	InterestRate       *float64
	TermYears          *float64
	BalloonPayment     *float64
	BalloonYears       *float64
}

// Financials are the completed terms. InterestRate and TermYears are zero
// when the seller did not disclose them ("contact seller"); RateDisclosed
// and TermDisclosed say so explicitly.
type Financials struct {
	ListPrice          float64
	DownPaymentAmount  float64
	DownPaymentPercent float64
	LoanAmount         float64
	MonthlyPayment     float64
	InterestRate       float64
	TermYears          float64
	RateDisclosed      bool
	TermDisclosed      bool
	BalloonPayment     *float64
	BalloonYears       *float64

	// Values used for the computation, disclosed or not.
	EffectiveRate float64
	EffectiveTerm float64
}

// DefaultTermYears is the amortization period assumed for a list price.
func DefaultTermYears(listPrice float64) float64 {
	switch {
	case listPrice < 150_000:
		return 15
	case listPrice < 300_000:
		return 20
	case listPrice < 600_000:
		return 25
	default:
		return 30
	}
}

// Complete fills in the missing financial fields. It is pure and
// deterministic.
func Complete(in Input) Financials {
	listPrice := math.Max(0, in.ListPrice)
	downAmount := positive(in.DownPaymentAmount)
	downPercent := positive(in.DownPaymentPercent)

	if listPrice > 0 {
		switch {
		case downAmount > 0 && downPercent == 0:
			downPercent = downAmount / listPrice * 100
		case downPercent > 0 && downAmount == 0:
			downAmount = listPrice * downPercent / 100
		case downAmount == 0 && downPercent == 0:
			downPercent = DefaultDownPaymentPercent
			downAmount = listPrice * DefaultDownPaymentPercent / 100
		}
		if downAmount > listPrice {
			downAmount, downPercent = listPrice, 100
		}
	}
	loan := listPrice - downAmount

	providedPayment := positive(in.MonthlyPayment)
	providedRate := positive(in.InterestRate)
	providedTerm := positive(in.TermYears)
	rateGiven := providedRate > 0
	termGiven := providedTerm > 0

	f := Financials{
		ListPrice:      listPrice,
		BalloonPayment: in.BalloonPayment,
		BalloonYears:   in.BalloonYears,
		RateDisclosed:  rateGiven,
		TermDisclosed:  termGiven,
	}
	if rateGiven {
		f.InterestRate = providedRate
	}
	if termGiven {
		f.TermYears = providedTerm
	}

	switch {
	case providedPayment > 0:
		f.MonthlyPayment = providedPayment
		f.EffectiveRate = orDefault(providedRate, DefaultInterestRate)
		if rateGiven && loan > 0 {
			f.EffectiveTerm = TermYears(providedPayment, loan, providedRate)
		} else {
			f.EffectiveTerm = orDefault(providedTerm, DefaultTermYears(listPrice))
		}

	case rateGiven && termGiven:
		f.EffectiveRate = providedRate
		f.EffectiveTerm = providedTerm
		if loan > 0 {
			f.MonthlyPayment = MonthlyPayment(loan, providedRate, providedTerm)
		}

	case rateGiven:
		f.EffectiveRate = providedRate
		f.EffectiveTerm = DefaultTermYears(listPrice)
		if loan > 0 {
			f.MonthlyPayment = MonthlyPayment(loan, providedRate, f.EffectiveTerm)
		}

	default:
		f.EffectiveRate = DefaultInterestRate
		f.EffectiveTerm = orDefault(providedTerm, DefaultTermYears(listPrice))
		if loan > 0 {
			f.MonthlyPayment = MonthlyPayment(loan, f.EffectiveRate, f.EffectiveTerm)
		}
	}

	f.DownPaymentAmount = math.Max(0, downAmount)
	f.DownPaymentPercent = clamp(downPercent, 0, 100)
	f.LoanAmount = math.Max(0, loan)
	f.MonthlyPayment = math.Max(0, f.MonthlyPayment)
	f.InterestRate = clamp(f.InterestRate, 0, MaxInterest)
	if f.TermYears > 0 {
		f.TermYears = clamp(f.TermYears, MinTermYears, MaxTermYears)
	}
	return f
}

// MonthlyPayment is the standard amortized payment
// M = P·[r(1+r)^n]/[(1+r)^n − 1], rounded to the cent. A zero rate spreads
// the loan evenly.
func MonthlyPayment(loanAmount, annualRate, termYears float64) float64 {
	if loanAmount <= 0 || annualRate < 0 || termYears <= 0 {
		return 0
	}
	r := annualRate / 100 / 12
	n := termYears * 12
	if r == 0 {
		return roundCents(loanAmount / n)
	}
	g := math.Pow(1+r, n)
	return roundCents(loanAmount * r * g / (g - 1))
}

// LoanAmount is the principal a monthly payment retires over the term,
// rounded to the cent.
func LoanAmount(monthlyPayment, annualRate, termYears float64) float64 {
	if monthlyPayment <= 0 || annualRate < 0 || termYears <= 0 {
		return 0
	}
	r := annualRate / 100 / 12
	n := termYears * 12
	if r == 0 {
		return roundCents(monthlyPayment * n)
	}
	g := math.Pow(1+r, n)
	return roundCents(monthlyPayment * (g - 1) / (r * g))
}

// TermYears solves n = log(M / (M − P·r)) / log(1+r) for the term in years.
// A payment that does not cover the first month's interest saturates at
// MaxTermYears. The result is not rounded; use RoundTerm for display.
func TermYears(monthlyPayment, loanAmount, annualRate float64) float64 {
	if monthlyPayment <= 0 || loanAmount <= 0 || annualRate < 0 {
		return 0
	}
	r := annualRate / 100 / 12
	if r == 0 {
		return math.Min(loanAmount/monthlyPayment/12, MaxTermYears)
	}
	if monthlyPayment <= loanAmount*r {
		return MaxTermYears
	}
	n := math.Log(monthlyPayment/(monthlyPayment-loanAmount*r)) / math.Log(1+r)
	return math.Min(n/12, MaxTermYears)
}

// RoundTerm rounds a term to one decimal place.
func RoundTerm(years float64) float64 {
	return decimal.NewFromFloat(years).Round(1).InexactFloat64()
}

// TotalInterest is the interest paid over the disclosed or effective term.
func TotalInterest(f Financials) float64 {
	term := f.TermYears
	if term <= 0 {
		term = f.EffectiveTerm
	}
	return roundCents(f.MonthlyPayment*term*12 - f.LoanAmount)
}

// LoanToValue returns the loan as a percentage of list price.
func LoanToValue(f Financials) float64 {
	if f.ListPrice <= 0 {
		return 0
	}
	return f.LoanAmount / f.ListPrice * 100
}

func roundCents(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

func positive(p *float64) float64 {
	if p == nil || *p <= 0 || math.IsNaN(*p) {
		return 0
	}
	return *p
}

func orDefault(v, def float64) float64 {
	if v > 0 {
		return v
	}
	return def
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
