package finance

import (
	"strings"
	"testing"
)

func TestValidateCompletedFinancials(t *testing.T) {
	f := Complete(Input{ListPrice: 250_000, InterestRate: ptr(6), TermYears: ptr(30)})
	r := Validate(f)
	if !r.Valid {
		t.Errorf("expected valid, errors: %v", r.Errors)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings, got %v", r.Warnings)
	}
}

func TestValidateFlagsDriftAsWarning(t *testing.T) {
	f := Complete(Input{ListPrice: 250_000, InterestRate: ptr(6), TermYears: ptr(30)})
	f.MonthlyPayment *= 1.2

	r := Validate(f)
	if !r.Valid {
		t.Errorf("drift must not invalidate, errors: %v", r.Errors)
	}
	found := false
	for _, w := range r.Warnings {
		if strings.Contains(w, "Monthly payment may be incorrect") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected drift warning, got %v", r.Warnings)
	}
}

func TestValidateSmallDriftPasses(t *testing.T) {
	f := Complete(Input{ListPrice: 250_000, InterestRate: ptr(6), TermYears: ptr(30)})
	f.MonthlyPayment *= 1.03

	if drift, _, ok := PaymentDrift(f); !ok || drift > DriftTolerancePercent {
		t.Errorf("3%% drift should be tolerated, got %v (ok=%v)", drift, ok)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		f    Financials
		want string
	}{
		{"zero price", Financials{ListPrice: 0, MonthlyPayment: 100}, "List price"},
		{"down over price", Financials{ListPrice: 100, DownPaymentAmount: 100, MonthlyPayment: 1}, "Down payment cannot be greater"},
		{"no payment", Financials{ListPrice: 100_000}, "Monthly payment must be"},
		{"bad term", Financials{ListPrice: 100_000, MonthlyPayment: 900, TermYears: 0.5, TermDisclosed: true}, "Loan term"},
	}
	for _, tt := range tests {
		r := Validate(tt.f)
		if r.Valid {
			t.Errorf("%s: expected invalid", tt.name)
			continue
		}
		if !strings.Contains(strings.Join(r.Errors, "|"), tt.want) {
			t.Errorf("%s: errors %v missing %q", tt.name, r.Errors, tt.want)
		}
	}
}

func TestValidateUndisclosedTermIsNotAnError(t *testing.T) {
	f := Complete(Input{ListPrice: 180_000, MonthlyPayment: ptr(1_300)})
	r := Validate(f)
	for _, e := range r.Errors {
		if strings.Contains(e, "Loan term") {
			t.Errorf("undisclosed term should not be an error: %v", r.Errors)
		}
	}
}
