package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrLeadAlreadyTaken    = errors.New("lead no longer available")
	ErrRateLimitExceeded   = errors.New("rate limit exceeded")
	ErrTransientStore      = errors.New("store temporarily unavailable")
	ErrClaimExists         = errors.New("notification already claimed")
	// ErrConflict is returned by a store when an optimistic commit lost a
	// race. It is retried inside the ledger and never surfaced as-is.
	ErrConflict = errors.New("transaction conflict")
)

// ValidationError rejects malformed input before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError names the missing entity. errors.Is(err, ErrNotFound) holds.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// RateLimitError carries when the brand's window resets.
type RateLimitError struct {
	Brand   string
	Service string
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s:%s, resets at %s",
		e.Brand, e.Service, e.ResetAt.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimitExceeded }

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
