package notify

import (
	"context"
	"errors"

	"leadmarket/ledger"
	"leadmarket/models"
)

// Multi sends each notification through every dispatcher. It fails only
// when all of them fail.
type Multi []ledger.Dispatcher

// Dispatch implements ledger.Dispatcher.
func (m Multi) Dispatch(ctx context.Context, n models.Notification) error {
	if len(m) == 0 {
		return errors.New("notify: no dispatchers configured")
	}
	var errs []error
	for _, d := range m {
		if err := d.Dispatch(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m) {
		return errors.Join(errs...)
	}
	return nil
}

// LogOnly records notifications instead of sending them.
type LogOnly struct {
	Logf func(format string, args ...any)
}

// Dispatch implements ledger.Dispatcher.
func (l LogOnly) Dispatch(_ context.Context, n models.Notification) error {
	l.Logf("[notify] (dry run) to %s about %s: %s", n.BuyerID, n.PropertyID, FormatMessage(n))
	return nil
}
