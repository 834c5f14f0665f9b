package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadmarket/models"
	"leadmarket/storage"
	"leadmarket/utils"
)

// Dispatcher delivers a notification. Retries are its own business.
type Dispatcher interface {
	Dispatch(ctx context.Context, n models.Notification) error
}

// Notifier tells buyers about matching properties at most once per
// (buyer, property). A claim is taken before sending and released if the
// send fails so a later run can try again.
type Notifier struct {
	claims       storage.ClaimStore
	dispatcher   Dispatcher
	dashboardURL string
	logger       *utils.Logger
	now          func() time.Time
}

// NewNotifier creates a Notifier.
func NewNotifier(claims storage.ClaimStore, dispatcher Dispatcher, dashboardURL string, logger *utils.Logger) *Notifier {
	return &Notifier{
		claims:       claims,
		dispatcher:   dispatcher,
		dashboardURL: dashboardURL,
		logger:       logger,
		now:          time.Now,
	}
}

// Notify sends buyer a message about p. Buyers without a phone number or
// with SMS turned off are skipped, as are pairs already claimed.
func (n *Notifier) Notify(ctx context.Context, b *models.BuyerProfile, p *models.PropertyListing, match models.MatchResult, trigger string) (models.SyncOutcome, error) {
	if strings.TrimSpace(b.Phone) == "" || !b.SMSNotifications {
		n.logger.Debug("[notify] Skipping buyer %s: no phone or SMS disabled", b.ID)
		return models.OutcomeSkipped, nil
	}

	err := n.claims.CreateClaim(ctx, models.NotificationClaim{
		BuyerID:    b.ID,
		PropertyID: p.ID,
		Status:     models.ClaimPending,
		ClaimedAt:  n.now(),
	})
	if errors.Is(err, models.ErrClaimExists) {
		n.logger.Debug("[notify] Buyer %s already notified about %s", b.ID, p.ID)
		return models.OutcomeDuplicate, nil
	}
	if err != nil {
		return models.OutcomeFailed, fmt.Errorf("notify: claim %s: %w", models.ClaimKey(b.ID, p.ID), err)
	}

	if err := n.dispatcher.Dispatch(ctx, n.message(b, p, match, trigger)); err != nil {
		if delErr := n.claims.DeleteClaim(ctx, b.ID, p.ID); delErr != nil {
			n.logger.Error("[notify] Could not release claim %s: %v", models.ClaimKey(b.ID, p.ID), delErr)
		}
		return models.OutcomeFailed, fmt.Errorf("notify: send to buyer %s: %w", b.ID, err)
	}

	if err := n.claims.MarkClaimSent(ctx, b.ID, p.ID, n.now()); err != nil {
		// The message is out; a stale pending claim still blocks duplicates.
		n.logger.Warn("[notify] Sent to buyer %s but could not mark claim: %v", b.ID, err)
	}
	return models.OutcomeNotified, nil
}

func (n *Notifier) message(b *models.BuyerProfile, p *models.PropertyListing, match models.MatchResult, trigger string) models.Notification {
	return models.Notification{
		BuyerID:        b.ID,
		BuyerName:      strings.TrimSpace(b.FirstName + " " + b.LastName),
		BuyerPhone:     b.Phone,
		BuyerEmail:     b.Email,
		PropertyID:     p.ID,
		Address:        p.Address,
		City:           p.City,
		State:          p.State,
		ListPrice:      p.ListPrice,
		MonthlyPayment: p.MonthlyPayment,
		DownPayment:    p.DownPaymentAmount,
		Bedrooms:       p.Bedrooms,
		Bathrooms:      p.Bathrooms,
		BudgetTag:      match.BudgetMatchType.Label(),
		DashboardURL:   n.dashboardURL,
		Trigger:        trigger,
	}
}
