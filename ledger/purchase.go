// Package ledger is the marketplace side of lead matching: atomic lead
// purchases and credit movements, notification dedup claims, and the
// per-brand rate limiter.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"leadmarket/models"
	"leadmarket/storage"
	"leadmarket/utils"
)

// Store is the persistence the Ledger needs.
type Store interface {
	storage.TxRunner
	ListTransactions(ctx context.Context, agentID string) ([]models.Transaction, error)
}

// Ledger moves credits and leads between agents and buyers. Every
// operation commits all of its writes or none.
type Ledger struct {
	store  Store
	retry  utils.RetryConfig
	logger *utils.Logger
	now    func() time.Time
	newID  func() string
}

// New creates a Ledger. Lost optimistic commits and transient store
// failures are retried up to maxAttempts times in total, starting at
// baseDelay and doubling.
func New(store Store, maxAttempts int, baseDelay time.Duration, logger *utils.Logger) *Ledger {
	return &Ledger{
		store: store,
		retry: utils.RetryConfig{
			MaxAttempts: maxAttempts,
			BaseDelay:   baseDelay,
			MaxDelay:    2 * time.Second,
			Jitter:      0.5,
			Retryable:   retryable,
			Logger:      logger,
		},
		logger: logger,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

func retryable(err error) bool {
	return errors.Is(err, models.ErrConflict) || errors.Is(err, models.ErrTransientStore)
}

// run executes fn in a transaction with retries. Business-rule failures
// come back untouched; exhausted retries and unrecognised store errors
// surface as ErrTransientStore.
func (l *Ledger) run(ctx context.Context, op string, fn func(tx storage.Tx) error) error {
	err := l.retry.DoContext(ctx, op, func(ctx context.Context) error {
		return l.store.RunInTx(ctx, fn)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, models.ErrConflict) {
		return fmt.Errorf("ledger: %s: %w: %v", op, models.ErrTransientStore, err)
	}
	if errors.Is(err, models.ErrTransientStore) {
		return fmt.Errorf("ledger: %s: %w", op, err)
	}
	if businessError(err) {
		return err
	}
	return fmt.Errorf("ledger: %s: %w: %w", op, models.ErrTransientStore, err)
}

// businessError reports the outcomes callers act on directly.
func businessError(err error) bool {
	return models.IsValidation(err) ||
		errors.Is(err, models.ErrNotFound) ||
		errors.Is(err, models.ErrInsufficientCredits) ||
		errors.Is(err, models.ErrLeadAlreadyTaken)
}

// PurchaseLead sells the buyer's lead to the agent. It fails with
// ErrInsufficientCredits when the agent cannot cover the lead price and
// with ErrLeadAlreadyTaken when someone else got there first; neither is
// retried. The buyer's contact details are returned only after commit.
func (l *Ledger) PurchaseLead(ctx context.Context, buyerID, agentID string) (*models.PurchaseResult, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, &models.ValidationError{Field: "buyerId", Reason: "required"}
	}
	if strings.TrimSpace(agentID) == "" {
		return nil, &models.ValidationError{Field: "agentId", Reason: "required"}
	}

	var result *models.PurchaseResult
	err := l.run(ctx, "purchase lead "+buyerID, func(tx storage.Tx) error {
		result = nil

		agent, err := tx.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		buyer, err := tx.GetBuyer(ctx, buyerID)
		if err != nil {
			return err
		}

		price := buyer.EffectiveLeadPrice()
		if agent.Credits < price {
			return fmt.Errorf("%w: have %d, lead costs %d", models.ErrInsufficientCredits, agent.Credits, price)
		}
		if !buyer.IsAvailableForPurchase || buyer.PurchasedBy != "" {
			return models.ErrLeadAlreadyTaken
		}

		now := l.now()
		balance := agent.Credits - price
		txn := models.Transaction{
			ID:             l.newID(),
			AgentID:        agent.ID,
			Type:           models.TxLeadPurchase,
			Description:    "Purchased lead: " + leadName(buyer),
			CreditsChange:  -price,
			RunningBalance: balance,
			RelatedID:      buyer.ID,
			CreatedAt:      now,
		}
		purchase := models.LeadPurchase{
			ID:            l.newID(),
			AgentID:       agent.ID,
			BuyerID:       buyer.ID,
			CreditsCost:   price,
			Status:        models.PurchasePurchased,
			TransactionID: txn.ID,
			PurchasedAt:   now,
			UpdatedAt:     now,
		}

		buyer.IsAvailableForPurchase = false
		buyer.PurchasedBy = agent.ID
		buyer.PurchasedAt = &now
		agent.Credits = balance

		if err := tx.UpdateBuyer(ctx, buyer); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &txn); err != nil {
			return err
		}
		if err := tx.InsertPurchase(ctx, &purchase); err != nil {
			return err
		}
		if err := tx.UpdateAgent(ctx, agent); err != nil {
			return err
		}

		result = &models.PurchaseResult{
			Purchase:         purchase,
			Transaction:      txn,
			Contact:          buyer.Contact(),
			NewCreditBalance: balance,
		}
		return nil
	})
	if err != nil {
		l.logger.Warn("[ledger] Agent %s could not buy lead %s: %v", agentID, buyerID, err)
		return nil, err
	}

	l.logger.Info("[ledger] Agent %s bought lead %s for %d credit(s), balance %d",
		agentID, buyerID, result.Purchase.CreditsCost, result.NewCreditBalance)
	return result, nil
}

// AddCredits grants credits to an agent and records why.
func (l *Ledger) AddCredits(ctx context.Context, agentID string, credits int, typ models.TransactionType, relatedID, description string) (*models.Transaction, error) {
	if credits <= 0 {
		return nil, &models.ValidationError{Field: "credits", Reason: "must be positive"}
	}
	switch typ {
	case models.TxCreditPurchase, models.TxSubscriptionCredit, models.TxTrialCredit:
	default:
		return nil, &models.ValidationError{Field: "type", Reason: fmt.Sprintf("%q does not add credits", typ)}
	}

	var txn *models.Transaction
	err := l.run(ctx, "add credits "+agentID, func(tx storage.Tx) error {
		agent, err := tx.GetAgent(ctx, agentID)
		if err != nil {
			return err
		}
		agent.Credits += credits
		t := models.Transaction{
			ID:             l.newID(),
			AgentID:        agent.ID,
			Type:           typ,
			Description:    description,
			CreditsChange:  credits,
			RunningBalance: agent.Credits,
			RelatedID:      relatedID,
			CreatedAt:      l.now(),
		}
		if err := tx.InsertTransaction(ctx, &t); err != nil {
			return err
		}
		if err := tx.UpdateAgent(ctx, agent); err != nil {
			return err
		}
		txn = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("[ledger] Agent %s +%d credits (%s), balance %d", agentID, credits, typ, txn.RunningBalance)
	return txn, nil
}

// RefundLead reverses a purchase after a dispute: the agent gets the
// credits back and the lead returns to the marketplace.
func (l *Ledger) RefundLead(ctx context.Context, purchaseID, reason string) (*models.Transaction, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, &models.ValidationError{Field: "reason", Reason: "required"}
	}

	var txn *models.Transaction
	err := l.run(ctx, "refund purchase "+purchaseID, func(tx storage.Tx) error {
		purchase, err := tx.GetPurchase(ctx, purchaseID)
		if err != nil {
			return err
		}
		if purchase.Status == models.PurchaseRefunded {
			return &models.ValidationError{Field: "purchase", Reason: "already refunded"}
		}
		agent, err := tx.GetAgent(ctx, purchase.AgentID)
		if err != nil {
			return err
		}
		buyer, err := tx.GetBuyer(ctx, purchase.BuyerID)
		if err != nil {
			return err
		}

		now := l.now()
		agent.Credits += purchase.CreditsCost
		t := models.Transaction{
			ID:             l.newID(),
			AgentID:        agent.ID,
			Type:           models.TxRefund,
			Description:    "Refund: " + reason,
			CreditsChange:  purchase.CreditsCost,
			RunningBalance: agent.Credits,
			RelatedID:      purchase.ID,
			CreatedAt:      now,
		}
		purchase.Status = models.PurchaseRefunded
		purchase.RefundReason = reason
		purchase.UpdatedAt = now

		if buyer.PurchasedBy == purchase.AgentID {
			buyer.IsAvailableForPurchase = true
			buyer.PurchasedBy = ""
			buyer.PurchasedAt = nil
			if err := tx.UpdateBuyer(ctx, buyer); err != nil {
				return err
			}
		}
		if err := tx.UpdatePurchase(ctx, purchase); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &t); err != nil {
			return err
		}
		if err := tx.UpdateAgent(ctx, agent); err != nil {
			return err
		}
		txn = &t
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.logger.Info("[ledger] Refunded purchase %s (%d credits): %s", purchaseID, txn.CreditsChange, reason)
	return txn, nil
}

// History returns the agent's ledger entries, newest first.
func (l *Ledger) History(ctx context.Context, agentID string) ([]models.Transaction, error) {
	txs, err := l.store.ListTransactions(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("ledger: history of %s: %w", agentID, err)
	}
	return txs, nil
}

func leadName(b *models.BuyerProfile) string {
	name := b.FirstName
	if b.LastName != "" {
		initial, _ := utf8.DecodeRuneInString(b.LastName)
		name += " " + string(initial) + "."
	}
	if b.PreferredCity != "" {
		name += fmt.Sprintf(" (%s, %s)", b.PreferredCity, b.PreferredState)
	}
	return strings.TrimSpace(name)
}
