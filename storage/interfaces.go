package storage

import (
	"context"
	"time"

	"leadmarket/models"
)

// Tx is the view of the store inside one atomic transaction. Reads record
// the version they saw; a write to a record whose version moved since it
// was read makes the commit fail with models.ErrConflict.
type Tx interface {
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetBuyer(ctx context.Context, id string) (*models.BuyerProfile, error)
	GetPurchase(ctx context.Context, id string) (*models.LeadPurchase, error)

	UpdateAgent(ctx context.Context, a *models.Agent) error
	UpdateBuyer(ctx context.Context, b *models.BuyerProfile) error
	UpdatePurchase(ctx context.Context, p *models.LeadPurchase) error

	InsertTransaction(ctx context.Context, t *models.Transaction) error
	InsertPurchase(ctx context.Context, p *models.LeadPurchase) error
}

// TxRunner runs fn inside a transaction. Returning an error from fn rolls
// everything back; otherwise all writes commit together or not at all.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}

// ClaimStore holds notification dedup claims.
type ClaimStore interface {
	// CreateClaim inserts c only if no claim exists for its key, returning
	// models.ErrClaimExists otherwise.
	CreateClaim(ctx context.Context, c models.NotificationClaim) error
	MarkClaimSent(ctx context.Context, buyerID, propertyID string, at time.Time) error
	DeleteClaim(ctx context.Context, buyerID, propertyID string) error
	GetClaim(ctx context.Context, buyerID, propertyID string) (*models.NotificationClaim, error)
}

// LeadReader is the read-only query surface used by discovery and sync.
type LeadReader interface {
	AvailableBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error)
	AgentUserIDs(ctx context.Context) ([]string, error)
	ActiveProperties(ctx context.Context, state string) ([]*models.PropertyListing, error)
	ActiveBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error)
}

// Repository saves and loads whole documents outside of a transaction.
type Repository interface {
	SaveAgent(ctx context.Context, a *models.Agent) error
	// SaveBuyer fails with models.ErrConflict when b.Version is stale.
	SaveBuyer(ctx context.Context, b *models.BuyerProfile) error
	UpdateBuyerLocation(ctx context.Context, id string, lat, lng *float64, filter *models.BuyerFilter) error
	SaveProperty(ctx context.Context, p *models.PropertyListing) error
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	GetBuyer(ctx context.Context, id string) (*models.BuyerProfile, error)
	ListAgents(ctx context.Context) ([]*models.Agent, error)
	GetProperty(ctx context.Context, id string) (*models.PropertyListing, error)
	ListProperties(ctx context.Context) ([]*models.PropertyListing, error)
	ListTransactions(ctx context.Context, agentID string) ([]models.Transaction, error)
	ListPurchases(ctx context.Context, agentID string) ([]models.LeadPurchase, error)
}

// Store is everything a backend provides.
type Store interface {
	TxRunner
	ClaimStore
	LeadReader
	Repository
	Close() error
}
