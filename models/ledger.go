package models

import "time"

// Agent is a realtor account that spends credits on leads.
type Agent struct {
	ID           string
	UserID       string
	FirstName    string
	LastName     string
	Company      string
	Credits      int
	ServiceArea  ServiceArea
	IsOnTrial    bool
	TrialEndDate *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Version int64
}

// ServiceArea is where an agent works. Cities are precomputed the same way
// a buyer's nearby cities are.
type ServiceArea struct {
	AgentID      string
	PrimaryCity  string
	PrimaryState string
	RadiusMiles  float64
	Cities       []string
	Languages    []string
}

// TransactionType classifies a credit change.
type TransactionType string

const (
	TxLeadPurchase       TransactionType = "lead_purchase"
	TxCreditPurchase     TransactionType = "credit_purchase"
	TxSubscriptionCredit TransactionType = "subscription_credit"
	TxTrialCredit        TransactionType = "trial_credit"
	TxRefund             TransactionType = "refund"
)

// Transaction is an append-only credit ledger entry. It is never updated
// or deleted once written.
type Transaction struct {
	ID             string
	AgentID        string
	Type           TransactionType
	Description    string
	CreditsChange  int
	RunningBalance int
	RelatedID      string
	CreatedAt      time.Time
}

// PurchaseStatus tracks a purchased lead after the sale.
type PurchaseStatus string

const (
	PurchasePurchased PurchaseStatus = "purchased"
	PurchaseContacted PurchaseStatus = "contacted"
	PurchaseConverted PurchaseStatus = "converted"
	PurchaseRefunded  PurchaseStatus = "refunded"
)

// LeadPurchase records one agent buying one buyer lead.
type LeadPurchase struct {
	ID            string
	AgentID       string
	BuyerID       string
	CreditsCost   int
	Status        PurchaseStatus
	TransactionID string
	RefundReason  string
	PurchasedAt   time.Time
	UpdatedAt     time.Time
}

// PurchaseResult is returned to the caller only after the purchase commits.
type PurchaseResult struct {
	Purchase         LeadPurchase
	Transaction      Transaction
	Contact          BuyerContact
	NewCreditBalance int
}

// ClaimStatus is the state of a notification claim.
type ClaimStatus string

const (
	ClaimPending ClaimStatus = "pending"
	ClaimSent    ClaimStatus = "sent"
)

// NotificationClaim marks that a buyer is being (or has been) told about a
// property. At most one exists per (BuyerID, PropertyID).
type NotificationClaim struct {
	BuyerID    string
	PropertyID string
	Status     ClaimStatus
	ClaimedAt  time.Time
	SentAt     *time.Time
}

// ClaimKey is the dedup key of a claim.
func ClaimKey(buyerID, propertyID string) string {
	return buyerID + "_" + propertyID
}
