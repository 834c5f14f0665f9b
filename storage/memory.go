package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"leadmarket/geo"
	"leadmarket/models"
)

// MemoryStore is an in-process Store. Transactions are optimistic: reads
// remember versions, writes are buffered, and commit validates that nothing
// read or written changed underneath. It is safe for concurrent use.
type MemoryStore struct {
	mu           sync.RWMutex
	agents       map[string]*models.Agent
	buyers       map[string]*models.BuyerProfile
	properties   map[string]*models.PropertyListing
	purchases    map[string]*models.LeadPurchase
	purchaseVers map[string]int64
	transactions []models.Transaction
	claims       map[string]*models.NotificationClaim
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		agents:       make(map[string]*models.Agent),
		buyers:       make(map[string]*models.BuyerProfile),
		properties:   make(map[string]*models.PropertyListing),
		purchases:    make(map[string]*models.LeadPurchase),
		purchaseVers: make(map[string]int64),
		claims:       make(map[string]*models.NotificationClaim),
	}
}

func (s *MemoryStore) Close() error { return nil }

// ---- transactions ----

type memTx struct {
	s *MemoryStore

	reads     map[string]int64
	agents    map[string]*models.Agent
	buyers    map[string]*models.BuyerProfile
	purchases map[string]*models.LeadPurchase
	inserted  map[string]bool
	txs       []models.Transaction
}

// RunInTx implements TxRunner.
func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{
		s:         s,
		reads:     make(map[string]int64),
		agents:    make(map[string]*models.Agent),
		buyers:    make(map[string]*models.BuyerProfile),
		purchases: make(map[string]*models.LeadPurchase),
		inserted:  make(map[string]bool),
	}
	if err := fn(tx); err != nil {
		return err
	}
	return tx.commit()
}

func (tx *memTx) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	if a, ok := tx.agents[id]; ok {
		c := *a
		return &c, nil
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	a, ok := tx.s.agents[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "agent", ID: id}
	}
	tx.reads["agent:"+id] = a.Version
	return cloneAgent(a), nil
}

func (tx *memTx) GetBuyer(_ context.Context, id string) (*models.BuyerProfile, error) {
	if b, ok := tx.buyers[id]; ok {
		return cloneBuyer(b), nil
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	b, ok := tx.s.buyers[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "buyer", ID: id}
	}
	tx.reads["buyer:"+id] = b.Version
	return cloneBuyer(b), nil
}

func (tx *memTx) GetPurchase(_ context.Context, id string) (*models.LeadPurchase, error) {
	if p, ok := tx.purchases[id]; ok {
		c := *p
		return &c, nil
	}
	tx.s.mu.RLock()
	defer tx.s.mu.RUnlock()
	p, ok := tx.s.purchases[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "purchase", ID: id}
	}
	tx.reads["purchase:"+id] = tx.s.purchaseVers[id]
	c := *p
	return &c, nil
}

func (tx *memTx) UpdateAgent(_ context.Context, a *models.Agent) error {
	if _, ok := tx.reads["agent:"+a.ID]; !ok {
		return fmt.Errorf("memory: agent %s updated without being read", a.ID)
	}
	tx.agents[a.ID] = cloneAgent(a)
	return nil
}

func (tx *memTx) UpdateBuyer(_ context.Context, b *models.BuyerProfile) error {
	if _, ok := tx.reads["buyer:"+b.ID]; !ok {
		return fmt.Errorf("memory: buyer %s updated without being read", b.ID)
	}
	tx.buyers[b.ID] = cloneBuyer(b)
	return nil
}

func (tx *memTx) UpdatePurchase(_ context.Context, p *models.LeadPurchase) error {
	if _, ok := tx.reads["purchase:"+p.ID]; !ok && !tx.inserted[p.ID] {
		return fmt.Errorf("memory: purchase %s updated without being read", p.ID)
	}
	c := *p
	tx.purchases[p.ID] = &c
	return nil
}

func (tx *memTx) InsertTransaction(_ context.Context, t *models.Transaction) error {
	tx.txs = append(tx.txs, *t)
	return nil
}

func (tx *memTx) InsertPurchase(_ context.Context, p *models.LeadPurchase) error {
	if tx.inserted[p.ID] {
		return fmt.Errorf("memory: duplicate purchase %s", p.ID)
	}
	c := *p
	tx.purchases[p.ID] = &c
	tx.inserted[p.ID] = true
	return nil
}

func (tx *memTx) commit() error {
	s := tx.s
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, seen := range tx.reads {
		if s.currentVersion(key) != seen {
			return models.ErrConflict
		}
	}
	for id := range tx.inserted {
		if _, exists := s.purchases[id]; exists {
			return models.ErrConflict
		}
	}

	for id, a := range tx.agents {
		a.Version = s.agents[id].Version + 1
		s.agents[id] = a
	}
	for id, b := range tx.buyers {
		b.Version = s.buyers[id].Version + 1
		s.buyers[id] = b
	}
	for id, p := range tx.purchases {
		s.purchases[id] = p
		s.purchaseVers[id]++
	}
	s.transactions = append(s.transactions, tx.txs...)
	return nil
}

func (s *MemoryStore) currentVersion(key string) int64 {
	kind, id, _ := strings.Cut(key, ":")
	switch kind {
	case "agent":
		if a, ok := s.agents[id]; ok {
			return a.Version
		}
	case "buyer":
		if b, ok := s.buyers[id]; ok {
			return b.Version
		}
	case "purchase":
		return s.purchaseVers[id]
	}
	return -1
}

// ---- claims ----

func (s *MemoryStore) CreateClaim(ctx context.Context, c models.NotificationClaim) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := models.ClaimKey(c.BuyerID, c.PropertyID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[key]; exists {
		return models.ErrClaimExists
	}
	s.claims[key] = &c
	return nil
}

func (s *MemoryStore) MarkClaimSent(_ context.Context, buyerID, propertyID string, at time.Time) error {
	key := models.ClaimKey(buyerID, propertyID)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[key]
	if !ok {
		return &models.NotFoundError{Kind: "claim", ID: key}
	}
	c.Status = models.ClaimSent
	c.SentAt = &at
	return nil
}

func (s *MemoryStore) DeleteClaim(_ context.Context, buyerID, propertyID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claims, models.ClaimKey(buyerID, propertyID))
	return nil
}

func (s *MemoryStore) GetClaim(_ context.Context, buyerID, propertyID string) (*models.NotificationClaim, error) {
	key := models.ClaimKey(buyerID, propertyID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[key]
	if !ok {
		return nil, &models.NotFoundError{Kind: "claim", ID: key}
	}
	cp := *c
	return &cp, nil
}

// ---- queries ----

func (s *MemoryStore) AvailableBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error) {
	return s.filterBuyers(ctx, state, func(b *models.BuyerProfile) bool {
		return b.IsActive && b.IsAvailableForPurchase && b.PurchasedBy == ""
	})
}

func (s *MemoryStore) ActiveBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error) {
	return s.filterBuyers(ctx, state, func(b *models.BuyerProfile) bool { return b.IsActive })
}

func (s *MemoryStore) filterBuyers(ctx context.Context, state string, keep func(*models.BuyerProfile) bool) ([]*models.BuyerProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := geo.NormalizeState(state)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.BuyerProfile
	for _, b := range s.buyers {
		if (want == "" || geo.NormalizeState(b.PreferredState) == want) && keep(b) {
			out = append(out, cloneBuyer(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) AgentUserIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.agents))
	for _, a := range s.agents {
		if a.UserID != "" {
			ids = append(ids, a.UserID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) ActiveProperties(ctx context.Context, state string) ([]*models.PropertyListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	want := geo.NormalizeState(state)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.PropertyListing
	for _, p := range s.properties {
		if p.IsActive() && (want == "" || geo.NormalizeState(p.State) == want) {
			out = append(out, cloneProperty(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---- repository ----

func (s *MemoryStore) SaveAgent(_ context.Context, a *models.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneAgent(a)
	if old, ok := s.agents[a.ID]; ok {
		c.Version = old.Version + 1
	} else {
		c.Version = 1
	}
	a.Version = c.Version
	s.agents[a.ID] = c
	return nil
}

// SaveBuyer writes b only if the stored copy still carries b.Version. A
// snapshot taken before a purchase committed fails with models.ErrConflict.
func (s *MemoryStore) SaveBuyer(_ context.Context, b *models.BuyerProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := cloneBuyer(b)
	if old, ok := s.buyers[b.ID]; ok {
		if old.Version != b.Version {
			return fmt.Errorf("memory: save buyer %s: %w", b.ID, models.ErrConflict)
		}
		c.Version = old.Version + 1
	} else {
		c.Version = 1
	}
	b.Version = c.Version
	s.buyers[b.ID] = c
	return nil
}

// UpdateBuyerLocation replaces the buyer's coordinates and filter and
// leaves every other field as stored.
func (s *MemoryStore) UpdateBuyerLocation(_ context.Context, id string, lat, lng *float64, filter *models.BuyerFilter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buyers[id]
	if !ok {
		return &models.NotFoundError{Kind: "buyer", ID: id}
	}
	c := cloneBuyer(b)
	c.Latitude, c.Longitude = copyFloat(lat), copyFloat(lng)
	c.Filter = nil
	if filter != nil {
		c.Filter = cloneBuyer(&models.BuyerProfile{Filter: filter}).Filter
	}
	c.Version++
	s.buyers[id] = c
	return nil
}

func (s *MemoryStore) SaveProperty(_ context.Context, p *models.PropertyListing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties[p.ID] = cloneProperty(p)
	return nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "agent", ID: id}
	}
	return cloneAgent(a), nil
}

// ListAgents returns every agent sorted by ID.
func (s *MemoryStore) ListAgents(_ context.Context) ([]*models.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		out = append(out, cloneAgent(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetBuyer(_ context.Context, id string) (*models.BuyerProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.buyers[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "buyer", ID: id}
	}
	return cloneBuyer(b), nil
}

func (s *MemoryStore) GetProperty(_ context.Context, id string) (*models.PropertyListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.properties[id]
	if !ok {
		return nil, &models.NotFoundError{Kind: "property", ID: id}
	}
	return cloneProperty(p), nil
}

func (s *MemoryStore) ListProperties(_ context.Context) ([]*models.PropertyListing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.PropertyListing, 0, len(s.properties))
	for _, p := range s.properties {
		out = append(out, cloneProperty(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListTransactions returns the agent's ledger entries, newest first.
func (s *MemoryStore) ListTransactions(_ context.Context, agentID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for i := len(s.transactions) - 1; i >= 0; i-- {
		if s.transactions[i].AgentID == agentID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

// ListPurchases returns the agent's purchases, newest first.
func (s *MemoryStore) ListPurchases(_ context.Context, agentID string) ([]models.LeadPurchase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.LeadPurchase
	for _, p := range s.purchases {
		if p.AgentID == agentID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PurchasedAt.After(out[j].PurchasedAt) })
	return out, nil
}

// ---- copies ----

func cloneAgent(a *models.Agent) *models.Agent {
	c := *a
	c.ServiceArea.Cities = append([]string(nil), a.ServiceArea.Cities...)
	c.ServiceArea.Languages = append([]string(nil), a.ServiceArea.Languages...)
	return &c
}

func cloneBuyer(b *models.BuyerProfile) *models.BuyerProfile {
	c := *b
	c.Languages = append([]string(nil), b.Languages...)
	c.LikedPropertyIDs = append([]string(nil), b.LikedPropertyIDs...)
	if b.Filter != nil {
		f := *b.Filter
		f.NearbyCities = append([]string(nil), b.Filter.NearbyCities...)
		if b.Filter.BoundingBox != nil {
			box := *b.Filter.BoundingBox
			f.BoundingBox = &box
		}
		c.Filter = &f
	}
	return &c
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	f := *v
	return &f
}

func cloneProperty(p *models.PropertyListing) *models.PropertyListing {
	c := *p
	c.NearbyCities = append([]string(nil), p.NearbyCities...)
	return &c
}
