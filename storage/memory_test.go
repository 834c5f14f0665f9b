package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadmarket/models"
)

func seeded(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	if err := s.SaveAgent(ctx, &models.Agent{ID: "a1", UserID: "u-agent", Credits: 5}); err != nil {
		t.Fatalf("SaveAgent: %v", err)
	}
	buyers := []*models.BuyerProfile{
		{ID: "b1", UserID: "u1", PreferredState: "TX", IsActive: true, IsAvailableForPurchase: true},
		{ID: "b2", UserID: "u2", PreferredState: "Texas", IsActive: true, IsAvailableForPurchase: false, PurchasedBy: "a9"},
		{ID: "b3", UserID: "u3", PreferredState: "TN", IsActive: true, IsAvailableForPurchase: true},
		{ID: "b4", UserID: "u4", PreferredState: "TX", IsActive: false, IsAvailableForPurchase: true},
	}
	for _, b := range buyers {
		if err := s.SaveBuyer(ctx, b); err != nil {
			t.Fatalf("SaveBuyer: %v", err)
		}
	}
	props := []*models.PropertyListing{
		{ID: "p1", State: "TX", Status: models.StatusActive},
		{ID: "p2", State: "tx", Status: models.StatusSold},
		{ID: "p3", State: "TN", Status: models.StatusActive},
	}
	for _, p := range props {
		if err := s.SaveProperty(ctx, p); err != nil {
			t.Fatalf("SaveProperty: %v", err)
		}
	}
	return s
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = id(it)
	}
	return out
}

func TestMemoryQueries(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	buyerID := func(b *models.BuyerProfile) string { return b.ID }

	avail, _ := s.AvailableBuyers(ctx, "TX")
	if got := ids(avail, buyerID); len(got) != 1 || got[0] != "b1" {
		t.Errorf("AvailableBuyers(TX) = %v; want [b1]", got)
	}
	active, _ := s.ActiveBuyers(ctx, "texas")
	if got := ids(active, buyerID); len(got) != 2 || got[0] != "b1" || got[1] != "b2" {
		t.Errorf("ActiveBuyers(texas) = %v; want [b1 b2]", got)
	}
	props, _ := s.ActiveProperties(ctx, "TX")
	if got := ids(props, func(p *models.PropertyListing) string { return p.ID }); len(got) != 1 || got[0] != "p1" {
		t.Errorf("ActiveProperties(TX) = %v; want [p1]", got)
	}
	agents, _ := s.AgentUserIDs(ctx)
	if len(agents) != 1 || agents[0] != "u-agent" {
		t.Errorf("AgentUserIDs = %v; want [u-agent]", agents)
	}
	all, _ := s.ListAgents(ctx)
	if len(all) != 1 || all[0].ID != "a1" || all[0].Credits != 5 {
		t.Errorf("ListAgents = %+v; want [a1]", all)
	}
}

func TestMemoryGetNotFound(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.GetBuyer(context.Background(), "nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("GetBuyer err = %v; want ErrNotFound", err)
	}
	err := s.RunInTx(context.Background(), func(tx Tx) error {
		_, err := tx.GetAgent(context.Background(), "nope")
		return err
	})
	if !errors.Is(err, models.ErrNotFound) {
		t.Errorf("tx GetAgent err = %v; want ErrNotFound", err)
	}
}

func TestMemoryTxCommitsAllOrNothing(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.RunInTx(ctx, func(tx Tx) error {
		a, err := tx.GetAgent(ctx, "a1")
		if err != nil {
			return err
		}
		a.Credits = 0
		if err := tx.UpdateAgent(ctx, a); err != nil {
			return err
		}
		if err := tx.InsertTransaction(ctx, &models.Transaction{ID: "t1", AgentID: "a1"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v; want boom", err)
	}
	a, _ := s.GetAgent(ctx, "a1")
	if a.Credits != 5 {
		t.Errorf("rolled back tx changed credits to %d", a.Credits)
	}
	if txs, _ := s.ListTransactions(ctx, "a1"); len(txs) != 0 {
		t.Errorf("rolled back tx left %d transactions", len(txs))
	}
}

func TestMemoryTxDetectsConflict(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	err := s.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.GetBuyer(ctx, "b1")
		if err != nil {
			return err
		}
		// A concurrent writer commits between our read and our commit.
		other, _ := s.GetBuyer(ctx, "b1")
		other.FirstName = "changed"
		_ = s.SaveBuyer(ctx, other)

		b.IsAvailableForPurchase = false
		return tx.UpdateBuyer(ctx, b)
	})
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("err = %v; want ErrConflict", err)
	}
	b, _ := s.GetBuyer(ctx, "b1")
	if !b.IsAvailableForPurchase {
		t.Errorf("conflicting write was applied")
	}
}

func TestMemorySaveBuyerRejectsStaleVersion(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	stale, _ := s.GetBuyer(ctx, "b1")
	fresh, _ := s.GetBuyer(ctx, "b1")
	fresh.PurchasedBy = "a1"
	if err := s.SaveBuyer(ctx, fresh); err != nil {
		t.Fatalf("SaveBuyer(fresh): %v", err)
	}

	stale.FirstName = "stale"
	if err := s.SaveBuyer(ctx, stale); !errors.Is(err, models.ErrConflict) {
		t.Fatalf("SaveBuyer(stale) err = %v; want ErrConflict", err)
	}
	got, _ := s.GetBuyer(ctx, "b1")
	if got.PurchasedBy != "a1" || got.FirstName == "stale" {
		t.Errorf("stale save overwrote buyer: %+v", got)
	}
}

func TestMemoryUpdateBuyerLocationKeepsOtherFields(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()

	snapshot, _ := s.GetBuyer(ctx, "b1")
	err := s.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.GetBuyer(ctx, "b1")
		if err != nil {
			return err
		}
		b.IsAvailableForPurchase = false
		b.PurchasedBy = "a1"
		return tx.UpdateBuyer(ctx, b)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}

	lat, lng := 29.7604, -95.3698
	filter := &models.BuyerFilter{NearbyCities: []string{"Houston", "Pasadena"}}
	if err := s.UpdateBuyerLocation(ctx, snapshot.ID, &lat, &lng, filter); err != nil {
		t.Fatalf("UpdateBuyerLocation: %v", err)
	}
	filter.NearbyCities[0] = "mutated"
	lat = 0

	got, _ := s.GetBuyer(ctx, "b1")
	if got.PurchasedBy != "a1" || got.IsAvailableForPurchase {
		t.Errorf("location update reverted purchase: %+v", got)
	}
	if got.Latitude == nil || *got.Latitude != 29.7604 || got.Filter == nil || got.Filter.NearbyCities[0] != "Houston" {
		t.Errorf("location not stored independently: %+v", got)
	}
	if got.Version <= snapshot.Version+1 {
		t.Errorf("Version = %d; want it bumped past %d", got.Version, snapshot.Version+1)
	}

	if err := s.UpdateBuyerLocation(ctx, "nope", nil, nil, nil); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("unknown buyer err = %v; want ErrNotFound", err)
	}
}

func TestMemoryTxBumpsVersions(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	before, _ := s.GetBuyer(ctx, "b1")

	err := s.RunInTx(ctx, func(tx Tx) error {
		b, err := tx.GetBuyer(ctx, "b1")
		if err != nil {
			return err
		}
		b.PurchasedBy = "a1"
		return tx.UpdateBuyer(ctx, b)
	})
	if err != nil {
		t.Fatalf("RunInTx: %v", err)
	}
	after, _ := s.GetBuyer(ctx, "b1")
	if after.Version != before.Version+1 || after.PurchasedBy != "a1" {
		t.Errorf("after commit: version %d (was %d), purchasedBy %q", after.Version, before.Version, after.PurchasedBy)
	}
}

func TestMemoryUpdateRequiresRead(t *testing.T) {
	s := seeded(t)
	err := s.RunInTx(context.Background(), func(tx Tx) error {
		return tx.UpdateAgent(context.Background(), &models.Agent{ID: "a1", Credits: 100})
	})
	if err == nil {
		t.Errorf("blind update should fail")
	}
}

func TestMemoryClaimsAreExclusive(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	won := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateClaim(ctx, models.NotificationClaim{BuyerID: "b", PropertyID: "p", Status: models.ClaimPending})
			if err == nil {
				mu.Lock()
				won++
				mu.Unlock()
			} else if !errors.Is(err, models.ErrClaimExists) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if won != 1 {
		t.Fatalf("%d goroutines won the claim; want 1", won)
	}

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := s.MarkClaimSent(ctx, "b", "p", at); err != nil {
		t.Fatalf("MarkClaimSent: %v", err)
	}
	c, err := s.GetClaim(ctx, "b", "p")
	if err != nil || c.Status != models.ClaimSent || !c.SentAt.Equal(at) {
		t.Errorf("claim after send = %+v, %v", c, err)
	}

	_ = s.DeleteClaim(ctx, "b", "p")
	if err := s.CreateClaim(ctx, models.NotificationClaim{BuyerID: "b", PropertyID: "p"}); err != nil {
		t.Errorf("claim should be available again after delete: %v", err)
	}
}

func TestMemoryReturnsCopies(t *testing.T) {
	s := seeded(t)
	ctx := context.Background()
	b, _ := s.GetBuyer(ctx, "b1")
	b.IsActive = false
	again, _ := s.GetBuyer(ctx, "b1")
	if !again.IsActive {
		t.Errorf("mutating a returned buyer changed the store")
	}
}
