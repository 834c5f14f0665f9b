package matching

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"leadmarket/geo"
	"leadmarket/models"
	"leadmarket/utils"
)

// LeadSource is the read side of the store used for lead discovery.
type LeadSource interface {
	AvailableBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error)
	AgentUserIDs(ctx context.Context) ([]string, error)
	ActiveProperties(ctx context.Context, state string) ([]*models.PropertyListing, error)
}

// Discovery ranks purchasable buyer leads for an agent's service area.
type Discovery struct {
	source    LeadSource
	evaluator *Evaluator
	logger    *utils.Logger
	now       func() time.Time
}

// NewDiscovery creates a Discovery over source.
func NewDiscovery(source LeadSource, evaluator *Evaluator, logger *utils.Logger) *Discovery {
	return &Discovery{source: source, evaluator: evaluator, logger: logger, now: time.Now}
}

// FindAvailableLeads returns up to limit scored leads in the agent's area,
// best first. A zero limit returns all of them. An agent without a usable
// state gets an empty result and no queries are made.
func (d *Discovery) FindAvailableLeads(ctx context.Context, area models.ServiceArea, limit int) ([]models.ScoredLead, error) {
	if limit < 0 {
		return nil, &models.ValidationError{Field: "limit", Reason: "must not be negative"}
	}
	if geo.IsUnsetState(area.PrimaryState) {
		d.logger.Debug("[discovery] Agent %s has no valid state, skipping", area.AgentID)
		return []models.ScoredLead{}, nil
	}
	state := geo.NormalizeState(area.PrimaryState)

	var (
		buyers     []*models.BuyerProfile
		agentIDs   []string
		properties []*models.PropertyListing
		errs       [3]error
	)
	pool := utils.NewWorkerPool(3, 0)
	pool.Submit(func() { buyers, errs[0] = d.source.AvailableBuyers(ctx, state) })
	pool.Submit(func() { agentIDs, errs[1] = d.source.AgentUserIDs(ctx) })
	pool.Submit(func() { properties, errs[2] = d.source.ActiveProperties(ctx, state) })
	pool.Wait()

	for i, what := range []string{"buyers", "agent accounts", "properties"} {
		if errs[i] != nil {
			return nil, fmt.Errorf("discovery: load %s: %w", what, errs[i])
		}
	}

	agents := make(map[string]struct{}, len(agentIDs))
	for _, id := range agentIDs {
		agents[id] = struct{}{}
	}
	cities := make(map[string]struct{}, len(area.Cities)+1)
	for _, c := range append([]string{area.PrimaryCity}, area.Cities...) {
		if c = cityKey(c); c != "" {
			cities[c] = struct{}{}
		}
	}

	now := d.now()
	leads := make([]models.ScoredLead, 0, len(buyers))
	for _, b := range buyers {
		if !purchasable(b) {
			continue
		}
		if _, isAgent := agents[b.UserID]; isAgent {
			continue
		}
		if _, ok := cities[cityKey(b.PreferredCity)]; !ok {
			continue
		}
		if !sharesLanguage(b.Languages, area.Languages) {
			continue
		}
		leads = append(leads, d.score(b, properties, now))
	}

	sort.SliceStable(leads, func(i, j int) bool {
		a, b := leads[i], leads[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.MatchedProperties != b.MatchedProperties {
			return a.MatchedProperties > b.MatchedProperties
		}
		return a.Buyer.CreatedAt.After(b.Buyer.CreatedAt)
	})
	if limit > 0 && len(leads) > limit {
		leads = leads[:limit]
	}

	d.logger.Info("[discovery] Agent %s (%s): %d of %d candidate buyers match",
		area.AgentID, state, len(leads), len(buyers))
	return leads, nil
}

func (d *Discovery) score(b *models.BuyerProfile, properties []*models.PropertyListing, now time.Time) models.ScoredLead {
	lead := models.ScoredLead{Buyer: b.Redacted(), LeadPrice: b.EffectiveLeadPrice()}
	lead.Reasons = append(lead.Reasons, "Serves "+b.PreferredCity)
	score := 0.5

	for _, p := range properties {
		if !d.evaluator.Evaluate(p, b).Matches {
			continue
		}
		lead.MatchedProperties++
		if geo.SameCity(p.City, b.PreferredCity) {
			lead.ExactCityMatches++
		} else {
			lead.NearbyMatches++
		}
	}
	if lead.MatchedProperties > 0 {
		share := float64(min(lead.MatchedProperties, 5)) / 5
		score += 0.2 * share
		lead.Reasons = append(lead.Reasons, fmt.Sprintf("%d matching properties", lead.MatchedProperties))
	}

	if n := len(b.LikedPropertyIDs); n > 0 {
		score += 0.1
		lead.Reasons = append(lead.Reasons, fmt.Sprintf("Active buyer (%d liked properties)", n))
	}
	if b.LastActiveAt != nil {
		switch since := now.Sub(*b.LastActiveAt); {
		case since <= 7*24*time.Hour:
			score += 0.15
			lead.Reasons = append(lead.Reasons, "Active within last week")
		case since <= 30*24*time.Hour:
			score += 0.05
			lead.Reasons = append(lead.Reasons, "Active within last month")
		}
	}
	if b.MaxMonthlyPayment >= 800 && b.MaxDownPayment >= 5000 {
		score += 0.05
		lead.Reasons = append(lead.Reasons, "Realistic budget")
	}

	lead.Score = min(score, 1.0)
	return lead
}

func purchasable(b *models.BuyerProfile) bool {
	return b.IsActive && b.ProfileComplete && b.IsAvailableForPurchase &&
		b.PurchasedBy == "" && !geo.IsUnsetState(b.PreferredState)
}

func sharesLanguage(buyer, agent []string) bool {
	if len(agent) == 0 {
		return true
	}
	if len(buyer) == 0 {
		buyer = []string{"English"}
	}
	for _, bl := range buyer {
		for _, al := range agent {
			if strings.EqualFold(strings.TrimSpace(bl), strings.TrimSpace(al)) {
				return true
			}
		}
	}
	return false
}

func cityKey(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}
