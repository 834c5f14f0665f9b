package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"leadmarket/geo"
	"leadmarket/matching"
	"leadmarket/models"
	"leadmarket/utils"
)

// TriggerMatchSync tags notifications sent by a MatchSync run.
const TriggerMatchSync = "match_sync"

// BuyerSource loads the buyers a property could be matched against.
type BuyerSource interface {
	ActiveBuyers(ctx context.Context, state string) ([]*models.BuyerProfile, error)
}

// BuyerNotifier sends one buyer one property at most once.
type BuyerNotifier interface {
	Notify(ctx context.Context, b *models.BuyerProfile, p *models.PropertyListing, match models.MatchResult, trigger string) (models.SyncOutcome, error)
}

// MatchExporter receives every matched pair of a run.
type MatchExporter interface {
	WriteMatches(records []models.MatchRecord) error
}

// MatchSync evaluates properties against the active buyers in their state
// and notifies each matching buyer.
type MatchSync struct {
	buyers     BuyerSource
	evaluator  *matching.Evaluator
	notifier   BuyerNotifier
	exporter   MatchExporter
	logger     *utils.Logger
	maxWorkers int
	intervalMs int
	now        func() time.Time
}

// NewMatchSync creates a MatchSync. Notifications go out on at most
// maxWorkers goroutines, started no closer than intervalMs apart.
func NewMatchSync(buyers BuyerSource, evaluator *matching.Evaluator, notifier BuyerNotifier, logger *utils.Logger, maxWorkers, intervalMs int) *MatchSync {
	return &MatchSync{
		buyers:     buyers,
		evaluator:  evaluator,
		notifier:   notifier,
		logger:     logger,
		maxWorkers: maxWorkers,
		intervalMs: intervalMs,
		now:        time.Now,
	}
}

// WithExporter makes Run hand every matched pair to e.
func (s *MatchSync) WithExporter(e MatchExporter) *MatchSync {
	s.exporter = e
	return s
}

// Run matches every active property and notifies the matched buyers. A
// failed notification is recorded in its MatchRecord and does not stop
// the run; only a failure to load buyers does.
func (s *MatchSync) Run(ctx context.Context, properties []*models.PropertyListing) ([]models.MatchRecord, error) {
	byState := make(map[string][]*models.BuyerProfile)

	type job struct {
		p *models.PropertyListing
		m matching.BuyerMatch
	}
	var jobs []job

	for _, p := range properties {
		if !p.IsActive() {
			continue
		}
		state := geo.NormalizeState(p.State)
		buyers, ok := byState[state]
		if !ok {
			loaded, err := s.buyers.ActiveBuyers(ctx, state)
			if err != nil {
				return nil, fmt.Errorf("sync: load buyers in %s: %w", state, err)
			}
			byState[state] = loaded
			buyers = loaded
		}
		matches := s.evaluator.MatchingBuyers(p, buyers)
		s.logger.Debug("[sync] Property %s (%s, %s) matched %d buyers", p.ID, p.City, state, len(matches))
		for _, m := range matches {
			jobs = append(jobs, job{p: p, m: m})
		}
	}

	records := make([]models.MatchRecord, len(jobs))
	pool := utils.NewWorkerPool(s.maxWorkers, s.intervalMs)
	var mu sync.Mutex
	failed := 0

	for i, j := range jobs {
		pool.Submit(func() {
			outcome := s.notify(ctx, j.p, j.m)
			if outcome == models.OutcomeFailed {
				mu.Lock()
				failed++
				mu.Unlock()
			}
			records[i] = s.record(j.p, j.m, outcome)
		})
	}
	pool.Wait()

	s.logger.Info("[sync] %d properties, %d matches, %d failed notifications",
		len(properties), len(records), failed)

	if s.exporter != nil && len(records) > 0 {
		if err := s.exporter.WriteMatches(records); err != nil {
			s.logger.Error("[sync] Match export failed: %v", err)
		}
	}
	return records, nil
}

func (s *MatchSync) notify(ctx context.Context, p *models.PropertyListing, m matching.BuyerMatch) models.SyncOutcome {
	if ctx.Err() != nil {
		return models.OutcomeSkipped
	}
	outcome, err := s.notifier.Notify(ctx, m.Buyer, p, m.Result, TriggerMatchSync)
	switch {
	case err == nil:
		return outcome
	case errors.Is(err, models.ErrRateLimitExceeded):
		s.logger.Warn("[sync] Rate limited notifying buyer %s about %s", m.Buyer.ID, p.ID)
		return models.OutcomeRateLimited
	default:
		s.logger.Error("[sync] Notify buyer %s about %s: %v", m.Buyer.ID, p.ID, err)
		return models.OutcomeFailed
	}
}

func (s *MatchSync) record(p *models.PropertyListing, m matching.BuyerMatch, outcome models.SyncOutcome) models.MatchRecord {
	return models.MatchRecord{
		PropertyID:       p.ID,
		Address:          p.Address,
		City:             p.City,
		State:            p.State,
		BuyerID:          m.Buyer.ID,
		BuyerName:        strings.TrimSpace(m.Buyer.FirstName + " " + m.Buyer.LastName),
		MonthlyPayment:   p.MonthlyPayment,
		DownPayment:      p.DownPaymentAmount,
		BudgetMatchType:  m.Result.BudgetMatchType,
		LocationStrategy: m.Result.LocationStrategy,
		Outcome:          outcome,
		At:               s.now(),
	}
}
