// Package matching decides which properties fit which buyers and ranks
// buyer leads for agents.
package matching

import (
	"sort"

	"leadmarket/geo"
	"leadmarket/models"
)

// DefaultSearchRadius applies when a buyer has not set one.
const DefaultSearchRadius = 25.0

// Evaluator matches properties against buyer profiles. It holds no mutable
// state and is safe for concurrent use.
type Evaluator struct {
	defaultRadius float64
}

// NewEvaluator creates an Evaluator. A non-positive radius selects
// DefaultSearchRadius.
func NewEvaluator(defaultRadius float64) *Evaluator {
	if defaultRadius <= 0 {
		defaultRadius = DefaultSearchRadius
	}
	return &Evaluator{defaultRadius: defaultRadius}
}

// Evaluate decides whether property is a match for buyer.
//
// Location is a prerequisite resolved by the first satisfied strategy of:
// precomputed nearby cities, exact city and state, haversine radius,
// bounding box. Budget passes when either ceiling holds. Every optional
// requirement the buyer set must hold.
func (e *Evaluator) Evaluate(p *models.PropertyListing, b *models.BuyerProfile) models.MatchResult {
	res := models.MatchResult{BudgetMatchType: models.BudgetNeither}
	if p == nil || b == nil || !p.IsActive() {
		return res
	}

	loc := e.matchLocation(p, b)
	if loc == models.LocNone {
		return res
	}
	res.LocationStrategy = loc
	matched := []models.Dimension{models.DimLocation}

	monthlyOK := p.MonthlyPayment <= b.MaxMonthlyPayment
	downOK := p.DownPaymentAmount <= b.MaxDownPayment
	switch {
	case monthlyOK && downOK:
		res.BudgetMatchType = models.BudgetBoth
		matched = append(matched, models.DimMonthlyPayment, models.DimDownPayment)
	case monthlyOK:
		res.BudgetMatchType = models.BudgetMonthlyOnly
		matched = append(matched, models.DimMonthlyPayment)
	case downOK:
		res.BudgetMatchType = models.BudgetDownOnly
		matched = append(matched, models.DimDownPayment)
	default:
		return res
	}

	evaluated, satisfied := 2, 2
	for _, c := range optionalCriteria(p, &b.Requirements) {
		if !c.set {
			continue
		}
		evaluated++
		if !c.ok {
			res.MatchedOn = nil
			return res
		}
		satisfied++
		matched = append(matched, c.dim)
	}

	res.Matches = true
	res.MatchedOn = matched
	res.Score = float64(satisfied) / float64(evaluated)
	return res
}

// BuyerMatch pairs a buyer with the result of evaluating one property.
type BuyerMatch struct {
	Buyer  *models.BuyerProfile
	Result models.MatchResult
}

// MatchingBuyers evaluates p against every buyer and returns the matches,
// full budget matches first.
func (e *Evaluator) MatchingBuyers(p *models.PropertyListing, buyers []*models.BuyerProfile) []BuyerMatch {
	var out []BuyerMatch
	for _, b := range buyers {
		if !b.IsActive {
			continue
		}
		if r := e.Evaluate(p, b); r.Matches {
			out = append(out, BuyerMatch{Buyer: b, Result: r})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		bi := out[i].Result.BudgetMatchType == models.BudgetBoth
		bj := out[j].Result.BudgetMatchType == models.BudgetBoth
		if bi != bj {
			return bi
		}
		return out[i].Result.Score > out[j].Result.Score
	})
	return out
}

func (e *Evaluator) matchLocation(p *models.PropertyListing, b *models.BuyerProfile) models.LocationStrategy {
	sameState := geo.NormalizeState(p.State) == geo.NormalizeState(b.PreferredState)
	if b.Filter != nil && sameState {
		for _, c := range b.Filter.NearbyCities {
			if geo.SameCity(c, p.City) {
				return models.LocNearbyCities
			}
		}
	}

	if sameState && geo.SameCity(p.City, b.PreferredCity) {
		return models.LocExactCity
	}

	pc, pok := geo.CoordinatesOf(p.Latitude, p.Longitude)
	if !pok {
		return models.LocNone
	}
	if bc, ok := geo.CoordinatesOf(b.Latitude, b.Longitude); ok {
		radius := b.SearchRadius
		if radius <= 0 {
			radius = e.defaultRadius
		}
		if geo.HaversineMiles(pc, bc) <= radius {
			return models.LocRadius
		}
	}

	if b.Filter != nil && geo.Contains(b.Filter.BoundingBox, pc) {
		return models.LocBoundingBox
	}
	return models.LocNone
}

type criterion struct {
	dim models.Dimension
	set bool
	ok  bool
}

func optionalCriteria(p *models.PropertyListing, r *models.Requirements) []criterion {
	return []criterion{
		rangeCriterion(models.DimBedrooms, float64(p.Bedrooms), intBound(r.MinBedrooms), intBound(r.MaxBedrooms)),
		rangeCriterion(models.DimBathrooms, p.Bathrooms, r.MinBathrooms, r.MaxBathrooms),
		rangeCriterion(models.DimSquareFeet, float64(p.SquareFeet), intBound(r.MinSquareFeet), intBound(r.MaxSquareFeet)),
		rangeCriterion(models.DimPrice, p.ListPrice, r.MinPrice, r.MaxPrice),
	}
}

func rangeCriterion(dim models.Dimension, v float64, min, max *float64) criterion {
	c := criterion{dim: dim, set: min != nil || max != nil, ok: true}
	if min != nil && v < *min {
		c.ok = false
	}
	if max != nil && v > *max {
		c.ok = false
	}
	return c
}

func intBound(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
