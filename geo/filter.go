package geo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"leadmarket/models"
	"leadmarket/utils"
)

// FilterMaxAge is how long a precomputed filter stays valid.
const FilterMaxAge = 30 * 24 * time.Hour

// BuildBuyerFilter precomputes the nearby-city filter for a search city.
// Lookup failures degrade to a filter holding only the search city; they
// are never returned as errors.
func BuildBuyerFilter(ctx context.Context, r Resolver, city, state string, radiusMiles float64, now time.Time) models.BuyerFilter {
	fallback := models.BuyerFilter{
		NearbyCities:   []string{city},
		RadiusMiles:    radiusMiles,
		LastCityUpdate: now,
	}
	if r == nil {
		return fallback
	}

	nearby, err := r.NearbyCities(ctx, city, state, radiusMiles)
	if err != nil || len(nearby) == 0 {
		return fallback
	}

	names := make([]string, 0, len(nearby)+1)
	points := make([]Coordinates, 0, len(nearby)+1)
	hasCenter := false
	for _, c := range nearby {
		names = append(names, c.Name)
		points = append(points, c.Coordinates)
		if SameCity(c.Name, city) {
			hasCenter = true
		}
	}
	if !hasCenter {
		names = append([]string{city}, names...)
	}

	f := models.BuyerFilter{
		NearbyCities:   names,
		RadiusMiles:    radiusMiles,
		BoundingBox:    BoundingBoxOf(points...),
		LastCityUpdate: now,
	}
	if center, err := r.Resolve(ctx, city, state); err == nil {
		f.GeohashPrefix = Geohash(center.Lat, center.Lng, 3)
		if !hasCenter {
			f.BoundingBox = BoundingBoxOf(append(points, center)...)
		}
	}
	return f
}

// ShouldUpdateFilter reports whether a stored filter must be regenerated:
// it is missing, the buyer moved out of it, or it is older than FilterMaxAge.
func ShouldUpdateFilter(currentCity string, f *models.BuyerFilter, now time.Time) bool {
	if f == nil || len(f.NearbyCities) == 0 {
		return true
	}
	found := false
	for _, c := range f.NearbyCities {
		if SameCity(c, currentCity) {
			found = true
			break
		}
	}
	if !found {
		return true
	}
	return now.Sub(f.LastCityUpdate) > FilterMaxAge
}

// FilterStats renders a one-line summary of a filter.
func FilterStats(f *models.BuyerFilter, now time.Time) string {
	if f == nil {
		return "No filter configured"
	}
	days := int(now.Sub(f.LastCityUpdate).Hours() / 24)
	return fmt.Sprintf("%d cities within %g miles (updated %d days ago)",
		len(f.NearbyCities), f.RadiusMiles, days)
}

// Enricher fills in coordinates and nearby-city lists on buyers and
// properties before they are stored or matched.
type Enricher struct {
	resolver     Resolver
	nearbyRadius float64
	logger       *utils.Logger
	now          func() time.Time
}

// NewEnricher creates an Enricher. nearbyRadius is the radius used for
// property nearby-city lists.
func NewEnricher(r Resolver, nearbyRadius float64, logger *utils.Logger) *Enricher {
	return &Enricher{resolver: r, nearbyRadius: nearbyRadius, logger: logger, now: time.Now}
}

// EnrichBuyer sets the buyer's coordinates and regenerates the filter when
// it is stale.
func (e *Enricher) EnrichBuyer(ctx context.Context, b *models.BuyerProfile, defaultRadius float64) {
	if IsUnsetState(b.PreferredState) || strings.TrimSpace(b.PreferredCity) == "" {
		return
	}
	radius := b.SearchRadius
	if radius <= 0 {
		radius = defaultRadius
	}

	if b.Latitude == nil || b.Longitude == nil {
		if c, err := e.resolver.Resolve(ctx, b.PreferredCity, b.PreferredState); err == nil {
			b.Latitude, b.Longitude = &c.Lat, &c.Lng
		} else {
			e.logger.Warn("[geo] Could not resolve buyer %s city %s, %s: %v",
				b.ID, b.PreferredCity, b.PreferredState, err)
		}
	}

	now := e.now()
	if ShouldUpdateFilter(b.PreferredCity, b.Filter, now) {
		f := BuildBuyerFilter(ctx, e.resolver, b.PreferredCity, b.PreferredState, radius, now)
		b.Filter = &f
		e.logger.Debug("[geo] Buyer %s filter: %s", b.ID, FilterStats(b.Filter, now))
	}
}

// EnrichProperty sets the listing's coordinates and nearby cities when
// they are missing.
func (e *Enricher) EnrichProperty(ctx context.Context, p *models.PropertyListing) {
	if strings.TrimSpace(p.City) == "" || IsUnsetState(p.State) {
		return
	}
	if p.Latitude == nil || p.Longitude == nil {
		if c, err := e.resolver.Resolve(ctx, p.City, p.State); err == nil {
			p.Latitude, p.Longitude = &c.Lat, &c.Lng
		} else {
			e.logger.Warn("[geo] Could not resolve property %s city %s, %s: %v", p.ID, p.City, p.State, err)
		}
	}
	if len(p.NearbyCities) == 0 {
		cities, err := e.resolver.NearbyCities(ctx, p.City, p.State, e.nearbyRadius)
		if err != nil {
			e.logger.Debug("[geo] No nearby cities for property %s: %v", p.ID, err)
			return
		}
		for _, c := range cities {
			p.NearbyCities = append(p.NearbyCities, c.Name)
		}
	}
}
