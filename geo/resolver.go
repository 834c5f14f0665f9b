package geo

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// ErrUnknownCity is returned when a city cannot be resolved.
var ErrUnknownCity = errors.New("unknown city")

// maxFuzzyDistance is the largest edit distance accepted when a city name
// is misspelled ("Huston" -> "Houston").
const maxFuzzyDistance = 2

// Resolver is the geo lookup service. Implementations may fail or return
// nothing; callers treat that as "no nearby cities known".
type Resolver interface {
	Resolve(ctx context.Context, city, state string) (Coordinates, error)
	NearbyCities(ctx context.Context, city, state string, radiusMiles float64) ([]City, error)
}

// CityIndex is an in-memory city database.
type CityIndex struct {
	byState map[string][]City
}

// NewCityIndex builds an index over cities.
func NewCityIndex(cities []City) *CityIndex {
	idx := &CityIndex{byState: make(map[string][]City)}
	for _, c := range cities {
		c.Name = strings.TrimSpace(c.Name)
		c.State = NormalizeState(c.State)
		if c.Name == "" || c.State == "" {
			continue
		}
		idx.byState[c.State] = append(idx.byState[c.State], c)
	}
	return idx
}

// LoadCityIndex reads a CSV city database with a header row and columns
// city,state,lat,lng.
func LoadCityIndex(path string) (*CityIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("geo: open city db %q: %w", path, err)
	}
	defer f.Close()
	return ReadCityIndex(f)
}

// ReadCityIndex parses the CSV format described at LoadCityIndex.
func ReadCityIndex(r io.Reader) (*CityIndex, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 4
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("geo: read city db: %w", err)
	}

	cities := make([]City, 0, len(records))
	for i, rec := range records {
		if i == 0 && strings.EqualFold(rec[0], "city") {
			continue
		}
		lat, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("geo: row %d: bad latitude %q: %w", i+1, rec[2], err)
		}
		lng, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("geo: row %d: bad longitude %q: %w", i+1, rec[3], err)
		}
		cities = append(cities, City{Name: rec[0], State: rec[1], Coordinates: Coordinates{Lat: lat, Lng: lng}})
	}
	return NewCityIndex(cities), nil
}

// Len returns the number of indexed cities.
func (idx *CityIndex) Len() int {
	n := 0
	for _, cs := range idx.byState {
		n += len(cs)
	}
	return n
}

// Lookup finds a city by exact name, falling back to the closest name
// within the same state.
func (idx *CityIndex) Lookup(city, state string) (City, bool) {
	candidates := idx.byState[NormalizeState(state)]
	name := strings.ToLower(strings.TrimSpace(city))
	if name == "" || len(candidates) == 0 {
		return City{}, false
	}

	best, bestDist := -1, maxFuzzyDistance+1
	for i, c := range candidates {
		cn := strings.ToLower(c.Name)
		if cn == name {
			return c, true
		}
		if d := levenshtein.ComputeDistance(cn, name); d < bestDist {
			best, bestDist = i, d
		}
	}
	if best < 0 {
		return City{}, false
	}
	return candidates[best], true
}

// Resolve implements Resolver.
func (idx *CityIndex) Resolve(_ context.Context, city, state string) (Coordinates, error) {
	c, ok := idx.Lookup(city, state)
	if !ok {
		return Coordinates{}, fmt.Errorf("%w: %s, %s", ErrUnknownCity, city, state)
	}
	return c.Coordinates, nil
}

// NearbyCities implements Resolver. The center city comes first; the rest
// are sorted by distance.
func (idx *CityIndex) NearbyCities(ctx context.Context, city, state string, radiusMiles float64) ([]City, error) {
	center, ok := idx.Lookup(city, state)
	if !ok {
		return nil, fmt.Errorf("%w: %s, %s", ErrUnknownCity, city, state)
	}
	return idx.WithinRadius(center.Coordinates, center.State, radiusMiles), nil
}

// WithinRadius returns the cities of state within radiusMiles of origin,
// nearest first, one entry per name.
func (idx *CityIndex) WithinRadius(origin Coordinates, state string, radiusMiles float64) []City {
	type hit struct {
		city City
		dist float64
	}
	var hits []hit
	for _, c := range idx.byState[NormalizeState(state)] {
		if d := HaversineMiles(origin, c.Coordinates); d <= radiusMiles {
			hits = append(hits, hit{c, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].dist < hits[j].dist })

	seen := make(map[string]struct{}, len(hits))
	out := make([]City, 0, len(hits))
	for _, h := range hits {
		key := strings.ToLower(h.city.Name)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, h.city)
	}
	return out
}

// Chain tries each resolver in order and returns the first success.
type Chain []Resolver

// Resolve implements Resolver.
func (ch Chain) Resolve(ctx context.Context, city, state string) (Coordinates, error) {
	lastErr := fmt.Errorf("%w: %s, %s", ErrUnknownCity, city, state)
	for _, r := range ch {
		c, err := r.Resolve(ctx, city, state)
		if err == nil {
			return c, nil
		}
		lastErr = err
	}
	return Coordinates{}, lastErr
}

// NearbyCities implements Resolver. An empty result from one resolver
// falls through to the next.
func (ch Chain) NearbyCities(ctx context.Context, city, state string, radiusMiles float64) ([]City, error) {
	lastErr := fmt.Errorf("%w: %s, %s", ErrUnknownCity, city, state)
	for _, r := range ch {
		cities, err := r.NearbyCities(ctx, city, state, radiusMiles)
		if err == nil && len(cities) > 0 {
			return cities, nil
		}
		if err != nil {
			lastErr = err
		}
	}
	return nil, lastErr
}
