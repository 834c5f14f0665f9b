package geo

import "strings"

var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR",
	"california": "CA", "colorado": "CO", "connecticut": "CT", "delaware": "DE",
	"district of columbia": "DC", "florida": "FL", "georgia": "GA", "hawaii": "HI",
	"idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME",
	"maryland": "MD", "massachusetts": "MA", "michigan": "MI", "minnesota": "MN",
	"mississippi": "MS", "missouri": "MO", "montana": "MT", "nebraska": "NE",
	"nevada": "NV", "new hampshire": "NH", "new jersey": "NJ", "new mexico": "NM",
	"new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI",
	"south carolina": "SC", "south dakota": "SD", "tennessee": "TN", "texas": "TX",
	"utah": "UT", "vermont": "VT", "virginia": "VA", "washington": "WA",
	"west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

// NormalizeState maps a state name or code to its two-letter USPS code.
// Unknown values are returned trimmed and upper-cased.
func NormalizeState(state string) string {
	s := strings.TrimSpace(state)
	if s == "" {
		return ""
	}
	if code, ok := stateCodes[strings.ToLower(s)]; ok {
		return code
	}
	return strings.ToUpper(s)
}

// IsUnsetState reports whether a profile's state carries no usable value.
func IsUnsetState(state string) bool {
	switch strings.ToLower(strings.TrimSpace(state)) {
	case "", "not set", "unknown", "n/a":
		return true
	}
	return false
}

// SameCity compares city names case-insensitively, ignoring surrounding
// whitespace.
func SameCity(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && strings.EqualFold(a, b)
}
