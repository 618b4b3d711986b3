package repository

// Granularity selects the entity level a score is computed at.
type Granularity string

const (
	GranIssuer     Granularity = "issuer"
	GranAssetClass Granularity = "asset_class"
)

// IsValidGranularity returns true if g is supported.
func IsValidGranularity(g Granularity) bool {
	switch g {
	case GranIssuer, GranAssetClass:
		return true
	default:
		return false
	}
}

// DefaultGranularity returns the default scoring granularity.
func DefaultGranularity() Granularity { return GranIssuer }

// NormalizeGranularity converts a raw string to a valid granularity (or default).
func NormalizeGranularity(s string) Granularity {
	if s == "" {
		return DefaultGranularity()
	}
	g := Granularity(s)
	if IsValidGranularity(g) {
		return g
	}
	return DefaultGranularity()
}
