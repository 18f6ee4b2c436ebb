// internal/rules/region.go
package rules

import (
	"sort"

	"github.com/solatis/logspec/internal/types"
)

/*
 * Reference region classification.
 *
 * The reference region is the EU bloc as used by the rule table's "Within EU"
 * and "Outside of EU" phrases: the 27 member states plus XI (Northern Ireland)
 * and MC (Monaco), which ship under EU customs rules and are bundled with the
 * bloc by carriers.
 *
 * Membership is fixed at compile time. Both functions are pure.
 */

var referenceRegion = map[types.CountryCode]struct{}{
	"AT": {}, "BE": {}, "BG": {}, "HR": {}, "CY": {}, "CZ": {}, "DK": {},
	"EE": {}, "FI": {}, "FR": {}, "DE": {}, "GR": {}, "HU": {}, "IE": {},
	"IT": {}, "LV": {}, "LT": {}, "LU": {}, "MT": {}, "NL": {}, "PL": {},
	"PT": {}, "RO": {}, "SK": {}, "SI": {}, "ES": {}, "SE": {},
	// bundled non-members
	"XI": {}, "MC": {},
}

// regionCodes is the sorted expansion used by "Within EU".
var regionCodes = func() []types.CountryCode {
	codes := make([]types.CountryCode, 0, len(referenceRegion))
	for c := range referenceRegion {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	return codes
}()

// IsInReferenceRegion reports whether code belongs to the reference region.
// Input is normalized (trimmed, uppercased) before the lookup.
func IsInReferenceRegion(code types.CountryCode) bool {
	_, ok := referenceRegion[types.NormalizeCountry(string(code))]
	return ok
}

// ReferenceRegionCodes returns a sorted copy of every in-region code.
func ReferenceRegionCodes() []types.CountryCode {
	out := make([]types.CountryCode, len(regionCodes))
	copy(out, regionCodes)
	return out
}
