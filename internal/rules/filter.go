// internal/rules/filter.go
package rules

import (
	"strings"

	"github.com/solatis/logspec/internal/types"
)

/*
 * Record membership evaluation.
 *
 * A record is a logspec line when its ship method has a non-empty rule and its
 * country either appears literally in the rule's set or the set carries the
 * outside-region sentinel and the country is outside the reference region.
 * "Within EU" needs no special case here: the extractor already materialized
 * every in-region code into the set.
 *
 * Fail-closed: blank fields, unknown ship methods and empty sets never match.
 */

// MatchReason explains why a record was or was not selected.
type MatchReason int

const (
	ReasonNoMatch MatchReason = iota
	ReasonBlankField
	ReasonUnknownShipMethod
	ReasonEmptyRule
	ReasonListedCountry
	ReasonOutsideRegion
)

func (r MatchReason) String() string {
	switch r {
	case ReasonBlankField:
		return "blank_field"
	case ReasonUnknownShipMethod:
		return "unknown_ship_method"
	case ReasonEmptyRule:
		return "empty_rule"
	case ReasonListedCountry:
		return "listed_country"
	case ReasonOutsideRegion:
		return "outside_region"
	default:
		return "no_match"
	}
}

// Matched reports whether the reason selects the record.
func (r MatchReason) Matched() bool {
	return r == ReasonListedCountry || r == ReasonOutsideRegion
}

// FilterResult is the stable-order subsequence of matching records plus the
// pre-filter total.
type FilterResult struct {
	Records []types.Record
	Total   int
}

// Matched returns the number of selected records.
func (r FilterResult) Matched() int {
	return len(r.Records)
}

// Explain evaluates record against lookup and returns the deciding reason.
func Explain(record types.Record, lookup *Lookup) MatchReason {
	method := types.ShipMethodKey(strings.TrimSpace(record.ShipMethod))
	country := types.NormalizeCountry(record.Country)
	if method == "" || country == "" {
		return ReasonBlankField
	}

	set, ok := lookup.Get(method)
	if !ok {
		return ReasonUnknownShipMethod
	}
	if set.IsEmpty() {
		return ReasonEmptyRule
	}

	if set.Contains(country) {
		return ReasonListedCountry
	}
	if set.HasOutsideRegion() && !IsInReferenceRegion(country) {
		return ReasonOutsideRegion
	}
	return ReasonNoMatch
}

// IsLogspecLine reports whether record is subject to a logspec rule in lookup.
func IsLogspecLine(record types.Record, lookup *Lookup) bool {
	return Explain(record, lookup).Matched()
}

// FilterLogspecLines returns the matching records in input order.
// The same lookup serves every record; callers pass a single snapshot.
func FilterLogspecLines(records []types.Record, lookup *Lookup) FilterResult {
	result := FilterResult{Total: len(records)}
	for _, r := range records {
		if IsLogspecLine(r, lookup) {
			result.Records = append(result.Records, r)
		}
	}
	return result
}
