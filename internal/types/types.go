// Package types provides domain models shared across logspec components.
//
// Zero-dependency design: types.go and errors.go use only the standard library so
// the rule core stays importable without pulling in transport or storage deps. ID
// utilities in ids.go import uuid but are isolated from the rule core.
package types

import "strings"

// CountryCode is a normalized 2-3 letter uppercase country token ("FR", "DEU").
type CountryCode string

// ShipMethodKey identifies a shipping method exactly as written in the rule table.
// Case-sensitive; never normalized beyond trimming.
type ShipMethodKey string

// LoadID identifies one load of a rule table (UUIDv7).
type LoadID string

// RunID identifies one recorded filter run (UUIDv7).
type RunID string

// Record is a single row handed over by the ingestion layer.
// ShipMethod and Country are the only fields the rule core reads; Fields carries
// the source row keyed by header name (the first column wins for a repeated name)
// and passes through unexamined. Values holds the same row by column position
// when it was read from a file, so repeated header names survive a round trip.
type Record struct {
	ShipMethod string
	Country    string
	Fields     map[string]string
	Values     []string
}

// Field returns a named pass-through value, or "" when absent.
func (r Record) Field(name string) string {
	if r.Fields == nil {
		return ""
	}
	return r.Fields[name]
}

// NormalizeCountry uppercases and trims a free-form country value for comparison.
func NormalizeCountry(s string) CountryCode {
	return CountryCode(strings.ToUpper(strings.TrimSpace(s)))
}

// Limits applied at the service boundary. The rule core itself has none.
const (
	// MaxRuleTableSize caps an uploaded rule table; real tables are a few hundred KB.
	MaxRuleTableSize = 8 * 1024 * 1024

	// MaxRecordFileSize caps a record file accepted by the CLI and HTTP surfaces.
	MaxRecordFileSize = 256 * 1024 * 1024

	// MaxFieldsPerRecord bounds pass-through columns per record.
	MaxFieldsPerRecord = 512
)
