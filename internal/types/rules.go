// internal/types/rules.go
package types

/*
 * Domain types for rule-table parsing.
 *
 * Provides RuleEntry, the parsed form of one rule-table line, consumed by
 * internal/rules when building a lookup. The raw country text is kept verbatim;
 * extraction into country codes happens in the rules package.
 *
 * Rule-table line format:
 *   <tag>\t<ship-method>\t<countries>[\t<ignored>...]
 *
 * Dependencies: None
 */

// RuleTag is the only tag value (compared case-insensitively) whose lines are kept.
const RuleTag = "LogSpec"

// RuleFieldSeparator separates fields within a rule-table line.
const RuleFieldSeparator = "\t"

// RuleEntry is one retained line of the rule table.
type RuleEntry struct {
	Tag         string        // as written; matches RuleTag case-insensitively
	ShipMethod  ShipMethodKey // trimmed
	CountryText string        // trimmed, may be empty
	Line        int           // 1-based source line, for diagnostics
}
