// internal/rules/matrix.go
package rules

import (
	"strings"

	"github.com/solatis/logspec/internal/types"
)

/*
 * Rule-table compilation into a Lookup.
 *
 * Build workflow:
 *   1. Parse: split lines, keep "LogSpec" rows with >= 3 tab fields, extract
 *      countries, union per ship method
 *   2. Infer: fill empty ship methods from similar ones (see inference.go)
 *   3. Freeze: hand the sets to an immutable Lookup
 *
 * Nothing here returns an error. The rule table is authored by hand and is
 * expected to contain foreign rows, short rows and blank cells; those are skipped
 * or produce empty sets. A table with no valid rows yields an empty Lookup.
 *
 * Determinism: map iteration never affects output. Inference runs over sorted
 * keys and reads a snapshot taken before any set is modified.
 */

// Builder compiles rule tables. Safe for concurrent use.
type Builder struct {
	extractor *Extractor
	inference Inference
}

// BuilderOption customises a Builder.
type BuilderOption func(*Builder)

// WithExtractor replaces the default country extractor.
func WithExtractor(e *Extractor) BuilderOption {
	return func(b *Builder) {
		if e != nil {
			b.extractor = e
		}
	}
}

// WithInference replaces the inference strategy. nil disables inference.
func WithInference(inf Inference) BuilderOption {
	return func(b *Builder) {
		if inf == nil {
			inf = NoInference{}
		}
		b.inference = inf
	}
}

// NewBuilder returns a builder with the default extractor and similarity inference.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		extractor: NewExtractor(nil),
		inference: NewSimilarityInference(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Inference returns the configured strategy.
func (b *Builder) Inference() Inference {
	return b.inference
}

// BuildLookup compiles text with default settings.
func BuildLookup(text string) *Lookup {
	return NewBuilder().Build(text)
}

// Build compiles a rule table into a new Lookup.
func (b *Builder) Build(text string) *Lookup {
	entries, report := ParseRuleTable(text)

	sets := make(map[types.ShipMethodKey]CountrySet)
	blank := make(map[types.ShipMethodKey]bool)
	for _, e := range entries {
		set := sets[e.ShipMethod]
		set.union(b.extractor.ParseCountries(e.CountryText))
		sets[e.ShipMethod] = set
		if e.CountryText == "" {
			blank[e.ShipMethod] = true
		}
	}

	snapshot := make(map[types.ShipMethodKey]CountrySet, len(sets))
	for k, s := range sets {
		snapshot[k] = s.clone()
	}

	inferred := b.inference.Infer(snapshot)
	applied := make([]Inferred, 0, len(inferred))
	for _, inf := range inferred {
		target, ok := sets[inf.Key]
		if !ok || !snapshot[inf.Key].IsEmpty() {
			continue
		}
		for _, src := range inf.Sources {
			if donor := snapshot[src]; !donor.IsEmpty() {
				target.union(donor)
			}
		}
		if target.IsEmpty() {
			continue
		}
		sets[inf.Key] = target
		applied = append(applied, inf)
	}
	report.Inferred = applied

	lookup := newLookup(sets, report)
	for _, k := range lookup.keys {
		if blank[k] {
			lookup.report.BlankCountryKeys = append(lookup.report.BlankCountryKeys, k)
		}
		if sets[k].IsEmpty() {
			lookup.report.EmptyKeys = append(lookup.report.EmptyKeys, k)
		}
	}
	return lookup
}

// ParseRuleTable splits rule-table text into retained entries.
// Lines with fewer than three fields, a foreign tag, or an empty ship method are
// counted as skipped. Blank lines are ignored entirely.
func ParseRuleTable(text string) ([]types.RuleEntry, BuildReport) {
	var report BuildReport
	var entries []types.RuleEntry

	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		report.Lines++

		fields := strings.Split(line, types.RuleFieldSeparator)
		if len(fields) < 3 || !strings.EqualFold(strings.TrimSpace(fields[0]), types.RuleTag) {
			report.Skipped++
			continue
		}

		key := types.ShipMethodKey(strings.TrimSpace(fields[1]))
		if key == "" {
			report.Skipped++
			continue
		}

		entries = append(entries, types.RuleEntry{
			Tag:         fields[0],
			ShipMethod:  key,
			CountryText: strings.TrimSpace(fields[2]),
			Line:        i + 1,
		})
		report.Accepted++
	}

	return entries, report
}
