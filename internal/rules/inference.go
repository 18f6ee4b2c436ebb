// internal/rules/inference.go
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/solatis/logspec/internal/types"
)

/*
 * Country inference for incomplete rules.
 *
 * Some ship methods appear in the rule table with no usable country text, usually
 * because they are variants of another method ("CARRIER_AIR_UD_STD" next to
 * "CARRIER_AIR_STD"). After parsing, an Inference strategy proposes donor keys for
 * every empty key and the builder unions the donors' sets into it.
 *
 * SimilarityInference uses two heuristics:
 *
 *   a. normalized-variant match: split on "_", drop license, unaccompanied-
 *      description, hazard and default-variant segments, fold hazard categories
 *      ("LQ2" -> "LQ"), lowercase, compare.
 *   b. shared-prefix match: for keys with more than two segments, siblings that
 *      share every segment but the last are donors only when they already hold
 *      MinSiblingEntries entries.
 *
 * The result is approximate: false positives and negatives are possible.
 * Inference reads only the post-parse snapshot, so keys filled in this pass are
 * never donors (single pass, non-transitive).
 */

// Inferred records one key filled by inference and the donors it was filled from.
type Inferred struct {
	Key     types.ShipMethodKey
	Sources []types.ShipMethodKey
}

// Inference proposes donors for ship methods whose set is empty after parsing.
// Implementations must not mutate sets and must only return non-empty donors.
type Inference interface {
	Name() string
	Infer(sets map[types.ShipMethodKey]CountrySet) []Inferred
}

// Inference strategy names accepted by InferenceByName.
const (
	InferenceSimilarity = "similarity"
	InferenceNone       = "none"
)

// InferenceByName resolves a configured strategy name.
func InferenceByName(name string) (Inference, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", InferenceSimilarity:
		return NewSimilarityInference(), nil
	case InferenceNone:
		return NoInference{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownInference, name)
	}
}

// NoInference leaves empty keys empty.
type NoInference struct{}

func (NoInference) Name() string { return InferenceNone }

func (NoInference) Infer(map[types.ShipMethodKey]CountrySet) []Inferred { return nil }

// KeySeparator splits ship-method keys into segments.
const KeySeparator = "_"

// DefaultMinSiblingEntries is the donor threshold for shared-prefix matches.
const DefaultMinSiblingEntries = 5

// variantSegments are dropped before comparing keys.
var variantSegments = map[string]struct{}{
	// license markers
	"LIC": {}, "LICENSE": {}, "LICENSED": {}, "LICENCE": {},
	// unaccompanied description
	"UD": {}, "UNACC": {}, "UNACCOMPANIED": {},
	// hazard variants
	"HAZ": {}, "HAZMAT": {}, "DG": {},
	// default variants
	"DEFAULT": {}, "DFLT": {}, "DEF": {},
}

// hazardCategory folds numbered hazard categories onto their base.
var hazardCategory = regexp.MustCompile(`^(LQ|EQ|DG|CL|CLASS|PI|UN)\d+[A-Z]?$`)

// SimilarityInference infers countries from similarly named ship methods.
type SimilarityInference struct {
	MinSiblingEntries int
}

// NewSimilarityInference returns the default similarity strategy.
func NewSimilarityInference() *SimilarityInference {
	return &SimilarityInference{MinSiblingEntries: DefaultMinSiblingEntries}
}

func (s *SimilarityInference) Name() string { return InferenceSimilarity }

// Infer returns donors for every empty key, in sorted key order.
func (s *SimilarityInference) Infer(sets map[types.ShipMethodKey]CountrySet) []Inferred {
	keys := make([]types.ShipMethodKey, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	// Donor index built from non-empty keys only
	byVariant := make(map[string][]types.ShipMethodKey)
	var donors []types.ShipMethodKey
	for _, k := range keys {
		if sets[k].IsEmpty() {
			continue
		}
		donors = append(donors, k)
		if n := NormalizeVariant(k); n != "" {
			byVariant[n] = append(byVariant[n], k)
		}
	}

	var out []Inferred
	for _, target := range keys {
		if !sets[target].IsEmpty() {
			continue
		}

		found := make(map[types.ShipMethodKey]struct{})
		if n := NormalizeVariant(target); n != "" {
			for _, k := range byVariant[n] {
				found[k] = struct{}{}
			}
		}

		if prefix, ok := basePrefix(target); ok {
			for _, k := range donors {
				if strings.HasPrefix(string(k), prefix) && sets[k].Len() >= s.MinSiblingEntries {
					found[k] = struct{}{}
				}
			}
		}

		delete(found, target)
		if len(found) == 0 {
			continue
		}

		sources := make([]types.ShipMethodKey, 0, len(found))
		for k := range found {
			sources = append(sources, k)
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })
		out = append(out, Inferred{Key: target, Sources: sources})
	}

	return out
}

// NormalizeVariant reduces a key to its comparison form.
// Returns "" when nothing but variant markers remain.
func NormalizeVariant(key types.ShipMethodKey) string {
	segs := strings.Split(strings.TrimSpace(string(key)), KeySeparator)
	kept := make([]string, 0, len(segs))
	for _, seg := range segs {
		up := strings.ToUpper(strings.TrimSpace(seg))
		if up == "" {
			continue
		}
		if m := hazardCategory.FindStringSubmatch(up); m != nil {
			up = m[1]
		}
		if _, drop := variantSegments[up]; drop {
			continue
		}
		kept = append(kept, strings.ToLower(up))
	}
	return strings.Join(kept, KeySeparator)
}

// basePrefix returns every segment but the last, with a trailing separator.
func basePrefix(key types.ShipMethodKey) (string, bool) {
	segs := strings.Split(string(key), KeySeparator)
	if len(segs) <= 2 {
		return "", false
	}
	return strings.Join(segs[:len(segs)-1], KeySeparator) + KeySeparator, true
}
