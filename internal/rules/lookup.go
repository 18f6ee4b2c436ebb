// internal/rules/lookup.go
package rules

import (
	"crypto/sha256"
	"fmt"
	"sort"

	"github.com/solatis/logspec/internal/types"
)

// BuildReport describes what a Build did with its input.
type BuildReport struct {
	Lines            int                   // non-blank lines seen
	Accepted         int                   // lines retained as rule entries
	Skipped          int                   // malformed or foreign-tag lines
	BlankCountryKeys []types.ShipMethodKey // keys with at least one blank country cell
	Inferred         []Inferred            // keys filled by inference
	EmptyKeys        []types.ShipMethodKey // keys still empty after inference (match nothing)
}

// Lookup maps ship methods to their resolved country sets.
// Immutable once returned by Build; safe for concurrent readers.
type Lookup struct {
	sets     map[types.ShipMethodKey]CountrySet
	keys     []types.ShipMethodKey
	report   BuildReport
	checksum string
}

func newLookup(sets map[types.ShipMethodKey]CountrySet, report BuildReport) *Lookup {
	keys := make([]types.ShipMethodKey, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	l := &Lookup{sets: sets, keys: keys, report: report}
	l.checksum = computeChecksum(l)
	return l
}

// Get returns the set for key. A present key with an empty set is still present.
func (l *Lookup) Get(key types.ShipMethodKey) (CountrySet, bool) {
	if l == nil {
		return CountrySet{}, false
	}
	s, ok := l.sets[key]
	return s, ok
}

// Keys returns every ship method in sorted order.
func (l *Lookup) Keys() []types.ShipMethodKey {
	if l == nil {
		return nil
	}
	out := make([]types.ShipMethodKey, len(l.keys))
	copy(out, l.keys)
	return out
}

// Len returns the number of ship methods.
func (l *Lookup) Len() int {
	if l == nil {
		return 0
	}
	return len(l.sets)
}

// Report returns the build diagnostics.
func (l *Lookup) Report() BuildReport {
	if l == nil {
		return BuildReport{}
	}
	return l.report
}

// Checksum is a content hash over keys and resolved sets.
// Identical rule tables (after resolution) always produce identical checksums.
func (l *Lookup) Checksum() string {
	if l == nil {
		return computeChecksum(&Lookup{})
	}
	return l.checksum
}

// Equal reports whether both lookups map the same keys to equal sets.
func (l *Lookup) Equal(other *Lookup) bool {
	if l.Len() != other.Len() {
		return false
	}
	for _, k := range l.Keys() {
		a, _ := l.Get(k)
		b, ok := other.Get(k)
		if !ok || !a.Equal(b) {
			return false
		}
	}
	return true
}

// computeChecksum hashes sorted keys with their sorted entries.
// Key order is fixed by newLookup so map iteration never leaks into the hash.
func computeChecksum(l *Lookup) string {
	h := sha256.New()
	for _, k := range l.keys {
		h.Write([]byte(k))
		h.Write([]byte{0})
		for _, e := range l.sets[k].Entries() {
			h.Write([]byte(e))
			h.Write([]byte{'|'})
		}
		h.Write([]byte{'\n'})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
