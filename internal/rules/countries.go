// internal/rules/countries.go
package rules

import (
	"regexp"
	"sort"
	"strings"

	"github.com/solatis/logspec/internal/types"
)

/*
 * Country-token extraction from free-text rule cells.
 *
 * Rule-table country cells are hand-written: "FR|DE", "GB, IE", "Within EU",
 * "GB, plus Outside of EU shipments", "NC Import Only". ParseCountries unions
 * every interpretation instead of picking one:
 *
 *   1. "Within EU"      -> every reference-region code, materialized
 *   2. "Outside of EU"  -> the outside-region sentinel, resolved at match time
 *   3. maximal letter runs that are all uppercase and 2-3 long
 *   4. pipe/slash separated pieces that are 2-3 uppercase letters
 *   5. candidates from 3-4 minus the deny-list
 *
 * Region phrases are matched case-insensitively; code tokens must already be
 * uppercase ("fr" is never a code).
 *
 * The deny-list is data, not logic. DefaultDenyList covers tokens seen in real
 * tables; config key rules.deny_list replaces it.
 */

const (
	withinRegionPhrase  = "within eu"
	outsideRegionPhrase = "outside of eu"
)

// OutsideRegion is the display form of the outside-region sentinel.
// It is never a valid CountryCode (contains non-letters).
const OutsideRegion = "<outside EU>"

// DefaultDenyList holds code-shaped tokens that are never countries in rule tables.
var DefaultDenyList = []string{
	"EU",  // the region name itself
	"NC",  // "NC Import Only"
	"UD",  // unaccompanied description
	"DG",  // dangerous goods
	"LQ",  // limited quantity
	"UN",  // UN numbers
	"TBD", "TBC",
	"DDP", "DAP", "EXW", // incoterms
	"ALL", "NOT", "THE", "FOR", "VIA", "OR",
}

var (
	letterRun = regexp.MustCompile(`\p{L}+`)
	codeShape = regexp.MustCompile(`^[A-Z]{2,3}$`)
)

// CountrySet is a set of country codes plus an optional outside-region sentinel.
// The zero value is an empty set. Exported methods never mutate.
type CountrySet struct {
	codes   map[types.CountryCode]struct{}
	outside bool
}

// NewCountrySet returns a set holding codes (normalized), optionally with the sentinel.
func NewCountrySet(outside bool, codes ...types.CountryCode) CountrySet {
	s := CountrySet{outside: outside}
	for _, c := range codes {
		s.add(types.NormalizeCountry(string(c)))
	}
	return s
}

// Contains reports whether code is literally present. The sentinel is not consulted.
func (s CountrySet) Contains(code types.CountryCode) bool {
	_, ok := s.codes[code]
	return ok
}

// HasOutsideRegion reports whether the outside-region sentinel is present.
func (s CountrySet) HasOutsideRegion() bool {
	return s.outside
}

// Len counts entries, the sentinel included.
func (s CountrySet) Len() int {
	n := len(s.codes)
	if s.outside {
		n++
	}
	return n
}

// IsEmpty reports whether the set has no codes and no sentinel.
func (s CountrySet) IsEmpty() bool {
	return s.Len() == 0
}

// Codes returns the literal codes in sorted order.
func (s CountrySet) Codes() []types.CountryCode {
	out := make([]types.CountryCode, 0, len(s.codes))
	for c := range s.codes {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Entries returns sorted codes followed by OutsideRegion when the sentinel is set.
func (s CountrySet) Entries() []string {
	codes := s.Codes()
	out := make([]string, 0, len(codes)+1)
	for _, c := range codes {
		out = append(out, string(c))
	}
	if s.outside {
		out = append(out, OutsideRegion)
	}
	return out
}

// Equal reports whether both sets hold the same codes and sentinel.
func (s CountrySet) Equal(other CountrySet) bool {
	if s.outside != other.outside || len(s.codes) != len(other.codes) {
		return false
	}
	for c := range s.codes {
		if _, ok := other.codes[c]; !ok {
			return false
		}
	}
	return true
}

func (s CountrySet) String() string {
	return strings.Join(s.Entries(), "|")
}

func (s *CountrySet) add(code types.CountryCode) {
	if s.codes == nil {
		s.codes = make(map[types.CountryCode]struct{})
	}
	s.codes[code] = struct{}{}
}

func (s *CountrySet) union(other CountrySet) {
	for c := range other.codes {
		s.add(c)
	}
	if other.outside {
		s.outside = true
	}
}

func (s CountrySet) clone() CountrySet {
	out := CountrySet{outside: s.outside}
	for c := range s.codes {
		out.add(c)
	}
	return out
}

// Extractor parses free-text country cells. Safe for concurrent use after construction.
type Extractor struct {
	deny map[types.CountryCode]struct{}
}

// NewExtractor builds an extractor with the given deny-list.
// A nil list means DefaultDenyList; an empty non-nil list disables denial.
func NewExtractor(denyList []string) *Extractor {
	if denyList == nil {
		denyList = DefaultDenyList
	}
	deny := make(map[types.CountryCode]struct{}, len(denyList))
	for _, d := range denyList {
		if code := types.NormalizeCountry(d); code != "" {
			deny[code] = struct{}{}
		}
	}
	return &Extractor{deny: deny}
}

// ParseCountries converts a country cell into a CountrySet.
// Empty or whitespace-only text yields an empty set.
func (e *Extractor) ParseCountries(text string) CountrySet {
	var set CountrySet
	if strings.TrimSpace(text) == "" {
		return set
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, withinRegionPhrase) {
		for _, c := range regionCodes {
			set.add(c)
		}
	}
	if strings.Contains(lower, outsideRegionPhrase) {
		set.outside = true
	}

	for _, run := range letterRun.FindAllString(text, -1) {
		e.accept(&set, run)
	}

	pieces := strings.FieldsFunc(text, func(r rune) bool { return r == '|' || r == '/' })
	for _, p := range pieces {
		e.accept(&set, strings.TrimSpace(p))
	}

	return set
}

// accept adds token when it has code shape and is not denied.
func (e *Extractor) accept(set *CountrySet, token string) {
	if !codeShape.MatchString(token) {
		return
	}
	code := types.CountryCode(token)
	if _, denied := e.deny[code]; denied {
		return
	}
	set.add(code)
}

// Denied reports whether token is on this extractor's deny-list.
func (e *Extractor) Denied(token string) bool {
	_, ok := e.deny[types.NormalizeCountry(token)]
	return ok
}
