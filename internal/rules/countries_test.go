// internal/rules/countries_test.go
package rules

import (
	"reflect"
	"testing"

	"github.com/solatis/logspec/internal/types"
)

func TestIsInReferenceRegion(t *testing.T) {
	tests := []struct {
		code types.CountryCode
		want bool
	}{
		{"FR", true},
		{"de", true},
		{" PL ", true},
		{"XI", true},
		{"MC", true},
		{"GB", false},
		{"US", false},
		{"CH", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsInReferenceRegion(tt.code); got != tt.want {
			t.Errorf("IsInReferenceRegion(%q) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestReferenceRegionCodes_SortedCopy(t *testing.T) {
	codes := ReferenceRegionCodes()
	if len(codes) != 29 {
		t.Fatalf("len(ReferenceRegionCodes()) = %d, want 29", len(codes))
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted at %d: %v >= %v", i, codes[i-1], codes[i])
		}
	}

	codes[0] = "ZZ"
	if ReferenceRegionCodes()[0] == "ZZ" {
		t.Errorf("ReferenceRegionCodes() exposed internal slice")
	}
}

func TestParseCountries(t *testing.T) {
	e := NewExtractor(nil)

	tests := []struct {
		name        string
		text        string
		wantCodes   []types.CountryCode
		wantOutside bool
	}{
		{name: "empty", text: "", wantCodes: []types.CountryCode{}},
		{name: "whitespace only", text: "  \t ", wantCodes: []types.CountryCode{}},
		{name: "pipe list", text: "FR|DE", wantCodes: []types.CountryCode{"DE", "FR"}},
		{name: "slash list with spaces", text: "GB / IE", wantCodes: []types.CountryCode{"GB", "IE"}},
		{name: "comma prose", text: "GB, IE and NL", wantCodes: []types.CountryCode{"GB", "IE", "NL"}},
		{name: "three letter codes", text: "DEU|FRA", wantCodes: []types.CountryCode{"DEU", "FRA"}},
		{name: "lowercase ignored", text: "fr|de", wantCodes: []types.CountryCode{}},
		{name: "mixed case word ignored", text: "Germany", wantCodes: []types.CountryCode{}},
		{name: "long uppercase word ignored", text: "EXPRESS", wantCodes: []types.CountryCode{}},
		{name: "digits bound tokens", text: "FR1DE", wantCodes: []types.CountryCode{"DE", "FR"}},
		{name: "deny list NC", text: "NC Import Only", wantCodes: []types.CountryCode{}},
		{name: "Namibia kept", text: "ZA|NA", wantCodes: []types.CountryCode{"NA", "ZA"}},
		{name: "Namibia in prose", text: "Namibia (NA)", wantCodes: []types.CountryCode{"NA"}},
		{name: "Andorra alpha-3 kept", text: "AND|FRA", wantCodes: []types.CountryCode{"AND", "FRA"}},
		{name: "not applicable", text: "N/A", wantCodes: []types.CountryCode{}},
		{name: "outside sentinel", text: "Outside of EU", wantCodes: []types.CountryCode{}, wantOutside: true},
		{name: "outside sentinel lowercase phrase", text: "outside of eu", wantCodes: []types.CountryCode{}, wantOutside: true},
		{
			name:        "mixed entry",
			text:        "GB, plus Outside of EU shipments",
			wantCodes:   []types.CountryCode{"GB"},
			wantOutside: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.ParseCountries(tt.text)
			if codes := got.Codes(); !reflect.DeepEqual(codes, tt.wantCodes) {
				t.Errorf("Codes() = %v, want %v", codes, tt.wantCodes)
			}
			if got.HasOutsideRegion() != tt.wantOutside {
				t.Errorf("HasOutsideRegion() = %v, want %v", got.HasOutsideRegion(), tt.wantOutside)
			}
		})
	}
}

func TestParseCountries_WithinRegionExpands(t *testing.T) {
	e := NewExtractor(nil)

	got := e.ParseCountries("Within EU")
	if got.HasOutsideRegion() {
		t.Errorf("HasOutsideRegion() = true, want false")
	}
	if got.Contains("EU") {
		t.Errorf("Contains(EU) = true, want false (EU is denied)")
	}
	for _, c := range ReferenceRegionCodes() {
		if !got.Contains(c) {
			t.Errorf("Contains(%s) = false, want true", c)
		}
	}
	if got.Len() != len(ReferenceRegionCodes()) {
		t.Errorf("Len() = %d, want %d", got.Len(), len(ReferenceRegionCodes()))
	}
}

func TestParseCountries_WithinRegionUnionsLiterals(t *testing.T) {
	e := NewExtractor(nil)

	got := e.ParseCountries("GB, Within EU")
	if !got.Contains("GB") {
		t.Errorf("Contains(GB) = false, want true")
	}
	if !got.Contains("FR") {
		t.Errorf("Contains(FR) = false, want true")
	}
	if got.Len() != len(ReferenceRegionCodes())+1 {
		t.Errorf("Len() = %d, want %d", got.Len(), len(ReferenceRegionCodes())+1)
	}
}

func TestNewExtractor_CustomDenyList(t *testing.T) {
	e := NewExtractor([]string{"gb", " XX "})

	got := e.ParseCountries("GB|XX|NC")
	if want := []types.CountryCode{"NC"}; !reflect.DeepEqual(got.Codes(), want) {
		t.Errorf("Codes() = %v, want %v", got.Codes(), want)
	}
	if !e.Denied("gb") {
		t.Errorf("Denied(gb) = false, want true")
	}

	open := NewExtractor([]string{})
	if !open.ParseCountries("NC").Contains("NC") {
		t.Errorf("empty deny-list should accept NC")
	}
}

func TestCountrySet_Entries(t *testing.T) {
	s := NewCountrySet(true, "fr", "DE")

	want := []string{"DE", "FR", OutsideRegion}
	if got := s.Entries(); !reflect.DeepEqual(got, want) {
		t.Errorf("Entries() = %v, want %v", got, want)
	}
	if s.Len() != 3 {
		t.Errorf("Len() = %d, want 3", s.Len())
	}
	if s.String() != "DE|FR|"+OutsideRegion {
		t.Errorf("String() = %q", s.String())
	}

	var zero CountrySet
	if !zero.IsEmpty() || zero.Contains("FR") {
		t.Errorf("zero CountrySet should be empty")
	}
}

func TestCountrySet_Equal(t *testing.T) {
	a := NewCountrySet(false, "FR", "DE")
	b := NewCountrySet(false, "DE", "FR")
	c := NewCountrySet(true, "DE", "FR")

	if !a.Equal(b) {
		t.Errorf("a.Equal(b) = false, want true")
	}
	if a.Equal(c) {
		t.Errorf("a.Equal(c) = true, want false (sentinel differs)")
	}
}
