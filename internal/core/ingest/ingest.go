// Package ingest reads delimited record files into types.Record values and
// writes filtered records back out in the source column order.
package ingest

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/solatis/logspec/internal/types"
)

// Header aliases, in priority order, after normalizeHeader.
var (
	shipMethodAliases = []string{"shipmethod", "ship method", "ship via"}
	countryAliases    = []string{"country", "ship to country", "country code", "destination country"}
)

// Options controls how a record file is read.
type Options struct {
	// Delimiter forces the field separator; 0 detects it from the header line.
	Delimiter rune
	// MaxBytes caps the input size; 0 means types.MaxRecordFileSize.
	MaxBytes int64
}

// Table is a parsed record file.
type Table struct {
	Header    []string
	Delimiter rune
	Records   []types.Record
	// Replaced counts invalid UTF-8 bytes rewritten to '?'.
	Replaced int
}

// HeaderIndex maps normalized header names to the first column carrying them.
type HeaderIndex map[string]int

// MakeHeaderIndex builds a HeaderIndex from a header row.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// Find returns the column of the first alias present.
func (h HeaderIndex) Find(aliases []string) (int, bool) {
	for _, a := range aliases {
		if i, ok := h[a]; ok {
			return i, true
		}
	}
	return -1, false
}

// normalizeHeader lowercases, maps '_' and '-' to spaces and collapses whitespace.
func normalizeHeader(h string) string {
	h = strings.ToLower(cleanCell(h))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

// cleanCell trims whitespace and the Excel ="..." text wrapper.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, `="`) && strings.HasSuffix(s, `"`) && len(s) >= 3 {
		s = s[2 : len(s)-1]
	}
	return s
}

// ParseDelimiter accepts "", "auto", ",", "comma", "tab", `\t`, ";" and "semicolon".
// The empty string and "auto" return 0.
func ParseDelimiter(s string) (rune, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return 0, nil
	case ",", "comma":
		return ',', nil
	case "tab", `\t`, "\t":
		return '\t', nil
	case ";", "semicolon":
		return ';', nil
	}
	return 0, fmt.Errorf("unsupported delimiter %q", s)
}

// DetectDelimiter picks tab, semicolon or comma by counting them in the header line.
func DetectDelimiter(headerLine string) rune {
	tabs := strings.Count(headerLine, "\t")
	commas := strings.Count(headerLine, ",")
	semis := strings.Count(headerLine, ";")

	switch {
	case tabs > 0 && tabs >= commas && tabs >= semis:
		return '\t'
	case semis > commas:
		return ';'
	default:
		return ','
	}
}

// ReadFile opens path and reads it with Read.
func ReadFile(path string, opts Options) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Read parses a delimited record stream. The header row must contain a ship
// method and a country column; every other column passes through in Fields.
func Read(r io.Reader, opts Options) (*Table, error) {
	limit := opts.MaxBytes
	if limit <= 0 {
		limit = types.MaxRecordFileSize
	}

	san, err := newSanitizer(&limitReader{r: r, limit: limit})
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(san)

	// Leading blank lines are skipped
	var headerLine string
	for {
		headerLine, err = br.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, err
		}
		if strings.TrimSpace(headerLine) != "" {
			break
		}
		if err == io.EOF {
			return nil, types.ErrEmptyInput
		}
	}

	delim := opts.Delimiter
	if delim == 0 {
		delim = DetectDelimiter(headerLine)
	}

	cr := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), br))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, types.ErrEmptyInput
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > types.MaxFieldsPerRecord {
		return nil, fmt.Errorf("%w: %d columns (max %d)", types.ErrTooManyFields, len(header), types.MaxFieldsPerRecord)
	}
	for i := range header {
		header[i] = cleanCell(header[i])
	}

	idx := MakeHeaderIndex(header)
	shipCol, ok := idx.Find(shipMethodAliases)
	if !ok {
		return nil, fmt.Errorf("%w: ship method (one of %s)", types.ErrMissingColumn, strings.Join(shipMethodAliases, ", "))
	}
	countryCol, ok := idx.Find(countryAliases)
	if !ok {
		return nil, fmt.Errorf("%w: country (one of %s)", types.ErrMissingColumn, strings.Join(countryAliases, ", "))
	}

	t := &Table{Header: header, Delimiter: delim}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		// Short rows are padded; cells beyond the header are dropped
		fields := make(map[string]string, len(header))
		values := make([]string, len(header))
		for i, name := range header {
			if i < len(row) {
				values[i] = row[i]
			}
			if _, dup := fields[name]; !dup {
				fields[name] = values[i]
			}
		}

		t.Records = append(t.Records, types.Record{
			ShipMethod: cellAt(row, shipCol),
			Country:    cellAt(row, countryCol),
			Fields:     fields,
			Values:     values,
		})
	}

	t.Replaced = san.Replaced()
	return t, nil
}

func cellAt(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

// WriteCSV writes header and records using delim. A record whose Values match
// the header width is written by position; otherwise each cell comes from
// Record.Fields by header name.
func WriteCSV(w io.Writer, delim rune, header []string, records []types.Record) error {
	if delim == 0 {
		delim = ','
	}
	cw := csv.NewWriter(w)
	cw.Comma = delim

	if err := cw.Write(header); err != nil {
		return err
	}
	row := make([]string, len(header))
	for _, rec := range records {
		if len(rec.Values) == len(header) {
			copy(row, rec.Values)
		} else {
			for i, name := range header {
				row[i] = rec.Field(name)
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
