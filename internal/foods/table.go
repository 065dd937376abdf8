// Package foods provides the static per-100g food composition table and the
// portion-scaled lookup used when a meal is logged.
//
// The table is loaded once at startup and is read-only afterwards, so a
// *Table is safe for concurrent use without locking.
package foods

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/nutrid/internal/nutrition"
)

// Common errors.
var (
	ErrFoodNotFound    = errors.New("food not found")
	ErrInvalidPortion  = errors.New("portion must be greater than 0")
	ErrPortionTooLarge = errors.New("portion too large")
	ErrMissingColumn   = errors.New("missing required column")
)

// MaxPortion is the largest single portion accepted, in grams.
const MaxPortion = 10000.0

// Column headers of the composition CSV.
const (
	ColumnName         = "Food (per 100g)"
	ColumnCalories     = "Calorie(kcal)"
	ColumnProtein      = "Protein(g)"
	ColumnFat          = "Fat(g)"
	ColumnCarbohydrate = "Carbohydrate(g)"
	ColumnCalcium      = "Calcium(mg)"
	ColumnNotes        = "Notes"
)

// Record is one row of the composition table. Nutrient values are per 100g.
type Record struct {
	Name    string              `json:"name"`
	Per100g nutrition.Nutrients `json:"per_100g"`
	Notes   string              `json:"notes,omitempty"`
}

// Match is the result of a successful lookup.
type Match struct {
	Record    Record
	Portion   float64             // grams
	Nutrients nutrition.Nutrients // Record.Per100g scaled by Portion/100
}

// Table is an immutable food composition table indexed by normalized name.
type Table struct {
	records    []Record
	index      map[string]int // normalized name -> position in records
	duplicates []string
}

// NewTable builds a table from records in file order. When two records
// normalize to the same name, the first one wins and the later name is
// reported by Duplicates.
func NewTable(records []Record) *Table {
	t := &Table{
		records: make([]Record, 0, len(records)),
		index:   make(map[string]int, len(records)),
	}
	for _, r := range records {
		key := Normalize(r.Name)
		if _, exists := t.index[key]; exists {
			t.duplicates = append(t.duplicates, r.Name)
			continue
		}
		t.index[key] = len(t.records)
		t.records = append(t.records, r)
	}
	return t
}

// LoadCSV reads a composition table from the CSV file at path.
func LoadCSV(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open food table: %w", err)
	}
	defer f.Close()

	t, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse food table %s: %w", path, err)
	}
	return t, nil
}

// ParseCSV reads a composition table from r. The first row must be a header;
// columns are located by header name so their order does not matter. Notes
// is optional. Empty numeric cells read as zero.
func ParseCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		// Strip a UTF-8 BOM left by spreadsheet exports.
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}

	required := []string{ColumnName, ColumnCalories, ColumnProtein, ColumnFat, ColumnCarbohydrate, ColumnCalcium}
	pos := make(map[string]int, len(required)+1)
	for _, name := range required {
		i, ok := cols[strings.ToLower(name)]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
		pos[name] = i
	}
	notesCol, hasNotes := cols[strings.ToLower(ColumnNotes)]

	var records []Record
	for row := 2; ; row++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		name := strings.TrimSpace(cell(fields, pos[ColumnName]))
		if name == "" {
			continue
		}

		rec := Record{Name: name}
		values := []struct {
			column string
			dst    *float64
		}{
			{ColumnCalories, &rec.Per100g.Calories},
			{ColumnProtein, &rec.Per100g.Proteins},
			{ColumnFat, &rec.Per100g.Fat},
			{ColumnCarbohydrate, &rec.Per100g.Carbohydrate},
			{ColumnCalcium, &rec.Per100g.Calcium},
		}
		for _, v := range values {
			if *v.dst, err = parseAmount(cell(fields, pos[v.column])); err != nil {
				return nil, fmt.Errorf("row %d, column %q: %w", row, v.column, err)
			}
		}
		if hasNotes {
			rec.Notes = strings.TrimSpace(cell(fields, notesCol))
		}

		records = append(records, rec)
	}

	return NewTable(records), nil
}

// Normalize folds a food name for matching: surrounding whitespace is
// trimmed and the name is lower-cased.
func Normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Lookup finds name in the table and scales its nutrients to portion grams.
// The portion must be in (0, MaxPortion].
func (t *Table) Lookup(name string, portion float64) (Match, error) {
	if !(portion > 0) {
		return Match{}, fmt.Errorf("%w: got %g", ErrInvalidPortion, portion)
	}
	if portion > MaxPortion {
		return Match{}, fmt.Errorf("%w: %g g exceeds %g g", ErrPortionTooLarge, portion, MaxPortion)
	}

	i, ok := t.index[Normalize(name)]
	if !ok {
		return Match{}, fmt.Errorf("%w: %q", ErrFoodNotFound, name)
	}

	rec := t.records[i]
	scaled := rec.Per100g.Scale(portion / 100)
	if !scaled.Finite() {
		return Match{}, fmt.Errorf("%w: nutrients of %q overflow at %g g", ErrPortionTooLarge, rec.Name, portion)
	}
	return Match{
		Record:    rec,
		Portion:   portion,
		Nutrients: scaled,
	}, nil
}

// Names returns the food names in file order, without duplicates.
func (t *Table) Names() []string {
	names := make([]string, len(t.records))
	for i, r := range t.records {
		names[i] = r.Name
	}
	return names
}

// Len returns the number of distinct foods.
func (t *Table) Len() int {
	return len(t.records)
}

// Duplicates returns the names of rows shadowed by an earlier row with the
// same normalized name.
func (t *Table) Duplicates() []string {
	out := make([]string, len(t.duplicates))
	copy(out, t.duplicates)
	return out
}

func cell(fields []string, i int) string {
	if i < 0 || i >= len(fields) {
		return ""
	}
	return fields[i]
}

func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	// Some exports use a decimal comma.
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	if v < 0 {
		return 0, fmt.Errorf("negative amount %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite amount %q", s)
	}
	return v, nil
}
