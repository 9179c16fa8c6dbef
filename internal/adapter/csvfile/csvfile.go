// Package csvfile reads and writes the pipeline's CSV tables. Columns are
// located by header name so extra or reordered columns are tolerated. Writes
// are atomic.
package csvfile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/destination-etl/internal/domain"
)

// ErrInputNotFound marks a required input file that does not exist.
var ErrInputNotFound = fmt.Errorf("input file not found: %w", fs.ErrNotExist)

// ReadCities loads the canonical city list, one name per line.
func ReadCities(path string) (domain.Cities, error) {
	f, err := open(path)
	if err != nil {
		return domain.Cities{}, err
	}
	defer f.Close()

	cities, err := domain.ParseCities(f)
	if err != nil {
		return domain.Cities{}, fmt.Errorf("%s: %w", path, err)
	}
	return cities, nil
}

// table is a parsed CSV file with a header index.
type table struct {
	path    string
	columns map[string]int
	records [][]string
}

func open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrInputNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

func readTable(path string, required ...string) (*table, error) {
	f, err := open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseTable(f, path, required...)
}

func parseTable(r io.Reader, name string, required ...string) (*table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", name, err)
	}

	t := &table{path: name, columns: make(map[string]int, len(header))}
	for i, h := range header {
		t.columns[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range required {
		if _, ok := t.columns[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s: missing columns %s", name, strings.Join(missing, ", "))
	}

	t.records, err = cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}

// get returns the trimmed cell, or "" when the column or cell is absent.
func (t *table) get(rec []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// lineError reports a bad cell with the 1-based file line (header is line 1).
func (t *table) lineError(row int, col string, err error) error {
	return fmt.Errorf("%s line %d: column %s: %w", t.path, row+2, col, err)
}

func (t *table) float(rec []string, row int, col string) (float64, error) {
	v, err := strconv.ParseFloat(t.get(rec, col), 64)
	if err != nil {
		return 0, t.lineError(row, col, err)
	}
	return v, nil
}

// lenientFloat is optFloat for columns a row can live without: an
// unparsable cell is logged and read as nil.
func (t *table) lenientFloat(rec []string, row int, col string) *float64 {
	v, err := t.optFloat(rec, row, col)
	if err != nil {
		slog.Warn("ignoring unparsable cell", "file", t.path, "line", row+2, "column", col, "error", err)
		return nil
	}
	return v
}

// floatOr treats a null cell as def.
func (t *table) floatOr(rec []string, row int, col string, def float64) (float64, error) {
	p, err := t.optFloat(rec, row, col)
	if err != nil || p == nil {
		return def, err
	}
	return *p, nil
}

// optFloat returns nil for a null cell.
func (t *table) optFloat(rec []string, row int, col string) (*float64, error) {
	s := t.get(rec, col)
	if isNull(s) {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, t.lineError(row, col, err)
	}
	return &v, nil
}

func (t *table) optString(rec []string, col string) *string {
	s := t.get(rec, col)
	if isNull(s) {
		return nil
	}
	return &s
}

// nullTokens are the cell values pandas reads as missing by default.
var nullTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

func isNull(s string) bool {
	_, ok := nullTokens[s]
	return ok
}

func writeCSV(w io.Writer, header []string, rows func(emit func([]string) error) error) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	if err := rows(cw.Write); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func formatOptString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
