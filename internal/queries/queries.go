// Package queries loads batch search lists from CSV or XLSX files.
package queries

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Request is one search to run in a batch.
type Request struct {
	Query string
	Total int // 0 means use the caller's default
}

// headerNames are accepted first-cell values that mark a header row.
var headerNames = map[string]bool{"query": true, "search": true, "term": true}

// Load reads requests from path, choosing the parser from the file extension.
// Files ending in .xlsx are read as workbooks; anything else as CSV.
func Load(path string) ([]Request, error) {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ReadXLSX(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "queries: open file")
	}
	defer f.Close() //nolint:errcheck

	return ReadCSV(f)
}

// ReadCSV parses requests from CSV input. Rows may have one or two columns.
func ReadCSV(r io.Reader) ([]Request, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.Comment = '#'
	cr.TrimLeadingSpace = true

	var rows [][]string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "queries: read csv row")
		}
		rows = append(rows, rec)
	}
	return parseRows(rows)
}

// ReadXLSX parses requests from the first sheet of a workbook.
func ReadXLSX(path string) ([]Request, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "queries: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("queries: workbook has no sheets")
	}

	var rows [][]string
	for _, row := range f.Sheets[0].Rows {
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		rows = append(rows, cells)
	}
	return parseRows(rows)
}

// parseRows maps raw rows onto requests. A header row, when present, may
// place the query and total columns in any order.
func parseRows(rows [][]string) ([]Request, error) {
	queryCol, totalCol := 0, 1
	start := 0
	if hasHeader(rows) {
		queryCol, totalCol = -1, -1
		for i, name := range rows[0] {
			switch n := normalize(name); {
			case headerNames[n]:
				queryCol = i
			case n == "total" || n == "count" || n == "limit":
				totalCol = i
			}
		}
		start = 1
	}
	var out []Request
	seen := make(map[string]bool)
	for i := start; i < len(rows); i++ {
		row := rows[i]
		query := strings.TrimSpace(cell(row, queryCol))
		if query == "" {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(query), " "))
		if seen[key] {
			continue
		}
		seen[key] = true

		req := Request{Query: query}
		if raw := strings.TrimSpace(cell(row, totalCol)); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return nil, eris.Errorf("queries: row %d: invalid total %q", i+1, raw)
			}
			req.Total = n
		}
		out = append(out, req)
	}
	return out, nil
}

// hasHeader reports whether any first-row cell names a known column.
func hasHeader(rows [][]string) bool {
	if len(rows) == 0 {
		return false
	}
	for _, name := range rows[0] {
		if headerNames[normalize(name)] {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(s, "\ufeff")))
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}
