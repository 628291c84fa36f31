// Package export writes scraped places as spreadsheets, CSV, or JSON.
package export

import (
	"bytes"
	"encoding/csv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/maps-cli/internal/model"
)

// Table is a rectangular view of places with one column per field.
type Table struct {
	Header []string
	Rows   [][]string
}

// ToTable flattens places into columns named by their csv tags. Absent
// numeric values become empty cells.
func ToTable(places []model.Place) (Table, error) {
	if len(places) == 0 {
		header, err := csvutil.Header(model.Place{}, "csv")
		if err != nil {
			return Table{}, eris.Wrap(err, "export: header")
		}
		return Table{Header: header, Rows: [][]string{}}, nil
	}

	raw, err := csvutil.Marshal(places)
	if err != nil {
		return Table{}, eris.Wrap(err, "export: marshal places")
	}

	records, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		return Table{}, eris.Wrap(err, "export: read marshaled places")
	}
	return Table{Header: records[0], Rows: records[1:]}, nil
}

// PruneConstant drops every column with fewer than two distinct values.
// Empty numeric cells are absent values and do not count as distinct;
// empty text cells do. Tables with fewer than two rows are returned
// unchanged, since every column of a single row is trivially constant.
func PruneConstant(t Table) Table {
	if len(t.Rows) < 2 {
		return t
	}

	keep := make([]int, 0, len(t.Header))
	for col, name := range t.Header {
		if varies(t.Rows, col, numericColumns[name]) {
			keep = append(keep, col)
		}
	}

	out := Table{
		Header: pick(t.Header, keep),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = pick(row, keep)
	}
	return out
}

// varies reports whether column col holds at least two distinct values.
func varies(rows [][]string, col int, skipEmpty bool) bool {
	first, seen := "", false
	for _, row := range rows {
		v := row[col]
		if skipEmpty && v == "" {
			continue
		}
		if !seen {
			first, seen = v, true
			continue
		}
		if v != first {
			return true
		}
	}
	return false
}

func pick(row []string, cols []int) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = row[c]
	}
	return out
}
