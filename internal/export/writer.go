package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/maps-cli/internal/model"
)

// Format is an output file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// SheetName is the worksheet places are written to.
const SheetName = "Places"

// numericColumns are written as numbers in spreadsheets.
var numericColumns = map[string]bool{
	"reviews_count":   true,
	"reviews_average": true,
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatXLSX, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// FormatFromPath infers the format from a file extension, falling back to
// def when the extension is not recognized.
func FormatFromPath(path string, def Format) Format {
	f, err := ParseFormat(strings.TrimPrefix(filepath.Ext(path), "."))
	if err != nil {
		return def
	}
	return f
}

// Options controls how places are written.
type Options struct {
	Format        Format
	PruneConstant bool
}

// Save writes places to path.
func Save(path string, places []model.Place, opts Options) error {
	log := zap.L().With(zap.String("path", path), zap.String("format", string(opts.Format)))
	if len(places) == 0 {
		log.Warn("export: no places to write")
	}

	if opts.Format == FormatXLSX {
		t, err := table(places, opts)
		if err != nil {
			return err
		}
		if err := WriteXLSX(path, t); err != nil {
			return err
		}
		log.Info("export: wrote places", zap.Int("rows", len(t.Rows)), zap.Int("columns", len(t.Header)))
		return nil
	}

	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "export: create %s", path)
	}
	if err := Write(f, places, opts); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "export: close %s", path)
	}
	log.Info("export: wrote places", zap.Int("rows", len(places)))
	return nil
}

// Write streams places to w as CSV or JSON.
func Write(w io.Writer, places []model.Place, opts Options) error {
	switch opts.Format {
	case FormatCSV:
		t, err := table(places, opts)
		if err != nil {
			return err
		}
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, places)
	case FormatXLSX:
		t, err := table(places, opts)
		if err != nil {
			return err
		}
		f, err := newWorkbook(t)
		if err != nil {
			return err
		}
		return eris.Wrap(f.Write(w), "export: write xlsx")
	default:
		return eris.Errorf("export: unknown format %q", opts.Format)
	}
}

func table(places []model.Place, opts Options) (Table, error) {
	t, err := ToTable(places)
	if err != nil {
		return Table{}, err
	}
	if opts.PruneConstant {
		t = PruneConstant(t)
	}
	return t, nil
}

// WriteCSV writes t with its header row.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

// WriteJSON writes places as an indented JSON array.
func WriteJSON(w io.Writer, places []model.Place) error {
	if places == nil {
		places = []model.Place{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(places), "export: write json")
}

// WriteXLSX saves t as a single-sheet workbook at path.
func WriteXLSX(path string, t Table) error {
	f, err := newWorkbook(t)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

func newWorkbook(t Table) (*xlsx.File, error) {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(SheetName)
	if err != nil {
		return nil, eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range t.Header {
		header.AddCell().SetString(h)
	}

	for _, r := range t.Rows {
		row := sheet.AddRow()
		for col, v := range r {
			cell := row.AddCell()
			if numericColumns[t.Header[col]] && v != "" {
				if n, err := strconv.ParseFloat(v, 64); err == nil {
					cell.SetFloat(n)
					continue
				}
			}
			cell.SetString(v)
		}
	}
	return f, nil
}
