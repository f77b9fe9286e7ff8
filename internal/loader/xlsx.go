package loader

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

// SupplyOptions configures the supply-point spreadsheet reader. Columns are
// matched by header name, case-insensitively, on the first row.
type SupplyOptions struct {
	SheetIndex     int    // default 0
	SheetName      string // if set, overrides SheetIndex
	IDColumn       string
	NameColumn     string // optional
	EastingColumn  string
	NorthingColumn string
	CapacityColumn string // optional: missing column or empty cell means capacity 1
	SRID           int
}

// SupplyFromXLSX reads supply points with projected easting/northing
// coordinates. Rows with no coordinates are skipped with a warning: the
// source spreadsheets carry closed or unlocated sites alongside live ones.
func SupplyFromXLSX(path string, opts SupplyOptions) ([]model.SupplyPoint, error) {
	if opts.IDColumn == "" || opts.EastingColumn == "" || opts.NorthingColumn == "" {
		return nil, eris.New("loader: id, easting, and northing columns must be set")
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open spreadsheet %s", path)
	}

	sheet, err := pickSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("loader: sheet %q is empty", sheet.Name)
	}

	header := make(map[string]int)
	for j, cell := range sheet.Rows[0].Cells {
		header[strings.ToLower(strings.TrimSpace(cell.String()))] = j
	}
	col := func(name string) (int, bool) {
		idx, ok := header[strings.ToLower(name)]
		return idx, ok
	}
	mustCol := func(name string) (int, error) {
		idx, ok := col(name)
		if !ok {
			return 0, eris.Errorf("loader: sheet %q has no column %q", sheet.Name, name)
		}
		return idx, nil
	}

	idIdx, err := mustCol(opts.IDColumn)
	if err != nil {
		return nil, err
	}
	eastIdx, err := mustCol(opts.EastingColumn)
	if err != nil {
		return nil, err
	}
	northIdx, err := mustCol(opts.NorthingColumn)
	if err != nil {
		return nil, err
	}
	nameIdx, hasName := -1, false
	if opts.NameColumn != "" {
		nameIdx, hasName = col(opts.NameColumn)
	}
	capIdx, hasCap := -1, false
	if opts.CapacityColumn != "" {
		capIdx, hasCap = col(opts.CapacityColumn)
	}

	cellAt := func(row *xlsx.Row, idx int) string {
		if idx < 0 || idx >= len(row.Cells) {
			return ""
		}
		return strings.TrimSpace(row.Cells[idx].String())
	}

	var points []model.SupplyPoint
	var skipped int
	for i, row := range sheet.Rows {
		if i == 0 {
			continue
		}
		id := cellAt(row, idIdx)
		if id == "" {
			continue // trailing blank rows
		}

		east, north := cellAt(row, eastIdx), cellAt(row, northIdx)
		if east == "" || north == "" {
			skipped++
			continue
		}
		x, err := strconv.ParseFloat(east, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: row %d easting %q", i+1, east)
		}
		y, err := strconv.ParseFloat(north, 64)
		if err != nil {
			return nil, eris.Wrapf(err, "loader: row %d northing %q", i+1, north)
		}

		capacity := 1.0
		if hasCap {
			if raw := cellAt(row, capIdx); raw != "" {
				capacity, err = strconv.ParseFloat(raw, 64)
				if err != nil {
					return nil, eris.Wrapf(err, "loader: row %d capacity %q", i+1, raw)
				}
				if capacity <= 0 {
					return nil, eris.Errorf("loader: row %d has non-positive capacity %g", i+1, capacity)
				}
			}
		}

		sp := model.SupplyPoint{
			ID:       id,
			Geometry: geom.NewPointFlat(geom.XY, []float64{x, y}).SetSRID(opts.SRID),
			Capacity: capacity,
		}
		if hasName {
			sp.Name = NormalizeName(cellAt(row, nameIdx))
		}
		points = append(points, sp)
	}

	if skipped > 0 {
		zap.L().Warn("loader: skipped supply rows without coordinates",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return points, nil
}

func pickSheet(f *xlsx.File, opts SupplyOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		for _, s := range f.Sheets {
			if s.Name == opts.SheetName {
				return s, nil
			}
		}
		return nil, eris.Errorf("loader: sheet %q not found", opts.SheetName)
	}
	if opts.SheetIndex < 0 || opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("loader: sheet index %d out of range", opts.SheetIndex)
	}
	return f.Sheets[opts.SheetIndex], nil
}
