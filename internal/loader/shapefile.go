// Package loader reads the two input datasets: demand zones from a
// shapefile and supply points from a spreadsheet. All parsing and
// normalization happens here; the engine only ever sees validated records.
package loader

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/datasciencecampus/rap-for-maps/internal/model"
)

// DemandOptions configures the demand-zone shapefile reader.
type DemandOptions struct {
	IDField          string   // dbf column holding the zone identifier
	NameField        string   // optional: zone display name, may embed a district label
	PopulationFields []string // dbf columns read as population attributes
	SRID             int      // projected frame the coordinates are in
}

// DemandFromShapefile reads polygon records and their attribute table into
// demand units. Records without geometry are an error: every demand zone
// must be scorable.
func DemandFromShapefile(path string, opts DemandOptions) ([]model.DemandUnit, error) {
	if opts.IDField == "" {
		return nil, eris.New("loader: demand id field not set")
	}
	if len(opts.PopulationFields) == 0 {
		return nil, eris.New("loader: no population fields requested")
	}

	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "loader: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	fieldIdx := make(map[string]int)
	for i, f := range reader.Fields() {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	attr := func(row int, field string) (string, bool) {
		idx, ok := fieldIdx[strings.ToLower(field)]
		if !ok {
			return "", false
		}
		val := strings.TrimRight(reader.Attribute(idx), "\x00")
		return strings.TrimSpace(val), true
	}

	var units []model.DemandUnit
	for row := 0; reader.Next(); row++ {
		_, shape := reader.Shape()

		id, ok := attr(row, opts.IDField)
		if !ok {
			return nil, eris.Errorf("loader: shapefile has no field %q", opts.IDField)
		}
		if id == "" {
			return nil, eris.Errorf("loader: record %d has empty %s", row, opts.IDField)
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			return nil, eris.Errorf("loader: record %q has no polygon geometry", id)
		}
		g := polygonToGeom(poly, opts.SRID)
		if g == nil {
			return nil, eris.Errorf("loader: record %q has degenerate polygon geometry", id)
		}

		unit := model.DemandUnit{
			ID:         id,
			Geometry:   g,
			Population: make(map[string]float64, len(opts.PopulationFields)),
		}

		if opts.NameField != "" {
			if label, ok := attr(row, opts.NameField); ok {
				unit.Name, unit.District = SplitLabel(label)
				unit.Name = NormalizeName(unit.Name)
			}
		}

		for _, field := range opts.PopulationFields {
			raw, ok := attr(row, field)
			if !ok {
				return nil, eris.Errorf("loader: shapefile has no population field %q", field)
			}
			pop, err := parsePopulation(raw)
			if err != nil {
				return nil, eris.Wrapf(err, "loader: record %q field %q", id, field)
			}
			unit.Population[field] = pop
		}

		units = append(units, unit)
	}

	zap.L().Debug("loader: read demand shapefile",
		zap.String("path", path),
		zap.Int("units", len(units)),
	)
	return units, nil
}

// parsePopulation parses a non-negative count; an empty cell counts as zero.
func parsePopulation(raw string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "loader: parse population %q", raw)
	}
	if v < 0 {
		return 0, eris.Errorf("loader: negative population %g", v)
	}
	return v, nil
}

// polygonToGeom converts a shapefile polygon to a go-geom MultiPolygon in
// the given frame. Shapefile part winding is not trusted; each part becomes
// its own single-ring polygon, which is how the source boundary files are
// published.
func polygonToGeom(p *shp.Polygon, srid int) geom.T {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(srid)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		poly := geom.NewPolygon(geom.XY)
		if err := poly.Push(ring); err != nil {
			zap.L().Debug("loader: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
		if err := mp.Push(poly); err != nil {
			zap.L().Debug("loader: skipping malformed polygon part", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}
