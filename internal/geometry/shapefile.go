package geometry

import (
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

// idFieldCandidates are tried in order to pick the record identifier column.
var idFieldCandidates = []string{"geoid", "geoid20", "geoid10", "gisjoin", "id", "name"}

// loadShapefile reads a polygon shapefile and its DBF attribute table into a
// Collection. Explicitly requested attribute columns must parse as numbers
// regardless of their DBF type; in auto mode only numeric-typed columns load.
func loadShapefile(path string, opts LoadOptions) (*Collection, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geometry: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	dec := codePageDecoder(path)

	// Build field name → index map.
	fields := reader.Fields()
	fieldIdx := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimRight(f.String(), "\x00")
		fieldIdx[strings.ToLower(name)] = i
	}

	idIdx := -1
	for _, cand := range idFieldCandidates {
		if i, ok := fieldIdx[cand]; ok {
			idIdx = i
			break
		}
	}

	attrCols, err := selectAttrColumns(fields, fieldIdx, idIdx, opts)
	if err != nil {
		return nil, err
	}
	if len(attrCols) == 0 {
		return nil, eris.Errorf("geometry: no numeric attribute columns in %s", path)
	}

	var records []Record
	var skipped int

	for ordinal := 0; reader.Next(); ordinal++ {
		_, shape := reader.Shape()
		if shape == nil {
			skipped++
			continue
		}

		poly, ok := shape.(*shp.Polygon)
		if !ok {
			return nil, eris.Errorf("geometry: unsupported shape type %T (want polygon)", shape)
		}

		mp := partsToMultiPolygon(poly)
		if mp == nil {
			skipped++
			continue
		}

		centroid := xy.MultiPolygonCentroid(mp)
		if math.IsNaN(centroid[0]) || math.IsNaN(centroid[1]) {
			skipped++
			continue
		}

		id := strconv.Itoa(ordinal)
		if idIdx >= 0 {
			id = decodeAttr(reader.Attribute(idIdx), dec)
		}

		attrs := make(map[string]float64, len(attrCols))
		for _, col := range attrCols {
			raw := decodeAttr(reader.Attribute(col.idx), dec)
			v, parseErr := strconv.ParseFloat(raw, 64)
			if parseErr != nil {
				return nil, eris.Errorf("geometry: record %s column %s: cannot parse %q as number", id, col.name, raw)
			}
			attrs[col.name] = roundAttr(v)
		}

		records = append(records, Record{
			ID:       id,
			Geom:     mp,
			Centroid: centroid,
			Attrs:    attrs,
		})
	}

	if skipped > 0 {
		zap.L().Debug("geometry: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}

	coll, err := NewCollection(records)
	if err != nil {
		return nil, err
	}

	zap.L().Info("geometry: shapefile loaded",
		zap.String("path", path),
		zap.Int("records", coll.Len()),
		zap.Int("attributes", len(coll.Schema())),
	)
	return coll, nil
}

type attrColumn struct {
	name string
	idx  int
}

func selectAttrColumns(fields []shp.Field, fieldIdx map[string]int, idIdx int, opts LoadOptions) ([]attrColumn, error) {
	if len(opts.Attributes) > 0 {
		cols := make([]attrColumn, 0, len(opts.Attributes))
		for _, want := range opts.Attributes {
			idx, ok := fieldIdx[strings.ToLower(want)]
			if !ok {
				return nil, eris.Errorf("geometry: attribute column %q not in shapefile", want)
			}
			cols = append(cols, attrColumn{name: strings.ToLower(want), idx: idx})
		}
		return cols, nil
	}

	var cols []attrColumn
	for i, f := range fields {
		if i == idIdx {
			continue
		}
		if f.Fieldtype != 'N' && f.Fieldtype != 'F' {
			continue
		}
		name := strings.ToLower(strings.TrimRight(f.String(), "\x00"))
		cols = append(cols, attrColumn{name: name, idx: i})
	}
	return cols, nil
}

// partsToMultiPolygon assembles shapefile ring parts into polygons. Clockwise
// rings open a new polygon; counter-clockwise rings are holes in the polygon
// opened most recently, per the ESRI winding convention.
func partsToMultiPolygon(p *shp.Polygon) *geom.MultiPolygon {
	if p == nil || p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}

	mp := geom.NewMultiPolygon(geom.XY).SetSRID(4326)
	var current *geom.Polygon

	flush := func() {
		if current == nil {
			return
		}
		if err := mp.Push(current); err != nil {
			zap.L().Debug("geometry: skipping malformed polygon part", zap.Error(err))
		}
		current = nil
	}

	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		var end int32
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		} else {
			end = int32(len(p.Points))
		}
		if end-start < 4 {
			continue
		}

		flat := make([]float64, 0, (end-start)*2)
		for j := start; j < end; j++ {
			flat = append(flat, p.Points[j].X, p.Points[j].Y)
		}

		ring := geom.NewLinearRingFlat(geom.XY, flat)
		isHole := xy.IsRingCounterClockwise(geom.XY, flat) && current != nil
		if !isHole {
			flush()
			current = geom.NewPolygon(geom.XY)
		}
		if err := current.Push(ring); err != nil {
			zap.L().Debug("geometry: skipping malformed ring", zap.Int32("part", i), zap.Error(err))
			continue
		}
	}
	flush()

	if mp.NumPolygons() == 0 {
		return nil
	}
	return mp
}

// codePageDecoder builds a text decoder from the sidecar .cpg file, if one
// exists. Returns nil when attributes need no decoding.
func codePageDecoder(shpPath string) *encoding.Decoder {
	cpgPath := strings.TrimSuffix(shpPath, filepath.Ext(shpPath)) + ".cpg"
	b, err := os.ReadFile(cpgPath)
	if err != nil {
		return nil
	}

	name := strings.ToLower(strings.TrimSpace(string(b)))
	if name == "" {
		return nil
	}
	// DBF code pages are often bare numbers ("1252" means windows-1252).
	if _, numErr := strconv.Atoi(name); numErr == nil {
		name = "windows-" + name
	}

	enc, err := htmlindex.Get(name)
	if err != nil {
		zap.L().Warn("geometry: unsupported code page, reading attributes raw",
			zap.String("cpg", cpgPath),
			zap.String("charset", name),
		)
		return nil
	}
	return enc.NewDecoder()
}

func decodeAttr(raw string, dec *encoding.Decoder) string {
	s := strings.TrimSpace(strings.TrimRight(raw, "\x00"))
	if dec == nil || s == "" {
		return s
	}
	decoded, err := dec.String(s)
	if err != nil {
		return s
	}
	return decoded
}
