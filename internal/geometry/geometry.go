// Package geometry loads polygon datasets with numeric attributes and
// answers point queries against them. Collections are immutable after load:
// every record carries its centroid, computed once, and all records share
// one attribute schema.
package geometry

import (
	"context"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/storeline/siteval-cli/internal/faults"
)

// attrPrecision is the decimal precision attribute values are rounded to at
// load time, so repeated loads of the same file interpolate identically.
const attrPrecision = 6

// Record is one polygon with its numeric attributes. Immutable after load.
type Record struct {
	ID       string
	Geom     *geom.MultiPolygon
	Centroid geom.Coord // (lon, lat), WGS84
	Attrs    map[string]float64
}

// Collection is an ordered set of Records sharing one attribute schema and
// one coordinate reference system. Record order is the source file order and
// is what breaks distance ties downstream.
type Collection struct {
	SRID    int
	Records []Record

	schema []string
}

// LoadOptions scopes which attributes a loader reads.
type LoadOptions struct {
	// Attributes restricts the loaded columns. Empty loads every numeric column.
	Attributes []string
}

// NewCollection validates that all records share one attribute schema and
// returns the assembled collection.
func NewCollection(records []Record) (*Collection, error) {
	if len(records) == 0 {
		return nil, eris.New("geometry: empty collection")
	}

	schema := make([]string, 0, len(records[0].Attrs))
	for name := range records[0].Attrs {
		schema = append(schema, name)
	}
	sort.Strings(schema)

	for i := range records {
		if len(records[i].Attrs) != len(schema) {
			return nil, eris.Errorf("geometry: record %s has %d attributes, want %d",
				records[i].ID, len(records[i].Attrs), len(schema))
		}
		for _, name := range schema {
			if _, ok := records[i].Attrs[name]; !ok {
				return nil, eris.Errorf("geometry: record %s missing attribute %q", records[i].ID, name)
			}
		}
	}

	return &Collection{SRID: 4326, Records: records, schema: schema}, nil
}

// Schema returns the attribute names shared by every record, sorted.
func (c *Collection) Schema() []string {
	return c.schema
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.Records)
}

// Bounds returns the union bounding box of all record geometries, or nil if
// no record carries a geometry.
func (c *Collection) Bounds() *geom.Bounds {
	var b *geom.Bounds
	for i := range c.Records {
		if c.Records[i].Geom == nil {
			continue
		}
		if b == nil {
			b = geom.NewBounds(geom.XY)
		}
		b = b.Extend(c.Records[i].Geom)
	}
	return b
}

// Containing returns the first record whose polygon contains the point
// (lon, lat order), or nil when the point falls outside every polygon.
// Ring membership uses the even-odd rule: inside an outer ring and outside
// that polygon's holes.
func (c *Collection) Containing(point geom.Coord) *Record {
	for i := range c.Records {
		r := &c.Records[i]
		if r.Geom == nil {
			continue
		}
		if !r.Geom.Bounds().OverlapsPoint(geom.XY, point) {
			continue
		}
		if multiPolygonContains(r.Geom, point) {
			return r
		}
	}
	return nil
}

func multiPolygonContains(mp *geom.MultiPolygon, point geom.Coord) bool {
	for i := 0; i < mp.NumPolygons(); i++ {
		if polygonContains(mp.Polygon(i), point) {
			return true
		}
	}
	return false
}

func polygonContains(p *geom.Polygon, point geom.Coord) bool {
	if p.NumLinearRings() == 0 {
		return false
	}
	if !xy.IsPointInRing(geom.XY, point, p.LinearRing(0).FlatCoords()) {
		return false
	}
	for i := 1; i < p.NumLinearRings(); i++ {
		if xy.IsPointInRing(geom.XY, point, p.LinearRing(i).FlatCoords()) {
			return false
		}
	}
	return true
}

// Load reads a polygon dataset from path. ".shp" loads a shapefile; ".db",
// ".sqlite", and ".sqlite3" load a cache written by SaveSQLite. Any failure
// is a faults.LoadError: the artifact is unusable and startup must abort.
func Load(ctx context.Context, path string, opts LoadOptions) (*Collection, error) {
	var (
		coll *Collection
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".shp":
		coll, err = loadShapefile(path, opts)
	case ".db", ".sqlite", ".sqlite3":
		coll, err = loadSQLite(ctx, path, opts)
	default:
		err = eris.Errorf("geometry: unsupported dataset extension %q", filepath.Ext(path))
	}

	if err != nil {
		return nil, faults.NewLoadError(path, err)
	}
	return coll, nil
}

// roundAttr fixes attribute values to attrPrecision decimal places.
func roundAttr(v float64) float64 {
	shift := math.Pow(10, attrPrecision)
	return math.Round(v*shift) / shift
}
