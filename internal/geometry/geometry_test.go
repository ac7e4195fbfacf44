package geometry

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/storeline/siteval-cli/internal/faults"
)

// squareShape returns a closed clockwise square ring, the shapefile
// convention for outer rings. The count and box headers are filled in so the
// shape serializes correctly when handed to the writer.
func squareShape(x0, y0, size float64) *shp.Polygon {
	x1, y1 := x0+size, y0+size
	return &shp.Polygon{
		Box:       shp.Box{MinX: x0, MinY: y0, MaxX: x1, MaxY: y1},
		NumParts:  1,
		NumPoints: 5,
		Parts:     []int32{0},
		Points: []shp.Point{
			{X: x0, Y: y0},
			{X: x0, Y: y1},
			{X: x1, Y: y1},
			{X: x1, Y: y0},
			{X: x0, Y: y0},
		},
	}
}

func tract(t *testing.T, id string, x0, y0, size float64, attrs map[string]float64) Record {
	t.Helper()
	mp := partsToMultiPolygon(squareShape(x0, y0, size))
	require.NotNil(t, mp)
	return Record{
		ID:       id,
		Geom:     mp,
		Centroid: xy.MultiPolygonCentroid(mp),
		Attrs:    attrs,
	}
}

// --- NewCollection ---

func TestNewCollection_SchemaSorted(t *testing.T) {
	coll, err := NewCollection([]Record{
		tract(t, "a", 0, 0, 1, map[string]float64{"pop": 10, "income": 52000}),
		tract(t, "b", 2, 0, 1, map[string]float64{"income": 48000, "pop": 20}),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"income", "pop"}, coll.Schema())
	assert.Equal(t, 2, coll.Len())
	assert.Equal(t, 4326, coll.SRID)
}

func TestNewCollection_Empty(t *testing.T) {
	_, err := NewCollection(nil)
	require.Error(t, err)
}

func TestNewCollection_AttributeCountMismatch(t *testing.T) {
	_, err := NewCollection([]Record{
		tract(t, "a", 0, 0, 1, map[string]float64{"pop": 10, "income": 52000}),
		tract(t, "b", 2, 0, 1, map[string]float64{"pop": 20}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "b")
}

func TestNewCollection_AttributeNameMismatch(t *testing.T) {
	_, err := NewCollection([]Record{
		tract(t, "a", 0, 0, 1, map[string]float64{"pop": 10}),
		tract(t, "b", 2, 0, 1, map[string]float64{"density": 20}),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"pop"`)
}

// --- Bounds ---

func TestBounds_UnionOfRecords(t *testing.T) {
	coll, err := NewCollection([]Record{
		tract(t, "a", 0, 0, 1, map[string]float64{"pop": 10}),
		tract(t, "b", 5, 5, 2, map[string]float64{"pop": 20}),
	})
	require.NoError(t, err)

	b := coll.Bounds()
	require.NotNil(t, b)
	assert.Equal(t, 0.0, b.Min(0))
	assert.Equal(t, 0.0, b.Min(1))
	assert.Equal(t, 7.0, b.Max(0))
	assert.Equal(t, 7.0, b.Max(1))
}

func TestBounds_NoGeometries(t *testing.T) {
	coll, err := NewCollection([]Record{
		{ID: "a", Centroid: geom.Coord{0, 0}, Attrs: map[string]float64{"pop": 10}},
	})
	require.NoError(t, err)
	assert.Nil(t, coll.Bounds())
}

// --- Containing ---

func TestContaining_InsideOutsideAndHole(t *testing.T) {
	// Outer square 0..10 with a 4..6 hole.
	donut := &shp.Polygon{
		NumParts: 2,
		Parts:    []int32{0, 5},
		Points: []shp.Point{
			// Outer ring, clockwise.
			{X: 0, Y: 0},
			{X: 0, Y: 10},
			{X: 10, Y: 10},
			{X: 10, Y: 0},
			{X: 0, Y: 0},
			// Hole, counter-clockwise.
			{X: 4, Y: 4},
			{X: 6, Y: 4},
			{X: 6, Y: 6},
			{X: 4, Y: 6},
			{X: 4, Y: 4},
		},
	}
	mp := partsToMultiPolygon(donut)
	require.NotNil(t, mp)

	coll, err := NewCollection([]Record{{
		ID:       "donut",
		Geom:     mp,
		Centroid: xy.MultiPolygonCentroid(mp),
		Attrs:    map[string]float64{"pop": 10},
	}})
	require.NoError(t, err)

	inSolid := coll.Containing(geom.Coord{2, 2})
	require.NotNil(t, inSolid)
	assert.Equal(t, "donut", inSolid.ID)

	assert.Nil(t, coll.Containing(geom.Coord{5, 5}), "point in hole")
	assert.Nil(t, coll.Containing(geom.Coord{11, 5}), "point outside")
}

func TestContaining_FirstRecordWins(t *testing.T) {
	// Identical overlapping squares; record order decides.
	coll, err := NewCollection([]Record{
		tract(t, "first", 0, 0, 4, map[string]float64{"pop": 1}),
		tract(t, "second", 0, 0, 4, map[string]float64{"pop": 2}),
	})
	require.NoError(t, err)

	got := coll.Containing(geom.Coord{2, 2})
	require.NotNil(t, got)
	assert.Equal(t, "first", got.ID)
}

func TestContaining_SkipsRecordsWithoutGeometry(t *testing.T) {
	coll, err := NewCollection([]Record{
		{ID: "bare", Centroid: geom.Coord{2, 2}, Attrs: map[string]float64{"pop": 1}},
		tract(t, "solid", 0, 0, 4, map[string]float64{"pop": 2}),
	})
	require.NoError(t, err)

	got := coll.Containing(geom.Coord{2, 2})
	require.NotNil(t, got)
	assert.Equal(t, "solid", got.ID)
}

// --- Load ---

func TestLoad_UnsupportedExtension(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "tracts.geojson"), LoadOptions{})
	require.Error(t, err)
	assert.True(t, faults.IsLoad(err))
}

func TestLoad_MissingShapefile(t *testing.T) {
	_, err := Load(context.Background(), filepath.Join(t.TempDir(), "nope.shp"), LoadOptions{})
	require.Error(t, err)
	assert.True(t, faults.IsLoad(err))
}

// --- roundAttr ---

func TestRoundAttr(t *testing.T) {
	assert.Equal(t, 1.234568, roundAttr(1.23456789))
	assert.Equal(t, -1.234568, roundAttr(-1.23456789))
	assert.Equal(t, 42.0, roundAttr(42.0))
}
