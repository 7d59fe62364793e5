package grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	east  = r3.Vec{X: 1}
	south = r3.Vec{Y: -1}
)

func TestRect_Count(t *testing.T) {
	pts := Rect(10, 5, 5, east, south)
	require.Len(t, pts, 25)

	assert.Equal(t, core.LocalPoint{East: -10, North: 10}, pts[0])
	assert.Equal(t, core.LocalPoint{East: 10, North: -10}, pts[len(pts)-1])
}

func TestRect_OuterLoopIsX(t *testing.T) {
	pts := Rect(5, 5, 5, east, south)
	require.Len(t, pts, 9)
	for j := 0; j < 3; j++ {
		assert.Equal(t, -5.0, pts[j].East)
	}
}

func TestRect_NoDrift(t *testing.T) {
	pts := Rect(1000, 5.7, 5, east, south)
	// 351 columns by 401 rows
	require.Len(t, pts, 351*401)
	last := pts[len(pts)-1]
	assert.InDelta(t, -1000+350*5.7, last.East, 1e-9)
	assert.InDelta(t, -1000.0, last.North, 1e-9)
}

func TestRect_Invalid(t *testing.T) {
	assert.Empty(t, Rect(10, 0, 5, east, south))
	assert.Empty(t, Rect(10, 5, -1, east, south))
	assert.Empty(t, Rect(-1, 5, 5, east, south))
	assert.Len(t, Rect(0, 5, 5, east, south), 1)
}

func TestRectGeodetic(t *testing.T) {
	origin := core.GeodeticPoint{Lon: 8, Lat: 47}
	f := geo.NewFrame(origin)
	pts := RectGeodetic(f, 10, 10, 10, east, south)
	require.Len(t, pts, 9)

	center := f.ToLocal(pts[4])
	assert.InDelta(t, 0, center.East, 1e-6)
	assert.InDelta(t, 0, center.North, 1e-6)
}

func squareAt(lon, lat, size float64) core.Polygon {
	return core.Polygon{Vertices: []core.GeodeticPoint{
		{Lon: lon, Lat: lat},
		{Lon: lon + size, Lat: lat},
		{Lon: lon + size, Lat: lat + size},
		{Lon: lon, Lat: lat + size},
	}}
}

func assertMinSeparation(t *testing.T, pts []core.GeodeticPoint, d float64) {
	t.Helper()
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			got := geo.Haversine(pts[i], pts[j])
			if got < d*0.9999 {
				t.Fatalf("points %d and %d are %.3f m apart, want >= %.1f", i, j, got, d)
			}
		}
	}
}

func TestHex_SeparationAndContainment(t *testing.T) {
	for _, lat := range []float64{0, 47, 60, -65} {
		poly := squareAt(8, lat, 0.01)
		pts := Hex(poly, 200)
		require.NotEmpty(t, pts, "lat %v", lat)

		for _, p := range pts {
			assert.True(t, geo.PointInPolygon(p, poly))
		}
		assertMinSeparation(t, pts, 200)
	}
}

func TestHex_AlternateRowsOffset(t *testing.T) {
	poly := squareAt(0, 0, 0.01)
	pts := Hex(poly, 200)
	require.NotEmpty(t, pts)

	byRow := map[float64][]float64{}
	var rows []float64
	for _, p := range pts {
		if _, ok := byRow[p.Lat]; !ok {
			rows = append(rows, p.Lat)
		}
		byRow[p.Lat] = append(byRow[p.Lat], p.Lon)
	}
	require.GreaterOrEqual(t, len(rows), 2)
	assert.NotEqual(t, byRow[rows[0]][0], byRow[rows[1]][0])
}

func TestHex_CentroidFallback(t *testing.T) {
	// ~44 m diamond, far smaller than the spacing
	poly := core.Polygon{Vertices: []core.GeodeticPoint{
		{Lon: 0.0002, Lat: 0}, {Lon: 0.0004, Lat: 0.0002},
		{Lon: 0.0002, Lat: 0.0004}, {Lon: 0, Lat: 0.0002},
	}}
	pts := Hex(poly, 500)
	require.Len(t, pts, 1)
	assert.InDelta(t, 0.0002, pts[0].Lon, 1e-12)
	assert.InDelta(t, 0.0002, pts[0].Lat, 1e-12)
}

func TestHex_CentroidOutside(t *testing.T) {
	// thin L along the top and right; the vertex mean falls in the notch
	poly := core.Polygon{Vertices: []core.GeodeticPoint{
		{Lon: 0.0004, Lat: 0}, {Lon: 0.0004, Lat: 0.0004}, {Lon: 0, Lat: 0.0004},
		{Lon: 0, Lat: 0.00038}, {Lon: 0.00038, Lat: 0.00038}, {Lon: 0.00038, Lat: 0},
	}}
	assert.Empty(t, Hex(poly, 500))
}

func TestHex_Invalid(t *testing.T) {
	poly := squareAt(0, 0, 0.01)
	assert.Empty(t, Hex(poly, 0))
	assert.Empty(t, Hex(poly, -10))
	assert.Empty(t, Hex(core.Polygon{Vertices: poly.Vertices[:2]}, 100))
}
