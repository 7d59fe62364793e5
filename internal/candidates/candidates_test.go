package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/internal/grid"
	"github.com/terrasite/siting/pkg/core"
)

func square(size float64) core.Polygon {
	return core.Polygon{ID: "c", Vertices: []core.GeodeticPoint{
		{Lon: 0, Lat: 0}, {Lon: size, Lat: 0}, {Lon: size, Lat: size}, {Lon: 0, Lat: size},
	}}
}

func TestGenerate_BoundaryFirst(t *testing.T) {
	poly := square(0.01)
	set := Generate(poly, 300, 200)
	require.NotEmpty(t, set)

	boundary := geo.DensifyBoundary(poly, 200)
	require.GreaterOrEqual(t, len(set), len(boundary))
	for i, p := range boundary {
		assert.Equal(t, core.SourceBoundary, set[i].Source)
		assert.Equal(t, p, set[i].Point)
	}
	for _, c := range set[len(boundary):] {
		assert.Equal(t, core.SourceInterior, c.Source)
	}

	b, in := Count(set)
	assert.Equal(t, len(boundary), b)
	assert.Equal(t, len(set)-b, in)
}

func TestGenerate_NoDuplicates(t *testing.T) {
	set := Generate(square(0.01), 250, 100)
	seen := map[key]bool{}
	for _, c := range set {
		k := keyOf(c.Point)
		assert.False(t, seen[k], "duplicate %+v", c.Point)
		seen[k] = true
	}
}

func TestGenerate_CornerCollapsesToBoundary(t *testing.T) {
	// the hex lattice starts on the south-west corner, which is also the
	// first boundary vertex
	poly := square(0.01)
	hex := grid.Hex(poly, 500)
	require.NotEmpty(t, hex)
	require.Equal(t, poly.Vertices[0], hex[0])

	set := Generate(poly, 500, 200)
	corner := 0
	for _, c := range set {
		if keyOf(c.Point) == keyOf(poly.Vertices[0]) {
			corner++
			assert.Equal(t, core.SourceBoundary, c.Source)
		}
	}
	assert.Equal(t, 1, corner)
	_, interior := Count(set)
	assert.Less(t, interior, len(hex))
}

func TestGenerate_LocalOffsets(t *testing.T) {
	poly := square(0.01)
	frame := geo.NewFrame(geo.Centroid(poly))
	for _, c := range Generate(poly, 400, 300) {
		back := frame.ToGeodetic(c.Local)
		assert.InDelta(t, c.Point.Lon, back.Lon, 1e-9)
		assert.InDelta(t, c.Point.Lat, back.Lat, 1e-9)
	}
}

func TestGenerate_Degenerate(t *testing.T) {
	poly := core.Polygon{Vertices: []core.GeodeticPoint{{}, {Lon: 1}}}
	assert.Empty(t, Generate(poly, 100, 100))
}

func TestGenerate_Points(t *testing.T) {
	set := Generate(square(0.005), 200, 0)
	pts := set.Points()
	require.Len(t, pts, len(set))
	// a non-positive step keeps only the vertices on the boundary
	b, _ := Count(set)
	assert.Equal(t, 4, b)
}

func TestIndex_Lookup(t *testing.T) {
	set := core.CandidateSet{
		{Point: core.GeodeticPoint{Lon: 10, Lat: 45}, Source: core.SourceBoundary},
		{Point: core.GeodeticPoint{Lon: 10.001, Lat: 45}, Source: core.SourceInterior},
	}
	idx := NewIndex(set)

	i, ok := idx.Lookup(core.GeodeticPoint{Lon: 10.00100000004, Lat: 45, Elevation: 300})
	assert.True(t, ok)
	assert.Equal(t, 1, i)

	_, ok = idx.Lookup(core.GeodeticPoint{Lon: 10.0005, Lat: 45})
	assert.False(t, ok)
}
