package wind

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/internal/terrain"
	"github.com/terrasite/siting/pkg/core"
)

func square(id string, lon, lat, size float64) core.Polygon {
	return core.Polygon{ID: id, Vertices: []core.GeodeticPoint{
		{Lon: lon, Lat: lat},
		{Lon: lon + size, Lat: lat},
		{Lon: lon + size, Lat: lat + size},
		{Lon: lon, Lat: lat + size},
	}}
}

type counter struct {
	inner terrain.Sampler
	calls atomic.Int32
}

func (c *counter) Sample(ctx context.Context, pts []core.GeodeticPoint) ([]core.TerrainSample, error) {
	c.calls.Add(1)
	return c.inner.Sample(ctx, pts)
}

func newEngine(t *testing.T, base float64) (*Engine, *counter) {
	t.Helper()
	c := &counter{inner: terrain.Plane{Origin: core.GeodeticPoint{}, Base: base}}
	e, err := New(c, nil)
	require.NoError(t, err)
	return e, c
}

func TestAsset(t *testing.T) {
	tests := []struct {
		hub   float64
		rotor float64
		name  string
	}{
		{100, 500, "turbine-100"},
		{125, 700, "turbine-125"},
		{150, 900, "turbine-150"},
	}
	for _, tt := range tests {
		a, err := Asset(tt.hub)
		require.NoError(t, err)
		assert.Equal(t, tt.rotor, a.RotorDiameter)
		assert.Equal(t, tt.name, a.Name)
		assert.Equal(t, tt.hub, a.HubHeight)
	}

	_, err := Asset(110)
	assert.ErrorIs(t, err, core.ErrUnknownHubHeight)
	assert.Equal(t, []float64{100, 125, 150}, HubHeights())
}

func TestLayout_Separation(t *testing.T) {
	poly := square("farm", 0, 0, 0.02)
	e, c := newEngine(t, 120)

	res, err := e.Layout(context.Background(), poly, 100)
	require.NoError(t, err)
	require.Greater(t, len(res.Units), 4)
	assert.Equal(t, int32(1), c.calls.Load())
	assert.Equal(t, core.KindWind, res.Kind)
	assert.Equal(t, 500.0, res.EffectiveSpacing)
	assert.Equal(t, core.RowsMultiple, res.Classification)

	for i, a := range res.Units {
		assert.True(t, geo.PointInPolygon(a.Position, poly))
		assert.InDelta(t, 120, a.Position.Elevation, 1)
		assert.Equal(t, "turbine-100", a.Asset.Name)
		for _, b := range res.Units[i+1:] {
			assert.GreaterOrEqual(t, geo.Haversine(a.Position, b.Position), 500*0.9999)
		}
	}
	assert.Equal(t, "farm_t0", res.Units[0].ID)
}

func TestLayout_CentroidFallback(t *testing.T) {
	// ~44 m diamond whose bounding box corners lie outside it
	poly := core.Polygon{ID: "small", Vertices: []core.GeodeticPoint{
		{Lon: 0.0002, Lat: 0}, {Lon: 0.0004, Lat: 0.0002},
		{Lon: 0.0002, Lat: 0.0004}, {Lon: 0, Lat: 0.0002},
	}}
	e, _ := newEngine(t, 0)

	res, err := e.Layout(context.Background(), poly, 150)
	require.NoError(t, err)
	require.Len(t, res.Units, 1)
	c := geo.Centroid(poly)
	assert.InDelta(t, c.Lon, res.Units[0].Position.Lon, 1e-12)
	assert.InDelta(t, c.Lat, res.Units[0].Position.Lat, 1e-12)
	assert.Equal(t, core.RowsOne, res.Classification)
}

func TestLayout_Degenerate(t *testing.T) {
	e, c := newEngine(t, 0)
	poly := core.Polygon{ID: "d", Vertices: []core.GeodeticPoint{{}, {Lon: 1}}}

	res, err := e.Layout(context.Background(), poly, 100)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Equal(t, core.RowsZero, res.Classification)
	assert.Zero(t, c.calls.Load())
}

func TestLayout_RepeatedVertexDegenerate(t *testing.T) {
	e, c := newEngine(t, 0)
	a, b := core.GeodeticPoint{}, core.GeodeticPoint{Lon: 0.02}
	poly := core.Polygon{ID: "d", Vertices: []core.GeodeticPoint{a, b, b}}

	res, err := e.Layout(context.Background(), poly, 100)
	require.NoError(t, err)
	assert.True(t, res.Empty())
	assert.Zero(t, c.calls.Load())
}

func TestLayout_RowCountMatchesUnits(t *testing.T) {
	e, _ := newEngine(t, 0)

	res, err := e.Layout(context.Background(), square("farm", 0, 0, 0.03), 100)
	require.NoError(t, err)
	distinct := map[int]bool{}
	for _, u := range res.Units {
		distinct[u.Row] = true
	}
	assert.Equal(t, len(distinct), res.RowCount)
	assert.Greater(t, res.RowCount, 1)
}

func TestLayout_Errors(t *testing.T) {
	e, _ := newEngine(t, 0)
	_, err := e.Layout(context.Background(), square("x", 0, 0, 0.01), 90)
	assert.ErrorIs(t, err, core.ErrUnknownHubHeight)

	_, err = e.LayoutSpaced(context.Background(), square("x", 0, 0, 0.01), 100, 0)
	assert.ErrorIs(t, err, core.ErrInvalidSpacing)

	boom := errors.New("down")
	failing, err := New(terrain.SamplerFunc(func(context.Context, []core.GeodeticPoint) ([]core.TerrainSample, error) {
		return nil, boom
	}), nil)
	require.NoError(t, err)
	_, err = failing.Layout(context.Background(), square("x", 0, 0, 0.01), 100)
	var ce *core.CollaboratorError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "wind.layout", ce.Op)
	assert.ErrorIs(t, err, boom)
}

func TestPlaceAt(t *testing.T) {
	e, c := newEngine(t, 80)
	pts := []core.GeodeticPoint{{Lon: 0.001, Lat: 0.001}, {Lon: 0.01, Lat: 0.001}, {Lon: 0.001, Lat: 0.01}}

	res, err := e.PlaceAt(context.Background(), "opt", pts, 125)
	require.NoError(t, err)
	require.Len(t, res.Units, 3)
	assert.Equal(t, ModeOptimized, res.Mode)
	assert.Equal(t, int32(1), c.calls.Load())
	for i, u := range res.Units {
		assert.Equal(t, pts[i].Lon, u.Position.Lon)
		assert.Equal(t, pts[i].Lat, u.Position.Lat)
		assert.InDelta(t, 80, u.Position.Elevation, 1)
		assert.Equal(t, 700.0, u.Asset.RotorDiameter)
	}
	assert.Equal(t, "opt_t2", res.Units[2].ID)
	// about 1 km apart in latitude, rows are 606 m
	assert.Equal(t, core.RowsMultiple, res.Classification)

	empty, err := e.PlaceAt(context.Background(), "opt", nil, 125)
	require.NoError(t, err)
	assert.True(t, empty.Empty())
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestRowSpacing(t *testing.T) {
	assert.InDelta(t, 433.0127, RowSpacing(500), 1e-4)
}
