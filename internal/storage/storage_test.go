package storage_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/internal/storage"
	"github.com/terrasite/siting/internal/storage/memory"
	"github.com/terrasite/siting/internal/storage/postgres"
	sqlitestorage "github.com/terrasite/siting/internal/storage/sqlite"
	"github.com/terrasite/siting/pkg/core"
)

// Compile-time interface checks
var (
	_ storage.Backend    = (*sqlitestorage.Backend)(nil)
	_ storage.Backend    = (*postgres.Backend)(nil)
	_ storage.Backend    = (*memory.Backend)(nil)
	_ storage.Exportable = (*memory.Backend)(nil)
)

func field(id string) core.Polygon {
	return core.Polygon{ID: id, Vertices: []core.GeodeticPoint{
		{Lon: 10, Lat: 45}, {Lon: 10.01, Lat: 45}, {Lon: 10.01, Lat: 45.01},
	}}
}

func solarResult(id string, n int) core.LayoutResult {
	res := core.LayoutResult{
		PolygonID:        id,
		Kind:             core.KindSolar,
		Mode:             "south",
		EffectiveSpacing: 5.46,
		GCR:              0.366,
		RowCount:         1,
		Classification:   core.RowsOne,
		MeanFrame:        core.Flat,
	}
	for i := 0; i < n; i++ {
		res.Units = append(res.Units, core.PlacedUnit{
			ID:          fmt.Sprintf("%s_p%d", id, i),
			Position:    core.GeodeticPoint{Lon: 10.001 + float64(i)*1e-4, Lat: 45.001, Elevation: 100},
			Orientation: core.Orientation{X: r3.Vec{Y: -1}, Y: r3.Vec{X: -1}, Z: r3.Vec{Z: 1}},
			AzimuthDeg:  180,
			TiltDeg:     30,
			Asset:       core.AssetClass{Name: "pv-30", TiltDeg: 30, ModuleDimension: 2},
		})
	}
	return res
}

func windResult(id string) core.LayoutResult {
	return core.LayoutResult{
		PolygonID:        id,
		Kind:             core.KindWind,
		Mode:             "hex",
		EffectiveSpacing: 500,
		Classification:   core.RowsOne,
		RowCount:         1,
		MeanFrame:        core.Flat,
		Units: []core.PlacedUnit{{
			ID:          id + "_t0",
			Position:    core.GeodeticPoint{Lon: 10.005, Lat: 45.002, Elevation: 90},
			Orientation: core.Orientation{X: r3.Vec{X: 1}, Y: r3.Vec{Y: 1}, Z: r3.Vec{Z: 1}},
			Asset:       core.AssetClass{Name: "turbine-100", HubHeight: 100, RotorDiameter: 500},
		}},
	}
}

func backends(t *testing.T) map[string]storage.Backend {
	t.Helper()
	sq, err := sqlitestorage.New("", nil)
	require.NoError(t, err)
	out := map[string]storage.Backend{
		"sqlite": sq,
		"memory": memory.New(config.MemoryConfig{}, nil),
	}
	for name, b := range out {
		require.NoError(t, b.Init(), name)
		b := b
		t.Cleanup(func() { _ = b.Close() })
	}
	return out
}

func TestBackend_ReplaceAndGet(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			stored, err := b.ReplaceLayout(ctx, field("f1"), solarResult("f1", 3))
			require.NoError(t, err)
			assert.NotEmpty(t, stored.ID)

			got, err := b.GetLayout(ctx, "f1", core.KindSolar)
			require.NoError(t, err)
			assert.Equal(t, stored.ID, got.ID)
			assert.Equal(t, field("f1"), got.Polygon)
			assert.Equal(t, solarResult("f1", 3), got.Result)
		})
	}
}

func TestBackend_ReplaceIsWholesale(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			first, err := b.ReplaceLayout(ctx, field("f1"), solarResult("f1", 5))
			require.NoError(t, err)

			second, err := b.ReplaceLayout(ctx, field("f1"), solarResult("f1", 2))
			require.NoError(t, err)
			assert.NotEqual(t, first.ID, second.ID)

			got, err := b.GetLayout(ctx, "f1", core.KindSolar)
			require.NoError(t, err)
			assert.Equal(t, second.ID, got.ID)
			require.Len(t, got.Result.Units, 2, "old units must not survive")
			assert.Equal(t, "f1_p1", got.Result.Units[1].ID)

			list, err := b.ListLayouts(ctx)
			require.NoError(t, err)
			assert.Len(t, list, 1)
		})
	}
}

func TestBackend_KindsAreIndependent(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.ReplaceLayout(ctx, field("f1"), solarResult("f1", 1))
			require.NoError(t, err)
			_, err = b.ReplaceLayout(ctx, field("f1"), windResult("f1"))
			require.NoError(t, err)
			_, err = b.ReplaceLayout(ctx, field("a0"), windResult("a0"))
			require.NoError(t, err)

			list, err := b.ListLayouts(ctx)
			require.NoError(t, err)
			require.Len(t, list, 3)
			assert.Equal(t, "a0", list[0].PolygonID)
			assert.Equal(t, core.KindSolar, list[1].Kind)
			assert.Equal(t, core.KindWind, list[2].Kind)
			assert.Equal(t, 1, list[2].Units)
			assert.Equal(t, "hex", list[2].Mode)

			wind, err := b.GetLayout(ctx, "f1", core.KindWind)
			require.NoError(t, err)
			assert.Equal(t, 500.0, wind.Result.Units[0].Asset.RotorDiameter)
		})
	}
}

func TestBackend_EmptyLayout(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			res := solarResult("tiny", 0)
			res.Classification = core.RowsZero
			_, err := b.ReplaceLayout(ctx, field("tiny"), res)
			require.NoError(t, err)

			got, err := b.GetLayout(ctx, "tiny", core.KindSolar)
			require.NoError(t, err)
			assert.Empty(t, got.Result.Units)
			assert.Equal(t, core.RowsZero, got.Result.Classification)
		})
	}
}

func TestBackend_PolygonIDFallback(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			res := solarResult("", 1)
			stored, err := b.ReplaceLayout(ctx, field("named"), res)
			require.NoError(t, err)
			assert.Equal(t, "named", stored.Result.PolygonID)

			_, err = b.GetLayout(ctx, "named", core.KindSolar)
			assert.NoError(t, err)
		})
	}
}

func TestBackend_Delete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.ReplaceLayout(ctx, field("f1"), solarResult("f1", 2))
			require.NoError(t, err)

			require.NoError(t, b.DeleteLayout(ctx, "f1", core.KindSolar))

			_, err = b.GetLayout(ctx, "f1", core.KindSolar)
			assert.ErrorIs(t, err, core.ErrNotFound)
			assert.ErrorIs(t, b.DeleteLayout(ctx, "f1", core.KindSolar), core.ErrNotFound)

			list, err := b.ListLayouts(ctx)
			require.NoError(t, err)
			assert.Empty(t, list)
		})
	}
}

func TestBackend_GetMissing(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := b.GetLayout(context.Background(), "nope", core.KindWind)
			assert.ErrorIs(t, err, core.ErrNotFound)
		})
	}
}

func TestNewBackend_Factory(t *testing.T) {
	b, err := storage.NewBackend(config.StorageConfig{Type: "memory"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Backend{}, b)

	b, err = storage.NewBackend(config.StorageConfig{Type: "sqlite"}, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlitestorage.Backend{}, b)
	require.NoError(t, b.Close())

	_, err = storage.NewBackend(config.StorageConfig{Type: "cassandra"}, nil)
	assert.ErrorContains(t, err, "unknown storage type")
}
