// Package wind places turbines on a hexagonal lattice and grounds them on
// the terrain.
package wind

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/internal/grid"
	"github.com/terrasite/siting/internal/rows"
	"github.com/terrasite/siting/internal/terrain"
	"github.com/terrasite/siting/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r3"
)

// Layout modes recorded on results.
const (
	ModeHex       = "hex"
	ModeOptimized = "optimized"
)

// rotorDiameters maps hub height to the minimum turbine separation used
// for that class, both in metres.
var rotorDiameters = map[float64]float64{
	100: 500,
	125: 700,
	150: 900,
}

// HubHeights lists the supported hub heights in ascending order.
func HubHeights() []float64 {
	out := make([]float64, 0, len(rotorDiameters))
	for h := range rotorDiameters {
		out = append(out, h)
	}
	sort.Float64s(out)
	return out
}

// Asset returns the turbine class for a hub height.
func Asset(hubHeight float64) (core.AssetClass, error) {
	d, ok := rotorDiameters[hubHeight]
	if !ok {
		return core.AssetClass{}, fmt.Errorf("hub height %v: %w", hubHeight, core.ErrUnknownHubHeight)
	}
	return core.AssetClass{
		Name:          fmt.Sprintf("turbine-%d", int(hubHeight)),
		HubHeight:     hubHeight,
		RotorDiameter: d,
	}, nil
}

// Place returns lattice points at least minSeparation metres apart inside
// poly, falling back to the centroid when nothing else fits.
func Place(poly core.Polygon, minSeparation float64) []core.GeodeticPoint {
	return grid.Hex(poly, minSeparation)
}

// RowSpacing is the distance between lattice rows for a separation.
func RowSpacing(minSeparation float64) float64 {
	return minSeparation * math.Sqrt(3) / 2
}

// Engine grounds turbine layouts on the terrain.
type Engine struct {
	Sampler terrain.Sampler
	Logger  *slog.Logger

	units         metric.Int64Counter
	runs          metric.Int64Counter
	terrainPoints metric.Int64Counter
}

// New creates an Engine using the global OTel meter for metrics.
func New(sampler terrain.Sampler, logger *slog.Logger) (*Engine, error) {
	e := &Engine{Sampler: sampler, Logger: logger}

	m := meter()
	var err error
	e.units, err = m.Int64Counter("siting.layout.units",
		metric.WithDescription("Units placed by layout runs"))
	if err != nil {
		return nil, fmt.Errorf("creating units counter: %w", err)
	}
	e.runs, err = m.Int64Counter("siting.layout.runs",
		metric.WithDescription("Completed layout runs"))
	if err != nil {
		return nil, fmt.Errorf("creating runs counter: %w", err)
	}
	e.terrainPoints, err = m.Int64Counter("siting.terrain.points",
		metric.WithDescription("Points sent to the terrain service"))
	if err != nil {
		return nil, fmt.Errorf("creating terrain counter: %w", err)
	}
	return e, nil
}

// Layout places turbines of the given hub height one rotor diameter apart.
func (e *Engine) Layout(ctx context.Context, poly core.Polygon, hubHeight float64) (core.LayoutResult, error) {
	asset, err := Asset(hubHeight)
	if err != nil {
		return core.LayoutResult{}, err
	}
	return e.LayoutSpaced(ctx, poly, hubHeight, asset.RotorDiameter)
}

// LayoutSpaced is Layout with a caller-chosen separation.
func (e *Engine) LayoutSpaced(ctx context.Context, poly core.Polygon, hubHeight, minSeparation float64) (core.LayoutResult, error) {
	asset, err := Asset(hubHeight)
	if err != nil {
		return core.LayoutResult{}, err
	}
	if !(minSeparation > 0) {
		return core.LayoutResult{}, fmt.Errorf("separation %v: %w", minSeparation, core.ErrInvalidSpacing)
	}

	res := core.LayoutResult{
		PolygonID:        poly.ID,
		Kind:             core.KindWind,
		Mode:             ModeHex,
		EffectiveSpacing: minSeparation,
		Classification:   core.RowsZero,
		MeanFrame:        core.Flat,
	}
	points := Place(poly, minSeparation)
	if len(points) == 0 {
		e.logger().DebugContext(ctx, "no turbine fits", "polygon", poly.ID, "separation", minSeparation)
		return res, nil
	}
	return e.ground(ctx, "wind.layout", res, geo.Centroid(poly), points, asset)
}

// PlaceAt grounds an externally chosen set of turbine positions, such as
// an optimizer's selection from a candidate set.
func (e *Engine) PlaceAt(ctx context.Context, polygonID string, points []core.GeodeticPoint, hubHeight float64) (core.LayoutResult, error) {
	asset, err := Asset(hubHeight)
	if err != nil {
		return core.LayoutResult{}, err
	}
	res := core.LayoutResult{
		PolygonID:        polygonID,
		Kind:             core.KindWind,
		Mode:             ModeOptimized,
		EffectiveSpacing: asset.RotorDiameter,
		Classification:   core.RowsZero,
		MeanFrame:        core.Flat,
	}
	if len(points) == 0 {
		return res, nil
	}
	return e.ground(ctx, "wind.place", res, meanPoint(points), points, asset)
}

func (e *Engine) ground(ctx context.Context, op string, res core.LayoutResult, anchor core.GeodeticPoint, points []core.GeodeticPoint, asset core.AssetClass) (core.LayoutResult, error) {
	ctx, span := tracer().Start(ctx, op, trace.WithAttributes(
		attribute.String("polygon", res.PolygonID),
		attribute.Int("turbines", len(points)),
	))
	defer span.End()

	samples, err := terrain.Sample(ctx, e.Sampler, op, points)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return core.LayoutResult{}, err
	}
	if e.terrainPoints != nil {
		e.terrainPoints.Add(ctx, int64(len(points)), metric.WithAttributes(attribute.String("op", op)))
	}

	frame := geo.NewFrame(anchor)
	local := make([]core.LocalPoint, len(points))
	for i, p := range points {
		local[i] = frame.ToLocal(p)
	}
	spacing := RowSpacing(res.EffectiveSpacing)
	north := r3.Vec{Y: 1}
	idx := rows.Indices(local, north, spacing)

	res.Units = make([]core.PlacedUnit, len(samples))
	for i, s := range samples {
		res.Units[i] = core.PlacedUnit{
			ID:          fmt.Sprintf("%s_t%d", res.PolygonID, i),
			Position:    s.Grounded(),
			Orientation: core.Orientation{X: r3.Vec{X: 1}, Y: north, Z: r3.Vec{Z: 1}},
			Asset:       asset,
			Row:         idx[i],
		}
	}
	res.RowCount = rows.Count(local, north, spacing)
	res.Classification = rows.FromCount(res.RowCount)

	if e.runs != nil {
		attrs := metric.WithAttributes(
			attribute.String("kind", string(res.Kind)),
			attribute.String("mode", res.Mode))
		e.runs.Add(ctx, 1, attrs)
		e.units.Add(ctx, int64(len(res.Units)), attrs)
	}

	e.logger().InfoContext(ctx, "wind layout complete",
		"polygon", res.PolygonID,
		"mode", res.Mode,
		"turbines", len(res.Units),
		"hub_height", asset.HubHeight,
		"rows", res.Classification.String())
	return res, nil
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func meanPoint(points []core.GeodeticPoint) core.GeodeticPoint {
	var c core.GeodeticPoint
	for _, p := range points {
		c.Lon += p.Lon
		c.Lat += p.Lat
	}
	n := float64(len(points))
	c.Lon /= n
	c.Lat /= n
	return c
}
