// Package solar lays out oriented panel rows inside a polygon.
package solar

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/internal/grid"
	"github.com/terrasite/siting/internal/rows"
	"github.com/terrasite/siting/internal/spacing"
	"github.com/terrasite/siting/internal/terrain"
	"github.com/terrasite/siting/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	up    = r3.Vec{Z: 1}
	east  = r3.Vec{X: 1}
	south = r3.Vec{Y: -1}
)

// Engine computes solar layouts. It holds no per-run state and may be
// shared between goroutines.
type Engine struct {
	Sampler terrain.Sampler
	Spacing *spacing.Model
	Logger  *slog.Logger

	units         metric.Int64Counter
	runs          metric.Int64Counter
	terrainPoints metric.Int64Counter
}

// New creates an Engine using the global OTel meter for metrics.
func New(sampler terrain.Sampler, model *spacing.Model, logger *slog.Logger) (*Engine, error) {
	if model == nil {
		model = spacing.New(0)
	}
	e := &Engine{Sampler: sampler, Spacing: model, Logger: logger}

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

// site is a lattice point that survived the boundary filter.
type site struct {
	local core.LocalPoint
	point core.GeodeticPoint
}

// Layout places panel rows in poly. A degenerate polygon, or one too small
// for any lattice point, gives an empty result with RowsZero and no error.
// Terrain failures are returned as core.CollaboratorError.
func (e *Engine) Layout(ctx context.Context, poly core.Polygon, p Params) (core.LayoutResult, error) {
	if err := p.validate(); err != nil {
		return core.LayoutResult{}, err
	}
	ctx, span := tracer().Start(ctx, "solar.layout", trace.WithAttributes(
		attribute.String("polygon", poly.ID),
		attribute.String("mode", string(p.Mode)),
	))
	defer span.End()

	res := core.LayoutResult{
		PolygonID:        poly.ID,
		Kind:             core.KindSolar,
		Mode:             string(p.Mode),
		EffectiveSpacing: p.initialSpacing(),
		Classification:   core.RowsZero,
		MeanFrame:        core.Flat,
	}
	if poly.Degenerate() {
		e.logger().DebugContext(ctx, "skipping degenerate polygon", "polygon", poly.ID, "distinct_vertices", poly.DistinctVertices())
		return res, nil
	}

	frame := geo.NewFrame(geo.Centroid(poly))
	half := p.HalfExtent
	if !(half > 0) {
		half = extentFor(frame, poly)
	}

	var err error
	switch p.Mode {
	case Downslope:
		res, err = e.downslope(ctx, poly, frame, half, p, res)
	default:
		res, err = e.south(ctx, poly, frame, half, p, res)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return core.LayoutResult{}, err
	}

	span.SetAttributes(attribute.Int("units", len(res.Units)), attribute.Float64("gcr", res.GCR))
	e.record(ctx, res)
	e.logger().InfoContext(ctx, "solar layout complete",
		"polygon", poly.ID,
		"mode", res.Mode,
		"units", len(res.Units),
		"spacing", res.EffectiveSpacing,
		"gcr", res.GCR,
		"rows", res.Classification.String())
	return res, nil
}

func (e *Engine) south(ctx context.Context, poly core.Polygon, frame geo.Frame, half float64, p Params, res core.LayoutResult) (core.LayoutResult, error) {
	buffer := p.LateralSpacing / 2

	// a fixed pitch needs no terrain before the final lattice
	pitch := p.RowSpacing
	if !(pitch > 0) {
		trial := lattice(poly, frame, half, p.LateralSpacing, p.TrialSpacing, east, south, buffer)
		if len(trial) == 0 {
			return res, nil
		}
		frames, centers, err := e.frames(ctx, "solar.south.probe", trial, p.SampleOffset)
		if err != nil {
			return res, err
		}
		prof := terrain.Mean(frames)
		prof.Elevation = terrain.MeanElevation(centers)
		sp, asset := e.Spacing.For(p.TiltMode, prof.Elevation, prof.SlopeDeg, prof.AspectDeg)
		if fixed, ok := p.pitch(asset); ok {
			sp = fixed
		}
		res.GCR = sp.GCR
		res.EffectiveSpacing = sp.RowSpacingMeters
		res.MeanFrame = prof.Frame()
		pitch = sp.RowSpacingMeters
	}

	sites := lattice(poly, frame, half, p.LateralSpacing, pitch, east, south, buffer)
	if len(sites) == 0 {
		return res, nil
	}
	frames, centers, err := e.frames(ctx, "solar.south.place", sites, p.SampleOffset)
	if err != nil {
		return res, err
	}
	if p.RowSpacing > 0 {
		prof := terrain.Mean(frames)
		sp, _ := p.pitch(e.Spacing.Asset(p.TiltMode, terrain.MeanElevation(centers)))
		res.GCR = sp.GCR
		res.EffectiveSpacing = pitch
		res.MeanFrame = prof.Frame()
	}

	perUnit := p.perUnitAzimuth()
	idx := rows.Indices(locals(sites), south, pitch)
	res.Units = make([]core.PlacedUnit, len(sites))
	for i := range sites {
		n := frames[i].Normal
		x := geo.UnitOr(geo.ProjectOntoPlane(south, n), south)
		az := 180.0
		if perUnit {
			az = geo.BearingDeg(x)
		}
		res.Units[i] = e.unit(poly.ID, i, centers[i], orientation(x, n), az, p.TiltMode, idx[i])
	}
	return finish(res, sites, south, pitch), nil
}

func (e *Engine) downslope(ctx context.Context, poly core.Polygon, frame geo.Frame, half float64, p Params, res core.LayoutResult) (core.LayoutResult, error) {
	check := p.TrialSpacing
	if p.RowSpacing > 0 {
		check = p.RowSpacing
	}
	// nothing fits even before the axes are known
	if len(lattice(poly, frame, half, p.LateralSpacing, check, east, south, p.LateralSpacing/2)) == 0 {
		return res, nil
	}

	probes := terrain.Probes(frame.Origin, p.ProbeOffset)
	ps, err := terrain.Sample(ctx, e.Sampler, "solar.downslope.probe", probes[:])
	if err != nil {
		return res, err
	}
	e.countPoints(ctx, "solar.downslope.probe", len(probes))

	d, ok := terrain.Downslope(ps[0], ps[1], ps[2], ps[3], p.ProbeOffset)
	if !ok {
		e.logger().Debug("level ground at centroid, facing south", "polygon", poly.ID)
	}
	mean := terrain.ProbeFrame(ps[0], ps[1], ps[2], ps[3], p.ProbeOffset)
	// rows keep the caller's pitch; only south mode consults the table
	asset := e.Spacing.Asset(p.TiltMode, terrain.MeanElevation(ps))
	sp, fixed := p.pitch(asset)
	if !fixed {
		sp = core.SpacingResult{
			GCR:              spacing.EffectiveGCR(asset.ModuleDimension, p.TrialSpacing),
			RowSpacingMeters: p.TrialSpacing,
		}
	}
	res.GCR = sp.GCR
	res.EffectiveSpacing = sp.RowSpacingMeters
	res.MeanFrame = mean

	across := r3.Cross(up, d)
	sites := lattice(poly, frame, half, p.LateralSpacing, sp.RowSpacingMeters, across, d, p.LateralSpacing/2)
	if len(sites) == 0 {
		return res, nil
	}
	frames, centers, err := e.frames(ctx, "solar.downslope.place", sites, p.SampleOffset)
	if err != nil {
		return res, err
	}

	perUnit := p.perUnitAzimuth()
	globalBearing := geo.BearingDeg(d)
	dECEF := frame.VectorToECEF(d)
	idx := rows.Indices(locals(sites), d, sp.RowSpacingMeters)
	res.Units = make([]core.PlacedUnit, len(sites))
	for i := range sites {
		// the centroid's downhill direction seen from this unit
		dl := geo.UnitOr(geo.Horizontal(geo.NewFrame(centers[i].Grounded()).VectorFromECEF(dECEF)), d)

		var x r3.Vec
		if p.DownslopeSource == Local {
			x = terrain.LocalDownslope(frames[i], dl)
		} else {
			x = geo.UnitOr(geo.Horizontal(geo.ProjectOntoPlane(dl, frames[i].Normal)), dl)
		}
		az := globalBearing
		if perUnit {
			az = geo.BearingDeg(x)
		}
		res.Units[i] = e.unit(poly.ID, i, centers[i], orientation(x, up), az, p.TiltMode, idx[i])
	}
	return finish(res, sites, d, sp.RowSpacingMeters), nil
}

// frames samples a probe triplet around every site in one batch and
// returns the ground plane and center sample of each.
func (e *Engine) frames(ctx context.Context, op string, sites []site, offset float64) ([]core.SurfaceFrame, []core.TerrainSample, error) {
	pts := make([]core.GeodeticPoint, 0, 3*len(sites))
	for _, s := range sites {
		t := terrain.Triplet(s.point, offset)
		pts = append(pts, t[:]...)
	}
	samples, err := terrain.Sample(ctx, e.Sampler, op, pts)
	if err != nil {
		return nil, nil, err
	}
	e.countPoints(ctx, op, len(pts))

	frames := make([]core.SurfaceFrame, len(sites))
	centers := make([]core.TerrainSample, len(sites))
	for i := range sites {
		c, n, ea := samples[3*i], samples[3*i+1], samples[3*i+2]
		frames[i] = terrain.Estimate(c, n, ea)
		centers[i] = c
	}
	return frames, centers, nil
}

func (e *Engine) unit(polygonID string, i int, center core.TerrainSample, o core.Orientation, azimuth float64, mode spacing.TiltMode, row int) core.PlacedUnit {
	asset := e.Spacing.Asset(mode, center.Elevation)
	return core.PlacedUnit{
		ID:          fmt.Sprintf("%s_p%d", polygonID, i),
		Position:    center.Grounded(),
		Orientation: o,
		AzimuthDeg:  azimuth,
		TiltDeg:     asset.TiltDeg,
		Asset:       asset,
		Row:         row,
	}
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e *Engine) countPoints(ctx context.Context, op string, n int) {
	if e.terrainPoints != nil {
		e.terrainPoints.Add(ctx, int64(n), metric.WithAttributes(attribute.String("op", op)))
	}
}

func (e *Engine) record(ctx context.Context, res core.LayoutResult) {
	attrs := metric.WithAttributes(
		attribute.String("kind", string(res.Kind)),
		attribute.String("mode", res.Mode))
	if e.runs != nil {
		e.runs.Add(ctx, 1, attrs)
	}
	if e.units != nil {
		e.units.Add(ctx, int64(len(res.Units)), attrs)
	}
}

// orientation builds the right-handed triad with y = z × x.
func orientation(x, z r3.Vec) core.Orientation {
	return core.Orientation{X: x, Y: geo.UnitOr(r3.Cross(z, x), r3.Vec{}), Z: z}
}

func finish(res core.LayoutResult, sites []site, axis r3.Vec, pitch float64) core.LayoutResult {
	res.RowCount = rows.Count(locals(sites), axis, pitch)
	res.Classification = rows.FromCount(res.RowCount)
	return res
}

func lattice(poly core.Polygon, frame geo.Frame, half, spacingX, spacingY float64, axisX, axisY r3.Vec, buffer float64) []site {
	box := geo.Bounds(poly)
	var out []site
	for _, l := range grid.Rect(half, spacingX, spacingY, axisX, axisY) {
		g := frame.ToGeodetic(l)
		if g.Lon < box.MinLon || g.Lon > box.MaxLon || g.Lat < box.MinLat || g.Lat > box.MaxLat {
			continue
		}
		if geo.InsideWithBuffer(g, poly, buffer) {
			out = append(out, site{local: l, point: g})
		}
	}
	return out
}

// extentFor is the distance from the frame origin to the farthest vertex,
// rounded up to a whole metre.
func extentFor(frame geo.Frame, poly core.Polygon) float64 {
	var r float64
	for _, v := range poly.Vertices {
		l := frame.ToLocal(v)
		r = math.Max(r, math.Hypot(l.East, l.North))
	}
	return math.Ceil(r)
}

func locals(sites []site) []core.LocalPoint {
	out := make([]core.LocalPoint, len(sites))
	for i, s := range sites {
		out[i] = s.local
	}
	return out
}
