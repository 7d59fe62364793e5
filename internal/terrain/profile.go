package terrain

import (
	"math"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// flatSlopeDeg is the slope below which a frame has no meaningful aspect.
// It sits well above the tilt that ellipsoid curvature alone puts between
// probes a few metres apart.
const flatSlopeDeg = 1e-3

// Triplet returns the center, north and east probe points used by Estimate,
// offsetMeters apart in p's tangent frame.
func Triplet(p core.GeodeticPoint, offsetMeters float64) [3]core.GeodeticPoint {
	f := geo.NewFrame(p)
	return [3]core.GeodeticPoint{
		p,
		f.ToGeodetic(core.LocalPoint{North: offsetMeters}),
		f.ToGeodetic(core.LocalPoint{East: offsetMeters}),
	}
}

// Probes returns the west, east, south and north points offsetMeters from p.
func Probes(p core.GeodeticPoint, offsetMeters float64) [4]core.GeodeticPoint {
	f := geo.NewFrame(p)
	return [4]core.GeodeticPoint{
		f.ToGeodetic(core.LocalPoint{East: -offsetMeters}),
		f.ToGeodetic(core.LocalPoint{East: offsetMeters}),
		f.ToGeodetic(core.LocalPoint{North: -offsetMeters}),
		f.ToGeodetic(core.LocalPoint{North: offsetMeters}),
	}
}

// Estimate derives the ground plane at center from two nearby samples.
// The vectors are taken in the tangent frame of the grounded center, so
// the returned normal is expressed in that point's east/north/up basis.
func Estimate(center, north, east core.TerrainSample) core.SurfaceFrame {
	f := geo.NewFrame(center.Grounded())
	vNorth := f.ToLocal(north.Grounded()).Vec()
	vEast := f.ToLocal(east.Grounded()).Vec()
	return FromNormal(r3.Cross(vEast, vNorth))
}

// FromNormal builds a SurfaceFrame from an unnormalised local normal. The
// normal is flipped to point up. A zero normal yields Flat and level ground
// has aspect 0.
func FromNormal(n r3.Vec) core.SurfaceFrame {
	length := r3.Norm(n)
	if length < 1e-12 || math.IsNaN(length) {
		return core.Flat
	}
	n = r3.Scale(1/length, n)
	if n.Z < 0 {
		n = r3.Scale(-1, n)
	}

	slope := math.Acos(math.Max(-1, math.Min(1, n.Z))) * 180 / math.Pi
	aspect := 0.0
	if slope >= flatSlopeDeg {
		aspect = normalizeAspect(math.Atan2(n.X, n.Y) * 180 / math.Pi)
	}
	return core.SurfaceFrame{Normal: n, SlopeDeg: slope, AspectDeg: aspect}
}

// Profile summarises a set of surface frames.
type Profile struct {
	SlopeDeg  float64
	AspectDeg float64
	Elevation float64
	Count     int
}

// Mean averages slope arithmetically and aspect on the circle. Flat frames
// carry no aspect and are left out of the aspect mean. Elevation is left
// for the caller.
func Mean(frames []core.SurfaceFrame) Profile {
	if len(frames) == 0 {
		return Profile{}
	}

	angles := make([]float64, len(frames))
	weights := make([]float64, len(frames))
	var slopeSum, weightSum float64
	for i, f := range frames {
		slopeSum += f.SlopeDeg
		angles[i] = f.AspectDeg * math.Pi / 180
		if f.SlopeDeg >= flatSlopeDeg {
			weights[i] = 1
			weightSum++
		}
	}

	p := Profile{SlopeDeg: slopeSum / float64(len(frames)), Count: len(frames)}
	if weightSum > 0 {
		p.AspectDeg = normalizeAspect(stat.CircularMean(angles, weights) * 180 / math.Pi)
	}
	return p
}

// Frame returns the surface frame with the profile's slope and aspect.
func (p Profile) Frame() core.SurfaceFrame {
	s := p.SlopeDeg * math.Pi / 180
	a := p.AspectDeg * math.Pi / 180
	return core.SurfaceFrame{
		Normal:    r3.Vec{X: math.Sin(s) * math.Sin(a), Y: math.Sin(s) * math.Cos(a), Z: math.Cos(s)},
		SlopeDeg:  p.SlopeDeg,
		AspectDeg: p.AspectDeg,
	}
}

// MeanElevation is the arithmetic mean terrain height of samples.
func MeanElevation(samples []core.TerrainSample) float64 {
	if len(samples) == 0 {
		return 0
	}
	hs := make([]float64, len(samples))
	for i, s := range samples {
		hs[i] = s.Elevation
	}
	return stat.Mean(hs, nil)
}

// south is the fallback downslope direction on level ground.
var south = r3.Vec{Y: -1}

// Downslope estimates the horizontal direction of steepest descent from
// the four Probes samples by central differences. On level ground it
// returns south and false.
func Downslope(west, east, southSample, north core.TerrainSample, offsetMeters float64) (r3.Vec, bool) {
	if !(offsetMeters > 0) {
		return south, false
	}
	dzdx := (east.Elevation - west.Elevation) / (2 * offsetMeters)
	dzdy := (north.Elevation - southSample.Elevation) / (2 * offsetMeters)
	if math.Hypot(dzdx, dzdy) < 1e-12 {
		return south, false
	}
	return geo.UnitOr(r3.Vec{X: -dzdx, Y: -dzdy}, south), true
}

// ProbeFrame is the ground plane implied by the four Probes samples.
func ProbeFrame(west, east, southSample, north core.TerrainSample, offsetMeters float64) core.SurfaceFrame {
	if !(offsetMeters > 0) {
		return core.Flat
	}
	dzdx := (east.Elevation - west.Elevation) / (2 * offsetMeters)
	dzdy := (north.Elevation - southSample.Elevation) / (2 * offsetMeters)
	return FromNormal(r3.Vec{X: -dzdx, Y: -dzdy, Z: 1})
}

// LocalDownslope is the horizontal steepest descent direction of a frame.
// The horizontal part of an upward normal points downhill.
func LocalDownslope(f core.SurfaceFrame, fallback r3.Vec) r3.Vec {
	return geo.UnitOr(geo.Horizontal(f.Normal), fallback)
}

// normalizeAspect maps degrees into (-180, 180].
func normalizeAspect(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg <= -180 {
		deg += 360
	} else if deg > 180 {
		deg -= 360
	}
	return deg
}
