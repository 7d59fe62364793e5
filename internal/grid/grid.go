// Package grid generates candidate lattices for layouts: rectangular
// lattices in a local tangent frame for panel rows, and hexagonal lattices
// in lon/lat for turbines.
package grid

import (
	"math"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// poleGuard keeps the longitude step finite near the poles.
const poleGuard = 89.9

// Rect spans [-halfExtent, +halfExtent] along axisX and axisY with the
// given spacings. Steps are integer multiples of the spacing, X is the
// outer loop. A non-positive spacing or negative extent gives no points.
func Rect(halfExtent, spacingX, spacingY float64, axisX, axisY r3.Vec) []core.LocalPoint {
	if !(spacingX > 0) || !(spacingY > 0) || !(halfExtent >= 0) {
		return nil
	}
	nx := steps(2*halfExtent, spacingX)
	ny := steps(2*halfExtent, spacingY)

	out := make([]core.LocalPoint, 0, (nx+1)*(ny+1))
	for i := 0; i <= nx; i++ {
		x := -halfExtent + float64(i)*spacingX
		for j := 0; j <= ny; j++ {
			y := -halfExtent + float64(j)*spacingY
			out = append(out, core.LocalFromVec(r3.Add(r3.Scale(x, axisX), r3.Scale(y, axisY))))
		}
	}
	return out
}

// RectGeodetic is Rect converted through frame.
func RectGeodetic(frame geo.Frame, halfExtent, spacingX, spacingY float64, axisX, axisY r3.Vec) []core.GeodeticPoint {
	local := Rect(halfExtent, spacingX, spacingY, axisX, axisY)
	out := make([]core.GeodeticPoint, len(local))
	for i, p := range local {
		out[i] = frame.ToGeodetic(p)
	}
	return out
}

// Hex packs points at least minDistance metres apart inside poly. Rows run
// east-west every minDistance*sqrt(3)/2, odd rows shifted half a column.
// The degree step for longitude is taken at the most poleward latitude of
// the bounding box so that the step never shrinks below minDistance
// anywhere in the polygon.
//
// When no lattice point lands inside, the vertex centroid is returned if
// it is itself inside; otherwise the result is empty.
func Hex(poly core.Polygon, minDistance float64) []core.GeodeticPoint {
	if poly.Degenerate() || !(minDistance > 0) || math.IsInf(minDistance, 1) {
		return nil
	}

	b := geo.Bounds(poly)
	refLat := math.Min(math.Max(math.Abs(b.MinLat), math.Abs(b.MaxLat)), poleGuard)
	perLat, perLon := geo.MetersPerDegree(refLat)
	latStep := minDistance * math.Sqrt(3) / 2 / perLat
	lonStep := minDistance / perLon

	var out []core.GeodeticPoint
	rows := steps(b.MaxLat-b.MinLat, latStep)
	for r := 0; r <= rows; r++ {
		lat := b.MinLat + float64(r)*latStep
		offset := 0.0
		if r%2 == 1 {
			offset = lonStep / 2
		}
		width := b.MaxLon - b.MinLon - offset
		if width < 0 {
			continue
		}
		cols := steps(width, lonStep)
		for c := 0; c <= cols; c++ {
			p := core.GeodeticPoint{Lon: b.MinLon + offset + float64(c)*lonStep, Lat: lat}
			if geo.PointInPolygon(p, poly) {
				out = append(out, p)
			}
		}
	}

	if len(out) == 0 {
		c := geo.Centroid(poly)
		c.Elevation = 0
		if geo.PointInPolygon(c, poly) {
			out = append(out, c)
		}
	}
	return out
}

// steps is the number of whole spacing steps that fit in length, with a
// small tolerance so an exact fit is not lost to rounding.
func steps(length, spacing float64) int {
	return int(math.Floor(length/spacing + 1e-9))
}
