package core

import "gonum.org/v1/gonum/spatial/r3"

// GeodeticPoint is a position on the WGS84 ellipsoid.
// Lon and Lat are degrees, Elevation is metres above the ellipsoid.
type GeodeticPoint struct {
	Lon       float64 `json:"lon"`
	Lat       float64 `json:"lat"`
	Elevation float64 `json:"elevation"`
}

// LocalPoint is a position in metres in a local east/north/up tangent frame.
type LocalPoint struct {
	East  float64 `json:"east"`
	North float64 `json:"north"`
	Up    float64 `json:"up"`
}

// Vec returns the point as an r3 vector (X=east, Y=north, Z=up).
func (p LocalPoint) Vec() r3.Vec {
	return r3.Vec{X: p.East, Y: p.North, Z: p.Up}
}

// LocalFromVec is the inverse of LocalPoint.Vec.
func LocalFromVec(v r3.Vec) LocalPoint {
	return LocalPoint{East: v.X, North: v.Y, Up: v.Z}
}

// Polygon is a user-drawn ground area. The ring is implicitly closed;
// the first vertex is not repeated at the end.
type Polygon struct {
	ID       string          `json:"id"`
	Vertices []GeodeticPoint `json:"vertices"`
}

// Degenerate reports whether the ring has fewer than three distinct
// vertices. Repeated consecutive vertices count once, as does a closing
// vertex equal to the first.
func (p Polygon) Degenerate() bool {
	return p.DistinctVertices() < 3
}

// DistinctVertices counts vertices that differ in position from their
// predecessor around the ring. Elevation is ignored.
func (p Polygon) DistinctVertices() int {
	n := len(p.Vertices)
	count := 0
	for i, v := range p.Vertices {
		prev := p.Vertices[(i+n-1)%n]
		if v.Lon != prev.Lon || v.Lat != prev.Lat {
			count++
		}
	}
	return count
}

// TerrainSample is a query point paired with the terrain height found there.
type TerrainSample struct {
	Point     GeodeticPoint `json:"point"`
	Elevation float64       `json:"elevation"`
}

// Grounded returns the sample point with its elevation set to the terrain height.
func (s TerrainSample) Grounded() GeodeticPoint {
	p := s.Point
	p.Elevation = s.Elevation
	return p
}

// SurfaceFrame describes the local ground plane at a point.
// Normal is a unit vector in the east/north/up basis of that point.
// SlopeDeg is in [0, 90]. AspectDeg is the compass bearing the slope faces
// (0 = north, clockwise) in (-180, 180].
type SurfaceFrame struct {
	Normal    r3.Vec  `json:"normal"`
	SlopeDeg  float64 `json:"slope_deg"`
	AspectDeg float64 `json:"aspect_deg"`
}

// Flat is the frame of level ground.
var Flat = SurfaceFrame{Normal: r3.Vec{Z: 1}}

// BBox is a lon/lat bounding box in degrees.
type BBox struct {
	MinLon, MinLat float64
	MaxLon, MaxLat float64
}
