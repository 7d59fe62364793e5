package geo

import (
	"math"

	"github.com/terrasite/siting/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// WGS84 ellipsoid.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1 / 298.257223563
	eccentricity2 = flattening * (2 - flattening)
)

// EarthRadius is the mean sphere radius used for great-circle distances.
const EarthRadius = 6371000.0

// Frame is a local east/north/up tangent frame anchored at Origin.
type Frame struct {
	Origin core.GeodeticPoint

	originECEF      r3.Vec
	east, north, up r3.Vec
}

// NewFrame anchors a tangent frame at origin.
func NewFrame(origin core.GeodeticPoint) Frame {
	lon := origin.Lon * math.Pi / 180
	lat := origin.Lat * math.Pi / 180
	sinLon, cosLon := math.Sincos(lon)
	sinLat, cosLat := math.Sincos(lat)

	return Frame{
		Origin:     origin,
		originECEF: ToECEF(origin),
		east:       r3.Vec{X: -sinLon, Y: cosLon},
		north:      r3.Vec{X: -sinLat * cosLon, Y: -sinLat * sinLon, Z: cosLat},
		up:         r3.Vec{X: cosLat * cosLon, Y: cosLat * sinLon, Z: sinLat},
	}
}

// ToLocal expresses p in the frame.
func (f Frame) ToLocal(p core.GeodeticPoint) core.LocalPoint {
	return core.LocalFromVec(f.VectorFromECEF(r3.Sub(ToECEF(p), f.originECEF)))
}

// ToGeodetic is the inverse of ToLocal.
func (f Frame) ToGeodetic(p core.LocalPoint) core.GeodeticPoint {
	return FromECEF(r3.Add(f.originECEF, f.VectorToECEF(p.Vec())))
}

// VectorToECEF re-expresses a direction given in the frame's basis in
// earth-centred coordinates.
func (f Frame) VectorToECEF(v r3.Vec) r3.Vec {
	return r3.Add(r3.Add(r3.Scale(v.X, f.east), r3.Scale(v.Y, f.north)), r3.Scale(v.Z, f.up))
}

// VectorFromECEF is the inverse of VectorToECEF.
func (f Frame) VectorFromECEF(v r3.Vec) r3.Vec {
	return r3.Vec{X: r3.Dot(v, f.east), Y: r3.Dot(v, f.north), Z: r3.Dot(v, f.up)}
}

// ToECEF converts a geodetic point to earth-centred earth-fixed metres.
func ToECEF(p core.GeodeticPoint) r3.Vec {
	lon := p.Lon * math.Pi / 180
	lat := p.Lat * math.Pi / 180
	sinLon, cosLon := math.Sincos(lon)
	sinLat, cosLat := math.Sincos(lat)
	n := semiMajorAxis / math.Sqrt(1-eccentricity2*sinLat*sinLat)
	h := p.Elevation

	return r3.Vec{
		X: (n + h) * cosLat * cosLon,
		Y: (n + h) * cosLat * sinLon,
		Z: (n*(1-eccentricity2) + h) * sinLat,
	}
}

// FromECEF converts earth-centred coordinates back to geodetic.
// The latitude iteration converges well below a millimetre in a few steps
// and stays finite on the polar axis.
func FromECEF(v r3.Vec) core.GeodeticPoint {
	p := math.Hypot(v.X, v.Y)
	if p == 0 && v.Z == 0 {
		return core.GeodeticPoint{Elevation: -semiMajorAxis}
	}

	lon := math.Atan2(v.Y, v.X)
	lat := math.Atan2(v.Z, p*(1-eccentricity2))
	var h float64
	for i := 0; i < 10; i++ {
		h = ellipsoidHeight(p, v.Z, lat)
		n := primeVertical(lat)
		next := math.Atan2(v.Z, p*(1-eccentricity2*n/(n+h)))
		if math.Abs(next-lat) < 1e-14 {
			lat = next
			break
		}
		lat = next
	}
	h = ellipsoidHeight(p, v.Z, lat)

	return core.GeodeticPoint{
		Lon:       lon * 180 / math.Pi,
		Lat:       lat * 180 / math.Pi,
		Elevation: h,
	}
}

func primeVertical(lat float64) float64 {
	s := math.Sin(lat)
	return semiMajorAxis / math.Sqrt(1-eccentricity2*s*s)
}

// ellipsoidHeight avoids dividing by cos(lat) so it holds at the poles.
func ellipsoidHeight(p, z, lat float64) float64 {
	sinLat, cosLat := math.Sincos(lat)
	return p*cosLat + z*sinLat - semiMajorAxis*math.Sqrt(1-eccentricity2*sinLat*sinLat)
}

// ProjectOntoPlane removes the component of v along normal.
// A zero normal leaves v unchanged.
func ProjectOntoPlane(v, normal r3.Vec) r3.Vec {
	nn := r3.Dot(normal, normal)
	if nn == 0 {
		return v
	}
	return r3.Sub(v, r3.Scale(r3.Dot(v, normal)/nn, normal))
}

// Horizontal drops the up component of a local vector.
func Horizontal(v r3.Vec) r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y}
}

// UnitOr normalises v, returning fallback when v has no length.
func UnitOr(v, fallback r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n < 1e-12 || math.IsNaN(n) {
		return fallback
	}
	return r3.Scale(1/n, v)
}

// BearingDeg is the compass bearing of the horizontal part of a local
// vector, in [0, 360). A vertical or zero vector has bearing 0.
func BearingDeg(v r3.Vec) float64 {
	if math.Hypot(v.X, v.Y) < 1e-12 {
		return 0
	}
	b := math.Atan2(v.X, v.Y) * 180 / math.Pi
	b = math.Mod(b+360, 360)
	if b >= 360 {
		b = 0
	}
	return b
}

// Haversine is the great-circle distance in metres between a and b.
func Haversine(a, b core.GeodeticPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	s := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadius * math.Asin(math.Min(1, math.Sqrt(s)))
}

// MetersPerDegree returns the length in metres of one degree of latitude
// and one degree of longitude at lat on the mean sphere.
func MetersPerDegree(lat float64) (perLat, perLon float64) {
	perLat = EarthRadius * math.Pi / 180
	perLon = perLat * math.Cos(lat*math.Pi/180)
	return perLat, perLon
}
