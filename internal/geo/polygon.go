package geo

import (
	"math"

	"github.com/terrasite/siting/pkg/core"
)

// PointInPolygon ray-casts on (lon, lat). Points exactly on an edge may
// fall either way.
func PointInPolygon(p core.GeodeticPoint, poly core.Polygon) bool {
	v := poly.Vertices
	if len(v) < 3 {
		return false
	}
	inside := false
	for i, j := 0, len(v)-1; i < len(v); j, i = i, i+1 {
		xi, yi := v[i].Lon, v[i].Lat
		xj, yj := v[j].Lon, v[j].Lat
		if (yi > p.Lat) != (yj > p.Lat) &&
			p.Lon < (xj-xi)*(p.Lat-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// MinEdgeDistanceMeters is the distance from p to the nearest polygon edge.
// The foot of the perpendicular is found in degree space and the distance
// measured with Haversine. A polygon without vertices is infinitely far.
func MinEdgeDistanceMeters(p core.GeodeticPoint, poly core.Polygon) float64 {
	v := poly.Vertices
	if len(v) == 0 {
		return math.Inf(1)
	}
	if len(v) == 1 {
		return Haversine(p, v[0])
	}

	best := math.Inf(1)
	for i := range v {
		a, b := v[i], v[(i+1)%len(v)]
		dx, dy := b.Lon-a.Lon, b.Lat-a.Lat
		l2 := dx*dx + dy*dy

		t := 0.0
		if l2 > 0 {
			t = ((p.Lon-a.Lon)*dx + (p.Lat-a.Lat)*dy) / l2
			t = math.Max(0, math.Min(1, t))
		}
		foot := core.GeodeticPoint{Lon: a.Lon + t*dx, Lat: a.Lat + t*dy}
		best = math.Min(best, Haversine(p, foot))
	}
	return best
}

// InsideWithBuffer reports whether p is inside poly and at least buffer
// metres from every edge.
func InsideWithBuffer(p core.GeodeticPoint, poly core.Polygon, buffer float64) bool {
	return PointInPolygon(p, poly) && MinEdgeDistanceMeters(p, poly) >= buffer
}

// Centroid is the vertex mean. It is not the area centroid and may lie
// outside a concave polygon.
func Centroid(poly core.Polygon) core.GeodeticPoint {
	var c core.GeodeticPoint
	if len(poly.Vertices) == 0 {
		return c
	}
	for _, v := range poly.Vertices {
		c.Lon += v.Lon
		c.Lat += v.Lat
		c.Elevation += v.Elevation
	}
	n := float64(len(poly.Vertices))
	c.Lon /= n
	c.Lat /= n
	c.Elevation /= n
	return c
}

// Bounds returns the lon/lat bounding box of the vertices.
func Bounds(poly core.Polygon) core.BBox {
	b := core.BBox{
		MinLon: math.Inf(1), MinLat: math.Inf(1),
		MaxLon: math.Inf(-1), MaxLat: math.Inf(-1),
	}
	for _, v := range poly.Vertices {
		b.MinLon = math.Min(b.MinLon, v.Lon)
		b.MaxLon = math.Max(b.MaxLon, v.Lon)
		b.MinLat = math.Min(b.MinLat, v.Lat)
		b.MaxLat = math.Max(b.MaxLat, v.Lat)
	}
	return b
}

// DensifyBoundary walks the ring and emits points roughly every step
// metres. Each edge contributes n = max(1, floor(len/step)) points at
// fractions k/n for k in [0, n), so every vertex appears exactly once and
// the closing vertex is not repeated. A non-positive step yields the
// vertices alone.
func DensifyBoundary(poly core.Polygon, step float64) []core.GeodeticPoint {
	v := poly.Vertices
	if len(v) < 3 {
		return nil
	}

	c := Centroid(poly)
	perLat, perLon := MetersPerDegree(c.Lat)

	out := make([]core.GeodeticPoint, 0, len(v))
	for i := range v {
		a, b := v[i], v[(i+1)%len(v)]
		n := 1
		if step > 0 {
			length := math.Hypot((b.Lon-a.Lon)*perLon, (b.Lat-a.Lat)*perLat)
			n = max(1, int(math.Floor(length/step)))
		}
		for k := 0; k < n; k++ {
			t := float64(k) / float64(n)
			out = append(out, core.GeodeticPoint{
				Lon:       a.Lon + t*(b.Lon-a.Lon),
				Lat:       a.Lat + t*(b.Lat-a.Lat),
				Elevation: a.Elevation + t*(b.Elevation-a.Elevation),
			})
		}
	}
	return out
}
