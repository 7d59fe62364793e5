package geo

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/peterstace/simplefeatures/geom"
	"github.com/terrasite/siting/pkg/core"
	"github.com/wroge/wgs84"
)

// Layouts are stored with a Web Mercator copy of each position so that
// consumers without geodetic awareness can draw them directly.

// ErrInvalidCoordinates is returned when polygon input cannot be parsed.
var ErrInvalidCoordinates = errors.New("invalid coordinates provided")

// ParsePolygon accepts any of:
//   - a JSON array of [lon, lat] or [lon, lat, elev] pairs
//   - a GeoJSON Polygon geometry
//   - a WKT POLYGON
//
// A closing vertex equal to the first is dropped.
func ParsePolygon(id, input string) (core.Polygon, error) {
	s := strings.TrimSpace(input)
	switch {
	case strings.HasPrefix(s, "["):
		return parseCoordArray(id, s)
	case strings.HasPrefix(s, "{"):
		g, err := geom.UnmarshalGeoJSON([]byte(s))
		if err != nil {
			return core.Polygon{}, fmt.Errorf("failed to parse polygon GeoJSON: %w", err)
		}
		return polygonFromGeometry(id, g)
	default:
		g, err := geom.UnmarshalWKT(s)
		if err != nil {
			return core.Polygon{}, fmt.Errorf("failed to parse polygon WKT: %w", err)
		}
		return polygonFromGeometry(id, g)
	}
}

func parseCoordArray(id, input string) (core.Polygon, error) {
	var coords [][]float64
	if err := json.Unmarshal([]byte(input), &coords); err != nil {
		return core.Polygon{}, fmt.Errorf("failed to parse polygon JSON: %w", err)
	}

	verts := make([]core.GeodeticPoint, 0, len(coords))
	for i, c := range coords {
		if len(c) < 2 {
			return core.Polygon{}, fmt.Errorf("coordinate %d has insufficient values: %w", i, ErrInvalidCoordinates)
		}
		p := core.GeodeticPoint{Lon: c[0], Lat: c[1]}
		if len(c) > 2 {
			p.Elevation = c[2]
		}
		verts = append(verts, p)
	}
	return core.Polygon{ID: id, Vertices: openRing(verts)}, nil
}

func polygonFromGeometry(id string, g geom.Geometry) (core.Polygon, error) {
	if g.Type() != geom.TypePolygon {
		return core.Polygon{}, fmt.Errorf("expected Polygon, got %s: %w", g.Type(), core.ErrInvalidPolygon)
	}
	poly, _ := g.AsPolygon()
	seq := poly.ExteriorRing().Coordinates()

	verts := make([]core.GeodeticPoint, 0, seq.Length())
	for i := 0; i < seq.Length(); i++ {
		c := seq.Get(i)
		verts = append(verts, core.GeodeticPoint{Lon: c.X, Lat: c.Y, Elevation: c.Z})
	}
	return core.Polygon{ID: id, Vertices: openRing(verts)}, nil
}

func openRing(verts []core.GeodeticPoint) []core.GeodeticPoint {
	if n := len(verts); n > 1 && verts[0].Lon == verts[n-1].Lon && verts[0].Lat == verts[n-1].Lat {
		return verts[:n-1]
	}
	return verts
}

// PolygonWKT renders the ring as a closed WKT POLYGON. Degenerate polygons
// render as an empty polygon.
func PolygonWKT(poly core.Polygon) string {
	if poly.Degenerate() {
		return geom.Polygon{}.AsText()
	}
	flat := make([]float64, 0, 2*(len(poly.Vertices)+1))
	for _, v := range poly.Vertices {
		flat = append(flat, v.Lon, v.Lat)
	}
	flat = append(flat, poly.Vertices[0].Lon, poly.Vertices[0].Lat)

	ring := geom.NewLineString(geom.NewSequence(flat, geom.DimXY))
	return geom.NewPolygon([]geom.LineString{ring}).AsText()
}

// UnitsMultiPoint collects unit positions into a MultiPoint with Z.
func UnitsMultiPoint(units []core.PlacedUnit) geom.MultiPoint {
	pts := make([]geom.Point, len(units))
	for i, u := range units {
		pts[i] = geom.NewPoint(geom.Coordinates{
			XY:   geom.XY{X: u.Position.Lon, Y: u.Position.Lat},
			Z:    u.Position.Elevation,
			Type: geom.DimXYZ,
		})
	}
	return geom.NewMultiPoint(pts)
}

// UnitsGeoJSON renders unit positions as a GeoJSON MultiPoint.
func UnitsGeoJSON(units []core.PlacedUnit) ([]byte, error) {
	return UnitsMultiPoint(units).AsGeometry().MarshalJSON()
}

// To3857 projects a geodetic point to Web Mercator metres.
func To3857(p core.GeodeticPoint) (x, y float64) {
	f := wgs84.EPSG().Transform(4326, 3857)
	x, y, _ = f(p.Lon, p.Lat, 0)
	return x, y
}
