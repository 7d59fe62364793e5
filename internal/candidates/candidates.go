// Package candidates builds the turbine candidate set offered to an
// optimizer: boundary points first, then the interior hexagonal lattice.
package candidates

import (
	"math"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/internal/grid"
	"github.com/terrasite/siting/pkg/core"
)

// keyScale rounds coordinates to 7 decimal degrees, about 1 cm.
const keyScale = 1e7

type key struct {
	lon, lat int64
}

func keyOf(p core.GeodeticPoint) key {
	return key{lon: int64(math.Round(p.Lon * keyScale)), lat: int64(math.Round(p.Lat * keyScale))}
}

// Generate densifies the boundary every boundaryStep metres and fills the
// interior every interiorSpacing metres. Points that round to the same key
// collapse to the first one seen, so boundary points win. Each candidate
// carries its offset from the polygon centroid.
func Generate(poly core.Polygon, interiorSpacing, boundaryStep float64) core.CandidateSet {
	if poly.Degenerate() {
		return nil
	}
	frame := geo.NewFrame(geo.Centroid(poly))

	seen := make(map[key]struct{})
	var out core.CandidateSet
	add := func(pts []core.GeodeticPoint, src core.CandidateSource) {
		for _, p := range pts {
			k := keyOf(p)
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, core.Candidate{Point: p, Local: frame.ToLocal(p), Source: src})
		}
	}
	add(geo.DensifyBoundary(poly, boundaryStep), core.SourceBoundary)
	add(grid.Hex(poly, interiorSpacing), core.SourceInterior)
	return out
}

// Count tallies a set by source.
func Count(set core.CandidateSet) (boundary, interior int) {
	for _, c := range set {
		if c.Source == core.SourceBoundary {
			boundary++
		} else {
			interior++
		}
	}
	return boundary, interior
}

// Index maps the rounded key of every candidate to its position in set.
type Index map[key]int

// NewIndex indexes set.
func NewIndex(set core.CandidateSet) Index {
	idx := make(Index, len(set))
	for i, c := range set {
		if _, dup := idx[keyOf(c.Point)]; !dup {
			idx[keyOf(c.Point)] = i
		}
	}
	return idx
}

// Lookup returns the position of the candidate p rounds to.
func (idx Index) Lookup(p core.GeodeticPoint) (int, bool) {
	i, ok := idx[keyOf(p)]
	return i, ok
}
