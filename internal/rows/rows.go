// Package rows groups placed units into rows along an axis.
package rows

import (
	"math"

	"github.com/terrasite/siting/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

// Indices projects each point onto axis and rounds to the nearest multiple
// of spacing. A non-positive spacing puts every point in row 0.
func Indices(points []core.LocalPoint, axis r3.Vec, spacing float64) []int {
	out := make([]int, len(points))
	if !(spacing > 0) {
		return out
	}
	for i, p := range points {
		out[i] = int(math.Round(r3.Dot(p.Vec(), axis) / spacing))
	}
	return out
}

// Count is the number of distinct row indices.
func Count(points []core.LocalPoint, axis r3.Vec, spacing float64) int {
	seen := make(map[int]struct{})
	for _, i := range Indices(points, axis, spacing) {
		seen[i] = struct{}{}
	}
	return len(seen)
}

// Classify collapses the row count to zero, one or many.
func Classify(points []core.LocalPoint, axis r3.Vec, spacing float64) core.RowClassification {
	return FromCount(Count(points, axis, spacing))
}

// FromCount maps a row count to a classification.
func FromCount(n int) core.RowClassification {
	switch {
	case n <= 0:
		return core.RowsZero
	case n == 1:
		return core.RowsOne
	default:
		return core.RowsMultiple
	}
}
