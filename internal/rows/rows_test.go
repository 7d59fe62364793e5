package rows

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/terrasite/siting/pkg/core"
	"gonum.org/v1/gonum/spatial/r3"
)

var south = r3.Vec{Y: -1}

func line(n int, east, north float64) []core.LocalPoint {
	out := make([]core.LocalPoint, n)
	for i := range out {
		out[i] = core.LocalPoint{East: float64(i) * east, North: float64(i) * north}
	}
	return out
}

func TestClassify_Zero(t *testing.T) {
	assert.Equal(t, core.RowsZero, Classify(nil, south, 5))
}

func TestClassify_One(t *testing.T) {
	// all points share a north coordinate
	assert.Equal(t, core.RowsOne, Classify(line(10, 5.7, 0), south, 5))
	// jitter smaller than half a spacing stays in one row
	pts := []core.LocalPoint{{North: 0.4}, {East: 3, North: -2.4}, {East: 9, North: 1}}
	assert.Equal(t, core.RowsOne, Classify(pts, south, 5))
}

func TestClassify_Multiple(t *testing.T) {
	assert.Equal(t, core.RowsMultiple, Classify(line(3, 0, 5), south, 5))
}

func TestClassify_NonPositiveSpacing(t *testing.T) {
	assert.Equal(t, core.RowsOne, Classify(line(3, 0, 5), south, 0))
	assert.Equal(t, core.RowsZero, Classify(nil, south, -1))
}

func TestCount(t *testing.T) {
	assert.Equal(t, 4, Count(line(4, 1, 5), south, 5))
	assert.Equal(t, []int{0, -1, -2}, Indices(line(3, 0, 5), south, 5))
}

func TestClassify_OrderIndependent(t *testing.T) {
	pts := []core.LocalPoint{}
	for i := 0; i < 50; i++ {
		pts = append(pts, core.LocalPoint{East: float64(i), North: float64(i%7) * 3.1})
	}
	want := Classify(pts, south, 5)
	wantCount := Count(pts, south, 5)

	r := rand.New(rand.NewSource(1))
	for i := 0; i < 20; i++ {
		r.Shuffle(len(pts), func(a, b int) { pts[a], pts[b] = pts[b], pts[a] })
		assert.Equal(t, want, Classify(pts, south, 5))
		assert.Equal(t, wantCount, Count(pts, south, 5))
	}
}

func TestFromCount(t *testing.T) {
	assert.Equal(t, core.RowsZero, FromCount(0))
	assert.Equal(t, core.RowsOne, FromCount(1))
	assert.Equal(t, core.RowsMultiple, FromCount(7))
}
