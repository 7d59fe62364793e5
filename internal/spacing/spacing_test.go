package spacing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terrasite/siting/pkg/core"
)

func TestAspectKey(t *testing.T) {
	tests := []struct {
		aspect float64
		want   float64
	}{
		{180, 0},   // south-facing
		{0, 180},   // north-facing wraps to +180
		{90, -90},  // east-facing
		{-90, 90},  // west-facing
		{175, 0},   // halves round up
		{174.9, -10},
		{-175, 10}, // -17.5 rounds to -17
		{-180, 0},
		{5, -170},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AspectKey(tt.aspect), "aspect %v", tt.aspect)
	}
}

func TestAspectKey_Range(t *testing.T) {
	for a := -180.0; a <= 180; a += 0.5 {
		k := AspectKey(a)
		assert.Greater(t, k, -180.0)
		assert.LessOrEqual(t, k, 180.0)
		assert.Equal(t, 0.0, math.Mod(k, 10))
	}
}

func TestSlopeRow(t *testing.T) {
	tests := []struct {
		slope float64
		row   int
		ok    bool
	}{
		{0, 0, true},
		{4.9, 0, true},
		{5, 1, true},
		{24, 2, true},
		{36, 4, true},
		{40, 4, true},
		{40.01, 0, false},
		{-1, 0, true},
		{math.NaN(), 0, false},
	}
	for _, tt := range tests {
		row, ok := SlopeRow(tt.slope)
		assert.Equal(t, tt.ok, ok, "slope %v", tt.slope)
		if tt.ok {
			assert.Equal(t, tt.row, row, "slope %v", tt.slope)
		}
	}
}

func TestGCRFor_Tables(t *testing.T) {
	m := New(0)
	require.Equal(t, float64(DefaultElevationThreshold), m.ElevationThreshold)

	assert.Equal(t, 0.366, m.GCRFor(200, 0, 42))
	assert.Equal(t, 0.259, m.GCRFor(2000, 0, 42))

	assert.Equal(t, 0.598, m.GCRFor(200, 10, 180))
	assert.Equal(t, 0.123, m.GCRFor(200, 10, 0))
	assert.Equal(t, 0.423, m.GCRFor(2000, 10, 180))

	// threshold is exclusive
	assert.Equal(t, 0.598, m.GCRFor(1500, 10, 180))
	assert.Equal(t, 0.423, m.GCRFor(1500.1, 10, 180))
}

func TestGCRFor_Unbuildable(t *testing.T) {
	m := New(1500)
	assert.Equal(t, MinGCR, m.GCRFor(200, 41, 180))
	assert.Equal(t, MinGCR, m.GCRFor(2000, 89, 0))

	sp := RowSpacing(m.GCRFor(200, 55, 180), PV30.ModuleDimension)
	assert.InDelta(t, 2/MinGCR, sp.RowSpacingMeters, 1e-6)
	assert.False(t, math.IsInf(sp.RowSpacingMeters, 0))
}

func TestGCRFor_SouthMonotoneInSlope(t *testing.T) {
	m := New(1500)
	for _, elev := range []float64{100, 2500} {
		prev := 0.0
		for slope := 0.0; slope <= 40; slope += 10 {
			g := m.GCRFor(elev, slope, 180)
			assert.GreaterOrEqual(t, g, prev, "elev %v slope %v", elev, slope)
			prev = g
		}
	}
}

func TestGCRFor_ColumnsSymmetricAtWrap(t *testing.T) {
	for r := 0; r < slopeRows; r++ {
		assert.Equal(t, lowTable[r][0], lowTable[r][aspectCols-1])
		assert.Equal(t, highTable[r][0], highTable[r][aspectCols-1])
	}
}

func TestRowSpacing(t *testing.T) {
	sp := RowSpacing(0.4, 2)
	assert.Equal(t, 0.4, sp.GCR)
	assert.InDelta(t, 5, sp.RowSpacingMeters, 1e-12)

	high := RowSpacing(0.9, 2)
	assert.Equal(t, MaxGCR, high.GCR)
	assert.InDelta(t, 2/0.75, high.RowSpacingMeters, 1e-12)

	zero := RowSpacing(0, 2)
	assert.Equal(t, MinGCR, zero.GCR)
	assert.False(t, math.IsInf(zero.RowSpacingMeters, 0))

	assert.Equal(t, MinGCR, ClampGCR(math.NaN()))
}

func TestAsset(t *testing.T) {
	m := New(1500)
	assert.Equal(t, PV30, m.Asset(TiltAuto, 800))
	assert.Equal(t, PV75, m.Asset(TiltAuto, 1800))
	assert.Equal(t, PV30, m.Asset(Tilt30, 1800))
	assert.Equal(t, PV75, m.Asset(Tilt75, 800))
}

func TestFor(t *testing.T) {
	m := New(1500)
	sp, asset := m.For(TiltAuto, 1800, 10, 180)
	assert.Equal(t, PV75, asset)
	assert.Equal(t, 0.423, sp.GCR)
	assert.InDelta(t, 0.65/0.423, sp.RowSpacingMeters, 1e-12)
}

func TestParseTiltMode(t *testing.T) {
	for in, want := range map[string]TiltMode{"": TiltAuto, "auto": TiltAuto, "30": Tilt30, "75": Tilt75} {
		got, err := ParseTiltMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTiltMode("45")
	assert.Error(t, err)
}

func TestEffectiveGCR(t *testing.T) {
	assert.InDelta(t, 0.4, EffectiveGCR(2, 5), 1e-12)
	assert.Equal(t, 0.0, EffectiveGCR(2, 0))
	assert.True(t, Overpacked(EffectiveGCR(2, 1.5)))
	assert.False(t, Overpacked(EffectiveGCR(2, 5)))
}

func TestSpacingForGCR(t *testing.T) {
	sp, err := SpacingForGCR(0.5, PV30.ModuleDimension)
	require.NoError(t, err)
	assert.Equal(t, 0.5, sp.GCR)
	assert.InDelta(t, 4.0, sp.RowSpacingMeters, 1e-12)

	// not clamped to MaxGCR
	sp, err = SpacingForGCR(1.25, PV75.ModuleDimension)
	require.NoError(t, err)
	assert.True(t, Overpacked(sp.GCR))
	assert.InDelta(t, 0.52, sp.RowSpacingMeters, 1e-12)

	for _, bad := range []float64{0, -0.1, math.NaN(), math.Inf(1)} {
		_, err := SpacingForGCR(bad, 2)
		assert.ErrorIs(t, err, core.ErrInvalidSpacing, "gcr %v", bad)
	}
	_, err = SpacingForGCR(0.4, 0)
	assert.ErrorIs(t, err, core.ErrInvalidSpacing)
}
