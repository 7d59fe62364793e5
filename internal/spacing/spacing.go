// Package spacing turns a terrain profile into a ground coverage ratio and
// a row pitch, and picks the panel asset class for a site.
package spacing

import (
	"fmt"
	"math"

	"github.com/terrasite/siting/pkg/core"
)

const (
	// MinGCR is returned for slopes too steep to build on. It is small but
	// finite so the spacing derived from it stays finite.
	MinGCR = 1e-5
	// MaxGCR caps the coverage ratio used for spacing.
	MaxGCR = 0.75

	// MaxSlopeDeg is the steepest mean slope the tables cover.
	MaxSlopeDeg = 40

	DefaultElevationThreshold = 1500
)

// TiltMode selects the panel tilt. Auto picks by site elevation.
type TiltMode string

const (
	TiltAuto TiltMode = "auto"
	Tilt30   TiltMode = "30"
	Tilt75   TiltMode = "75"
)

// ParseTiltMode accepts "auto", "30" or "75". An empty string means auto.
func ParseTiltMode(s string) (TiltMode, error) {
	switch TiltMode(s) {
	case "", TiltAuto:
		return TiltAuto, nil
	case Tilt30, Tilt75:
		return TiltMode(s), nil
	default:
		return "", fmt.Errorf("unknown tilt mode %q", s)
	}
}

// Panel asset classes.
var (
	PV30 = core.AssetClass{Name: "pv-30", TiltDeg: 30, ModuleDimension: 2.0}
	PV75 = core.AssetClass{Name: "pv-75", TiltDeg: 75, ModuleDimension: 0.65}
)

// Model holds the rule that splits sites into low and high elevation.
type Model struct {
	ElevationThreshold float64
}

// New returns a Model. A non-positive threshold uses the default.
func New(elevationThreshold float64) *Model {
	if elevationThreshold <= 0 {
		elevationThreshold = DefaultElevationThreshold
	}
	return &Model{ElevationThreshold: elevationThreshold}
}

// High reports whether elevation uses the high-elevation table.
func (m *Model) High(elevation float64) bool {
	return elevation > m.ElevationThreshold
}

// GCRFor looks up the coverage ratio for a mean profile. aspectDeg is the
// compass direction the slope faces. Slopes above MaxSlopeDeg return
// MinGCR.
func (m *Model) GCRFor(elevation, slopeDeg, aspectDeg float64) float64 {
	row, ok := SlopeRow(slopeDeg)
	if !ok {
		return MinGCR
	}
	col := aspectColumn(AspectKey(aspectDeg))
	if m.High(elevation) {
		return highTable[row][col]
	}
	return lowTable[row][col]
}

// Asset picks the panel class. Under TiltAuto high sites get PV75 and low
// sites PV30.
func (m *Model) Asset(mode TiltMode, elevation float64) core.AssetClass {
	switch mode {
	case Tilt30:
		return PV30
	case Tilt75:
		return PV75
	default:
		if m.High(elevation) {
			return PV75
		}
		return PV30
	}
}

// For runs the full lookup: coverage ratio from the profile, then the row
// pitch for the asset's module dimension.
func (m *Model) For(mode TiltMode, elevation, slopeDeg, aspectDeg float64) (core.SpacingResult, core.AssetClass) {
	asset := m.Asset(mode, elevation)
	return RowSpacing(m.GCRFor(elevation, slopeDeg, aspectDeg), asset.ModuleDimension), asset
}

// SlopeRow rounds slope to the nearest table row. ok is false above
// MaxSlopeDeg or for NaN.
func SlopeRow(slopeDeg float64) (row int, ok bool) {
	if math.IsNaN(slopeDeg) || slopeDeg > MaxSlopeDeg {
		return 0, false
	}
	if slopeDeg < 0 {
		slopeDeg = 0
	}
	return int(math.Round(slopeDeg / slopeStep)), true
}

// AspectKey converts a facing direction to a table column key: the aspect
// rounded to the nearest 10 degrees (halves toward +inf), shifted by 180
// so that a south-facing slope is 0, wrapped into (-180, 180].
func AspectKey(aspectDeg float64) float64 {
	if math.IsNaN(aspectDeg) {
		return 0
	}
	key := math.Floor(aspectDeg/aspectStep+0.5)*aspectStep - 180
	key = math.Mod(key, 360)
	if key <= -180 {
		key += 360
	} else if key > 180 {
		key -= 360
	}
	return key
}

func aspectColumn(key float64) int {
	return int(math.Round((key + 180) / aspectStep))
}

// RowSpacing divides the module dimension by the clamped coverage ratio.
func RowSpacing(gcr, moduleDimension float64) core.SpacingResult {
	g := ClampGCR(gcr)
	return core.SpacingResult{GCR: g, RowSpacingMeters: moduleDimension / g}
}

// ClampGCR limits gcr to [MinGCR, MaxGCR]. NaN maps to MinGCR.
func ClampGCR(gcr float64) float64 {
	if math.IsNaN(gcr) || gcr < MinGCR {
		return MinGCR
	}
	return math.Min(gcr, MaxGCR)
}

// EffectiveGCR is the coverage a given pitch actually achieves.
func EffectiveGCR(moduleDimension, spacing float64) float64 {
	if !(spacing > 0) {
		return 0
	}
	return moduleDimension / spacing
}

// Overpacked flags a pitch tighter than the module itself.
func Overpacked(gcr float64) bool {
	return gcr > 1
}

// SpacingForGCR converts a user-chosen coverage ratio into a row pitch.
// The ratio is not clamped; callers can check Overpacked on the result.
func SpacingForGCR(gcr, moduleDimension float64) (core.SpacingResult, error) {
	if !(gcr > 0) || math.IsInf(gcr, 0) {
		return core.SpacingResult{}, fmt.Errorf("gcr %v: %w", gcr, core.ErrInvalidSpacing)
	}
	if !(moduleDimension > 0) {
		return core.SpacingResult{}, fmt.Errorf("module dimension %v: %w", moduleDimension, core.ErrInvalidSpacing)
	}
	return core.SpacingResult{GCR: gcr, RowSpacingMeters: moduleDimension / gcr}, nil
}
