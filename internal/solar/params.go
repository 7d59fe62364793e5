package solar

import (
	"fmt"
	"math"

	"github.com/terrasite/siting/internal/spacing"
	"github.com/terrasite/siting/pkg/core"
)

// Mode selects how panel rows are oriented.
type Mode string

const (
	// South lays rows east-west with panels facing true south.
	South Mode = "south"
	// Downslope lays rows across the polygon's mean downhill direction.
	Downslope Mode = "downslope"
)

// ParseMode accepts "south" or "downslope". Empty means South.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", South:
		return South, nil
	case Downslope:
		return Downslope, nil
	default:
		return "", fmt.Errorf("unknown solar mode %q", s)
	}
}

// DownslopeSource picks the direction used for each panel's x-axis in
// Downslope mode.
type DownslopeSource string

const (
	// Global reuses the polygon-wide downhill direction projected onto
	// each unit's ground plane.
	Global DownslopeSource = "global"
	// Local uses each unit's own steepest descent.
	Local DownslopeSource = "local"
)

// ParseDownslopeSource accepts "global" or "local". Empty means Global.
func ParseDownslopeSource(s string) (DownslopeSource, error) {
	switch DownslopeSource(s) {
	case "", Global:
		return Global, nil
	case Local:
		return Local, nil
	default:
		return "", fmt.Errorf("unknown downslope source %q", s)
	}
}

// Params controls a solar layout run. Distances are metres.
type Params struct {
	Mode Mode
	// TrialSpacing is the row pitch of the first sampling pass in South
	// mode and the row pitch of a Downslope layout.
	TrialSpacing float64
	// RowSpacing fixes the row pitch and skips the coverage table. Zero
	// leaves the choice to the mode.
	RowSpacing float64
	// GCR fixes the coverage ratio instead. The pitch is the module
	// dimension over GCR, unclamped, so values above 1 overlap rows.
	GCR float64
	// LateralSpacing is the distance between units along a row. Half of
	// it is kept clear of the boundary.
	LateralSpacing float64
	// HalfExtent bounds the lattice around the polygon centroid. Zero
	// sizes it from the polygon.
	HalfExtent float64
	// SampleOffset separates the probes used for each unit's ground plane.
	SampleOffset float64
	// ProbeOffset separates the four probes of the downslope estimate.
	ProbeOffset float64
	TiltMode    spacing.TiltMode
	// PerUnitAzimuth overrides the mode default: South reports a fixed
	// 180, Downslope reports each unit's bearing.
	PerUnitAzimuth  *bool
	DownslopeSource DownslopeSource
}

// DefaultParams returns the parameters of a standard south-facing run.
func DefaultParams() Params {
	return Params{
		Mode:            South,
		TrialSpacing:    5,
		LateralSpacing:  5.7,
		HalfExtent:      1000,
		SampleOffset:    1,
		ProbeOffset:     10,
		TiltMode:        spacing.TiltAuto,
		DownslopeSource: Global,
	}
}

func (p Params) validate() error {
	if !(p.TrialSpacing > 0) || !(p.LateralSpacing > 0) {
		return fmt.Errorf("trial %v, lateral %v: %w", p.TrialSpacing, p.LateralSpacing, core.ErrInvalidSpacing)
	}
	if !(p.RowSpacing >= 0) || math.IsInf(p.RowSpacing, 1) {
		return fmt.Errorf("row spacing %v: %w", p.RowSpacing, core.ErrInvalidSpacing)
	}
	if !(p.GCR >= 0) || math.IsInf(p.GCR, 1) {
		return fmt.Errorf("gcr %v: %w", p.GCR, core.ErrInvalidSpacing)
	}
	if p.RowSpacing > 0 && p.GCR > 0 {
		return fmt.Errorf("row spacing %v and gcr %v both set: %w", p.RowSpacing, p.GCR, core.ErrInvalidSpacing)
	}
	if !(p.SampleOffset > 0) || !(p.ProbeOffset > 0) {
		return fmt.Errorf("probe offsets %v, %v: %w", p.SampleOffset, p.ProbeOffset, core.ErrInvalidSpacing)
	}
	switch p.Mode {
	case South, Downslope:
	default:
		return fmt.Errorf("unknown solar mode %q", p.Mode)
	}
	return nil
}

// initialSpacing is reported when nothing gets placed.
func (p Params) initialSpacing() float64 {
	if p.RowSpacing > 0 {
		return p.RowSpacing
	}
	return p.TrialSpacing
}

func (p Params) perUnitAzimuth() bool {
	if p.PerUnitAzimuth != nil {
		return *p.PerUnitAzimuth
	}
	return p.Mode == Downslope
}

// pitch resolves the row pitch for an asset when the caller fixed it.
// ok is false when the coverage table should decide.
func (p Params) pitch(asset core.AssetClass) (core.SpacingResult, bool) {
	switch {
	case p.RowSpacing > 0:
		return core.SpacingResult{
			GCR:              spacing.EffectiveGCR(asset.ModuleDimension, p.RowSpacing),
			RowSpacingMeters: p.RowSpacing,
		}, true
	case p.GCR > 0:
		sp, err := spacing.SpacingForGCR(p.GCR, asset.ModuleDimension)
		return sp, err == nil
	default:
		return core.SpacingResult{}, false
	}
}
