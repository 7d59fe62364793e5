package core

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// LayoutKind distinguishes solar from wind layouts.
type LayoutKind string

const (
	KindSolar LayoutKind = "solar"
	KindWind  LayoutKind = "wind"
)

// RowClassification is the number of distinct rows in a layout, collapsed
// to zero, one or many. The numeric values match the legacy row flag.
type RowClassification int

const (
	RowsZero RowClassification = iota
	RowsOne
	RowsMultiple
)

func (c RowClassification) String() string {
	switch c {
	case RowsZero:
		return "zero"
	case RowsOne:
		return "one"
	case RowsMultiple:
		return "multiple"
	default:
		return fmt.Sprintf("RowClassification(%d)", int(c))
	}
}

// MarshalJSON encodes the classification by name.
func (c RowClassification) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON accepts the names produced by MarshalJSON.
func (c *RowClassification) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "zero":
		*c = RowsZero
	case "one":
		*c = RowsOne
	case "multiple":
		*c = RowsMultiple
	default:
		return fmt.Errorf("unknown row classification %q", s)
	}
	return nil
}

// AssetClass is the equipment placed at a unit.
type AssetClass struct {
	Name            string  `json:"name"`
	TiltDeg         float64 `json:"tilt_deg,omitempty"`
	ModuleDimension float64 `json:"module_dimension_m,omitempty"`
	HubHeight       float64 `json:"hub_height_m,omitempty"`
	RotorDiameter   float64 `json:"rotor_diameter_m,omitempty"`
}

// Orientation holds the panel axes of a unit, expressed in the unit's own
// east/north/up basis. X runs along the row's downhill direction, Z is the
// panel's up direction and Y completes the right-handed triad.
type Orientation struct {
	X r3.Vec `json:"x"`
	Y r3.Vec `json:"y"`
	Z r3.Vec `json:"z"`
}

// PlacedUnit is one panel row segment or turbine.
type PlacedUnit struct {
	ID          string        `json:"id"`
	Position    GeodeticPoint `json:"position"`
	Orientation Orientation   `json:"orientation"`
	AzimuthDeg  float64       `json:"azimuth_deg"`
	TiltDeg     float64       `json:"tilt_deg"`
	Asset       AssetClass    `json:"asset"`
	Row         int           `json:"row"`
}

// LayoutResult is the immutable output of a layout run.
type LayoutResult struct {
	PolygonID        string            `json:"polygon_id"`
	Kind             LayoutKind        `json:"kind"`
	Mode             string            `json:"mode"`
	Units            []PlacedUnit      `json:"units"`
	EffectiveSpacing float64           `json:"effective_spacing_m"`
	GCR              float64           `json:"gcr"`
	Classification   RowClassification `json:"rows"`
	RowCount         int               `json:"row_count"`
	MeanFrame        SurfaceFrame      `json:"mean_frame"`
}

// Empty reports whether the layout placed nothing.
func (r LayoutResult) Empty() bool {
	return len(r.Units) == 0
}

// CandidateSource records where a candidate point came from.
type CandidateSource string

const (
	SourceBoundary CandidateSource = "boundary"
	SourceInterior CandidateSource = "interior"
)

// Candidate is a possible turbine location offered to an optimizer.
type Candidate struct {
	Point  GeodeticPoint   `json:"point"`
	Local  LocalPoint      `json:"local"`
	Source CandidateSource `json:"source"`
}

// CandidateSet is an ordered, duplicate-free list of candidates.
type CandidateSet []Candidate

// Points returns the geodetic positions of the set in order.
func (s CandidateSet) Points() []GeodeticPoint {
	out := make([]GeodeticPoint, len(s))
	for i, c := range s {
		out[i] = c.Point
	}
	return out
}

// SpacingResult pairs a ground coverage ratio with the row pitch it implies.
type SpacingResult struct {
	GCR              float64 `json:"gcr"`
	RowSpacingMeters float64 `json:"row_spacing_m"`
}
