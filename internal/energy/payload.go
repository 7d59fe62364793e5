// Package energy talks to the annual-energy service and to layout
// optimizers. It only builds and decodes payloads; yield modelling
// happens on the other side.
package energy

import (
	"errors"
	"fmt"
	"math"

	"github.com/terrasite/siting/pkg/core"
)

// ErrNoUnits is returned when a payload would carry no units.
var ErrNoUnits = errors.New("layout has no units")

// OutputAnnual asks the service for yearly totals.
const OutputAnnual = "annual"

// Panel is one PV unit in a solar request.
type Panel struct {
	ID         string  `json:"id"`
	Lon        float64 `json:"lon"`
	Lat        float64 `json:"lat"`
	TiltDeg    float64 `json:"tilt_deg"`
	AzimuthDeg float64 `json:"azimuth_deg"`
}

// PVPayload is the solar request body.
type PVPayload struct {
	Output string  `json:"output"`
	GCR    float64 `json:"gcr"`
	Rows   int     `json:"rows"`
	Panels []Panel `json:"panels"`
}

// Turbine is one unit in a wind request.
type Turbine struct {
	ID         string  `json:"id"`
	Lon        float64 `json:"lon"`
	Lat        float64 `json:"lat"`
	HubHeightM int     `json:"hub_height_m"`
}

// WindPayload is the wind request body.
type WindPayload struct {
	Output   string    `json:"output"`
	Turbines []Turbine `json:"turbines"`
}

// UnitID names the i-th unit of a polygon the way the energy service
// expects: <polygon>_p<i> for panels and <polygon>_t<i> for turbines.
func UnitID(polygonID string, kind core.LayoutKind, i int) string {
	if kind == core.KindWind {
		return fmt.Sprintf("%s_t%d", polygonID, i)
	}
	return fmt.Sprintf("%s_p%d", polygonID, i)
}

// BuildPVPayload converts a solar layout. Units without an ID are named
// with UnitID. The row count is at least one.
func BuildPVPayload(res core.LayoutResult) (PVPayload, error) {
	if res.Kind != core.KindSolar {
		return PVPayload{}, fmt.Errorf("pv payload from %s layout", res.Kind)
	}
	if res.Empty() {
		return PVPayload{}, fmt.Errorf("pv payload for %s: %w", res.PolygonID, ErrNoUnits)
	}

	p := PVPayload{
		Output: OutputAnnual,
		GCR:    res.GCR,
		Rows:   max(res.RowCount, 1),
		Panels: make([]Panel, len(res.Units)),
	}
	for i, u := range res.Units {
		id := u.ID
		if id == "" {
			id = UnitID(res.PolygonID, core.KindSolar, i)
		}
		p.Panels[i] = Panel{
			ID:         id,
			Lon:        u.Position.Lon,
			Lat:        u.Position.Lat,
			TiltDeg:    u.TiltDeg,
			AzimuthDeg: u.AzimuthDeg,
		}
	}
	return p, nil
}

// BuildWindPayload converts a wind layout. Hub heights are rounded to
// whole metres.
func BuildWindPayload(res core.LayoutResult) (WindPayload, error) {
	if res.Kind != core.KindWind {
		return WindPayload{}, fmt.Errorf("wind payload from %s layout", res.Kind)
	}
	if res.Empty() {
		return WindPayload{}, fmt.Errorf("wind payload for %s: %w", res.PolygonID, ErrNoUnits)
	}

	p := WindPayload{Output: OutputAnnual, Turbines: make([]Turbine, len(res.Units))}
	for i, u := range res.Units {
		id := u.ID
		if id == "" {
			id = UnitID(res.PolygonID, core.KindWind, i)
		}
		p.Turbines[i] = Turbine{
			ID:         id,
			Lon:        u.Position.Lon,
			Lat:        u.Position.Lat,
			HubHeightM: int(math.Round(u.Asset.HubHeight)),
		}
	}
	return p, nil
}
