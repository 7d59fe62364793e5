package convert

import (
	"encoding/json"
	"fmt"

	"github.com/terrasite/siting/internal/model"
	"github.com/terrasite/siting/pkg/core"
)

// LayoutToCore converts stored rows back into the polygon and layout
// result they were written from. Units are returned in l.Units order;
// callers load them sorted by Seq.
func LayoutToCore(l model.Layout) (core.Polygon, core.LayoutResult, error) {
	poly := core.Polygon{ID: l.PolygonID}
	if len(l.Vertices) > 0 {
		if err := json.Unmarshal(l.Vertices, &poly.Vertices); err != nil {
			return core.Polygon{}, core.LayoutResult{}, fmt.Errorf("decoding vertices: %w", err)
		}
	}

	res := core.LayoutResult{
		PolygonID:        l.PolygonID,
		Kind:             core.LayoutKind(l.Kind),
		Mode:             l.Mode,
		EffectiveSpacing: l.EffectiveSpacing,
		GCR:              l.GCR,
		RowCount:         l.RowCount,
		Classification:   core.RowClassification(l.Classification),
		MeanFrame:        core.Flat,
	}
	if len(l.MeanFrame) > 0 {
		if err := json.Unmarshal(l.MeanFrame, &res.MeanFrame); err != nil {
			return core.Polygon{}, core.LayoutResult{}, fmt.Errorf("decoding mean frame: %w", err)
		}
	}

	res.Units = make([]core.PlacedUnit, len(l.Units))
	for i, u := range l.Units {
		pu, err := UnitToCore(u)
		if err != nil {
			return core.Polygon{}, core.LayoutResult{}, err
		}
		res.Units[i] = pu
	}
	return poly, res, nil
}

// UnitToCore converts a stored unit. The Web Mercator copy is dropped.
func UnitToCore(u model.Unit) (core.PlacedUnit, error) {
	pu := core.PlacedUnit{
		ID:         u.UnitID,
		Position:   core.GeodeticPoint{Lon: u.Lon, Lat: u.Lat, Elevation: u.Elevation},
		AzimuthDeg: u.AzimuthDeg,
		TiltDeg:    u.TiltDeg,
		Row:        u.Row,
		Asset:      core.AssetClass{Name: u.AssetName},
	}
	if len(u.Orientation) > 0 {
		if err := json.Unmarshal(u.Orientation, &pu.Orientation); err != nil {
			return core.PlacedUnit{}, fmt.Errorf("decoding orientation of %s: %w", u.UnitID, err)
		}
	}
	if len(u.Asset) > 0 {
		if err := json.Unmarshal(u.Asset, &pu.Asset); err != nil {
			return core.PlacedUnit{}, fmt.Errorf("decoding asset of %s: %w", u.UnitID, err)
		}
	}
	return pu, nil
}
