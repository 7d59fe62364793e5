// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/internal/model"
	"github.com/terrasite/siting/pkg/core"
	"gorm.io/datatypes"
)

// toJSON marshals v for a JSON column. nil slices are stored as [].
func toJSON(v any) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if string(data) == "null" {
		return datatypes.JSON("[]"), nil
	}
	return datatypes.JSON(data), nil
}

// CoreToLayout converts a layout result and the polygon it was computed
// for into GORM rows. layoutID becomes the primary key of the layout and
// the foreign key of every unit.
func CoreToLayout(layoutID string, poly core.Polygon, res core.LayoutResult) (model.Layout, error) {
	vertices, err := toJSON(poly.Vertices)
	if err != nil {
		return model.Layout{}, fmt.Errorf("encoding vertices: %w", err)
	}
	frame, err := toJSON(res.MeanFrame)
	if err != nil {
		return model.Layout{}, fmt.Errorf("encoding mean frame: %w", err)
	}

	units := make([]model.Unit, len(res.Units))
	for i, u := range res.Units {
		units[i], err = CoreToUnit(layoutID, i, u)
		if err != nil {
			return model.Layout{}, err
		}
	}

	return model.Layout{
		ID:               layoutID,
		PolygonID:        res.PolygonID,
		Kind:             string(res.Kind),
		Mode:             res.Mode,
		BoundaryWKT:      geo.PolygonWKT(poly),
		Vertices:         vertices,
		EffectiveSpacing: res.EffectiveSpacing,
		GCR:              res.GCR,
		RowCount:         res.RowCount,
		Classification:   int(res.Classification),
		MeanFrame:        frame,
		UnitCount:        len(units),
		Units:            units,
	}, nil
}

// CoreToUnit converts one placed unit. seq keeps the unit's position in
// the layout so reads return units in placement order.
func CoreToUnit(layoutID string, seq int, u core.PlacedUnit) (model.Unit, error) {
	orientation, err := toJSON(u.Orientation)
	if err != nil {
		return model.Unit{}, fmt.Errorf("encoding orientation of %s: %w", u.ID, err)
	}
	asset, err := toJSON(u.Asset)
	if err != nil {
		return model.Unit{}, fmt.Errorf("encoding asset of %s: %w", u.ID, err)
	}
	x, y := geo.To3857(u.Position)

	return model.Unit{
		LayoutID:    layoutID,
		Seq:         seq,
		UnitID:      u.ID,
		Lon:         u.Position.Lon,
		Lat:         u.Position.Lat,
		Elevation:   u.Position.Elevation,
		X3857:       x,
		Y3857:       y,
		AzimuthDeg:  u.AzimuthDeg,
		TiltDeg:     u.TiltDeg,
		Row:         u.Row,
		AssetName:   u.Asset.Name,
		Asset:       asset,
		Orientation: orientation,
	}, nil
}
