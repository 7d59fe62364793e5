// Package model holds the GORM models of stored layouts.
package model

import (
	"time"

	"gorm.io/datatypes"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []interface{}{
	&Layout{},
	&Unit{},
}

// Layout is one stored layout run. A polygon holds at most one layout of
// each kind; re-running replaces it.
type Layout struct {
	ID               string         `json:"id" gorm:"primaryKey;size:36"`
	CreatedAt        time.Time      `json:"createdAt"`
	PolygonID        string         `json:"polygonId" gorm:"size:127;uniqueIndex:idx_layout_polygon_kind"`
	Kind             string         `json:"kind" gorm:"size:16;uniqueIndex:idx_layout_polygon_kind"`
	Mode             string         `json:"mode" gorm:"size:32"`
	BoundaryWKT      string         `json:"boundaryWkt"`
	Vertices         datatypes.JSON `json:"vertices"`
	EffectiveSpacing float64        `json:"effectiveSpacing"`
	GCR              float64        `json:"gcr"`
	RowCount         int            `json:"rowCount"`
	Classification   int            `json:"classification"`
	MeanFrame        datatypes.JSON `json:"meanFrame"`
	UnitCount        int            `json:"unitCount"`
	Units            []Unit         `json:"units" gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignKey:LayoutID"`
}

func (*Layout) TableName() string {
	return "layouts"
}

// Unit is one placed panel row segment or turbine. X3857 and Y3857 hold
// the Web Mercator position for map clients.
type Unit struct {
	ID          uint           `json:"-" gorm:"primarykey;autoIncrement"`
	LayoutID    string         `json:"layoutId" gorm:"size:36;index:idx_unit_layout_id"`
	Seq         int            `json:"seq"`
	UnitID      string         `json:"unitId" gorm:"size:160"`
	Lon         float64        `json:"lon"`
	Lat         float64        `json:"lat"`
	Elevation   float64        `json:"elevation"`
	X3857       float64        `json:"x3857"`
	Y3857       float64        `json:"y3857"`
	AzimuthDeg  float64        `json:"azimuthDeg"`
	TiltDeg     float64        `json:"tiltDeg"`
	Row         int            `json:"row"`
	AssetName   string         `json:"assetName" gorm:"size:32"`
	Asset       datatypes.JSON `json:"asset"`
	Orientation datatypes.JSON `json:"orientation"`
}

func (*Unit) TableName() string {
	return "units"
}
