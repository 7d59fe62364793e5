package core

import "time"

// StoredLayout is a layout as kept by a storage backend.
type StoredLayout struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Polygon   Polygon      `json:"polygon"`
	Result    LayoutResult `json:"result"`
}

// LayoutSummary is the listing view of a stored layout without its units.
type LayoutSummary struct {
	ID             string            `json:"id"`
	CreatedAt      time.Time         `json:"created_at"`
	PolygonID      string            `json:"polygon_id"`
	Kind           LayoutKind        `json:"kind"`
	Mode           string            `json:"mode"`
	Units          int               `json:"units"`
	GCR            float64           `json:"gcr"`
	Classification RowClassification `json:"rows"`
}
