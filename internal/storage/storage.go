// Package storage defines the layout store and picks a backend from
// configuration.
package storage

import (
	"context"

	"github.com/terrasite/siting/pkg/core"
)

// Backend is the interface all storage implementations must satisfy.
// A polygon holds at most one layout per kind: ReplaceLayout swaps the
// whole unit set in one step, it never merges.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	ReplaceLayout(ctx context.Context, poly core.Polygon, res core.LayoutResult) (core.StoredLayout, error)
	GetLayout(ctx context.Context, polygonID string, kind core.LayoutKind) (core.StoredLayout, error)
	ListLayouts(ctx context.Context) ([]core.LayoutSummary, error)
	// DeleteLayout returns core.ErrNotFound when nothing was stored.
	DeleteLayout(ctx context.Context, polygonID string, kind core.LayoutKind) error
}

// Exportable is an optional interface for backends that write files on
// Close.
type Exportable interface {
	ExportedFiles() []string
}
