// Package memory keeps layouts in memory and exports them to JSON files
// when the backend is closed.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/pkg/core"
)

type key struct {
	polygonID string
	kind      core.LayoutKind
}

// Backend stores layouts in memory and exports to JSON
type Backend struct {
	cfg config.MemoryConfig
	log *slog.Logger

	layouts  map[key]core.StoredLayout
	exported []string
	now      func() time.Time
	mu       sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig, log *slog.Logger) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{
		cfg:     cfg,
		log:     log,
		layouts: make(map[key]core.StoredLayout),
		now:     time.Now,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close exports every layout when an output directory is configured.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cfg.OutputDir == "" {
		return nil
	}
	return b.exportJSON()
}

// ReplaceLayout stores res, dropping any earlier layout of the same
// polygon and kind.
func (b *Backend) ReplaceLayout(ctx context.Context, poly core.Polygon, res core.LayoutResult) (core.StoredLayout, error) {
	if err := ctx.Err(); err != nil {
		return core.StoredLayout{}, err
	}
	if res.PolygonID == "" {
		res.PolygonID = poly.ID
	}

	stored := core.StoredLayout{
		ID:        uuid.NewString(),
		CreatedAt: b.now(),
		Polygon:   clonePolygon(poly),
		Result:    cloneResult(res),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.layouts[key{res.PolygonID, res.Kind}] = stored
	return stored, nil
}

// GetLayout returns a copy of the stored layout.
func (b *Backend) GetLayout(ctx context.Context, polygonID string, kind core.LayoutKind) (core.StoredLayout, error) {
	if err := ctx.Err(); err != nil {
		return core.StoredLayout{}, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	l, ok := b.layouts[key{polygonID, kind}]
	if !ok {
		return core.StoredLayout{}, fmt.Errorf("%s layout of %s: %w", kind, polygonID, core.ErrNotFound)
	}
	l.Polygon = clonePolygon(l.Polygon)
	l.Result = cloneResult(l.Result)
	return l, nil
}

// ListLayouts returns summaries ordered by polygon then kind.
func (b *Backend) ListLayouts(ctx context.Context) ([]core.LayoutSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]core.LayoutSummary, 0, len(b.layouts))
	for _, l := range b.layouts {
		out = append(out, summarize(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PolygonID != out[j].PolygonID {
			return out[i].PolygonID < out[j].PolygonID
		}
		return out[i].Kind < out[j].Kind
	})
	return out, nil
}

// DeleteLayout removes a stored layout.
func (b *Backend) DeleteLayout(ctx context.Context, polygonID string, kind core.LayoutKind) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	k := key{polygonID, kind}
	if _, ok := b.layouts[k]; !ok {
		return fmt.Errorf("%s layout of %s: %w", kind, polygonID, core.ErrNotFound)
	}
	delete(b.layouts, k)
	return nil
}

// ExportedFiles returns the paths written by the last Close.
func (b *Backend) ExportedFiles() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.exported...)
}

func summarize(l core.StoredLayout) core.LayoutSummary {
	return core.LayoutSummary{
		ID:             l.ID,
		CreatedAt:      l.CreatedAt,
		PolygonID:      l.Result.PolygonID,
		Kind:           l.Result.Kind,
		Mode:           l.Result.Mode,
		Units:          len(l.Result.Units),
		GCR:            l.Result.GCR,
		Classification: l.Result.Classification,
	}
}

func clonePolygon(p core.Polygon) core.Polygon {
	p.Vertices = append([]core.GeodeticPoint(nil), p.Vertices...)
	return p
}

func cloneResult(r core.LayoutResult) core.LayoutResult {
	r.Units = append([]core.PlacedUnit(nil), r.Units...)
	return r
}
