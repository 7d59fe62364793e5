package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/pkg/core"
)

// LayoutExport is the JSON document written per stored layout.
type LayoutExport struct {
	ID           string            `json:"id"`
	CreatedAt    string            `json:"createdAt"`
	PolygonID    string            `json:"polygonId"`
	Kind         core.LayoutKind   `json:"kind"`
	Mode         string            `json:"mode"`
	Boundary     string            `json:"boundary"`
	Summary      core.LayoutResult `json:"layout"`
	UnitsGeoJSON json.RawMessage   `json:"unitsGeoJson"`
}

var unsafeName = strings.NewReplacer(" ", "_", ":", "_", "/", "_", "\\", "_")

// exportJSON writes one file per layout. Callers hold b.mu.
func (b *Backend) exportJSON() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	keys := make([]key, 0, len(b.layouts))
	for k := range b.layouts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].polygonID != keys[j].polygonID {
			return keys[i].polygonID < keys[j].polygonID
		}
		return keys[i].kind < keys[j].kind
	})

	b.exported = b.exported[:0]
	for _, k := range keys {
		l := b.layouts[k]
		export, err := buildExport(l)
		if err != nil {
			return err
		}

		path := filepath.Join(b.cfg.OutputDir, b.filename(l))
		if b.cfg.CompressOutput {
			err = writeGzipJSON(path, export)
		} else {
			err = writeJSON(path, export)
		}
		if err != nil {
			return err
		}
		b.exported = append(b.exported, path)
	}

	b.log.Info("Exported layouts", "dir", b.cfg.OutputDir, "count", len(b.exported))
	return nil
}

func (b *Backend) filename(l core.StoredLayout) string {
	name := fmt.Sprintf("%s_%s_%s", unsafeName.Replace(l.Result.PolygonID), l.Result.Kind,
		l.CreatedAt.Format("20060102_150405"))
	if b.cfg.CompressOutput {
		return name + ".json.gz"
	}
	return name + ".json"
}

func buildExport(l core.StoredLayout) (LayoutExport, error) {
	units, err := geo.UnitsGeoJSON(l.Result.Units)
	if err != nil {
		return LayoutExport{}, fmt.Errorf("encoding units of %s: %w", l.Result.PolygonID, err)
	}
	return LayoutExport{
		ID:           l.ID,
		CreatedAt:    l.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		PolygonID:    l.Result.PolygonID,
		Kind:         l.Result.Kind,
		Mode:         l.Result.Mode,
		Boundary:     geo.PolygonWKT(l.Polygon),
		Summary:      l.Result,
		UnitsGeoJSON: units,
	}, nil
}

func writeJSON(path string, data LayoutExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data LayoutExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	defer gzWriter.Close()

	encoder := json.NewEncoder(gzWriter)
	return encoder.Encode(data)
}
