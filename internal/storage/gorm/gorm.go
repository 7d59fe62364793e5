// Package gormstorage implements the storage.Backend interface on GORM. It
// serves both the SQLite and the PostgreSQL stores.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/terrasite/siting/internal/model"
	"github.com/terrasite/siting/internal/model/convert"
	"github.com/terrasite/siting/pkg/core"
	"gorm.io/gorm"
)

// Backend stores layouts through GORM.
type Backend struct {
	db     *gorm.DB
	log    *slog.Logger
	newID  func() string
	closer func() error
}

// New wraps an open connection. closer, when set, runs on Close.
func New(db *gorm.DB, log *slog.Logger, closer func() error) *Backend {
	if log == nil {
		log = slog.Default()
	}
	return &Backend{db: db, log: log, newID: uuid.NewString, closer: closer}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.db
}

// Init runs schema migration.
func (b *Backend) Init() error {
	b.log.Info("Migrating schema", "dialect", b.db.Dialector.Name())
	if err := b.db.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.log.Info("Database setup complete")
	return nil
}

// Close releases the connection.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer()
}

// ReplaceLayout deletes any layout of the same polygon and kind with its
// units and writes res in the same transaction.
func (b *Backend) ReplaceLayout(ctx context.Context, poly core.Polygon, res core.LayoutResult) (core.StoredLayout, error) {
	if res.PolygonID == "" {
		res.PolygonID = poly.ID
	}
	id := b.newID()
	row, err := convert.CoreToLayout(id, poly, res)
	if err != nil {
		return core.StoredLayout{}, err
	}

	err = b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := deleteLayouts(tx, res.PolygonID, string(res.Kind)); err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if err != nil {
		return core.StoredLayout{}, fmt.Errorf("replacing %s layout of %s: %w", res.Kind, res.PolygonID, err)
	}

	b.log.Debug("Stored layout", "id", id, "polygon", res.PolygonID, "kind", res.Kind, "units", len(res.Units))
	return core.StoredLayout{ID: id, CreatedAt: row.CreatedAt, Polygon: poly, Result: res}, nil
}

// GetLayout loads a layout with its units in placement order.
func (b *Backend) GetLayout(ctx context.Context, polygonID string, kind core.LayoutKind) (core.StoredLayout, error) {
	var row model.Layout
	err := b.db.WithContext(ctx).
		Preload("Units", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Where("polygon_id = ? AND kind = ?", polygonID, string(kind)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return core.StoredLayout{}, fmt.Errorf("%s layout of %s: %w", kind, polygonID, core.ErrNotFound)
	}
	if err != nil {
		return core.StoredLayout{}, fmt.Errorf("loading %s layout of %s: %w", kind, polygonID, err)
	}

	poly, res, err := convert.LayoutToCore(row)
	if err != nil {
		return core.StoredLayout{}, err
	}
	return core.StoredLayout{ID: row.ID, CreatedAt: row.CreatedAt, Polygon: poly, Result: res}, nil
}

// ListLayouts returns every stored layout without units, ordered by
// polygon then kind.
func (b *Backend) ListLayouts(ctx context.Context) ([]core.LayoutSummary, error) {
	var rows []model.Layout
	if err := b.db.WithContext(ctx).Order("polygon_id, kind").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing layouts: %w", err)
	}
	out := make([]core.LayoutSummary, len(rows))
	for i, r := range rows {
		out[i] = core.LayoutSummary{
			ID:             r.ID,
			CreatedAt:      r.CreatedAt,
			PolygonID:      r.PolygonID,
			Kind:           core.LayoutKind(r.Kind),
			Mode:           r.Mode,
			Units:          r.UnitCount,
			GCR:            r.GCR,
			Classification: core.RowClassification(r.Classification),
		}
	}
	return out, nil
}

// DeleteLayout removes a layout and its units.
func (b *Backend) DeleteLayout(ctx context.Context, polygonID string, kind core.LayoutKind) error {
	var n int
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		n, err = deleteLayouts(tx, polygonID, string(kind))
		return err
	})
	if err != nil {
		return fmt.Errorf("deleting %s layout of %s: %w", kind, polygonID, err)
	}
	if n == 0 {
		return fmt.Errorf("%s layout of %s: %w", kind, polygonID, core.ErrNotFound)
	}
	return nil
}

func deleteLayouts(tx *gorm.DB, polygonID, kind string) (int, error) {
	var ids []string
	if err := tx.Model(&model.Layout{}).
		Where("polygon_id = ? AND kind = ?", polygonID, kind).
		Pluck("id", &ids).Error; err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := tx.Where("layout_id IN ?", ids).Delete(&model.Unit{}).Error; err != nil {
		return 0, err
	}
	if err := tx.Where("id IN ?", ids).Delete(&model.Layout{}).Error; err != nil {
		return 0, err
	}
	return len(ids), nil
}
