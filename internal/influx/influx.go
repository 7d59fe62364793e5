// Package influx writes layout telemetry to InfluxDB. When the server is
// unreachable points go to a gzipped line-protocol backup file instead.
package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/pkg/core"
)

const (
	MeasurementLayout = "layout"
	MeasurementUnit   = "unit"
)

// Manager handles InfluxDB connections and writes.
type Manager struct {
	cfg        config.InfluxConfig
	backupPath string
	log        zerolog.Logger

	mu         sync.Mutex
	client     influxdb2.Client
	writer     influxdb2_api.WriteAPI
	backupFile *os.File
	backup     *gzip.Writer
	valid      bool
}

// NewManager creates a new InfluxDB manager.
func NewManager(cfg config.InfluxConfig, log zerolog.Logger, backupPath string) *Manager {
	return &Manager{cfg: cfg, log: log, backupPath: backupPath}
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer a ping.
func (m *Manager) Connect(ctx context.Context) error {
	if !m.cfg.Enabled {
		return errors.New("influx.enabled is false")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	running, err := m.client.Ping(ctx)
	if err != nil || !running {
		m.valid = false
		if m.backup == nil {
			if m.backupPath == "" {
				return fmt.Errorf("influxdb unreachable at %s and no backup path set", m.cfg.URL())
			}
			m.log.Info().Str("backupPath", m.backupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")
			if err := m.openBackup(); err != nil {
				return err
			}
		}
		m.log.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	if err := m.setupOrganizationAndBucket(ctx); err != nil {
		return err
	}
	m.createWriter()
	m.valid = true
	m.log.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

// UseBackup skips the server and writes every point to the backup file.
func (m *Manager) UseBackup() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.valid = false
	if m.backup != nil {
		return nil
	}
	return m.openBackup()
}

func (m *Manager) openBackup() error {
	file, err := os.OpenFile(m.backupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.backup = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBucket(ctx context.Context) error {
	orgs := m.client.OrganizationsAPI()

	org, err := orgs.FindOrganizationByName(ctx, m.cfg.Org)
	if err != nil {
		m.log.Info().Str("org", m.cfg.Org).Msg("Organization not found, creating")
		org, err = orgs.CreateOrganizationWithName(ctx, m.cfg.Org)
		if err != nil {
			m.log.Error().Err(err).Str("org", m.cfg.Org).Msg("Error creating organization")
			return err
		}
	}

	if _, err := m.client.BucketsAPI().FindBucketByName(ctx, m.cfg.Bucket); err != nil {
		m.log.Info().Str("bucket", m.cfg.Bucket).Msg("Bucket not found, creating")

		// layouts are kept for a year
		rule := domain.RetentionRuleTypeExpire
		_, err = m.client.BucketsAPI().CreateBucketWithName(ctx, org, m.cfg.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 365,
		})
		if err != nil {
			m.log.Error().Err(err).Str("bucket", m.cfg.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.writer = m.client.WriteAPI(m.cfg.Org, m.cfg.Bucket)

	go func(errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.log.Error().Err(writeErr).Str("bucket", m.cfg.Bucket).
				Msg("Error sending data to InfluxDB")
		}
	}(m.writer.Errors())

	m.log.Debug().Str("bucket", m.cfg.Bucket).Msg("InfluxDB writer created")
}

// WritePoint writes a point to InfluxDB or the backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.valid {
		m.writer.WritePoint(point)
		return nil
	}
	if m.backup == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}

	lineProtocol := strings.TrimRight(influxdb2_write.PointToLineProtocol(point, time.Nanosecond), "\n")
	if _, err := m.backup.Write([]byte(lineProtocol + "\n")); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteLayout writes the layout summary and one point per unit.
func (m *Manager) WriteLayout(res core.LayoutResult, ts time.Time) error {
	if err := m.WritePoint(LayoutPoint(res, ts)); err != nil {
		return err
	}
	for _, p := range UnitPoints(res, ts) {
		if err := m.WritePoint(p); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes pending points and releases the client and backup file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.writer != nil {
		m.writer.Flush()
	}
	if m.client != nil {
		m.client.Close()
	}
	var errs []error
	if m.backup != nil {
		errs = append(errs, m.backup.Close())
		errs = append(errs, m.backupFile.Close())
		m.backup, m.backupFile = nil, nil
	}
	return errors.Join(errs...)
}

// LayoutPoint summarizes a layout run.
func LayoutPoint(res core.LayoutResult, ts time.Time) *influxdb2_write.Point {
	p := influxdb2_write.NewPointWithMeasurement(MeasurementLayout).
		AddTag("polygon", res.PolygonID).
		AddTag("kind", string(res.Kind)).
		AddTag("mode", res.Mode).
		AddTag("rows", res.Classification.String()).
		AddField("units", len(res.Units)).
		AddField("row_count", res.RowCount).
		AddField("effective_spacing_m", res.EffectiveSpacing).
		AddField("mean_slope_deg", res.MeanFrame.SlopeDeg).
		AddField("mean_aspect_deg", res.MeanFrame.AspectDeg).
		SetTime(ts)
	if res.Kind == core.KindSolar {
		p.AddField("gcr", res.GCR)
	}
	return p
}

// UnitPoints returns one point per placed unit.
func UnitPoints(res core.LayoutResult, ts time.Time) []*influxdb2_write.Point {
	out := make([]*influxdb2_write.Point, len(res.Units))
	for i, u := range res.Units {
		out[i] = influxdb2_write.NewPointWithMeasurement(MeasurementUnit).
			AddTag("polygon", res.PolygonID).
			AddTag("kind", string(res.Kind)).
			AddTag("unit", u.ID).
			AddTag("asset", u.Asset.Name).
			AddTag("row", strconv.Itoa(u.Row)).
			AddField("lon", u.Position.Lon).
			AddField("lat", u.Position.Lat).
			AddField("elevation", u.Position.Elevation).
			AddField("azimuth_deg", u.AzimuthDeg).
			AddField("tilt_deg", u.TiltDeg).
			SetTime(ts)
	}
	return out
}
