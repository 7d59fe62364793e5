package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/terrasite/siting/internal/cache"
	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/internal/dispatcher"
	"github.com/terrasite/siting/internal/energy"
	"github.com/terrasite/siting/internal/influx"
	"github.com/terrasite/siting/internal/logging"
	intOtel "github.com/terrasite/siting/internal/otel"
	"github.com/terrasite/siting/internal/solar"
	"github.com/terrasite/siting/internal/spacing"
	"github.com/terrasite/siting/internal/storage"
	"github.com/terrasite/siting/internal/terrain"
	"github.com/terrasite/siting/internal/tracker"
	"github.com/terrasite/siting/internal/wind"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

type options struct {
	configDir string
	logLevel  string
	// render receives presentation updates; nil discards them
	render io.Writer
	stdout io.Writer
	stderr io.Writer
	stdin  io.Reader
}

// app holds every service a command may need. It is built once per
// process and torn down by Close in reverse order.
type app struct {
	sessionID    string
	sessionStart time.Time

	slog    *logging.SlogManager
	log     *slog.Logger
	logFile *os.File
	audit   *os.File
	otel    *intOtel.Provider

	store     storage.Backend
	sampler   terrain.Sampler
	terrain   *terrain.Client
	elevCache *cache.ElevationCache
	solar     *solar.Engine
	wind      *wind.Engine
	optimizer energy.Optimizer
	energy    *energy.Client
	influx    *influx.Manager

	tracker       *tracker.Tracker
	presenter     *tracker.Presenter
	presenterDone chan struct{}
	cancel        context.CancelFunc

	dispatcher *dispatcher.Dispatcher
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer

	closeOnce sync.Once
}

func newApp(ctx context.Context, opts options) (*app, error) {
	a := &app{
		sessionID:    uuid.NewString(),
		sessionStart: time.Now(),
		stdin:        opts.stdin,
		stdout:       opts.stdout,
		stderr:       opts.stderr,
	}
	if a.stdin == nil {
		a.stdin = os.Stdin
	}
	if a.stdout == nil {
		a.stdout = os.Stdout
	}
	if a.stderr == nil {
		a.stderr = os.Stderr
	}

	a.slog = logging.NewSlogManager()
	a.slog.Context = func() []slog.Attr {
		return []slog.Attr{slog.String("session", a.sessionID)}
	}
	a.slog.Setup(a.stderr, levelOr(opts.logLevel, "info"), nil)
	a.log = a.slog.Logger()

	if err := config.Load(opts.configDir); err != nil {
		a.log.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		a.log.Info("Loaded config", "dir", opts.configDir)
	}
	level := levelOr(opts.logLevel, config.GetString("logLevel"))

	// logs dir may be missing on first run
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		a.log.Warn("Failed to create logs directory", "error", err, "path", logsDir)
	}
	logPath := logging.LogFilePath(logsDir, AppName, a.sessionStart)
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		a.log.Error("Failed to create/open log file!", "error", err, "path", logPath)
	} else {
		a.logFile = f
		a.log.Info("Begin logging in logs directory", "path", logPath)
	}

	a.setupOTel()
	a.resetupLogging(level, a.stderr)

	if err := a.setupServices(ctx, level, opts.render); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func levelOr(level, fallback string) string {
	if level != "" {
		return level
	}
	return fallback
}

func (a *app) setupOTel() {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return
	}
	cfg := intOtel.Config{
		Enabled:        otelCfg.Enabled,
		ServiceName:    otelCfg.ServiceName,
		BatchTimeout:   otelCfg.BatchTimeout,
		Endpoint:       otelCfg.Endpoint,
		Insecure:       otelCfg.Insecure,
		MetricInterval: otelCfg.MetricInterval,
		SampleRatio:    otelCfg.SampleRatio,
	}
	if a.logFile != nil {
		cfg.LogWriter = a.logFile
		if otelCfg.Metrics {
			cfg.MetricWriter = a.logFile
		}
		if otelCfg.Traces {
			cfg.TraceWriter = a.logFile
		}
	}
	p, err := intOtel.New(cfg)
	if err != nil {
		a.log.Error("Failed to initialize OTel provider", "error", err)
		return
	}
	a.otel = p
	if otelCfg.Endpoint != "" {
		a.log.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
	} else {
		a.log.Info("OTel provider initialized")
	}
}

// resetupLogging switches to the log file, the OTel bridge and Graylog
// once configuration is known.
func (a *app) resetupLogging(level string, fallback io.Writer) {
	var provider *sdklog.LoggerProvider
	if a.otel != nil {
		provider = a.otel.LoggerProvider()
	}

	var extra []slog.Handler
	gl := config.GetGraylogConfig()
	if gl.Enabled {
		w, err := logging.NewGraylogWriter(gl.Address)
		if err != nil {
			a.log.Error("Failed to connect to Graylog", "error", err, "address", gl.Address)
		} else {
			extra = append(extra, logging.NewGELFHandler(w, logging.ParseLevel(level), gl.Facility))
		}
	}

	var out io.Writer = fallback
	if a.logFile != nil {
		out = a.logFile
	}
	a.slog.Setup(out, level, provider, extra...)
	a.log = a.slog.Logger()
}

func (a *app) setupServices(ctx context.Context, level string, render io.Writer) error {
	var err error

	storageCfg := config.GetStorageConfig()
	a.store, err = storage.NewBackend(storageCfg, a.log.With("component", "storage"))
	if err != nil {
		return fmt.Errorf("failed to create storage backend: %w", err)
	}
	if err := a.store.Init(); err != nil {
		return fmt.Errorf("failed to initialize storage backend: %w", err)
	}
	a.log.Info("Storage backend initialized", "type", storageCfg.Type)

	a.sampler = a.newSampler()

	solarCfg := config.GetSolarConfig()
	a.solar, err = solar.New(a.sampler, spacing.New(solarCfg.HighElevation), a.log.With("component", "solar"))
	if err != nil {
		return fmt.Errorf("failed to create solar engine: %w", err)
	}
	a.wind, err = wind.New(a.sampler, a.log.With("component", "wind"))
	if err != nil {
		return fmt.Errorf("failed to create wind engine: %w", err)
	}

	energyCfg := config.GetEnergyConfig()
	if energyCfg.OptimizerURL != "" {
		a.optimizer = energy.NewRemoteOptimizer(energyCfg.OptimizerURL, energyCfg.Timeout)
		a.log.Info("Using remote optimizer", "url", energyCfg.OptimizerURL)
	} else {
		a.optimizer = energy.Greedy{}
	}
	if energyCfg.Enabled {
		a.energy = energy.NewClient(energyCfg.URL, energyCfg.Timeout)
	}

	a.tracker, err = tracker.New(config.GetDispatcherConfig().BufferSize, a.log.With("component", "tracker"))
	if err != nil {
		return fmt.Errorf("failed to create tracker: %w", err)
	}
	if render == nil {
		render = io.Discard
	}
	a.presenter = tracker.NewPresenter(tracker.TextRenderer{W: render}, a.log.With("component", "presenter"))
	presenterCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.presenterDone = make(chan struct{})
	go func() {
		defer close(a.presenterDone)
		_ = a.presenter.Run(presenterCtx, a.tracker.Updates())
	}()

	a.setupInflux(ctx)

	if err := a.setupDispatcher(level); err != nil {
		return err
	}
	return nil
}

func (a *app) newSampler() terrain.Sampler {
	tc := config.GetTerrainConfig()
	var s terrain.Sampler
	if tc.URL == "" {
		a.log.Warn("No terrain service configured, sampling a flat plane")
		s = terrain.Plane{}
	} else {
		a.terrain = terrain.NewClient(tc.URL, tc.Path, tc.Timeout)
		s = a.terrain
		a.log.Info("Using terrain service", "url", tc.URL)
	}
	if tc.Cache {
		a.elevCache = cache.NewElevationCache(s)
		return a.elevCache
	}
	return s
}

func (a *app) setupInflux(ctx context.Context) {
	cfg := config.GetInfluxConfig()
	if !cfg.Enabled {
		return
	}
	zl := zerolog.Nop()
	if a.logFile != nil {
		zl = zerolog.New(a.logFile).With().Timestamp().Str("component", "influx").Logger()
	}
	backup := filepath.Join(config.GetString("logsDir"),
		fmt.Sprintf("%s_influx_%s.lp.gz", AppName, a.sessionStart.Format("20060102_150405")))
	m := influx.NewManager(cfg, zl, backup)
	if err := m.Connect(ctx); err != nil {
		a.log.Error("Failed to set up InfluxDB", "error", err)
		return
	}
	a.influx = m
}

func (a *app) setupDispatcher(level string) error {
	var logger dispatcher.Logger = logging.NewDispatcherLogger(a.log)
	if path := config.GetDispatcherConfig().AuditLog; path != "" {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			a.log.Error("Failed to open audit log", "error", err, "path", path)
		} else {
			a.audit = f
			logger = dispatcher.Tee(logger, logging.NewAuditLogger(f, level))
		}
	}

	d, err := dispatcher.New(logger)
	if err != nil {
		return fmt.Errorf("failed to create dispatcher: %w", err)
	}
	a.dispatcher = d
	a.registerCommands()
	a.log.Info("Dispatcher initialized", "commands", len(d.Commands()))
	return nil
}

// Close drains queued work, then releases services in reverse order of
// construction.
func (a *app) Close() error {
	var errs []error
	a.closeOnce.Do(func() {
		if a.dispatcher != nil {
			a.dispatcher.Close()
		}
		if a.tracker != nil {
			a.tracker.Close()
			<-a.presenterDone
			a.cancel()
		}
		if a.influx != nil {
			errs = append(errs, a.influx.Close())
		}
		if a.store != nil {
			errs = append(errs, a.store.Close())
			if ex, ok := a.store.(storage.Exportable); ok {
				for _, f := range ex.ExportedFiles() {
					a.log.Info("Exported layout", "path", f)
				}
			}
		}
		if a.elevCache != nil {
			hits, misses := a.elevCache.Stats()
			a.log.Debug("Elevation cache", "hits", hits, "misses", misses, "entries", a.elevCache.Len())
		}
		if a.otel != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			errs = append(errs, a.otel.Shutdown(ctx))
			cancel()
		}
		if a.audit != nil {
			errs = append(errs, a.audit.Close())
		}
		if a.logFile != nil {
			errs = append(errs, a.logFile.Close())
		}
	})
	return errors.Join(errs...)
}
