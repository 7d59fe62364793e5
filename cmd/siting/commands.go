package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/terrasite/siting/internal/candidates"
	"github.com/terrasite/siting/internal/config"
	"github.com/terrasite/siting/internal/dispatcher"
	"github.com/terrasite/siting/internal/energy"
	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/internal/solar"
	"github.com/terrasite/siting/internal/spacing"
	"github.com/terrasite/siting/internal/util"
	"github.com/terrasite/siting/internal/wind"
	"github.com/terrasite/siting/pkg/core"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const cmdTelemetry = "telemetry"

var errSuperseded = errors.New("superseded by a newer run")

// registerCommands binds every user command to the dispatcher.
func (a *app) registerCommands() {
	d := a.dispatcher

	d.Register("version", func(ctx context.Context, e dispatcher.Event) (any, error) {
		return fmt.Sprintf("%s %s (built %s)", AppName, Version, BuildDate), nil
	})
	d.Register("help", func(ctx context.Context, e dispatcher.Event) (any, error) {
		return a.usage(), nil
	})

	d.Register("solar", a.handleSolar, dispatcher.Logged())
	d.Register("wind", a.handleWind, dispatcher.Logged())
	d.Register("candidates", a.handleCandidates, dispatcher.Logged())
	d.Register("gcr", a.handleGCR)

	d.Register("list", a.handleList, dispatcher.Logged())
	d.Register("get", a.handleGet, dispatcher.Logged())
	d.Register("shown", a.handleShown)
	d.Register("delete", a.handleDelete, dispatcher.Logged())
	d.Register("snapshot", a.handleSnapshot, dispatcher.Logged())

	d.Register("energy", a.handleEnergy, dispatcher.Logged())
	d.Register("health", a.handleHealth)
	d.Register("repl", a.handleRepl)

	if a.influx != nil {
		d.Register(cmdTelemetry, a.handleTelemetry,
			dispatcher.Buffered(config.GetDispatcherConfig().BufferSize), dispatcher.Blocking())
	}
}

func (a *app) usage() string {
	cmds := a.dispatcher.Commands()
	sort.Strings(cmds)
	var b strings.Builder
	fmt.Fprintf(&b, "usage: %s [--config dir] [--render] <command> [args]\n\ncommands:\n", AppName)
	for _, c := range cmds {
		if c == cmdTelemetry {
			continue
		}
		fmt.Fprintf(&b, "  %s\n", c)
	}
	return b.String()
}

func newFlagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

// polygonArgs parses "<id> <polygon...>". The polygon is the remaining
// arguments joined by spaces, so WKT need not be quoted.
func (a *app) polygonArgs(args []string) (core.Polygon, error) {
	if len(args) < 2 {
		return core.Polygon{}, fmt.Errorf("expected <id> <polygon>, got %d arguments", len(args))
	}
	input, err := util.ReadArg(strings.Join(args[1:], " "), a.stdin)
	if err != nil {
		return core.Polygon{}, err
	}
	return geo.ParsePolygon(util.CleanArg(args[0]), input)
}

func parseKind(s string) (core.LayoutKind, error) {
	switch k := core.LayoutKind(strings.ToLower(s)); k {
	case core.KindSolar, core.KindWind:
		return k, nil
	default:
		return "", fmt.Errorf("unknown layout kind %q", s)
	}
}

func slotArgs(args []string) (string, core.LayoutKind, error) {
	if len(args) != 2 {
		return "", "", fmt.Errorf("expected <id> <kind>, got %d arguments", len(args))
	}
	kind, err := parseKind(args[1])
	if err != nil {
		return "", "", err
	}
	return util.CleanArg(args[0]), kind, nil
}

// runLayout starts a new generation for the slot, runs layout and, if no
// newer run has begun meanwhile, publishes and stores the result.
func (a *app) runLayout(ctx context.Context, poly core.Polygon, kind core.LayoutKind, layout func(context.Context) (core.LayoutResult, error)) (core.StoredLayout, error) {
	tk := a.tracker.Begin(poly.ID, kind)
	res, err := layout(ctx)
	if err != nil {
		return core.StoredLayout{}, err
	}

	shown, err := a.tracker.Publish(ctx, tk, res)
	if err != nil {
		return core.StoredLayout{}, err
	}
	if !shown {
		a.log.InfoContext(ctx, "Discarded stale layout", "polygon", poly.ID, "kind", kind)
		return core.StoredLayout{}, fmt.Errorf("%s layout of %s: %w", kind, poly.ID, errSuperseded)
	}

	stored, err := a.store.ReplaceLayout(ctx, poly, res)
	if err != nil {
		return core.StoredLayout{}, err
	}
	if res.Kind == core.KindSolar && spacing.Overpacked(res.GCR) {
		a.log.WarnContext(ctx, "Effective GCR above 1, rows overlap", "polygon", poly.ID, "gcr", res.GCR)
	}

	if a.dispatcher.HasHandler(cmdTelemetry) {
		if _, err := a.dispatcher.Dispatch(ctx, dispatcher.Event{Command: cmdTelemetry, Payload: res}); err != nil {
			a.log.WarnContext(ctx, "Failed to queue layout telemetry", "error", err)
		}
	}
	return stored, nil
}

// solarParams builds run parameters from the solar.* configuration.
func solarParams(cfg config.SolarConfig) (solar.Params, error) {
	mode, err := solar.ParseMode(cfg.Mode)
	if err != nil {
		return solar.Params{}, err
	}
	tilt, err := spacing.ParseTiltMode(cfg.TiltMode)
	if err != nil {
		return solar.Params{}, err
	}
	src, err := solar.ParseDownslopeSource(cfg.DownslopeSource)
	if err != nil {
		return solar.Params{}, err
	}

	p := solar.DefaultParams()
	p.Mode = mode
	p.TiltMode = tilt
	p.DownslopeSource = src
	p.TrialSpacing = cfg.TrialSpacing
	p.RowSpacing = cfg.RowSpacing
	p.GCR = cfg.GCR
	p.LateralSpacing = cfg.LateralSpacing
	p.HalfExtent = cfg.HalfExtent
	p.SampleOffset = cfg.SampleOffset
	p.ProbeOffset = cfg.ProbeOffset
	return p, nil
}

func (a *app) handleSolar(ctx context.Context, e dispatcher.Event) (any, error) {
	cfg := config.GetSolarConfig()
	fs := newFlagSet("solar")
	fs.String("mode", cfg.Mode, "south or downslope")
	fs.String("tilt-mode", cfg.TiltMode, "auto, 30 or 75")
	fs.String("downslope-source", cfg.DownslopeSource, "global or local")
	fs.Float64("trial-spacing", cfg.TrialSpacing, "row pitch of the first pass in metres, and of downslope rows")
	fs.Float64("spacing", cfg.RowSpacing, "fixed row pitch in metres, skipping the coverage table")
	fs.Float64("gcr", cfg.GCR, "fixed ground coverage ratio, skipping the coverage table")
	fs.Float64("lateral-spacing", cfg.LateralSpacing, "distance between units along a row in metres")
	fs.Float64("half-extent", cfg.HalfExtent, "lattice half extent in metres, 0 sizes it from the polygon")
	perUnit := fs.Bool("per-unit-azimuth", false, "report each unit's own azimuth")
	if err := fs.Parse(e.Args); err != nil {
		return nil, err
	}
	for key, flag := range map[string]string{
		"solar.mode":            "mode",
		"solar.tiltMode":        "tilt-mode",
		"solar.downslopeSource": "downslope-source",
		"solar.trialSpacing":    "trial-spacing",
		"solar.rowSpacing":      "spacing",
		"solar.gcr":             "gcr",
		"solar.lateralSpacing":  "lateral-spacing",
		"solar.halfExtent":      "half-extent",
	} {
		if err := viper.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("binding %s: %w", flag, err)
		}
	}

	poly, err := a.polygonArgs(fs.Args())
	if err != nil {
		return nil, err
	}
	p, err := solarParams(config.GetSolarConfig())
	if err != nil {
		return nil, err
	}
	if fs.Changed("per-unit-azimuth") {
		p.PerUnitAzimuth = perUnit
	}

	return a.runLayout(ctx, poly, core.KindSolar, func(ctx context.Context) (core.LayoutResult, error) {
		return a.solar.Layout(ctx, poly, p)
	})
}

func windFlags(name string) (*pflag.FlagSet, *float64, *float64) {
	cfg := config.GetWindConfig()
	fs := newFlagSet(name)
	hub := fs.Float64("hub-height", cfg.HubHeight, "hub height in metres")
	k := fs.Float64("spacing", cfg.MinSpacingInDiameters, "minimum separation in rotor diameters")
	return fs, hub, k
}

func (a *app) handleWind(ctx context.Context, e dispatcher.Event) (any, error) {
	fs, hub, k := windFlags("wind")
	if err := fs.Parse(e.Args); err != nil {
		return nil, err
	}
	poly, err := a.polygonArgs(fs.Args())
	if err != nil {
		return nil, err
	}
	asset, err := wind.Asset(*hub)
	if err != nil {
		return nil, err
	}
	sep := energy.OptimizerRequest{RotorDiameterMeters: asset.RotorDiameter, MinSpacingInDiameters: *k}.MinSeparation()

	return a.runLayout(ctx, poly, core.KindWind, func(ctx context.Context) (core.LayoutResult, error) {
		return a.wind.LayoutSpaced(ctx, poly, *hub, sep)
	})
}

type candidateReport struct {
	PolygonID string            `json:"polygon_id"`
	Boundary  int               `json:"boundary"`
	Interior  int               `json:"interior"`
	Spacing   float64           `json:"interior_spacing_m"`
	Points    core.CandidateSet `json:"candidates"`
}

func (a *app) handleCandidates(ctx context.Context, e dispatcher.Event) (any, error) {
	fs, hub, k := windFlags("candidates")
	step := fs.Float64("boundary-step", config.GetWindConfig().BoundaryStep, "boundary densification step in metres")
	interior := fs.Float64("interior-spacing", 0, "interior hex spacing in metres, 0 uses the turbine separation")
	place := fs.Bool("place", false, "optimize the candidates and store the chosen turbines")
	if err := fs.Parse(e.Args); err != nil {
		return nil, err
	}
	poly, err := a.polygonArgs(fs.Args())
	if err != nil {
		return nil, err
	}
	asset, err := wind.Asset(*hub)
	if err != nil {
		return nil, err
	}
	req := energy.OptimizerRequest{
		HubHeightMeters:       *hub,
		RotorDiameterMeters:   asset.RotorDiameter,
		MinSpacingInDiameters: *k,
	}
	if *interior <= 0 {
		*interior = req.MinSeparation()
	}
	req.Candidates = candidates.Generate(poly, *interior, *step)

	if !*place {
		b, in := candidates.Count(req.Candidates)
		return candidateReport{
			PolygonID: poly.ID,
			Boundary:  b,
			Interior:  in,
			Spacing:   *interior,
			Points:    req.Candidates,
		}, nil
	}

	return a.runLayout(ctx, poly, core.KindWind, func(ctx context.Context) (core.LayoutResult, error) {
		chosen, err := a.optimizer.Optimize(ctx, req)
		if err != nil {
			return core.LayoutResult{}, err
		}
		a.log.DebugContext(ctx, "Optimizer chose turbines", "polygon", poly.ID, "candidates", len(req.Candidates), "chosen", len(chosen))
		return a.wind.PlaceAt(ctx, poly.ID, chosen, *hub)
	})
}

type gcrReport struct {
	core.SpacingResult
	ModuleDimension float64 `json:"module_dimension_m"`
	Overpacked      bool    `json:"overpacked"`
}

func (a *app) handleGCR(ctx context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) != 2 {
		return nil, fmt.Errorf("expected <gcr> <module dimension>, got %d arguments", len(e.Args))
	}
	gcr, err := strconv.ParseFloat(e.Args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid gcr: %w", err)
	}
	dim, err := strconv.ParseFloat(e.Args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("invalid module dimension: %w", err)
	}
	res, err := spacing.SpacingForGCR(gcr, dim)
	if err != nil {
		return nil, err
	}
	return gcrReport{SpacingResult: res, ModuleDimension: dim, Overpacked: spacing.Overpacked(res.GCR)}, nil
}

func (a *app) handleList(ctx context.Context, e dispatcher.Event) (any, error) {
	return a.store.ListLayouts(ctx)
}

func (a *app) handleGet(ctx context.Context, e dispatcher.Event) (any, error) {
	id, kind, err := slotArgs(e.Args)
	if err != nil {
		return nil, err
	}
	return a.store.GetLayout(ctx, id, kind)
}

// handleShown returns what the presentation currently holds for a slot in
// this session.
func (a *app) handleShown(ctx context.Context, e dispatcher.Event) (any, error) {
	id, kind, err := slotArgs(e.Args)
	if err != nil {
		return nil, err
	}
	res, ok := a.tracker.Layout(id, kind)
	if !ok {
		return nil, fmt.Errorf("%s layout of %s: %w", kind, id, core.ErrNotFound)
	}
	return res, nil
}

func (a *app) handleDelete(ctx context.Context, e dispatcher.Event) (any, error) {
	id, kind, err := slotArgs(e.Args)
	if err != nil {
		return nil, err
	}
	if err := a.tracker.Remove(ctx, id, kind); err != nil {
		return nil, err
	}
	if err := a.store.DeleteLayout(ctx, id, kind); err != nil {
		return nil, err
	}
	return fmt.Sprintf("deleted %s layout of %s", kind, id), nil
}

type snapshotter interface {
	Snapshot(path string) error
}

func (a *app) handleSnapshot(ctx context.Context, e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("expected <path>, got %d arguments", len(e.Args))
	}
	s, ok := a.store.(snapshotter)
	if !ok {
		return nil, fmt.Errorf("storage type %q does not support snapshots", config.GetStorageConfig().Type)
	}
	if err := s.Snapshot(e.Args[0]); err != nil {
		return nil, err
	}
	return "snapshot written to " + e.Args[0], nil
}

type energyReport struct {
	PolygonID  string             `json:"polygon_id"`
	Kind       core.LayoutKind    `json:"kind"`
	Units      int                `json:"units"`
	AnnualKWh  float64            `json:"annual_kWh"`
	AnnualMWh  float64            `json:"annual_MWh"`
	PerUnitKWh map[string]float64 `json:"per_unit_kWh,omitempty"`
}

func (a *app) handleEnergy(ctx context.Context, e dispatcher.Event) (any, error) {
	if a.energy == nil {
		return nil, errors.New("energy.enabled is false")
	}
	id, kind, err := slotArgs(e.Args)
	if err != nil {
		return nil, err
	}
	stored, err := a.store.GetLayout(ctx, id, kind)
	if err != nil {
		return nil, err
	}

	var annual energy.Annual
	if kind == core.KindSolar {
		annual, err = a.energy.ComputeSolar(ctx, stored.Result)
	} else {
		annual, err = a.energy.ComputeWind(ctx, stored.Result)
	}
	if err != nil {
		return nil, err
	}
	return energyReport{
		PolygonID:  id,
		Kind:       kind,
		Units:      len(stored.Result.Units),
		AnnualKWh:  annual.AnnualKWh,
		AnnualMWh:  annual.MWh(),
		PerUnitKWh: annual.PerUnitKWh,
	}, nil
}

func (a *app) handleHealth(ctx context.Context, e dispatcher.Event) (any, error) {
	status := map[string]string{}
	check := func(name string, err error) {
		if err != nil {
			status[name] = "offline: " + err.Error()
			return
		}
		status[name] = "online"
	}
	if a.terrain != nil {
		check("terrain", a.terrain.Healthcheck(ctx))
	} else {
		status["terrain"] = "flat plane"
	}
	if a.energy != nil {
		check("energy", a.energy.Healthcheck(ctx))
	} else {
		status["energy"] = "disabled"
	}
	return status, nil
}

func (a *app) handleTelemetry(ctx context.Context, e dispatcher.Event) (any, error) {
	res, ok := e.Payload.(core.LayoutResult)
	if !ok {
		return nil, fmt.Errorf("telemetry payload is %T", e.Payload)
	}
	return nil, a.influx.WriteLayout(res, e.Timestamp)
}

// handleRepl runs one command per stdin line until EOF. Failures are
// reported and the loop continues, so published layouts stay shown
// across commands.
func (a *app) handleRepl(ctx context.Context, e dispatcher.Event) (any, error) {
	sc := bufio.NewScanner(a.stdin)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if strings.EqualFold(fields[0], "repl") {
			fmt.Fprintln(a.stderr, "error: repl cannot be nested")
			continue
		}
		out, err := a.dispatcher.Dispatch(ctx, dispatcher.Event{Command: fields[0], Args: fields[1:]})
		if err != nil {
			fmt.Fprintln(a.stderr, "error:", err)
			continue
		}
		if err := printResult(a.stdout, out); err != nil {
			return nil, err
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}
	return nil, sc.Err()
}
