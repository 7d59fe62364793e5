package energy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/terrasite/siting/internal/candidates"
	"github.com/terrasite/siting/pkg/core"
)

func solar() core.LayoutResult {
	return core.LayoutResult{
		PolygonID: "f1",
		Kind:      core.KindSolar,
		GCR:       0.42,
		RowCount:  0,
		Units: []core.PlacedUnit{
			{ID: "f1_p0", Position: core.GeodeticPoint{Lon: 10, Lat: 45}, TiltDeg: 30, AzimuthDeg: 180},
			{Position: core.GeodeticPoint{Lon: 10.001, Lat: 45}, TiltDeg: 30, AzimuthDeg: 172.5},
		},
	}
}

func wind() core.LayoutResult {
	return core.LayoutResult{
		PolygonID: "w",
		Kind:      core.KindWind,
		Units: []core.PlacedUnit{
			{ID: "w_t0", Position: core.GeodeticPoint{Lon: 8, Lat: 50}, Asset: core.AssetClass{HubHeight: 124.6}},
			{ID: "w_t1", Position: core.GeodeticPoint{Lon: 8.01, Lat: 50}, Asset: core.AssetClass{HubHeight: 125}},
		},
	}
}

func TestBuildPVPayload(t *testing.T) {
	p, err := BuildPVPayload(solar())
	require.NoError(t, err)

	assert.Equal(t, "annual", p.Output)
	assert.Equal(t, 0.42, p.GCR)
	assert.Equal(t, 1, p.Rows, "rows are at least one")
	require.Len(t, p.Panels, 2)
	assert.Equal(t, "f1_p0", p.Panels[0].ID)
	assert.Equal(t, "f1_p1", p.Panels[1].ID, "missing ids are generated")
	assert.Equal(t, 172.5, p.Panels[1].AzimuthDeg)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"annual","gcr":0.42,"rows":1,"panels":[
		{"id":"f1_p0","lon":10,"lat":45,"tilt_deg":30,"azimuth_deg":180},
		{"id":"f1_p1","lon":10.001,"lat":45,"tilt_deg":30,"azimuth_deg":172.5}]}`, string(b))
}

func TestBuildPVPayload_Errors(t *testing.T) {
	_, err := BuildPVPayload(core.LayoutResult{Kind: core.KindSolar, PolygonID: "x"})
	assert.ErrorIs(t, err, ErrNoUnits)

	_, err = BuildPVPayload(wind())
	assert.Error(t, err)
}

func TestBuildWindPayload(t *testing.T) {
	p, err := BuildWindPayload(wind())
	require.NoError(t, err)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"output":"annual","turbines":[
		{"id":"w_t0","lon":8,"lat":50,"hub_height_m":125},
		{"id":"w_t1","lon":8.01,"lat":50,"hub_height_m":125}]}`, string(b))

	_, err = BuildWindPayload(core.LayoutResult{Kind: core.KindWind})
	assert.ErrorIs(t, err, ErrNoUnits)
}

func TestUnitID(t *testing.T) {
	assert.Equal(t, "a_p3", UnitID("a", core.KindSolar, 3))
	assert.Equal(t, "a_t0", UnitID("a", core.KindWind, 0))
}

func serve(t *testing.T, status int, body string, got *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != ComputePath {
			t.Errorf("expected path %s, got %s", ComputePath, r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if got != nil {
			_ = json.NewDecoder(r.Body).Decode(got)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_ComputeSolar(t *testing.T) {
	var got map[string]any
	srv := serve(t, http.StatusOK, `{"annual_kWh": 12345.5}`, &got)

	a, err := NewClient(srv.URL+"/", time.Second).ComputeSolar(context.Background(), solar())
	require.NoError(t, err)
	assert.Equal(t, 12345.5, a.AnnualKWh)
	assert.InDelta(t, 12.3455, a.MWh(), 1e-9)
	assert.Empty(t, a.PerUnitKWh)
	assert.Equal(t, "annual", got["output"])
	assert.Len(t, got["panels"], 2)
}

func TestClient_ComputeWind_PerTurbineArray(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"annual_kWh": 3000, "per_turbine_kWh": [1000, null]}`, nil)

	a, err := NewClient(srv.URL, time.Second).ComputeWind(context.Background(), wind())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"w_t0": 1000}, a.PerUnitKWh)
}

func TestClient_ComputeWind_PerTurbineMap(t *testing.T) {
	srv := serve(t, http.StatusOK, `{"annual_kWh": 3000, "per_turbine_kWh": {"w_t1": 2000, "w_t0": 1000}}`, nil)

	a, err := NewClient(srv.URL, time.Second).ComputeWind(context.Background(), wind())
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"w_t0": 1000, "w_t1": 2000}, a.PerUnitKWh)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"missing annual", http.StatusOK, `{}`, "missing annual_kWh"},
		{"bad per turbine", http.StatusOK, `{"annual_kWh": 1, "per_turbine_kWh": "x"}`, "unexpected type"},
		{"server error", http.StatusInternalServerError, `boom`, "status 500: boom"},
		{"bad json", http.StatusOK, `{`, "failed to decode"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body, nil)
			_, err := NewClient(srv.URL, time.Second).ComputeWind(context.Background(), wind())
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrCollaborator)
			assert.Contains(t, err.Error(), tt.want)

			var ce *core.CollaboratorError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, "energy.wind", ce.Op)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	_, err := NewClient("http://localhost:59998", time.Second).ComputeSolar(context.Background(), solar())
	assert.ErrorIs(t, err, core.ErrCollaborator)
}

func TestClient_Healthcheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	assert.NoError(t, NewClient(srv.URL, 0).Healthcheck(context.Background()))
	assert.Error(t, NewClient(srv.URL+"/nope", 0).Healthcheck(context.Background()))
}

func line(n int, spacingDeg float64) core.CandidateSet {
	set := make(core.CandidateSet, n)
	for i := range set {
		set[i] = core.Candidate{Point: core.GeodeticPoint{Lon: float64(i) * spacingDeg, Lat: 0}, Source: core.SourceInterior}
	}
	return set
}

func TestOptimizerRequest_MinSeparation(t *testing.T) {
	assert.Equal(t, 500.0, OptimizerRequest{RotorDiameterMeters: 500}.MinSeparation())
	assert.Equal(t, 1000.0, OptimizerRequest{RotorDiameterMeters: 500, MinSpacingInDiameters: 2}.MinSeparation())
}

func TestGreedy_RespectsSeparation(t *testing.T) {
	// about 111 m between neighbours at the equator
	set := line(10, 0.001)
	got, err := Greedy{}.Optimize(context.Background(), OptimizerRequest{
		Candidates:          set,
		RotorDiameterMeters: 300,
	})
	require.NoError(t, err)

	require.Len(t, got, 4)
	assert.Equal(t, set[0].Point, got[0])
	assert.Equal(t, set[3].Point, got[1])
	assert.Equal(t, set[9].Point, got[3])
}

func TestGreedy_InvalidRequest(t *testing.T) {
	_, err := Greedy{}.Optimize(context.Background(), OptimizerRequest{Candidates: line(2, 1)})
	assert.Error(t, err)
}

func TestGreedy_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Greedy{}.Optimize(ctx, OptimizerRequest{Candidates: line(2, 1), RotorDiameterMeters: 1})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRemoteOptimizer(t *testing.T) {
	set := line(3, 0.01)
	set[1].Point.Elevation = 42

	var got optimizeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != OptimizePath {
			t.Errorf("expected path %s, got %s", OptimizePath, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"positions": [[0.0100000000001, 0], [0, 0]]}`))
	}))
	defer srv.Close()

	points, err := NewRemoteOptimizer(srv.URL, time.Second).Optimize(context.Background(), OptimizerRequest{
		Candidates:            set,
		HubHeightMeters:       100,
		RotorDiameterMeters:   500,
		MinSpacingInDiameters: 1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, []core.GeodeticPoint{set[1].Point, set[0].Point}, points)

	assert.Len(t, got.Candidates, 3)
	assert.Equal(t, 500.0, got.RotorDiameterM)
	assert.Equal(t, 1.5, got.MinSpacingInDiameters)
	assert.Equal(t, core.SourceInterior, got.Candidates[0].Source)
}

func TestRemoteOptimizer_RejectsForeignPoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"positions": [[5, 5]]}`))
	}))
	defer srv.Close()

	_, err := NewRemoteOptimizer(srv.URL, time.Second).Optimize(context.Background(),
		OptimizerRequest{Candidates: line(2, 0.01), RotorDiameterMeters: 500})
	assert.ErrorIs(t, err, core.ErrCollaborator)
	assert.ErrorContains(t, err, "not a candidate")
}

func TestGreedy_OnGeneratedSet(t *testing.T) {
	poly := core.Polygon{ID: "w", Vertices: []core.GeodeticPoint{
		{Lon: 8, Lat: 50}, {Lon: 8.03, Lat: 50}, {Lon: 8.03, Lat: 50.02}, {Lon: 8, Lat: 50.02},
	}}
	set := candidates.Generate(poly, 250, 100)
	got, err := Greedy{}.Optimize(context.Background(), OptimizerRequest{Candidates: set, RotorDiameterMeters: 500})
	require.NoError(t, err)
	require.NotEmpty(t, got)
	assert.Equal(t, set[0].Point, got[0])
}
