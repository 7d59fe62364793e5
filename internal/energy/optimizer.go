package energy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/terrasite/siting/internal/candidates"
	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/pkg/core"
)

// OptimizePath is the optimizer endpoint.
const OptimizePath = "/optimize"

// OptimizerRequest is what an optimizer gets to choose from.
type OptimizerRequest struct {
	Candidates            core.CandidateSet
	HubHeightMeters       float64
	RotorDiameterMeters   float64
	MinSpacingInDiameters float64
}

// MinSeparation returns the required distance between chosen turbines.
// A non-positive multiplier counts as one diameter.
func (r OptimizerRequest) MinSeparation() float64 {
	k := r.MinSpacingInDiameters
	if k <= 0 {
		k = 1
	}
	return k * r.RotorDiameterMeters
}

func (r OptimizerRequest) validate() error {
	if r.RotorDiameterMeters <= 0 {
		return fmt.Errorf("rotor diameter must be positive, got %v", r.RotorDiameterMeters)
	}
	return nil
}

// Optimizer picks turbine positions out of a candidate set. The returned
// points are a subset of the candidates in the optimizer's order.
type Optimizer interface {
	Optimize(ctx context.Context, req OptimizerRequest) ([]core.GeodeticPoint, error)
}

// Greedy walks the candidates in order and keeps every one at least
// MinSeparation from all kept so far. Boundary candidates come first in a
// generated set, so the result hugs the boundary.
type Greedy struct{}

func (Greedy) Optimize(ctx context.Context, req OptimizerRequest) ([]core.GeodeticPoint, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	minSep := req.MinSeparation()

	var kept []core.GeodeticPoint
	for i, c := range req.Candidates {
		if i%256 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		ok := true
		for _, k := range kept {
			if geo.Haversine(c.Point, k) < minSep {
				ok = false
				break
			}
		}
		if ok {
			kept = append(kept, c.Point)
		}
	}
	return kept, nil
}

type optimizeCandidate struct {
	Lon    float64              `json:"lon"`
	Lat    float64              `json:"lat"`
	Source core.CandidateSource `json:"source"`
}

type optimizeRequest struct {
	Candidates            []optimizeCandidate `json:"candidates"`
	HubHeightM            float64             `json:"hub_height_m"`
	RotorDiameterM        float64             `json:"rotor_diameter_m"`
	MinSpacingInDiameters float64             `json:"min_spacing_in_diameters"`
}

type optimizeResponse struct {
	Positions [][2]float64 `json:"positions"`
}

// RemoteOptimizer delegates to an HTTP optimizer service. Positions are
// sent and returned as lon/lat pairs.
type RemoteOptimizer struct {
	baseURL    string
	httpClient *http.Client
}

// NewRemoteOptimizer creates an optimizer client. A non-positive timeout
// falls back to 60s.
func NewRemoteOptimizer(baseURL string, timeout time.Duration) *RemoteOptimizer {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &RemoteOptimizer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Optimize sends the candidates and maps the answer back onto them. Any
// returned point that is not a candidate is an error.
func (o *RemoteOptimizer) Optimize(ctx context.Context, req OptimizerRequest) ([]core.GeodeticPoint, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	body := optimizeRequest{
		Candidates:            make([]optimizeCandidate, len(req.Candidates)),
		HubHeightM:            req.HubHeightMeters,
		RotorDiameterM:        req.RotorDiameterMeters,
		MinSpacingInDiameters: req.MinSpacingInDiameters,
	}
	for i, c := range req.Candidates {
		body.Candidates[i] = optimizeCandidate{Lon: c.Point.Lon, Lat: c.Point.Lat, Source: c.Source}
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode candidates: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+OptimizePath, bytes.NewReader(data))
	if err != nil {
		return nil, core.Collaborator("optimizer", fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.Collaborator("optimizer", fmt.Errorf("optimize request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.Collaborator("optimizer", fmt.Errorf("optimize returned status %d", resp.StatusCode))
	}

	var out optimizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.Collaborator("optimizer", fmt.Errorf("failed to decode response: %w", err))
	}

	idx := candidates.NewIndex(req.Candidates)
	chosen := make([]core.GeodeticPoint, 0, len(out.Positions))
	for _, pos := range out.Positions {
		p := core.GeodeticPoint{Lon: pos[0], Lat: pos[1]}
		i, ok := idx.Lookup(p)
		if !ok {
			return nil, core.Collaborator("optimizer", fmt.Errorf("position %.7f,%.7f is not a candidate", p.Lon, p.Lat))
		}
		chosen = append(chosen, req.Candidates[i].Point)
	}
	return chosen, nil
}
