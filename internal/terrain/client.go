package terrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/terrasite/siting/pkg/core"
)

// Client queries an elevation service that accepts a batch of locations
// per POST, in the style of Open-Elevation's lookup endpoint.
type Client struct {
	baseURL    string
	path       string
	httpClient *http.Client
}

// DefaultLookupPath is appended to the base URL when none is configured.
const DefaultLookupPath = "/api/v1/lookup"

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type lookupRequest struct {
	Locations []location `json:"locations"`
}

type lookupResult struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Elevation float64 `json:"elevation"`
}

type lookupResponse struct {
	Results []lookupResult `json:"results"`
}

// NewClient creates a terrain client. An empty path uses DefaultLookupPath
// and a non-positive timeout falls back to 30s.
func NewClient(baseURL, path string, timeout time.Duration) *Client {
	if path == "" {
		path = DefaultLookupPath
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		path:       "/" + strings.TrimLeft(path, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Sample sends all points in a single request.
func (c *Client) Sample(ctx context.Context, points []core.GeodeticPoint) ([]core.TerrainSample, error) {
	if len(points) == 0 {
		return nil, nil
	}

	req := lookupRequest{Locations: make([]location, len(points))}
	for i, p := range points {
		req.Locations[i] = location{Latitude: p.Lat, Longitude: p.Lon}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode lookup: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+c.path, bytes.NewReader(body))
	if err != nil {
		return nil, core.Collaborator("terrain.sample", fmt.Errorf("failed to create request: %w", err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, core.Collaborator("terrain.sample", fmt.Errorf("lookup request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, core.Collaborator("terrain.sample", fmt.Errorf("lookup returned status %d", resp.StatusCode))
	}

	var out lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, core.Collaborator("terrain.sample", fmt.Errorf("failed to decode lookup: %w", err))
	}
	if len(out.Results) != len(points) {
		return nil, core.Collaborator("terrain.sample", &LengthError{Want: len(points), Got: len(out.Results)})
	}

	samples := make([]core.TerrainSample, len(points))
	for i, p := range points {
		samples[i] = core.TerrainSample{Point: p, Elevation: out.Results[i].Elevation}
	}
	return samples, nil
}

// Healthcheck checks the service answers a one-point lookup.
func (c *Client) Healthcheck(ctx context.Context) error {
	_, err := c.Sample(ctx, []core.GeodeticPoint{{}})
	return err
}
