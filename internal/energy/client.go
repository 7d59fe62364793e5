package energy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/terrasite/siting/pkg/core"
)

// ComputePath is the annual-energy endpoint.
const ComputePath = "/compute-annual"

// ErrMissingAnnual is returned when the service answers without a total.
var ErrMissingAnnual = errors.New("response missing annual_kWh")

// Annual is the decoded service answer. PerUnitKWh is keyed by unit ID and
// is empty when the service sends no breakdown.
type Annual struct {
	AnnualKWh  float64
	PerUnitKWh map[string]float64
}

// MWh returns the total in megawatt hours.
func (a Annual) MWh() float64 {
	return a.AnnualKWh / 1000
}

type annualResponse struct {
	AnnualKWh  *float64        `json:"annual_kWh"`
	PerTurbine json.RawMessage `json:"per_turbine_kWh"`
}

// Client handles communication with the energy service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new energy client. A non-positive timeout falls back
// to 60s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Healthcheck checks if the energy service is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return core.Collaborator("energy.health", fmt.Errorf("healthcheck request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return core.Collaborator("energy.health", fmt.Errorf("healthcheck returned status %d", resp.StatusCode))
	}
	return nil
}

// ComputeSolar requests the annual yield of a solar layout.
func (c *Client) ComputeSolar(ctx context.Context, res core.LayoutResult) (Annual, error) {
	payload, err := BuildPVPayload(res)
	if err != nil {
		return Annual{}, err
	}
	ids := make([]string, len(payload.Panels))
	for i, p := range payload.Panels {
		ids[i] = p.ID
	}
	return c.compute(ctx, "energy.solar", payload, ids)
}

// ComputeWind requests the annual yield of a wind layout. A per-turbine
// array in the answer is matched to turbines by position.
func (c *Client) ComputeWind(ctx context.Context, res core.LayoutResult) (Annual, error) {
	payload, err := BuildWindPayload(res)
	if err != nil {
		return Annual{}, err
	}
	ids := make([]string, len(payload.Turbines))
	for i, t := range payload.Turbines {
		ids[i] = t.ID
	}
	return c.compute(ctx, "energy.wind", payload, ids)
}

func (c *Client) compute(ctx context.Context, op string, payload any, ids []string) (Annual, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Annual{}, fmt.Errorf("failed to encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+ComputePath, bytes.NewReader(body))
	if err != nil {
		return Annual{}, core.Collaborator(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Annual{}, core.Collaborator(op, fmt.Errorf("compute request failed: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Annual{}, core.Collaborator(op, fmt.Errorf("compute returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(msg))))
	}

	var out annualResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Annual{}, core.Collaborator(op, fmt.Errorf("failed to decode response: %w", err))
	}
	if out.AnnualKWh == nil {
		return Annual{}, core.Collaborator(op, ErrMissingAnnual)
	}

	per, err := decodePerUnit(out.PerTurbine, ids)
	if err != nil {
		return Annual{}, core.Collaborator(op, err)
	}
	return Annual{AnnualKWh: *out.AnnualKWh, PerUnitKWh: per}, nil
}

// decodePerUnit accepts an array aligned with ids or an object keyed by
// id. Null entries are skipped.
func decodePerUnit(raw json.RawMessage, ids []string) (map[string]float64, error) {
	out := make(map[string]float64)
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}

	switch raw[0] {
	case '[':
		var vals []*float64
		if err := json.Unmarshal(raw, &vals); err != nil {
			return nil, fmt.Errorf("decoding per_turbine_kWh: %w", err)
		}
		for i, v := range vals {
			if v != nil && i < len(ids) {
				out[ids[i]] = *v
			}
		}
	case '{':
		var vals map[string]*float64
		if err := json.Unmarshal(raw, &vals); err != nil {
			return nil, fmt.Errorf("decoding per_turbine_kWh: %w", err)
		}
		for id, v := range vals {
			if v != nil {
				out[id] = *v
			}
		}
	default:
		return nil, fmt.Errorf("per_turbine_kWh has unexpected type")
	}
	return out, nil
}
