// Package cache keeps terrain heights already fetched so repeated layouts of
// the same polygon do not hit the elevation service again.
package cache

import (
	"context"
	"math"
	"sync"

	"github.com/terrasite/siting/internal/terrain"
	"github.com/terrasite/siting/pkg/core"
)

// keyScale quantises positions to 1e-7 degrees, about 1 cm.
const keyScale = 1e7

type key struct {
	lon, lat int64
}

func keyOf(p core.GeodeticPoint) key {
	return key{
		lon: int64(math.Round(p.Lon * keyScale)),
		lat: int64(math.Round(p.Lat * keyScale)),
	}
}

// ElevationCache wraps a Sampler and only forwards points it has not seen.
// Misses are sent as one batch in input order with duplicates removed.
type ElevationCache struct {
	inner terrain.Sampler

	m       sync.Mutex
	heights map[key]float64
	hits    SafeCounter
	misses  SafeCounter
}

var _ terrain.Sampler = (*ElevationCache)(nil)

func NewElevationCache(inner terrain.Sampler) *ElevationCache {
	return &ElevationCache{
		inner:   inner,
		heights: make(map[key]float64),
	}
}

// Sample implements terrain.Sampler.
func (c *ElevationCache) Sample(ctx context.Context, points []core.GeodeticPoint) ([]core.TerrainSample, error) {
	out := make([]core.TerrainSample, len(points))

	var missing []core.GeodeticPoint
	pending := make(map[key][]int)

	c.m.Lock()
	for i, p := range points {
		k := keyOf(p)
		if h, ok := c.heights[k]; ok {
			out[i] = core.TerrainSample{Point: p, Elevation: h}
			c.hits.Inc()
			continue
		}
		if _, queued := pending[k]; !queued {
			missing = append(missing, p)
		}
		pending[k] = append(pending[k], i)
	}
	c.m.Unlock()

	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := c.inner.Sample(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, &terrain.LengthError{Want: len(missing), Got: len(fetched)}
	}

	c.m.Lock()
	defer c.m.Unlock()
	for j, s := range fetched {
		k := keyOf(missing[j])
		c.heights[k] = s.Elevation
		for _, i := range pending[k] {
			out[i] = core.TerrainSample{Point: points[i], Elevation: s.Elevation}
		}
		c.misses.Inc()
	}
	return out, nil
}

// Len returns the number of cached positions.
func (c *ElevationCache) Len() int {
	c.m.Lock()
	defer c.m.Unlock()
	return len(c.heights)
}

// Reset drops every cached height.
func (c *ElevationCache) Reset() {
	c.m.Lock()
	defer c.m.Unlock()
	c.heights = make(map[key]float64)
	c.hits.Set(0)
	c.misses.Set(0)
}

// Stats returns lookups answered from the cache and positions fetched.
func (c *ElevationCache) Stats() (hits, misses int) {
	return c.hits.Value(), c.misses.Value()
}

// SafeCounter is a thread-safe counter
type SafeCounter struct {
	mu sync.Mutex
	v  int
}

func (c *SafeCounter) Value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.v
}

func (c *SafeCounter) Set(v int) {
	c.mu.Lock()
	c.v = v
	c.mu.Unlock()
}

func (c *SafeCounter) Inc() {
	c.mu.Lock()
	c.v++
	c.mu.Unlock()
}
