package terrain

import (
	"context"
	"fmt"

	"github.com/terrasite/siting/internal/geo"
	"github.com/terrasite/siting/pkg/core"
)

// Sampler looks up terrain heights for a batch of points. Results are in
// input order and have the same length as the input.
type Sampler interface {
	Sample(ctx context.Context, points []core.GeodeticPoint) ([]core.TerrainSample, error)
}

// SamplerFunc adapts a function to Sampler.
type SamplerFunc func(ctx context.Context, points []core.GeodeticPoint) ([]core.TerrainSample, error)

func (f SamplerFunc) Sample(ctx context.Context, points []core.GeodeticPoint) ([]core.TerrainSample, error) {
	return f(ctx, points)
}

// Plane is an analytic tilted plane anchored at Origin. The height at a
// point is Base + GradEast*east + GradNorth*north, with east and north the
// point's offsets in metres from Origin. It serves offline runs and tests.
type Plane struct {
	Origin    core.GeodeticPoint
	Base      float64
	GradEast  float64
	GradNorth float64
}

// Sample implements Sampler.
func (p Plane) Sample(ctx context.Context, points []core.GeodeticPoint) ([]core.TerrainSample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	origin := p.Origin
	origin.Elevation = 0
	frame := geo.NewFrame(origin)

	out := make([]core.TerrainSample, len(points))
	for i, pt := range points {
		flat := pt
		flat.Elevation = 0
		l := frame.ToLocal(flat)
		out[i] = core.TerrainSample{
			Point:     pt,
			Elevation: p.Base + p.GradEast*l.East + p.GradNorth*l.North,
		}
	}
	return out, nil
}

// Sample calls s and checks the result length, wrapping any failure as a
// CollaboratorError named op.
func Sample(ctx context.Context, s Sampler, op string, points []core.GeodeticPoint) ([]core.TerrainSample, error) {
	if len(points) == 0 {
		return nil, nil
	}
	out, err := s.Sample(ctx, points)
	if err != nil {
		return nil, core.Collaborator(op, err)
	}
	if len(out) != len(points) {
		return nil, core.Collaborator(op, &LengthError{Want: len(points), Got: len(out)})
	}
	return out, nil
}

// LengthError reports a terrain response of the wrong size.
type LengthError struct {
	Want, Got int
}

func (e *LengthError) Error() string {
	return fmt.Sprintf("terrain returned %d samples for %d points", e.Got, e.Want)
}
