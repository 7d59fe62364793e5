package tracker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/terrasite/siting/pkg/core"
)

// Handle names one visual object owned by a Renderer.
type Handle string

// Renderer creates and destroys visual objects for placed units.
type Renderer interface {
	Create(ctx context.Context, key Key, unit core.PlacedUnit) (Handle, error)
	Destroy(ctx context.Context, h Handle) error
}

// Presenter applies tracker messages to a Renderer. It is the only owner
// of handles: a replace destroys every handle of the slot before any new
// one is created.
type Presenter struct {
	r   Renderer
	log *slog.Logger

	mu      sync.Mutex
	handles map[Key][]Handle
	seen    map[Key]uint64
}

// NewPresenter wraps r.
func NewPresenter(r Renderer, log *slog.Logger) *Presenter {
	if log == nil {
		log = slog.Default()
	}
	return &Presenter{
		r:       r,
		log:     log,
		handles: make(map[Key][]Handle),
		seen:    make(map[Key]uint64),
	}
}

// Run applies messages until updates is closed or ctx ends. Render
// failures are logged and do not stop the loop.
func (p *Presenter) Run(ctx context.Context, updates <-chan Message) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-updates:
			if !ok {
				return nil
			}
			if err := p.Apply(ctx, msg); err != nil {
				p.log.Error("Failed to render layout", "slot", msg.Key.String(), "action", msg.Action.String(), "error", err)
			}
		}
	}
}

// Apply handles one message. Messages older than one already applied to
// the slot are ignored.
func (p *Presenter) Apply(ctx context.Context, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if msg.Generation < p.seen[msg.Key] {
		return nil
	}
	p.seen[msg.Key] = msg.Generation

	var errs []error
	for _, h := range p.handles[msg.Key] {
		if err := p.r.Destroy(ctx, h); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %w", h, err))
		}
	}
	delete(p.handles, msg.Key)

	if msg.Action == ActionRemove {
		return errors.Join(errs...)
	}

	created := make([]Handle, 0, len(msg.Result.Units))
	for _, u := range msg.Result.Units {
		h, err := p.r.Create(ctx, msg.Key, u)
		if err != nil {
			errs = append(errs, fmt.Errorf("create %s: %w", u.ID, err))
			continue
		}
		created = append(created, h)
	}
	p.handles[msg.Key] = created
	p.log.Debug("Rendered layout", "slot", msg.Key.String(), "generation", msg.Generation, "handles", len(created))
	return errors.Join(errs...)
}

// Handles returns the live handles of a slot.
func (p *Presenter) Handles(key Key) []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Handle(nil), p.handles[key]...)
}

// TextRenderer writes one line per create and destroy.
type TextRenderer struct {
	W io.Writer
}

func (r TextRenderer) Create(_ context.Context, key Key, u core.PlacedUnit) (Handle, error) {
	h := Handle(key.String() + "/" + u.ID)
	_, err := fmt.Fprintf(r.W, "+ %s %.7f %.7f %.1f az=%.1f tilt=%.1f %s\n",
		h, u.Position.Lon, u.Position.Lat, u.Position.Elevation, u.AzimuthDeg, u.TiltDeg, u.Asset.Name)
	return h, err
}

func (r TextRenderer) Destroy(_ context.Context, h Handle) error {
	_, err := fmt.Fprintf(r.W, "- %s\n", h)
	return err
}
