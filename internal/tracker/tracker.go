// Package tracker holds the current layout of every polygon and passes
// accepted results to the presentation side as messages. Each layout run
// takes a ticket; a result whose ticket is no longer the newest for its
// polygon and kind is discarded.
package tracker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/terrasite/siting/pkg/core"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/terrasite/siting/internal/tracker"

// Key identifies one layout slot.
type Key struct {
	PolygonID string
	Kind      core.LayoutKind
}

func (k Key) String() string {
	return k.PolygonID + "/" + string(k.Kind)
}

// Ticket is handed out when a layout run starts.
type Ticket struct {
	Key
	Generation uint64
}

// Action tells the presenter what to do with a message.
type Action int

const (
	ActionReplace Action = iota
	ActionRemove
)

func (a Action) String() string {
	if a == ActionRemove {
		return "remove"
	}
	return "replace"
}

// Message carries an accepted result from the core to presentation.
type Message struct {
	Action     Action
	Key        Key
	Generation uint64
	Result     core.LayoutResult
}

// Tracker is safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	gens    map[Key]uint64
	current map[Key]core.LayoutResult
	out     chan Message
	closed  bool
	log     *slog.Logger

	discarded metric.Int64Counter
}

// New creates a tracker whose Updates channel holds buffer messages.
func New(buffer int, log *slog.Logger) (*Tracker, error) {
	if log == nil {
		log = slog.Default()
	}
	discarded, err := otel.Meter(instrumentationName).Int64Counter(
		"siting.tracker.discarded",
		metric.WithDescription("Layout results dropped because a newer run started"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating discarded counter: %w", err)
	}
	return &Tracker{
		gens:      make(map[Key]uint64),
		current:   make(map[Key]core.LayoutResult),
		out:       make(chan Message, buffer),
		log:       log,
		discarded: discarded,
	}, nil
}

// Begin starts a new generation for the slot, making every earlier
// ticket stale.
func (t *Tracker) Begin(polygonID string, kind core.LayoutKind) Ticket {
	t.mu.Lock()
	defer t.mu.Unlock()
	k := Key{PolygonID: polygonID, Kind: kind}
	t.gens[k]++
	return Ticket{Key: k, Generation: t.gens[k]}
}

// Current reports whether tk is still the newest ticket of its slot.
func (t *Tracker) Current(tk Ticket) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gens[tk.Key] == tk.Generation
}

// Publish accepts res for tk's slot, replacing whatever was there, and
// sends a replace message. It returns false without error when tk is stale.
// The send happens under the lock so messages leave in generation order.
func (t *Tracker) Publish(ctx context.Context, tk Ticket, res core.LayoutResult) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false, fmt.Errorf("tracker closed")
	}
	if t.gens[tk.Key] != tk.Generation {
		t.discarded.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(tk.Kind))))
		t.log.Debug("Discarding stale layout", "slot", tk.Key.String(),
			"generation", tk.Generation, "current", t.gens[tk.Key])
		return false, nil
	}

	res.Units = append([]core.PlacedUnit(nil), res.Units...)
	msg := Message{Action: ActionReplace, Key: tk.Key, Generation: tk.Generation, Result: res}
	if err := t.send(ctx, msg); err != nil {
		return false, err
	}
	t.current[tk.Key] = res
	return true, nil
}

// Remove drops the slot's layout and invalidates runs in flight. It is a
// no-op when nothing is shown.
func (t *Tracker) Remove(ctx context.Context, polygonID string, kind core.LayoutKind) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return fmt.Errorf("tracker closed")
	}
	k := Key{PolygonID: polygonID, Kind: kind}
	t.gens[k]++
	if _, ok := t.current[k]; !ok {
		return nil
	}
	if err := t.send(ctx, Message{Action: ActionRemove, Key: k, Generation: t.gens[k]}); err != nil {
		return err
	}
	delete(t.current, k)
	return nil
}

// Layout returns the accepted layout of a slot.
func (t *Tracker) Layout(polygonID string, kind core.LayoutKind) (core.LayoutResult, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	res, ok := t.current[Key{PolygonID: polygonID, Kind: kind}]
	if ok {
		res.Units = append([]core.PlacedUnit(nil), res.Units...)
	}
	return res, ok
}

// Updates is closed by Close.
func (t *Tracker) Updates() <-chan Message {
	return t.out
}

// Close ends the message stream.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.closed {
		t.closed = true
		close(t.out)
	}
}

func (t *Tracker) send(ctx context.Context, msg Message) error {
	select {
	case t.out <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
