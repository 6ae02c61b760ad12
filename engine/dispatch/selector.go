package dispatch

import (
	"context"
	"log/slog"

	"aegis/engine/models"
	"aegis/engine/telemetry/events"
	"aegis/engine/telemetry/metrics"
)

// Radio is the radio-fallback collaborator (engine/radio.Framer in
// production), invoked when a floor has no live websocket subscriber.
type Radio interface {
	Frame(ctx context.Context, env models.Envelope) (ok bool, output string, err error)
}

// Selector implements the dispatch step of the per-floor cycle (spec §4.9):
// it always pushes to the floor's room and to the legacy global room, and
// falls back to radio only when the floor currently has zero subscribers.
type Selector struct {
	Hub      *Hub
	Presence *Presence
	Radio    Radio

	Events  events.Bus
	Metrics *metrics.Metrics
	Log     *slog.Logger
}

// NewSelector builds a Selector wired to hub/presence/radio.
func NewSelector(hub *Hub, presence *Presence, radio Radio) *Selector {
	return &Selector{Hub: hub, Presence: presence, Radio: radio}
}

// Dispatch satisfies engine/cycle.Dispatcher. The bool return reports
// whether the radio fallback path actually fired (regardless of whether the
// framing itself succeeded), so the caller's per-cycle outcome can record it.
func (s *Selector) Dispatch(ctx context.Context, floorID string, env models.Envelope) (bool, error) {
	if s.Hub != nil {
		s.Hub.PushFloor(floorID, env)
		s.Hub.PushGlobal(env)
	}

	if s.Presence != nil && s.Presence.HasSubscriber(floorID) {
		return false, nil
	}

	if s.Radio == nil {
		return false, nil
	}

	ok, _, err := s.Radio.Frame(ctx, env)
	outcome := "ok"
	if err != nil || !ok {
		outcome = "failed"
	}
	if s.Metrics != nil {
		s.Metrics.RadioInvocations.WithLabelValues(floorID, outcome).Inc()
	}
	if s.Events != nil {
		_ = s.Events.PublishCtx(ctx, events.Event{
			Category: events.CategoryRadio,
			Type:     "radio_invocation",
			Severity: severityFor(outcome),
			Labels:   map[string]string{"floor_id": floorID, "outcome": outcome},
		})
	}
	if err != nil {
		s.log("dispatch: radio framing failed", "floor_id", floorID, "err", err.Error())
	}
	return true, nil
}

func severityFor(outcome string) string {
	if outcome == "failed" {
		return "warn"
	}
	return "info"
}

func (s *Selector) log(msg string, attrs ...any) {
	if s.Log != nil {
		s.Log.Warn(msg, attrs...)
	}
}
