// Package dispatch pushes computed route envelopes to connected display
// screens over websocket rooms, falling back to radio framing when a floor
// has no live subscriber, grounded on niceyeti-tabular's gorilla/websocket
// usage in server/server.go and the health package's mutex-guarded map idiom.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"aegis/engine/models"
)

// FloorLookup validates a subscriber-supplied floorId against the floor
// store (spec §4.10).
type FloorLookup interface {
	GetFloor(ctx context.Context, floorID string) (*models.Floor, error)
}

// Confirmation is sent back to a subscriber once its floorId is accepted.
type Confirmation struct {
	FloorID     string   `json:"floorId"`
	FloorName   string   `json:"floorName"`
	StartPoints []string `json:"startPoints"`
	ExitPoints  []string `json:"exitPoints"`
}

// Subscriber is an opaque handle for one connected display; Presence never
// inspects it beyond identity and floor assignment.
type Subscriber interface {
	ID() string
}

// Presence tracks which floor each connected subscriber is watching
// (spec §4.10).
type Presence struct {
	mu     sync.RWMutex
	floors FloorLookup
	// byHandle maps subscriber id -> floorId.
	byHandle map[string]string
}

// NewPresence builds a Presence registry backed by floors for id
// validation.
func NewPresence(floors FloorLookup) *Presence {
	return &Presence{floors: floors, byHandle: make(map[string]string)}
}

// Join validates floorID against the floor store and, on success, joins
// the subscriber's room and returns the confirmation payload. On an
// unknown floorId the subscriber is not registered and the caller is
// expected to disconnect it.
func (p *Presence) Join(ctx context.Context, handle string, floorID string) (Confirmation, error) {
	floor, err := p.floors.GetFloor(ctx, floorID)
	if err != nil || floor == nil {
		return Confirmation{}, fmt.Errorf("presence: unknown floor %q", floorID)
	}

	p.mu.Lock()
	p.byHandle[handle] = floorID
	p.mu.Unlock()

	return Confirmation{
		FloorID:     floorID,
		FloorName:   floor.Name,
		StartPoints: floor.ActiveScreenNodes(),
		ExitPoints:  floor.ExitPoints,
	}, nil
}

// Leave removes a subscriber's mapping (spec §4.10 disconnect).
func (p *Presence) Leave(handle string) {
	p.mu.Lock()
	delete(p.byHandle, handle)
	p.mu.Unlock()
}

// Size returns the count of currently registered subscribers.
func (p *Presence) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.byHandle)
}

// FloorIDs returns the deduplicated set of floor ids with at least one
// subscriber, for the dispatch selector's radio-fallback decision.
func (p *Presence) FloorIDs() map[string]struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]struct{}, len(p.byHandle))
	for _, floorID := range p.byHandle {
		out[floorID] = struct{}{}
	}
	return out
}

// floorOf returns the floorId a subscriber handle is currently joined to,
// or "" if unknown. Used by the hub's broadcast filter.
func (p *Presence) floorOf(handle string) string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.byHandle[handle]
}

// HasSubscriber reports whether floorID currently has at least one
// registered subscriber.
func (p *Presence) HasSubscriber(floorID string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, f := range p.byHandle {
		if f == floorID {
			return true
		}
	}
	return false
}
