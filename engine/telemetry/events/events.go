// Package events is a bounded, in-process event bus for cross-cutting
// observability, grounded on the teacher's engine/telemetry/events.Bus:
// a broadcast-to-many-subscribers channel fan-out that drops events for a
// slow subscriber rather than blocking the publisher.
package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"aegis/engine/telemetry/tracing"
)

// Category enumerations for the categories the pipeline publishes.
const (
	CategoryCycle       = "cycle"
	CategoryCamera      = "camera"
	CategoryDispatch    = "dispatch"
	CategoryRadio       = "radio"
	CategoryReplication = "replication"
	CategoryConfig      = "config_change"
)

// Event is the structured envelope for telemetry events.
type Event struct {
	Time     time.Time              `json:"time"`
	Category string                 `json:"category"`
	Type     string                 `json:"type"`
	Severity string                 `json:"severity,omitempty"` // info|warn|error
	TraceID  string                 `json:"trace_id,omitempty"`
	SpanID   string                 `json:"span_id,omitempty"`
	Labels   map[string]string      `json:"labels,omitempty"`
	Fields   map[string]interface{} `json:"fields,omitempty"`
}

// Subscription is a handle representing a consumer of events.
type Subscription interface {
	C() <-chan Event
	Close() error
	ID() int64
}

// Bus defines the event bus interface.
type Bus interface {
	Publish(ev Event) error
	PublishCtx(ctx context.Context, ev Event) error
	Subscribe(buffer int) (Subscription, error)
	Unsubscribe(sub Subscription) error
	Stats() BusStats
}

// BusStats returns runtime counters for observability.
type BusStats struct {
	Subscribers int64
	Published   uint64
	Dropped     uint64
}

type subscriber struct {
	id      int64
	ch      chan Event
	bus     *eventBus
	dropped atomic.Uint64
}

func (s *subscriber) C() <-chan Event { return s.ch }
func (s *subscriber) ID() int64       { return s.id }
func (s *subscriber) Close() error    { return s.bus.Unsubscribe(s) }

type eventBus struct {
	mu        sync.RWMutex
	subs      map[int64]*subscriber
	nextID    int64
	published atomic.Uint64
	dropped   atomic.Uint64
}

// NewBus creates a bounded, in-memory event bus.
func NewBus() Bus {
	return &eventBus{subs: make(map[int64]*subscriber)}
}

func (b *eventBus) Publish(ev Event) error {
	if ev.Category == "" {
		return errors.New("event missing category")
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	b.published.Add(1)
	for _, s := range subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped.Add(1)
			b.dropped.Add(1)
		}
	}
	return nil
}

func (b *eventBus) PublishCtx(ctx context.Context, ev Event) error {
	if ev.TraceID == "" && ev.SpanID == "" {
		if traceID, spanID := tracing.ExtractIDs(ctx); traceID != "" || spanID != "" {
			ev.TraceID = traceID
			ev.SpanID = spanID
		}
	}
	return b.Publish(ev)
}

func (b *eventBus) Subscribe(buffer int) (Subscription, error) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)
	id := atomic.AddInt64(&b.nextID, 1)
	sub := &subscriber{id: id, ch: ch, bus: b}
	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()
	return sub, nil
}

func (b *eventBus) Unsubscribe(sub Subscription) error {
	if sub == nil {
		return nil
	}
	id := sub.ID()
	b.mu.Lock()
	s, ok := b.subs[id]
	delete(b.subs, id)
	b.mu.Unlock()
	if ok {
		close(s.ch)
	}
	return nil
}

func (b *eventBus) Stats() BusStats {
	b.mu.RLock()
	n := int64(len(b.subs))
	b.mu.RUnlock()
	return BusStats{
		Subscribers: n,
		Published:   b.published.Load(),
		Dropped:     b.dropped.Load(),
	}
}
