// Package health tracks per-camera failure streaks and auto-disables a
// camera once it crosses a configurable threshold, grounded on
// jordigilh-kubernaut's circuit-breaker-backed delivery controller
// (test/integration/notification/suite_test.go wires
// gobreaker.Settings{ReadyToTrip: consecutive-failure-threshold} for the
// same per-key, consecutive-failure auto-disable concern): one
// gobreaker.CircuitBreaker per camera, keyed by camera ID, deciding the
// open/closed transition, with a small bookkeeping layer on top for the
// fields the spec wants surfaced (FailureCount, LastFailure/LastSuccess,
// and the manual-only Reset path gobreaker itself has no API for).
package health

import (
	"errors"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"aegis/engine/models"
)

// Clock is injectable for deterministic tests.
type Clock func() time.Time

var errCaptureFailure = errors.New("health: camera capture/fuse failure")

// Tracker records consecutive capture/acquire failures per camera and
// auto-disables a camera once FailureThreshold consecutive failures are
// reached (spec §4.7). A success resets the streak to zero. Disabling is
// idempotent: repeated failures past the threshold do not re-fire the
// transition or overwrite DisabledAt/DisabledReason.
type Tracker struct {
	mu               sync.Mutex
	now              Clock
	FailureThreshold int
	breakers         map[string]*gobreaker.CircuitBreaker
	state            map[string]*entry
}

type entry struct {
	failureCount int
	lastFailure  time.Time
	lastSuccess  time.Time
	disabledAt   time.Time
	disabledBy   string
	reason       string
}

// NewTracker builds a Tracker with the spec's default threshold of 3.
func NewTracker() *Tracker {
	return &Tracker{
		now:              time.Now,
		FailureThreshold: 3,
		breakers:         make(map[string]*gobreaker.CircuitBreaker),
		state:            make(map[string]*entry),
	}
}

// Observation is the health-relevant delta the tracker applies to one
// camera after a cycle attempt on it.
type Observation struct {
	CameraID     string
	Status       models.CameraStatus
	FailureCount int
	LastFailure  time.Time
	LastSuccess  time.Time
	AutoDisabled bool
}

// RecordSuccess resets the camera's failure streak and reports it active
// unless its breaker has already tripped (spec §4.7: reset is manual-only
// for error-disabled cameras, so a success coming in after auto-disable
// leaves the status at error). A success also feeds the camera's breaker so
// its own consecutive-failure count resets, the same way a real request would.
func (t *Tracker) RecordSuccess(cameraID string) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entryFor(cameraID)
	cb := t.breakerFor(cameraID)

	e.failureCount = 0
	e.lastSuccess = t.now()
	_, _ = cb.Execute(func() (interface{}, error) { return nil, nil })

	return t.snapshot(cameraID, e, cb, false)
}

// RecordFailure increments the camera's failure streak and, on crossing
// FailureThreshold, transitions it to error/disabled exactly once.
func (t *Tracker) RecordFailure(cameraID string) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entryFor(cameraID)
	cb := t.breakerFor(cameraID)

	e.failureCount++
	e.lastFailure = t.now()

	before := cb.State()
	_, _ = cb.Execute(func() (interface{}, error) { return nil, errCaptureFailure })
	after := cb.State()

	autoDisabled := before != gobreaker.StateOpen && after == gobreaker.StateOpen
	if autoDisabled {
		e.disabledAt = e.lastFailure
		e.disabledBy = "system"
		e.reason = "exceeded consecutive failure threshold"
	}
	return t.snapshot(cameraID, e, cb, autoDisabled)
}

// Reset manually clears a camera's error/disabled state (SPEC_FULL.md
// §4.15). Unlike a success, this is the only path that can re-enable a
// camera that auto-disabled. The operator argument is accepted but not
// stored by the tracker. gobreaker exposes no "force closed" call once a breaker has tripped past
// its threshold, so the manual-reset primitive is swapping in a fresh
// breaker instance for the camera.
func (t *Tracker) Reset(cameraID, operator string) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.entryFor(cameraID)
	e.failureCount = 0
	e.disabledAt = time.Time{}
	e.disabledBy = ""
	e.reason = ""
	_ = operator

	cb := gobreaker.NewCircuitBreaker(t.breakerSettings(cameraID))
	t.breakers[cameraID] = cb
	return t.snapshot(cameraID, e, cb, false)
}

// Snapshot returns the camera's current tracked state without mutating it.
func (t *Tracker) Snapshot(cameraID string) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.entryFor(cameraID)
	cb := t.breakerFor(cameraID)
	return t.snapshot(cameraID, e, cb, false)
}

func (t *Tracker) entryFor(cameraID string) *entry {
	e, ok := t.state[cameraID]
	if !ok {
		e = &entry{}
		t.state[cameraID] = e
	}
	return e
}

func (t *Tracker) breakerFor(cameraID string) *gobreaker.CircuitBreaker {
	cb, ok := t.breakers[cameraID]
	if !ok {
		cb = gobreaker.NewCircuitBreaker(t.breakerSettings(cameraID))
		t.breakers[cameraID] = cb
	}
	return cb
}

// breakerSettings trips on FailureThreshold consecutive failures. Timeout is
// set far longer than any real cycle interval so gobreaker's own half-open
// probe never races a human operator's Reset call — re-enabling a disabled
// camera is manual-only (spec §4.7, see DESIGN.md's Open Question decision).
func (t *Tracker) breakerSettings(cameraID string) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        cameraID,
		MaxRequests: 1,
		Timeout:     365 * 24 * time.Hour,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(t.FailureThreshold)
		},
	}
}

func (t *Tracker) snapshot(cameraID string, e *entry, cb *gobreaker.CircuitBreaker, autoDisabled bool) Observation {
	return Observation{
		CameraID:     cameraID,
		Status:       statusFor(cb.State()),
		FailureCount: e.failureCount,
		LastFailure:  e.lastFailure,
		LastSuccess:  e.lastSuccess,
		AutoDisabled: autoDisabled,
	}
}

func statusFor(s gobreaker.State) models.CameraStatus {
	if s == gobreaker.StateClosed {
		return models.CameraActive
	}
	return models.CameraError
}
