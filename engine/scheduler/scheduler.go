// Package scheduler drives the global capture/route tick, grounded on the
// teacher's engine/internal/pipeline ticker loop generalized with the
// skip-on-busy mutex the health package's failure-streak model inspired:
// a single in-flight cycle at a time, no catch-up on a missed tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"aegis/engine/cycle"
	"aegis/engine/models"
	"aegis/engine/store"
	"aegis/engine/telemetry/events"
	"aegis/engine/telemetry/logging"
	"aegis/engine/telemetry/metrics"
)

// Scheduler runs cycle.Runner over every active floor once per tick
// (spec §4.12).
type Scheduler struct {
	Settings store.SettingsStore
	Floors   store.FloorStore
	Runner   *cycle.Runner
	Interval time.Duration // CAPTURE_INTERVAL_SEC, default 30s

	Events  events.Bus
	Metrics *metrics.Metrics
	Log     logging.Logger

	cycleMu sync.Mutex // process-wide: at most one tick's work runs at a time
	stopCh  chan struct{}
	stopped sync.Once
	wg      sync.WaitGroup
}

// NewScheduler builds a Scheduler with the spec's default 30s interval.
func NewScheduler() *Scheduler {
	return &Scheduler{Interval: 30 * time.Second, stopCh: make(chan struct{})}
}

// Start runs the first tick immediately, then ticks at Interval until
// Stop is called (spec §4.12).
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx) // first tick runs immediately on startup

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick acquires the process-wide cycle mutex; if already held, the tick is
// skipped with a warning and no catch-up is attempted (spec §4.12).
func (s *Scheduler) tick(ctx context.Context) {
	if !s.cycleMu.TryLock() {
		if s.Metrics != nil {
			s.Metrics.CycleSkippedTotal.Inc()
		}
		s.logWarn(ctx, "scheduler: tick skipped, previous cycle still running")
		return
	}
	defer s.cycleMu.Unlock()

	settings, err := s.Settings.GetSettings(ctx)
	if err != nil {
		settings = models.DefaultSettings()
		s.logWarn(ctx, "scheduler: settings read failed, using defaults", "err", err.Error())
	}

	floorIDs, err := s.Floors.ActiveFloorIDs(ctx)
	if err != nil {
		s.recordCycle("failed")
		s.logWarn(ctx, "scheduler: list active floors failed", "err", err.Error())
		return
	}

	for _, floorID := range floorIDs {
		if _, err := s.Runner.Run(ctx, floorID, settings.CloudProcessing.Enabled); err != nil {
			s.logWarn(ctx, "scheduler: floor cycle failed", "floor_id", floorID, "err", err.Error())
		}
	}
	s.recordCycle("ok")
}

func (s *Scheduler) recordCycle(outcome string) {
	if s.Metrics != nil {
		s.Metrics.CyclesTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Scheduler) logWarn(ctx context.Context, msg string, attrs ...any) {
	if s.Log != nil {
		s.Log.WarnCtx(ctx, msg, attrs...)
	}
}

// Stop clears the ticker; the current in-flight cycle (if any) completes
// before the goroutine exits (spec §4.12 graceful stop).
func (s *Scheduler) Stop() {
	s.stopped.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}
