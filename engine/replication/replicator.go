// Package replication periodically copies the local store's active floors
// (as listed by ActiveFloorIDs; disabled and maintenance floors are not
// copied) and all of its image-records and routes to a remote store, grounded on
// the teacher's engine/internal/pipeline scheduling style (a
// re-read-settings-then-run timer loop) and the scheduler package's
// skip-on-busy mutex idiom generalized to a reschedulable period.
package replication

import (
	"context"
	"fmt"
	"sync"
	"time"

	"aegis/engine/store"
	"aegis/engine/telemetry/events"
	"aegis/engine/telemetry/logging"
	"aegis/engine/telemetry/metrics"
)

// RemoteStore is the second connection replication upserts into
// (spec §4.13, §6 "remote store").
type RemoteStore interface {
	store.FloorStore
	store.ImageRecordStore
	store.RouteStore
}

// Replicator arms a self-rescheduling timer that replicates three
// collections to RemoteStore (spec §4.13).
type Replicator struct {
	Local    store.SettingsStore
	Floors   store.FloorStore
	Images   store.ImageRecordStore
	Routes   store.RouteStore
	Remote   RemoteStore

	Events  events.Bus
	Metrics *metrics.Metrics
	Log     logging.Logger
	Now     func() time.Time

	mu      sync.Mutex // rejects a Run that overlaps one already in progress
	stopCh  chan struct{}
	stopped sync.Once
}

// NewReplicator builds a Replicator; Start arms the first timer.
func NewReplicator() *Replicator {
	return &Replicator{Now: time.Now, stopCh: make(chan struct{})}
}

// Start reads Settings once; if cloud sync is disabled, no timer is armed
// (spec §4.13: "not started automatically"). Otherwise a goroutine loop
// re-reads Settings at each firing and reschedules to the (possibly
// changed) interval.
func (r *Replicator) Start(ctx context.Context) error {
	settings, err := r.Local.GetSettings(ctx)
	if err != nil {
		return fmt.Errorf("replication: read settings: %w", err)
	}
	if !settings.CloudSync.Enabled {
		return nil
	}
	go r.loop(ctx, settings.CloudSync.IntervalHours)
	return nil
}

func (r *Replicator) loop(ctx context.Context, intervalHours int) {
	period := intervalDuration(intervalHours)
	timer := time.NewTimer(period)
	defer timer.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
			settings, err := r.Local.GetSettings(ctx)
			if err != nil || !settings.CloudSync.Enabled {
				return // settings fetch failed, or sync was turned off: stop the loop
			}
			r.Run(ctx)
			timer.Reset(intervalDuration(settings.CloudSync.IntervalHours))
		}
	}
}

// TriggerNow runs a replication immediately, independent of the timer
// (SPEC_FULL.md §4.16, the manual-trigger external collaborator's entry
// point). Safe to call concurrently with the armed timer.
func (r *Replicator) TriggerNow(ctx context.Context) error {
	return r.Run(ctx)
}

// Run performs one full replication pass across all three collections. A
// mutex prevents overlapping replications (spec §4.13); Status/duration
// are recorded back into Settings regardless of outcome.
func (r *Replicator) Run(ctx context.Context) error {
	if !r.mu.TryLock() {
		return fmt.Errorf("replication: already in progress")
	}
	defer r.mu.Unlock()

	started := r.now()
	r.recordStatus(ctx, "in_progress", 0, "")

	err := r.replicateAll(ctx)

	duration := r.now().Sub(started)
	if err != nil {
		r.recordStatus(ctx, "failed", duration, err.Error())
		r.recordMetrics("failed", duration)
		return err
	}
	r.recordStatus(ctx, "success", duration, "")
	r.recordMetrics("success", duration)
	return nil
}

func (r *Replicator) replicateAll(ctx context.Context) error {
	floorIDs, err := r.Floors.ActiveFloorIDs(ctx)
	if err != nil {
		return fmt.Errorf("replication: list floors: %w", err)
	}
	for _, id := range floorIDs {
		f, err := r.Floors.GetFloor(ctx, id)
		if err != nil {
			return fmt.Errorf("replication: read floor %s: %w", id, err)
		}
		if err := r.Remote.SaveFloor(ctx, f); err != nil {
			return fmt.Errorf("replication: upsert floor %s: %w", id, err)
		}
	}

	images, err := r.Images.ImageRecords(ctx)
	if err != nil {
		return fmt.Errorf("replication: list image records: %w", err)
	}
	for i := range images {
		if err := r.Remote.SaveImageRecord(ctx, &images[i]); err != nil {
			return fmt.Errorf("replication: upsert image record %s: %w", images[i].ID, err)
		}
	}

	routes, err := r.Routes.RouteDocuments(ctx)
	if err != nil {
		return fmt.Errorf("replication: list route documents: %w", err)
	}
	for i := range routes {
		if err := r.Remote.SaveRouteDocument(ctx, &routes[i]); err != nil {
			return fmt.Errorf("replication: upsert route document %s: %w", routes[i].ID, err)
		}
	}
	return nil
}

func (r *Replicator) recordStatus(ctx context.Context, status string, duration time.Duration, errMsg string) {
	settings, err := r.Local.GetSettings(ctx)
	if err != nil {
		return
	}
	now := r.now()
	settings.CloudSync.LastSyncAt = &now
	settings.CloudSync.LastSyncStatus = status
	settings.CloudSync.LastSyncError = errMsg
	settings.CloudSync.LastSyncDuration = duration
	_ = r.Local.SaveSettings(ctx, settings)

	if r.Events != nil {
		_ = r.Events.PublishCtx(ctx, events.Event{
			Category: events.CategoryReplication,
			Type:     "replication_" + status,
			Severity: severityForStatus(status),
		})
	}
}

func (r *Replicator) recordMetrics(outcome string, duration time.Duration) {
	if r.Metrics == nil {
		return
	}
	r.Metrics.ReplicationRuns.WithLabelValues(outcome).Inc()
	r.Metrics.ReplicationDur.Observe(duration.Seconds())
}

// Stop halts the reschedule loop; in-flight replications complete.
func (r *Replicator) Stop() {
	r.stopped.Do(func() { close(r.stopCh) })
}

func (r *Replicator) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func intervalDuration(hours int) time.Duration {
	if hours <= 0 {
		hours = 24
	}
	return time.Duration(hours) * time.Hour
}

func severityForStatus(status string) string {
	if status == "failed" {
		return "warn"
	}
	return "info"
}
