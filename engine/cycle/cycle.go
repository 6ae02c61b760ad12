// Package cycle runs one per-floor acquire-fuse-route-dispatch pass,
// grounded on the teacher's engine/pipeline orchestrator: a stage sequence
// over a work item where each stage's failure is isolated and logged
// rather than aborting the remaining items (there, per-URL crawl stages;
// here, per-camera capture stages feeding one floor-wide route recompute).
package cycle

import (
	"context"
	"fmt"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"

	"aegis/engine/ai"
	"aegis/engine/capture"
	"aegis/engine/errs"
	"aegis/engine/graph"
	"aegis/engine/health"
	"aegis/engine/models"
	"aegis/engine/storage"
	"aegis/engine/telemetry/events"
	"aegis/engine/telemetry/logging"
	"aegis/engine/telemetry/metrics"
	"aegis/engine/telemetry/tracing"
)

// FloorStore is the subset of persistence cycle needs on a Floor.
type FloorStore interface {
	GetFloor(ctx context.Context, floorID string) (*models.Floor, error)
	SaveFloor(ctx context.Context, f *models.Floor) error
}

// ImageRecordStore persists per-capture AI fusion records.
type ImageRecordStore interface {
	SaveImageRecord(ctx context.Context, rec *models.ImageRecord) error
}

// RouteStore persists the append-only per-cycle route documents.
type RouteStore interface {
	SaveRouteDocument(ctx context.Context, doc *models.RouteDocument) error
}

// Dispatcher is the downstream consumer of a computed envelope
// (engine/dispatch.Selector in production). The bool return reports whether
// the radio fallback path fired, surfaced on Outcome.RadioInvoked.
type Dispatcher interface {
	Dispatch(ctx context.Context, floorID string, env models.Envelope) (radioInvoked bool, err error)
}

// Runner executes one per-floor cycle (spec §4.8).
type Runner struct {
	Floors     FloorStore
	Images     ImageRecordStore
	Routes     RouteStore
	Dispatch   Dispatcher
	Acquirer   capture.Acquirer
	Placer     *storage.Placer
	Uploader   storage.Uploader
	Fuser      *ai.Fuser
	Health     *health.Tracker
	Policy     graph.WeightPolicy
	// PolicyFunc, when set, is consulted fresh on every cycle instead of
	// Policy, so a hot-reloaded weight policy (config.Watcher) takes
	// effect without a restart.
	PolicyFunc func() graph.WeightPolicy
	CaptureDir string
	// StreamTemplate is the {base} used to derive a camera's stream URL
	// when it has no explicit StreamURL (spec §6).
	StreamTemplate string

	Events  events.Bus
	Metrics *metrics.Metrics
	Log     logging.Logger
	Now     func() time.Time
	// Tracer, when set, wraps each floor's cycle in a span (SPEC_FULL.md §3's
	// CycleTiming record).
	Tracer oteltrace.Tracer
}

// Outcome summarizes one floor's cycle for the scheduler's timing record.
type Outcome struct {
	FloorID       string
	Skipped       string
	CamerasTried  int
	CamerasFailed int
	RoutesSkipped string
	RadioInvoked  bool
	Duration      time.Duration
}

// Run executes steps 1-10 of the per-floor cycle against the named floor.
func (r *Runner) Run(ctx context.Context, floorID string, cloudProcessingEnabled bool) (Outcome, error) {
	started := r.now()
	out := Outcome{FloorID: floorID}

	if r.Tracer != nil {
		var span oteltrace.Span
		ctx, span = tracing.StartCycle(ctx, r.Tracer, floorID)
		defer span.End()
	}

	floor, err := r.Floors.GetFloor(ctx, floorID)
	if err != nil {
		return out, fmt.Errorf("%w: load floor %s: %v", errs.ErrPersist, floorID, err)
	}
	if !floor.Active() {
		out.Skipped = "floor not active"
		return out, nil
	}

	floor.ResetHazards() // step 1

	cameras := floor.ActiveCameras() // step 2
	out.CamerasTried = len(cameras)
	for _, cam := range cameras {
		if err := r.runCamera(ctx, floor, cam, cloudProcessingEnabled); err != nil {
			out.CamerasFailed++
			r.logWarn(ctx, "cycle: camera stage failed", "floor_id", floorID, "camera_id", cam.ID, "err", err.Error())
		}
	}

	persistStart := r.now()
	if err := r.Floors.SaveFloor(ctx, floor); err != nil { // step 4
		r.logWarn(ctx, "cycle: persist floor failed", "floor_id", floorID, "err", err.Error())
	}
	r.observe(floorID, "persist", r.now().Sub(persistStart))

	starts := floor.ActiveScreenNodes() // step 6
	if len(starts) == 0 {
		out.RoutesSkipped = "no active screens"
		out.Duration = r.now().Sub(started)
		return out, nil
	}

	in := r.buildGraphInput(floor) // step 5
	exits := make(map[string]struct{}, len(floor.ExitPoints))
	for _, id := range floor.ExitPoints {
		exits[id] = struct{}{}
	}

	graphStart := r.now()
	result := graph.Run(in, starts, exits) // step 7
	r.observe(floorID, "graph", r.now().Sub(graphStart))
	if result.Warning != "" {
		out.RoutesSkipped = result.Warning
		out.Duration = r.now().Sub(started)
		return out, nil
	}

	doc := r.buildRouteDocument(floorID, result) // steps 8-9
	routePersistStart := r.now()
	if err := r.Routes.SaveRouteDocument(ctx, doc); err != nil {
		r.logWarn(ctx, "cycle: persist route document failed", "floor_id", floorID, "err", err.Error())
	}
	r.observe(floorID, "persist", r.now().Sub(routePersistStart))
	r.recordRouteMetrics(floorID, doc)

	env := models.NewEnvelope(floorID, floor.Name, doc)
	if r.Dispatch != nil {
		dispatchStart := r.now()
		radioInvoked, err := r.Dispatch.Dispatch(ctx, floorID, env) // step 10
		r.observe(floorID, "dispatch", r.now().Sub(dispatchStart))
		out.RadioInvoked = radioInvoked
		if err != nil {
			r.logWarn(ctx, "cycle: dispatch failed", "floor_id", floorID, "err", err.Error())
		}
	}

	out.Duration = r.now().Sub(started)
	if r.Log != nil {
		r.Log.InfoCtx(ctx, "cycle: floor complete", "floor_id", floorID, "duration_ms", out.Duration.Milliseconds(), "radio_invoked", out.RadioInvoked)
	}
	r.publish(ctx, events.Event{
		Category: events.CategoryCycle,
		Type:     "floor_cycle_complete",
		Severity: "info",
		Labels:   map[string]string{"floor_id": floorID},
		Fields: map[string]interface{}{
			"cameras_tried":  out.CamerasTried,
			"cameras_failed": out.CamerasFailed,
			"duration_ms":    out.Duration.Milliseconds(),
			"radio_invoked":  out.RadioInvoked,
		},
	})
	return out, nil
}

// runCamera executes step 3's per-camera sequence: acquire -> place ->
// upload -> persist ImageRecord -> fuse -> update edge -> update health.
func (r *Runner) runCamera(ctx context.Context, floor *models.Floor, cam models.Camera, cloudProcessingEnabled bool) error {
	now := r.now()

	captureStart := r.now()
	streamURL := capture.StreamURL(cam.StreamURL, r.StreamTemplate, cam.ID)
	localPath, err := r.Acquirer.Acquire(ctx, streamURL, floor.ID, cam.ID, r.CaptureDir)
	if err != nil {
		r.recordFailure(cam.ID)
		return err
	}

	placement, err := r.Placer.Place(floor.ID, cam.ID, localPath)
	if err != nil {
		r.recordFailure(cam.ID)
		return err
	}
	r.observe(floor.ID, "capture", r.now().Sub(captureStart))

	var cloudURL string
	if cloudProcessingEnabled {
		folderKey := storage.FolderKey(now, floor.ID, cam.ID)
		up, uerr := storage.UploadOrNil(ctx, r.Uploader, placement.AbsolutePath, folderKey)
		if uerr != nil {
			r.logWarn(ctx, "cycle: upload failed, continuing local-only", "camera_id", cam.ID, "err", uerr.Error())
		}
		if up != nil {
			cloudURL = up.URL
		}
	}

	edge := floor.EdgeByID(cam.EdgeID)
	if edge == nil {
		r.recordFailure(cam.ID)
		return fmt.Errorf("%w: camera %s references unknown edge %s", errs.ErrGraph, cam.ID, cam.EdgeID)
	}

	fuseStart := r.now()
	fused, ferr := r.Fuser.Fuse(ctx, placement.AbsolutePath, cloudURL, cam.ID, cam.EdgeID, cloudProcessingEnabled)
	r.observe(floor.ID, "fuse", r.now().Sub(fuseStart))
	if ferr != nil {
		r.logWarn(ctx, "cycle: AI fusion degraded to zero snapshot", "camera_id", cam.ID, "err", ferr.Error())
	}

	rec := &models.ImageRecord{
		ID:          fmt.Sprintf("%s-%s-%d", floor.ID, cam.ID, now.UnixNano()),
		FloorID:     floor.ID,
		CameraID:    cam.ID,
		EdgeID:      cam.EdgeID,
		LocalPath:   placement.RelativePath,
		CloudURL:    cloudURL,
		Snapshot:    models.EdgeCurrent{People: fused.PeopleCount, Fire: fused.FireProb, Smoke: fused.SmokeProb},
		Processed:   true,
		CapturedAt:  now,
		ProcessedAt: r.now(),
	}
	imagePersistStart := r.now()
	if err := r.Images.SaveImageRecord(ctx, rec); err != nil {
		r.logWarn(ctx, "cycle: persist image record failed", "camera_id", cam.ID, "err", err.Error())
	}
	r.observe(floor.ID, "persist", r.now().Sub(imagePersistStart))

	edge.Current = rec.Snapshot

	obs := r.recordSuccess(cam.ID)
	r.applyHealthToFloor(floor, cam.ID, obs)
	return nil
}

func (r *Runner) recordFailure(cameraID string) health.Observation {
	obs := r.Health.RecordFailure(cameraID)
	if r.Metrics != nil {
		r.Metrics.CameraFailures.WithLabelValues(cameraID).Inc()
		if obs.AutoDisabled {
			r.Metrics.CameraAutoDisable.WithLabelValues(cameraID).Inc()
		}
	}
	return obs
}

func (r *Runner) recordSuccess(cameraID string) health.Observation {
	return r.Health.RecordSuccess(cameraID)
}

// applyHealthToFloor writes the tracker's observation back onto the
// in-memory Camera record so step 4's SaveFloor persists the bookkeeping.
func (r *Runner) applyHealthToFloor(floor *models.Floor, cameraID string, obs health.Observation) {
	for i := range floor.Cameras {
		if floor.Cameras[i].ID != cameraID {
			continue
		}
		c := &floor.Cameras[i]
		c.FailureCount = obs.FailureCount
		c.UpdatedAt = r.now()
		if !obs.LastFailure.IsZero() {
			lf := obs.LastFailure
			c.LastFailure = &lf
		}
		if !obs.LastSuccess.IsZero() {
			ls := obs.LastSuccess
			c.LastSuccess = &ls
		}
		if obs.AutoDisabled {
			c.Status = models.CameraError
			now := r.now()
			c.DisabledAt = &now
			c.DisabledBy = "system"
			c.DisabledReason = fmt.Sprintf("Auto-disabled after %d consecutive failures", obs.FailureCount)
			r.publish(context.Background(), events.Event{
				Category: events.CategoryCamera,
				Type:     "camera_auto_disabled",
				Severity: "warn",
				Labels:   map[string]string{"camera_id": cameraID},
			})
		} else if obs.Status == models.CameraActive {
			c.Status = models.CameraActive
		}
		return
	}
}

func (r *Runner) buildGraphInput(floor *models.Floor) graph.Input {
	nodes := make([]graph.GraphNode, 0, len(floor.Nodes))
	for _, n := range floor.Nodes {
		nodes = append(nodes, graph.GraphNode{ID: n.ID, X: n.X, Y: n.Y})
	}
	edges := make([]graph.GraphEdge, 0, len(floor.Edges))
	for _, e := range floor.Edges {
		edges = append(edges, graph.GraphEdge{
			ID: e.ID, From: e.From, To: e.To,
			Snapshot: graph.EdgeSnapshot{
				StaticWeight:    e.Weight,
				PeopleThreshold: e.Thresholds.People,
				FireThreshold:   e.Thresholds.Fire,
				SmokeThreshold:  e.Thresholds.Smoke,
				People:          e.Current.People,
				Fire:            e.Current.Fire,
				Smoke:           e.Current.Smoke,
			},
		})
	}
	var scale *graph.Scale
	if floor.Scale.Complete() {
		scale = &graph.Scale{
			WidthPixels:  floor.Scale.WidthPixels,
			HeightPixels: floor.Scale.HeightPixels,
			WidthMeters:  floor.Scale.WidthMeters,
			HeightMeters: floor.Scale.HeightMeters,
		}
	}
	policy := r.Policy
	if r.PolicyFunc != nil {
		policy = r.PolicyFunc()
	}
	return graph.Input{Nodes: nodes, Edges: edges, Scale: scale, Policy: policy}
}

func (r *Runner) buildRouteDocument(floorID string, result graph.Result) *models.RouteDocument {
	now := r.now()
	doc := &models.RouteDocument{
		ID:         fmt.Sprintf("%s-%d", floorID, now.UnixNano()),
		FloorID:    floorID,
		ComputedAt: now,
	}
	for _, rr := range result.Routes {
		if rr.Skipped != "" {
			continue
		}
		route := models.Route{
			StartNode:         rr.StartNode,
			ExitNode:          rr.ExitNode,
			Path:              rr.Path,
			Edges:             rr.Edges,
			Distance:          rr.Distance,
			DistanceMeters:    rr.DistanceMeters,
			HazardLevel:       models.HazardLevel(rr.HazardLevel),
			ExceedsThresholds: rr.ExceedsThresholds,
		}
		for _, d := range rr.EdgeDetails {
			route.EdgeDetails = append(route.EdgeDetails, models.EdgeHazardDetail{
				EdgeID: d.EdgeID, DistanceMeters: d.DistanceMeters, Weight: d.Weight,
				Fire: d.Fire, Smoke: d.Smoke, People: d.People,
				Exceeds: d.Exceeds, ThresholdRatio: d.ThresholdRatio,
			})
		}
		doc.Routes = append(doc.Routes, route)
		doc.OverallHazardLevel = models.WorseHazard(doc.OverallHazardLevel, route.HazardLevel)
		if route.ExceedsThresholds {
			doc.Emergency = true
		}
	}
	return doc
}

func (r *Runner) recordRouteMetrics(floorID string, doc *models.RouteDocument) {
	if r.Metrics == nil {
		return
	}
	for _, route := range doc.Routes {
		r.Metrics.RoutesComputed.WithLabelValues(floorID, string(route.HazardLevel)).Inc()
	}
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logWarn(ctx context.Context, msg string, attrs ...any) {
	if r.Log != nil {
		r.Log.WarnCtx(ctx, msg, attrs...)
	}
}

func (r *Runner) publish(ctx context.Context, ev events.Event) {
	if r.Events != nil {
		_ = r.Events.PublishCtx(ctx, ev)
	}
}

// observe records one stage's duration on the per-floor cycle histogram
// (SPEC_FULL.md §3's CycleTiming record: capture, fuse, graph, persist,
// dispatch).
func (r *Runner) observe(floorID, stage string, d time.Duration) {
	if r.Metrics != nil {
		r.Metrics.CycleDuration.WithLabelValues(floorID, stage).Observe(d.Seconds())
	}
}
