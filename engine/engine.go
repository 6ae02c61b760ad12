// Package engine composes every AEGIS subsystem behind a single facade,
// grounded on the teacher's engine/engine.go Engine struct: one type that
// owns the pipeline/limiter/resources trio there, and the
// scheduler/cycle/dispatch/replication trio here, wired once at startup
// and exposed to cmd/aegisd as Start/Stop.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"aegis/engine/ai"
	"aegis/engine/capture"
	"aegis/engine/config"
	"aegis/engine/cycle"
	"aegis/engine/dispatch"
	"aegis/engine/graph"
	"aegis/engine/health"
	"aegis/engine/radio"
	"aegis/engine/replication"
	"aegis/engine/scheduler"
	"aegis/engine/storage"
	"aegis/engine/store"
	"aegis/engine/telemetry/events"
	"aegis/engine/telemetry/logging"
	"aegis/engine/telemetry/metrics"
	"aegis/engine/telemetry/tracing"

	prom "github.com/prometheus/client_golang/prometheus"
)

// Options configures Engine construction. Callers provide only what
// production doesn't default for them (detectors, remote store, the
// admin-facing floor/presence lookups are out of the engine's scope per
// spec §1/§6 — those belong to the external admin surface).
type Options struct {
	Config config.Config
	// OverlayPath, if non-empty, is watched via fsnotify for the lifetime of
	// the engine (spec SPEC_FULL.md §4.0). Only the weight policy is read
	// from the watcher on every cycle; detector timeouts, radio framing and
	// the camera failure threshold are taken from it once, in New.
	OverlayPath string

	Store         *store.Bolt
	RemoteStore   replication.RemoteStore // nil disables cloud replication regardless of settings
	LocalDetector ai.Detector
	CloudDetector ai.Detector
	Uploader      storage.Uploader // nil disables cloud upload regardless of settings

	ServiceName string
	Environment string
	Logger      *slog.Logger
}

// Engine owns every long-running subsystem: the scheduler (and the cycle
// runner it drives), the websocket dispatch hub, and the cloud replicator.
type Engine struct {
	cfg     config.Config
	store   *store.Bolt
	watcher *config.Watcher

	scheduler  *scheduler.Scheduler
	replicator *replication.Replicator
	hub        *dispatch.Hub
	presence   *dispatch.Presence

	events  events.Bus
	metrics *metrics.Metrics
	log     logging.Logger
	slog    *slog.Logger

	startedAt time.Time
}

// New wires every subsystem together per SPEC_FULL.md's component table.
func New(opts Options) (*Engine, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	watcher, err := config.NewWatcher(opts.OverlayPath, opts.Config.Mutable)
	if err != nil {
		return nil, fmt.Errorf("engine: config watcher: %w", err)
	}
	opts.Config.Mutable = watcher.Current()

	reg := prom.NewRegistry()
	m := metrics.New(reg)
	bus := events.NewBus()
	correlated := logging.New(opts.Logger)
	tracer := tracing.New(opts.ServiceName, opts.Environment) // also registers the process tracer provider

	presence := dispatch.NewPresence(opts.Store)
	hub := dispatch.NewHub(presence, opts.Logger)

	framer := radio.NewFramer(radio.Config{
		OutDir:        opts.Config.LocalStorageDir + "/radio",
		PadLead:       opts.Config.Mutable.RadioPadLead,
		PadTrail:      opts.Config.Mutable.RadioPadTrail,
		Timeout:       opts.Config.Mutable.RadioTimeout,
		KillGrace:     opts.Config.Mutable.RadioKillGrace,
		ModulatorPath: opts.Config.USRPModulatorPath,
		UHDImagesDir:  opts.Config.USRPImagesDir,
		LDPreload:     opts.Config.USRPLDPreload,
	})

	selector := dispatch.NewSelector(hub, presence, framer)
	selector.Events = bus
	selector.Metrics = m
	selector.Log = opts.Logger

	fuser := ai.NewFuser(opts.LocalDetector, opts.CloudDetector)
	fuser.LocalTimeout = opts.Config.Mutable.LocalDetectorTimeout
	fuser.CloudTimeout = opts.Config.Mutable.CloudDetectorTimeout

	tracker := health.NewTracker()
	tracker.FailureThreshold = opts.Config.Mutable.CameraFailureThreshold

	runner := &cycle.Runner{
		Floors:         opts.Store,
		Images:         opts.Store,
		Routes:         opts.Store,
		Dispatch:       selector,
		Acquirer:       capture.NewHTTPAcquirer(20 * time.Second),
		Placer:         storage.NewPlacer(opts.Config.LocalStorageDir),
		Uploader:       opts.Uploader,
		Fuser:          fuser,
		Health:         tracker,
		Policy:         opts.Config.Mutable.Weight,
		PolicyFunc:     func() graph.WeightPolicy { return watcher.Current().Weight },
		CaptureDir:     opts.Config.LocalStorageDir + "/tmp",
		StreamTemplate: opts.Config.RTSPTemplate,
		Events:         bus,
		Metrics:        m,
		Log:            correlated,
		Tracer:         tracer,
	}

	sched := scheduler.NewScheduler()
	sched.Interval = time.Duration(opts.Config.CaptureIntervalSec) * time.Second
	sched.Settings = opts.Store
	sched.Floors = opts.Store
	sched.Runner = runner
	sched.Events = bus
	sched.Metrics = m
	sched.Log = correlated

	var repl *replication.Replicator
	if opts.RemoteStore != nil {
		repl = replication.NewReplicator()
		repl.Local = opts.Store
		repl.Floors = opts.Store
		repl.Images = opts.Store
		repl.Routes = opts.Store
		repl.Remote = opts.RemoteStore
		repl.Events = bus
		repl.Metrics = m
		repl.Log = correlated
	}

	return &Engine{
		cfg:        opts.Config,
		store:      opts.Store,
		watcher:    watcher,
		scheduler:  sched,
		replicator: repl,
		hub:        hub,
		presence:   presence,
		events:     bus,
		metrics:    m,
		log:        correlated,
		slog:       opts.Logger,
	}, nil
}

// Start launches the scheduler and, if configured, the cloud replicator.
func (e *Engine) Start(ctx context.Context) error {
	e.startedAt = time.Now()
	e.scheduler.Start(ctx)
	if e.replicator != nil {
		if err := e.replicator.Start(ctx); err != nil {
			return fmt.Errorf("engine: start replicator: %w", err)
		}
	}
	return nil
}

// Stop gracefully halts the scheduler and replicator.
func (e *Engine) Stop() {
	e.scheduler.Stop()
	if e.replicator != nil {
		e.replicator.Stop()
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
}

// Hub exposes the websocket dispatch hub so cmd/aegisd can mount
// /ws/routes on its HTTP server.
func (e *Engine) Hub() *dispatch.Hub { return e.hub }

// MetricsHandler exposes the Prometheus scrape endpoint.
func (e *Engine) MetricsHandler() http.Handler { return e.metrics.Handler() }

// HealthzHandler reports process liveness (spec SPEC_FULL.md §4.14).
func (e *Engine) HealthzHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// TriggerReplication invokes the replicator out of band, satisfying
// SPEC_FULL.md §4.16's manual trigger entry point.
func (e *Engine) TriggerReplication(ctx context.Context) error {
	if e.replicator == nil {
		return fmt.Errorf("engine: cloud replication is not configured")
	}
	return e.replicator.TriggerNow(ctx)
}

// ResetCamera clears the health tracker's failure streak and tripped
// breaker for a camera (SPEC_FULL.md §4.15). It does not change the
// persisted Camera record; its stored status stays as it is.
func (e *Engine) ResetCamera(cameraID, operator string) health.Observation {
	return e.scheduler.Runner.Health.Reset(cameraID, operator)
}
