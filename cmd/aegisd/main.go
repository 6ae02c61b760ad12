// Command aegisd runs the AEGIS evacuation-routing core as a long-lived
// process: the scheduler tick, the websocket dispatch hub, and (if
// configured) cloud replication, grounded on the teacher's
// cli/cmd/ariadne/main.go entrypoint shape — flag parsing, a
// double-signal graceful/forced shutdown, and best-effort metrics/health
// HTTP servers that stop with the root context.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"aegis/engine"
	"aegis/engine/ai"
	"aegis/engine/config"
	"aegis/engine/store"
)

func main() {
	var (
		overlayPath string
		remoteDSN   string
		addr        string
		metricsAddr string
		healthAddr  string
		serviceName string
		environment string
		showVersion bool
	)
	flag.StringVar(&overlayPath, "config-overlay", os.Getenv("CONFIG_OVERLAY_PATH"), "Optional YAML overlay file, hot-reloaded on write")
	flag.StringVar(&remoteDSN, "remote-store", os.Getenv("REMOTE_STORE_DSN"), "Path to the remote bbolt store (enables cloud replication)")
	flag.StringVar(&addr, "addr", envDefault("AEGIS_ADDR", ":8080"), "Address to serve /ws/routes on")
	flag.StringVar(&metricsAddr, "metrics-addr", envDefault("AEGIS_METRICS_ADDR", ":9090"), "Address to serve /metrics on (empty disables)")
	flag.StringVar(&healthAddr, "health-addr", envDefault("AEGIS_HEALTH_ADDR", ""), "Address to serve /healthz on if different from -addr (empty mounts on -addr)")
	flag.StringVar(&serviceName, "service-name", envDefault("AEGIS_SERVICE_NAME", "aegis"), "Service name reported in traces")
	flag.StringVar(&environment, "environment", envDefault("AEGIS_ENVIRONMENT", "production"), "Deployment environment reported in traces")
	flag.BoolVar(&showVersion, "version", false, "Show version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println("aegisd - evacuation routing core")
		return
	}

	cfg := config.FromEnv()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

	db, err := store.OpenBolt(cfg.StoreDSN)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	var remote *store.Bolt
	if remoteDSN != "" {
		remote, err = store.OpenBolt(remoteDSN)
		if err != nil {
			log.Fatalf("open remote store: %v", err)
		}
		defer func() { _ = remote.Close() }()
	}

	var localDetector, cloudDetector ai.Detector
	if cfg.LocalAIEndpoint != "" {
		localDetector = ai.NewHTTPDetector(cfg.LocalAIEndpoint, cfg.AIAPIKey, nil)
	}
	if cfg.CloudAIEndpoint != "" {
		cloudDetector = ai.NewHTTPDetector(cfg.CloudAIEndpoint, cfg.AIAPIKey, nil)
	}

	opts := engine.Options{
		Config:        cfg,
		OverlayPath:   overlayPath,
		Store:         db,
		LocalDetector: localDetector,
		CloudDetector: cloudDetector,
		ServiceName:   serviceName,
		Environment:   environment,
		Logger:        logger,
	}
	if remote != nil {
		opts.RemoteStore = remote
	}

	eng, err := engine.New(opts)
	if err != nil {
		log.Fatalf("create engine: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		log.Println("signal received; initiating graceful shutdown...")
		cancel()
		<-sigCh
		log.Println("second signal received; forcing exit")
		os.Exit(1)
	}()

	if err := eng.Start(ctx); err != nil {
		log.Fatalf("start engine: %v", err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws/routes", eng.Hub().ServeWS)
	if healthAddr == "" {
		mux.Handle("/healthz", eng.HealthzHandler())
	}
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Printf("serving /ws/routes on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("serve: %v", err)
		}
	}()

	if healthAddr != "" {
		hmux := http.NewServeMux()
		hmux.Handle("/healthz", eng.HealthzHandler())
		hsrv := &http.Server{Addr: healthAddr, Handler: hmux}
		go func() {
			<-ctx.Done()
			_ = hsrv.Shutdown(context.Background())
		}()
		go func() {
			log.Printf("serving /healthz on %s", healthAddr)
			if err := hsrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("serve health: %v", err)
			}
		}()
	}

	if metricsAddr != "" {
		mmux := http.NewServeMux()
		mmux.Handle("/metrics", eng.MetricsHandler())
		msrv := &http.Server{Addr: metricsAddr, Handler: mmux}
		go func() {
			<-ctx.Done()
			_ = msrv.Shutdown(context.Background())
		}()
		go func() {
			log.Printf("serving /metrics on %s", metricsAddr)
			if err := msrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("serve metrics: %v", err)
			}
		}()
	}

	<-ctx.Done()
	eng.Stop()
	log.Println("shutdown complete")
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
