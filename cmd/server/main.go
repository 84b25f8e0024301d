package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/lib/pq"

	"platecheck/internal/audit"
	"platecheck/internal/inspection"
	"platecheck/internal/jwtauth"
	"platecheck/internal/platform/config"
	"platecheck/internal/platform/httpserver"
	"platecheck/internal/platform/logger"
	"platecheck/internal/platform/metrics"
	"platecheck/internal/platform/redis"
	"platecheck/internal/reconcile"
	httptransport "platecheck/internal/transport/http"
	"platecheck/internal/vehicle"
	"platecheck/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	store := vehicle.NewMemoryStore()
	reconciler := reconcile.New()

	var remote vehicle.RemoteStore
	var outcomes audit.OutcomeStore = audit.NewMemoryOutcomeStore()
	switch {
	case cfg.PostgresDSN != "":
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		remote = vehicle.NewPostgresStore(db)
		outcomes = audit.NewPostgresOutcomeStore(db)
	case cfg.RedisURL != "":
		client, err := redis.New(cfg.RedisURL)
		if err != nil {
			log.Error("connect redis", "error", err)
			os.Exit(1)
		}
		defer client.Close()
		remote = vehicle.NewRedisStore(client)
	default:
		log.Warn("no remote persistence configured, running memory-only")
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer kp.Close()
		publisher = kp
	}

	audits := audit.NewService(store, outcomes, audit.NewJSONQREncoder(), log,
		audit.WithPublisher(publisher),
		audit.WithMetrics(m),
	)

	opts := []inspection.Option{inspection.WithMetrics(m)}
	if remote != nil {
		breaker := circuit.New("remote-store", circuit.WithFailureThreshold(3))
		opts = append(opts, inspection.WithRemote(vehicle.NewCircuitRemoteStore(remote, breaker, log)))
	}
	service := inspection.New(store, reconciler, audits, log, opts...)

	if err := service.Load(context.Background()); err != nil {
		// Memory-only startup still works; the auditor can retry a load by
		// re-uploading feeds.
		log.Warn("initial vehicle load failed", "error", err)
	}

	validator := jwtauth.NewValidator(cfg.JWTSigningKey)
	handler := httptransport.New(service, log, m, validator)
	router := httptransport.NewRouter(handler)

	srv := httpserver.New(cfg.Addr, router)
	log.Info("starting platecheck", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}
