// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"termtrust/internal/activity"
	"termtrust/internal/audit"
	"termtrust/internal/identity"
	"termtrust/internal/identity/device"
	"termtrust/internal/identity/resolver"
	"termtrust/internal/investigation"
	"termtrust/internal/jwtauth"
	"termtrust/internal/merge"
	"termtrust/internal/moderation"
	"termtrust/internal/network"
	"termtrust/internal/network/reputation"
	"termtrust/internal/platform/config"
	"termtrust/internal/platform/httpserver"
	"termtrust/internal/platform/logger"
	"termtrust/internal/platform/metrics"
	"termtrust/internal/platform/postgres"
	platformredis "termtrust/internal/platform/redis"
	"termtrust/internal/trust"
	httptransport "termtrust/internal/transport/http"
	"termtrust/pkg/platform/tx"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ready := map[string]httptransport.HealthChecker{}

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var (
		identities identity.Store
		users      identity.UserStore
		activities activity.Store
		obs        network.ObservationStore
		auditStore audit.Store
		runner     tx.Runner
	)
	pool, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		log.Error("connecting to postgres failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		identities = identity.NewPostgresStore(pool)
		users = identity.NewPostgresUserStore(pool)
		activities = activity.NewPostgresStore(pool)
		obs = network.NewPostgresObservationStore(pool)
		auditStore = audit.NewPostgresStore(pool)
		runner = postgres.NewPoolRunner(pool)
		ready["postgres"] = pool.Ping
		log.Info("using postgres stores")
	} else {
		identities = identity.NewMemoryStore()
		users = identity.NewMemoryUserStore()
		activities = activity.NewMemoryStore()
		obs = network.NewMemoryObservationStore()
		auditStore = audit.NewMemoryStore()
		runner = tx.NewSerialRunner()
		log.Warn("no postgres configured, using in-memory stores")
	}

	// Reputation lookup, with Redis caching when available.
	var lookup reputation.Lookup = reputation.NewHTTPClient(cfg.Reputation.BaseURL, cfg.Reputation.Timeout)
	if cfg.Redis.URL != "" {
		redisClient, err := platformredis.New(cfg.Redis)
		if err != nil {
			log.Error("connecting to redis failed", "error", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		lookup = reputation.NewCachedLookup(lookup, redisClient.Client, cfg.Reputation.CacheTTL, log)
		ready["redis"] = redisClient.Health
		log.Info("reputation cache enabled")
	}

	// Audit pipeline: rows always, Kafka fan-out when brokers are configured.
	var sink audit.Sink = audit.NopSink{}
	if cfg.Kafka.Brokers != "" {
		kafkaSink, err := audit.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Error("connecting to kafka failed", "error", err)
			os.Exit(1)
		}
		defer kafkaSink.Close()
		sink = kafkaSink
		log.Info("audit kafka sink enabled", "topic", cfg.Kafka.Topic)
	}
	auditor := audit.NewPipeline(auditStore, sink, m, log)
	go auditor.Run(ctx)

	// Services.
	res := resolver.NewService(
		identities, users, obs,
		device.NewService(true), lookup, auditor,
		m, log, cfg.Reputation.Timeout,
	)
	recorder := activity.NewRecorder(activities, identities)
	scorer := trust.NewService(identities, obs, activities, log)
	merges := merge.NewService(identities, users, activities, auditor, runner, m, log)
	investigations := investigation.NewService(identities, obs, activities, scorer, log)
	moderators := moderation.NewService(identities, auditor, log)
	jwtSvc := jwtauth.NewService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer)

	router := httptransport.NewRouter(httptransport.RouterDeps{
		Identity: httptransport.NewIdentityHandler(res, merges, users, log),
		Activity: httptransport.NewActivityHandler(recorder, identities, log),
		Admin:    httptransport.NewAdminHandler(investigations, merges, moderators, identities, log),
		JWT:      jwtSvc,
		Logger:   log,
		Ready:    ready,
	})

	srv := httpserver.New(cfg.HTTP.Addr, router)
	log.Info("starting termtrust", "addr", cfg.HTTP.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	auditor.Wait()
}
