package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"custodian/internal/access"
	accessmetrics "custodian/internal/access/metrics"
	"custodian/internal/audit"
	auditmetrics "custodian/internal/audit/metrics"
	auditmemory "custodian/internal/audit/store/memory"
	auditpostgres "custodian/internal/audit/store/postgres"
	"custodian/internal/audit/recorder"
	"custodian/internal/audit/relay"
	"custodian/internal/entity"
	entitymemory "custodian/internal/entity/store/memory"
	entitypostgres "custodian/internal/entity/store/postgres"
	jwttoken "custodian/internal/jwt_token"
	"custodian/internal/platform/config"
	"custodian/internal/platform/httpserver"
	kafkaproducer "custodian/internal/platform/kafka/producer"
	"custodian/internal/platform/logger"
	platformredis "custodian/internal/platform/redis"
	retentionmetrics "custodian/internal/retention/metrics"
	"custodian/internal/retention/sweeper"
	httptransport "custodian/internal/transport/http"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		auditStore  audit.Store
		outboxStore audit.OutboxStore
		resolver    entity.Resolver
		retentionSt entity.RetentionStore
	)
	if cfg.PostgresDSN != "" {
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("open postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		pgAudit := auditpostgres.New(db)
		pgEntity := entitypostgres.New(db)
		auditStore, outboxStore = pgAudit, pgAudit
		resolver, retentionSt = pgEntity, pgEntity
	} else {
		log.Warn("POSTGRES_DSN not set, using in-memory stores")
		memAudit := auditmemory.NewInMemoryStore()
		memEntity := entitymemory.NewInMemoryStore()
		auditStore = memAudit
		resolver, retentionSt = memEntity, memEntity
	}

	rec, err := recorder.New(auditStore,
		recorder.WithLogger(log),
		recorder.WithMetrics(auditmetrics.New()),
	)
	if err != nil {
		log.Error("build audit recorder", "error", err)
		os.Exit(1)
	}

	accessSvc, err := access.New(resolver, rec, log,
		access.WithMetrics(accessmetrics.New()),
		access.WithLookupTimeout(cfg.LookupTimeout),
	)
	if err != nil {
		log.Error("build access service", "error", err)
		os.Exit(1)
	}

	sweepOpts := []sweeper.Option{
		sweeper.WithInterval(cfg.SweepInterval),
		sweeper.WithMetrics(retentionmetrics.New()),
	}
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("connect redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		hostname, _ := os.Hostname()
		sweepOpts = append(sweepOpts,
			sweeper.WithLocker(sweeper.NewRedisLocker(redisClient.Client, hostname, 10*time.Minute)))
	}
	sw := sweeper.New(auditStore, retentionSt, log, sweepOpts...)

	jwtSvc := jwttoken.NewJWTService(cfg.JWTSigningKey, "custodian", "custodian-api")
	handler := httptransport.NewHandler(accessSvc, audit.NewService(auditStore), log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, jwtSvc))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting custodian", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sw.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	// The relay needs both Kafka brokers and an outbox-backed store.
	if len(cfg.KafkaBrokers) > 0 && outboxStore != nil {
		producer, err := kafkaproducer.New(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("connect kafka", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		rel := relay.New(outboxStore, producer, log, relay.WithInterval(cfg.RelayInterval))
		g.Go(func() error {
			err := rel.Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}
