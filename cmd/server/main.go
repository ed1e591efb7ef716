// Command server wires the calculation engine, the interview surface, and
// the audit pipeline into one HTTP service. Backends degrade gracefully:
// without a postgres DSN, redis URL, or Kafka brokers the service runs on
// memory implementations, which is the dev and test mode.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"canlaw/internal/audit"
	"canlaw/internal/calc"
	calcmetrics "canlaw/internal/calc/metrics"
	casehandler "canlaw/internal/casefile/handler"
	"canlaw/internal/casefile/lock"
	casemetrics "canlaw/internal/casefile/metrics"
	caseservice "canlaw/internal/casefile/service"
	casestore "canlaw/internal/casefile/store"
	httpapi "canlaw/internal/http"
	"canlaw/internal/interview"
	interviewhandler "canlaw/internal/interview/handler"
	"canlaw/internal/jwtauth"
	"canlaw/internal/platform/config"
	"canlaw/internal/platform/httpserver"
	"canlaw/internal/platform/kafka"
	"canlaw/internal/platform/logger"
	"canlaw/internal/platform/postgres"
	platformredis "canlaw/internal/platform/redis"
	"canlaw/internal/resolver"
	slothandler "canlaw/internal/slot/handler"
	slotmetrics "canlaw/internal/slot/metrics"
	slotstore "canlaw/internal/slot/store"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Error("postgres init failed", "error", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
	}

	rdb, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if rdb != nil {
		defer rdb.Close()
	}

	// Slot registry, optionally cached.
	var registry slotstore.Registry
	if db != nil {
		registry = slotstore.NewPostgresRegistry(db)
	} else {
		registry = slotstore.NewMemoryRegistry()
		log.Info("postgres not configured, using in-memory slot registry")
	}
	if rdb != nil {
		registry = slotstore.NewCachedRegistry(registry, rdb.Client, cfg.SlotCacheTTL,
			slotstore.WithCacheLogger(log),
			slotstore.WithCacheMetrics(slotmetrics.New()),
		)
	}
	if cfg.SeedFile != "" {
		if err := seedRegistry(ctx, registry, cfg.SeedFile); err != nil {
			log.Error("seed load failed", "file", cfg.SeedFile, "error", err)
			os.Exit(1)
		}
		log.Info("slot registry seeded", "file", cfg.SeedFile)
	}

	// Case persistence and locking.
	var cases casestore.Store
	if db != nil {
		cases = casestore.NewPostgresStore(db)
	} else {
		cases = casestore.NewMemoryStore()
	}
	var locker lock.Locker
	if rdb != nil {
		locker = lock.NewRedisLocker(rdb.Client, cfg.LockTTL)
	} else {
		locker = lock.NewMemoryLocker()
	}

	// Audit trail: outbox in postgres relayed to Kafka when configured.
	var auditStore audit.Store
	var pgAudit *audit.PostgresStore
	if db != nil {
		pgAudit = audit.NewPostgresStore(db)
		auditStore = pgAudit
	} else {
		auditStore = audit.NewMemoryStore()
	}
	publisher := audit.NewPublisher(auditStore, audit.WithPublisherLogger(log))

	group, runCtx := errgroup.WithContext(ctx)
	if len(cfg.KafkaBrokers) > 0 && pgAudit != nil {
		if err := kafka.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.AuditTopic, 3, 1); err != nil {
			log.Error("audit topic ensure failed", "error", err)
			os.Exit(1)
		}
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			log.Error("kafka producer init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close()
		relay := audit.NewRelay(pgAudit, producer, cfg.AuditTopic,
			audit.WithRelayInterval(cfg.RelayInterval),
			audit.WithRelayBatchSize(cfg.RelayBatchSize),
			audit.WithRelayLogger(log),
		)
		group.Go(func() error {
			err := relay.Run(runCtx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})

		consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.AuditGroup, []string{cfg.AuditTopic}, log)
		if err != nil {
			log.Error("kafka consumer init failed", "error", err)
			os.Exit(1)
		}
		defer consumer.Close()
		handler := audit.NewConsumerHandler(pgAudit, log)
		group.Go(func() error {
			err := consumer.Run(runCtx, handler.Handle)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	// Core engine and services.
	engine := calc.New(
		calc.WithLogger(log),
		calc.WithMetrics(calcmetrics.New()),
		calc.WithScriptBudget(cfg.ScriptMaxSteps, cfg.ScriptTimeout),
	)
	caseSvc := caseservice.New(registry, resolver.New(registry), engine, cases, locker,
		caseservice.WithLogger(log),
		caseservice.WithMetrics(casemetrics.New()),
		caseservice.WithAudit(publisher),
		caseservice.WithParallelism(cfg.EvalParallelism),
	)
	interviewEngine := interview.New(registry, interview.WithLogger(log))
	tokens := jwtauth.New(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	checks := map[string]httpapi.HealthChecker{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if rdb != nil {
		checks["redis"] = rdb.Health
	}
	router := httpapi.NewRouter(log, checks,
		casehandler.New(caseSvc, interviewEngine, tokens, log),
		interviewhandler.New(caseSvc, interviewEngine, log),
		slothandler.New(registry, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	group.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}
