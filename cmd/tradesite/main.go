package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/novamet/tradesite/pkg/api"
	"github.com/novamet/tradesite/pkg/audit"
	"github.com/novamet/tradesite/pkg/config"
	"github.com/novamet/tradesite/pkg/leads"
	"github.com/novamet/tradesite/pkg/loginwatch"
	"github.com/novamet/tradesite/pkg/observability"
	"github.com/novamet/tradesite/pkg/ratelimit"
	"github.com/novamet/tradesite/pkg/security"
	"github.com/novamet/tradesite/pkg/session"
)

func main() {
	configPath := flag.String("config", "", "Path to YAML config file (optional)")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.WithFields(map[string]interface{}{
		"environment": cfg.Environment,
		"db_driver":   cfg.Database.Driver,
	}).Info("starting tradesite")

	ctx := context.Background()

	tracerProvider, err := observability.InitTracing(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		logger.WithError(err).Error("failed to initialize tracing")
		os.Exit(1)
	}

	db, err := sql.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.WithError(err).Error("failed to open database")
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.WithError(err).Error("failed to ping database")
		os.Exit(1)
	}

	var metrics *observability.Metrics
	if cfg.Observability.MetricsEnabled {
		metrics = observability.NewMetrics()
	}

	auditStore, err := audit.NewSQLStore(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize audit store")
		os.Exit(1)
	}
	ledger := audit.NewLedger(auditStore, logger, metrics)

	leadStore, err := leads.NewSQLStore(db)
	if err != nil {
		logger.WithError(err).Error("failed to initialize lead store")
		os.Exit(1)
	}
	leadService := leads.NewService(leadStore, ledger, logger, metrics)

	resolver, err := buildResolver(cfg.Auth.AdminTokens)
	if err != nil {
		logger.WithError(err).Error("failed to build session resolver")
		os.Exit(1)
	}

	pipelineOpts := []security.PipelineOption{}
	if metrics != nil {
		pipelineOpts = append(pipelineOpts, security.WithMetrics(metrics))
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Error("failed to ping redis")
			os.Exit(1)
		}
		logger.WithField("addr", cfg.Redis.Addr).Info("rate limit windows shared via redis")
		pipelineOpts = append(pipelineOpts, security.WithEvaluatorFactory(
			func(rc ratelimit.Config) ratelimit.Evaluator {
				return ratelimit.NewRedisLimiter(redisClient, rc, "tradesite:ratelimit")
			}))
	}

	pipeline := security.NewPipeline(resolver, ledger, logger, cfg.Environment, pipelineOpts...)
	detector := loginwatch.NewDetector(ledger, logger, metrics)

	server := api.NewServer(api.Deps{
		Logger:      logger,
		Metrics:     metrics,
		Pipeline:    pipeline,
		Resolver:    resolver,
		Leads:       leadService,
		Ledger:      ledger,
		Detector:    detector,
		Environment: cfg.Environment,
	})

	var handler http.Handler = server
	if tracerProvider != nil {
		handler = otelhttp.NewHandler(handler, "tradesite")
	}

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	healthServer := newHealthServer(cfg, metrics)

	scheduler := startRetentionSweep(cfg, auditStore, logger)

	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	if healthServer != nil {
		shutdown.RegisterShutdownFunc(healthServer.Shutdown)
	}
	if scheduler != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			scheduler.Stop()
			return nil
		})
	}
	if redisClient != nil {
		shutdown.RegisterShutdownFunc(func(context.Context) error {
			return redisClient.Close()
		})
	}
	if tracerProvider != nil {
		shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			observability.ShutdownTracing(ctx, tracerProvider, logger)
			return nil
		})
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	if healthServer != nil {
		g.Go(func() error {
			logger.Infof("health/metrics server listening on %s", healthServer.Addr)
			if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		return shutdown.WaitForShutdown()
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server exited with error")
		os.Exit(1)
	}
	logger.Info("tradesite stopped")
}

// buildResolver loads the static admin token table from configuration.
// Entry format: "token:userID:username:role".
func buildResolver(entries []string) (session.Resolver, error) {
	resolver := session.NewTokenResolver()
	for _, entry := range entries {
		parts := strings.SplitN(entry, ":", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("invalid admin token entry (want token:userID:username:role)")
		}
		role := session.Role(parts[3])
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q for user %q", parts[3], parts[2])
		}
		resolver.Register(parts[0], &session.Session{
			ID:       "static-" + parts[1],
			UserID:   parts[1],
			Username: parts[2],
			Role:     role,
		})
	}
	return resolver, nil
}

// newHealthServer serves liveness and Prometheus metrics on the side port
func newHealthServer(cfg *config.Config, metrics *observability.Metrics) *http.Server {
	if metrics == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.HealthPort,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// startRetentionSweep schedules the periodic audit retention job
func startRetentionSweep(cfg *config.Config, store *audit.SQLStore, logger *observability.Logger) *cron.Cron {
	if cfg.Audit.RetentionDays <= 0 {
		logger.Info("audit retention sweep disabled")
		return nil
	}

	c := cron.New()
	retention := time.Duration(cfg.Audit.RetentionDays) * 24 * time.Hour
	_, err := c.AddFunc(cfg.Audit.SweepSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		// A panicking sweep must not take the scheduler goroutine down
		defer observability.RecoverPanicWithCallback(logger, "audit retention sweep", cancel)

		cutoff := time.Now().UTC().Add(-retention)
		deleted, err := store.DeleteBefore(ctx, cutoff)
		if err != nil {
			logger.WithError(err).Error("audit retention sweep failed")
			return
		}
		logger.WithFields(map[string]interface{}{
			"deleted": deleted,
			"cutoff":  cutoff.Format(time.RFC3339),
		}).Info("audit retention sweep completed")
	})
	if err != nil {
		logger.WithError(err).Error("invalid retention sweep schedule; sweep disabled")
		return nil
	}

	c.Start()
	logger.WithField("schedule", cfg.Audit.SweepSchedule).Info("audit retention sweep scheduled")
	return c
}
