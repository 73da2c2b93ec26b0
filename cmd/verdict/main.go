package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/verdict/pkg/api"
	"github.com/platinummonkey/verdict/pkg/audit"
	"github.com/platinummonkey/verdict/pkg/auth"
	"github.com/platinummonkey/verdict/pkg/catalog"
	"github.com/platinummonkey/verdict/pkg/config"
	"github.com/platinummonkey/verdict/pkg/mail"
	"github.com/platinummonkey/verdict/pkg/middleware"
	"github.com/platinummonkey/verdict/pkg/observability"
	"github.com/platinummonkey/verdict/pkg/rbac"
	"github.com/platinummonkey/verdict/pkg/reviews"
	"github.com/platinummonkey/verdict/pkg/storage"
	"github.com/platinummonkey/verdict/pkg/users"
)

var migrateOnly = flag.Bool("migrate", false, "Apply database migrations and exit")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Error("verdict exited with error")
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *observability.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, dialect, err := storage.Open(ctx, storage.Options{
		Driver:          cfg.Database.Driver,
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := storage.Migrate(ctx, db, dialect); err != nil {
		return err
	}
	logger.Infof("Database ready (%s)", dialect)
	if *migrateOnly {
		return nil
	}

	var redisClient *redis.Client
	if cfg.RateLimit.RedisURL != "" {
		redisClient, err = storage.NewRedisClient(ctx, cfg.RateLimit.RedisURL)
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry, dbStats(db))

	telemetry, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return err
	}

	auditLogger := audit.NewMultiLogger(audit.NewDBLogger(db), audit.NewLogLogger(logger))
	checker := rbac.NewChecker(metrics)
	tokens := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)

	userSvc := users.NewService(users.ServiceConfig{
		DB:          db,
		Tokens:      tokens,
		Hasher:      auth.NewCodeHasher(cfg.Auth.BcryptCost),
		Mailer:      newMailer(cfg.Mail, logger),
		MailFrom:    cfg.Mail.From,
		MailTimeout: cfg.Mail.Timeout,
		CodeTTL:     cfg.Auth.CodeTTL,
		Checker:     checker,
		Audit:       auditLogger,
		Metrics:     metrics,
	})

	proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return err
	}

	server := api.NewServer(api.Config{
		Users:          userSvc,
		Catalog:        catalog.NewService(db, checker, auditLogger),
		Reviews:        reviews.NewService(db, checker, auditLogger, metrics),
		Tokens:         tokens,
		Checker:        checker,
		Limiter:        newLimiter(cfg.RateLimit, redisClient),
		TrustedProxies: proxies,
		Logger:         logger,
		Metrics:        metrics,
	})

	sweeper := users.NewCodeSweeper(userSvc.Store(), cfg.Auth.CodeTTL, metrics, logger)
	if cfg.Auth.CodeTTL > 0 {
		if err := sweeper.Start(cfg.Auth.SweepCron); err != nil {
			return err
		}
	}

	var handler http.Handler = server
	if cfg.Observability.OTelEnabled {
		handler = observability.TracingMiddleware("verdict")(handler)
	}

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	probes := []observability.Probe{observability.DatabaseProbe{DB: db}}
	if redisClient != nil {
		probes = append(probes, observability.RedisProbe{Client: redisClient})
	}
	opsMux := http.NewServeMux()
	observability.RegisterHealthRoutes(opsMux, observability.NewHealthChecker(cfg.Observability.OTelServiceVersion, probes...))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(opsMux, registry)
	}
	opsServer := &http.Server{
		Addr:              net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler:           opsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("API listening on %s", apiServer.Addr)
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.Infof("Health and metrics listening on %s", opsServer.Addr)
		return listen(opsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		errs := []error{
			apiServer.Shutdown(shutdownCtx),
			opsServer.Shutdown(shutdownCtx),
		}
		select {
		case <-sweeper.Stop().Done():
		case <-shutdownCtx.Done():
		}
		errs = append(errs, telemetry.Shutdown(shutdownCtx))
		return errors.Join(errs...)
	})

	return g.Wait()
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

func newMailer(cfg config.MailConfig, logger *observability.Logger) mail.Mailer {
	if cfg.Transport == "smtp" {
		return mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.Host,
			Port:     cfg.Port,
			Username: cfg.Username,
			Password: cfg.Password,
			Timeout:  cfg.Timeout,
		})
	}
	return mail.NewLogMailer(logger)
}

// newLimiter shares counters through redis when configured, otherwise keeps them in memory
func newLimiter(cfg config.RateLimitConfig, redisClient *redis.Client) middleware.Limiter {
	if !cfg.Enabled {
		return nil
	}
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.Requests,
		WindowDuration:    cfg.Window,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, limits, "verdict:auth")
	}
	return middleware.NewRateLimiter(limits)
}

func dbStats(db *sql.DB) observability.DBStatsFunc {
	return func() (int, int) {
		stats := db.Stats()
		return stats.OpenConnections, stats.InUse
	}
}
