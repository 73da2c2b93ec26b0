// Package observability provides structured logging, Prometheus metrics, health checks
// and OpenTelemetry tracing for the verdict service.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("title_id", 7).Info("title created")
//
// Request-scoped loggers are stored in the context by httputil.LoggingMiddleware and
// retrieved with FromContext, which adds request_id and user_id fields.
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry, statsFunc)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//
// Routes are labelled with their mux template (e.g. /titles/{title_id}) rather than the raw path.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(version,
//		observability.DatabaseProbe{DB: db},
//		observability.RedisProbe{Client: redisClient})
//	observability.RegisterHealthRoutes(opsMux, checker)
//
// # OpenTelemetry
//
//	telemetry, err := observability.InitOTel(ctx, cfg, logger)
//	defer telemetry.Shutdown(ctx)
package observability
