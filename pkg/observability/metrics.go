package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Identity metrics
	SignupsTotal *prometheus.CounterVec
	LoginsTotal  *prometheus.CounterVec
	MailErrors   prometheus.Counter
	CodesExpired prometheus.Counter

	// Access control metrics
	PermissionDenials *prometheus.CounterVec

	// Content metrics
	ReviewsCreated      prometheus.Counter
	DuplicateReviews    prometheus.Counter
	CommentsCreated     prometheus.Counter
	IntegrityViolations *prometheus.CounterVec

	// Database metrics
	DBConnectionsOpen  prometheus.GaugeFunc
	DBConnectionsInUse prometheus.GaugeFunc
}

// DBStatsFunc reports the open and in-use connection counts of a pool
type DBStatsFunc func() (open int, inUse int)

// NewMetrics creates and registers all Prometheus metrics.
// dbStats may be nil when no database is attached.
func NewMetrics(registry *prometheus.Registry, dbStats DBStatsFunc) *Metrics {
	if dbStats == nil {
		dbStats = func() (int, int) { return 0, 0 }
	}

	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verdict_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "verdict_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "route"},
		),

		SignupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_signups_total",
				Help: "Signup attempts by outcome",
			},
			[]string{"status"},
		),
		LoginsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_logins_total",
				Help: "Confirmation code exchanges by outcome",
			},
			[]string{"status"},
		),
		MailErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_mail_errors_total",
			Help: "Confirmation mails that failed to send",
		}),
		CodesExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_confirmation_codes_expired_total",
			Help: "Confirmation codes cleared by the expiry sweeper",
		}),

		PermissionDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_permission_denials_total",
				Help: "Requests denied by an access policy",
			},
			[]string{"policy", "level"},
		),

		ReviewsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_reviews_created_total",
			Help: "Reviews created",
		}),
		DuplicateReviews: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_duplicate_reviews_total",
			Help: "Review creations rejected because the author already reviewed the title",
		}),
		CommentsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "verdict_comments_created_total",
			Help: "Comments created",
		}),
		IntegrityViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "verdict_integrity_violations_total",
				Help: "Nested resource paths rejected by the containment check",
			},
			[]string{"cause"},
		),

		DBConnectionsOpen: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "verdict_db_connections_open",
				Help: "Open database connections",
			},
			func() float64 {
				open, _ := dbStats()
				return float64(open)
			},
		),
		DBConnectionsInUse: prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "verdict_db_connections_in_use",
				Help: "Database connections currently in use",
			},
			func() float64 {
				_, inUse := dbStats()
				return float64(inUse)
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.SignupsTotal,
		m.LoginsTotal,
		m.MailErrors,
		m.CodesExpired,
		m.PermissionDenials,
		m.ReviewsCreated,
		m.DuplicateReviews,
		m.CommentsCreated,
		m.IntegrityViolations,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
	)

	return m
}

// NewNopMetrics returns metrics registered on a throwaway registry, for tests and tools
func NewNopMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry(), nil)
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeLabel returns the mux route template so path parameters do not explode label cardinality
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// It must be installed with router.Use so the matched route is available.
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			route := routeLabel(r)
			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(duration)
			metrics.HTTPResponseSize.WithLabelValues(r.Method, route).Observe(float64(rw.bytesWritten))
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
