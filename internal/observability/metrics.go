package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpDurationBuckets    = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	backendDurationBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets        = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus instruments of the console.
type Metrics struct {
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPRequestSizeBytes  *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	BackendRequestsTotal       *prometheus.CounterVec
	BackendRequestDuration     *prometheus.HistogramVec
	BackendCircuitBreakerState prometheus.Gauge
	BackendRetriesTotal        prometheus.Counter
	EnvelopeResponsesTotal     *prometheus.CounterVec
	SchemaViolationsTotal      *prometheus.CounterVec

	PermissionCacheHitsTotal   prometheus.Counter
	PermissionCacheMissesTotal prometheus.Counter
	SessionEventsTotal         *prometheus.CounterVec
	AccessDeniedTotal          *prometheus.CounterVec

	ListPagesServedTotal   *prometheus.CounterVec
	ListPageClampsTotal    *prometheus.CounterVec
	FormValidationFailures *prometheus.CounterVec
	DashboardPartFailures  *prometheus.CounterVec

	DefinitionReloadTotal *prometheus.CounterVec
	DefinitionsLoaded     prometheus.Gauge
	PolicyReloadTotal     *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// InitMetrics creates and registers all instruments with reg.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erpconsole_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPRequestSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erpconsole_http_request_size_bytes",
			Help:    "HTTP request body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erpconsole_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_backend_requests_total",
			Help: "Total number of ERP backend requests.",
		}, []string{"method", "resource", "status"}),
		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "erpconsole_backend_request_duration_seconds",
			Help:    "ERP backend request duration in seconds.",
			Buckets: backendDurationBuckets,
		}, []string{"method", "resource"}),
		BackendCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erpconsole_backend_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open).",
		}),
		BackendRetriesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpconsole_backend_retries_total",
			Help: "Total number of backend request retries.",
		}),
		EnvelopeResponsesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_envelope_responses_total",
			Help: "JSON responses seen by the envelope adapter, by outcome.",
		}, []string{"outcome"}),
		SchemaViolationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_schema_violations_total",
			Help: "Backend items that failed response schema validation.",
		}, []string{"schema"}),

		PermissionCacheHitsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpconsole_permission_cache_hits_total",
			Help: "Total role expansion cache hits.",
		}),
		PermissionCacheMissesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "erpconsole_permission_cache_misses_total",
			Help: "Total role expansion cache misses.",
		}),
		SessionEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_session_events_total",
			Help: "Session lifecycle events.",
		}, []string{"event"}),
		AccessDeniedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_access_denied_total",
			Help: "Requests rejected by the permission gate.",
		}, []string{"resource", "operation"}),

		ListPagesServedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_list_pages_served_total",
			Help: "List pages served, by resource.",
		}, []string{"resource"}),
		ListPageClampsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_list_page_clamps_total",
			Help: "List requests moved to the last existing page.",
		}, []string{"resource"}),
		FormValidationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_form_validation_failures_total",
			Help: "Form submissions rejected by field rules.",
		}, []string{"resource"}),
		DashboardPartFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_dashboard_part_failures_total",
			Help: "Dashboard parts that failed to load.",
		}, []string{"part"}),

		DefinitionReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_definition_reload_total",
			Help: "Total resource definition reloads.",
		}, []string{"status"}),
		DefinitionsLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "erpconsole_definitions_loaded",
			Help: "Number of loaded resource definitions.",
		}),
		PolicyReloadTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "erpconsole_policy_reload_total",
			Help: "Total role policy reloads.",
		}, []string{"status"}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestSizeBytes,
		m.HTTPResponseSizeBytes,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendCircuitBreakerState,
		m.BackendRetriesTotal,
		m.EnvelopeResponsesTotal,
		m.SchemaViolationsTotal,
		m.PermissionCacheHitsTotal,
		m.PermissionCacheMissesTotal,
		m.SessionEventsTotal,
		m.AccessDeniedTotal,
		m.ListPagesServedTotal,
		m.ListPageClampsTotal,
		m.FormValidationFailures,
		m.DashboardPartFailures,
		m.DefinitionReloadTotal,
		m.DefinitionsLoaded,
		m.PolicyReloadTotal,
	)
	if g, ok := reg.(prometheus.Gatherer); ok {
		m.gatherer = g
	}

	return m
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, reqSize, respSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPRequestSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(reqSize))
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordBackendRequest records one backend round trip. status is 0 when the
// backend never answered.
func (m *Metrics) RecordBackendRequest(method, resource string, status int, duration time.Duration) {
	m.BackendRequestsTotal.WithLabelValues(method, resource, strconv.Itoa(status)).Inc()
	m.BackendRequestDuration.WithLabelValues(method, resource).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets 0=closed, 1=half-open, 2=open.
func (m *Metrics) SetCircuitBreakerState(state float64) {
	m.BackendCircuitBreakerState.Set(state)
}

// RecordBackendRetry records a backend request retry.
func (m *Metrics) RecordBackendRetry() {
	m.BackendRetriesTotal.Inc()
}

// RecordEnvelope records whether a JSON response was a backend envelope.
func (m *Metrics) RecordEnvelope(normalized bool) {
	outcome := "passthrough"
	if normalized {
		outcome = "normalized"
	}
	m.EnvelopeResponsesTotal.WithLabelValues(outcome).Inc()
}

// RecordSchemaViolation records an item that did not match its schema.
func (m *Metrics) RecordSchemaViolation(schema string) {
	m.SchemaViolationsTotal.WithLabelValues(schema).Inc()
}

// RecordPermissionCache records a role expansion cache lookup.
func (m *Metrics) RecordPermissionCache(hit bool) {
	if hit {
		m.PermissionCacheHitsTotal.Inc()
		return
	}
	m.PermissionCacheMissesTotal.Inc()
}

// RecordSessionEvent records a session lifecycle event: sign_in,
// sign_in_failed, sign_out, refresh, expired or rejected.
func (m *Metrics) RecordSessionEvent(event string) {
	m.SessionEventsTotal.WithLabelValues(event).Inc()
}

// RecordAccessDenied records a gate rejection.
func (m *Metrics) RecordAccessDenied(resource, operation string) {
	m.AccessDeniedTotal.WithLabelValues(resource, operation).Inc()
}

// RecordListPage records a served list page and whether it was clamped.
func (m *Metrics) RecordListPage(resource string, clamped bool) {
	m.ListPagesServedTotal.WithLabelValues(resource).Inc()
	if clamped {
		m.ListPageClampsTotal.WithLabelValues(resource).Inc()
	}
}

// RecordFormValidationFailure records a rejected form submission.
func (m *Metrics) RecordFormValidationFailure(resource string) {
	m.FormValidationFailures.WithLabelValues(resource).Inc()
}

// RecordDashboardPartFailure records a dashboard part that failed to load.
func (m *Metrics) RecordDashboardPartFailure(part string) {
	m.DashboardPartFailures.WithLabelValues(part).Inc()
}

// RecordDefinitionReload records a definition reload.
func (m *Metrics) RecordDefinitionReload(status string) {
	m.DefinitionReloadTotal.WithLabelValues(status).Inc()
}

// SetDefinitionsLoaded sets the number of loaded definitions.
func (m *Metrics) SetDefinitionsLoaded(count float64) {
	m.DefinitionsLoaded.Set(count)
}

// RecordPolicyReload records a role policy reload.
func (m *Metrics) RecordPolicyReload(status string) {
	m.PolicyReloadTotal.WithLabelValues(status).Inc()
}

// MetricsMiddleware records request metrics labelled by chi's route pattern
// rather than the raw path.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		reqSize := 0
		if r.ContentLength > 0 {
			reqSize = int(r.ContentLength)
		}
		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start), reqSize, sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Handler serves the registry the instruments were registered with, or the
// default registry when it cannot be gathered from.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.TrimSuffix(strings.Join(rctx.RoutePatterns, ""), "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	w.written = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
