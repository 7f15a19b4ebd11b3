package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds all Prometheus metric collectors for studyhub.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Timer ledger metrics.
	TimerTransitionsTotal *prometheus.CounterVec
	StudySessionSeconds   prometheus.Histogram

	// solved.ac client and problem cache.
	UpstreamRequestsTotal *prometheus.CounterVec
	ProblemRefreshesTotal *prometheus.CounterVec
	ProblemsUpserted      prometheus.Gauge

	// Auth and rate limiting.
	AuthAttemptsTotal        *prometheus.CounterVec
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Server lifecycle.
	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyhub_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path_pattern"}),

		HTTPResponseSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "studyhub_http_response_size_bytes",
			Help:    "HTTP response size in bytes.",
			Buckets: prometheus.ExponentialBuckets(100, 10, 6),
		}, []string{"method", "path_pattern"}),

		TimerTransitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_timer_transitions_total",
			Help: "Total number of timer start and stop transitions.",
		}, []string{"action"}),

		StudySessionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "studyhub_study_session_seconds",
			Help:    "Elapsed seconds credited by each timer stop.",
			Buckets: []float64{60, 300, 900, 1800, 3600, 7200, 14400, 28800},
		}),

		UpstreamRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_upstream_requests_total",
			Help: "Total number of solved.ac requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),

		ProblemRefreshesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_problem_refreshes_total",
			Help: "Total number of problem cache refreshes.",
		}, []string{"status"}),

		ProblemsUpserted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studyhub_problem_refresh_upserted",
			Help: "Number of problems written by the last successful refresh.",
		}),

		AuthAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_auth_attempts_total",
			Help: "Total number of signup and login attempts by outcome.",
		}, []string{"kind", "outcome"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studyhub_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"scope"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "studyhub_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.TimerTransitionsTotal,
		m.StudySessionSeconds,
		m.UpstreamRequestsTotal,
		m.ProblemRefreshesTotal,
		m.ProblemsUpserted,
		m.AuthAttemptsTotal,
		m.RateLimitRejectionsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	// Register Go runtime and process collectors.
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterDBPoolCollector registers a custom DB pool stats collector.
func (m *Metrics) RegisterDBPoolCollector(statFunc DBPoolStatFunc) {
	m.registry.MustRegister(NewDBPoolCollector(statFunc))
}

// ObserveHTTPRequest records one served request.
func (m *Metrics) ObserveHTTPRequest(method, pattern string, status int, seconds float64, bytes int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pattern).Observe(seconds)
	m.HTTPResponseSize.WithLabelValues(method, pattern).Observe(float64(bytes))
}

// IncTimerTransition increments the timer transition counter.
func (m *Metrics) IncTimerTransition(action string) {
	m.TimerTransitionsTotal.WithLabelValues(action).Inc()
}

// ObserveStudySession records the seconds credited by a stop.
func (m *Metrics) ObserveStudySession(seconds float64) {
	m.StudySessionSeconds.Observe(seconds)
}

// IncUpstreamRequest increments the solved.ac request counter.
func (m *Metrics) IncUpstreamRequest(endpoint, outcome string) {
	m.UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// ObserveProblemRefresh records a refresh outcome.
func (m *Metrics) ObserveProblemRefresh(outcome string, upserted int) {
	m.ProblemRefreshesTotal.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.ProblemsUpserted.Set(float64(upserted))
	}
}

// IncAuthAttempt increments the signup/login attempt counter.
func (m *Metrics) IncAuthAttempt(kind, outcome string) {
	m.AuthAttemptsTotal.WithLabelValues(kind, outcome).Inc()
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(scope string) {
	m.RateLimitRejectionsTotal.WithLabelValues(scope).Inc()
}
