// Package observability collects Prometheus metrics for the console shell.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics gathers the shell's Prometheus metrics.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	loginsTotal     *prometheus.CounterVec
	menuCacheTotal  *prometheus.CounterVec
	routeGenTotal   prometheus.Counter
}

// NewMetrics initialises the registry and the console metric set.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "console_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	logins := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})
	menuCache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "console_menu_cache_lookups_total",
		Help: "Menu cache lookups by outcome.",
	}, []string{"outcome"})
	routeGen := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "console_route_generations_total",
		Help: "Dynamic route table generations.",
	})
	registry.MustRegister(requests, duration, logins, menuCache, routeGen)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		loginsTotal:     logins,
		menuCacheTotal:  menuCache,
		routeGenTotal:   routeGen,
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// LoginAttempt counts a login by result ("success" or "failure").
func (m *Metrics) LoginAttempt(result string) {
	if m == nil {
		return
	}
	m.loginsTotal.WithLabelValues(result).Inc()
}

// MenuCacheLookup counts a menu cache lookup by outcome ("hit" or "miss").
func (m *Metrics) MenuCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.menuCacheTotal.WithLabelValues(outcome).Inc()
}

// RouteGeneration counts one dynamic route table generation.
func (m *Metrics) RouteGeneration() {
	if m == nil {
		return
	}
	m.routeGenTotal.Inc()
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
