package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "reminder_engine"

// Metrics stores Prometheus collectors used by the API, scheduler and relay.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal        *prometheus.CounterVec
	httpRequestDuration      *prometheus.HistogramVec
	gateDecisionsTotal       *prometheus.CounterVec
	remindersDeliveredTotal  *prometheus.CounterVec
	deliveryFailedTotal      *prometheus.CounterVec
	reminderDeliveryDuration *prometheus.HistogramVec
	historySize              prometheus.Gauge
	relayInflight            *prometheus.GaugeVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds by method and path.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		gateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "gate_decisions_total",
				Help:      "Total number of gate evaluations by outcome and deny reason.",
			},
			[]string{"outcome", "reason"},
		),
		remindersDeliveredTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminders_delivered_total",
				Help:      "Total number of reminders delivered successfully.",
			},
			[]string{"provider"},
		),
		deliveryFailedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "reminders_delivery_failed_total",
				Help:      "Total number of failed reminder deliveries.",
			},
			[]string{"provider", "reason"},
		),
		reminderDeliveryDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "reminder_delivery_duration_seconds",
				Help:      "Provider send duration in seconds grouped by provider.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"provider"},
		),
		historySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "history_size",
				Help:      "Number of records in the notification history after the last save.",
			},
		),
		relayInflight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "relay_inflight",
				Help:      "Current number of in-flight relay deliveries grouped by provider.",
			},
			[]string{"provider"},
		),
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.gateDecisionsTotal,
		m.remindersDeliveredTotal,
		m.deliveryFailedTotal,
		m.reminderDeliveryDuration,
		m.historySize,
		m.relayInflight,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) HTTPMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := routePath(c)
		// Avoid self-scrape noise for request counters.
		if path == "/metrics" {
			return err
		}

		m.recordHTTPRequest(c.Method(), path, statusFromResult(c, err), time.Since(start))
		return err
	}
}

// ObserveDecision counts a gate decision. Allowed decisions carry the
// reason label "none".
func (m *Metrics) ObserveDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	outcome := "denied"
	if allowed {
		outcome = "allowed"
	}
	m.gateDecisionsTotal.WithLabelValues(outcome, normalizeLabel(reason, "none")).Inc()
}

func (m *Metrics) IncDelivered(provider string) {
	if m == nil {
		return
	}
	m.remindersDeliveredTotal.WithLabelValues(normalizeLabel(provider, "unknown")).Inc()
}

func (m *Metrics) IncDeliveryFailed(provider string, reason string) {
	if m == nil {
		return
	}
	m.deliveryFailedTotal.WithLabelValues(normalizeLabel(provider, "unknown"), normalizeLabel(reason, "unknown")).Inc()
}

func (m *Metrics) ObserveDeliveryDuration(provider string, duration time.Duration) {
	if m == nil {
		return
	}
	seconds := duration.Seconds()
	if seconds < 0 {
		seconds = 0
	}
	m.reminderDeliveryDuration.WithLabelValues(normalizeLabel(provider, "unknown")).Observe(seconds)
}

func (m *Metrics) SetHistorySize(size int) {
	if m == nil {
		return
	}
	m.historySize.Set(float64(size))
}

func (m *Metrics) IncRelayInFlight(provider string) {
	if m == nil {
		return
	}
	m.relayInflight.WithLabelValues(normalizeLabel(provider, "unknown")).Inc()
}

func (m *Metrics) DecRelayInFlight(provider string) {
	if m == nil {
		return
	}
	m.relayInflight.WithLabelValues(normalizeLabel(provider, "unknown")).Dec()
}

func (m *Metrics) recordHTTPRequest(method string, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	methodLabel := strings.ToUpper(strings.TrimSpace(method))
	if methodLabel == "" {
		methodLabel = "UNKNOWN"
	}
	pathLabel := strings.TrimSpace(path)
	if pathLabel == "" {
		pathLabel = "unmatched"
	}

	m.httpRequestsTotal.WithLabelValues(methodLabel, pathLabel, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(methodLabel, pathLabel).Observe(duration.Seconds())
}

func routePath(c *fiber.Ctx) string {
	if c == nil {
		return "unmatched"
	}

	if route := c.Route(); route != nil {
		if path := strings.TrimSpace(route.Path); path != "" {
			return path
		}
	}
	return "unmatched"
}

func statusFromResult(c *fiber.Ctx, err error) int {
	if err != nil {
		if fiberErr, ok := err.(*fiber.Error); ok {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}

	if c == nil {
		return fiber.StatusOK
	}

	status := c.Response().StatusCode()
	if status == 0 {
		return fiber.StatusOK
	}
	return status
}

func normalizeLabel(value string, fallback string) string {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return fallback
	}
	return normalized
}
