package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the StackForge engine.
type Metrics struct {
	config MetricsConfig

	// Resolution metrics
	resolutionsStarted   *prometheus.CounterVec
	resolutionsCompleted *prometheus.CounterVec
	resolutionDuration   *prometheus.HistogramVec

	// Node metrics
	solicitations *prometheus.CounterVec

	// Plan metrics
	planOperations *prometheus.CounterVec
	plansGenerated *prometheus.CounterVec

	// Conflict metrics
	supersessions *prometheus.CounterVec

	// Policy metrics
	policyViolations *prometheus.CounterVec

	// Catalog metrics
	catalogReloads *prometheus.CounterVec
	catalogNodes   prometheus.Gauge

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// System metrics
	activeResolutions prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// No-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		resolutionsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_started_total",
				Help:      "Total number of resolution passes started",
			},
			[]string{"project_type"},
		),
		resolutionsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "resolutions_completed_total",
				Help:      "Total number of resolution passes completed",
			},
			[]string{"status"},
		),
		resolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "resolution_duration_seconds",
				Help:      "Duration of resolution passes in seconds",
				Buckets:   buckets,
			},
			[]string{"status"},
		),

		solicitations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "solicitations_total",
				Help:      "Total number of node solicitations",
			},
			[]string{"node", "outcome"},
		),

		planOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plan_operations_total",
				Help:      "Total number of planned operations",
			},
			[]string{"kind"},
		),
		plansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plans_generated_total",
				Help:      "Total number of plans generated",
			},
			[]string{"empty"},
		),

		supersessions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "supersessions_total",
				Help:      "Total number of tool supersessions resolved",
			},
			[]string{"origin"},
		),

		policyViolations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_violations_total",
				Help:      "Total number of plan policy violations",
			},
			[]string{"policy", "severity"},
		),

		catalogReloads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "catalog_reloads_total",
				Help:      "Total number of catalog reloads",
			},
			[]string{"status"},
		),
		catalogNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "catalog_nodes",
				Help:      "Current number of nodes in the loaded catalog",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		activeResolutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_resolutions",
				Help:      "Current number of in-flight resolutions",
			},
		),
	}

	registry.MustRegister(
		m.resolutionsStarted,
		m.resolutionsCompleted,
		m.resolutionDuration,
		m.solicitations,
		m.planOperations,
		m.plansGenerated,
		m.supersessions,
		m.policyViolations,
		m.catalogReloads,
		m.catalogNodes,
		m.errorsByClass,
		m.errorsByCode,
		m.activeResolutions,
	)

	return m, nil
}

// RecordResolutionStarted increments the counter for started resolutions.
func (m *Metrics) RecordResolutionStarted(projectType string) {
	if m.resolutionsStarted == nil {
		return
	}
	m.resolutionsStarted.WithLabelValues(projectType).Inc()
	m.activeResolutions.Inc()
}

// RecordResolutionCompleted records a completed resolution with its status
// and duration.
func (m *Metrics) RecordResolutionCompleted(status string, duration time.Duration) {
	if m.resolutionsCompleted == nil {
		return
	}
	m.resolutionsCompleted.WithLabelValues(status).Inc()
	m.resolutionDuration.WithLabelValues(status).Observe(duration.Seconds())
	m.activeResolutions.Dec()
}

// RecordSolicitation records one solicitation of a node with its outcome
// (accepted, rejected, auto).
func (m *Metrics) RecordSolicitation(node, outcome string) {
	if m.solicitations == nil {
		return
	}
	m.solicitations.WithLabelValues(node, outcome).Inc()
}

// RecordPlan records a generated plan and its operations by kind.
func (m *Metrics) RecordPlan(operationsByKind map[string]int) {
	if m.plansGenerated == nil {
		return
	}
	total := 0
	for kind, count := range operationsByKind {
		m.planOperations.WithLabelValues(kind).Add(float64(count))
		total += count
	}
	m.plansGenerated.WithLabelValues(fmt.Sprintf("%t", total == 0)).Inc()
}

// RecordSupersession records one tool excluded by the given origin.
func (m *Metrics) RecordSupersession(origin string) {
	if m.supersessions == nil {
		return
	}
	m.supersessions.WithLabelValues(origin).Inc()
}

// RecordPolicyViolation records a plan policy violation.
func (m *Metrics) RecordPolicyViolation(policy, severity string) {
	if m.policyViolations == nil {
		return
	}
	m.policyViolations.WithLabelValues(policy, severity).Inc()
}

// RecordCatalogReload records a catalog reload with its status and the
// resulting node count.
func (m *Metrics) RecordCatalogReload(status string, nodes int) {
	if m.catalogReloads == nil {
		return
	}
	m.catalogReloads.WithLabelValues(status).Inc()
	if status == "success" {
		m.catalogNodes.Set(float64(nodes))
	}
}

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" && m.errorsByCode != nil {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration is a helper to time an operation and record it.
func (t *Timer) ObserveDuration(observer prometheus.Observer) {
	observer.Observe(t.Duration().Seconds())
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics.
func (m *Metrics) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(m.config.Path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}
