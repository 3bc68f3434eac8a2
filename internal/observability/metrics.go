package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/resource"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Metrics holds the Prometheus collectors of the form service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	builds          *prometheus.CounterVec
	creationLatency *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		builds: f.NewCounterVec(prometheus.CounterOpts{
			Name: "qrform_builds_total",
			Help: "Form submissions by kind and builder outcome",
		}, []string{"kind", "outcome"}),
		creationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "qrform_creation_request_duration_seconds",
			Help:    "Latency of calls to the creation service",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"outcome"}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "qrform_creation_breaker_state",
			Help: "Circuit breaker state: 0 closed, 1 half-open, 2 open",
		}, []string{"name"}),
	}
}

// ObserveBuild counts one builder outcome ("ok", "permission_denied", ...).
func (m *Metrics) ObserveBuild(kind, outcome string) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(kind, outcome).Inc()
}

// ObserveCreation records the latency of one creation call.
func (m *Metrics) ObserveCreation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.creationLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// SetBreakerState publishes the numeric breaker state.
func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.breakerState.WithLabelValues(name).Set(float64(state))
}

// NewMeterProvider creates an OTel MeterProvider whose instruments are
// exported through the same Prometheus registry.
func NewMeterProvider(ctx context.Context, res *resource.Resource, reg prometheus.Registerer) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
		sdkmetric.WithResource(res),
	), nil
}
