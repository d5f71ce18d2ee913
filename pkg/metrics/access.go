package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// AccessMetrics tracks how purchase access gets resolved.
type AccessMetrics struct {
	resolutions *prometheus.CounterVec
	migrations  *prometheus.CounterVec
	denials     prometheus.Counter
}

// NewAccessMetrics registers the reconciler metrics on the provided registerer.
func NewAccessMetrics(reg prometheus.Registerer) *AccessMetrics {
	if reg == nil {
		return &AccessMetrics{}
	}
	resolutions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "access_resolutions_total",
		Help: "Purchase access resolutions by path (unified fast path vs legacy fallback).",
	}, []string{"path"})
	migrations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_migrations_total",
		Help: "Legacy-to-unified purchase migrations by outcome.",
	}, []string{"outcome"})
	denials := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "access_denials_total",
		Help: "Access requests with no purchase record by any path.",
	})
	reg.MustRegister(resolutions, migrations, denials)
	return &AccessMetrics{
		resolutions: resolutions,
		migrations:  migrations,
		denials:     denials,
	}
}

// IncResolution increments the resolution counter for the given path.
func (m *AccessMetrics) IncResolution(path string) {
	if m == nil || m.resolutions == nil {
		return
	}
	m.resolutions.WithLabelValues(normalizeLabel(path)).Inc()
}

// IncMigration increments the migration counter for the given outcome.
func (m *AccessMetrics) IncMigration(outcome string) {
	if m == nil || m.migrations == nil {
		return
	}
	m.migrations.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDenial increments the denial counter.
func (m *AccessMetrics) IncDenial() {
	if m == nil || m.denials == nil {
		return
	}
	m.denials.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
