package observability

import (
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
)

// Instruments resolves metric keys to registered instruments. Keys nobody registered
// resolve to no-ops so a missing instrument never panics a use case.
type Instruments struct {
	Counters   map[observability.MetricKey]observability.Counter
	Histograms map[observability.MetricKey]observability.Histogram
}

func (m Instruments) Counter(name observability.MetricKey) observability.Counter {
	if c, ok := m.Counters[name]; ok && c != nil {
		return c
	}
	return observability.NopCounter()
}

func (m Instruments) Histogram(name observability.MetricKey) observability.Histogram {
	if h, ok := m.Histograms[name]; ok && h != nil {
		return h
	}
	return observability.NopHistogram()
}

type bundle struct {
	tracer  observability.Tracer
	logger  observability.Logger
	metrics observability.Metrics
}

// New assembles the Observability handed to every participant. Nil ports fall back to no-ops.
func New(tracer observability.Tracer, logger observability.Logger, metrics observability.Metrics) observability.Observability {
	if tracer == nil {
		tracer = observability.NopTracer()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	if metrics == nil {
		metrics = observability.NopMetrics()
	}
	return &bundle{tracer: tracer, logger: logger, metrics: metrics}
}

func (b *bundle) Tracer() observability.Tracer   { return b.tracer }
func (b *bundle) Logger() observability.Logger   { return b.logger }
func (b *bundle) Metrics() observability.Metrics { return b.metrics }
