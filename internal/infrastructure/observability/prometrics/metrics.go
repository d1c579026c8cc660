// Package prometrics backs the observability metric ports with Prometheus
// vectors. Instruments are created once per name and registered on the
// default registry, so the composition root can ask for the same metric
// twice without a duplicate-registration panic.
package prometrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mallkit/storefront/internal/observability"
)

// Registry hands out named instruments scoped to one namespace.
type Registry interface {
	Counter(name, help string, labelKeys ...string) observability.Counter
	Histogram(name, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	namespace string
	subsystem string

	mu         sync.Mutex
	counters   map[string]*counter
	histograms map[string]*histogram
}

func New(namespace, subsystem string) Registry {
	return &registry{
		namespace:  namespace,
		subsystem:  subsystem,
		counters:   make(map[string]*counter),
		histograms: make(map[string]*histogram),
	}
}

func (r *registry) Counter(name, help string, labelKeys ...string) observability.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      name,
		Help:      help,
	}, labelKeys)
	prometheus.MustRegister(vec)
	c := &counter{vec: vec}
	r.counters[name] = c
	return c
}

func (r *registry) Histogram(name, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labelKeys)
	prometheus.MustRegister(vec)
	h := &histogram{vec: vec}
	r.histograms[name] = h
	return h
}

type counter struct{ vec *prometheus.CounterVec }

func (c *counter) Add(delta float64, labels ...observability.Label) {
	c.vec.With(labelMap(labels)).Add(delta)
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	bound, err := c.vec.GetMetricWith(labelMap(labels))
	if err != nil {
		return observability.NopCounter().Bind()
	}
	return boundCounter{c: bound}
}

type boundCounter struct{ c prometheus.Counter }

func (b boundCounter) Add(delta float64) { b.c.Add(delta) }

type histogram struct{ vec *prometheus.HistogramVec }

func (h *histogram) Observe(value float64, labels ...observability.Label) {
	h.vec.With(labelMap(labels)).Observe(value)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	bound, err := h.vec.GetMetricWith(labelMap(labels))
	if err != nil {
		return observability.NopHistogram().Bind()
	}
	return boundHistogram{h: bound}
}

type boundHistogram struct{ h prometheus.Observer }

func (b boundHistogram) Observe(value float64) { b.h.Observe(value) }

func labelMap(ls []observability.Label) prometheus.Labels {
	out := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		out[l.Key] = l.Value
	}
	return out
}
