package observability

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus backs the instrument interfaces with client_golang vectors.
// A vector is created on first use of a name, labelled by the tag keys of
// that first call; later calls with a different key set are dropped.
type Prometheus struct {
	namespace string
	registry  *prometheus.Registry

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
}

var _ Metrics = (*Prometheus)(nil)

func NewPrometheus(namespace string) *Prometheus {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Prometheus{
		namespace:  namespace,
		registry:   registry,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

func (p *Prometheus) Incr(name string, tags map[string]string) {
	p.Add(name, 1, tags)
}

func (p *Prometheus) Add(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
		}, labelNames(tags))
		if !p.register(name, vec) {
			p.mu.Unlock()
			return
		}
		p.counters[name] = vec
	}
	p.mu.Unlock()

	c, err := vec.GetMetricWith(prometheus.Labels(tags))
	if err != nil {
		slog.Debug("metric dropped", "name", name, "error", err)
		return
	}
	c.Add(value)
}

func (p *Prometheus) Set(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
		}, labelNames(tags))
		if !p.register(name, vec) {
			p.mu.Unlock()
			return
		}
		p.gauges[name] = vec
	}
	p.mu.Unlock()

	g, err := vec.GetMetricWith(prometheus.Labels(tags))
	if err != nil {
		slog.Debug("metric dropped", "name", name, "error", err)
		return
	}
	g.Set(value)
}

func (p *Prometheus) Observe(name string, value float64, tags map[string]string) {
	p.mu.Lock()
	vec, ok := p.histograms[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Name:      name,
			Help:      name,
			Buckets:   prometheus.DefBuckets,
		}, labelNames(tags))
		if !p.register(name, vec) {
			p.mu.Unlock()
			return
		}
		p.histograms[name] = vec
	}
	p.mu.Unlock()

	h, err := vec.GetMetricWith(prometheus.Labels(tags))
	if err != nil {
		slog.Debug("metric dropped", "name", name, "error", err)
		return
	}
	h.Observe(value)
}

func (p *Prometheus) register(name string, c prometheus.Collector) bool {
	if err := p.registry.Register(c); err != nil {
		slog.Warn("failed to register metric", "name", name, "error", err)
		return false
	}
	return true
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}
