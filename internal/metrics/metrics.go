// Package metrics exports router statistics to Prometheus.
package metrics

import (
	"net/http"
	"sync"

	"github.com/pior/replyroute"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
)

const namespace = "replyroute"

// Source is one network whose statistics are exported.
// Every method must be safe to call from the scrape goroutine.
type Source interface {
	Name() string
	RouterStats() replyroute.RouterStats
	BreakerState() gobreaker.State
	Clients() int
}

type counter struct {
	desc  *prometheus.Desc
	value func(replyroute.RouterStats) uint64
}

// Collector reads every registered Source on scrape.
type Collector struct {
	mu      sync.RWMutex
	sources map[string]Source

	counters     []counter
	pending      *prometheus.Desc
	active       *prometheus.Desc
	breakerState *prometheus.Desc
	clients      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector() *Collector {
	labels := []string{"network"}
	newCounter := func(name, help string, value func(replyroute.RouterStats) uint64) counter {
		return counter{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil),
			value: value,
		}
	}

	return &Collector{
		sources: make(map[string]Source),
		counters: []counter{
			newCounter("requests_admitted_total", "Client commands queued for routing",
				func(s replyroute.RouterStats) uint64 { return s.Admitted }),
			newCounter("requests_passthrough_total", "Client commands left to default handling",
				func(s replyroute.RouterStats) uint64 { return s.Passthrough }),
			newCounter("requests_promoted_total", "Requests sent upstream as the active exchange",
				func(s replyroute.RouterStats) uint64 { return s.Promoted }),
			newCounter("replies_routed_total", "Server lines delivered to a single client",
				func(s replyroute.RouterStats) uint64 { return s.Routed }),
			newCounter("exchanges_completed_total", "Exchanges ended by a terminal reply",
				func(s replyroute.RouterStats) uint64 { return s.Completed }),
			newCounter("exchanges_timeouts_total", "Exchanges abandoned after the timeout",
				func(s replyroute.RouterStats) uint64 { return s.Timeouts }),
			newCounter("exchanges_abandoned_total", "Exchanges dropped because their client or upstream left",
				func(s replyroute.RouterStats) uint64 { return s.Abandoned }),
			newCounter("requests_dropped_total", "Queued requests discarded on disconnect",
				func(s replyroute.RouterStats) uint64 { return s.Dropped }),
			newCounter("requests_flushed_total", "Queued requests sent unrouted at shutdown",
				func(s replyroute.RouterStats) uint64 { return s.Flushed }),
		},
		pending: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "requests_pending"),
			"Requests waiting in the queue", labels, nil),
		active: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "exchange_active"),
			"1 while an exchange is in flight", labels, nil),
		breakerState: prometheus.NewDesc(prometheus.BuildFQName(namespace, "upstream", "circuit_breaker_state"),
			"Dial circuit breaker state (0=closed, 1=half-open, 2=open)", labels, nil),
		clients: prometheus.NewDesc(prometheus.BuildFQName(namespace, "", "clients"),
			"Attached downstream clients", labels, nil),
	}
}

// Add registers a source. A source with the same name replaces the previous one.
func (c *Collector) Add(source Source) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources[source.Name()] = source
}

// Remove unregisters the named source.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sources, name)
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, m := range c.counters {
		ch <- m.desc
	}
	ch <- c.pending
	ch <- c.active
	ch <- c.breakerState
	ch <- c.clients
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, source := range c.sources {
		stats := source.RouterStats()
		for _, m := range c.counters {
			ch <- prometheus.MustNewConstMetric(m.desc, prometheus.CounterValue, float64(m.value(stats)), name)
		}
		ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(stats.Pending), name)
		ch <- prometheus.MustNewConstMetric(c.active, prometheus.GaugeValue, float64(stats.Active), name)
		ch <- prometheus.MustNewConstMetric(c.breakerState, prometheus.GaugeValue, float64(source.BreakerState()), name)
		ch <- prometheus.MustNewConstMetric(c.clients, prometheus.GaugeValue, float64(source.Clients()), name)
	}
}

// Exporter owns the registry served on /metrics.
type Exporter struct {
	registry  *prometheus.Registry
	collector *Collector
}

// NewExporter creates a registry holding a Collector and the Go runtime collectors.
func NewExporter() *Exporter {
	registry := prometheus.NewRegistry()
	collector := NewCollector()

	registry.MustRegister(
		collector,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Exporter{registry: registry, collector: collector}
}

// Collector returns the router stats collector.
func (e *Exporter) Collector() *Collector {
	return e.collector
}

// Registry returns the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns an HTTP handler for the /metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
