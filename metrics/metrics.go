// Package metrics holds the Prometheus collectors for the simulator.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "co2sim"

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	simulationsTotal *prometheus.CounterVec
	simulationTime   prometheus.Histogram
	cacheHits        prometheus.Counter
	llmFallbacks     prometheus.Counter
	stations         prometheus.Gauge
	baselineTotal    prometheus.Gauge
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "code"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		simulationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulations_total",
				Help:      "Simulations run, by sector and parse source",
			},
			[]string{"sector", "source"},
		),
		simulationTime: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "simulation_duration_seconds",
				Help:      "Time to parse and apply one intervention",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
			},
		),
		cacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "simulation_cache_hits_total",
				Help:      "Simulations answered from the result cache",
			},
		),
		llmFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "llm_fallbacks_total",
				Help:      "Prompts parsed by rules while a model was configured",
			},
		),
		stations: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "openaq_stations",
				Help:      "OpenAQ PM2.5 stations blended into the baseline",
			},
		),
		baselineTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "baseline_total_emissions",
				Help:      "Sum of the baseline grid in kg CO2/km2/day",
			},
		),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(route, method string, code int, elapsed time.Duration) {
	m.requestsTotal.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveSimulation(sector, source string, elapsed time.Duration) {
	m.simulationsTotal.WithLabelValues(sector, source).Inc()
	m.simulationTime.Observe(elapsed.Seconds())
}

func (m *Metrics) CacheHit() {
	m.cacheHits.Inc()
}

func (m *Metrics) LLMFallback() {
	m.llmFallbacks.Inc()
}

func (m *Metrics) SetBaseline(stations int, total float64) {
	m.stations.Set(float64(stations))
	m.baselineTotal.Set(total)
}
