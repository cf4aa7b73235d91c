package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exports request, cache and simulation measurements. It is the
// engine's Observer and the roster cache's CacheObserver.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	gameRuns        prometheus.Histogram
	seasonDuration  prometheus.Histogram
	explorations    *prometheus.CounterVec
	exploreDuration prometheus.Histogram
	trials          prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineup_sim_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lineup_sim_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineup_sim_roster_cache_lookups_total",
			Help: "Roster cache lookups by result.",
		}, []string{"result"}),
		gameRuns: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineup_sim_game_runs",
			Help:    "Runs scored in single simulated games.",
			Buckets: prometheus.LinearBuckets(0, 2, 10),
		}),
		seasonDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineup_sim_season_duration_seconds",
			Help:    "Wall time of simulated seasons.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		explorations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineup_sim_explorations_total",
			Help: "Finished lineup explorations by final status.",
		}, []string{"status"}),
		exploreDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineup_sim_exploration_duration_seconds",
			Help:    "Wall time of lineup explorations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		trials: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineup_sim_exploration_trials_total",
			Help: "Lineup trials requested by finished explorations.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests, m.requestDuration, m.cacheLookups,
		m.gameRuns, m.seasonDuration,
		m.explorations, m.exploreDuration, m.trials,
	)
	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(route, method string, code int, duration time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.requestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) CacheHit()  { m.cacheLookups.WithLabelValues("hit").Inc() }
func (m *Metrics) CacheMiss() { m.cacheLookups.WithLabelValues("miss").Inc() }

func (m *Metrics) GameSimulated(score int) {
	m.gameRuns.Observe(float64(score))
}

func (m *Metrics) SeasonSimulated(games int, duration time.Duration) {
	m.seasonDuration.Observe(duration.Seconds())
}

func (m *Metrics) ExplorationFinished(status string, trials int, duration time.Duration) {
	m.explorations.WithLabelValues(status).Inc()
	m.exploreDuration.Observe(duration.Seconds())
	m.trials.Add(float64(trials))
}
