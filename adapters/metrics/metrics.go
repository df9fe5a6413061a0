// Package metrics provides Prometheus metrics for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "lexgate"

// Collector holds all Prometheus metrics.
type Collector struct {
	// HTTP
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Pipeline stages
	PipelineOutcomes *prometheus.CounterVec
	AuthFailures     *prometheus.CounterVec
	RateLimitHits    *prometheus.CounterVec
	ModerationFlags  *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	CacheStores      *prometheus.CounterVec
	QuotaExceeded    *prometheus.CounterVec

	// Upstream
	UpstreamDuration *prometheus.HistogramVec
	UpstreamErrors   *prometheus.CounterVec
	UpstreamRetries  prometheus.Counter
	UpstreamInFlight prometheus.Gauge
	TokensTotal      *prometheus.CounterVec
	StreamsAborted   prometheus.Counter

	// Config
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge

	reg prometheus.Registerer
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector registered with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		reg: reg,
		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests processed",
		}, []string{"method", "path", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"method", "path", "status"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		}),

		PipelineOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_outcomes_total",
			Help:      "Terminal pipeline outcomes by endpoint, plan and code (ok on success)",
		}, []string{"endpoint", "plan", "code"}),
		AuthFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Total number of authentication failures",
		}, []string{"endpoint"}),
		RateLimitHits: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_hits_total",
			Help:      "Requests rejected by a rate limiter",
		}, []string{"limiter", "plan"}),
		ModerationFlags: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_flags_total",
			Help:      "Moderation category hits",
		}, []string{"direction", "category"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result",
		}, []string{"cache", "result"}),
		CacheStores: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_stores_total",
			Help:      "Response cache store attempts by result",
		}, []string{"cache", "result"}),
		QuotaExceeded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_exceeded_total",
			Help:      "Requests served while the caller was over the daily token quota",
		}, []string{"plan"}),

		UpstreamDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_duration_seconds",
			Help:      "Upstream model call duration in seconds, including retries",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}, []string{"mode", "status"}),
		UpstreamErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream failures by type",
		}, []string{"type"}),
		UpstreamRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Upstream calls retried after a transient failure",
		}),
		UpstreamInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_requests_in_flight",
			Help:      "Upstream calls currently open",
		}),
		TokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_total",
			Help:      "Model tokens consumed",
		}, []string{"model", "direction"}),
		StreamsAborted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "streams_aborted_total",
			Help:      "Streams cancelled by the client before completion",
		}),

		ConfigReloads: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reloads_total",
			Help:      "Total number of successful config reloads",
		}),
		ConfigReloadErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "config_reload_errors_total",
			Help:      "Total number of config reload errors",
		}),
		ConfigLastReload: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "config_last_reload_timestamp",
			Help:      "Unix timestamp of last successful config reload",
		}),
	}
}

// RegisterCacheSize exports the entry count of a named response cache.
// size is called on every scrape.
func (c *Collector) RegisterCacheSize(cache string, size func() int) {
	promauto.With(c.reg).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "cache_entries",
		Help:        "Number of entries held by a response cache",
		ConstLabels: prometheus.Labels{"cache": cache},
	}, func() float64 { return float64(size()) })
}
