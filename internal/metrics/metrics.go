// Package metrics exposes Prometheus metrics for the generation pipeline.
// All collectors live on a dedicated registry served at /metrics. A nil
// *Collector is valid and records nothing.
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

// Namespace prefixes every metric name.
const Namespace = "batchgen"

// Collector holds the application's metrics.
type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	sessionsStarted  prometheus.Counter
	sessionsFinished *prometheus.CounterVec
	promptsProcessed *prometheus.CounterVec

	variationsTotal  *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec

	credentialUsage       prometheus.Counter
	credentialUsageErrors prometheus.Counter
	credentialValidations *prometheus.CounterVec

	progressSubscribers prometheus.Gauge
}

// New creates a Collector on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),

		httpRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		sessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_started_total",
			Help:      "Generation sessions accepted",
		}),

		sessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "sessions_finished_total",
			Help:      "Generation sessions that reached a terminal status",
		}, []string{"status"}),

		promptsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "prompts_processed_total",
			Help:      "Prompts processed by the batch executor",
		}, []string{"outcome"}),

		variationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "variations_total",
			Help:      "Variations attempted, by outcome and failure kind",
		}, []string{"provider", "outcome", "kind"}),

		providerDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "provider_request_duration_seconds",
			Help:      "Image provider call duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"provider", "outcome"}),

		credentialUsage: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "credential_usage_total",
			Help:      "Credential usage increments recorded",
		}),

		credentialUsageErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "credential_usage_errors_total",
			Help:      "Credential usage increments that failed to persist",
		}),

		credentialValidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "credential_validations_total",
			Help:      "Credential probes, by result",
		}, []string{"valid"}),

		progressSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "progress_subscribers",
			Help:      "Open progress subscriptions",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordHTTPRequest records one served request.
func (c *Collector) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	if c == nil {
		return
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// SessionStarted counts an accepted session.
func (c *Collector) SessionStarted() {
	if c == nil {
		return
	}
	c.sessionsStarted.Inc()
}

// SessionFinished counts a session reaching status.
func (c *Collector) SessionFinished(status string) {
	if c == nil {
		return
	}
	c.sessionsFinished.WithLabelValues(status).Inc()
}

// PromptProcessed counts a prompt, outcome is "completed" or "failed".
func (c *Collector) PromptProcessed(outcome string) {
	if c == nil {
		return
	}
	c.promptsProcessed.WithLabelValues(outcome).Inc()
}

// ProviderCall records one provider call. kind is empty on success.
func (c *Collector) ProviderCall(provider, kind string, d time.Duration) {
	if c == nil {
		return
	}
	outcome := "success"
	if kind != "" {
		outcome = "placeholder"
	}
	c.variationsTotal.WithLabelValues(provider, outcome, kind).Inc()
	c.providerDuration.WithLabelValues(provider, outcome).Observe(d.Seconds())
}

// CredentialUsage records a usage increment attempt.
func (c *Collector) CredentialUsage(err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.credentialUsageErrors.Inc()
		return
	}
	c.credentialUsage.Inc()
}

// CredentialValidated records a probe result.
func (c *Collector) CredentialValidated(valid bool) {
	if c == nil {
		return
	}
	c.credentialValidations.WithLabelValues(strconv.FormatBool(valid)).Inc()
}

// SubscriberOpened increments the open subscription gauge.
func (c *Collector) SubscriberOpened() {
	if c == nil {
		return
	}
	c.progressSubscribers.Inc()
}

// SubscriberClosed decrements the open subscription gauge.
func (c *Collector) SubscriberClosed() {
	if c == nil {
		return
	}
	c.progressSubscribers.Dec()
}
