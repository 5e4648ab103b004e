// Package metrics exposes enrollment engine counters to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tartampluch/go-enroll/internal/config"
)

// Collector implements engine.Recorder on top of Prometheus counters.
// A nil *Collector records nothing.
type Collector struct {
	scans       *prometheus.CounterVec
	validation  *prometheus.CounterVec
	persistFail *prometheus.CounterVec
	mutations   *prometheus.CounterVec
	submissions prometheus.Counter
}

// NewCollector creates the counters and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "eligibility_scans_total",
			Help:      "Household eligibility scans by gate outcome.",
		}, []string{"outcome"}),
		validation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "validation_failures_total",
			Help:      "Rejected section validations by section.",
		}, []string{"section"}),
		persistFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "persistence_failures_total",
			Help:      "Failed household loads and saves.",
		}, []string{"op"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "member_mutations_total",
			Help:      "Family member mutations by kind.",
		}, []string{"op"}),
		submissions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "submissions_total",
			Help:      "Completed enrollment submissions.",
		}),
	}

	reg.MustRegister(
		c.scans,
		c.validation,
		c.persistFail,
		c.mutations,
		c.submissions,
	)

	return c
}

func (c *Collector) ScanCompleted(outcome string) {
	if c == nil {
		return
	}
	c.scans.WithLabelValues(outcome).Inc()
}

func (c *Collector) ValidationFailed(section string) {
	if c == nil {
		return
	}
	c.validation.WithLabelValues(section).Inc()
}

func (c *Collector) PersistFailed(op string) {
	if c == nil {
		return
	}
	c.persistFail.WithLabelValues(op).Inc()
}

func (c *Collector) MemberMutated(op string) {
	if c == nil {
		return
	}
	c.mutations.WithLabelValues(op).Inc()
}

func (c *Collector) Submitted() {
	if c == nil {
		return
	}
	c.submissions.Inc()
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
