package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "hashurl"

// Redirect outcomes recorded by Metrics.Redirect.
const (
	RedirectFound    = "found"
	RedirectNotFound = "not_found"
	RedirectExpired  = "expired"
)

// Metrics groups the application collectors. A nil *Metrics is valid and
// records nothing, so tests and tools can skip registration.
type Metrics struct {
	shortened      *prometheus.CounterVec
	collisions     prometheus.Counter
	redirects      *prometheus.CounterVec
	clickEvents    prometheus.Counter
	rankingLatency *prometheus.HistogramVec
	linksStored    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		shortened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "links_shortened_total",
			Help:      "Links created or overwritten, by algorithm.",
		}, []string{"algorithm"}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "link_collisions_total",
			Help:      "Shorten calls that replaced a link pointing at a different URL.",
		}),
		redirects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "redirects_total",
			Help:      "Redirect lookups, by result.",
		}, []string{"result"}),
		clickEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_events_consumed_total",
			Help:      "Click events read back from the event stream.",
		}),
		rankingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_duration_seconds",
			Help:      "Time spent computing rankings and ranking stats.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
		linksStored: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "links_stored",
			Help:      "Links currently held in memory.",
		}),
	}

	reg.MustRegister(m.shortened, m.collisions, m.redirects, m.clickEvents, m.rankingLatency, m.linksStored)
	return m
}

func (m *Metrics) Shortened(algorithm string, stored int) {
	if m == nil {
		return
	}
	m.shortened.WithLabelValues(algorithm).Inc()
	m.linksStored.Set(float64(stored))
}

func (m *Metrics) Collision() {
	if m == nil {
		return
	}
	m.collisions.Inc()
}

func (m *Metrics) Redirect(result string) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(result).Inc()
}

func (m *Metrics) ClickEventConsumed() {
	if m == nil {
		return
	}
	m.clickEvents.Inc()
}

// ObserveRanking records the time since start under op ("top" or "stats").
func (m *Metrics) ObserveRanking(op string, start time.Time) {
	if m == nil {
		return
	}
	m.rankingLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
