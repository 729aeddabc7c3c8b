package geo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — prometheus-метрики планировщика подгрузки.
// Нулевой указатель допустим: все методы ничего не делают.
type Metrics struct {
	needCluster   prometheus.Counter
	dispatched    prometheus.Counter
	bindRequests  prometheus.Counter
	recenters     prometheus.Counter
	passDuration  prometheus.Histogram
	pendingBuilds prometheus.Gauge
}

// NewMetrics создаёт метрики и регистрирует их в reg. При reg == nil метрики не регистрируются.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		needCluster: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridworld",
			Subsystem: "geo",
			Name:      "need_cluster_total",
			Help:      "Number of NeedCluster notifications for missing clusters",
		}),
		dispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridworld",
			Subsystem: "geo",
			Name:      "geometry_dispatched_total",
			Help:      "Number of geometry builds dispatched",
		}),
		bindRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridworld",
			Subsystem: "geo",
			Name:      "bind_requests_total",
			Help:      "Number of clusters handed to the load limiter",
		}),
		recenters: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "gridworld",
			Subsystem: "geo",
			Name:      "origin_recenters_total",
			Help:      "Number of world origin recenters",
		}),
		passDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridworld",
			Subsystem: "geo",
			Name:      "update_pass_seconds",
			Help:      "Duration of one UpdateGeoForPosition pass",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}),
		pendingBuilds: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridworld",
			Subsystem: "geo",
			Name:      "pending_builds",
			Help:      "Geometry builds dispatched but not finished",
		}),
	}
}

func (m *Metrics) incNeedCluster() {
	if m != nil {
		m.needCluster.Inc()
	}
}

func (m *Metrics) buildStarted() {
	if m != nil {
		m.dispatched.Inc()
		m.pendingBuilds.Inc()
	}
}

func (m *Metrics) buildFinished() {
	if m != nil {
		m.pendingBuilds.Dec()
	}
}

func (m *Metrics) incBindRequests() {
	if m != nil {
		m.bindRequests.Inc()
	}
}

func (m *Metrics) incRecenters() {
	if m != nil {
		m.recenters.Inc()
	}
}

func (m *Metrics) observePass(d time.Duration) {
	if m != nil {
		m.passDuration.Observe(d.Seconds())
	}
}
