package agent

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录路由层的关键指标。
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	violationsTotal prometheus.Counter
	upgradesTotal   prometheus.Counter
	certifiedGauge  prometheus.Gauge
	delegatedGauge  prometheus.Gauge
}

// NewMetrics 构造 Metrics，reg 为空则注册到默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "agent_requests_total",
			Help: "Routed requests by operation and path",
		}, []string{"op", "path"}),
		violationsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agent_protocol_violations_total",
			Help: "Signer responses rejected for content mismatch",
		}),
		upgradesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "agent_query_upgrades_total",
			Help: "Queries upgraded to certified calls",
		}),
		certifiedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_pending_certified",
			Help: "Certified responses awaiting consumption",
		}),
		delegatedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "agent_pending_delegated",
			Help: "Delegated request markers awaiting consumption",
		}),
	}
	reg.MustRegister(m.requestsTotal, m.violationsTotal, m.upgradesTotal, m.certifiedGauge, m.delegatedGauge)
	return m
}

func (m *Metrics) incRequest(op, path string) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(op, path).Inc()
}

func (m *Metrics) incViolation() {
	if m == nil {
		return
	}
	m.violationsTotal.Inc()
}

func (m *Metrics) incUpgrade() {
	if m == nil {
		return
	}
	m.upgradesTotal.Inc()
}

func (m *Metrics) setPending(certified, delegated int) {
	if m == nil {
		return
	}
	m.certifiedGauge.Set(float64(certified))
	m.delegatedGauge.Set(float64(delegated))
}
