package remotesigner

import "github.com/prometheus/client_golang/prometheus"

// Metrics 记录 signer 通道的关键指标。
type Metrics struct {
	callsTotal    *prometheus.CounterVec
	rejectedTotal *prometheus.CounterVec
	latency       *prometheus.HistogramVec
}

// NewMetrics 构造 Metrics，reg 为空则注册到默认注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signer_calls_total",
			Help: "Signer interactions by operation and outcome",
		}, []string{"op", "outcome"}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signer_rejected_total",
			Help: "Signer interactions rejected before reaching the signer",
		}, []string{"op", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "signer_latency_ms",
			Help:    "Latency of signer interactions in milliseconds",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"op"}),
	}
	reg.MustRegister(m.callsTotal, m.rejectedTotal, m.latency)
	return m
}

func (m *Metrics) observeCall(op string, durMs float64, success bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.callsTotal.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(durMs)
}

func (m *Metrics) incRejected(op, reason string) {
	if m == nil {
		return
	}
	m.rejectedTotal.WithLabelValues(op, reason).Inc()
}
