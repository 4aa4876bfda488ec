package delegation

import "github.com/prometheus/client_golang/prometheus"

// Metrics 收敛委托链缓存与签发相关指标。
type Metrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  *prometheus.CounterVec
	issueLatency prometheus.Histogram
	issueTotal   *prometheus.CounterVec
	generated    *prometheus.CounterVec
}

// NewMetrics 构造指标集合，reg 为空时默认使用全局注册器。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "delegation_chain_cache_hits_total",
			Help: "Number of delegation chain cache hits",
		}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delegation_chain_cache_misses_total",
			Help: "Number of delegation chain cache misses by reason",
		}, []string{"reason"}),
		issueLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "delegation_issue_latency_ms",
			Help:    "Latency of delegation chain issuance in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}),
		issueTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "delegation_issue_total",
			Help: "Number of delegation chain issuance attempts by outcome",
		}, []string{"outcome"}),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "base_identity_generated_total",
			Help: "Number of base identities generated by kind",
		}, []string{"kind"}),
	}
	reg.MustRegister(m.cacheHits, m.cacheMisses, m.issueLatency, m.issueTotal, m.generated)
	return m
}

func (m *Metrics) incCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

func (m *Metrics) incCacheMiss(reason string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(reason).Inc()
}

func (m *Metrics) observeIssue(durMs float64, success bool) {
	if m == nil {
		return
	}
	m.issueLatency.Observe(durMs)
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	m.issueTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) incGenerated(kind string) {
	if m == nil {
		return
	}
	m.generated.WithLabelValues(kind).Inc()
}
