package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsConfig mirrors the teacher's MetricsConfig shape (namespace +
// enabled flag) trimmed to what conduit's components need.
type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

func (c *MetricsConfig) setDefaults() {
	if c.Namespace == "" {
		c.Namespace = "conduit"
	}
}

// Metrics holds the Prometheus instruments for the three subsystems the
// spec calls the core: the turn loop + tool executor, the orchestrator +
// strategy bandit, and recall + guardians. Grounded on the teacher's
// initAgentMetrics/initLLMMetrics/initToolMetrics per-subsystem grouping.
type Metrics struct {
	registry *prometheus.Registry

	turnsTotal    *prometheus.CounterVec
	turnDuration  *prometheus.HistogramVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	toolErrors    *prometheus.CounterVec

	orchestratorDispatches *prometheus.CounterVec
	orchestratorDuration   *prometheus.HistogramVec
	banditReward           *prometheus.HistogramVec

	recallQueries  *prometheus.CounterVec
	recallDuration *prometheus.HistogramVec

	guardianFindings *prometheus.CounterVec
}

// NewMetrics constructs a fresh registry of instruments, or (nil, nil) if
// disabled, matching the teacher's NewMetrics nil-on-disabled contract.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	cfg.setDefaults()

	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initTurnMetrics(cfg.Namespace)
	m.initOrchestratorMetrics(cfg.Namespace)
	m.initRecallMetrics(cfg.Namespace)
	m.initGuardianMetrics(cfg.Namespace)
	return m, nil
}

// Registry exposes the underlying Prometheus registry for a /metrics
// handler, left to the out-of-scope HTTP layer per spec §1.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) initTurnMetrics(ns string) {
	m.turnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "turn", Name: "total",
		Help: "Total number of turn-loop iterations run.",
	}, []string{"stop_reason"})

	m.turnDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "turn", Name: "duration_seconds",
		Help:    "Wall-clock duration of one turn-loop iteration.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"stop_reason"})

	m.toolCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "tool", Name: "calls_total",
		Help: "Total number of tool invocations.",
	}, []string{"tool", "is_error"})

	m.toolDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "tool", Name: "duration_seconds",
		Help:    "Tool execution latency.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 15),
	}, []string{"tool"})

	m.toolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "tool", Name: "errors_total",
		Help: "Total number of tool errors.",
	}, []string{"tool"})

	m.registry.MustRegister(m.turnsTotal, m.turnDuration, m.toolCalls, m.toolDuration, m.toolErrors)
}

func (m *Metrics) initOrchestratorMetrics(ns string) {
	m.orchestratorDispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "orchestrator", Name: "dispatches_total",
		Help: "Total number of task dispatches by strategy and outcome.",
	}, []string{"strategy", "success"})

	m.orchestratorDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "orchestrator", Name: "dispatch_duration_seconds",
		Help:    "Task dispatch wall-clock duration.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"strategy"})

	m.banditReward = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "bandit", Name: "reward",
		Help:    "Reward fed back to the strategy bandit, in [0,1].",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"strategy"})

	m.registry.MustRegister(m.orchestratorDispatches, m.orchestratorDuration, m.banditReward)
}

func (m *Metrics) initRecallMetrics(ns string) {
	m.recallQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "recall", Name: "queries_total",
		Help: "Total number of recall queries by ranker availability.",
	}, []string{"rankers"})

	m.recallDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns, Subsystem: "recall", Name: "query_duration_seconds",
		Help:    "Recall query fan-out + fusion latency.",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{"rankers"})

	m.registry.MustRegister(m.recallQueries, m.recallDuration)
}

func (m *Metrics) initGuardianMetrics(ns string) {
	m.guardianFindings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns, Subsystem: "guardian", Name: "findings_total",
		Help: "Total findings recorded by guardian and severity.",
	}, []string{"guardian", "severity"})

	m.registry.MustRegister(m.guardianFindings)
}
