package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "iopn_backend"

// Collectors 汇总后端的 Prometheus 指标。nil 接收者上的方法都是空操作，方便测试不注入指标。
type Collectors struct {
	gatherer prometheus.Gatherer

	generationBatches *prometheus.CounterVec
	publishes         *prometheus.CounterVec
	chainCalls        *prometheus.CounterVec
	upstreamLatency   *prometheus.HistogramVec
	sessionsSwept     prometheus.Counter
	sessionBatches    prometheus.Gauge
}

// New 在给定 registry 上注册全部指标
func New(reg *prometheus.Registry) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		gatherer: reg,
		generationBatches: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generation_batches_total",
			Help:      "Total number of generation batches by outcome.",
		}, []string{"outcome"}),
		publishes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ipfs_publishes_total",
			Help:      "Total number of IPFS publish attempts by outcome.",
		}, []string{"outcome"}),
		chainCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chain_calls_total",
			Help:      "Total number of relayed chain calls by action and outcome.",
		}, []string{"action", "outcome"}),
		upstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_request_duration_seconds",
			Help:      "Latency of upstream calls (inference, pinning, chain).",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		}, []string{"upstream"}),
		sessionsSwept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_files_swept_total",
			Help:      "Total number of expired generation files removed by the sweeper.",
		}),
		sessionBatches: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "session_batches",
			Help:      "Generation batches awaiting publish, sampled after each sweep.",
		}),
	}
}

// NewDefault 创建带 Go 运行时指标的独立 registry
func NewDefault() *Collectors {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return New(reg)
}

func (c *Collectors) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

func (c *Collectors) GenerationBatch(outcome string) {
	if c == nil {
		return
	}
	c.generationBatches.WithLabelValues(outcome).Inc()
}

func (c *Collectors) Publish(outcome string) {
	if c == nil {
		return
	}
	c.publishes.WithLabelValues(outcome).Inc()
}

func (c *Collectors) ChainCall(action, outcome string) {
	if c == nil {
		return
	}
	c.chainCalls.WithLabelValues(action, outcome).Inc()
}

// ObserveUpstream 记录一次外部调用耗时
func (c *Collectors) ObserveUpstream(upstream string, started time.Time) {
	if c == nil {
		return
	}
	c.upstreamLatency.WithLabelValues(upstream).Observe(time.Since(started).Seconds())
}

func (c *Collectors) SessionFilesSwept(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.sessionsSwept.Add(float64(n))
}

func (c *Collectors) SessionBatches(n int) {
	if c == nil {
		return
	}
	c.sessionBatches.Set(float64(n))
}

// Outcome 把错误折叠成标签值
func Outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
