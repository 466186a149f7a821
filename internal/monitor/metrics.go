package monitor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 指标收集器
// 所有方法对 nil 接收者安全，测试中可直接传 nil
type Metrics struct {
	fillsReceived       *prometheus.CounterVec
	fillsRejected       *prometheus.CounterVec
	fillsDeduped        prometheus.Counter
	tradesPersisted     prometheus.Counter
	recomputeOutcomes   *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
	txDurationSecs      *prometheus.HistogramVec
	tradesClosed        prometheus.Counter
	closedPublished     *prometheus.CounterVec
	natsConnected       prometheus.Gauge
	workerPoolRunning   prometheus.Gauge
	reconcileRuns       *prometheus.CounterVec
	// 缓存相关
	cacheHitTotal  *prometheus.CounterVec
	cacheMissTotal *prometheus.CounterVec
	// 批量写入器相关
	batchWriteSize         prometheus.Histogram
	batchWriteDurationSecs prometheus.Histogram
	batchDedupCacheHit     *prometheus.CounterVec
}

// NewMetrics 创建指标收集器并注册到 reg（nil 时使用默认注册器）
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		fillsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fills_received_total",
				Help:      "Total number of fill events received",
			},
			[]string{"source"},
		),
		fillsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fills_rejected_total",
				Help:      "Total number of fill events rejected at the boundary",
			},
			[]string{"reason"}, // decode, invalid_action, invalid_fill
		),
		fillsDeduped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fills_deduplicated_total",
				Help:      "Total number of replayed fill events dropped",
			},
		),
		tradesPersisted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_persisted_total",
				Help:      "Total number of filled trade rows written",
			},
		),
		recomputeOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "recompute_outcomes_total",
				Help:      "Trailing pnl recompute outcomes",
			},
			[]string{"outcome"},
		),
		persistenceFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "persistence_failures_total",
				Help:      "Total number of rolled back transactions",
			},
			[]string{"op"},
		),
		txDurationSecs: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "tx_duration_seconds",
				Help:      "事务耗时分布（秒）",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"op"},
		),
		tradesClosed: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_sets_closed_total",
				Help:      "Total number of trade sets closed and priced",
			},
		),
		closedPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_closed_events_published_total",
				Help:      "Trade closed events published to NATS",
			},
			[]string{"status"}, // success, error
		),
		natsConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "nats_connected",
				Help:      "NATS connection status (1=connected, 0=disconnected)",
			},
		),
		workerPoolRunning: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "worker_pool_running",
				Help:      "当前正在处理成交的 worker 数量",
			},
		),
		reconcileRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reconcile_runs_total",
				Help:      "Reconciler sweep results",
			},
			[]string{"status"},
		),
		cacheHitTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hit_total",
				Help:      "缓存命中总数（按缓存类型）",
			},
			[]string{"cache_type"}, // dedup, contract
		),
		cacheMissTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_miss_total",
				Help:      "缓存未命中总数（按缓存类型）",
			},
			[]string{"cache_type"},
		),
		batchWriteSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_size",
				Help:      "批量写入大小分布",
				Buckets:   []float64{1, 10, 25, 50, 100, 200, 500},
			},
		),
		batchWriteDurationSecs: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_write_duration_seconds",
				Help:      "批量写入耗时分布（秒）",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
		batchDedupCacheHit: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_dedup_cache_hit_total",
				Help:      "Total number of batch deduplication cache hits",
			},
			[]string{"table"},
		),
	}

	reg.MustRegister(
		m.fillsReceived,
		m.fillsRejected,
		m.fillsDeduped,
		m.tradesPersisted,
		m.recomputeOutcomes,
		m.persistenceFailures,
		m.txDurationSecs,
		m.tradesClosed,
		m.closedPublished,
		m.natsConnected,
		m.workerPoolRunning,
		m.reconcileRuns,
		m.cacheHitTotal,
		m.cacheMissTotal,
		m.batchWriteSize,
		m.batchWriteDurationSecs,
		m.batchDedupCacheHit,
	)

	return m
}

// IncFillsReceived 增加接收的成交计数
func (m *Metrics) IncFillsReceived(source string) {
	if m == nil {
		return
	}
	m.fillsReceived.WithLabelValues(source).Inc()
}

// IncFillsRejected 增加被拒绝的成交计数
func (m *Metrics) IncFillsRejected(reason string) {
	if m == nil {
		return
	}
	m.fillsRejected.WithLabelValues(reason).Inc()
}

// IncFillsDeduped 增加去重成交计数
func (m *Metrics) IncFillsDeduped() {
	if m == nil {
		return
	}
	m.fillsDeduped.Inc()
}

// IncTradesPersisted 增加写入的成交行计数
func (m *Metrics) IncTradesPersisted() {
	if m == nil {
		return
	}
	m.tradesPersisted.Inc()
}

// IncRecomputeOutcome 记录一次重算结果
func (m *Metrics) IncRecomputeOutcome(outcome string) {
	if m == nil {
		return
	}
	m.recomputeOutcomes.WithLabelValues(outcome).Inc()
}

// IncPersistenceFailure 增加事务失败计数
func (m *Metrics) IncPersistenceFailure(op string) {
	if m == nil {
		return
	}
	m.persistenceFailures.WithLabelValues(op).Inc()
}

// ObserveTxDuration 观察事务耗时
func (m *Metrics) ObserveTxDuration(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.txDurationSecs.WithLabelValues(op).Observe(d.Seconds())
}

// IncTradesClosed 增加已平仓集合计数
func (m *Metrics) IncTradesClosed() {
	if m == nil {
		return
	}
	m.tradesClosed.Inc()
}

// IncClosedPublished 增加平仓事件发布计数
func (m *Metrics) IncClosedPublished(status string) {
	if m == nil {
		return
	}
	m.closedPublished.WithLabelValues(status).Inc()
}

// SetNATSConnected 设置NATS连接状态
func (m *Metrics) SetNATSConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.natsConnected.Set(1)
	} else {
		m.natsConnected.Set(0)
	}
}

// SetWorkerPoolRunning 设置运行中的 worker 数量
func (m *Metrics) SetWorkerPoolRunning(n int) {
	if m == nil {
		return
	}
	m.workerPoolRunning.Set(float64(n))
}

// IncReconcileRuns 增加对账执行计数
func (m *Metrics) IncReconcileRuns(status string) {
	if m == nil {
		return
	}
	m.reconcileRuns.WithLabelValues(status).Inc()
}

// IncCacheHit 增加缓存命中计数
func (m *Metrics) IncCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.cacheHitTotal.WithLabelValues(cacheType).Inc()
}

// IncCacheMiss 增加缓存未命中计数
func (m *Metrics) IncCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.cacheMissTotal.WithLabelValues(cacheType).Inc()
}

// ObserveBatchWriteSize 观察批量写入大小
func (m *Metrics) ObserveBatchWriteSize(size int) {
	if m == nil {
		return
	}
	m.batchWriteSize.Observe(float64(size))
}

// ObserveBatchWriteDuration 观察批量写入耗时
func (m *Metrics) ObserveBatchWriteDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.batchWriteDurationSecs.Observe(d.Seconds())
}

// IncBatchDedupCacheHit 增加批量写入去重缓存命中计数
func (m *Metrics) IncBatchDedupCacheHit(table string) {
	if m == nil {
		return
	}
	m.batchDedupCacheHit.WithLabelValues(table).Inc()
}
