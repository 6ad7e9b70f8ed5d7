package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor Prometheus监控指标收集器，每个实例持有独立 registry。
type Monitor struct {
	registry *prometheus.Registry

	// 订单指标
	ordersCreated   prometheus.Counter
	ordersSettled   prometheus.Counter
	ordersCancelled prometheus.Counter
	ordersOpen      prometheus.Gauge
	rejects         *prometheus.CounterVec

	// 托管指标
	transferFailures *prometheus.CounterVec
	custodyAlerts    prometheus.Counter

	// 延迟
	opLatency *prometheus.HistogramVec

	// 通知
	eventsPublished *prometheus.CounterVec
}

// Config 监控配置
type Config struct {
	Namespace string `yaml:"namespace"`
	Subsystem string `yaml:"subsystem"`
	// 是否注册 Go runtime/进程指标
	RuntimeMetrics bool `yaml:"runtime_metrics"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Namespace: "swap",
		Subsystem: "escrow",
	}
}

// New 创建新的Monitor实例
func New(cfg Config) *Monitor {
	reg := prometheus.NewRegistry()
	if cfg.RuntimeMetrics {
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}
	factory := promauto.With(reg)

	return &Monitor{
		registry: reg,

		ordersCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_created_total",
			Help:      "创建的托管订单总数",
		}),
		ordersSettled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_settled_total",
			Help:      "成交的订单总数",
		}),
		ordersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_cancelled_total",
			Help:      "撤销的订单总数",
		}),
		ordersOpen: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "orders_open",
			Help:      "当前持有托管资产的订单数",
		}),
		rejects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "rejects_total",
				Help:      "被拒绝的操作，按操作与错误类别划分",
			},
			[]string{"op", "kind"},
		),
		transferFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "transfer_failures_total",
				Help:      "外部资产转账失败次数",
			},
			[]string{"op"},
		),
		custodyAlerts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "custody_inconsistencies_total",
			Help:      "账本已提交但注册表回滚失败的次数",
		}),
		opLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "op_latency_seconds",
				Help:      "操作耗时分布（秒）",
				Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"op"},
		),
		eventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "events_published_total",
				Help:      "发布的订单通知数",
			},
			[]string{"type"},
		),
	}
}

// 订单相关方法
func (m *Monitor) RecordOrderCreated() {
	m.ordersCreated.Inc()
	m.ordersOpen.Inc()
}

func (m *Monitor) RecordOrderSettled() {
	m.ordersSettled.Inc()
	m.ordersOpen.Dec()
}

func (m *Monitor) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
	m.ordersOpen.Dec()
}

// SetOpenOrders 启动时根据注册表校准。
func (m *Monitor) SetOpenOrders(n int) {
	m.ordersOpen.Set(float64(n))
}

func (m *Monitor) RecordReject(op, kind string) {
	m.rejects.WithLabelValues(op, kind).Inc()
}

// 托管相关方法
func (m *Monitor) RecordTransferFailure(op string) {
	m.transferFailures.WithLabelValues(op).Inc()
}

func (m *Monitor) RecordCustodyInconsistency() {
	m.custodyAlerts.Inc()
}

func (m *Monitor) RecordLatency(op string, seconds float64) {
	m.opLatency.WithLabelValues(op).Observe(seconds)
}

func (m *Monitor) RecordEvent(eventType string) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
}

// Handler 返回HTTP handler用于暴露指标
func (m *Monitor) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry 返回prometheus registry
func (m *Monitor) Registry() *prometheus.Registry {
	return m.registry
}
