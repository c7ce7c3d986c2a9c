// metrics.go — 事件路由的 Prometheus 计数。
package apiserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 路由计数器集合, 挂到事件路由器上。
type Metrics struct {
	registry *prometheus.Registry

	eventsRouted    *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	approvalsRouted *prometheus.CounterVec
}

// NewMetrics 创建并注册计数器。用独立 registry, 避免全局状态串测试。
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		eventsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monitor",
			Name:      "events_routed_total",
			Help:      "已路由到处理器的通知数。",
		}, []string{"method"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monitor",
			Name:      "events_dropped_total",
			Help:      "因方法不支持而丢弃的通知数。",
		}, []string{"method"}),
		approvalsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "monitor",
			Name:      "approvals_routed_total",
			Help:      "已路由的审批请求数。",
		}, []string{"method"}),
	}
	reg.MustRegister(m.eventsRouted, m.eventsDropped, m.approvalsRouted)
	return m
}

func (m *Metrics) EventRouted(method string)    { m.eventsRouted.WithLabelValues(method).Inc() }
func (m *Metrics) EventDropped(method string)   { m.eventsDropped.WithLabelValues(method).Inc() }
func (m *Metrics) ApprovalRouted(method string) { m.approvalsRouted.WithLabelValues(method).Inc() }

// Handler 暴露 /metrics 的抓取端点。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
