package niotcp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics 为连接计数器集合
type Metrics struct {
	connects     prometheus.Counter
	disconnects  prometheus.Counter
	sent         prometheus.Counter
	received     prometheus.Counter
	bytesWritten prometheus.Counter
	bytesRead    prometheus.Counter
	errors       *prometheus.CounterVec
}

// NewMetrics 创建计数器并注册到 reg；reg 为 nil 时不注册。
// 同一个 Registerer 只能调用一次，多个 Client 通过 WithMetrics 共享结果。
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "niotcp",
			Name:      name,
			Help:      help,
		})
	}
	return &Metrics{
		connects:     counter("connects_total", "Connections established"),
		disconnects:  counter("disconnects_total", "Connection teardowns completed"),
		sent:         counter("messages_sent_total", "Messages fully written to the socket"),
		received:     counter("messages_received_total", "Messages decoded and delivered"),
		bytesWritten: counter("bytes_written_total", "Bytes written to the socket"),
		bytesRead:    counter("bytes_read_total", "Bytes read from the socket"),
		errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "niotcp",
			Name:      "errors_total",
			Help:      "Errors reported to listeners, by phase",
		}, []string{"phase"}),
	}
}
