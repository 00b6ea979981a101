package niotcp

import "net"

type options struct {
	logger     Logger
	metrics    *Metrics
	maxPending int // 0 表示不限
	resolver   *net.Resolver
}

// Option 配置 Client 的可选协作者
type Option func(*options)

// WithLogger 设置日志，默认使用 slog.Default()。
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics 设置指标集合，多个 Client 可共享同一个 Metrics。
// 未设置时使用不注册的私有计数器。
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithMaxPending 限制发送队列中等待的消息数。
// 超过上限时 Send 返回 false；n <= 0 表示不限（默认）。
func WithMaxPending(n int) Option {
	return func(o *options) {
		o.maxPending = n
	}
}

// WithResolver 设置域名解析器，默认 net.DefaultResolver。
func WithResolver(r *net.Resolver) Option {
	return func(o *options) {
		o.resolver = r
	}
}

func checkOptions(o *options) {
	if o.logger == nil {
		o.logger = defaultLogger()
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	if o.maxPending < 0 {
		o.maxPending = 0
	}
	if o.resolver == nil {
		o.resolver = net.DefaultResolver
	}
}
