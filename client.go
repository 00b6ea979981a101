// Package niotcp 实现基于就绪选择器（epoll/kqueue）的单连接 TCP 客户端。
// 每次 Connect 启动一个专属 worker goroutine 驱动非阻塞 socket；
// 调用方通过 Send 投递消息，通过 Listener 异步接收事件。
package niotcp

import (
	"context"
	"sync"

	"github.com/legamerdc/niotcp/poller"
)

// Client 管理一条出站连接的生命周期，方法可在任意 goroutine 调用。
type Client[T any] struct {
	cfg      Config
	opts     options
	framer   Framer
	ser      Serializer[T]
	listener Listener[T]

	// framerMu 串行化 framer 访问，被强制断开的 worker 收尾时不会与新连接交错
	framerMu sync.Mutex

	mu    sync.Mutex // 只保护状态迁移，不在持有期间做 I/O
	state State
	w     *worker[T]
	wg    sync.WaitGroup
}

// New 构造未连接的 Client
func New[T any](cfg Config, framer Framer, ser Serializer[T], l Listener[T], opts ...Option) (*Client[T], error) {
	if framer == nil || ser == nil || l == nil {
		return nil, ErrInvalidArgument
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	checkOptions(&o)
	return &Client[T]{
		cfg:      cfg,
		opts:     o,
		framer:   framer,
		ser:      ser,
		listener: l,
	}, nil
}

// Connect 启动 worker 并立即返回，结果通过 OnConnected 或 OnError+OnDisconnected 通知。
// 已存在 worker（Connecting/Connected/Disconnecting）时返回 ErrAlreadyConnected。
func (c *Client[T]) Connect() error {
	if !poller.Supported {
		return ErrPlatformNotSupported
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w != nil {
		return ErrAlreadyConnected
	}
	c.framerMu.Lock()
	resetFramer(c.framer, c.opts.logger)
	c.framerMu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	w := newWorker(c, cancel)
	c.w = w
	c.state = StateConnecting
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		w.run(ctx)
	}()
	return nil
}

// Disconnect 请求 worker 协作退出，不等待。
// 返回 false 表示没有可断开的连接或已在断开中。
func (c *Client[T]) Disconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.state {
	case StateConnecting, StateConnected:
		c.state = StateDisconnecting
		c.w.stop()
		return true
	}
	return false
}

// ForceDisconnect 摘除 worker 的 Listener、请求退出，并在当前 goroutine 中
// 同步触发 OnDisconnected（若 worker 尚未触发），不等待 socket 关闭。
// 返回后即可再次 Connect。
func (c *Client[T]) ForceDisconnect() {
	c.mu.Lock()
	w := c.w
	if w == nil {
		c.mu.Unlock()
		return
	}
	// 先占用通知标志再摘除 Listener：worker 的 teardown 要么已经通知过，
	// 要么之后 CAS 失败，OnDisconnected 恰好触发一次
	fire := w.notified.CompareAndSwap(false, true)
	w.detach()
	c.w = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	w.stop()
	w.releaseFramer()
	if fire {
		safeCall(c.opts.logger, c.listener, func(l Listener[T]) { l.OnDisconnected(c) })
	}
}

// Send 将消息放入发送队列，从不阻塞。
// 返回 true 只表示已入队；未连接、队列已满或连接正在关闭时返回 false。
func (c *Client[T]) Send(msg T) bool {
	return c.enqueue(pending[T]{msg: msg}) == nil
}

// SendWithResult 与 Send 相同，额外返回完成句柄。
// 未被接受时句柄已以 ErrNotConnected/ErrQueueFull/ErrConnectionClosed 结束。
func (c *Client[T]) SendWithResult(msg T) (*Result, bool) {
	r := newResult()
	if err := c.enqueue(pending[T]{msg: msg, result: r}); err != nil {
		r.resolve(err)
		return r, false
	}
	return r, true
}

func (c *Client[T]) enqueue(p pending[T]) error {
	c.mu.Lock()
	w, state := c.w, c.state
	c.mu.Unlock()
	if state != StateConnected || w == nil {
		return ErrNotConnected
	}
	return w.enqueue(p)
}

// State 返回当前状态
func (c *Client[T]) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client[T]) IsConnected() bool { return c.State() == StateConnected }

// Addr 返回远端 host:port
func (c *Client[T]) Addr() string { return c.cfg.Addr() }

// Pending 返回当前连接发送队列中等待的消息数
func (c *Client[T]) Pending() int {
	c.mu.Lock()
	w := c.w
	c.mu.Unlock()
	if w == nil {
		return 0
	}
	return w.queue.len()
}

// Wait 等待本 Client 启动的所有 worker goroutine 退出（包括被强制断开、仍在收尾的）。
// 不应与 Connect 并发调用。
func (c *Client[T]) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// workerConnected 由 worker 在建连成功后调用；断开请求已到达时返回 false。
func (c *Client[T]) workerConnected(w *worker[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w != w || c.state != StateConnecting {
		return false
	}
	c.state = StateConnected
	return true
}

// workerDisconnected 由 worker 在收尾完成、通知 Listener 之前调用。
func (c *Client[T]) workerDisconnected(w *worker[T]) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.w == w {
		c.w = nil
		c.state = StateDisconnected
	}
}
