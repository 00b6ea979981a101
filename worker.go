package niotcp

import (
	"context"
	"io"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/legamerdc/niotcp/poller"
	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
)

// rawConn 为 worker 独占的非阻塞 socket。
// 暂时不可读写时返回 (0, nil)；对端关闭或连接被重置时返回 io.EOF。
type rawConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

const maxEvents = 8

// worker 拥有一条连接的 socket、poller、接收缓冲与在途发送项，
// 这些只在 run 所在 goroutine 中访问；其他 goroutine 只通过 queue 与原子标志交互。
type worker[T any] struct {
	c       *Client[T]
	cfg     Config
	log     Logger
	m       *Metrics
	session string
	cancel  context.CancelFunc

	queue       *sendQueue[T]
	stopped     atomic.Bool
	pendingSend atomic.Bool                 // 有新消息入队，下一轮打开写关注
	notified    atomic.Bool                 // OnDisconnected 已触发
	listener    atomic.Pointer[Listener[T]] // nil 表示已摘除

	plMu sync.Mutex // 保护 pl 指针，使 wake 不会用到已关闭的 poller
	pl   poller.Poller

	// framerDone 之后不再触碰 framer，受 c.framerMu 保护
	framerDone bool

	conn     rawConn
	fd       int
	writing  bool
	rbuf     []byte
	inflight *sendItem[T]
	events   []poller.Event
}

func newWorker[T any](c *Client[T], cancel context.CancelFunc) *worker[T] {
	w := &worker[T]{
		c:       c,
		cfg:     c.cfg,
		log:     c.opts.logger,
		m:       c.opts.metrics,
		session: uuid.NewString(),
		cancel:  cancel,
		queue:   newSendQueue[T](c.opts.maxPending),
		fd:      -1,
		rbuf:    make([]byte, c.cfg.BufferSize),
		events:  make([]poller.Event, maxEvents),
	}
	l := c.listener
	w.listener.Store(&l)
	return w
}

func (w *worker[T]) run(ctx context.Context) {
	defer w.cancel()
	w.log.Debug("connecting", "session", w.session, "addr", w.cfg.Addr())
	if err := w.open(ctx); err != nil {
		if errors.Is(err, ErrConnectAborted) {
			w.log.Debug("connect aborted", "session", w.session)
		} else {
			w.reportError(PhaseConnecting, nil, err)
		}
		w.teardown()
		return
	}
	if !w.stopped.Load() && w.c.workerConnected(w) {
		w.m.connects.Inc()
		w.log.Info("connected", "session", w.session, "addr", w.cfg.Addr())
		w.emit(func(l Listener[T]) { l.OnConnected(w.c) })
		w.loop()
	}
	w.teardown()
}

// open 创建 poller、解析地址并完成非阻塞建连，成功后 fd 只关注可读。
func (w *worker[T]) open(ctx context.Context) error {
	pl, err := poller.New()
	if err != nil {
		return errors.Wrap(err, "create poller")
	}
	w.plMu.Lock()
	w.pl = pl
	w.plMu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, w.cfg.ConnectTimeout)
	defer cancel()
	addr, err := resolve(ctx, w.c.opts.resolver, w.cfg.Host, w.cfg.Port)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return connectCtxErr(cerr)
		}
		return err
	}
	conn, fd, err := dial(ctx, pl, addr, w.cfg)
	if err != nil {
		return err
	}
	w.conn, w.fd = conn, fd
	return nil
}

func (w *worker[T]) loop() {
	for !w.stopped.Load() {
		if w.pendingSend.Swap(false) {
			if err := w.setWriteInterest(true); err != nil {
				w.log.Error("add write interest", "session", w.session, "error", err)
				return
			}
		}
		n, err := w.pl.Wait(w.events, -1)
		if err != nil {
			w.log.Error("poller wait", "session", w.session, "error", err)
			return
		}
		// n 可能为 0：入队或断开请求触发的唤醒
		for i := 0; i < n; i++ {
			if w.stopped.Load() {
				return
			}
			ev := w.events[i]
			if ev.FD != w.fd {
				continue
			}
			if (ev.Readable || ev.Hangup) && !w.onReadable() {
				return
			}
			if ev.Writable && !w.onWritable() {
				return
			}
		}
	}
}

// onReadable 读一次并分发；返回 false 表示连接应当结束。
func (w *worker[T]) onReadable() bool {
	n, err := w.conn.Read(w.rbuf)
	if err != nil {
		if err == io.EOF {
			w.log.Debug("peer closed", "session", w.session)
		} else {
			w.reportError(PhaseReceiving, nil, errors.Wrap(err, "read"))
		}
		return false
	}
	if n == 0 {
		return true
	}
	w.m.bytesRead.Add(float64(n))
	// rbuf 会被复用，交给 framer 的必须是拷贝
	data := make([]byte, n)
	copy(data, w.rbuf[:n])

	frames, err := w.decode(data)
	for _, f := range frames {
		w.deliver(f)
	}
	if err != nil {
		w.reportError(PhaseReceiving, nil, errors.Wrap(err, "decode"))
	}
	return true
}

// onWritable 推进在途发送项；返回 false 表示连接应当结束。
func (w *worker[T]) onWritable() bool {
	item := w.inflight
	if item == nil {
		p, ok := w.queue.pop()
		if !ok {
			// 无数据可发，关闭写关注避免空转
			if err := w.setWriteInterest(false); err != nil {
				w.log.Error("drop write interest", "session", w.session, "error", err)
				return false
			}
			return true
		}
		var err error
		if item, err = w.prepare(p); err != nil {
			w.failSend(p, err)
			return true
		}
		w.inflight = item
	}

	n, err := w.conn.Write(item.remaining())
	if n > 0 {
		item.pos += n
		w.m.bytesWritten.Add(float64(n))
	}
	if err != nil {
		w.inflight = nil
		item.release()
		if err == io.EOF {
			item.result.resolve(ErrConnectionClosed)
		} else {
			w.failSend(item.pending, errors.Wrap(err, "write"))
		}
		return false
	}
	if !item.drained() {
		// 短写：保留游标，等待下一次可写
		return true
	}
	w.inflight = nil
	item.release()
	w.m.sent.Inc()
	item.result.resolve(nil)
	w.emit(func(l Listener[T]) { l.OnMessageSent(w.c, item.msg) })
	return true
}

func (w *worker[T]) setWriteInterest(on bool) error {
	if w.writing == on {
		return nil
	}
	if err := w.pl.Mod(w.fd, true, on); err != nil {
		return err
	}
	w.writing = on
	return nil
}

// prepare 序列化并分帧，字节放入池化缓冲
func (w *worker[T]) prepare(p pending[T]) (*sendItem[T], error) {
	raw, err := w.serialize(p.msg)
	if err != nil {
		return nil, errors.Wrap(err, "serialize")
	}
	buf := bytebufferpool.Get()
	if err := w.encode(buf, raw); err != nil {
		bytebufferpool.Put(buf)
		return nil, err
	}
	return &sendItem[T]{pending: p, buf: buf}, nil
}

func (w *worker[T]) serialize(v T) (b []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return w.c.ser.Serialize(v)
}

func (w *worker[T]) encode(buf *bytebufferpool.ByteBuffer, raw []byte) (err error) {
	w.c.framerMu.Lock()
	defer w.c.framerMu.Unlock()
	if w.framerDone {
		return ErrConnectionClosed
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	out, err := w.c.framer.Encode(buf.B[:0], raw)
	if err != nil {
		return errors.Wrap(err, "encode")
	}
	buf.B = out
	return nil
}

func (w *worker[T]) decode(p []byte) (frames [][]byte, err error) {
	w.c.framerMu.Lock()
	defer w.c.framerMu.Unlock()
	if w.framerDone {
		return nil, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
		if err != nil {
			resetFramer(w.c.framer, w.log)
		}
	}()
	return w.c.framer.Decode(p)
}

func (w *worker[T]) deserialize(p []byte) (v T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()
	return w.c.ser.Deserialize(p)
}

// deliver 单独处理一帧，失败只影响这一帧
func (w *worker[T]) deliver(frame []byte) {
	msg, err := w.deserialize(frame)
	if err != nil {
		w.reportError(PhaseReceiving, nil, errors.Wrap(err, "deserialize"))
		return
	}
	w.m.received.Inc()
	w.emit(func(l Listener[T]) { l.OnMessageReceived(w.c, msg) })
}

func (w *worker[T]) failSend(p pending[T], err error) {
	p.result.resolve(err)
	w.reportError(PhaseSending, &p, err)
}

func (w *worker[T]) reportError(phase Phase, p *pending[T], err error) {
	e := &Error[T]{Phase: phase, Err: err}
	if p != nil {
		e.Message = p.msg
		e.HasMessage = true
	}
	w.m.errors.WithLabelValues(phase.String()).Inc()
	w.log.Warn("connection error", "session", w.session, "phase", phase.String(), "error", err)
	w.emit(func(l Listener[T]) { l.OnError(w.c, e) })
}

// teardown 释放本连接的全部资源，OnDisconnected 至多触发一次，之后不再有回调。
func (w *worker[T]) teardown() {
	w.stopped.Store(true)
	for _, p := range w.queue.close() {
		p.result.resolve(ErrConnectionClosed)
	}
	if it := w.inflight; it != nil {
		w.inflight = nil
		it.result.resolve(ErrConnectionClosed)
		it.release()
	}
	w.rbuf = nil
	w.releaseFramer()

	// socket 与 poller 各自关闭，互不影响
	if w.conn != nil {
		if err := w.conn.Close(); err != nil {
			w.reportError(PhaseDisconnecting, nil, errors.Wrap(err, "close socket"))
		}
		w.conn = nil
		w.fd = -1
	}
	w.plMu.Lock()
	pl := w.pl
	w.pl = nil
	w.plMu.Unlock()
	if pl != nil {
		if err := pl.Close(); err != nil {
			w.reportError(PhaseDisconnecting, nil, errors.Wrap(err, "close poller"))
		}
	}

	w.m.disconnects.Inc()
	w.c.workerDisconnected(w)
	w.log.Info("disconnected", "session", w.session)
	if w.notified.CompareAndSwap(false, true) {
		w.emit(func(l Listener[T]) { l.OnDisconnected(w.c) })
	}
	w.listener.Store(nil)
}

func (w *worker[T]) enqueue(p pending[T]) error {
	if w.stopped.Load() {
		return ErrConnectionClosed
	}
	if err := w.queue.push(p); err != nil {
		return err
	}
	// 只在标志由 false 变 true 时唤醒，已有未消费的唤醒时合并
	if !w.pendingSend.Swap(true) {
		w.wake()
	}
	return nil
}

func (w *worker[T]) stop() {
	w.stopped.Store(true)
	w.cancel()
	w.wake()
}

func (w *worker[T]) wake() {
	w.plMu.Lock()
	defer w.plMu.Unlock()
	if w.pl == nil {
		return
	}
	if err := w.pl.Wake(); err != nil {
		w.log.Debug("wake poller", "session", w.session, "error", err)
	}
}

func (w *worker[T]) detach() { w.listener.Store(nil) }

// releaseFramer 为本连接做断开时的 Reset，与 ForceDisconnect 之间只生效一次
func (w *worker[T]) releaseFramer() {
	w.c.framerMu.Lock()
	defer w.c.framerMu.Unlock()
	if w.framerDone {
		return
	}
	w.framerDone = true
	resetFramer(w.c.framer, w.log)
}

func (w *worker[T]) emit(fn func(Listener[T])) {
	lp := w.listener.Load()
	if lp == nil {
		return
	}
	safeCall(w.log, *lp, fn)
}

// safeCall 单独保护每一次回调
func safeCall[T any](log Logger, l Listener[T], fn func(Listener[T])) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("listener panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	fn(l)
}

func resetFramer(f Framer, log Logger) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("framer reset panic", "panic", r)
		}
	}()
	f.Reset()
}

func resolve(ctx context.Context, r *net.Resolver, host string, port int) (*net.TCPAddr, error) {
	if ip := net.ParseIP(host); ip != nil {
		return &net.TCPAddr{IP: ip, Port: port}, nil
	}
	addrs, err := r.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve %s", host)
	}
	if len(addrs) == 0 {
		return nil, errors.Errorf("resolve %s: no addresses", host)
	}
	// 优先 IPv4
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return &net.TCPAddr{IP: a.IP, Port: port}, nil
		}
	}
	return &net.TCPAddr{IP: addrs[0].IP, Port: port, Zone: addrs[0].Zone}, nil
}

func connectCtxErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrConnectTimeout
	}
	return ErrConnectAborted
}
