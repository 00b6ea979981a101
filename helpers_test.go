package niotcp

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/legamerdc/niotcp/poller"
	"github.com/legamerdc/niotcp/protocol"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// recorder 按顺序记录回调，形如 "connected"、"recv:hi"、"error:sending:hi"
type recorder struct {
	mu     sync.Mutex
	events []string
	errs   []*Error[string]

	onConnected func(c *Client[string])
	onReceived  func(c *Client[string], msg string)
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) OnConnected(c *Client[string]) {
	r.add("connected")
	if r.onConnected != nil {
		r.onConnected(c)
	}
}

func (r *recorder) OnDisconnected(*Client[string]) { r.add("disconnected") }

func (r *recorder) OnMessageSent(_ *Client[string], msg string) { r.add("sent:" + msg) }

func (r *recorder) OnMessageReceived(c *Client[string], msg string) {
	r.add("recv:" + msg)
	if r.onReceived != nil {
		r.onReceived(c, msg)
	}
}

func (r *recorder) OnError(_ *Client[string], err *Error[string]) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
	if err.HasMessage {
		r.add(fmt.Sprintf("error:%s:%s", err.Phase, err.Message))
		return
	}
	r.add("error:" + err.Phase.String())
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

func (r *recorder) errors() []*Error[string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Error[string](nil), r.errs...)
}

func (r *recorder) count(ev string) int {
	n := 0
	for _, e := range r.snapshot() {
		if e == ev {
			n++
		}
	}
	return n
}

// withPrefix 返回带指定前缀的事件，保持顺序
func (r *recorder) withPrefix(prefix string) []string {
	var out []string
	for _, e := range r.snapshot() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			out = append(out, e)
		}
	}
	return out
}

// countingFramer 统计 Reset 次数
type countingFramer struct {
	protocol.LengthPrefix
	resets atomic.Int32
}

func (f *countingFramer) Reset() {
	f.resets.Add(1)
	f.LengthPrefix.Reset()
}

// failingSerializer 对 bad 中的消息返回错误
type failingSerializer struct {
	protocol.String
	bad string
}

func (s failingSerializer) Serialize(v string) ([]byte, error) {
	if v == s.bad {
		return nil, fmt.Errorf("cannot serialize %q", v)
	}
	return s.String.Serialize(v)
}

type fakePoller struct {
	mu     sync.Mutex
	mods   []string
	wakes  int
	closed bool
}

func (p *fakePoller) Register(fd poller.FD, r, w bool) error { return nil }

func (p *fakePoller) Mod(fd poller.FD, r, w bool) error {
	p.mu.Lock()
	p.mods = append(p.mods, fmt.Sprintf("%d:r=%t,w=%t", fd, r, w))
	p.mu.Unlock()
	return nil
}

func (p *fakePoller) Unregister(poller.FD) error { return nil }

func (p *fakePoller) Wait([]poller.Event, int) (int, error) { return 0, nil }

func (p *fakePoller) Wake() error {
	p.mu.Lock()
	p.wakes++
	p.mu.Unlock()
	return nil
}

func (p *fakePoller) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return nil
}

// scriptConn 每次 Write 最多写 limit 字节，Read 依次返回 reads 中的内容
type scriptConn struct {
	limit    int
	written  []byte
	writeErr error
	reads    [][]byte
	readErr  error
	closed   int
	onClose  func()
}

func (c *scriptConn) Write(p []byte) (int, error) {
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	n := len(p)
	if c.limit > 0 && n > c.limit {
		n = c.limit
	}
	c.written = append(c.written, p[:n]...)
	return n, nil
}

func (c *scriptConn) Read(p []byte) (int, error) {
	if len(c.reads) == 0 {
		if c.readErr != nil {
			return 0, c.readErr
		}
		return 0, io.EOF
	}
	chunk := c.reads[0]
	n := copy(p, chunk)
	if n == len(chunk) {
		c.reads = c.reads[1:]
	} else {
		c.reads[0] = chunk[n:]
	}
	return n, nil
}

func (c *scriptConn) Close() error {
	c.closed++
	if c.onClose != nil {
		c.onClose()
	}
	return nil
}

type harness struct {
	c      *Client[string]
	w      *worker[string]
	rec    *recorder
	framer *countingFramer
	pl     *fakePoller
	conn   *scriptConn
	reg    *prometheus.Registry
}

// newHarness 构造一个未启动 goroutine 的 worker，直接驱动其读写路径
func newHarness(t *testing.T, ser Serializer[string], opts ...Option) *harness {
	t.Helper()
	h := &harness{
		rec:    &recorder{},
		framer: &countingFramer{},
		pl:     &fakePoller{},
		conn:   &scriptConn{},
		reg:    prometheus.NewRegistry(),
	}
	if ser == nil {
		ser = protocol.String{}
	}
	opts = append([]Option{WithMetrics(NewMetrics(h.reg))}, opts...)
	c, err := New[string](DefaultConfig("127.0.0.1", 9), h.framer, ser, h.rec, opts...)
	require.NoError(t, err)
	_, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := newWorker(c, cancel)
	w.pl = h.pl
	w.conn = h.conn
	w.fd = 7
	c.w = w
	c.state = StateConnected

	h.c, h.w = c, w
	return h
}

// frame 用 LengthPrefix 编码
func frame(t *testing.T, payloads ...string) []byte {
	t.Helper()
	var f protocol.LengthPrefix
	var out []byte
	for _, p := range payloads {
		var err error
		out, err = f.Encode(out, []byte(p))
		require.NoError(t, err)
	}
	return out
}

// unframe 解出 LengthPrefix 帧
func unframe(t *testing.T, b []byte) []string {
	t.Helper()
	var f protocol.LengthPrefix
	frames, err := f.Decode(b)
	require.NoError(t, err)
	require.Zero(t, f.Buffered())
	out := make([]string, 0, len(frames))
	for _, fr := range frames {
		out = append(out, string(fr))
	}
	return out
}
