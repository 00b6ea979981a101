package niotcp

import (
	"sync"

	"github.com/valyala/bytebufferpool"
)

// pending 为排队等待发送的消息
type pending[T any] struct {
	msg    T
	result *Result // 可为 nil
}

// sendQueue 为多生产者、单消费者的 FIFO 队列。
// 连接结束时 close 清空队列，之后 push 一律失败，消息不会跨连接保留。
type sendQueue[T any] struct {
	mu     sync.Mutex
	items  []pending[T]
	head   int
	limit  int // 0 表示不限
	closed bool
}

func newSendQueue[T any](limit int) *sendQueue[T] {
	return &sendQueue[T]{limit: limit}
}

func (q *sendQueue[T]) push(p pending[T]) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrConnectionClosed
	}
	if q.limit > 0 && len(q.items)-q.head >= q.limit {
		return ErrQueueFull
	}
	q.items = append(q.items, p)
	return nil
}

func (q *sendQueue[T]) pop() (pending[T], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero pending[T]
	if q.head == len(q.items) {
		return zero, false
	}
	p := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	// 压缩队列
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	}
	return p, true
}

func (q *sendQueue[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

// close 关闭队列并返回尚未发送的消息
func (q *sendQueue[T]) close() []pending[T] {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	rest := q.items[q.head:]
	q.items = nil
	q.head = 0
	return rest
}

// sendItem 为正在写出的消息，最多同时存在一个。
type sendItem[T any] struct {
	pending[T]
	buf *bytebufferpool.ByteBuffer
	pos int
}

func (s *sendItem[T]) remaining() []byte { return s.buf.B[s.pos:] }

func (s *sendItem[T]) drained() bool { return s.pos >= len(s.buf.B) }

func (s *sendItem[T]) release() {
	if s.buf != nil {
		bytebufferpool.Put(s.buf)
		s.buf = nil
	}
}
