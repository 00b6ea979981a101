package ring

import (
	"bytes"
	"errors"
)

var ErrTooLarge = errors.New("ring: write too large")

// Buffer 是单 goroutine 使用的环形字节缓冲，容量始终为 2 的幂。
// framer 用它暂存跨多次读取的半包。
type Buffer struct {
	buf      []byte
	mask     int
	readPos  int
	writePos int
}

// New 返回容量为 2 的幂次的环形缓冲。若 cap 非 2 的幂则向上取整。
func New(capacity int) *Buffer {
	n := pow2(capacity)
	return &Buffer{buf: make([]byte, n), mask: n - 1}
}

func pow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func (b *Buffer) Cap() int { return len(b.buf) }

func (b *Buffer) Len() int { return b.writePos - b.readPos }

func (b *Buffer) Free() int { return b.Cap() - b.Len() }

// Grow 保证至少还能写入 n 字节，必要时按 2 的幂扩容并线性化已有数据。
func (b *Buffer) Grow(n int) {
	if n <= b.Free() {
		return
	}
	ln := b.Len()
	size := pow2(ln + n)
	nb := make([]byte, size)
	b.copyOut(nb[:ln])
	b.buf = nb
	b.mask = size - 1
	b.readPos = 0
	b.writePos = ln
}

// Write 将数据写入环形缓冲；当数据长度超过剩余空间时返回错误。
func (b *Buffer) Write(p []byte) (int, error) {
	if len(p) > b.Free() {
		return 0, ErrTooLarge
	}
	n := len(p)
	start := b.writePos & b.mask
	end := start + n
	if end <= len(b.buf) {
		copy(b.buf[start:end], p)
	} else {
		l := len(b.buf) - start
		copy(b.buf[start:], p[:l])
		copy(b.buf[:n-l], p[l:])
	}
	b.writePos += n
	return n, nil
}

// Peek 读取最多 n 字节但不前进读指针。
// 未跨越尾部时返回内部视图，调用方不得持有。
func (b *Buffer) Peek(n int) []byte {
	if n <= 0 {
		return nil
	}
	if ln := b.Len(); n > ln {
		n = ln
	}
	start := b.readPos & b.mask
	end := start + n
	if end <= len(b.buf) {
		return b.buf[start:end]
	}
	out := make([]byte, n)
	b.copyOut(out)
	return out
}

// Next 拷贝出最多 n 字节并前进读指针，返回的切片归调用方所有。
func (b *Buffer) Next(n int) []byte {
	if ln := b.Len(); n > ln {
		n = ln
	}
	out := make([]byte, n)
	b.copyOut(out)
	b.readPos += n
	return out
}

// IndexByte 返回 c 相对读指针的偏移，不存在时返回 -1。
func (b *Buffer) IndexByte(c byte) int {
	ln := b.Len()
	if ln == 0 {
		return -1
	}
	start := b.readPos & b.mask
	end := start + ln
	if end <= len(b.buf) {
		return bytes.IndexByte(b.buf[start:end], c)
	}
	head := b.buf[start:]
	if i := bytes.IndexByte(head, c); i >= 0 {
		return i
	}
	if i := bytes.IndexByte(b.buf[:end-len(b.buf)], c); i >= 0 {
		return len(head) + i
	}
	return -1
}

// Discard 前进读指针。
func (b *Buffer) Discard(n int) int {
	if ln := b.Len(); n > ln {
		n = ln
	}
	b.readPos += n
	return n
}

// Reset 丢弃全部内容，保留已分配空间。
func (b *Buffer) Reset() {
	b.readPos = 0
	b.writePos = 0
}

// copyOut 从读指针起拷贝 len(dst) 字节，不移动指针。
func (b *Buffer) copyOut(dst []byte) {
	n := len(dst)
	if n == 0 {
		return
	}
	start := b.readPos & b.mask
	end := start + n
	if end <= len(b.buf) {
		copy(dst, b.buf[start:end])
		return
	}
	l := len(b.buf) - start
	copy(dst[:l], b.buf[start:])
	copy(dst[l:], b.buf[:n-l])
}
