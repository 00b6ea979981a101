package protocol

import (
	"errors"

	"github.com/legamerdc/niotcp/internal/ring"
)

const (
	// DefaultMaxFrame 为单帧负载默认上限
	DefaultMaxFrame = 16 << 20 // 16 MiB

	initialBuffer = 8 << 10
)

var (
	ErrFrameTooLarge      = errors.New("protocol: frame too large")
	ErrDelimiterInPayload = errors.New("protocol: payload contains delimiter")
	ErrCorruptBatch       = errors.New("protocol: corrupt batch")
	ErrInvalidUTF8        = errors.New("protocol: invalid utf-8")
)

// stream 为各 framer 共用的半包缓冲，按需扩容。
type stream struct {
	rb *ring.Buffer
}

func (s *stream) feed(p []byte) *ring.Buffer {
	if s.rb == nil {
		s.rb = ring.New(initialBuffer)
	}
	s.rb.Grow(len(p))
	_, _ = s.rb.Write(p)
	return s.rb
}

// reset 丢弃半包；曾为大帧扩容的缓冲直接释放。
func (s *stream) reset() {
	if s.rb == nil {
		return
	}
	if s.rb.Cap() > 4*initialBuffer {
		s.rb = nil
		return
	}
	s.rb.Reset()
}

func (s *stream) buffered() int {
	if s.rb == nil {
		return 0
	}
	return s.rb.Len()
}

func maxFrame(n int) int {
	if n <= 0 {
		return DefaultMaxFrame
	}
	return n
}
