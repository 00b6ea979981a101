package protocol

import (
	"encoding/binary"
	"fmt"
)

const lengthPrefixSize = 4

// LengthPrefix 以 4 字节大端长度作为帧头，长度不含帧头本身。
// 零值可用；非并发安全，由连接 worker 串行调用。
type LengthPrefix struct {
	// MaxFrame 限制单帧负载，<=0 时为 DefaultMaxFrame
	MaxFrame int

	s stream
}

func NewLengthPrefix() *LengthPrefix { return &LengthPrefix{} }

func (f *LengthPrefix) Encode(dst, p []byte) ([]byte, error) {
	if len(p) > maxFrame(f.MaxFrame) {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(p))
	}
	dst = binary.BigEndian.AppendUint32(dst, uint32(len(p)))
	return append(dst, p...), nil
}

func (f *LengthPrefix) Decode(p []byte) (frames [][]byte, _ error) {
	rb := f.s.feed(p)
	for rb.Len() >= lengthPrefixSize {
		n := int(binary.BigEndian.Uint32(rb.Peek(lengthPrefixSize)))
		if n > maxFrame(f.MaxFrame) {
			f.s.reset()
			return frames, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, n)
		}
		if rb.Len() < lengthPrefixSize+n {
			break // 不完整帧
		}
		rb.Discard(lengthPrefixSize)
		frames = append(frames, rb.Next(n))
	}
	return frames, nil
}

func (f *LengthPrefix) Reset() { f.s.reset() }

// Buffered 返回尚未组成完整帧的字节数。
func (f *LengthPrefix) Buffered() int { return f.s.buffered() }
