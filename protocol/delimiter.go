package protocol

import (
	"bytes"
	"fmt"
)

// Delimiter 以单字节分隔符切分消息，例如按行的文本协议。
type Delimiter struct {
	Delim byte
	// MaxFrame 限制单帧负载，<=0 时为 DefaultMaxFrame
	MaxFrame int

	s stream
}

func NewDelimiter(delim byte) *Delimiter { return &Delimiter{Delim: delim} }

func (f *Delimiter) Encode(dst, p []byte) ([]byte, error) {
	if bytes.IndexByte(p, f.Delim) >= 0 {
		return dst, ErrDelimiterInPayload
	}
	if len(p) > maxFrame(f.MaxFrame) {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(p))
	}
	dst = append(dst, p...)
	return append(dst, f.Delim), nil
}

func (f *Delimiter) Decode(p []byte) (frames [][]byte, _ error) {
	rb := f.s.feed(p)
	limit := maxFrame(f.MaxFrame)
	for {
		i := rb.IndexByte(f.Delim)
		if i < 0 {
			break
		}
		if i > limit {
			f.s.reset()
			return frames, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, i)
		}
		frames = append(frames, rb.Next(i))
		rb.Discard(1)
	}
	if n := rb.Len(); n > limit {
		f.s.reset()
		return frames, fmt.Errorf("%w: %d bytes without delimiter", ErrFrameTooLarge, n)
	}
	return frames, nil
}

func (f *Delimiter) Reset() { f.s.reset() }

func (f *Delimiter) Buffered() int { return f.s.buffered() }
