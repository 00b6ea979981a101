package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Compact 使用 LenFlags 变长头（2B/4B），负载可选 zstd 压缩。
// 批量帧（Batched=1）总是压缩，解码时拆成多条消息按顺序返回。
type Compact struct {
	// CompressThreshold 负载达到该字节数时压缩；<=0 表示从不压缩
	CompressThreshold int
	// MaxFrame 限制单帧（压缩前后）负载，<=0 时为 DefaultMaxFrame
	MaxFrame int

	s stream
}

func NewCompact(compressThreshold int) *Compact {
	return &Compact{CompressThreshold: compressThreshold}
}

func (f *Compact) Encode(dst, p []byte) ([]byte, error) {
	if len(p) > maxFrame(f.MaxFrame) {
		return dst, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(p))
	}
	if f.CompressThreshold <= 0 || len(p) < f.CompressThreshold {
		dst, err := AppendLenFlags(dst, len(p), false, false)
		if err != nil {
			return dst, err
		}
		return append(dst, p...), nil
	}
	body := compress(nil, p)
	dst, err := AppendLenFlags(dst, len(body), true, false)
	if err != nil {
		return dst, err
	}
	return append(dst, body...), nil
}

// EncodeBatch 将一批消息编码为批前镜像并压缩，追加单个批量帧到 dst。
// 批前镜像：uvarint(条数) 后接每条 uvarint(长度)+负载。
func (f *Compact) EncodeBatch(dst []byte, msgs [][]byte) ([]byte, error) {
	var pre bytes.Buffer
	var uv [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(uv[:], uint64(len(msgs)))
	pre.Write(uv[:n])
	for _, m := range msgs {
		n = binary.PutUvarint(uv[:], uint64(len(m)))
		pre.Write(uv[:n])
		pre.Write(m)
	}
	if pre.Len() > maxFrame(f.MaxFrame) {
		return dst, fmt.Errorf("%w: batch of %d bytes", ErrFrameTooLarge, pre.Len())
	}
	body := compress(nil, pre.Bytes())
	dst, err := AppendLenFlags(dst, len(body), true, true)
	if err != nil {
		return dst, err
	}
	return append(dst, body...), nil
}

func (f *Compact) Decode(p []byte) (frames [][]byte, err error) {
	rb := f.s.feed(p)
	limit := maxFrame(f.MaxFrame)
	for {
		used, length, compressed, batched, herr := DecodeLenFlags(rb.Peek(MaxHeaderLen))
		if herr != nil {
			break // 不足以判断头
		}
		if length > limit {
			f.s.reset()
			return frames, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
		}
		if rb.Len() < used+length {
			break // 不完整帧
		}
		rb.Discard(used)
		body := rb.Next(length)
		if !compressed {
			frames = append(frames, body)
			continue
		}
		raw, derr := decompress(body, limit)
		if derr != nil {
			f.s.reset()
			return frames, derr
		}
		if !batched {
			frames = append(frames, raw)
			continue
		}
		if frames, err = appendBatch(frames, raw); err != nil {
			f.s.reset()
			return frames, err
		}
	}
	return frames, nil
}

func (f *Compact) Reset() { f.s.reset() }

func (f *Compact) Buffered() int { return f.s.buffered() }

// appendBatch 解析批前镜像，逐条追加到 frames
func appendBatch(frames [][]byte, pre []byte) ([][]byte, error) {
	r := bytes.NewReader(pre)
	num, err := binary.ReadUvarint(r)
	if err != nil {
		return frames, fmt.Errorf("%w: %v", ErrCorruptBatch, err)
	}
	for j := uint64(0); j < num; j++ {
		ln, err := binary.ReadUvarint(r)
		if err != nil {
			return frames, fmt.Errorf("%w: %v", ErrCorruptBatch, err)
		}
		if ln > uint64(r.Len()) {
			return frames, fmt.Errorf("%w: item %d truncated", ErrCorruptBatch, j)
		}
		msg := make([]byte, ln)
		if _, err := io.ReadFull(r, msg); err != nil {
			return frames, fmt.Errorf("%w: %v", ErrCorruptBatch, err)
		}
		frames = append(frames, msg)
	}
	return frames, nil
}
