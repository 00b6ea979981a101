package protocol

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

var (
	encoderPool = sync.Pool{New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
		return enc
	}}
	// DecodeAll 的输出不超过 dst 的容量，解压上限由调用方按帧限制给出
	decoderPool = sync.Pool{New: func() any {
		dec, _ := zstd.NewReader(nil,
			zstd.WithDecoderConcurrency(1),
			zstd.WithDecoderMaxMemory(longHeadMaxLen),
			zstd.WithDecodeAllCapLimit(true))
		return dec
	}}
)

// compress 将 src 压缩后追加到 dst。
func compress(dst, src []byte) []byte {
	enc := encoderPool.Get().(*zstd.Encoder)
	defer encoderPool.Put(enc)
	return enc.EncodeAll(src, dst)
}

// decompress 解压 src，输出超过 limit 字节时返回 ErrFrameTooLarge，不会先分配完整输出。
func decompress(src []byte, limit int) ([]byte, error) {
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return nil, fmt.Errorf("protocol: decompress: %w", err)
	}
	size := limit
	if h.HasFCS {
		if h.FrameContentSize > uint64(limit) {
			return nil, fmt.Errorf("%w: %d bytes after decompression", ErrFrameTooLarge, h.FrameContentSize)
		}
		size = int(h.FrameContentSize)
	}

	dec := decoderPool.Get().(*zstd.Decoder)
	defer decoderPool.Put(dec)
	out, err := dec.DecodeAll(src, make([]byte, 0, size))
	if err != nil {
		if errors.Is(err, zstd.ErrDecoderSizeExceeded) {
			return nil, fmt.Errorf("%w: more than %d bytes after decompression", ErrFrameTooLarge, limit)
		}
		return nil, fmt.Errorf("protocol: decompress: %w", err)
	}
	return out, nil
}
