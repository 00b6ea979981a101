package protocol

import (
	"encoding/binary"
	"errors"
)

// LenFlags 头部编码：
// 短头（2B，BE）：
//   bit15: Compressed
//   bit14: Batched (隐含 Compressed=1)
//   bit13: Ext=0 (短头)
//   bit12..0: Len13 (0..8191)
// 长头（4B，BE）：
//   bit31: Compressed
//   bit30: Batched (隐含 Compressed=1)
//   bit29: Ext=1 (长头)
//   bit28..0: Len29 (0..(1<<29)-1)

const (
	shortHeadMaxLen = (1 << 13) - 1 // 8191
	longHeadMaxLen  = (1 << 29) - 1

	// MaxHeaderLen 为 LenFlags 头部的最大字节数
	MaxHeaderLen = 4
)

var (
	errHeaderTooShort   = errors.New("protocol: header too short")
	errLengthOutOfRange = errors.New("protocol: length out of range")
)

// AppendLenFlags 将头部（2 或 4 字节）追加到 dst。
func AppendLenFlags(dst []byte, length int, compressed, batched bool) ([]byte, error) {
	if length < 0 || length > longHeadMaxLen {
		return dst, errLengthOutOfRange
	}
	if batched {
		compressed = true // 规则：Batched 隐含 Compressed
	}
	if length <= shortHeadMaxLen {
		var v uint16
		if compressed {
			v |= 1 << 15
		}
		if batched {
			v |= 1 << 14
		}
		v |= uint16(length) & 0x1FFF
		return binary.BigEndian.AppendUint16(dst, v), nil
	}
	var v uint32 = 1 << 29 // Ext=1
	if compressed {
		v |= 1 << 31
	}
	if batched {
		v |= 1 << 30
	}
	v |= uint32(length) & 0x1FFFFFFF
	return binary.BigEndian.AppendUint32(dst, v), nil
}

// DecodeLenFlags 解码头部，返回：已消费字节数、长度、compressed、batched。
// 长头不足 4 字节时返回 errHeaderTooShort，调用方应等待更多数据。
func DecodeLenFlags(b []byte) (consumed int, length int, compressed, batched bool, _ error) {
	if len(b) < 2 {
		return 0, 0, false, false, errHeaderTooShort
	}
	v16 := binary.BigEndian.Uint16(b[:2])
	if (v16>>13)&0x1 == 0 {
		compressed = (v16>>15)&0x1 == 1
		batched = (v16>>14)&0x1 == 1
		length = int(v16 & 0x1FFF)
		return 2, length, compressed, batched, nil
	}
	if len(b) < 4 {
		return 0, 0, false, false, errHeaderTooShort
	}
	v32 := binary.BigEndian.Uint32(b[:4])
	compressed = (v32>>31)&0x1 == 1
	batched = (v32>>30)&0x1 == 1
	length = int(v32 & 0x1FFFFFFF)
	return 4, length, compressed, batched, nil
}
