package protocol

import "unicode/utf8"

// Bytes 为透传序列化器，framer 产出的帧即为最终消息。
type Bytes struct{}

func (Bytes) Serialize(v []byte) ([]byte, error) { return v, nil }

func (Bytes) Deserialize(p []byte) ([]byte, error) { return p, nil }

// String 在帧字节与字符串之间转换。
type String struct {
	// ValidUTF8 为 true 时拒绝非法 UTF-8 的帧
	ValidUTF8 bool
}

func (String) Serialize(v string) ([]byte, error) { return []byte(v), nil }

func (s String) Deserialize(p []byte) (string, error) {
	if s.ValidUTF8 && !utf8.Valid(p) {
		return "", ErrInvalidUTF8
	}
	return string(p), nil
}
