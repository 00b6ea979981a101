package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

// framer 为测试用的最小约束
type framer interface {
	Encode(dst, p []byte) ([]byte, error)
	Decode(p []byte) ([][]byte, error)
	Reset()
}

// encodeAll 依次编码 msgs 并拼接
func encodeAll(t *testing.T, f framer, msgs ...string) []byte {
	t.Helper()
	var wire []byte
	for _, m := range msgs {
		var err error
		wire, err = f.Encode(wire, []byte(m))
		if err != nil {
			t.Fatalf("Encode(%q): %v", m, err)
		}
	}
	return wire
}

// decodeSplit 在 split 处把 wire 分两次喂给 framer
func decodeSplit(t *testing.T, f framer, wire []byte, split int) []string {
	t.Helper()
	var got []string
	for _, part := range [][]byte{wire[:split], wire[split:]} {
		frames, err := f.Decode(part)
		if err != nil {
			t.Fatalf("Decode(split=%d): %v", split, err)
		}
		for _, fr := range frames {
			got = append(got, string(fr))
		}
	}
	return got
}

func TestLengthPrefixWireFormat(t *testing.T) {
	f := NewLengthPrefix()
	got, err := f.Encode(nil, []byte("ping"))
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0, 0, 0, 4, 'p', 'i', 'n', 'g'}
	if !bytes.Equal(got, want) {
		t.Errorf("Encode(ping) = %v, want %v", got, want)
	}
}

func TestLengthPrefixEverySplit(t *testing.T) {
	msgs := []string{"hello", "", "world", string(bytes.Repeat([]byte("x"), 300))}
	f := NewLengthPrefix()
	wire := encodeAll(t, f, msgs...)

	for split := 0; split <= len(wire); split++ {
		f.Reset()
		got := decodeSplit(t, f, wire, split)
		if diff := pretty.Compare(msgs, got); diff != "" {
			t.Fatalf("split=%d: -want +got:\n%s", split, diff)
		}
		if f.Buffered() != 0 {
			t.Fatalf("split=%d: %d bytes left buffered", split, f.Buffered())
		}
	}
}

func TestLengthPrefixByteByByte(t *testing.T) {
	f := NewLengthPrefix()
	wire := encodeAll(t, f, "a", "bc", "def")
	var got []string
	for i := range wire {
		frames, err := f.Decode(wire[i : i+1])
		if err != nil {
			t.Fatal(err)
		}
		for _, fr := range frames {
			got = append(got, string(fr))
		}
	}
	if diff := pretty.Compare([]string{"a", "bc", "def"}, got); diff != "" {
		t.Errorf("-want +got:\n%s", diff)
	}
}

func TestLengthPrefixFramesAreOwned(t *testing.T) {
	f := NewLengthPrefix()
	wire := encodeAll(t, f, "abcd")
	frames, err := f.Decode(wire)
	if err != nil {
		t.Fatal(err)
	}
	// 继续复用内部缓冲不应影响已返回的帧
	_, _ = f.Decode(encodeAll(t, NewLengthPrefix(), "zzzz"))
	if string(frames[0]) != "abcd" {
		t.Errorf("frame mutated to %q", frames[0])
	}
}

func TestLengthPrefixTooLarge(t *testing.T) {
	f := &LengthPrefix{MaxFrame: 8}
	if _, err := f.Encode(nil, make([]byte, 9)); !errors.Is(err, ErrFrameTooLarge) {
		t.Errorf("Encode: got %v, want ErrFrameTooLarge", err)
	}

	wire := append(encodeAll(t, f, "ok"), 0, 0, 1, 0, 'x')
	frames, err := f.Decode(wire)
	if !errors.Is(err, ErrFrameTooLarge) {
		t.Fatalf("Decode: got %v, want ErrFrameTooLarge", err)
	}
	if len(frames) != 1 || string(frames[0]) != "ok" {
		t.Errorf("frames before the error = %q", frames)
	}
	if f.Buffered() != 0 {
		t.Errorf("buffer not reset after error")
	}
}

func TestLengthPrefixReset(t *testing.T) {
	f := NewLengthPrefix()
	wire := encodeAll(t, f, "hello")
	if _, err := f.Decode(wire[:6]); err != nil {
		t.Fatal(err)
	}
	f.Reset()
	frames, err := f.Decode(encodeAll(t, f, "next"))
	if err != nil {
		t.Fatal(err)
	}
	if diff := pretty.Compare([]string{"next"}, toStrings(frames)); diff != "" {
		t.Errorf("-want +got:\n%s", diff)
	}
}

func toStrings(frames [][]byte) []string {
	out := make([]string, 0, len(frames))
	for _, f := range frames {
		out = append(out, string(f))
	}
	return out
}
