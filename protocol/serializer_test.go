package protocol

import (
	"errors"
	"testing"
)

func TestStringSerializer(t *testing.T) {
	var s String
	b, err := s.Serialize("héllo")
	if err != nil {
		t.Fatal(err)
	}
	v, err := s.Deserialize(b)
	if err != nil || v != "héllo" {
		t.Errorf("Deserialize = %q, %v", v, err)
	}

	strict := String{ValidUTF8: true}
	if _, err := strict.Deserialize([]byte{0xff, 0xfe}); !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("got %v, want ErrInvalidUTF8", err)
	}
	if _, err := s.Deserialize([]byte{0xff}); err != nil {
		t.Errorf("lenient String rejected bytes: %v", err)
	}
}

func TestBytesSerializer(t *testing.T) {
	var s Bytes
	in := []byte{1, 2, 3}
	out, _ := s.Serialize(in)
	back, _ := s.Deserialize(out)
	if string(back) != string(in) {
		t.Errorf("got %v", back)
	}
}
