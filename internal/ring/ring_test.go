package ring

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPow2Capacity(t *testing.T) {
	require.Equal(t, 8, New(5).Cap())
	require.Equal(t, 16, New(16).Cap())
	require.Equal(t, 1, New(0).Cap())
}

func TestWriteTooLarge(t *testing.T) {
	b := New(4)
	_, err := b.Write([]byte("hello"))
	require.ErrorIs(t, err, ErrTooLarge)
	require.Zero(t, b.Len())
}

func TestWrapAround(t *testing.T) {
	b := New(8)
	_, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.Equal(t, []byte("abcd"), b.Next(4))

	// 写入跨越尾部
	_, err = b.Write([]byte("ghijk"))
	require.NoError(t, err)
	require.Equal(t, 7, b.Len())
	require.Equal(t, []byte("efghi"), b.Peek(5))
	require.Equal(t, 4, b.IndexByte('i'))
	require.Equal(t, 6, b.IndexByte('k'))
	require.Equal(t, -1, b.IndexByte('z'))
	require.Equal(t, []byte("efghijk"), b.Next(100))
	require.Zero(t, b.Len())
}

func TestGrowKeepsOrder(t *testing.T) {
	b := New(4)
	_, _ = b.Write([]byte("abc"))
	b.Discard(2)
	_, _ = b.Write([]byte("de"))

	b.Grow(10)
	require.GreaterOrEqual(t, b.Free(), 10)
	_, err := b.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, []byte("cde0123456789"), b.Next(b.Len()))
}

func TestNextReturnsCopy(t *testing.T) {
	b := New(8)
	_, _ = b.Write([]byte("abcd"))
	out := b.Next(2)
	b.Reset()
	_, _ = b.Write([]byte("zzzz"))
	require.Equal(t, []byte("ab"), out)
}

func TestDiscardAndReset(t *testing.T) {
	b := New(8)
	_, _ = b.Write([]byte("abc"))
	require.Equal(t, 3, b.Discard(10))
	require.Zero(t, b.Len())
	_, _ = b.Write([]byte("xy"))
	b.Reset()
	require.Zero(t, b.Len())
	require.Nil(t, b.Peek(1))
}

// 与 bytes.Buffer 对照，随机读写反复跨越尾部
func TestMatchesLinearBuffer(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	b := New(64)
	var want bytes.Buffer
	var seq byte

	for i := 0; i < 5000; i++ {
		if n := rnd.Intn(b.Free() + 1); n > 0 {
			p := make([]byte, n)
			for j := range p {
				p[j] = seq
				seq++
			}
			_, err := b.Write(p)
			require.NoError(t, err)
			want.Write(p)
		}
		require.Equal(t, want.Len(), b.Len())

		c := byte(rnd.Intn(256))
		require.Equal(t, bytes.IndexByte(want.Bytes(), c), b.IndexByte(c), "step %d", i)
		n := rnd.Intn(b.Len() + 1)
		require.Equal(t, string(want.Bytes()[:n]), string(b.Peek(n)), "step %d", i)
		switch rnd.Intn(3) {
		case 0:
			require.Equal(t, n, b.Discard(n))
			want.Next(n)
		default:
			require.Equal(t, string(want.Next(n)), string(b.Next(n)), "step %d", i)
		}
	}
}
