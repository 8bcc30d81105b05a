package expgolomb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/streamvault/internal/bitio"
)

func TestUnsignedRoundTrip(t *testing.T) {
	for _, n := range []uint64{0, 1, 2, 3, 4, 5, 10, 255, 1 << 20} {
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		require.NoError(t, WriteUnsigned(w, n))
		_, err := w.Finish()
		require.NoError(t, err)

		r := bitio.NewReader(bytes.NewReader(buf.Bytes()))
		got, err := ReadUnsigned(r)
		require.NoError(t, err)
		require.Equal(t, n, got, "n=%d", n)
	}
}

func TestSignedMapping(t *testing.T) {
	cases := []struct {
		v    int64
		want uint64
	}{
		{0, 0}, {1, 1}, {-1, 2}, {2, 3}, {-2, 4},
	}
	for _, c := range cases {
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		require.NoError(t, WriteSigned(w, c.v))
		_, err := w.Finish()
		require.NoError(t, err)

		r := bitio.NewReader(bytes.NewReader(buf.Bytes()))
		got, err := ReadUnsigned(r)
		require.NoError(t, err)
		require.Equal(t, c.want, got)
	}
}

func TestSignedRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, 2, -2, 100, -100, 1 << 16, -(1 << 16)} {
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		require.NoError(t, WriteSigned(w, v))
		_, err := w.Finish()
		require.NoError(t, err)

		r := bitio.NewReader(bytes.NewReader(buf.Bytes()))
		got, err := ReadSigned(r)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestSizeMatchesWrittenBits(t *testing.T) {
	for _, n := range []uint64{0, 1, 7, 8, 1000} {
		var buf bytes.Buffer
		w := bitio.NewWriter(&buf)
		require.NoError(t, WriteUnsigned(w, n))
		_, err := w.Finish()
		require.NoError(t, err)
		// SizeUnsigned doesn't include padding, so just sanity check it's
		// no larger than the padded byte count * 8.
		require.LessOrEqual(t, SizeUnsigned(n), len(buf.Bytes())*8)
	}
}
