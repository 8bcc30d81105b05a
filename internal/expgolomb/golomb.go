// Package expgolomb implements exponential-Golomb coding, the variable-length
// integer encoding used throughout H.264/H.265 bitstreams (SPS/PPS fields,
// slice headers) and read via internal/bitio.
package expgolomb

import (
	"math/bits"

	"github.com/jmylchreest/streamvault/internal/bitio"
)

// ReadUnsigned decodes an unsigned Exp-Golomb value: it counts k leading zero
// bits, then reads the following (k+1)-bit value and returns it minus one.
func ReadUnsigned(r *bitio.Reader) (uint64, error) {
	k := 0
	for {
		bit, err := r.ReadBit()
		if err != nil {
			return 0, err
		}
		if bit == 1 {
			break
		}
		k++
	}
	if k == 0 {
		return 0, nil
	}
	rest, err := r.ReadBits(k)
	if err != nil {
		return 0, err
	}
	return (uint64(1)<<uint(k) - 1) + rest, nil
}

// ReadSigned decodes a signed Exp-Golomb value using the standard mapping
// 0->0, 1->1, 2->-1, 3->2, 4->-2, ...
func ReadSigned(r *bitio.Reader) (int64, error) {
	u, err := ReadUnsigned(r)
	if err != nil {
		return 0, err
	}
	if u%2 == 0 {
		return -int64(u / 2), nil
	}
	return int64((u + 1) / 2), nil
}

// WriteUnsigned encodes n as k = floor(log2(n+1)) zero bits followed by the
// (k+1)-bit binary representation of n+1.
func WriteUnsigned(w *bitio.Writer, n uint64) error {
	v := n + 1
	k := bits.Len64(v) - 1
	for i := 0; i < k; i++ {
		if err := w.WriteBit(0); err != nil {
			return err
		}
	}
	return w.WriteBits(v, k+1)
}

// WriteSigned encodes a signed value using the inverse of ReadSigned's
// mapping: v<=0 -> -v*2, v>0 -> v*2-1.
func WriteSigned(w *bitio.Writer, v int64) error {
	var u uint64
	if v <= 0 {
		u = uint64(-v) * 2
	} else {
		u = uint64(v)*2 - 1
	}
	return WriteUnsigned(w, u)
}

// SizeUnsigned returns the number of bits WriteUnsigned would emit for n,
// without writing anything.
func SizeUnsigned(n uint64) int {
	k := bits.Len64(n+1) - 1
	return 2*k + 1
}

// SizeSigned returns the number of bits WriteSigned would emit for v.
func SizeSigned(v int64) int {
	var u uint64
	if v <= 0 {
		u = uint64(-v) * 2
	} else {
		u = uint64(v)*2 - 1
	}
	return SizeUnsigned(u)
}
