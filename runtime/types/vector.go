package types

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Vector is a fixed-length float32 vector stored as a packed little-endian
// blob.
type Vector []float32

// Bytes packs the vector.
func (v Vector) Bytes() []byte {
	out := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// VectorFromBytes unpacks a vector blob.
func VectorFromBytes(b []byte) (Vector, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of 4", ErrVectorSize, len(b))
	}
	v := make(Vector, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// CosineDistance returns 1 - cos(v, o).
func (v Vector) CosineDistance(o Vector) (float32, error) {
	if len(v) != len(o) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrVectorSize, len(v), len(o))
	}
	var dot, magA, magB float64
	for i := range v {
		a, b := float64(v[i]), float64(o[i])
		dot += a * b
		magA += a * a
		magB += b * b
	}
	if magA == 0 || magB == 0 {
		return 0, fmt.Errorf("%w: zero-magnitude vector", ErrInvalidValue)
	}
	return float32(1 - dot/(math.Sqrt(magA)*math.Sqrt(magB))), nil
}
