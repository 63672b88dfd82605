package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector serializes v as little-endian FLOAT32, the layout of HASH vector fields.
func EncodeVector(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// DecodeVector parses a FLOAT32 blob. A blob whose length is not a multiple of 4 yields nil.
func DecodeVector(s string) []float32 {
	if len(s) == 0 || len(s)%4 != 0 {
		return nil
	}
	b := []byte(s)
	out := make([]float32, len(b)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}
