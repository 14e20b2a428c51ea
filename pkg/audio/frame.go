package audio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeFrame serialises samples as little-endian IEEE-754 float32 values,
// the raw binary payload of one outbound message. No header is added.
func EncodeFrame(samples []float32) []byte {
	out := make([]byte, len(samples)*BytesPerSample)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[i*BytesPerSample:], math.Float32bits(s))
	}
	return out
}

// DecodeFrame is the inverse of [EncodeFrame]. It returns an error if data is
// not a whole number of float32 samples.
func DecodeFrame(data []byte) ([]float32, error) {
	if len(data)%BytesPerSample != 0 {
		return nil, fmt.Errorf("audio: frame length %d is not a multiple of %d", len(data), BytesPerSample)
	}
	out := make([]float32, len(data)/BytesPerSample)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*BytesPerSample:]))
	}
	return out, nil
}
